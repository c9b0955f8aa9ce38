// Package ledger 持久化的去重账本：记录过的键在之后的任何一次运行中都不会再被处理
package ledger

import (
	"context"
	"sync"

	"github.com/admi-n/auditbot/src/internal"
)

// 账本命名空间，每个工作流领域一个
const (
	NamespaceContracts = "contracts" // 趋势审计与提及回复
	NamespaceCoins     = "coins"     // 趋势代币发现
)

// Ledger 去重账本
type Ledger interface {
	// Load 在每次运行开始时把全部键读入内存
	Load(ctx context.Context) error
	// Has 只读，不修改账本
	Has(key string) bool
	// Record 持久化一个键，成功返回后 Has(key) 在本进程和之后的进程中都为 true
	Record(ctx context.Context, key string) error
	// Len 内存中的键数量
	Len() int
	Close() error
}

// keySet 内存中的键集合，保持插入顺序。所有键都经过 internal.CanonicalKey
type keySet struct {
	mu    sync.RWMutex
	index map[string]struct{}
	order []string
}

func newKeySet() *keySet {
	return &keySet{index: make(map[string]struct{})}
}

func (s *keySet) has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[internal.CanonicalKey(key)]
	return ok
}

func (s *keySet) replace(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = make(map[string]struct{}, len(keys))
	s.order = s.order[:0]
	for _, k := range keys {
		k = internal.CanonicalKey(k)
		if _, ok := s.index[k]; ok {
			continue
		}
		s.index[k] = struct{}{}
		s.order = append(s.order, k)
	}
}

func (s *keySet) add(key string) {
	key = internal.CanonicalKey(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[key]; ok {
		return
	}
	s.index[key] = struct{}{}
	s.order = append(s.order, key)
}

func (s *keySet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
