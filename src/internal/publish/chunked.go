package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/admi-n/auditbot/src/internal/metrics"
)

// ErrChunkFailed 某个分片发送失败，其后的分片均未发送
var ErrChunkFailed = errors.New("chunk delivery failed")

// Publisher 发布能力，返回第一条消息的 id
type Publisher interface {
	Post(ctx context.Context, text string) (string, error)
	Reply(ctx context.Context, text, targetID string) (string, error)
}

// Sender 单条消息的发送渠道
type Sender interface {
	// Send replyTo 为空时发送独立消息
	Send(ctx context.Context, text, replyTo string) (string, error)
	Name() string
}

// ChunkedPublisher 把超长文本分片后按顺序发送
type ChunkedPublisher struct {
	sender   Sender
	limit    int
	threaded bool
	metrics  *metrics.BotMetrics
}

// ChunkedOption 可选项
type ChunkedOption func(*ChunkedPublisher)

// Threaded 后续分片回复上一个分片（Twitter 线程）
func Threaded() ChunkedOption {
	return func(p *ChunkedPublisher) { p.threaded = true }
}

// WithMetrics 记录分片发送结果
func WithMetrics(m *metrics.BotMetrics) ChunkedOption {
	return func(p *ChunkedPublisher) { p.metrics = m }
}

// NewChunkedPublisher limit 为单条消息的字符上限
func NewChunkedPublisher(sender Sender, limit int, opts ...ChunkedOption) *ChunkedPublisher {
	p := &ChunkedPublisher{sender: sender, limit: limit}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Post 发送独立消息
func (p *ChunkedPublisher) Post(ctx context.Context, text string) (string, error) {
	return p.send(ctx, text, "")
}

// Reply 回复 targetID
func (p *ChunkedPublisher) Reply(ctx context.Context, text, targetID string) (string, error) {
	return p.send(ctx, text, targetID)
}

func (p *ChunkedPublisher) send(ctx context.Context, text, replyTo string) (string, error) {
	chunks := Split(text, p.limit)
	if len(chunks) == 0 {
		return "", fmt.Errorf("%s: empty message", p.sender.Name())
	}

	var firstID string
	for i, chunk := range chunks {
		id, err := p.sender.Send(ctx, chunk, replyTo)
		if err != nil {
			p.metrics.Chunks(p.sender.Name(), i, true)
			slog.Error("❌ 分片发送失败", "channel", p.sender.Name(), "chunk", i+1, "total", len(chunks), "err", err)
			return firstID, fmt.Errorf("%w: %s chunk %d/%d: %w", ErrChunkFailed, p.sender.Name(), i+1, len(chunks), err)
		}
		if i == 0 {
			firstID = id
		}
		if p.threaded {
			replyTo = id
		}
	}

	p.metrics.Chunks(p.sender.Name(), len(chunks), false)
	slog.Info("📨 消息已发送", "channel", p.sender.Name(), "chunks", len(chunks), "id", firstID)
	return firstID, nil
}
