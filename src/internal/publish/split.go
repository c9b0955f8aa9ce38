// Package publish 消息分片与各发布渠道（Twitter、Telegram、Pastebin）
package publish

import "slices"

// Split 按字符数把 text 切成不超过 limit 的片段。
// 优先在 limit 之内最后一个换行处切分，换行符归入下一片；没有可用换行时在 limit 处硬切。
// 所有片段按顺序拼接后与原文完全相同
func Split(text string, limit int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		cut := lastNewline(runes, limit)
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// lastNewline 下标 <= limit 的最后一个换行，没有时返回 -1
func lastNewline(runes []rune, limit int) int {
	window := runes[:min(limit+1, len(runes))]
	for i, r := range slices.Backward(window) {
		if r == '\n' {
			return i
		}
	}
	return -1
}
