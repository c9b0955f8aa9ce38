package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TelegramMessageLimit sendMessage 的单条字符上限
const TelegramMessageLimit = 4096

// TelegramClient Bot API 客户端
type TelegramClient struct {
	token      string
	chatID     string
	baseURL    string
	httpClient *http.Client
}

type telegramRequest struct {
	ChatID          string              `json:"chat_id"`
	Text            string              `json:"text"`
	ReplyParameters *telegramReplyParam `json:"reply_parameters,omitempty"`
}

type telegramReplyParam struct {
	MessageID int64 `json:"message_id"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// NewTelegramClient baseURL 为空时使用 https://api.telegram.org
func NewTelegramClient(token, chatID, baseURL string, httpClient *http.Client) (*TelegramClient, error) {
	if token == "" || chatID == "" {
		return nil, fmt.Errorf("telegram bot token and chat id are required")
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &TelegramClient{
		token:      token,
		chatID:     chatID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// Name 渠道名
func (c *TelegramClient) Name() string {
	return "telegram"
}

// Send 发送到配置的 chat
func (c *TelegramClient) Send(ctx context.Context, text, replyTo string) (string, error) {
	body := telegramRequest{ChatID: c.chatID, Text: text}
	if replyTo != "" {
		id, err := strconv.ParseInt(replyTo, 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid telegram message id %q: %w", replyTo, err)
		}
		body.ReplyParameters = &telegramReplyParam{MessageID: id}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// 错误信息里的 URL 含 token
		return "", fmt.Errorf("telegram request failed: %s", strings.ReplaceAll(err.Error(), c.token, "***"))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read telegram response: %w", err)
	}

	var out telegramResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to decode telegram response (status %d): %w", resp.StatusCode, err)
	}
	if !out.OK {
		return "", fmt.Errorf("telegram API error: %s", out.Description)
	}
	return strconv.FormatInt(out.Result.MessageID, 10), nil
}
