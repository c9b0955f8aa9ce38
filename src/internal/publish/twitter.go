package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
)

// TwitterConfig OAuth 1.0a 用户上下文凭据
type TwitterConfig struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
	BaseURL      string // 默认 https://api.twitter.com
	Timeout      time.Duration
	HTTPClient   *http.Client // 签名前的底层客户端（代理）
}

// Tweet 搜索结果中的推文
type Tweet struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// User Twitter 用户
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// TwitterClient Twitter v2 API 客户端
type TwitterClient struct {
	httpClient *http.Client
	baseURL    string
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Reply *tweetReply `json:"reply,omitempty"`
}

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type apiProblem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// NewTwitterClient 创建签名客户端
func NewTwitterClient(cfg TwitterConfig) (*TwitterClient, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" || cfg.AccessToken == "" || cfg.AccessSecret == "" {
		return nil, fmt.Errorf("twitter credentials are incomplete")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twitter.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	ctx := context.Background()
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth1.HTTPClient, cfg.HTTPClient)
	}
	signed := oauth1.NewConfig(cfg.APIKey, cfg.APISecret).Client(ctx, oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret))
	signed.Timeout = cfg.Timeout

	return &TwitterClient{httpClient: signed, baseURL: strings.TrimRight(cfg.BaseURL, "/")}, nil
}

// Name 渠道名
func (c *TwitterClient) Name() string {
	return "twitter"
}

// Send 发推，replyTo 非空时作为回复
func (c *TwitterClient) Send(ctx context.Context, text, replyTo string) (string, error) {
	body := tweetRequest{Text: text}
	if replyTo != "" {
		body.Reply = &tweetReply{InReplyToTweetID: replyTo}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/tweets", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("twitter returned no tweet id")
	}
	return out.Data.ID, nil
}

// SearchRecent 搜索 since 之后的推文，作者用户名从 includes 中填充
func (c *TwitterClient) SearchRecent(ctx context.Context, query string, since time.Time) ([]Tweet, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("start_time", since.UTC().Format(time.RFC3339))
	q.Set("tweet.fields", "created_at,author_id")
	q.Set("expansions", "author_id")
	q.Set("user.fields", "username")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/2/tweets/search/recent?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var out struct {
		Data     []Tweet `json:"data"`
		Includes struct {
			Users []User `json:"users"`
		} `json:"includes"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}

	usernames := make(map[string]string, len(out.Includes.Users))
	for _, u := range out.Includes.Users {
		usernames[u.ID] = u.Username
	}
	for i := range out.Data {
		out.Data[i].AuthorUsername = usernames[out.Data[i].AuthorID]
	}
	return out.Data, nil
}

// User 按 id 查询用户
func (c *TwitterClient) User(ctx context.Context, id string) (User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/2/users/"+url.PathEscape(id)+"?user.fields=username", nil)
	if err != nil {
		return User{}, fmt.Errorf("failed to create request: %w", err)
	}

	var out struct {
		Data User `json:"data"`
	}
	if err := c.do(req, &out); err != nil {
		return User{}, err
	}
	if out.Data.Username == "" {
		return User{}, fmt.Errorf("twitter user %s has no username", id)
	}
	return out.Data, nil
}

func (c *TwitterClient) do(req *http.Request, v any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twitter request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read twitter response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var p apiProblem
		if json.Unmarshal(body, &p) == nil && p.Detail != "" {
			return fmt.Errorf("twitter API %d: %s: %s", resp.StatusCode, p.Title, p.Detail)
		}
		return fmt.Errorf("twitter API returned status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode twitter response: %w", err)
	}
	return nil
}
