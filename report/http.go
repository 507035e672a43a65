package report

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// Uploader delivers an envelope to the trade API.
type Uploader interface {
	Upload(ctx context.Context, env Envelope) error
}

// Notifier sends a chat message.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

func newClient(timeout time.Duration) *resty.Client {
	// a single attempt per job; failures are logged, never retried
	return resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", "tradeposter")
}

// HTTPUploader posts the envelope as JSON to a fixed URL.
type HTTPUploader struct {
	url    string
	client *resty.Client
}

func NewHTTPUploader(url string, timeout time.Duration) *HTTPUploader {
	return &HTTPUploader{url: url, client: newClient(timeout)}
}

func (u *HTTPUploader) Upload(ctx context.Context, env Envelope) error {
	resp, err := u.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(env).
		Post(u.url)
	if err != nil {
		return errors.Wrap(err, "upload")
	}
	if !resp.IsSuccess() {
		return errors.Errorf("upload: http %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

// Telegram sends captions through the Bot API sendMessage method.
type Telegram struct {
	base   string
	token  string
	chatID string
	client *resty.Client
}

func NewTelegram(base, token, chatID string, timeout time.Duration) *Telegram {
	return &Telegram{
		base:   strings.TrimRight(base, "/"),
		token:  token,
		chatID: chatID,
		client: newClient(timeout),
	}
}

func (t *Telegram) Notify(ctx context.Context, text string) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id":                  t.chatID,
			"text":                     text,
			"disable_web_page_preview": "true",
		}).
		Post(t.base + "/bot" + t.token + "/sendMessage")
	if err != nil {
		// the url carries the bot token; keep it out of logs
		return errors.New("telegram sendMessage: " + redact(err.Error(), t.token))
	}
	if !resp.IsSuccess() {
		return errors.Errorf("telegram sendMessage: http %d", resp.StatusCode())
	}
	return nil
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "***")
}
