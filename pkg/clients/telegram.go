package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/beam-cloud/gmail2tg/pkg/extract"
	"github.com/beam-cloud/gmail2tg/pkg/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	TelegramAPIBase = "https://api.telegram.org"

	// TelegramMaxMessageChars is the Bot API limit for sendMessage text
	TelegramMaxMessageChars = 4096
)

// TelegramChat is the subset of a Bot API chat we read
type TelegramChat struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

type TelegramMessage struct {
	MessageID int64        `json:"message_id"`
	Chat      TelegramChat `json:"chat"`
	Text      string       `json:"text,omitempty"`
}

type TelegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *TelegramMessage `json:"message,omitempty"`
}

type TelegramUser struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters,omitempty"`
}

// TelegramClient is the delivery capability backed by the Telegram Bot API
type TelegramClient struct {
	HTTPClient *http.Client
	base       string
	token      string
	maxChars   int
	limiter    *rate.Limiter
}

func NewTelegramClient(cfg types.TelegramConfig) *TelegramClient {
	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = TelegramAPIBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	// Bot API allows about one message per second into a chat
	limit := rate.Inf
	if cfg.MinSendInterval > 0 {
		limit = rate.Every(cfg.MinSendInterval)
	}

	return &TelegramClient{
		HTTPClient: &http.Client{Timeout: timeout},
		base:       base,
		token:      cfg.Token,
		maxChars:   TelegramMaxMessageChars,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Send posts text to chatID as plain text. Text longer than the Bot API limit
// is cut and ends with the truncation marker. Sends are paced to
// MinSendInterval.
func (c *TelegramClient) Send(ctx context.Context, chatID int64, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return deliveryError("sendMessage", types.ErrorKindTransient, 0, err)
	}

	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     extract.Truncate(text, c.maxChars-1),
		"disable_web_page_preview": true,
	}

	var sent TelegramMessage
	if err := c.call(ctx, "sendMessage", payload, &sent); err != nil {
		return err
	}

	log.Debug().Int64("chat_id", chatID).Int64("telegram_message_id", sent.MessageID).Msg("telegram message sent")
	return nil
}

// GetUpdates returns pending updates, used to discover chat ids
func (c *TelegramClient) GetUpdates(ctx context.Context) ([]TelegramUpdate, error) {
	var updates []TelegramUpdate
	if err := c.call(ctx, "getUpdates", map[string]any{"timeout": 0}, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *TelegramClient) GetMe(ctx context.Context) (*TelegramUser, error) {
	var me TelegramUser
	if err := c.call(ctx, "getMe", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// call performs a Bot API method. The token is part of the URL, so transport
// errors are unwrapped from *url.Error before they are returned.
func (c *TelegramClient) call(ctx context.Context, method string, payload any, result any) error {
	body := []byte("{}")
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return deliveryError(method, types.ErrorKindPermanent, 0, err)
		}
		body = data
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.base, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return deliveryError(method, types.ErrorKindPermanent, 0, redactURLError(err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return deliveryError(method, types.ErrorKindTransient, 0, redactURLError(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return deliveryError(method, types.ErrorKindTransient, resp.StatusCode, err)
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		code := resp.StatusCode
		return deliveryError(method, kindForCode(code), code, fmt.Errorf("unreadable response (status %d)", code))
	}

	if !out.OK {
		code := out.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		msg := out.Description
		if out.Parameters != nil && out.Parameters.RetryAfter > 0 {
			msg = fmt.Sprintf("%s (retry after %ds)", msg, out.Parameters.RetryAfter)
		}
		return deliveryError(method, kindForCode(code), code, errors.New(msg))
	}

	if result != nil && len(out.Result) > 0 {
		if err := json.Unmarshal(out.Result, result); err != nil {
			return deliveryError(method, types.ErrorKindPermanent, resp.StatusCode, err)
		}
	}
	return nil
}

func kindForCode(code int) types.ErrorKind {
	if code >= 200 && code < 300 {
		return types.ErrorKindUnknown
	}
	return types.KindFromStatus(code)
}

func deliveryError(op string, kind types.ErrorKind, code int, err error) error {
	return &types.CapabilityError{
		Capability: types.CapabilityDelivery,
		Op:         op,
		Kind:       kind,
		Code:       code,
		Err:        err,
	}
}

func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
