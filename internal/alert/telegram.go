package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Telegram delivers alerts over the Bot API and polls for user commands.
type Telegram struct {
	base   string
	token  string
	chatID string
	client *http.Client
	log    zerolog.Logger
}

// NewTelegram builds the sink. The token and chat id come from config or
// environment.
func NewTelegram(token, chatID string, log zerolog.Logger) *Telegram {
	return &Telegram{
		base:   "https://api.telegram.org",
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 35 * time.Second},
		log:    log.With().Str("component", "telegram").Logger(),
	}
}

func (t *Telegram) api(method string) string {
	return t.base + "/bot" + t.token + "/" + method
}

// Send renders the alert as HTML and delivers it in chunks, retrying each
// chunk on failure.
func (t *Telegram) Send(ctx context.Context, a Alert) error {
	text := Render(a, true)
	for _, chunk := range Split(text, maxMessageLen) {
		if err := t.sendWithRetry(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (t *Telegram) sendWithRetry(ctx context.Context, text string) error {
	var err error
	backoff := time.Second
	for attempt := 0; attempt < 3; attempt++ {
		if err = t.sendMessage(ctx, text); err == nil {
			return nil
		}
		t.log.Warn().Err(err).Int("attempt", attempt+1).Msg("send failed")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("telegram send: %w", err)
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	form := url.Values{
		"chat_id":    {t.chatID},
		"text":       {text},
		"parse_mode": {"HTML"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.api("sendMessage"),
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var body struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}
	if !body.OK {
		return fmt.Errorf("api: %s", body.Description)
	}
	return nil
}

// StartPolling long-polls getUpdates and routes slash commands to the
// handler, sending its reply back to the chat. Blocks until ctx is done.
func (t *Telegram) StartPolling(ctx context.Context, handle CommandHandler) {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		updates, err := t.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.log.Warn().Err(err).Msg("poll failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}
		for _, u := range updates {
			offset = u.UpdateID + 1
			text := strings.TrimSpace(u.Message.Text)
			if !strings.HasPrefix(text, "/") {
				continue
			}
			fields := strings.Fields(text)
			name := strings.TrimPrefix(fields[0], "/")
			if i := strings.Index(name, "@"); i >= 0 {
				name = name[:i]
			}
			reply := handle(ctx, name, fields[1:])
			if reply == "" {
				continue
			}
			for _, chunk := range Split(reply, maxMessageLen) {
				if err := t.sendWithRetry(ctx, chunk); err != nil {
					t.log.Error().Err(err).Msg("reply failed")
				}
			}
		}
	}
}

type tgUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  struct {
		Text string `json:"text"`
	} `json:"message"`
}

func (t *Telegram) getUpdates(ctx context.Context, offset int64) ([]tgUpdate, error) {
	u := fmt.Sprintf("%s?timeout=30&offset=%d&allowed_updates=[\"message\"]", t.api("getUpdates"), offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var body struct {
		OK     bool       `json:"ok"`
		Result []tgUpdate `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if !body.OK {
		return nil, fmt.Errorf("getUpdates not ok")
	}
	return body.Result, nil
}
