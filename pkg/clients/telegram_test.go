package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/beam-cloud/gmail2tg/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTelegramClient(t *testing.T, handler http.HandlerFunc) *TelegramClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewTelegramClient(types.TelegramConfig{Token: "123:secret", APIBase: srv.URL + "/"})
}

func TestTelegramClient_Send(t *testing.T) {
	var path string
	var payload map[string]any
	client := newTestTelegramClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &payload))
		io.WriteString(w, `{"ok":true,"result":{"message_id":77,"chat":{"id":-100,"type":"group"}}}`)
	})

	err := client.Send(context.Background(), -100, "📩 New email")

	require.NoError(t, err)
	assert.Equal(t, "/bot123:secret/sendMessage", path)
	assert.Equal(t, float64(-100), payload["chat_id"])
	assert.Equal(t, "📩 New email", payload["text"])
}

func TestTelegramClient_SendCutsLongText(t *testing.T) {
	var text string
	client := newTestTelegramClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Text string `json:"text"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		text = payload.Text
		io.WriteString(w, `{"ok":true,"result":{"message_id":1,"chat":{"id":1,"type":"private"}}}`)
	})

	require.NoError(t, client.Send(context.Background(), 1, strings.Repeat("я", 5000)))
	assert.Equal(t, TelegramMaxMessageChars, utf8.RuneCountInString(text))
	assert.True(t, strings.HasSuffix(text, "…"))
}

func TestTelegramClient_SendErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   types.ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"ok":false,"error_code":401,"description":"Unauthorized"}`, types.ErrorKindAuth},
		{"chat not found", http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`, types.ErrorKindPermanent},
		{"flood", http.StatusTooManyRequests, `{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":5}}`, types.ErrorKindTransient},
		{"gateway", http.StatusBadGateway, `<html>bad gateway</html>`, types.ErrorKindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestTelegramClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			err := client.Send(context.Background(), 1, "hi")
			require.Error(t, err)
			assert.Equal(t, tt.kind, types.KindOf(err))
			assert.NotContains(t, err.Error(), "secret")
		})
	}
}

func TestTelegramClient_TransportErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewTelegramClient(types.TelegramConfig{Token: "123:secret", APIBase: srv.URL})
	err := client.Send(context.Background(), 1, "hi")

	require.Error(t, err)
	assert.Equal(t, types.ErrorKindTransient, types.KindOf(err))
	assert.NotContains(t, err.Error(), "secret")
}

func TestTelegramClient_GetUpdates(t *testing.T) {
	client := newTestTelegramClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:secret/getUpdates", r.URL.Path)
		io.WriteString(w, `{"ok":true,"result":[
			{"update_id":1,"message":{"message_id":5,"chat":{"id":42,"type":"private","first_name":"Sam"},"text":"/start"}},
			{"update_id":2}
		]}`)
	})

	updates, err := client.GetUpdates(context.Background())

	require.NoError(t, err)
	require.Len(t, updates, 2)
	require.NotNil(t, updates[0].Message)
	assert.Equal(t, int64(42), updates[0].Message.Chat.ID)
	assert.Equal(t, "/start", updates[0].Message.Text)
	assert.Nil(t, updates[1].Message)
}

func TestTelegramClient_GetMe(t *testing.T) {
	client := newTestTelegramClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":true,"result":{"id":9,"is_bot":true,"username":"relay_bot"}}`)
	})

	me, err := client.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "relay_bot", me.Username)
	assert.True(t, me.IsBot)
}

func TestTelegramClient_SendPacing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":true,"result":{"message_id":1,"chat":{"id":1,"type":"private"}}}`)
	}))
	defer srv.Close()

	client := NewTelegramClient(types.TelegramConfig{Token: "123:secret", APIBase: srv.URL, MinSendInterval: 50 * time.Millisecond})

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, client.Send(context.Background(), 1, "hi"))
	}
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := client.Send(ctx, 1, "hi")
	require.Error(t, err)
	assert.Equal(t, types.ErrorKindTransient, types.KindOf(err))
}
