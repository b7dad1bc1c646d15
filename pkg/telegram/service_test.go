package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessageEx_PostsEscapedMarkdown(t *testing.T) {
	var got sendMessageRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	svc := NewServiceWithBase("TOKEN", srv.URL)
	require.NoError(t, svc.SendMessageEx(context.Background(), 42,
		EscapeTextForMarkdownV2("run-1 failed."), WithMarkdownV2(), WithoutPreview()))

	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, int64(42), got.ChatID)
	assert.Equal(t, "MarkdownV2", got.ParseMode)
	assert.Equal(t, `run\-1 failed\.`, got.Text)
	assert.True(t, got.DisableWebPagePreview)
}

func TestSendMessageEx_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"chat not found"}`))
	}))
	defer srv.Close()

	err := NewServiceWithBase("TOKEN", srv.URL).SendMessageEx(context.Background(), 1, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestSendMessageEx_NoToken(t *testing.T) {
	err := NewService("").SendMessageEx(context.Background(), 1, "x")
	assert.Error(t, err)
}
