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

func TestAlert_SendsMessage(t *testing.T) {
	var got map[string]interface{}
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	bot := NewBotAPI("123:abc", "-100", nil).WithAPIBase(srv.URL)
	require.NoError(t, bot.Alert(context.Background(), "refund failed"))

	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "-100", got["chat_id"])
	assert.Equal(t, "refund failed", got["text"])
}

func TestAlert_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	bot := NewBotAPI("bad", "-100", nil).WithAPIBase(srv.URL)
	assert.Error(t, bot.Alert(context.Background(), "x"))
}

func TestAlert_DisabledIsNoop(t *testing.T) {
	bot := NewBotAPI("", "", nil)
	assert.False(t, bot.Enabled())
	assert.NoError(t, bot.Alert(context.Background(), "x"))
}
