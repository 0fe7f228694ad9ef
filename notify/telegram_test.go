package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramSendsMessage(t *testing.T) {
	t.Parallel()

	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottok/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegram("tok", "42")
	n.baseURL = srv.URL
	n.Notify("daily loss halt")

	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "daily loss halt", got["text"])
}

func TestTelegramUnconfiguredIsNoop(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	n := NewTelegram("", "")
	n.baseURL = srv.URL
	n.Notify("should not send")

	assert.False(t, called)
}
