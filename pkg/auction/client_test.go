package auction

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/solverhq/solana-settler/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveBody(t *testing.T, status int, body string) (*Client, func()) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/intents", r.URL.Path)
		assert.Equal(t, "won", r.URL.Query().Get("status"))
		assert.Equal(t, "solver-1", r.URL.Query().Get("solver"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	return New(server.URL, "solver-1", &logger.EmptyLogger{}), server.Close
}

func TestFetchWonIntents(t *testing.T) {
	t.Run("wrapped intents field", func(t *testing.T) {
		client, closeFn := serveBody(t, http.StatusOK,
			`{"intents":[{"intent_id":"i1"},{"intent_id":"i2"}],"total_count":2}`)
		defer closeFn()

		intents, err := client.FetchWonIntents(context.Background())
		require.NoError(t, err)
		require.Len(t, intents, 2)
		assert.Equal(t, "i1", intents[0].ID)
	})

	t.Run("wrapped data field", func(t *testing.T) {
		client, closeFn := serveBody(t, http.StatusOK, `{"data":[{"intent_id":"i1"}]}`)
		defer closeFn()

		intents, err := client.FetchWonIntents(context.Background())
		require.NoError(t, err)
		require.Len(t, intents, 1)
	})

	t.Run("bare array", func(t *testing.T) {
		client, closeFn := serveBody(t, http.StatusOK, `[{"intent_id":"i1"}]`)
		defer closeFn()

		intents, err := client.FetchWonIntents(context.Background())
		require.NoError(t, err)
		require.Len(t, intents, 1)
	})

	t.Run("empty page", func(t *testing.T) {
		client, closeFn := serveBody(t, http.StatusOK, `{"page":1,"total_count":0}`)
		defer closeFn()

		intents, err := client.FetchWonIntents(context.Background())
		require.NoError(t, err)
		assert.Empty(t, intents)
	})

	t.Run("server error surfaces", func(t *testing.T) {
		client, closeFn := serveBody(t, http.StatusInternalServerError, `oops`)
		defer closeFn()

		_, err := client.FetchWonIntents(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("garbage body surfaces", func(t *testing.T) {
		client, closeFn := serveBody(t, http.StatusOK, `not json at all`)
		defer closeFn()

		_, err := client.FetchWonIntents(context.Background())
		require.Error(t, err)
	})
}
