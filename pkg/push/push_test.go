package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend(t *testing.T) {
	t.Run("posts message", func(t *testing.T) {
		var got map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		err := New(srv.URL).Send(context.Background(), Message{
			Token:   "ExponentPushToken[abc]",
			Title:   "Product Approved",
			Message: `Your product "Drill" has been approved.`,
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"expoPushToken": "ExponentPushToken[abc]",
			"title":         "Product Approved",
			"message":       `Your product "Drill" has been approved.`,
		}, got)
	})

	t.Run("error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad token", http.StatusBadRequest)
		}))
		defer srv.Close()

		err := New(srv.URL).Send(context.Background(), Message{Token: "x"})
		assert.ErrorContains(t, err, "status=400")
	})

	t.Run("empty token", func(t *testing.T) {
		assert.Error(t, New("http://unused").Send(context.Background(), Message{}))
	})

	t.Run("discard", func(t *testing.T) {
		assert.NoError(t, Discard{}.Send(context.Background(), Message{}))
	})
}
