package chatbot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req["message"] == "boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"answer": "echo: " + req["message"]})
	}))
	defer srv.Close()

	c := New(srv.URL)

	answer, err := c.Ask(context.Background(), "how many products?")
	require.NoError(t, err)
	assert.Equal(t, "echo: how many products?", answer)

	_, err = c.Ask(context.Background(), "boom")
	assert.ErrorContains(t, err, "status=500")
}

func TestDefaultURL(t *testing.T) {
	assert.Equal(t, DefaultURL, New("").URL)
}
