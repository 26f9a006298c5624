package caption

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"photoindex/config"
)

func newTestClient(baseURL string) *Client {
	return New(config.CaptionConfig{
		BaseURL:           baseURL,
		RequestsPerSecond: 1000,
		Timeout:           time.Second,
	}, zap.NewNop())
}

func TestClient_EmptyBaseURLIsDisabled(t *testing.T) {
	c := newTestClient("")
	_, err := c.Caption(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrDisabled)
}

func TestClient_CaptionAndTagsSucceed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/caption":
			w.Write([]byte(`{"text":"a cat on a windowsill"}`))
		case "/tags":
			w.Write([]byte(`{"tags":["cat","window"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	text, err := c.Caption(context.Background(), []byte("img"))
	require.NoError(t, err)
	require.Equal(t, "a cat on a windowsill", text)

	tags, err := c.Tags(context.Background(), []byte("img"))
	require.NoError(t, err)
	require.Equal(t, []string{"cat", "window"}, tags)
}

func TestClient_FailureEntersCooldownAndSubsequentCallsAreDisabled(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	_, err := c.Caption(context.Background(), []byte("img"))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDisabled)
	require.Equal(t, 1, calls)

	// Still within the cooldown window: the client must not hit the
	// endpoint again and instead fail fast with ErrDisabled.
	_, err = c.Tags(context.Background(), []byte("img"))
	require.ErrorIs(t, err, ErrDisabled)
	require.Equal(t, 1, calls)
}

func TestClient_NonOKStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Caption(context.Background(), []byte("img"))
	require.Error(t, err)
}
