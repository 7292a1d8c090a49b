package app

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"elo-sync/internal/config"
	"elo-sync/internal/usecase/rating"

	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type ratingData struct {
	Rating int `json:"rating"`
	Rank   struct {
		Key string `json:"key"`
	} `json:"rank"`
	Progress        float64 `json:"progress"`
	ProgressPercent float64 `json:"progress_percent"`
}

func testConfig() config.Config {
	return config.Config{
		App: config.AppConfig{AppName: "elo-test", HTTPPort: "0"},
		Store: config.StoreConfig{
			Backend:       config.BackendMemory,
			Key:           rating.DefaultKey,
			DefaultRating: rating.DefaultRating,
			NoUserPolicy:  "transient",
			TierPreset:    "standard",
			Origin:        "test",
		},
	}
}

func newTestApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	c, err := NewContainer(cfg, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return New(c)
}

func call(t *testing.T, a *App, method, path, body string) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.Fiber.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.Equal(t, resp.StatusCode, env.Status)
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestApp_Health(t *testing.T) {
	a := newTestApp(t, testConfig())
	status, env := call(t, a, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"backend":"memory"}`, string(env.Data))
}

func TestApp_RatingLifecycle(t *testing.T) {
	a := newTestApp(t, testConfig())

	status, env := call(t, a, http.MethodGet, "/api/v1/elo", "")
	require.Equal(t, http.StatusOK, status)
	got := decode[ratingData](t, env.Data)
	require.Equal(t, 1200, got.Rating)
	require.Equal(t, "beginner", got.Rank.Key)

	status, _ = call(t, a, http.MethodPut, "/api/v1/session", `{"name":"Ana","avatar":"🦊","elo":1850,"theme":"dark"}`)
	require.Equal(t, http.StatusOK, status)

	status, env = call(t, a, http.MethodPost, "/api/v1/elo/delta", `{"delta":25}`)
	require.Equal(t, http.StatusOK, status)
	got = decode[ratingData](t, env.Data)
	require.Equal(t, 1875, got.Rating)
	require.Equal(t, "advanced", got.Rank.Key)
	require.InDelta(t, 0.1879, got.Progress, 0.0001)

	status, env = call(t, a, http.MethodPut, "/api/v1/elo", `{"rating":-40}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 0, decode[ratingData](t, env.Data).Rating)

	// Unknown fields survive rating writes.
	status, env = call(t, a, http.MethodGet, "/api/v1/session", "")
	require.Equal(t, http.StatusOK, status)
	sess := decode[struct {
		User map[string]any `json:"user"`
	}](t, env.Data)
	require.Equal(t, "dark", sess.User["theme"])
	require.EqualValues(t, 0, sess.User["elo"])

	status, env = call(t, a, http.MethodDelete, "/api/v1/session", "")
	require.Equal(t, http.StatusOK, status)
	view := decode[struct {
		LoggedIn bool `json:"logged_in"`
		Rating   int  `json:"rating"`
	}](t, env.Data)
	require.False(t, view.LoggedIn)
	require.Equal(t, 1200, view.Rating)

	status, _ = call(t, a, http.MethodGet, "/api/v1/session", "")
	require.Equal(t, http.StatusNotFound, status)
}

func TestApp_DeltaCoercion(t *testing.T) {
	cases := []struct {
		body string
		want int
	}{
		{body: `{"delta":"25"}`, want: 1875},
		{body: `{"delta":true}`, want: 1851},
		{body: `{"delta":"abc"}`, want: 1850},
		{body: `{"delta":null}`, want: 1850},
		{body: `{}`, want: 1850},
		{body: `{"delta":-12.9}`, want: 1838},
	}
	for _, tc := range cases {
		t.Run(tc.body, func(t *testing.T) {
			a := newTestApp(t, testConfig())
			status, _ := call(t, a, http.MethodPut, "/api/v1/session", `{"name":"Ana","elo":1850}`)
			require.Equal(t, http.StatusOK, status)

			status, env := call(t, a, http.MethodPost, "/api/v1/elo/delta", tc.body)
			require.Equal(t, http.StatusOK, status)
			require.Equal(t, tc.want, decode[ratingData](t, env.Data).Rating)
		})
	}
}

func TestApp_RejectsNonObjectLogin(t *testing.T) {
	a := newTestApp(t, testConfig())
	for _, body := range []string{`null`, `[1,2]`, `"ana"`, `garbage`} {
		status, env := call(t, a, http.MethodPut, "/api/v1/session", body)
		require.Equal(t, http.StatusBadRequest, status, body)
		require.NotEmpty(t, env.Message)
	}
}

func TestApp_BadJSONBody(t *testing.T) {
	a := newTestApp(t, testConfig())
	status, env := call(t, a, http.MethodPost, "/api/v1/elo/delta", `{"delta":`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "bad request", env.Message)
}

func TestApp_TiersAndHeader(t *testing.T) {
	cfg := testConfig()
	cfg.Store.TierPreset = "compact"
	a := newTestApp(t, cfg)

	status, env := call(t, a, http.MethodGet, "/api/v1/tiers", "")
	require.Equal(t, http.StatusOK, status)
	tiers := decode[struct {
		Tiers []struct {
			Key string `json:"key"`
		} `json:"tiers"`
	}](t, env.Data)
	require.Len(t, tiers.Tiers, 3)

	status, env = call(t, a, http.MethodGet, "/api/v1/header", "")
	require.Equal(t, http.StatusOK, status)
	view := decode[struct {
		RatingLabel string `json:"rating_label"`
		Avatar      struct {
			Kind  string `json:"kind"`
			Value string `json:"value"`
		} `json:"avatar"`
	}](t, env.Data)
	require.Equal(t, "1200 ELO", view.RatingLabel)
	require.Equal(t, "U", view.Avatar.Value)
}

func TestApp_IgnorePolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Store.NoUserPolicy = "ignore"
	a := newTestApp(t, cfg)

	status, env := call(t, a, http.MethodPost, "/api/v1/elo/delta", `{"delta":100}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1200, decode[ratingData](t, env.Data).Rating)
}

func TestApp_MetricsFollowChanges(t *testing.T) {
	a := newTestApp(t, testConfig())
	call(t, a, http.MethodPut, "/api/v1/elo", `{"rating":3100}`)

	resp, err := a.Fiber.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "elo_rating 3100")
	require.Contains(t, string(body), `elo_rank_tier{tier="grandmaster"} 1`)
}

func TestNewContainer_InvalidSettings(t *testing.T) {
	cfg := testConfig()
	cfg.Store.NoUserPolicy = "sometimes"
	_, err := NewContainer(cfg, nil)
	require.ErrorIs(t, err, rating.ErrInvalidPolicy)

	cfg = testConfig()
	cfg.Store.TierPreset = "unknown"
	_, err = NewContainer(cfg, nil)
	require.Error(t, err)
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	a := newTestApp(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestListenAddr(t *testing.T) {
	addr, err := ListenAddr("8080")
	require.NoError(t, err)
	require.Equal(t, ":8080", addr)
	addr, err = ListenAddr(":9090")
	require.NoError(t, err)
	require.Equal(t, ":9090", addr)
	_, err = ListenAddr(" ")
	require.Error(t, err)
}
