package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NastyaGoryachaya/coin-dashboard/internal/config"
)

const marketsBody = `[
  {"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":70000,"price_change_percentage_24h":1.5,"market_cap":1300000000000},
  {"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":3500,"price_change_percentage_24h":null,"market_cap":null}
]`

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()
	return config.Config{
		Refresh: config.RefreshConfig{
			DefaultInterval:  time.Hour,
			MaxInterval:      2 * time.Hour,
			MaxHistoryPoints: 120,
			SinkTimeout:      time.Second,
		},
		CoinGecko: config.CoinGeckoConfig{
			BaseURL:        baseURL,
			Currency:       "usd",
			PerPage:        10,
			ConnectTimeout: time.Second,
			ReadTimeout:    time.Second,
		},
		Favorites: config.FavoritesConfig{DataDir: t.TempDir(), FileName: "favorites.txt"},
	}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRun_FetchesAndStopsOnCancel(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, marketsBody)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := NewApp(ctx, testConfig(t, srv.URL), discard())
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for len(a.state.Snapshot().Coins) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first fetch was not published")
		}
		time.Sleep(10 * time.Millisecond)
	}

	snap := a.state.Snapshot()
	if snap.Coins[0].Symbol != "BTC" || snap.Coins[1].Change24h != 0 {
		t.Fatalf("unexpected coins: %+v", snap.Coins)
	}
	if snap.Status != "Live data: refreshed every 3600s" {
		t.Fatalf("unexpected status: %q", snap.Status)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestNewApp_TelegramWithoutToken(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Telegram = config.TelegramConfig{Enabled: true}

	if _, err := NewApp(context.Background(), cfg, discard()); err == nil {
		t.Fatal("expected error for empty telegram token")
	}
}
