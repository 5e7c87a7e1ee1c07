package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"refinery/internal/bignum"
	"refinery/internal/currency"
	"refinery/internal/revenue"
)

func TestClientSendsKeyAndIdempotency(t *testing.T) {
	var gotAuth, gotIdem, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotIdem = r.Header.Get("Idempotency-Key")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"furnace": "basic-furnace",
			"count": 10,
			"result": {"delta": {"Funds": "6e1"}, "nerf": "1e0", "trace": ["RAW", "GLOBAL_BOOSTED", "SOURCE_BOOSTED", "SOFTCAPPED", "FINAL"], "pass_through": false},
			"balance": {"Funds": "8.5e1"},
			"peak": {"Funds": "8.5e1"},
			"preview": false
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "k3y")
	out, err := c.Droplets(context.Background(), "miner", "basic-furnace", 10, "idem-1")
	if err != nil {
		t.Fatalf("Droplets: %v", err)
	}
	if gotAuth != "Bearer k3y" || gotIdem != "idem-1" {
		t.Fatalf("headers auth=%q idem=%q", gotAuth, gotIdem)
	}
	if gotPath != "/v1/players/miner/droplets" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody["furnace"] != "basic-furnace" || gotBody["count"].(float64) != 10 {
		t.Fatalf("body = %v", gotBody)
	}
	if !out.Result.Delta.Get(currency.Funds).Equals(bignum.FromInt(60)) {
		t.Fatalf("delta = %s", out.Result.Delta)
	}
	if len(out.Result.Trace) != 5 || out.Result.Trace[4] != revenue.StageFinal {
		t.Fatalf("trace = %v", out.Result.Trace)
	}
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"insufficient funds"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").BuyUpgrade(context.Background(), "miner", "conveyor-speed", "idem-2")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err=%v, want *APIError", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || apiErr.Message != "insufficient funds" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
	if !apiErr.Permanent() {
		t.Fatalf("422 should be permanent")
	}
}

func TestAPIErrorPermanent(t *testing.T) {
	tests := map[int]bool{
		http.StatusBadRequest:          true,
		http.StatusNotFound:            true,
		http.StatusConflict:            false,
		http.StatusTooManyRequests:     false,
		http.StatusInternalServerError: false,
		http.StatusServiceUnavailable:  false,
	}
	for status, want := range tests {
		if got := (&APIError{Status: status}).Permanent(); got != want {
			t.Fatalf("status %d permanent=%v, want %v", status, got, want)
		}
	}
}

func TestWalletDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/players/miner/wallet" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"player_id":"miner","balance":{"Funds":"2.5e1","DarkMatter":"e1.5e20"},"peak":{"Funds":"2.5e1"},"upgrades":{"ore-purity":2},"updated_at":"2026-01-02T03:04:05Z"}`))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, "").Wallet(context.Background(), "miner")
	if err != nil {
		t.Fatalf("Wallet: %v", err)
	}
	if !out.Balance.Get(currency.Funds).Equals(bignum.FromInt(25)) {
		t.Fatalf("Funds = %s", out.Balance.Get(currency.Funds))
	}
	if out.Balance.Get(currency.DarkMatter).Layer() != 1 {
		t.Fatalf("DarkMatter = %s", out.Balance.Get(currency.DarkMatter))
	}
	if out.Upgrades["ore-purity"] != 2 {
		t.Fatalf("upgrades = %v", out.Upgrades)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if _, err := LoadProfile(); err == nil {
		t.Fatalf("expected error without profile")
	}
	if err := SaveProfile(Profile{PlayerID: "x"}); err == nil {
		t.Fatalf("expected invalid player id to be rejected")
	}
	want := Profile{PlayerID: "miner", APIBaseURL: "http://localhost:8080"}
	if err := SaveProfile(want); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	got, err := LoadProfile()
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
	if err := ClearProfile(); err != nil {
		t.Fatalf("ClearProfile: %v", err)
	}
	if _, err := LoadProfile(); err == nil {
		t.Fatalf("expected error after clear")
	}
}
