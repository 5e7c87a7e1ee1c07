package main

import (
	"errors"
	"testing"

	"refinery/internal/bignum"
	cl "refinery/internal/cli"
	"refinery/internal/currency"
	"refinery/internal/syncq"
)

func TestEvalArgs(t *testing.T) {
	tests := []struct {
		args []string
		want bignum.Number
	}{
		{args: []string{"4e2"}, want: bignum.FromInt(400)},
		{args: []string{"4e2", "+", "1e2"}, want: bignum.FromInt(500)},
		{args: []string{"4e2", "x", "2"}, want: bignum.FromInt(800)},
		{args: []string{"1e500", "div", "1e500"}, want: bignum.One},
		{args: []string{"9", "sqrt"}, want: bignum.MustFromFloat(3)},
		{args: []string{"5", "/", "0"}, want: bignum.Zero},
	}
	for _, tc := range tests {
		got, err := evalArgs(tc.args)
		if err != nil {
			t.Fatalf("%v: %v", tc.args, err)
		}
		if !got.Equals(tc.want) {
			t.Fatalf("%v = %s, want %s", tc.args, got, tc.want)
		}
	}

	if _, err := evalArgs([]string{"1", "frob", "2"}); err == nil {
		t.Fatalf("expected unknown op error")
	}
	if _, err := evalArgs([]string{"-1", "log10"}); !errors.Is(err, bignum.ErrDomain) {
		t.Fatalf("err=%v, want ErrDomain", err)
	}
}

func TestParseNotation(t *testing.T) {
	for in, want := range map[string]bignum.Notation{"": bignum.Scientific, "SCI": bignum.Scientific, "suffix": bignum.Suffix, "plain": bignum.Plain} {
		got, err := parseNotation(in)
		if err != nil || got != want {
			t.Fatalf("parseNotation(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := parseNotation("roman"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseLevels(t *testing.T) {
	got, err := parseLevels([]string{"conveyor-speed=3", " ore-purity = 1"})
	if err != nil {
		t.Fatalf("parseLevels: %v", err)
	}
	if got["conveyor-speed"] != 3 || got["ore-purity"] != 1 {
		t.Fatalf("levels = %v", got)
	}
	for _, bad := range []string{"noequals", "=3", "x=-1", "x=abc"} {
		if _, err := parseLevels([]string{bad}); err == nil {
			t.Fatalf("expected %q to fail", bad)
		}
	}
}

func TestParseBundle(t *testing.T) {
	got, err := parseBundle([]string{"Funds=1e15", "darkmatter=e1e20"})
	if err != nil {
		t.Fatalf("parseBundle: %v", err)
	}
	if !got.Get(currency.Funds).Equals(bignum.MustParse("1e15")) || got.Get(currency.DarkMatter).Layer() != 1 {
		t.Fatalf("bundle = %s", got)
	}
	if _, err := parseBundle([]string{"Gold=1"}); !errors.Is(err, currency.ErrUnknownCurrency) {
		t.Fatalf("err=%v, want ErrUnknownCurrency", err)
	}
}

func TestQueueOnNetworkError(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cmd := syncq.Command{Method: "POST", Path: "/v1/players/miner/droplets", IdempotencyKey: "k1"}

	apiErr := &cl.APIError{Status: 422, Message: "insufficient funds"}
	if err := queueOnNetworkError(apiErr, cmd); !errors.Is(err, apiErr) {
		t.Fatalf("api error should pass through, got %v", err)
	}
	if err := queueOnNetworkError(errors.New("dial tcp: connection refused"), cmd); err != nil {
		t.Fatalf("network error should be queued, got %v", err)
	}
	queued, err := syncq.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(queued) != 1 || queued[0].IdempotencyKey != "k1" {
		t.Fatalf("queue = %+v", queued)
	}
}
