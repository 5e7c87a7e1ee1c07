package bignum

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestStringRoundTrip(t *testing.T) {
	values := []Number{
		Zero,
		One,
		FromInt(-1234),
		MustFromFloat(0.1),
		MustFromFloat(math.Pi),
		MustFromSci(1.5, 300000),
		MustFromSci(-7, -4000),
		layered(t, 1, 1.234, 20),
		layered(t, 3, 5, 16),
	}
	for _, v := range values {
		s := v.String()
		got, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if !got.Equals(v) {
			t.Fatalf("Parse(%q) = %s (layer %d), want layer %d", s, got, got.Layer(), v.Layer())
		}
	}
}

func TestScientificText(t *testing.T) {
	tests := []struct {
		in   Number
		want string
	}{
		{in: FromInt(400), want: "4e2"},
		{in: FromInt(-400), want: "-4e2"},
		{in: Zero, want: "0"},
		{in: layered(t, 1, 1.5, 20), want: "e1.5e20"},
	}
	for _, tc := range tests {
		if got := tc.in.String(); got != tc.want {
			t.Fatalf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestSuffixText(t *testing.T) {
	tests := []struct {
		in   Number
		want string
	}{
		{in: FromInt(999), want: "999"},
		{in: FromInt(1234), want: "1.23K"},
		{in: MustFromFloat(1.5e6), want: "1.5M"},
		{in: MustFromFloat(2.5e15), want: "2.5Qa"},
		{in: FromInt(-1234), want: "-1.23K"},
		{in: MustFromSci(1, 70), want: "1e70"},
		{in: Zero, want: "0"},
	}
	for _, tc := range tests {
		if got := tc.in.Text(Suffix); got != tc.want {
			t.Fatalf("Text(Suffix) of %s = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPlainText(t *testing.T) {
	if got := FromInt(400).Text(Plain); got != "400" {
		t.Fatalf("plain 400 = %q", got)
	}
	if got := MustFromFloat(0.25).Text(Plain); got != "0.25" {
		t.Fatalf("plain 0.25 = %q", got)
	}
	if got := MustFromSci(1, 40).Text(Plain); got != "1e40" {
		t.Fatalf("plain falls back to scientific, got %q", got)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "-", "e", "abc", "1e", "1.2.3", "1eX"} {
		if _, err := Parse(s); !errors.Is(err, ErrInvalidNumber) {
			t.Fatalf("Parse(%q) err=%v, want ErrInvalidNumber", s, err)
		}
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	values := []Number{
		Zero,
		FromInt(-3),
		MustFromSci(2.75, -123456),
		layered(t, 2, 7.5, 30),
	}
	for _, v := range values {
		b, err := v.MarshalBinary()
		if err != nil {
			t.Fatalf("MarshalBinary(%s): %v", v, err)
		}
		var got Number
		if err := got.UnmarshalBinary(b); err != nil {
			t.Fatalf("UnmarshalBinary(%s): %v", v, err)
		}
		if !got.Equals(v) {
			t.Fatalf("binary round trip: got %s want %s", got, v)
		}
	}
	if b, _ := Zero.MarshalBinary(); len(b) != 1 {
		t.Fatalf("zero encodes to %d bytes, want 1", len(b))
	}
}

func TestBinaryRejectsMalformed(t *testing.T) {
	good, err := FromInt(12).MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	unnormalized, _ := FromInt(12).MarshalBinary()
	unnormalized[2] = 0x3f // mantissa 0.5-ish
	unnormalized[3] = 0xe0

	tests := map[string][]byte{
		"empty":     nil,
		"truncated": good[:5],
		"trailing":  append(append([]byte{}, good...), 0),
		"bad flags": append([]byte{0x04}, good[1:]...),
		"mantissa":  unnormalized,
	}
	for name, data := range tests {
		var n Number
		if err := n.UnmarshalBinary(data); !errors.Is(err, ErrInvalidNumber) {
			t.Fatalf("%s: err=%v, want ErrInvalidNumber", name, err)
		}
	}
}

func TestJSON(t *testing.T) {
	type doc struct {
		N Number `json:"n"`
	}
	b, err := json.Marshal(doc{N: FromInt(400)})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"n":"4e2"}` {
		t.Fatalf("Marshal = %s", b)
	}

	var d doc
	if err := json.Unmarshal([]byte(`{"n":"e1.5e20"}`), &d); err != nil {
		t.Fatalf("Unmarshal string: %v", err)
	}
	if !d.N.Equals(layered(t, 1, 1.5, 20)) {
		t.Fatalf("Unmarshal string = %s", d.N)
	}
	if err := json.Unmarshal([]byte(`{"n":12.5}`), &d); err != nil {
		t.Fatalf("Unmarshal bare number: %v", err)
	}
	if !d.N.Equals(MustFromFloat(12.5)) {
		t.Fatalf("Unmarshal bare number = %s", d.N)
	}
	if err := json.Unmarshal([]byte(`{"n":"twelve"}`), &d); err == nil {
		t.Fatalf("expected error for bad number")
	}
}
