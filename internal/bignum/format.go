package bignum

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Notation uint8

const (
	// Scientific renders mantissa "e" exponent with the shortest mantissa
	// that parses back to the same value. Layered numbers get one leading
	// "e" per layer.
	Scientific Notation = iota
	// Suffix renders short-scale suffixes (1.23K, 4.5Qa) with two decimals,
	// falling back to a truncated scientific form past the suffix table.
	Suffix
	// Plain renders a decimal literal where a float64 can hold the value.
	Plain
)

var suffixes = []string{
	"", "K", "M", "B", "T", "Qa", "Qi", "Sx", "Sp", "Oc", "No",
	"Dc", "UDc", "DDc", "TDc", "QaDc", "QiDc", "SxDc", "SpDc", "OcDc", "NoDc", "Vg",
}

func (x Number) String() string {
	return x.Text(Scientific)
}

func (x Number) Text(n Notation) string {
	switch n {
	case Suffix:
		return x.suffixText()
	case Plain:
		if x.layer == 0 && x.exp >= -6 && x.exp < 16 {
			return strconv.FormatFloat(x.Float64(), 'f', -1, 64)
		}
	}
	return x.sciText(-1)
}

func (x Number) sciText(digits int) string {
	if x.sign == 0 {
		return "0"
	}
	var b strings.Builder
	if x.sign < 0 {
		b.WriteByte('-')
	}
	for range x.layer {
		b.WriteByte('e')
	}
	m := x.mant
	if digits >= 0 {
		scale := math.Pow10(digits)
		m = math.Floor(m*scale) / scale
	}
	ms := strconv.FormatFloat(m, 'f', digits, 64)
	if digits > 0 {
		ms = strings.TrimRight(strings.TrimRight(ms, "0"), ".")
	}
	b.WriteString(ms)
	b.WriteByte('e')
	b.WriteString(strconv.FormatInt(x.exp, 10))
	return b.String()
}

func (x Number) suffixText() string {
	if x.sign == 0 {
		return "0"
	}
	if x.layer > 0 || x.exp < -2 || x.exp >= int64(3*len(suffixes)) {
		return x.sciText(2)
	}
	group := int64(0)
	if x.exp > 0 {
		group = x.exp / 3
	}
	scaled := x.mant * math.Pow10(int(x.exp-3*group))
	scaled = math.Floor(scaled*100+1e-9) / 100
	s := strconv.FormatFloat(scaled, 'f', 2, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if x.sign < 0 {
		s = "-" + s
	}
	return s + suffixes[group]
}

// Parse reads the forms produced by Text(Scientific) and plain decimal
// literals: "400", "-1.5e300000", "e1.2e16" (10^1.2e16).
func Parse(s string) (Number, error) {
	s = strings.TrimSpace(s)
	raw := s
	neg := false
	if strings.HasPrefix(s, "-") {
		neg, s = true, s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	layers := 0
	for len(s) > 0 && (s[0] == 'e' || s[0] == 'E') {
		layers++
		s = s[1:]
	}
	if s == "" || layers > MaxLayer {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
	}
	n, err := parseSci(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
	}
	for range layers {
		n = exp10(n)
	}
	if neg {
		n = n.Neg()
	}
	return n, nil
}

func MustParse(s string) Number {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

func parseSci(s string) (Number, error) {
	i := strings.IndexAny(s, "eE")
	if i < 0 {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Zero, err
		}
		return FromFloat(f)
	}
	m, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return Zero, err
	}
	e, err := strconv.ParseInt(strings.TrimPrefix(s[i+1:], "+"), 10, 64)
	if err != nil {
		return Zero, err
	}
	return FromSci(m, e)
}
