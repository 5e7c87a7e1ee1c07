package currency

import (
	"encoding/json"
	"errors"
	"fmt"

	"refinery/internal/bignum"
)

var ErrInvalidBundle = errors.New("invalid bundle")

// MarshalJSON writes an object keyed by currency name.
func (b Bundle) MarshalJSON() ([]byte, error) {
	m := make(map[string]bignum.Number, b.Len())
	for c, n := range b.All() {
		m[c.String()] = n
	}
	return json.Marshal(m)
}

func (b *Bundle) UnmarshalJSON(data []byte) error {
	var m map[string]bignum.Number
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	var out Bundle
	for name, n := range m {
		c, err := ParseCurrency(name)
		if err != nil {
			return err
		}
		out.Set(c, n)
	}
	*b = out
	return nil
}

// AppendBinary writes [count][currency][number]... using the bignum wire form
// for each amount.
func (b Bundle) AppendBinary(dst []byte) ([]byte, error) {
	dst = append(dst, byte(b.Len()))
	for c, n := range b.All() {
		dst = append(dst, byte(c))
		var err error
		if dst, err = n.AppendBinary(dst); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func (b Bundle) MarshalBinary() ([]byte, error) {
	return b.AppendBinary(make([]byte, 0, 1+12*b.Len()))
}

func (b *Bundle) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty input", ErrInvalidBundle)
	}
	count := int(data[0])
	if count > Count {
		return fmt.Errorf("%w: %d entries", ErrInvalidBundle, count)
	}
	rest := data[1:]
	var out Bundle
	for range count {
		if len(rest) == 0 {
			return fmt.Errorf("%w: truncated", ErrInvalidBundle)
		}
		c := Currency(rest[0])
		if !c.Valid() {
			return fmt.Errorf("%w: currency %d", ErrUnknownCurrency, rest[0])
		}
		if out.Has(c) {
			return fmt.Errorf("%w: duplicate %s", ErrInvalidBundle, c)
		}
		n, tail, err := bignum.DecodeBinary(rest[1:])
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidBundle, c, err)
		}
		out.Set(c, n)
		rest = tail
	}
	if len(rest) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidBundle, len(rest))
	}
	*b = out
	return nil
}
