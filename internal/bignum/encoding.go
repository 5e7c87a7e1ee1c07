package bignum

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// Wire layout:
//
//	[flags][layer][mantissa: 8 bytes, IEEE-754 big endian][exponent: zigzag varint]
//
// Zero is the single byte flagZero.
const (
	flagNegative byte = 1 << 0
	flagZero     byte = 1 << 1
)

func (x Number) AppendBinary(b []byte) ([]byte, error) {
	if x.sign == 0 {
		return append(b, flagZero), nil
	}
	var flags byte
	if x.sign < 0 {
		flags |= flagNegative
	}
	b = append(b, flags, x.layer)
	b = binary.BigEndian.AppendUint64(b, math.Float64bits(x.mant))
	return binary.AppendVarint(b, x.exp), nil
}

func (x Number) MarshalBinary() ([]byte, error) {
	return x.AppendBinary(make([]byte, 0, 12))
}

func (x *Number) UnmarshalBinary(data []byte) error {
	n, rest, err := DecodeBinary(data)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidNumber, len(rest))
	}
	*x = n
	return nil
}

// DecodeBinary reads one number from the front of data and returns the
// remaining bytes.
func DecodeBinary(data []byte) (Number, []byte, error) {
	if len(data) == 0 {
		return Zero, nil, fmt.Errorf("%w: empty input", ErrInvalidNumber)
	}
	flags := data[0]
	if flags == flagZero {
		return Zero, data[1:], nil
	}
	if flags&^flagNegative != 0 {
		return Zero, nil, fmt.Errorf("%w: bad flags %#x", ErrInvalidNumber, flags)
	}
	if len(data) < 10 {
		return Zero, nil, fmt.Errorf("%w: truncated", ErrInvalidNumber)
	}
	layer := data[1]
	mant := math.Float64frombits(binary.BigEndian.Uint64(data[2:10]))
	exp, n := binary.Varint(data[10:])
	if n <= 0 {
		return Zero, nil, fmt.Errorf("%w: bad exponent", ErrInvalidNumber)
	}
	x := Number{sign: 1, layer: layer, mant: mant, exp: exp}
	if flags&flagNegative != 0 {
		x.sign = -1
	}
	if !x.canonical() {
		return Zero, nil, fmt.Errorf("%w: not normalized", ErrInvalidNumber)
	}
	return x, data[10+n:], nil
}

func (x Number) canonical() bool {
	if x.sign == 0 {
		return x == Zero
	}
	if math.IsNaN(x.mant) || x.mant < 1 || x.mant >= 10 {
		return false
	}
	if x.exp > MaxExponent || x.exp < -MaxExponent {
		return false
	}
	if x.layer > 0 {
		return aboveLimit(x)
	}
	return true
}

func (x Number) MarshalText() ([]byte, error) {
	return []byte(x.String()), nil
}

func (x *Number) UnmarshalText(text []byte) error {
	n, err := Parse(string(text))
	if err != nil {
		return err
	}
	*x = n
	return nil
}

func (x Number) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, x.String()), nil
}

// UnmarshalJSON accepts the quoted string form as well as bare JSON numbers.
func (x *Number) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) > 0 && s[0] == '"' {
		var err error
		if s, err = strconv.Unquote(s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidNumber, err)
		}
	}
	return x.UnmarshalText([]byte(s))
}
