package currency

import (
	"iter"
	"strings"

	"refinery/internal/bignum"
)

// Bundle maps currencies to amounts. A currency that is absent reads as zero.
// The zero value is an empty bundle ready for use. Arithmetic returns new
// bundles; the InPlace variants and Set/Delete mutate the receiver.
type Bundle struct {
	vals    [numCurrencies]bignum.Number
	present uint32
}

func bit(c Currency) uint32 { return 1 << c }

// Single returns a bundle holding one entry.
func Single(c Currency, n bignum.Number) Bundle {
	var b Bundle
	b.Set(c, n)
	return b
}

func FromMap(m map[Currency]bignum.Number) Bundle {
	var b Bundle
	for c, n := range m {
		b.Set(c, n)
	}
	return b
}

// Ones returns a bundle with every known currency set to exactly one.
func Ones() Bundle {
	return Fill(bignum.One)
}

// Fill returns a bundle with every known currency set to n.
func Fill(n bignum.Number) Bundle {
	var b Bundle
	for c := range numCurrencies {
		b.vals[c] = n
	}
	b.present = 1<<numCurrencies - 1
	return b
}

func (b Bundle) Get(c Currency) bignum.Number {
	if !c.Valid() || b.present&bit(c) == 0 {
		return bignum.Zero
	}
	return b.vals[c]
}

// Has reports whether c has an entry, including an explicit zero.
func (b Bundle) Has(c Currency) bool {
	return c.Valid() && b.present&bit(c) != 0
}

// Set stores n under c. Unknown currencies are ignored.
func (b *Bundle) Set(c Currency, n bignum.Number) *Bundle {
	if !c.Valid() {
		return b
	}
	b.vals[c] = n
	b.present |= bit(c)
	return b
}

// Delete removes the entry for c so it reads as zero again.
func (b *Bundle) Delete(c Currency) *Bundle {
	if !c.Valid() {
		return b
	}
	b.vals[c] = bignum.Zero
	b.present &^= bit(c)
	return b
}

func (b Bundle) Len() int {
	n := 0
	for m := b.present; m != 0; m &= m - 1 {
		n++
	}
	return n
}

// IsZero reports whether every entry is zero.
func (b Bundle) IsZero() bool {
	for _, n := range b.All() {
		if !n.IsZero() {
			return false
		}
	}
	return true
}

// All iterates the present entries in currency order.
func (b Bundle) All() iter.Seq2[Currency, bignum.Number] {
	return func(yield func(Currency, bignum.Number) bool) {
		for c := range numCurrencies {
			if b.present&bit(c) == 0 {
				continue
			}
			if !yield(c, b.vals[c]) {
				return
			}
		}
	}
}

func (b Bundle) Currencies() []Currency {
	out := make([]Currency, 0, b.Len())
	for c := range b.All() {
		out = append(out, c)
	}
	return out
}

// Clone returns an independent copy. Bundles are plain values, so this is
// the same as assignment; it exists to make intent visible at call sites.
func (b Bundle) Clone() Bundle {
	return b
}

func (b Bundle) zip(o Bundle, f func(x, y bignum.Number) bignum.Number) Bundle {
	out := Bundle{present: b.present | o.present}
	for c := range numCurrencies {
		if out.present&bit(c) == 0 {
			continue
		}
		out.vals[c] = f(b.Get(c), o.Get(c))
	}
	return out
}

func (b Bundle) each(f func(x bignum.Number) bignum.Number) Bundle {
	out := b
	for c := range numCurrencies {
		if out.present&bit(c) != 0 {
			out.vals[c] = f(out.vals[c])
		}
	}
	return out
}

// Add sums per currency over the union of keys.
func (b Bundle) Add(o Bundle) Bundle {
	return b.zip(o, bignum.Number.Add)
}

// Sub subtracts per currency over the union of keys.
func (b Bundle) Sub(o Bundle) Bundle {
	return b.zip(o, bignum.Number.Sub)
}

func (b *Bundle) AddInPlace(o Bundle) *Bundle {
	*b = b.Add(o)
	return b
}

func (b *Bundle) SubInPlace(o Bundle) *Bundle {
	*b = b.Sub(o)
	return b
}

// Mul multiplies per currency over the union of keys; a missing side is zero.
func (b Bundle) Mul(o Bundle) Bundle {
	return b.zip(o, bignum.Number.Mul)
}

// Div divides per currency over the union of keys. Division by a missing or
// zero entry yields zero.
func (b Bundle) Div(o Bundle) Bundle {
	return b.zip(o, bignum.Number.Div)
}

// Pow raises each entry to the matching entry of o over the union of keys.
func (b Bundle) Pow(o Bundle) Bundle {
	return b.zip(o, bignum.Number.Pow)
}

// Max keeps the larger amount per currency, as used for high-water marks.
func (b Bundle) Max(o Bundle) Bundle {
	return b.zip(o, bignum.Max)
}

func (b Bundle) MulConstant(s bignum.Number) Bundle {
	return b.each(func(x bignum.Number) bignum.Number { return x.Mul(s) })
}

func (b Bundle) PowConstant(s bignum.Number) Bundle {
	return b.each(func(x bignum.Number) bignum.Number { return x.Pow(s) })
}

// CanAfford reports whether b covers cost in every currency cost names. On
// success remaining, when non-nil, receives b minus cost with untouched
// currencies copied through. b is never modified. On failure remaining is
// left in an unspecified state.
func (b Bundle) CanAfford(cost Bundle, remaining *Bundle) bool {
	for c, need := range cost.All() {
		if b.Get(c).Lt(need) {
			return false
		}
	}
	if remaining != nil {
		*remaining = b.Sub(cost)
	}
	return true
}

// Equals compares every currency, treating absent entries as zero.
func (b Bundle) Equals(o Bundle) bool {
	for c := range numCurrencies {
		if !b.Get(c).Equals(o.Get(c)) {
			return false
		}
	}
	return true
}

// HasAll reports whether every known currency holds a non-zero amount.
func (b Bundle) HasAll() bool {
	for c := range numCurrencies {
		if b.Get(c).IsZero() {
			return false
		}
	}
	return true
}

func (b Bundle) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	for c, n := range b.All() {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(c.String())
		sb.WriteString(": ")
		sb.WriteString(n.String())
	}
	sb.WriteByte('}')
	return sb.String()
}
