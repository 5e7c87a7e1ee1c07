package bignum

import "math"

// Cmp returns -1, 0 or +1 as x is less than, equal to or greater than y.
func (x Number) Cmp(y Number) int {
	if x.sign != y.sign {
		if x.sign < y.sign {
			return -1
		}
		return 1
	}
	c := cmpAbs(x, y)
	if x.sign < 0 {
		return -c
	}
	return c
}

func (x Number) Lt(y Number) bool  { return x.Cmp(y) < 0 }
func (x Number) Lte(y Number) bool { return x.Cmp(y) <= 0 }
func (x Number) Gt(y Number) bool  { return x.Cmp(y) > 0 }
func (x Number) Gte(y Number) bool { return x.Cmp(y) >= 0 }

// Equals reports whether x and y have the same normalized form.
func (x Number) Equals(y Number) bool {
	return x == y
}

// ApproxEquals reports whether x and y differ by at most relTol relative to
// the larger magnitude.
func (x Number) ApproxEquals(y Number, relTol float64) bool {
	if x == y {
		return true
	}
	if x.sign != y.sign {
		return false
	}
	if x.layer != y.layer {
		return false
	}
	if x.layer > 0 {
		// compare the inner values
		xi, yi := x, y
		xi.layer, yi.layer = 0, 0
		xi.sign, yi.sign = 1, 1
		return xi.ApproxEquals(yi, relTol)
	}
	diff := x.Sub(y).Abs()
	bound := Max(x.Abs(), y.Abs()).Mul(fromParts(math.Abs(relTol), 0))
	return diff.Lte(bound)
}

func cmpAbs(x, y Number) int {
	switch {
	case x.sign == 0 && y.sign == 0:
		return 0
	case x.sign == 0:
		return -1
	case y.sign == 0:
		return 1
	case x.layer != y.layer:
		if x.layer < y.layer {
			return -1
		}
		return 1
	case x.exp != y.exp:
		if x.exp < y.exp {
			return -1
		}
		return 1
	case x.mant != y.mant:
		if x.mant < y.mant {
			return -1
		}
		return 1
	}
	return 0
}
