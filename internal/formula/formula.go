package formula

import (
	"errors"
	"fmt"
	"strings"

	"refinery/internal/bignum"
)

var ErrUnknownKind = errors.New("unknown formula operation")

type Kind uint8

const (
	Add Kind = iota
	Sub
	Mul
	Div
	Pow
	Sqrt
	Ln
	Log
)

var kindNames = [...]string{
	Add:  "add",
	Sub:  "sub",
	Mul:  "mul",
	Div:  "div",
	Pow:  "pow",
	Sqrt: "sqrt",
	Ln:   "ln",
	Log:  "log",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// HasOperand reports whether operations of this kind carry an operand.
func (k Kind) HasOperand() bool {
	return k != Sqrt && k != Ln
}

func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Operation is one step of a formula. Operand is the right-hand side for
// add/sub/mul/div/pow and the base for log; it is unused otherwise.
type Operation struct {
	Kind    Kind
	Operand bignum.Number
}

// Formula is an ordered list of operations applied left to right to a single
// input. Builder methods append and return the receiver so calls chain.
type Formula struct {
	steps []Operation
}

func New() *Formula {
	return &Formula{}
}

func (f *Formula) Append(op Operation) *Formula {
	f.steps = append(f.steps, op)
	return f
}

func (f *Formula) Add(n bignum.Number) *Formula { return f.Append(Operation{Kind: Add, Operand: n}) }
func (f *Formula) Sub(n bignum.Number) *Formula { return f.Append(Operation{Kind: Sub, Operand: n}) }
func (f *Formula) Mul(n bignum.Number) *Formula { return f.Append(Operation{Kind: Mul, Operand: n}) }
func (f *Formula) Div(n bignum.Number) *Formula { return f.Append(Operation{Kind: Div, Operand: n}) }
func (f *Formula) Pow(n bignum.Number) *Formula { return f.Append(Operation{Kind: Pow, Operand: n}) }
func (f *Formula) Sqrt() *Formula               { return f.Append(Operation{Kind: Sqrt}) }
func (f *Formula) Ln() *Formula                 { return f.Append(Operation{Kind: Ln}) }

func (f *Formula) Log(base bignum.Number) *Formula {
	return f.Append(Operation{Kind: Log, Operand: base})
}

// Steps returns a copy of the operations.
func (f *Formula) Steps() []Operation {
	if f == nil {
		return nil
	}
	out := make([]Operation, len(f.steps))
	copy(out, f.steps)
	return out
}

func (f *Formula) Len() int {
	if f == nil {
		return 0
	}
	return len(f.steps)
}

// Apply folds the operations over x. Logarithms and square roots of
// non-positive intermediates produce zero so the formula stays total.
// A nil formula is the identity.
func (f *Formula) Apply(x bignum.Number) bignum.Number {
	if f == nil {
		return x
	}
	for _, op := range f.steps {
		x = op.apply(x)
	}
	return x
}

func (op Operation) apply(x bignum.Number) bignum.Number {
	switch op.Kind {
	case Add:
		return x.Add(op.Operand)
	case Sub:
		return x.Sub(op.Operand)
	case Mul:
		return x.Mul(op.Operand)
	case Div:
		return x.Div(op.Operand)
	case Pow:
		return x.Pow(op.Operand)
	case Sqrt:
		if x.Sign() <= 0 {
			return bignum.Zero
		}
		return x.Sqrt()
	case Ln:
		r, err := x.Ln()
		if err != nil {
			return bignum.Zero
		}
		return r
	case Log:
		r, err := x.Log(op.Operand)
		if err != nil {
			return bignum.Zero
		}
		return r
	}
	return x
}
