package formula

import "refinery/internal/bignum"

// precedence of the expression built so far; higher binds tighter.
const (
	precAdditive = iota + 1
	precMultiplicative
	precPower
	precAtom
)

// Render writes the formula as an infix expression over variable, e.g.
// "((x + 2) * 3)^2". The output is for display only.
func (f *Formula) Render(variable string) string {
	expr, prec := variable, precAtom
	if f == nil {
		return expr
	}
	for _, op := range f.steps {
		rhs := operandText(op.Operand)
		switch op.Kind {
		case Add:
			expr, prec = expr+" + "+rhs, precAdditive
		case Sub:
			expr, prec = expr+" - "+rhs, precAdditive
		case Mul, Div:
			if prec < precMultiplicative {
				expr = "(" + expr + ")"
			}
			sym := " * "
			if op.Kind == Div {
				sym = " / "
			}
			expr, prec = expr+sym+rhs, precMultiplicative
		case Pow:
			// Anything but an atom is wrapped; x^a^b would otherwise read
			// right-associatively.
			if prec < precAtom {
				expr = "(" + expr + ")"
			}
			expr, prec = expr+"^"+rhs, precPower
		case Sqrt:
			expr, prec = "sqrt("+expr+")", precAtom
		case Ln:
			expr, prec = "ln("+expr+")", precAtom
		case Log:
			expr, prec = "log_"+rhs+"("+expr+")", precAtom
		}
	}
	return expr
}

func (f *Formula) String() string {
	return f.Render("x")
}

func operandText(n bignum.Number) string {
	s := n.Text(bignum.Plain)
	if n.Sign() < 0 {
		return "(" + s + ")"
	}
	return s
}
