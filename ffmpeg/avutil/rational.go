//go:build !ios && !android && (amd64 || arm64)

package avutil

// Rational is FFmpeg's AVRational. Arithmetic is implemented in pure Go
// because purego cannot return structs by value on every platform.
type Rational struct {
	Num int32
	Den int32
}

// NewRational creates a rational with the given numerator and denominator.
func NewRational(num, den int32) Rational {
	return Rational{Num: num, Den: den}
}

// Float64 converts the rational to a float64, 0 when the denominator is 0.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Invert returns den/num.
func (r Rational) Invert() Rational {
	return Rational{Num: r.Den, Den: r.Num}
}

// IsZero returns true if the rational is zero.
func (r Rational) IsZero() bool {
	return r.Num == 0
}

// Mul multiplies two rationals.
func (r Rational) Mul(other Rational) Rational {
	return Rational{
		Num: r.Num * other.Num,
		Den: r.Den * other.Den,
	}.Reduce()
}

// Div divides two rationals.
func (r Rational) Div(other Rational) Rational {
	return r.Mul(other.Invert())
}

// Cmp compares two rationals: -1, 0, or 1.
func (r Rational) Cmp(other Rational) int {
	left := int64(r.Num) * int64(other.Den)
	right := int64(other.Num) * int64(r.Den)
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	default:
		return 0
	}
}

// Reduce reduces the rational to lowest terms.
func (r Rational) Reduce() Rational {
	if r.Den == 0 {
		return r
	}
	g := gcd(abs(r.Num), abs(r.Den))
	if g == 0 {
		return r
	}
	return Rational{Num: r.Num / g, Den: r.Den / g}
}

func gcd(a, b int32) int32 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}
