package priced

// Band bounds admissible order prices relative to a reference price. Exactly
// one of the two fields is meaningful, selected by Kind — a tagged variant
// rather than an interface, matched exhaustively like the rest of the
// engine's type tags.
type BandKind int

const (
	BandAbs BandKind = iota
	BandPercent
)

type Band struct {
	Kind BandKind
	// Abs holds the raw-price delta when Kind == BandAbs.
	Abs int64
	// Bps holds the basis-points delta when Kind == BandPercent.
	Bps int64
}

// NewAbsBand constructs an absolute band of the given raw-price delta.
func NewAbsBand(delta int64) Band {
	return Band{Kind: BandAbs, Abs: delta}
}

// NewPercentBand constructs a percentage band of the given basis points.
func NewPercentBand(bps int64) Band {
	return Band{Kind: BandPercent, Bps: bps}
}

// Delta computes the admissible one-sided delta around ref using integer
// arithmetic only. Percent bands round half away from zero:
// delta = round_half_away_from_zero(ref * bps / 10_000).
func (b Band) Delta(ref int64) int64 {
	switch b.Kind {
	case BandAbs:
		return b.Abs
	case BandPercent:
		return divRoundHalfAwayFromZero(ref*b.Bps, 10_000)
	default:
		return 0
	}
}

// Interval returns the admissible closed interval [ref-delta, ref+delta].
func (b Band) Interval(ref int64) (lo, hi int64) {
	d := b.Delta(ref)
	return ref - d, ref + d
}

// InBand reports whether price falls within the band's admissible interval
// around ref.
func (b Band) InBand(price, ref int64) bool {
	lo, hi := b.Interval(ref)
	return price >= lo && price <= hi
}

// divRoundHalfAwayFromZero computes round(num/den) with ties rounding away
// from zero, using only integer arithmetic.
func divRoundHalfAwayFromZero(num, den int64) int64 {
	if den == 0 {
		return 0
	}
	neg := (num < 0) != (den < 0)
	if num < 0 {
		num = -num
	}
	if den < 0 {
		den = -den
	}
	q := num / den
	r := num % den
	if 2*r >= den {
		q++
	}
	if neg {
		q = -q
	}
	return q
}
