// Package priced implements the engine's integer price arithmetic: the
// price domain, raw-price validation, and price<->index conversion. No
// floating point appears anywhere in this package, per spec.md §1's
// hot-path non-goal.
package priced

import "fmt"

// Index is the position of a valid raw price within a PriceDomain. All
// hot-path comparisons in the book and matcher use Index, never a raw price.
type Index int64

// Domain describes the admissible raw price range and its tick alignment.
// floor, ceil and tick are all integers; a raw price p is valid iff
// floor <= p <= ceil and (p - floor) mod tick == 0.
type Domain struct {
	Floor int64
	Ceil  int64
	Tick  int64
}

// NewDomain validates and constructs a Domain.
func NewDomain(floor, ceil, tick int64) (Domain, error) {
	d := Domain{Floor: floor, Ceil: ceil, Tick: tick}
	if tick <= 0 {
		return Domain{}, fmt.Errorf("priced: tick must be positive, got %d", tick)
	}
	if ceil < floor {
		return Domain{}, fmt.Errorf("priced: ceil %d below floor %d", ceil, floor)
	}
	if (ceil-floor)%tick != 0 {
		return Domain{}, fmt.Errorf("priced: ceil-floor must be a multiple of tick")
	}
	return d, nil
}

// Valid reports whether a raw price is admissible: in range and tick-aligned.
func (d Domain) Valid(price int64) bool {
	if price < d.Floor || price > d.Ceil {
		return false
	}
	return (price-d.Floor)%d.Tick == 0
}

// Index converts a valid raw price to its domain index. Callers must check
// Valid first; Index does not re-validate.
func (d Domain) Index(price int64) Index {
	return Index((price - d.Floor) / d.Tick)
}

// Price converts an index back to its raw price.
func (d Domain) Price(idx Index) int64 {
	return d.Floor + int64(idx)*d.Tick
}

// MaxIndex is the index of Ceil, the largest representable index in this
// domain.
func (d Domain) MaxIndex() Index {
	return Index((d.Ceil - d.Floor) / d.Tick)
}
