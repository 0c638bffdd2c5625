package priced

import "testing"

func TestDomainValidAndIndex(t *testing.T) {
	d, err := NewDomain(100, 200, 1)
	if err != nil {
		t.Fatalf("NewDomain: %v", err)
	}

	if !d.Valid(150) {
		t.Fatalf("expected 150 to be valid")
	}
	if d.Valid(99) || d.Valid(201) {
		t.Fatalf("expected out-of-range prices to be invalid")
	}

	if got := d.Index(150); got != 50 {
		t.Fatalf("Index(150) = %d, want 50", got)
	}
	if got := d.Price(50); got != 150 {
		t.Fatalf("Price(50) = %d, want 150", got)
	}
	if got := d.MaxIndex(); got != 100 {
		t.Fatalf("MaxIndex() = %d, want 100", got)
	}
}

func TestDomainTickAlignment(t *testing.T) {
	d, err := NewDomain(0, 100, 5)
	if err != nil {
		t.Fatalf("NewDomain: %v", err)
	}
	if !d.Valid(25) {
		t.Fatalf("expected 25 to be tick-aligned")
	}
	if d.Valid(27) {
		t.Fatalf("expected 27 to be misaligned")
	}
}

func TestNewDomainRejectsBadTick(t *testing.T) {
	if _, err := NewDomain(0, 100, 0); err == nil {
		t.Fatalf("expected error for zero tick")
	}
	if _, err := NewDomain(0, 97, 5); err == nil {
		t.Fatalf("expected error for non-multiple span")
	}
	if _, err := NewDomain(100, 50, 5); err == nil {
		t.Fatalf("expected error for ceil < floor")
	}
}
