package nettrace

import "testing"

func TestInternPoolStringDeduplicates(t *testing.T) {
	p := newInternPool()
	a := p.String("hello")
	b := p.String("hello")
	if a != b {
		t.Fatalf("interned strings compare unequal: %q, %q", a, b)
	}
}

func TestInternPoolBoxedScalarsSharePointerIdentity(t *testing.T) {
	p := newInternPool()

	if p.Bool(true) != p.Bool(true) {
		t.Error("Bool(true) should return the same pointer across calls")
	}
	if p.Bool(true) == p.Bool(false) {
		t.Error("Bool(true) and Bool(false) must not share a pointer")
	}

	if p.Int8(5) != p.Int8(5) {
		t.Error("Int8(5) should return the same pointer across calls")
	}
	if p.Uint8(5) != p.Uint8(5) {
		t.Error("Uint8(5) should return the same pointer across calls")
	}
	if p.Int16(5) != p.Int16(5) {
		t.Error("Int16(5) should return the same pointer across calls")
	}
	if p.Uint16(5) != p.Uint16(5) {
		t.Error("Uint16(5) should return the same pointer across calls")
	}

	// Distinct underlying types holding the numerically "same" value must
	// not be confused with each other; they live in separate maps.
	i8 := p.Int8(5)
	u8 := p.Uint8(5)
	if any(i8) == any(u8) {
		t.Error("Int8(5) and Uint8(5) boxed values should not compare equal as interfaces")
	}
}

func TestInternPoolBoxedValuesAreIndependentlyMutableStorage(t *testing.T) {
	p := newInternPool()
	a := p.Int16(1)
	b := p.Int16(2)
	if *a == *b {
		t.Fatal("distinct values must not share a box")
	}
}
