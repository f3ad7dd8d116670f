package nettrace

import (
	"context"
	"reflect"
	"testing"
)

func TestResolveStackIndexZeroIsOrdinary(t *testing.T) {
	d := newDecoder(context.Background(), make(chan []byte), defaultConfig())
	if got := d.resolveStackIndex(0); got != 0 {
		t.Fatalf("resolveStackIndex(0) in the first epoch = %d, want 0", got)
	}
	d.onSequencePoint()
	d.stackIndexOffset = 1000
	if got := d.resolveStackIndex(0); got != 1000 {
		t.Fatalf("resolveStackIndex(0) after offsetting = %d, want 1000 (raw ID 0 offsets like any other)", got)
	}
}

// TestSequencePointResetsStackIndexEpoch exercises two StackBlocks that
// both use firstId=0, separated by an SPBlock: the resolver must return
// different address lists for global index 0 (the first epoch's raw
// ID 0) and global index lastStackIndex (the second epoch's raw ID 0).
func TestSequencePointResetsStackIndexEpoch(t *testing.T) {
	d := newDecoder(context.Background(), make(chan []byte), defaultConfig())

	// First epoch: a StackBlock with firstId=0.
	first := d.resolveStackIndex(0)
	d.stacks.addStack(first, []uint64{0xAAAA})

	d.onSequencePoint()
	d.stats.SequencePointCount++

	// Second epoch restarts its raw IDs at the same firstId=0; the
	// global index must not collide with the first epoch's.
	second := d.resolveStackIndex(0)
	d.stacks.addStack(second, []uint64{0xBBBB})

	if first == second {
		t.Fatalf("stack indices from different sequence-point epochs collided: %d", first)
	}
	if first != 0 {
		t.Fatalf("first epoch's raw ID 0 resolved to %d, want the legitimate global index 0", first)
	}

	gotFirst := d.stacks.resolve(first)
	gotSecond := d.stacks.resolve(second)

	wantFirst := []Frame{{Address: 0xAAAA, Method: &MethodDescription{Name: "0xaaaa"}}}
	wantSecond := []Frame{{Address: 0xBBBB, Method: &MethodDescription{Name: "0xbbbb"}}}

	if !reflect.DeepEqual(gotFirst, wantFirst) {
		t.Errorf("resolve(first) = %+v, want %+v", gotFirst, wantFirst)
	}
	if !reflect.DeepEqual(gotSecond, wantSecond) {
		t.Errorf("resolve(second) = %+v, want %+v", gotSecond, wantSecond)
	}
}

func TestResolveStackIndexAdvancesLastStackIndex(t *testing.T) {
	d := newDecoder(context.Background(), make(chan []byte), defaultConfig())
	if d.lastStackIndex != 0 {
		t.Fatalf("lastStackIndex = %d, want 0 initially", d.lastStackIndex)
	}
	d.resolveStackIndex(5)
	if d.lastStackIndex != 6 {
		t.Fatalf("lastStackIndex = %d, want 6 after resolving raw ID 5", d.lastStackIndex)
	}
	// A smaller raw ID in the same epoch must not move lastStackIndex
	// backwards.
	d.resolveStackIndex(2)
	if d.lastStackIndex != 6 {
		t.Fatalf("lastStackIndex = %d, want unchanged at 6", d.lastStackIndex)
	}
}

func TestStackResolveUnknownIndexIsNil(t *testing.T) {
	d := newDecoder(context.Background(), make(chan []byte), defaultConfig())
	if got := d.stacks.resolve(42); got != nil {
		t.Fatalf("resolve(unknown) = %+v, want nil", got)
	}
}
