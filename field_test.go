package lqmc

import (
	"testing"

	"golang.org/x/exp/rand"
)

func TestNewField(t *testing.T) {
	t.Parallel()
	f := NewField(5, 7, rand.New(rand.NewSource(11)))
	if f.NumSites() != 5 || f.TimeSteps() != 7 {
		t.Fatalf("%d x %d, expected 5 x 7", f.NumSites(), f.TimeSteps())
	}
	var plus, minus int
	for i := 0; i < 5; i++ {
		for l := 0; l < 7; l++ {
			switch f.Value(i, l) {
			case 1:
				plus++
			case -1:
				minus++
			default:
				t.Fatalf("(%d, %d): %d, expected -1 or 1", i, l, f.Value(i, l))
			}
		}
	}
	if plus == 0 || minus == 0 {
		t.Fatalf("plus %d minus %d, expected a mixture", plus, minus)
	}
}

func TestFieldColumn(t *testing.T) {
	t.Parallel()
	f := NewField(4, 3, rand.New(rand.NewSource(2)))
	for l := 0; l < 3; l++ {
		col := f.Column(l)
		for i := 0; i < 4; i++ {
			if col[i] != f.Value(i, l) {
				t.Fatalf("l=%d i=%d: %d, expected %d", l, i, col[i], f.Value(i, l))
			}
		}
	}
}

func TestFieldSnapshotRestore(t *testing.T) {
	t.Parallel()
	f := NewField(3, 4, rand.New(rand.NewSource(9)))
	snap := f.Snapshot()

	f.Flip(0, 0)
	f.Flip(2, 3)
	if snap.Value(0, 0) != -f.Value(0, 0) {
		t.Fatalf("snapshot shares storage with the original")
	}

	f.Restore(snap)
	for i := 0; i < 3; i++ {
		for l := 0; l < 4; l++ {
			if f.Value(i, l) != snap.Value(i, l) {
				t.Fatalf("(%d, %d): %d, expected %d", i, l, f.Value(i, l), snap.Value(i, l))
			}
		}
	}
}
