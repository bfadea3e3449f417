package field

import (
	"testing"

	"github.com/pthm-cable/flowgrid/grid"
)

// TestSignatureOrderIndependence verifies permutations and duplicates of
// a goal set collapse onto one key.
func TestSignatureOrderIndependence(t *testing.T) {
	a := NewSignature(NormalizeGoals([]grid.Cell{{X: 1, Y: 2}, {X: 3, Y: 4}}), 7)
	b := NewSignature(NormalizeGoals([]grid.Cell{{X: 3, Y: 4}, {X: 1, Y: 2}}), 7)
	c := NewSignature(NormalizeGoals([]grid.Cell{{X: 3, Y: 4}, {X: 1, Y: 2}, {X: 3, Y: 4}}), 7)

	if a.Key() != b.Key() || a.Key() != c.Key() {
		t.Error("permuted and duplicated goal sets must share a signature")
	}
}

// TestSignatureDiscriminates verifies distinct goal sets and distinct
// versions produce distinct keys.
func TestSignatureDiscriminates(t *testing.T) {
	base := NewSignature(NormalizeGoals([]grid.Cell{{X: 1, Y: 2}}), 7)

	otherGoals := NewSignature(NormalizeGoals([]grid.Cell{{X: 2, Y: 1}}), 7)
	if base.Key() == otherGoals.Key() {
		t.Error("swapped coordinates must not collide")
	}

	otherVersion := NewSignature(NormalizeGoals([]grid.Cell{{X: 1, Y: 2}}), 8)
	if base.Key() == otherVersion.Key() {
		t.Error("different obstacle versions must not collide")
	}
	if otherVersion.Version() != 8 {
		t.Errorf("expected version 8, got %d", otherVersion.Version())
	}
}

// TestNormalizeGoalsLeavesInputAlone verifies normalization copies.
func TestNormalizeGoalsLeavesInputAlone(t *testing.T) {
	in := []grid.Cell{{X: 9, Y: 9}, {X: 0, Y: 0}}
	out := NormalizeGoals(in)

	if in[0] != (grid.Cell{X: 9, Y: 9}) {
		t.Error("input slice was reordered")
	}
	if len(out) != 2 || out[0] != (grid.Cell{X: 0, Y: 0}) {
		t.Errorf("expected sorted copy, got %v", out)
	}
}
