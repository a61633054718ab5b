package grid

import (
	"testing"
)

func TestGridRoundTrip(t *testing.T) {
	g := New(3, 4)
	if g.Rows() != 3 || g.Cols() != 4 {
		t.Fatalf("expected 3x4 grid, got %dx%d", g.Rows(), g.Cols())
	}

	g.Set(2, 3, -87.5)
	if got := g.At(2, 3); got != -87.5 {
		t.Errorf("At(2,3) = %v, want -87.5", got)
	}
	if got := g.Cells()[g.Index(2, 3)]; got != -87.5 {
		t.Errorf("flat index mismatch: got %v", got)
	}
}

func TestNewFilled(t *testing.T) {
	g := NewFilled(2, 2, NoData)
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			if !IsNoData(g.At(r, c)) {
				t.Errorf("cell (%d,%d) = %v, want NoData", r, c, g.At(r, c))
			}
		}
	}
}

func TestRowSliceAliasesBacking(t *testing.T) {
	g := New(2, 3)
	row := g.Row(1)
	row[2] = -70
	if got := g.At(1, 2); got != -70 {
		t.Errorf("Row slice not aliased: At(1,2) = %v", got)
	}
}

func TestExtentCenters(t *testing.T) {
	// 100m cells, west edge at 500000, north edge at 120000.
	e := Extent{West: 500000, North: 120000, CellSize: 100, Rows: 10, Cols: 10}

	if got := e.CenterX(0); got != 500050 {
		t.Errorf("CenterX(0) = %d, want 500050", got)
	}
	if got := e.CenterX(3); got != 500350 {
		t.Errorf("CenterX(3) = %d, want 500350", got)
	}
	if got := e.CenterY(0); got != 119950 {
		t.Errorf("CenterY(0) = %d, want 119950", got)
	}
	if got := e.CenterY(2); got != 119750 {
		t.Errorf("CenterY(2) = %d, want 119750", got)
	}
	if got := e.Resolution(); got != 100 {
		t.Errorf("Resolution() = %d, want 100", got)
	}
}

func TestExtentMatches(t *testing.T) {
	e := Extent{West: 500000, North: 120000, CellSize: 100, Rows: 10, Cols: 10}

	if !e.Matches(e) {
		t.Error("extent should match itself")
	}
	jitter := e
	jitter.West += 0.2
	if !e.Matches(jitter) {
		t.Error("sub-cell origin jitter should still match")
	}
	shifted := e
	shifted.West += 100
	if e.Matches(shifted) {
		t.Error("one-cell shift must not match")
	}
	resized := e
	resized.Cols = 11
	if e.Matches(resized) {
		t.Error("different dimensions must not match")
	}
}
