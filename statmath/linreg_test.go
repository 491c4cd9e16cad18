package statmath

import "testing"

func TestLinRegExactLineHasUnitRSquared(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = 1000 + 100*float64(i)
	}
	reg, ok := LinReg(values)
	if !ok {
		t.Fatal("expected ok=true for linear sequence")
	}
	if d := reg.RSquared - 1.0; d > 1e-3 || d < -1e-3 {
		t.Fatalf("expected R^2 ~= 1.0, got %v", reg.RSquared)
	}
	if d := reg.Slope - 100; d > 1e-6 || d < -1e-6 {
		t.Fatalf("expected slope ~= 100, got %v", reg.Slope)
	}
}

func TestLinRegTooFewPoints(t *testing.T) {
	if _, ok := LinReg([]float64{1, 2}); ok {
		t.Fatal("expected ok=false for fewer than 3 points")
	}
}

func TestLinRegConstantSeries(t *testing.T) {
	values := []float64{5, 5, 5, 5, 5}
	reg, ok := LinReg(values)
	if !ok {
		t.Fatal("expected ok=true for constant series")
	}
	if reg.Slope != 0 {
		t.Fatalf("expected slope 0 for constant series, got %v", reg.Slope)
	}
}
