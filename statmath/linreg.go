// Package statmath holds small numeric routines shared by the analysis
// engine: linear regression for memory-leak trend detection.
//
// The teacher computes ad hoc trend rates inline (engine/anomaly.go's
// trendPerSec / ratePerMin: a two-point slope between "now" and "N samples
// ago"). This package generalizes that into a least-squares fit over the
// full window plus a goodness-of-fit term, which the leak detector needs
// and the teacher's two-point trends do not.
package statmath

// Regression is the result of fitting y = slope*x + intercept over
// x = 0..n-1.
type Regression struct {
	Slope     float64
	Intercept float64
	RSquared  float64
}

// LinReg fits values against their index (0, 1, 2, ...). Requires at least
// 3 points; returns ok=false if there are too few points or the fit is
// degenerate (denominator too close to zero).
func LinReg(values []float64) (reg Regression, ok bool) {
	n := len(values)
	if n < 3 {
		return Regression{}, false
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if abs(denom) < 1e-10 {
		return Regression{}, false
	}

	slope := (nf*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / nf

	var ssRes, ssTot float64
	meanY := sumY / nf
	for i, y := range values {
		x := float64(i)
		pred := slope*x + intercept
		dRes := y - pred
		ssRes += dRes * dRes
		dTot := y - meanY
		ssTot += dTot * dTot
	}
	if ssTot < 1e-10 {
		ssTot = 1e-10
	}
	rSquared := 1 - ssRes/ssTot

	return Regression{Slope: slope, Intercept: intercept, RSquared: rSquared}, true
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
