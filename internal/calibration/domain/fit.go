package calibration

import "math"

// FitResult carries the quadratic coefficients of y = a*x^2 + b*x + c and
// the coefficient of determination of the fit.
type FitResult struct {
	A  float64
	B  float64
	C  float64
	R2 float64
}

// FitQuadratic solves the degree-2 least-squares problem over paired
// observations via the normal equations. At least three pairs are required;
// degenerate inputs (all x equal, or otherwise rank-deficient) report
// ErrSingularFit.
func FitQuadratic(xs, ys []float64) (FitResult, error) {
	if len(xs) != len(ys) || len(xs) < 3 {
		return FitResult{}, ErrInsufficientData
	}

	// Power sums of x up to x^4 and moment sums of y.
	var s [5]float64
	var t [3]float64
	for i, x := range xs {
		xp := 1.0
		for k := 0; k <= 4; k++ {
			s[k] += xp
			if k <= 2 {
				t[k] += ys[i] * xp
			}
			xp *= x
		}
	}

	// Normal equations in (c, b, a) order.
	m := [3][4]float64{
		{s[0], s[1], s[2], t[0]},
		{s[1], s[2], s[3], t[1]},
		{s[2], s[3], s[4], t[2]},
	}
	coef, ok := solve3(m)
	if !ok {
		return FitResult{}, ErrSingularFit
	}
	res := FitResult{A: coef[2], B: coef[1], C: coef[0]}

	mean := t[0] / s[0]
	var ssRes, ssTot float64
	for i, x := range xs {
		pred := res.A*x*x + res.B*x + res.C
		ssRes += (ys[i] - pred) * (ys[i] - pred)
		ssTot += (ys[i] - mean) * (ys[i] - mean)
	}
	if ssTot == 0 {
		res.R2 = 1
	} else {
		res.R2 = 1 - ssRes/ssTot
	}
	return res, nil
}

// solve3 runs Gaussian elimination with partial pivoting on a 3x4 augmented
// system.
func solve3(m [3][4]float64) ([3]float64, bool) {
	for col := 0; col < 3; col++ {
		pivot := col
		for row := col + 1; row < 3; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return [3]float64{}, false
		}
		m[col], m[pivot] = m[pivot], m[col]

		for row := col + 1; row < 3; row++ {
			factor := m[row][col] / m[col][col]
			for k := col; k < 4; k++ {
				m[row][k] -= factor * m[col][k]
			}
		}
	}

	var out [3]float64
	for row := 2; row >= 0; row-- {
		sum := m[row][3]
		for k := row + 1; k < 3; k++ {
			sum -= m[row][k] * out[k]
		}
		out[row] = sum / m[row][row]
	}
	return out, true
}
