// Package forecast fits a small ARIMA-style model to the quarterly index
// and derives market summaries from its projections.
package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/propsight/pkg/formulas"
)

// Order is the (p,d,q) specification of the model
type Order struct {
	P int `json:"p"` // Autoregressive lags
	D int `json:"d"` // Differencing passes
	Q int `json:"q"` // Moving average lags
}

func (o Order) String() string {
	return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q)
}

// Model is a fitted ARIMA(p,d,q). Estimation is conditional least squares:
// a long autoregression recovers shock estimates, then a single OLS pass
// regresses the differenced series on its own lags and the lagged shocks
// (Hannan-Rissanen). Short or degenerate series fail the fit; callers fall
// back to carry-forward forecasting.
type Model struct {
	order     Order
	phi       []float64 // AR coefficients, length P
	theta     []float64 // MA coefficients, length Q
	intercept float64
	sigma2    float64 // Residual variance

	diffed []float64 // The d-times differenced series used in estimation
	resid  []float64 // In-sample residuals aligned with diffed
	lasts  []float64 // lasts[i] = last value of the i-times differenced series
	nObs   int       // Regression rows used in the final stage
}

// Fit estimates an ARIMA(p,d,q) on the given level series.
// Returns an error when the series is too short, contains non-finite
// values, or the regressions are singular.
func Fit(values []float64, order Order) (*Model, error) {
	if order.P < 0 || order.D < 0 || order.Q < 0 {
		return nil, fmt.Errorf("invalid model order %s", order)
	}
	for _, v := range values {
		if !formulas.IsFinite(v) {
			return nil, fmt.Errorf("series contains non-finite values")
		}
	}

	// Difference d times, remembering the last value of every stage so
	// forecasts can be integrated back to levels.
	w := append([]float64(nil), values...)
	lasts := make([]float64, 0, order.D)
	for i := 0; i < order.D; i++ {
		if len(w) < 2 {
			return nil, fmt.Errorf("series too short to difference %d times", order.D)
		}
		lasts = append(lasts, w[len(w)-1])
		w = difference(w)
	}

	nw := len(w)
	p, q := order.P, order.Q

	// Long autoregression order for shock recovery.
	k := 0
	if q > 0 {
		k = maxInt(p, q) + 3
		if limit := (nw - 2) / 2; k > limit {
			k = limit
		}
		if k < 1 {
			return nil, fmt.Errorf("insufficient observations for order %s: have %d differenced", order, nw)
		}
	}

	start := p
	if q > 0 && k+q > start {
		start = k + q
	}
	rows := nw - start
	cols := 1 + p + q
	if rows < cols+1 {
		return nil, fmt.Errorf("insufficient observations for order %s: have %d differenced, need %d",
			order, nw, start+cols+1)
	}

	// Stage one: estimate shocks from a long AR fit.
	e := make([]float64, nw)
	if q > 0 {
		longRows := nw - k
		X := mat.NewDense(longRows, k+1, nil)
		y := mat.NewVecDense(longRows, nil)
		for t := k; t < nw; t++ {
			r := t - k
			X.Set(r, 0, 1)
			for i := 1; i <= k; i++ {
				X.Set(r, i, w[t-i])
			}
			y.SetVec(r, w[t])
		}
		beta, err := solveOLS(X, y)
		if err != nil {
			return nil, fmt.Errorf("shock recovery regression failed: %w", err)
		}
		for t := k; t < nw; t++ {
			pred := beta[0]
			for i := 1; i <= k; i++ {
				pred += beta[i] * w[t-i]
			}
			e[t] = w[t] - pred
		}
	}

	// Stage two: regress on AR lags and estimated shock lags.
	X := mat.NewDense(rows, cols, nil)
	y := mat.NewVecDense(rows, nil)
	for t := start; t < nw; t++ {
		r := t - start
		X.Set(r, 0, 1)
		for i := 1; i <= p; i++ {
			X.Set(r, i, w[t-i])
		}
		for j := 1; j <= q; j++ {
			X.Set(r, p+j, e[t-j])
		}
		y.SetVec(r, w[t])
	}
	beta, err := solveOLS(X, y)
	if err != nil {
		return nil, fmt.Errorf("model regression failed: %w", err)
	}

	intercept := beta[0]
	phi := append([]float64(nil), beta[1:1+p]...)
	theta := append([]float64(nil), beta[1+p:]...)

	// Conditional residuals with the final parameters, missing lags as zero.
	resid := make([]float64, nw)
	for t := 0; t < nw; t++ {
		pred := intercept
		for i := 1; i <= p && t-i >= 0; i++ {
			pred += phi[i-1] * w[t-i]
		}
		for j := 1; j <= q && t-j >= 0; j++ {
			pred += theta[j-1] * resid[t-j]
		}
		resid[t] = w[t] - pred
	}

	sse := 0.0
	for t := start; t < nw; t++ {
		sse += resid[t] * resid[t]
	}
	dof := rows - cols
	if dof < 1 {
		dof = 1
	}
	sigma2 := sse / float64(dof)
	if !formulas.IsFinite(sigma2) {
		return nil, fmt.Errorf("residual variance is not finite")
	}

	return &Model{
		order:     order,
		phi:       phi,
		theta:     theta,
		intercept: intercept,
		sigma2:    sigma2,
		diffed:    w,
		resid:     resid,
		lasts:     lasts,
		nObs:      rows,
	}, nil
}

// Forecast projects the next steps values on the level scale. Lower and
// upper are 95% confidence bounds from the accumulated psi-weight variance.
func (m *Model) Forecast(steps int) (mean, lower, upper []float64) {
	if steps < 1 {
		steps = 1
	}

	p, q, d := m.order.P, m.order.Q, m.order.D
	nw := len(m.diffed)

	// Recursive point forecasts on the differenced scale, future shocks zero.
	wExt := append([]float64(nil), m.diffed...)
	for h := 0; h < steps; h++ {
		t := nw + h
		pred := m.intercept
		for i := 1; i <= p; i++ {
			if idx := t - i; idx >= 0 {
				pred += m.phi[i-1] * wExt[idx]
			}
		}
		for j := 1; j <= q; j++ {
			if idx := t - j; idx >= 0 && idx < nw {
				pred += m.theta[j-1] * m.resid[idx]
			}
		}
		wExt = append(wExt, pred)
	}

	// Integrate back to levels, one differencing stage at a time.
	mean = append([]float64(nil), wExt[nw:]...)
	for stage := d - 1; stage >= 0; stage-- {
		prev := m.lasts[stage]
		for h := range mean {
			prev += mean[h]
			mean[h] = prev
		}
	}

	// Psi weights of the full process (AR polynomial composed with the
	// differencing operator) drive the forecast error variance.
	c := fullARCoeffs(m.phi, d)
	psi := make([]float64, steps)
	for j := 0; j < steps; j++ {
		if j == 0 {
			psi[0] = 1
			continue
		}
		v := 0.0
		if j <= q {
			v += m.theta[j-1]
		}
		for i := 1; i <= len(c) && i <= j; i++ {
			v += c[i-1] * psi[j-i]
		}
		psi[j] = v
	}

	lower = make([]float64, steps)
	upper = make([]float64, steps)
	acc := 0.0
	for h := 0; h < steps; h++ {
		acc += psi[h] * psi[h]
		se := math.Sqrt(m.sigma2 * acc)
		lower[h] = mean[h] - 1.96*se
		upper[h] = mean[h] + 1.96*se
	}

	return mean, lower, upper
}

// Order returns the model order
func (m *Model) Order() Order {
	return m.order
}

// AIC returns the Akaike information criterion of the fit
func (m *Model) AIC() float64 {
	k := float64(len(m.phi) + len(m.theta) + 1)
	if m.sigma2 <= 0 {
		return math.Inf(-1)
	}
	return float64(m.nObs)*math.Log(m.sigma2) + 2*(k+1)
}

// difference returns the first difference of the series
func difference(values []float64) []float64 {
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = values[i] - values[i-1]
	}
	return out
}

// fullARCoeffs expands phi(B)*(1-B)^d and returns the coefficients c where
// x_t = sum c_i * x_{t-i} + shocks, covering both the AR part and the
// differencing operator.
func fullARCoeffs(phi []float64, d int) []float64 {
	a := make([]float64, len(phi)+1)
	a[0] = 1
	for i, f := range phi {
		a[i+1] = -f
	}
	for k := 0; k < d; k++ {
		a = polyMul(a, []float64{1, -1})
	}
	c := make([]float64, len(a)-1)
	for i := 1; i < len(a); i++ {
		c[i-1] = -a[i]
	}
	return c
}

func polyMul(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, av := range a {
		for j, bv := range b {
			out[i+j] += av * bv
		}
	}
	return out
}

// solveOLS computes least squares coefficients via QR factorization.
// Singular or underdetermined systems return an error.
func solveOLS(X *mat.Dense, y *mat.VecDense) ([]float64, error) {
	rows, cols := X.Dims()
	if rows < cols {
		return nil, fmt.Errorf("underdetermined system: %d rows, %d columns", rows, cols)
	}

	var qr mat.QR
	qr.Factorize(X)

	var sol mat.VecDense
	if err := qr.SolveVecTo(&sol, false, y); err != nil {
		return nil, fmt.Errorf("singular regression: %w", err)
	}

	out := make([]float64, cols)
	for i := range out {
		v := sol.AtVec(i)
		if !formulas.IsFinite(v) {
			return nil, fmt.Errorf("non-finite coefficient at %d", i)
		}
		out[i] = v
	}
	return out, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
