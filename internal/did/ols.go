package did

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// condWarnLimit is the condition number above which a fit is flagged
	// as near-singular. The fit still completes: full-rank but badly
	// conditioned systems are a data property, not a configuration error.
	condWarnLimit = 1e8

	// leverageTol guards the HC3 weight denominator (1-h)^2 against
	// observations with leverage numerically equal to one.
	leverageTol = 1e-10
)

// Fit compiles a specification against the given rows and estimates it
// by OLS with HC3-robust standard errors.
//
// Inference follows the HC3 convention: z statistics against the
// standard normal, two-sided p-values and 95% confidence intervals. A
// rank-deficient design matrix fails the fit; nothing is dropped to
// force identification.
func Fit(ctx context.Context, logger *slog.Logger, rows []Row, spec ModelSpec) (*FitResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dm, err := buildDesignMatrix(rows, spec)
	if err != nil {
		return nil, err
	}

	result, err := fitOLS(dm)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", spec.Name, err)
	}

	for _, warning := range result.Warnings {
		logger.WarnContext(ctx, "solver warning",
			"model", spec.Name,
			"warning", warning,
		)
	}

	logger.DebugContext(ctx, "fitted specification",
		"model", spec.Name,
		"n", result.N,
		"regressors", result.Rank,
		"cond", result.Cond,
	)

	return result, nil
}

// fitOLS solves the least-squares problem via a thin SVD and computes
// the HC3 covariance
//
//	(X'X)^-1 X' diag(e_i^2 / (1-h_i)^2) X (X'X)^-1
//
// where h_i are the hat-matrix diagonals.
func fitOLS(dm *designMatrix) (*FitResult, error) {
	n, k := dm.x.Dims()
	if n <= k {
		return nil, fmt.Errorf("%w: %d observations for %d regressors", ErrInsufficientData, n, k)
	}

	var svd mat.SVD
	if ok := svd.Factorize(dm.x, mat.SVDThin); !ok {
		return nil, fmt.Errorf("SVD factorization failed for %d x %d design matrix", n, k)
	}

	sv := svd.Values(nil)
	tol := float64(n) * sv[0] * 2.220446049250313e-16
	rank := 0
	for _, s := range sv {
		if s > tol {
			rank++
		}
	}
	if rank < k {
		return nil, fmt.Errorf("%w: rank %d < %d regressors (perfect collinearity, check the specification)",
			ErrRankDeficient, rank, k)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// beta = V S^-1 U' y
	uty := mat.NewVecDense(k, nil)
	uty.MulVec(u.T(), dm.y)
	scaled := mat.NewVecDense(k, nil)
	for j := 0; j < k; j++ {
		scaled.SetVec(j, uty.AtVec(j)/sv[j])
	}
	beta := mat.NewVecDense(k, nil)
	beta.MulVec(&v, scaled)

	// (X'X)^-1 = V S^-2 V'
	sInv2 := mat.NewDiagDense(k, nil)
	for j := 0; j < k; j++ {
		sInv2.SetDiag(j, 1/(sv[j]*sv[j]))
	}
	xtxInv := mat.NewDense(k, k, nil)
	xtxInv.Product(&v, sInv2, v.T())

	// Residuals and hat diagonals (H = U U' for a full-rank thin SVD).
	fitted := mat.NewVecDense(n, nil)
	fitted.MulVec(dm.x, beta)

	var warnings []string
	residuals := make([]float64, n)
	weights := make([]float64, n)
	highLeverage := 0
	for i := 0; i < n; i++ {
		residuals[i] = dm.y.AtVec(i) - fitted.AtVec(i)

		h := 0.0
		for j := 0; j < k; j++ {
			h += u.At(i, j) * u.At(i, j)
		}
		denom := 1 - h
		if denom < leverageTol {
			denom = leverageTol
			highLeverage++
		}
		weights[i] = residuals[i] * residuals[i] / (denom * denom)
	}
	if highLeverage > 0 {
		warnings = append(warnings, fmt.Sprintf("%d observation(s) with leverage ~1; HC3 weights clamped", highLeverage))
	}

	// Meat: X' diag(w) X.
	meat := mat.NewDense(k, k, nil)
	for i := 0; i < n; i++ {
		for j1 := 0; j1 < k; j1++ {
			xi1 := dm.x.At(i, j1) * weights[i]
			for j2 := 0; j2 < k; j2++ {
				meat.Set(j1, j2, meat.At(j1, j2)+xi1*dm.x.At(i, j2))
			}
		}
	}

	cov := mat.NewDense(k, k, nil)
	cov.Product(xtxInv, meat, xtxInv)

	cond := sv[0] / sv[k-1]
	if cond > condWarnLimit {
		warnings = append(warnings, fmt.Sprintf("near-singular design matrix (condition number %.3g)", cond))
	}

	normal := distuv.UnitNormal
	zCrit := normal.Quantile(0.975)

	coefficients := make([]Coefficient, k)
	for j := 0; j < k; j++ {
		estimate := beta.AtVec(j)
		variance := cov.At(j, j)
		if variance < 0 || math.IsNaN(variance) {
			return nil, fmt.Errorf("invalid robust variance %v for coefficient %s", variance, dm.names[j])
		}
		se := math.Sqrt(variance)

		z := math.Inf(1)
		p := 0.0
		if se > 0 {
			z = estimate / se
			p = 2 * normal.Survival(math.Abs(z))
		}

		coefficients[j] = Coefficient{
			Name:     dm.names[j],
			Estimate: estimate,
			StdErr:   se,
			Z:        z,
			PValue:   p,
			CILower:  estimate - zCrit*se,
			CIUpper:  estimate + zCrit*se,
			Interest: dm.spec.isInterest(dm.names[j]),
		}
	}

	return &FitResult{
		Model:        dm.spec.Name,
		Coefficients: coefficients,
		N:            n,
		Rank:         rank,
		Cond:         cond,
		Warnings:     warnings,
	}, nil
}
