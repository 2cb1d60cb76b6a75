package model

import "errors"

// Sentinel errors for the taxonomy in spec §7. Numeric kernels never raise;
// they return one of these (or wrap it with context) so callers can branch
// with errors.Is instead of string matching.
var (
	// ErrInsufficientData is returned by the estimator or calibration fit
	// when a required bucket has too few observations.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNonConvergence is returned when the Dixon-Coles fit exhausts its
	// iteration budget without meeting the convergence criterion. The fit
	// retries once internally with a tighter tolerance before returning it.
	ErrNonConvergence = errors.New("non-convergence")

	// ErrInvalidInput marks malformed odds, missing teams, or negative
	// goals. The whole request is rejected.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidLambda marks a non-finite or out-of-range expected-goals
	// value (spec §4.2). The fixture is skipped, not the whole request.
	ErrInvalidLambda = errors.New("invalid lambda")

	// ErrMissingFeature is not fatal: the caller substitutes the documented
	// default (multiplier 1.0, pass-through calibrator) and logs a warning.
	ErrMissingFeature = errors.New("missing feature")

	// ErrTimeout aborts a request past its deadline. Nothing is persisted.
	ErrTimeout = errors.New("timeout")

	// ErrContradictionReject is a per-ticket soft rejection, never a
	// request-level failure.
	ErrContradictionReject = errors.New("contradiction reject")
)
