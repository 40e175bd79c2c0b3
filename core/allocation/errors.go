package allocation

import "errors"

var (
	// ErrInfeasible indicates no trip assignment satisfies the constraints.
	ErrInfeasible = errors.New("allocation infeasible")
	// ErrSolver indicates the LP solver failed on the root relaxation.
	ErrSolver = errors.New("solver failure")
)
