package mask

import (
	"errors"
	"fmt"
)

// ParamError reports a parameter that violates its documented constraint.
type ParamError struct {
	Param      string
	Value      any
	Constraint string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s=%v: %s", e.Param, e.Value, e.Constraint)
}

// IsParamError checks if an error is a ParamError.
func IsParamError(err error) bool {
	var pe *ParamError
	return errors.As(err, &pe)
}

func checkProbability(name string, p float64) error {
	if p < 0 || p > 1 || p != p {
		return &ParamError{Param: name, Value: p, Constraint: "must be within [0, 1]"}
	}
	return nil
}

func checkNonNegative(name string, v int) error {
	if v < 0 {
		return &ParamError{Param: name, Value: v, Constraint: "must be >= 0"}
	}
	return nil
}
