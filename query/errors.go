package query

import "errors"

var (
	// ErrInvalidOperator is returned when a filter document names an
	// operator ("$foo") this package does not implement.
	ErrInvalidOperator = errors.New("query: invalid operator")
	// ErrInvalidPattern is returned when a $regex value fails to
	// compile.
	ErrInvalidPattern = errors.New("query: invalid regex pattern")
	// ErrInvalidOperand is returned when an operator is given a value
	// of the wrong shape, e.g. $in given a non-array.
	ErrInvalidOperand = errors.New("query: invalid operand for operator")
)
