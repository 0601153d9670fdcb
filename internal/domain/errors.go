package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur while building or combining score
// matrices.
var (
	// ErrEmptyRoster indicates that a roster was created without competitors.
	ErrEmptyRoster = errors.New("roster has no competitors")

	// ErrDuplicateCompetitor indicates that a competitor id appears twice
	// in a roster.
	ErrDuplicateCompetitor = errors.New("duplicate competitor")

	// ErrUnknownCompetitor indicates that a competitor id is not part of
	// the matrix roster.
	ErrUnknownCompetitor = errors.New("unknown competitor")

	// ErrSelfComparison indicates an attempt to record a verdict of a
	// competitor against itself.
	ErrSelfComparison = errors.New("competitor compared with itself")

	// ErrInvalidOutcome indicates a cell value outside {-2,-1,0,1,2}, or a
	// diagonal cell that is not -1.
	ErrInvalidOutcome = errors.New("invalid outcome code")

	// ErrAsymmetric indicates that cell(i,j) and cell(j,i) were not filled
	// from the same verdict.
	ErrAsymmetric = errors.New("mirrored cells are not complementary")

	// ErrShapeMismatch indicates that matrices built over different
	// rosters were combined.
	ErrShapeMismatch = errors.New("matrix shape mismatch")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// MatrixError represents an error that occurred while reading or mutating
// a score matrix. It carries the cell coordinates involved.
type MatrixError struct {
	// Op is the matrix operation that failed.
	Op string

	// Row and Col identify the cell by competitor id. Either may be empty
	// when the failure is not tied to a single cell.
	Row string
	Col string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for MatrixError.
func (e *MatrixError) Error() string {
	return fmt.Sprintf("matrix error: operation=%s, row=%s, col=%s, err=%v", e.Op, e.Row, e.Col, e.Err)
}

// Unwrap returns the underlying error.
func (e *MatrixError) Unwrap() error { return e.Err }

// NewMatrixError creates a new MatrixError with the given details.
func NewMatrixError(op, row, col string, err error) *MatrixError {
	return &MatrixError{
		Op:  op,
		Row: row,
		Col: col,
		Err: err,
	}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
