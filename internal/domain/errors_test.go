package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatrixError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		row     string
		col     string
		err     error
		wantMsg string
	}{
		{
			name:    "unknown competitor",
			op:      "record",
			row:     "openai/gpt",
			col:     "ghost",
			err:     ErrUnknownCompetitor,
			wantMsg: "matrix error: operation=record, row=openai/gpt, col=ghost, err=unknown competitor",
		},
		{
			name:    "self comparison",
			op:      "record",
			row:     "a",
			col:     "a",
			err:     ErrSelfComparison,
			wantMsg: "matrix error: operation=record, row=a, col=a, err=competitor compared with itself",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewMatrixError(tt.op, tt.row, tt.col, tt.err)

			assert.Equal(t, tt.wantMsg, err.Error(), "Error message mismatch")
			assert.Equal(t, tt.op, err.Op, "Operation mismatch")
			assert.Equal(t, tt.row, err.Row, "Row mismatch")
			assert.Equal(t, tt.col, err.Col, "Col mismatch")

			// Test error unwrapping
			assert.True(t, errors.Is(err, tt.err), "Should unwrap to underlying error")
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("Tournament")
		err.AddError("missing competitors")

		assert.Equal(t, "validation error for Tournament: missing competitors", err.Error())
		assert.True(t, err.HasErrors(), "Should have errors")
		assert.Len(t, err.Errors, 1, "Should have one error")
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("Tournament")
		err.AddError("duplicate competitor")
		err.AddError("unknown judge")
		err.AddError("empty tie marker")

		assert.Contains(t, err.Error(), "validation errors for Tournament")
		assert.True(t, err.HasErrors(), "Should have errors")
		assert.Len(t, err.Errors, 3, "Should have three errors")
	})

	t.Run("no errors", func(t *testing.T) {
		err := NewValidationError("Config")

		assert.False(t, err.HasErrors(), "Should not have errors")
		assert.Empty(t, err.Errors, "Errors slice should be empty")
	})
}

func TestCommonDomainErrors(t *testing.T) {
	tests := []struct {
		err     error
		message string
	}{
		{ErrEmptyRoster, "roster has no competitors"},
		{ErrDuplicateCompetitor, "duplicate competitor"},
		{ErrUnknownCompetitor, "unknown competitor"},
		{ErrShapeMismatch, "matrix shape mismatch"},
		{ErrInvalidConfiguration, "invalid configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error(), "Error message mismatch")
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	baseErr := errors.New("base error")
	matrixErr := NewMatrixError("align", "", "", baseErr)

	assert.True(t, errors.Is(matrixErr, baseErr), "Should match base error with Is")
	assert.Equal(t, baseErr, errors.Unwrap(matrixErr), "Should unwrap to base error")

	var target *MatrixError
	wrapped := errors.Join(errors.New("loading"), NewMatrixError("from_rows", "a", "b", ErrAsymmetric))
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "from_rows", target.Op)
	assert.True(t, errors.Is(wrapped, ErrAsymmetric))
}
