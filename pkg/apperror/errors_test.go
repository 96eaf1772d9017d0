package apperror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "without field",
			err:      New(CodeCyclicDependency, "dependency graph contains a cycle"),
			expected: "[CYCLIC_DEPENDENCY] dependency graph contains a cycle",
		},
		{
			name:     "with field",
			err:      NewWithField(CodeServiceNotFound, "service not found", "service_id"),
			expected: "[SERVICE_NOT_FOUND] service not found (field: service_id)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(cause, CodeInternal, "wrapped")
	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
}

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{CodeServiceNotFound, http.StatusNotFound},
		{CodeNodeNotFound, http.StatusNotFound},
		{CodeCyclicDependency, http.StatusUnprocessableEntity},
		{CodeConvergenceNotReached, http.StatusAccepted},
		{CodeUnauthenticated, http.StatusUnauthorized},
		{CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		err := New(tt.code, "x")
		assert.Equal(t, tt.want, err.HTTPStatus())
	}
}

func TestIsAndCode(t *testing.T) {
	err := New(CodeNodeNotFound, "node n1 not found")
	assert.True(t, Is(err, CodeNodeNotFound))
	assert.False(t, Is(err, CodeServiceNotFound))
	assert.Equal(t, CodeNodeNotFound, Code(err))
	assert.Equal(t, CodeInternal, Code(errors.New("plain")))
}

func TestIsWarning(t *testing.T) {
	warn := NewWarning(CodeConvergenceNotReached, "did not converge")
	assert.True(t, IsWarning(warn))

	err := New(CodeInternal, "boom")
	assert.False(t, IsWarning(err))
}

func TestValidationErrors(t *testing.T) {
	v := NewValidationErrors()
	assert.True(t, v.IsValid())

	v.Add(NewWarning(CodeConvergenceNotReached, "slow convergence"))
	assert.True(t, v.IsValid())
	assert.Len(t, v.Warnings, 1)

	v.Add(New(CodeNodeNotFound, "missing node"))
	assert.False(t, v.IsValid())
	assert.True(t, v.HasErrors())
	assert.Equal(t, []string{"[NODE_NOT_FOUND] missing node"}, v.ErrorMessages())
}
