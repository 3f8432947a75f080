package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBonsaiError_Error(t *testing.T) {
	err := NewError(ErrCodeEval, "unexpected token")
	assert.Equal(t, "[EVAL_ERROR] unexpected token", err.Error())

	err.WithNode("B")
	assert.Equal(t, "[EVAL_ERROR] node B: unexpected token", err.Error())
}

func TestBonsaiError_UnwrapAndHasCode(t *testing.T) {
	cause := errors.New("boom")
	err := NewErrorf(ErrCodeEval, "evaluation failed: %s", cause).WithCause(cause)
	wrapped := fmt.Errorf("dispatch: %w", err)

	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, HasCode(wrapped, ErrCodeEval))
	assert.False(t, HasCode(wrapped, ErrCodeNotFound))
	assert.False(t, HasCode(cause, ErrCodeEval))
}

func TestBonsaiError_WithDetailsMerges(t *testing.T) {
	err := NewError(ErrCodeEval, "x").
		WithDetails(map[string]any{"kind": EvalKindSyntax}).
		WithDetails(map[string]any{"dialect": "expr"})

	assert.Equal(t, EvalKindSyntax, err.Kind())
	assert.Equal(t, "expr", err.Details["dialect"])
}

func TestAsBonsaiError(t *testing.T) {
	assert.Nil(t, AsBonsaiError(nil, ErrCodeStore))

	orig := NewError(ErrCodeNotFound, "missing")
	assert.Same(t, orig, AsBonsaiError(fmt.Errorf("ctx: %w", orig), ErrCodeStore))

	plain := errors.New("disk full")
	got := AsBonsaiError(plain, ErrCodeStore)
	require.NotNil(t, got)
	assert.Equal(t, ErrCodeStore, got.Code)
	assert.ErrorIs(t, got, plain)
}
