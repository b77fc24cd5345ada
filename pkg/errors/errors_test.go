package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Format(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: query not found", New(ErrCodeNotFound, "query not found").Error())

	cause := stderrors.New("disk full")
	err := Wrap(ErrCodeInternalError, "failed to save query", cause)
	assert.Equal(t, "INTERNAL_ERROR: failed to save query (disk full)", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestCodeOf_FollowsWrapping(t *testing.T) {
	err := fmt.Errorf("submit: %w", New(ErrCodeRateLimited, "slow down"))

	assert.Equal(t, ErrCodeRateLimited, CodeOf(err))
	assert.True(t, IsRateLimited(err))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, ErrCodeInternalError, CodeOf(stderrors.New("plain")))
}

func TestIsHelpers(t *testing.T) {
	assert.True(t, IsNotFound(New(ErrCodeNotFound, "x")))
	assert.True(t, IsUnauthorized(New(ErrCodeUnauthorized, "x")))
	assert.True(t, IsForbidden(New(ErrCodeForbidden, "x")))
	assert.False(t, IsForbidden(nil))
}
