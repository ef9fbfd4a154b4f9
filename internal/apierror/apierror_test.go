package apierror

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrNotFound, CodeOf(NotFound("company missing", nil)))
	assert.Equal(t, ErrTransient, CodeOf(Transient("oracle timeout", nil)))
	assert.Equal(t, ErrInternalServer, CodeOf(errors.New("anything")))
}

func TestCodeOfWrappedError(t *testing.T) {
	wrapped := errors.Wrap(Transient("market data unreachable", nil), "fetch stats")
	assert.Equal(t, ErrTransient, CodeOf(wrapped))
	assert.True(t, IsRetryable(wrapped))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Transient("timeout", nil)))
	assert.False(t, IsRetryable(Validation("bad payload", nil)))
	assert.False(t, IsRetryable(NotFound("job missing", nil)))
	assert.False(t, IsRetryable(Persistence("insert failed", nil)))
	assert.False(t, IsRetryable(CacheFailure("redis down", nil)))
}

func TestErrorString(t *testing.T) {
	err := Validation("payload is malformed", "details")
	assert.Equal(t, "VALIDATION: payload is malformed", err.Error())
}
