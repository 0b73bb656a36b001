package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidArgument:    http.StatusBadRequest,
		CodeUnauthorized:       http.StatusUnauthorized,
		CodeForbidden:          http.StatusForbidden,
		CodeNotFound:           http.StatusNotFound,
		CodeConflict:           http.StatusConflict,
		CodeRateLimitExceeded:  http.StatusTooManyRequests,
		CodeInternal:           http.StatusInternalServerError,
		Code("SOMETHING_ELSE"): http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatus(code), string(code))
	}
}

func TestCodes(t *testing.T) {
	t.Run("new error carries code and message", func(t *testing.T) {
		err := New(CodeNotFound, "payment not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.Equal(t, "payment not found", err.Error())
		assert.Equal(t, "payment not found", Message(err))
	})

	t.Run("wrap keeps cause reachable", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := Wrap(cause, CodeInternal, "failed to load payment")
		require.ErrorIs(t, err, cause)
		assert.Equal(t, "failed to load payment: connection reset", err.Error())
	})

	t.Run("wrap nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
	})

	t.Run("code survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("commit: %w", New(CodeConflict, "already refunded"))
		assert.True(t, HasCode(err, CodeConflict))
	})

	t.Run("uncoded errors are internal and hide their message", func(t *testing.T) {
		err := errors.New("pq: relation does not exist")
		assert.Equal(t, CodeInternal, CodeOf(err))
		assert.Equal(t, "internal error", Message(err))
	})

	t.Run("nil has no code", func(t *testing.T) {
		assert.Equal(t, Code(""), CodeOf(nil))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}
