package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapAndCodes(t *testing.T) {
	base := errors.New("connection refused")

	t.Run("wrap nil returns nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("wrapped error keeps cause and code", func(t *testing.T) {
		err := Wrap(base, CodeUnavailable, "store unavailable")
		assert.True(t, HasCode(err, CodeUnavailable))
		assert.True(t, errors.Is(err, base))
		assert.Equal(t, "store unavailable: connection refused", err.Error())
	})

	t.Run("outermost code wins", func(t *testing.T) {
		inner := New(CodeNotFound, "issuer not found")
		err := Wrap(inner, CodeInternal, "lookup failed")
		assert.Equal(t, CodeInternal, CodeOf(err))
	})

	t.Run("code survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("context: %w", New(CodeExpired, "code expired"))
		assert.True(t, HasCode(err, CodeExpired))
	})

	t.Run("plain errors map to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(base))
		assert.False(t, HasCode(base, CodeInternal))
	})

	t.Run("equal code and message match", func(t *testing.T) {
		err := New(CodeInvalidToken, "invalid or tampered token")
		assert.True(t, Is(err, New(CodeInvalidToken, "invalid or tampered token")))
		assert.False(t, Is(err, New(CodeInvalidToken, "other")))
	})
}
