package apperrors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Run("derived errors keep the sentinel chain", func(t *testing.T) {
		ErrBase := New("base error")
		assert.Equal(t, "base error", ErrBase.Error())
		assert.Equal(t, "msg", ErrBase.New("msg").Error())
		assert.ErrorIs(t, ErrBase, ErrBase)

		ErrFirstLevel := ErrBase.New("first level")
		assert.Equal(t, "first level", ErrFirstLevel.Error())
		assert.ErrorIs(t, ErrFirstLevel, ErrBase)

		ErrAnother := New("another error")
		ErrAnotherMsg := ErrAnother.Msg("another error msg")
		ErrWrapped := ErrFirstLevel.Err(ErrAnotherMsg)
		assert.Equal(t, "first level", ErrWrapped.Error())
		assert.ErrorIs(t, ErrWrapped, ErrBase)
		assert.ErrorIs(t, ErrWrapped, ErrFirstLevel)
		assert.ErrorIs(t, ErrWrapped, ErrAnother)
		assert.ErrorIs(t, ErrWrapped, ErrAnotherMsg)
	})

	t.Run("go errors are attached as causes", func(t *testing.T) {
		ErrFirstLevel := New("base").New("first level")
		err := errors.New("error")
		wrapped := ErrFirstLevel.Err(err)
		assert.Equal(t, "first level", wrapped.Error())
		assert.Equal(t, "first level: error", wrapped.ErrorAll())
		assert.ErrorIs(t, wrapped, err)

		wrapped = ErrFirstLevel.MsgErr("msg", err)
		assert.Equal(t, "msg", wrapped.Error())
		assert.Equal(t, "msg: error", wrapped.ErrorAll())
		assert.ErrorIs(t, wrapped, ErrFirstLevel)
		assert.ErrorIs(t, wrapped, err)

		goErr1 := fmt.Errorf("another error")
		goErr2 := fmt.Errorf("yet another error")
		wrapped = ErrFirstLevel.Err(goErr1, goErr2)
		assert.ErrorIs(t, wrapped, goErr1)
		assert.ErrorIs(t, wrapped, goErr2)
		assert.Len(t, wrapped.UnwrapAll(), 3)
	})

	t.Run("status code and expected flag are inherited", func(t *testing.T) {
		ErrNotFound := New("not found").SetStatusCode(http.StatusNotFound).SetExpected(true)
		derived := ErrNotFound.Msg("session abc not found")
		assert.Equal(t, http.StatusNotFound, derived.StatusCode())
		assert.True(t, derived.Expected())
		assert.True(t, IsExpected(derived))
		assert.True(t, IsExpected(fmt.Errorf("wrapped: %w", derived)))
		assert.False(t, IsExpected(errors.New("plain")))
		assert.False(t, IsExpected(New("other")))
	})

	t.Run("builders do not mutate the receiver", func(t *testing.T) {
		ErrBase := New("base")
		_ = ErrBase.SetStatusCode(http.StatusTeapot)
		_ = ErrBase.SetExpected(true)
		assert.Equal(t, 0, ErrBase.StatusCode())
		assert.False(t, ErrBase.Expected())
	})

	t.Run("typed causes are reachable with errors.As", func(t *testing.T) {
		ErrCommand := New("command failed")
		cause := &exitError{code: 128}

		var target *exitError
		assert.True(t, errors.As(ErrCommand.Err(cause), &target))
		assert.Equal(t, 128, target.code)

		target = nil
		derived := ErrCommand.MsgErr("git checkout failed", cause).Msg("switch failed")
		assert.True(t, errors.As(derived, &target))
		assert.Equal(t, 128, target.code)
		assert.ErrorIs(t, derived, ErrCommand)

		assert.False(t, errors.As(ErrCommand.Msg("no cause"), &target))
	})
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}
