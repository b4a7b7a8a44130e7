package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	base := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"direct", New(CodeConflict, "duplicate"), CodeConflict, true},
		{"wrapped by fmt", fmt.Errorf("outer: %w", New(CodeNotFound, "gone")), CodeNotFound, true},
		{"other code", New(CodeValidation, "bad"), CodeConflict, false},
		{"plain error", base, CodeInternal, false},
		{"nil", nil, CodeInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasCode(tt.err, tt.code))
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, CodeInternal, "failed to persist")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestNotFoundCarriesEntity(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NotFound("Activity"))

	assert.True(t, Is(err, CodeNotFound))
	assert.Equal(t, Entity("Activity"), EntityOf(err))
	assert.Equal(t, Entity(""), EntityOf(errors.New("plain")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}
