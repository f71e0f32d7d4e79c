package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("direct code matches", func(t *testing.T) {
		err := New(CodeNotFound, "call not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("wrapped cause code is visible", func(t *testing.T) {
		inner := New(CodeRelationshipConflict, "blocked by phases")
		outer := Wrap(inner, CodeInternal, "soft delete failed")
		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeRelationshipConflict))
	})

	t.Run("plain errors never match", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil passthrough", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("cause survives errors.Is", func(t *testing.T) {
		sentinel := errors.New("row gone")
		err := Wrap(fmt.Errorf("load call: %w", sentinel), CodeNotFound, "call not found")
		assert.True(t, errors.Is(err, sentinel))
		assert.Equal(t, CodeNotFound, CodeOf(err))
	})
}

func TestMetadata(t *testing.T) {
	var err error = New(CodeRelationshipConflict, "call has dependent records")
	err = Add(err, "blocking_count", 3)
	err = Add(err, "entity_type", "call")

	require.Equal(t, 3, LoadInt(err, "blocking_count"))
	v, ok := Load(err, "entity_type")
	require.True(t, ok)
	assert.Equal(t, "call", v)

	_, ok = Load(err, "missing")
	assert.False(t, ok)
	assert.Zero(t, LoadInt(errors.New("plain"), "blocking_count"))
}
