package store

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "convoca/pkg/domain-errors"
)

func TestClassifyPG(t *testing.T) {
	t.Run("serialization failure becomes a concurrency conflict", func(t *testing.T) {
		err := classifyPG(&pq.Error{Code: "40001"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConcurrencyConflict))
	})

	t.Run("deadlock becomes a concurrency conflict", func(t *testing.T) {
		err := classifyPG(&pq.Error{Code: "40P01"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConcurrencyConflict))
	})

	t.Run("wrapped driver errors are still recognized", func(t *testing.T) {
		wrapped := fmt.Errorf("commit: %w", &pq.Error{Code: "40001"})
		err := classifyPG(wrapped)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConcurrencyConflict))
	})

	t.Run("other driver codes pass through unchanged", func(t *testing.T) {
		original := &pq.Error{Code: "23505"}
		err := classifyPG(original)
		require.Same(t, original, err)
		assert.False(t, dErrors.HasCode(err, dErrors.CodeConcurrencyConflict))
	})

	t.Run("non-driver errors pass through unchanged", func(t *testing.T) {
		original := fmt.Errorf("boom")
		assert.Same(t, original, classifyPG(original))
	})
}
