package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
)

func validCallAttrs() NewCallAttrs {
	return NewCallAttrs{
		Title:          "Erasmus+ Outgoing 2026/27",
		ProgramID:      "erasmus-plus",
		Type:           TypeStudent,
		Modality:       ModalityLong,
		NumberOfPlaces: 40,
		Destinations:   []string{"Lisboa", "Bologna"},
	}
}

func TestNewCall(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	t.Run("defaults to draft with derived slug", func(t *testing.T) {
		c, err := NewCall(id.NewCallID(), validCallAttrs(), now)
		require.NoError(t, err)
		assert.Equal(t, StatusDraft, c.Status)
		assert.Equal(t, "erasmus-outgoing-2026-27", c.Slug)
		assert.Nil(t, c.PublishedAt)
		assert.Nil(t, c.ClosedAt)
		assert.False(t, c.IsTrashed())
	})

	t.Run("explicit slug wins over derivation", func(t *testing.T) {
		attrs := validCallAttrs()
		attrs.Slug = "erasmus-27"
		c, err := NewCall(id.NewCallID(), attrs, now)
		require.NoError(t, err)
		assert.Equal(t, "erasmus-27", c.Slug)
	})

	t.Run("destinations dedupe case-insensitively keeping the first spelling", func(t *testing.T) {
		attrs := validCallAttrs()
		attrs.Destinations = []string{" Lisboa ", "lisboa", "LISBOA", "Bologna"}
		c, err := NewCall(id.NewCallID(), attrs, now)
		require.NoError(t, err)
		assert.Equal(t, []string{"Lisboa", "Bologna"}, c.Destinations)
	})

	t.Run("blank destinations are dropped, none left rejects", func(t *testing.T) {
		attrs := validCallAttrs()
		attrs.Destinations = []string{"  ", ""}
		_, err := NewCall(id.NewCallID(), attrs, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("places below one rejects", func(t *testing.T) {
		attrs := validCallAttrs()
		attrs.NumberOfPlaces = 0
		_, err := NewCall(id.NewCallID(), attrs, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("unknown type rejects", func(t *testing.T) {
		attrs := validCallAttrs()
		attrs.Type = CallType("alumni")
		_, err := NewCall(id.NewCallID(), attrs, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestApplyStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(48 * time.Hour)

	t.Run("first open stamps published_at once", func(t *testing.T) {
		c, err := NewCall(id.NewCallID(), validCallAttrs(), now)
		require.NoError(t, err)

		require.True(t, c.ApplyStatus(StatusOpen, now))
		require.NotNil(t, c.PublishedAt)
		assert.Equal(t, now, *c.PublishedAt)

		// Repeat transition is a no-op and keeps the original stamp.
		assert.False(t, c.ApplyStatus(StatusOpen, later))
		assert.Equal(t, now, *c.PublishedAt)
	})

	t.Run("first close stamps closed_at once", func(t *testing.T) {
		c, err := NewCall(id.NewCallID(), validCallAttrs(), now)
		require.NoError(t, err)

		require.True(t, c.ApplyStatus(StatusClosed, now))
		require.NotNil(t, c.ClosedAt)

		assert.False(t, c.ApplyStatus(StatusClosed, later))
		assert.Equal(t, now, *c.ClosedAt)
	})

	t.Run("reopening after close keeps both stamps", func(t *testing.T) {
		c, err := NewCall(id.NewCallID(), validCallAttrs(), now)
		require.NoError(t, err)
		c.ApplyStatus(StatusOpen, now)
		c.ApplyStatus(StatusClosed, later)

		// Administrative override back to draft is allowed.
		require.NoError(t, c.CanTransitionTo(StatusDraft))
		assert.True(t, c.ApplyStatus(StatusDraft, later))
		assert.NotNil(t, c.PublishedAt)
		assert.NotNil(t, c.ClosedAt)
	})
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Erasmus+ Outgoing 2026/27": "erasmus-outgoing-2026-27",
		"  Becas  SICUE  ":          "becas-sicue",
		"---":                       "",
		"Movilidad (PDI)":           "movilidad-pdi",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "slugify %q", in)
	}
}
