package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "convoca/pkg/domain-errors"
)

func TestParseIDs(t *testing.T) {
	raw := uuid.New().String()

	t.Run("valid UUIDs parse for every id type", func(t *testing.T) {
		callID, err := ParseCallID(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, callID.String())

		phaseID, err := ParsePhaseID(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, phaseID.String())

		resolutionID, err := ParseResolutionID(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, resolutionID.String())

		actorID, err := ParseActorID(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, actorID.String())
	})

	t.Run("garbage comes back as a validation error", func(t *testing.T) {
		for _, input := range []string{"", "not-a-uuid", raw + "x", "'; DROP TABLE calls;--"} {
			_, err := ParseCallID(input)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "input %q", input)
		}
	})

	t.Run("zero value is detectable", func(t *testing.T) {
		assert.True(t, CallID{}.IsZero())
		assert.False(t, NewCallID().IsZero())
		assert.True(t, ActorID{}.IsZero())
		assert.False(t, NewActorID().IsZero())
	})
}

func TestIDJSONRoundtrip(t *testing.T) {
	callID := NewCallID()

	raw, err := json.Marshal(callID)
	require.NoError(t, err)
	assert.JSONEq(t, `"`+callID.String()+`"`, string(raw))

	var decoded CallID
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, callID, decoded)

	var bad CallID
	err = json.Unmarshal([]byte(`"nope"`), &bad)
	assert.Error(t, err)
}

func FuzzParseCallID(f *testing.F) {
	f.Add("")
	f.Add(uuid.New().String())
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		callID, err := ParseCallID(input)
		if err != nil {
			if !callID.IsZero() {
				t.Errorf("parse error must leave a zero id, got %s", callID)
			}
			return
		}
		reparsed, err := ParseCallID(callID.String())
		if err != nil {
			t.Errorf("canonical form %q failed to reparse: %v", callID, err)
		}
		if reparsed != callID {
			t.Errorf("roundtrip mismatch: %s != %s", reparsed, callID)
		}
	})
}
