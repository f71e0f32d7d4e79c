package service

import (
	dErrors "convoca/pkg/domain-errors"
)

// The deletion guard is a pure decision over dependent-record counts.
// Which descendant set the counts cover is the caller's policy: soft
// deletes count active descendants, purges count everything including
// trashed rows (a purge must be able to promise nothing survives).

// CanDeleteCall reports whether a call with the given dependent counts
// may be deleted.
func CanDeleteCall(phaseCount, resolutionCount int) bool {
	return phaseCount == 0 && resolutionCount == 0
}

// CanDeletePhase reports whether a phase with the given dependent
// resolution count may be deleted.
func CanDeletePhase(resolutionCount int) bool {
	return resolutionCount == 0
}

// relationshipConflict builds the failure signal the guard surfaces:
// never a silent no-op, never a partial mutation. Metadata carries the
// entity and blocking count so callers can render a precise message.
func relationshipConflict(entityType, entityID string, blockingCount int) error {
	err := dErrors.Newf(dErrors.CodeRelationshipConflict,
		"%s has %d dependent record(s)", entityType, blockingCount)
	_ = dErrors.Add(err, "entity_type", entityType)
	_ = dErrors.Add(err, "entity_id", entityID)
	return dErrors.Add(err, "blocking_count", blockingCount)
}
