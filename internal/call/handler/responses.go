package handler

import (
	"convoca/internal/call/models"
)

// The models carry json tags already; responses wrap them in list
// envelopes so adding pagination later will not break clients.

type listEnvelope[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func callListResponse(calls []*models.Call) listEnvelope[*models.Call] {
	return listEnvelope[*models.Call]{Items: emptyNotNil(calls), Count: len(calls)}
}

func phaseListResponse(phases []*models.Phase) listEnvelope[*models.Phase] {
	return listEnvelope[*models.Phase]{Items: emptyNotNil(phases), Count: len(phases)}
}

func resolutionListResponse(list []*models.Resolution) listEnvelope[*models.Resolution] {
	return listEnvelope[*models.Resolution]{Items: emptyNotNil(list), Count: len(list)}
}

type markCurrentBody struct {
	Current     bool            `json:"current"`
	Overlapping []*models.Phase `json:"overlapping_phases"`
}

// markCurrentResponse reports the advisory overlap warning alongside the
// confirmation; overlap never blocks the change.
func markCurrentResponse(overlapping []*models.Phase) markCurrentBody {
	return markCurrentBody{Current: true, Overlapping: emptyNotNil(overlapping)}
}

func emptyNotNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
