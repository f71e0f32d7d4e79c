package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"

	dErrors "convoca/pkg/domain-errors"
)

// ScoringCriterion is one row of a call's scoring table.
type ScoringCriterion struct {
	Concept     string `json:"concept"`
	MaxPoints   int    `json:"max_points"`
	Description string `json:"description"`
}

// ScoringTable is the ordered list of scoring criteria attached to a call.
//
// Two storage formats exist: the current list-of-objects form and a legacy
// flat map of concept to points with no description. Normalization to the
// list form happens here, once, at the decode boundary; business logic
// only ever sees the list form. Legacy non-numeric point values normalize
// to 0 and the description defaults to empty. Legacy maps carry no order,
// so their entries are sorted by concept for a stable result.
type ScoringTable []ScoringCriterion

// UnmarshalJSON accepts both storage formats.
func (t *ScoringTable) UnmarshalJSON(data []byte) error {
	var list []ScoringCriterion
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}

	var legacy map[string]json.Number
	if err := json.Unmarshal(data, &legacy); err != nil {
		// Non-numeric legacy values make the map[string]json.Number
		// decode fail; fall back to raw values and coerce below.
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "scoring table is neither a criteria list nor a legacy map")
		}
		legacy = make(map[string]json.Number, len(raw))
		for concept, v := range raw {
			if n, ok := v.(float64); ok {
				legacy[concept] = json.Number(fmt.Sprintf("%g", n))
			} else {
				legacy[concept] = json.Number("")
			}
		}
	}

	criteria := make([]ScoringCriterion, 0, len(legacy))
	for concept, points := range legacy {
		max := 0
		if n, err := points.Int64(); err == nil {
			max = int(n)
		} else if f, err := points.Float64(); err == nil {
			max = int(f)
		}
		criteria = append(criteria, ScoringCriterion{Concept: concept, MaxPoints: max})
	}
	sort.Slice(criteria, func(i, j int) bool { return criteria[i].Concept < criteria[j].Concept })
	*t = criteria
	return nil
}

// Value serializes the table for storage in a JSONB column, always in the
// list form.
func (t ScoringTable) Value() (driver.Value, error) {
	if t == nil {
		t = ScoringTable{}
	}
	return json.Marshal([]ScoringCriterion(t))
}

// Scan decodes a JSONB column, accepting either storage format.
func (t *ScoringTable) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = nil
		return nil
	case []byte:
		return t.UnmarshalJSON(v)
	case string:
		return t.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("scan scoring table: unsupported type %T", src)
	}
}

// TotalMaxPoints sums the table's maximum points, used by exports.
func (t ScoringTable) TotalMaxPoints() int {
	total := 0
	for _, c := range t {
		total += c.MaxPoints
	}
	return total
}
