package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Recommendation is an admin-curated link between a user and an exercise.
// Several recommendations may point the same exercise at the same user.
type Recommendation struct {
	// ID is the unique identifier of the recommendation.
	ID string `json:"id" db:"id"`

	// UserID is the user the recommendation is addressed to.
	UserID string `json:"userId" db:"user_id"`

	// ExerciseID references the exercise by catalog or local id.
	ExerciseID string `json:"exerciseId" db:"exercise_id"`

	// Notes is free text from the admin, trimmed of surrounding whitespace.
	Notes string `json:"notes" db:"notes"`

	// Tags are free-form labels. Never nil once stored.
	Tags Tags `json:"tags" db:"tags"`

	// CreatedAt is the timestamp at which the recommendation was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent edit.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// RecommendationView is a recommendation enriched with exercise metadata.
type RecommendationView struct {
	Recommendation
	Exercise ExerciseDetail `json:"exercise"`
}

// Tags is a list of labels that decodes leniently: any JSON value that is
// not an array of strings becomes an empty list instead of an error.
// Non-string array members are dropped.
type Tags []string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tags) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*t = Tags{}
		return nil
	}
	out := make(Tags, 0, len(raw))
	for _, item := range raw {
		var tag string
		if err := json.Unmarshal(item, &tag); err != nil {
			continue
		}
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	*t = out
	return nil
}

// MarshalJSON implements json.Marshaler. A nil list is written as [].
func (t Tags) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(t))
}

// Normalize returns a non-nil copy with blank entries removed.
func (t Tags) Normalize() Tags {
	out := make(Tags, 0, len(t))
	for _, tag := range t {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
