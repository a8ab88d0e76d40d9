package types

import "time"

// Exercise is the locally cached copy of an external catalog entry.
// It is read-mostly reference data, filled in whenever a catalog
// lookup succeeds.
type Exercise struct {
	// ID is the catalog identifier (for example "0001").
	ID string `json:"id" db:"id"`

	// Name is the human-readable exercise name.
	Name string `json:"name" db:"name"`

	// BodyPart is the body-part category the catalog files the exercise under.
	BodyPart string `json:"bodyPart" db:"body_part"`

	// Target is the primary target muscle.
	Target string `json:"target" db:"target"`

	// Equipment is the equipment the exercise requires.
	Equipment string `json:"equipment,omitempty" db:"equipment"`

	// GifURL points at the catalog's animated demonstration.
	GifURL string `json:"gifUrl,omitempty" db:"gif_url"`

	// UpdatedAt is when the cache entry was last refreshed from the catalog.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ExerciseStatus reports whether exercise detail could be resolved.
type ExerciseStatus string

const (
	ExerciseAvailable   ExerciseStatus = "available"
	ExerciseUnavailable ExerciseStatus = "unavailable"
)

// ExerciseDetail is the exercise metadata attached to a recommendation at
// read time. When the lookup fails only ID and Status are set.
type ExerciseDetail struct {
	ID        string         `json:"id"`
	Status    ExerciseStatus `json:"status"`
	Name      string         `json:"name,omitempty"`
	BodyPart  string         `json:"bodyPart,omitempty"`
	Target    string         `json:"target,omitempty"`
	Equipment string         `json:"equipment,omitempty"`
	GifURL    string         `json:"gifUrl,omitempty"`
}

// AvailableDetail builds the detail for a resolved exercise.
func AvailableDetail(ex Exercise) ExerciseDetail {
	return ExerciseDetail{
		ID:        ex.ID,
		Status:    ExerciseAvailable,
		Name:      ex.Name,
		BodyPart:  ex.BodyPart,
		Target:    ex.Target,
		Equipment: ex.Equipment,
		GifURL:    ex.GifURL,
	}
}

// UnavailableDetail builds the placeholder used when a lookup fails.
func UnavailableDetail(id string) ExerciseDetail {
	return ExerciseDetail{ID: id, Status: ExerciseUnavailable}
}
