package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BodyPart is the category an exercise is filed under.
type BodyPart string

const (
	BodyPartLegs      BodyPart = "legs"
	BodyPartBack      BodyPart = "back"
	BodyPartChest     BodyPart = "chest"
	BodyPartShoulders BodyPart = "shoulders"
	BodyPartArms      BodyPart = "arms"
	BodyPartCore      BodyPart = "core"
)

// BodyParts lists every body part in display order.
var BodyParts = []BodyPart{
	BodyPartLegs,
	BodyPartBack,
	BodyPartChest,
	BodyPartShoulders,
	BodyPartArms,
	BodyPartCore,
}

// Valid reports whether b is one of the known body parts.
func (b BodyPart) Valid() bool {
	for _, p := range BodyParts {
		if b == p {
			return true
		}
	}
	return false
}

// ParseBodyPart normalizes and validates a body part name.
func ParseBodyPart(s string) (BodyPart, error) {
	b := BodyPart(strings.ToLower(strings.TrimSpace(s)))
	if !b.Valid() {
		return "", fmt.Errorf("unknown body part %q", s)
	}
	return b, nil
}

// WorkoutSet is one logged set. Records are append-only: only Synced may
// change after creation, and ID once assigned never does.
type WorkoutSet struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	BodyPart  BodyPart  `json:"bodyPart"`
	Weight    float64   `json:"weight"`
	Reps      int       `json:"reps"`
	SetNumber int       `json:"setNumber,omitempty"`
	Date      time.Time `json:"date"`
	Synced    bool      `json:"synced"`

	// Set only on copies that went through the remote store.
	UserID    string     `json:"userId,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Key returns the merge identity of the record: its ID, or a composite of
// name, date and set number for legacy records without one.
func (s WorkoutSet) Key() string {
	if s.ID != "" {
		return s.ID
	}
	return fmt.Sprintf("%s|%s|%d", s.Name, s.Date.UTC().Format(time.RFC3339Nano), s.SetNumber)
}

// Validate checks the fields a caller must supply when logging a set.
func (s WorkoutSet) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("exercise name is required")
	}
	if !s.BodyPart.Valid() {
		return fmt.Errorf("unknown body part %q", s.BodyPart)
	}
	if s.Weight < 0 || math.IsNaN(s.Weight) || math.IsInf(s.Weight, 0) {
		return fmt.Errorf("weight must be a non-negative number, got %v", s.Weight)
	}
	if s.Reps < 1 {
		return fmt.Errorf("reps must be at least 1, got %d", s.Reps)
	}
	return nil
}

// ParseReps parses a comma separated list of rep counts such as "8,8,6".
func ParseReps(s string) ([]int, error) {
	var reps []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid rep count %q", f)
		}
		reps = append(reps, n)
	}
	if len(reps) == 0 {
		return nil, fmt.Errorf("at least one rep count is required")
	}
	return reps, nil
}

// NewSetID returns a record id made of the creation time in unix millis and
// a short random suffix.
func NewSetID(at time.Time) string {
	return fmt.Sprintf("%d_%s", at.UnixMilli(), uuid.NewString()[:8])
}

// PersonalRecord is the best estimated one-rep max logged for an exercise.
type PersonalRecord struct {
	Exercise string    `json:"exercise"`
	Weight   float64   `json:"weight"`
	Reps     int       `json:"reps"`
	OneRM    int       `json:"oneRM"`
	Date     time.Time `json:"date"`

	UserID    string     `json:"userId,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Beats reports whether p should replace cur under the insert-time rule:
// a strictly higher one-rep max, or an equal one lifted with more weight.
func (p PersonalRecord) Beats(cur PersonalRecord) bool {
	if p.OneRM != cur.OneRM {
		return p.OneRM > cur.OneRM
	}
	return p.Weight > cur.Weight
}

// UserExercise is an exercise a user added on top of the built-in library.
type UserExercise struct {
	UserID       string   `json:"userId"`
	BodyPart     BodyPart `json:"bodyPart"`
	ExerciseName string   `json:"exerciseName"`
}

// Library maps body parts to their exercise names.
type Library map[BodyPart][]string
