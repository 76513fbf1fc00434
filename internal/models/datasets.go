package models

import (
	"regexp"
	"time"
)

// Local dataset keys.
const (
	KeyExercises          = "exercises"
	KeyWorkoutHistory     = "workoutHistory"
	KeyPersonalRecords    = "personalRecords"
	KeyUserPreferences    = "userPreferences"
	KeyRoutineData        = "routineData"
	KeyStretchingProgress = "stretchingProgress"
	KeySession            = "session"
)

// DatasetKeys are the keys covered by export, import and reset.
var DatasetKeys = []string{
	KeyExercises,
	KeyWorkoutHistory,
	KeyPersonalRecords,
	KeyUserPreferences,
	KeyRoutineData,
	KeyStretchingProgress,
}

// Remote collection names.
const (
	CollectionWorkoutRecords  = "workoutRecords"
	CollectionPersonalRecords = "personalRecords"
	CollectionUserExercises   = "userExercises"
)

// Session is the signed-in principal as seen by the rest of the client.
type Session struct {
	UID         string `json:"uid"`
	Anonymous   bool   `json:"anonymous"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarURL,omitempty"`
	Method      string `json:"method,omitempty"`
	Token       string `json:"token,omitempty"`
}

// Label is the name shown to the user for this session.
func (s *Session) Label() string {
	switch {
	case s == nil:
		return "signed out"
	case s.DisplayName != "":
		return s.DisplayName
	case s.Anonymous:
		return "anonymous"
	default:
		return s.UID
	}
}

// Preferences holds user-facing settings.
type Preferences struct {
	LastSelectedBodyPart BodyPart       `json:"lastSelectedBodyPart"`
	TimerDefault         int            `json:"timerDefault"`
	Theme                string         `json:"theme"`
	Extra                map[string]any `json:"extra,omitempty"`
}

// DefaultPreferences returns the preferences written on first start.
func DefaultPreferences() Preferences {
	return Preferences{
		LastSelectedBodyPart: BodyPartLegs,
		TimerDefault:         90,
		Theme:                "light",
	}
}

// RoutineData tracks the weekly plan and rotation state.
type RoutineData struct {
	LastWorkout string            `json:"lastWorkout"`
	RestDays    int               `json:"restDays"`
	WeeklyPlan  map[string]string `json:"weeklyPlan"`
}

// DefaultRoutine returns the routine written on first start.
func DefaultRoutine() RoutineData {
	return RoutineData{LastWorkout: "NONE", RestDays: 1}
}

// StretchingProgress maps a day (YYYY-MM-DD) to per-exercise completion.
type StretchingProgress map[string]map[string]bool

// DayKey formats t as a stretching progress key.
func DayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// PersonalRecordDocID is the remote document id of an owner's PR for exercise.
func PersonalRecordDocID(ownerID, exercise string) string {
	return ownerID + "_" + whitespaceRe.ReplaceAllString(exercise, "_")
}

// UserExerciseDocID is the remote document id of a user-added exercise.
func UserExerciseDocID(ownerID string, bodyPart BodyPart, name string) string {
	return ownerID + "_" + string(bodyPart) + "_" + whitespaceRe.ReplaceAllString(name, "_")
}
