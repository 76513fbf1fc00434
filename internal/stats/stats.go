// Package stats derives one-rep maxes, volume and progress trends from
// logged workout sets. Every function is pure.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/claude/liftlog/internal/models"
)

// Trend classifies how a series of values moved over time.
type Trend string

const (
	TrendImproving        Trend = "improving"
	TrendDeclining        Trend = "declining"
	TrendStable           Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
)

// trendThreshold is the percent change separating stable from a trend.
const trendThreshold = 5.0

// OneRepMax estimates a one-rep max with the Epley formula.
// Non-finite input or reps <= 0 yields 0.
func OneRepMax(weight, reps float64) int {
	if math.IsNaN(weight) || math.IsInf(weight, 0) || math.IsNaN(reps) || math.IsInf(reps, 0) || reps <= 0 {
		return 0
	}
	if reps == 1 {
		return int(math.Round(weight))
	}
	return int(math.Round(weight * (1 + reps/30)))
}

// SetOneRepMax is OneRepMax for a logged set.
func SetOneRepMax(s models.WorkoutSet) int {
	return OneRepMax(s.Weight, float64(s.Reps))
}

// TotalVolume sums weight times reps.
func TotalVolume(sets []models.WorkoutSet) float64 {
	var total float64
	for _, s := range sets {
		total += s.Weight * float64(s.Reps)
	}
	return total
}

// ComputeTrend compares the average of the later half of values against
// the earlier half. values must be in chronological order. The split is at
// len/2 rounded down, so an odd element goes to the later half.
func ComputeTrend(values []float64) Trend {
	if len(values) < 2 {
		return TrendInsufficientData
	}
	mid := len(values) / 2
	first := mean(values[:mid])
	second := mean(values[mid:])

	if first == 0 {
		if second > 0 {
			return TrendImproving
		}
		return TrendStable
	}

	change := (second - first) / first * 100
	switch {
	case change > trendThreshold:
		return TrendImproving
	case change < -trendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Intensity returns weight as a rounded percentage of oneRM.
func Intensity(weight float64, oneRM int) int {
	if oneRM == 0 {
		return 0
	}
	return int(math.Round(weight / float64(oneRM) * 100))
}

// Progress summarizes one exercise over a window.
type Progress struct {
	Exercise      string  `json:"exercise"`
	TotalSessions int     `json:"totalSessions"`
	AvgWeight     float64 `json:"avgWeight"`
	MaxWeight     float64 `json:"maxWeight"`
	MaxOneRM      int     `json:"maxOneRM"`
	ProgressTrend Trend   `json:"progressTrend"`
}

// AnalyzeProgress summarizes the sets of exercise dated at or after since.
// It returns nil when nothing matches.
func AnalyzeProgress(sets []models.WorkoutSet, exercise string, since time.Time) *Progress {
	var matched []models.WorkoutSet
	for _, s := range sets {
		if s.Name == exercise && !s.Date.Before(since) {
			matched = append(matched, s)
		}
	}
	if len(matched) == 0 {
		return nil
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Date.Before(matched[j].Date)
	})

	p := &Progress{Exercise: exercise, TotalSessions: len(matched)}
	oneRMs := make([]float64, 0, len(matched))
	var weightSum float64
	for _, s := range matched {
		weightSum += s.Weight
		if s.Weight > p.MaxWeight {
			p.MaxWeight = s.Weight
		}
		orm := SetOneRepMax(s)
		if orm > p.MaxOneRM {
			p.MaxOneRM = orm
		}
		oneRMs = append(oneRMs, float64(orm))
	}
	p.AvgWeight = weightSum / float64(len(matched))
	p.ProgressTrend = ComputeTrend(oneRMs)
	return p
}

// Summary aggregates all sets in a window.
type Summary struct {
	PeriodDays        int                     `json:"period"`
	TotalWorkouts     int                     `json:"totalWorkouts"`
	WorkoutDays       int                     `json:"workoutDays"`
	TotalVolume       int64                   `json:"totalVolume"`
	BodyPartBreakdown map[models.BodyPart]int `json:"bodyPartBreakdown"`
	PersonalRecords   int                     `json:"personalRecords"`
}

// Summarize aggregates sets dated at or after since. Workout days are
// counted in the location of each set's timestamp.
func Summarize(sets []models.WorkoutSet, since time.Time) Summary {
	sum := Summary{BodyPartBreakdown: make(map[models.BodyPart]int)}
	days := make(map[string]struct{})
	var volume float64
	for _, s := range sets {
		if s.Date.Before(since) {
			continue
		}
		sum.TotalWorkouts++
		days[models.DayKey(s.Date)] = struct{}{}
		sum.BodyPartBreakdown[s.BodyPart]++
		volume += s.Weight * float64(s.Reps)
	}
	sum.WorkoutDays = len(days)
	sum.TotalVolume = int64(math.Round(volume))
	return sum
}
