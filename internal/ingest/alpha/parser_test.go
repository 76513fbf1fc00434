package alpha

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `
"Legs · Day 2 · Week 4 · Push-Pull-Legs";"2026-02-19 4:54 h";"1:02 hr"
"1. Hack Squats · Machine · 8 reps";"WU1 · 37,5 kg · 9 reps<br>WU2 · 72,5 kg · 7 reps"
#;KG;REPS;RIR
1;115;8;1
2;115;10;1
3;115;10;1
"2. Sumo Squats · Smith machine · 10 reps";"WU1 · 35 kg · 8 reps"
#;KG;REPS;RIR
1;70;8;1
2;70;12;1
"3. Hyperextensions on Roman Chair · Bodyweight · 10 reps";"WU1 · +0 kg · 8 reps"
#;KG;REPS;RIR
1;+35;10;0
2;+35;9;1
"4. Standing Calf Raise · Machine · 12 reps"
#;KG;REPS;RIR
1;157,5;11;1
2;157,5;10;0,5
"5. Hanging Leg Raise · Bodyweight · 12 reps · 2 dropsets"
#;KG;REPS;RIR
1;+0;12;1

"Push · Day 1 · Week 4 · Push-Pull-Legs";"2026-02-17 17:04 h";"1:12 hr"
"1. Barbell Bench Press · Barbell · 6 reps";"WU1 · 22,5 kg · 10 reps<br>WU2 · 47,5 kg · 8 reps"
#;KG;REPS;RIR
1;102,5;6;0
2;100;6;0
`

// TestParseSessions covers a two-session export end to end.
func TestParseSessions(t *testing.T) {
	sessions, err := Parse(strings.NewReader(sampleCSV), time.UTC)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	legs := sessions[0]
	assert.Equal(t, "Legs · Day 2 · Week 4 · Push-Pull-Legs", legs.Name)
	assert.Equal(t, "1:02 hr", legs.Duration)
	assert.Equal(t, time.Date(2026, 2, 19, 4, 54, 0, 0, time.UTC), legs.Date)
	require.Len(t, legs.Exercises, 5)

	hack := legs.Exercises[0]
	assert.Equal(t, 1, hack.Number)
	assert.Equal(t, "Hack Squats", hack.Name)
	assert.Equal(t, "Machine", hack.Equipment)
	assert.Equal(t, 8, hack.TargetReps)
	require.Len(t, hack.Sets, 5, "2 warmups + 3 working sets")
	assert.True(t, hack.Sets[0].IsWarmup)
	assert.False(t, hack.Sets[2].IsWarmup)
	assert.Equal(t, 115.0, hack.Sets[2].WeightKg)

	sumo := legs.Exercises[1]
	assert.Equal(t, "Smith machine", sumo.Equipment)
	assert.Len(t, sumo.Sets, 3)

	hyper := legs.Exercises[2]
	assert.Equal(t, "Hyperextensions on Roman Chair", hyper.Name)
	assert.True(t, hyper.Sets[1].IsBodyweightPlus)
	assert.Equal(t, 35.0, hyper.Sets[1].WeightKg)

	calf := legs.Exercises[3]
	assert.Len(t, calf.Sets, 2)
	assert.Equal(t, 157.5, calf.Sets[0].WeightKg)
	assert.Equal(t, 0.5, calf.Sets[1].RIR)

	raises := legs.Exercises[4]
	assert.Equal(t, "Hanging Leg Raise", raises.Name)
	assert.Equal(t, "Bodyweight", raises.Equipment)
	assert.Equal(t, 12, raises.TargetReps)

	push := sessions[1]
	assert.Equal(t, 17, push.Date.Hour())
	require.Len(t, push.Exercises, 1)
	assert.Equal(t, 102.5, push.Exercises[0].Sets[2].WeightKg)
}

func TestParseInLocation(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("zone data unavailable")
	}
	sessions, err := Parse(strings.NewReader(sampleCSV), berlin)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 19, 3, 54, 0, 0, time.UTC), sessions[0].Date.UTC())
}

func TestParseWeight(t *testing.T) {
	tests := []struct {
		in     string
		weight float64
		bw     bool
	}{
		{"102,5", 102.5, false},
		{"100", 100, false},
		{"+35", 35, true},
		{"+0", 0, true},
		{" 7,25 ", 7.25, false},
	}
	for _, tt := range tests {
		w, bw := parseWeight(tt.in)
		assert.Equal(t, tt.weight, w, tt.in)
		assert.Equal(t, tt.bw, bw, tt.in)
	}
}

// TestParseWarmups splits the <br> separated warmup field.
func TestParseWarmups(t *testing.T) {
	sets := parseWarmups("WU1 · 37,5 kg · 9 reps<br>WU2 · +0 kg · 7 reps<br>garbage")
	require.Len(t, sets, 2)
	assert.Equal(t, Set{Number: 1, WeightKg: 37.5, Reps: 9, IsWarmup: true}, sets[0])
	assert.True(t, sets[1].IsBodyweightPlus)
}

func TestParseEmptyInput(t *testing.T) {
	sessions, err := Parse(strings.NewReader(""), nil)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestParseOrphanRows(t *testing.T) {
	_, err := Parse(strings.NewReader("1;100;5;1\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")

	_, err = Parse(strings.NewReader(`"1. Squat · Barbell · 5 reps"`+"\n"), nil)
	assert.ErrorContains(t, err, "exercise without session")
}
