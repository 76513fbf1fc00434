package mcp

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/liftlog/internal/models"
)

// defaultTimeRange returns start/end defaulting to the last 30 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -30)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.ParseInLocation(time.DateOnly, s, time.Local)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolLogSets = mcp.NewTool("log_sets",
	mcp.WithDescription("Log one or more sets of an exercise. Each set has the same exercise and weight; reps may differ. Updates the personal record when a set beats it."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise name (e.g. 'Barbell Squat')")),
	mcp.WithString("body_part", mcp.Required(), mcp.Description("Body part the exercise belongs to"), mcp.Enum("legs", "back", "chest", "shoulders", "arms", "core")),
	mcp.WithNumber("weight", mcp.Required(), mcp.Description("Weight per rep (kg)")),
	mcp.WithString("reps", mcp.Required(), mcp.Description("Comma separated reps per set, e.g. '8,8,6'")),
	mcp.WithString("date", mcp.Description("When the sets were done (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
)

var toolGetHistory = mcp.NewTool("get_history",
	mcp.WithDescription("Query logged sets, newest first, with optional exercise filter."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	mcp.WithString("exercise", mcp.Description("Filter by exercise name (partial match, case-insensitive)")),
	mcp.WithNumber("limit", mcp.Description("Maximum sets returned. Defaults to 100.")),
)

var toolGetPersonalRecords = mcp.NewTool("get_personal_records",
	mcp.WithDescription("Best estimated one-rep max per exercise, with the set that achieved it."),
	mcp.WithString("exercise", mcp.Description("Only this exercise (exact name)")),
)

var toolGetProgress = mcp.NewTool("get_progress",
	mcp.WithDescription("Progress of one exercise over a window: sessions, average and max weight, max one-rep max, and trend (improving, stable, declining)."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise name (exact)")),
	mcp.WithNumber("days", mcp.Description("Window in days. Defaults to 30.")),
)

var toolGetWorkoutSummary = mcp.NewTool("get_workout_summary",
	mcp.WithDescription("Sets, workout days, volume and body-part breakdown over a window."),
	mcp.WithNumber("days", mcp.Description("Window in days. Defaults to 30.")),
)

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List the exercise library by body part."),
	mcp.WithString("body_part", mcp.Description("Only this body part"), mcp.Enum("legs", "back", "chest", "shoulders", "arms", "core")),
)

var toolAddExercise = mcp.NewTool("add_exercise",
	mcp.WithDescription("Add an exercise to the library."),
	mcp.WithString("body_part", mcp.Required(), mcp.Description("Body part"), mcp.Enum("legs", "back", "chest", "shoulders", "arms", "core")),
	mcp.WithString("name", mcp.Required(), mcp.Description("Exercise name")),
)

var toolSyncNow = mcp.NewTool("sync_now",
	mcp.WithDescription("Push unsynced local data to the remote store and pull remote exercises. Does nothing when signed out or offline."),
)

// --- Tool handlers ---

func (h *handlers) logSets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercise, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}
	bodyPart, err := models.ParseBodyPart(req.GetString("body_part", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	weight, err := req.RequireFloat("weight")
	if err != nil {
		return mcp.NewToolResultError("weight parameter is required"), nil
	}
	reps, err := models.ParseReps(req.GetString("reps", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date := time.Now()
	if s := req.GetString("date", ""); s != "" {
		if date, err = parseFlexTime(s); err != nil {
			return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
		}
	}

	sets := make([]models.WorkoutSet, len(reps))
	for i, r := range reps {
		sets[i] = models.WorkoutSet{
			Name:      exercise,
			BodyPart:  bodyPart,
			Weight:    weight,
			Reps:      r,
			SetNumber: i + 1,
			Date:      date,
		}
	}
	added, err := h.t.RecordSets(ctx, sets)
	if err != nil {
		h.log.Error("mcp log_sets", "error", err)
		return mcp.NewToolResultError("logging failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{"logged": added})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}
	filter := strings.ToLower(req.GetString("exercise", ""))
	limit := req.GetInt("limit", 100)

	history, err := h.t.ListHistory(ctx)
	if err != nil {
		h.log.Error("mcp get_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	out := []models.WorkoutSet{}
	for _, s := range history {
		if s.Date.Before(start) || s.Date.After(end) {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(s.Name), filter) {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}

	result, err := mcp.NewToolResultJSON(map[string]any{"sets": out})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getPersonalRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prs, err := h.t.PersonalRecords(ctx)
	if err != nil {
		h.log.Error("mcp get_personal_records", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if name := req.GetString("exercise", ""); name != "" {
		pr, ok := prs[name]
		if !ok {
			return mcp.NewToolResultError("no personal record for " + name), nil
		}
		prs = map[string]models.PersonalRecord{name: pr}
	}

	result, err := mcp.NewToolResultJSON(map[string]any{"records": sortedRecords(prs)})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercise, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}
	p, err := h.t.Progress(ctx, exercise, req.GetInt("days", 30))
	if err != nil {
		h.log.Error("mcp get_progress", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if p == nil {
		return mcp.NewToolResultText("no sets of " + exercise + " in the window"), nil
	}

	result, err := mcp.NewToolResultJSON(p)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWorkoutSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := h.t.Summary(ctx, req.GetInt("days", 30))
	if err != nil {
		h.log.Error("mcp get_workout_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sum)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listExercises(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lib, err := h.t.Exercises()
	if err != nil {
		h.log.Error("mcp list_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if s := req.GetString("body_part", ""); s != "" {
		bp, err := models.ParseBodyPart(s)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		lib = models.Library{bp: lib[bp]}
	}

	result, err := mcp.NewToolResultJSON(lib)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) addExercise(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bp, err := models.ParseBodyPart(req.GetString("body_part", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name parameter is required"), nil
	}
	added, err := h.t.AddExercise(ctx, bp, name)
	if err != nil {
		h.log.Error("mcp add_exercise", "error", err)
		return mcp.NewToolResultError("adding failed: " + err.Error()), nil
	}
	if !added {
		return mcp.NewToolResultText(name + " is already in the library"), nil
	}
	return mcp.NewToolResultText("added " + name + " to " + string(bp)), nil
}

func (h *handlers) syncNow(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report := h.t.PushLocalToRemote(ctx)
	errs := []string{}
	for _, err := range report.Errors() {
		errs = append(errs, err.Error())
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"report": report,
		"errors": errs,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func sortedRecords(prs map[string]models.PersonalRecord) []models.PersonalRecord {
	out := make([]models.PersonalRecord, 0, len(prs))
	for name, pr := range prs {
		if pr.Exercise == "" {
			pr.Exercise = name
		}
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Exercise < out[j].Exercise })
	return out
}
