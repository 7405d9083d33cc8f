package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultHistoryLimit = 20
	defaultVolumeDays   = 28
)

// sinceOrDefault parses since, defaulting to days before now.
func sinceOrDefault(since string, days int, now time.Time) (time.Time, error) {
	if since == "" {
		return now.AddDate(0, 0, -days), nil
	}
	return parseFlexTime(since)
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolListWorkouts = mcp.NewTool("list_workouts",
	mcp.WithDescription("List the user's workout templates in their display order."),
)

var toolGetWorkoutTemplate = mcp.NewTool("get_workout_template",
	mcp.WithDescription("List the exercises of one workout template in order, with each exercise's class title."),
	mcp.WithNumber("workout_id", mcp.Required(), mcp.Description("Workout id from list_workouts")),
)

var toolListExerciseClasses = mcp.NewTool("list_exercise_classes",
	mcp.WithDescription("List the user's exercise classes (e.g. Bench Press) with type, body part and equipment."),
	mcp.WithBoolean("include_archived", mcp.Description("Include archived classes. Defaults to false.")),
)

var toolGetWorkoutHistory = mcp.NewTool("get_workout_history",
	mcp.WithDescription("List completed workout sessions, newest first. Each entry has title, start time and duration in seconds."),
	mcp.WithNumber("limit", mcp.Description("Maximum sessions to return. Defaults to 20.")),
)

var toolGetWorkoutSession = mcp.NewTool("get_workout_session",
	mcp.WithDescription("Get one completed workout session with every exercise performed and each set's reps, weight, rest, type and completion."),
	mcp.WithNumber("session_id", mcp.Required(), mcp.Description("Workout session id from get_workout_history")),
)

var toolGetExerciseVolume = mcp.NewTool("get_exercise_volume",
	mcp.WithDescription("Per exercise class training volume since a date: sessions, completed working sets, total reps, tonnage (reps x weight) and best weight. Warmups are excluded."),
	mcp.WithString("since", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 28 days ago.")),
)

var toolGetActiveSession = mcp.NewTool("get_active_session",
	mcp.WithDescription("Get the workout currently in progress, if any: start time, exercises and their sets so far."),
)

// --- Tool handlers ---

func (h *handlers) listWorkouts(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workouts, err := h.ds.ListWorkouts(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp list_workouts", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(workouts)
}

func (h *handlers) getWorkoutTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workoutID, err := req.RequireInt("workout_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// Only templates listed for the caller are readable.
	workouts, err := h.ds.ListWorkouts(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_workout_template", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	owned := false
	for _, w := range workouts {
		if w.ID == int64(workoutID) {
			owned = true
			break
		}
	}
	if !owned {
		return mcp.NewToolResultError("workout not found"), nil
	}

	exercises, err := h.ds.ListWorkoutExercises(ctx, int64(workoutID))
	if err != nil {
		h.log.Error("mcp get_workout_template", "workout_id", workoutID, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(exercises)
}

func (h *handlers) listExerciseClasses(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	classes, err := h.ds.ListExerciseClasses(ctx, UserIDFromContext(ctx), req.GetBool("include_archived", false))
	if err != nil {
		h.log.Error("mcp list_exercise_classes", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(classes)
}

func (h *handlers) getWorkoutHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultHistoryLimit)
	if limit <= 0 {
		return mcp.NewToolResultError("limit must be positive"), nil
	}

	sessions, err := h.ds.ListWorkoutSessions(ctx, UserIDFromContext(ctx), limit)
	if err != nil {
		h.log.Error("mcp get_workout_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(sessions)
}

func (h *handlers) getWorkoutSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireInt("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	detail, found, err := h.ds.GetWorkoutSession(ctx, int64(sessionID))
	if err != nil {
		h.log.Error("mcp get_workout_session", "session_id", sessionID, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if !found || detail.UserID != UserIDFromContext(ctx) {
		return mcp.NewToolResultError("workout session not found"), nil
	}
	return jsonResult(detail)
}

func (h *handlers) getExerciseVolume(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	since, err := sinceOrDefault(req.GetString("since", ""), defaultVolumeDays, time.Now())
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	volume, err := h.ds.GetExerciseVolume(ctx, UserIDFromContext(ctx), since)
	if err != nil {
		h.log.Error("mcp get_exercise_volume", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(volume)
}

func (h *handlers) getActiveSession(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := h.ds.ActiveSession(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_active_session", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(state)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
