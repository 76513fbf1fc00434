package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/liftlog/internal/models"
)

func (h *handlers) recentWorkouts(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	history, err := h.t.ListHistory(ctx)
	if err != nil {
		return nil, err
	}
	since := time.Now().AddDate(0, 0, -14)
	recent := []models.WorkoutSet{}
	for _, s := range history {
		if !s.Date.Before(since) {
			recent = append(recent, s)
		}
	}
	return jsonResource(req.Params.URI, recent)
}

func (h *handlers) personalRecords(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	prs, err := h.t.PersonalRecords(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, sortedRecords(prs))
}

func (h *handlers) exerciseLibrary(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	lib, err := h.t.Exercises()
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, lib)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
