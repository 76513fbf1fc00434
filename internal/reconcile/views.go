package reconcile

import (
	"context"
	"time"

	"github.com/claude/liftlog/internal/stats"
)

const defaultWindowDays = 30

func (m *Manager) since(days int) (time.Time, int) {
	if days <= 0 {
		days = defaultWindowDays
	}
	return m.now().AddDate(0, 0, -days), days
}

// Progress analyzes exercise over the last days days of merged history.
// A non-positive days means 30. It returns nil when nothing was logged.
func (m *Manager) Progress(ctx context.Context, exercise string, days int) (*stats.Progress, error) {
	history, err := m.ListHistory(ctx)
	if err != nil {
		return nil, err
	}
	since, _ := m.since(days)
	return stats.AnalyzeProgress(history, exercise, since), nil
}

// Summary aggregates the last days days of merged history.
func (m *Manager) Summary(ctx context.Context, days int) (stats.Summary, error) {
	history, err := m.ListHistory(ctx)
	if err != nil {
		return stats.Summary{}, err
	}
	since, days := m.since(days)
	sum := stats.Summarize(history, since)
	sum.PeriodDays = days

	prs, err := m.PersonalRecords(ctx)
	if err != nil {
		return stats.Summary{}, err
	}
	sum.PersonalRecords = len(prs)
	return sum, nil
}
