// Package events carries advisory progress and structured log reporting
// through the construction and enrichment pipelines.
package events

import (
	"context"
	"log/slog"
)

// Category classifies a log event by the pipeline stage that emitted it.
type Category string

const (
	CategoryScan      Category = "scan"
	CategoryParse     Category = "parse"
	CategoryGrouping  Category = "grouping"
	CategoryAnalyst   Category = "analyst"
	CategoryArchitect Category = "architect"
	CategoryHeuristic Category = "heuristic"
	CategoryFlows     Category = "flows"
	CategorySync      Category = "sync"
	CategoryStore     Category = "store"
	CategoryConfig    Category = "config"
)

// Categories lists every category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryScan,
		CategoryParse,
		CategoryGrouping,
		CategoryAnalyst,
		CategoryArchitect,
		CategoryHeuristic,
		CategoryFlows,
		CategorySync,
		CategoryStore,
		CategoryConfig,
	}
}

func (c Category) Valid() bool {
	switch c {
	case CategoryScan, CategoryParse, CategoryGrouping, CategoryAnalyst, CategoryArchitect,
		CategoryHeuristic, CategoryFlows, CategorySync, CategoryStore, CategoryConfig:
		return true
	default:
		return false
	}
}

// Event is one structured log entry. Detail is optional.
type Event struct {
	Category Category
	Level    slog.Level
	Message  string
	Detail   any
}

// ProgressFunc receives (step, current, total) updates.
type ProgressFunc func(step string, current, total int)

// LogFunc receives structured log events.
type LogFunc func(Event)

// Reporter bundles the progress and log sinks. The zero value and a nil
// *Reporter discard everything.
type Reporter struct {
	Progress ProgressFunc
	Log      LogFunc
}

// Step reports incremental progress.
func (r *Reporter) Step(step string, current, total int) {
	if r == nil || r.Progress == nil {
		return
	}
	r.Progress(step, current, total)
}

func (r *Reporter) Debug(category Category, message string, detail any) {
	r.emit(slog.LevelDebug, category, message, detail)
}

func (r *Reporter) Info(category Category, message string, detail any) {
	r.emit(slog.LevelInfo, category, message, detail)
}

func (r *Reporter) Warn(category Category, message string, detail any) {
	r.emit(slog.LevelWarn, category, message, detail)
}

func (r *Reporter) emit(level slog.Level, category Category, message string, detail any) {
	if r == nil || r.Log == nil {
		return
	}
	r.Log(Event{Category: category, Level: level, Message: message, Detail: detail})
}

// NewSlogReporter forwards events to logger. Progress is logged at debug level.
func NewSlogReporter(logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		Progress: func(step string, current, total int) {
			logger.Debug("progress", "step", step, "current", current, "total", total)
		},
		Log: func(ev Event) {
			attrs := []any{slog.String("category", string(ev.Category))}
			if ev.Detail != nil {
				attrs = append(attrs, slog.Any("detail", ev.Detail))
			}
			logger.Log(context.Background(), ev.Level, ev.Message, attrs...)
		},
	}
}

// Tee returns a reporter that fans out to every non-nil reporter.
func Tee(reporters ...*Reporter) *Reporter {
	active := make([]*Reporter, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			active = append(active, r)
		}
	}
	return &Reporter{
		Progress: func(step string, current, total int) {
			for _, r := range active {
				r.Step(step, current, total)
			}
		},
		Log: func(ev Event) {
			for _, r := range active {
				if r.Log != nil {
					r.Log(ev)
				}
			}
		},
	}
}
