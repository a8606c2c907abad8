// Package filter provides layers that decide which spans and events reach
// the collector they are stacked on.
//
// Level and Func filters depend only on callsite metadata, so the callsite
// interest cache remembers their decisions. Dynamic filters look at the
// caller's context and are asked on every call.
package filter

import (
	"context"
	"slices"
	"strings"

	"github.com/arloliu/tracex"
	"github.com/arloliu/tracex/layer"
)

// LevelFilter enables spans and events at or above a level.
type LevelFilter struct {
	layer.Base
	max tracex.LevelFilter
}

// Level returns a filter enabling f's levels.
func Level(f tracex.LevelFilter) *LevelFilter {
	return &LevelFilter{max: f}
}

// Filter returns the configured level filter.
func (f *LevelFilter) Filter() tracex.LevelFilter { return f.max }

// RegisterCallsite returns InterestAlways for enabled levels and
// InterestNever otherwise.
func (f *LevelFilter) RegisterCallsite(meta *tracex.Metadata) tracex.Interest {
	if f.max.Enables(meta.Level) {
		return tracex.InterestAlways
	}

	return tracex.InterestNever
}

// Enabled reports whether meta's level passes the filter.
func (f *LevelFilter) Enabled(_ context.Context, meta *tracex.Metadata, _ layer.Context) bool {
	return f.max.Enables(meta.Level)
}

// MaxLevelHint returns the configured filter.
func (f *LevelFilter) MaxLevelHint() (tracex.LevelFilter, bool) { return f.max, true }

func (f *LevelFilter) String() string { return "level(" + f.max.String() + ")" }

// FuncFilter enables callsites accepted by a metadata predicate.
type FuncFilter struct {
	layer.Base
	pred func(meta *tracex.Metadata) bool
}

// Func returns a filter enabling the callsites pred accepts. pred must
// depend only on the metadata: its answer is cached per callsite.
func Func(pred func(meta *tracex.Metadata) bool) *FuncFilter {
	return &FuncFilter{pred: pred}
}

// RegisterCallsite caches pred's answer.
func (f *FuncFilter) RegisterCallsite(meta *tracex.Metadata) tracex.Interest {
	if f.pred(meta) {
		return tracex.InterestAlways
	}

	return tracex.InterestNever
}

// Enabled returns pred's answer.
func (f *FuncFilter) Enabled(_ context.Context, meta *tracex.Metadata, _ layer.Context) bool {
	return f.pred(meta)
}

// DynamicFilter enables spans and events based on the caller's context.
type DynamicFilter struct {
	layer.Base
	pred func(ctx context.Context, meta *tracex.Metadata) bool
}

// Dynamic returns a filter asked on every call.
func Dynamic(pred func(ctx context.Context, meta *tracex.Metadata) bool) *DynamicFilter {
	return &DynamicFilter{pred: pred}
}

// RegisterCallsite returns InterestSometimes.
func (f *DynamicFilter) RegisterCallsite(*tracex.Metadata) tracex.Interest {
	return tracex.InterestSometimes
}

// Enabled returns pred's answer for this call.
func (f *DynamicFilter) Enabled(ctx context.Context, meta *tracex.Metadata, _ layer.Context) bool {
	return f.pred(ctx, meta)
}

// Names enables callsites whose name is one of names.
func Names(names ...string) *FuncFilter {
	return Func(func(meta *tracex.Metadata) bool {
		return slices.Contains(names, meta.Name)
	})
}

// SuppressTargets disables callsites whose target is one of targets or
// nested below one of them ("a/b" suppresses "a/b" and "a/b/c").
func SuppressTargets(targets ...string) *FuncFilter {
	return Func(func(meta *tracex.Metadata) bool {
		for _, t := range targets {
			if meta.Target == t || strings.HasPrefix(meta.Target, t+"/") {
				return false
			}
		}

		return true
	})
}
