package explore

import (
	"fmt"

	"github.com/KaramelBytes/vo2scope/internal/dataset"
)

// Options configures an Explorer.
type Options struct {
	Bins int
	Nice bool
}

// View is the snapshot handed to presentation after every event.
type View struct {
	Filter    FilterState                 `json:"filter"`
	Extents   AttributeExtents            `json:"extents"`
	Total     int                         `json:"total_records"`
	Filtered  []dataset.MeasurementRecord `json:"-"`
	Counts    map[dataset.Gender]int      `json:"filtered_by_gender"`
	Histogram Histogram                   `json:"histogram"`
	Selection *SelectionStats             `json:"selection,omitempty"`
}

// Explorer owns the mutable exploration state over an immutable record set.
// Every event method runs the whole pipeline (filter, bins, selection)
// before returning. It is not safe for concurrent use; callers serialize
// events.
type Explorer struct {
	records []dataset.MeasurementRecord
	extents AttributeExtents
	opt     Options

	filter FilterState
	brush  *Range

	view      View
	listeners []func(View)
}

// New creates an Explorer with both genders active and every range set to
// the observed extent of records.
func New(records []dataset.MeasurementRecord, opt Options) *Explorer {
	if opt.Bins <= 0 {
		opt.Bins = DefaultBinCount
	}
	e := &Explorer{records: records, extents: Extents(records), opt: opt}
	e.filter = DefaultFilterState(records)
	e.recompute()
	return e
}

// OnChange registers fn to be called with every new View.
func (e *Explorer) OnChange(fn func(View)) { e.listeners = append(e.listeners, fn) }

// View returns the most recent snapshot.
func (e *Explorer) View() View { return e.view }

// Filter returns the current filter state.
func (e *Explorer) Filter() FilterState { return e.filter }

// Brush returns the active selection, if any.
func (e *Explorer) Brush() (Range, bool) {
	if e.brush == nil {
		return Range{}, false
	}
	return *e.brush, true
}

// Bins returns the configured bin count.
func (e *Explorer) Bins() int { return e.opt.Bins }

func (e *Explorer) ToggleGender(g dataset.Gender) (View, error) {
	if g != dataset.Male && g != dataset.Female {
		return e.view, fmt.Errorf("gender %q cannot be toggled", g)
	}
	e.filter.Genders = e.filter.Genders.Toggle(g)
	return e.recompute(), nil
}

func (e *Explorer) SetGenders(s GenderSet) View {
	e.filter.Genders = s & BothGenders
	return e.recompute()
}

func (e *Explorer) SetAgeRange(r Range) View {
	e.filter.Age = r.Normalized()
	return e.recompute()
}

func (e *Explorer) SetWeightRange(r Range) View {
	e.filter.Weight = r.Normalized()
	return e.recompute()
}

func (e *Explorer) SetTempRange(r Range) View {
	e.filter.Temp = r.Normalized()
	return e.recompute()
}

// SetFilter replaces the whole filter state, e.g. when restoring a session.
func (e *Explorer) SetFilter(s FilterState) View {
	s.Genders &= BothGenders
	s.Age, s.Weight, s.Temp = s.Age.Normalized(), s.Weight.Normalized(), s.Temp.Normalized()
	e.filter = s
	return e.recompute()
}

func (e *Explorer) SetBins(k int) (View, error) {
	if k <= 0 {
		return e.view, fmt.Errorf("bin count must be positive, got %d", k)
	}
	e.opt.Bins = k
	return e.recompute(), nil
}

// SelectRange sets the brushed VO2 range.
func (e *Explorer) SelectRange(r Range) View {
	r = r.Normalized()
	e.brush = &r
	return e.recompute()
}

func (e *Explorer) ClearSelection() View {
	e.brush = nil
	return e.recompute()
}

// Reset restores the initial state: both genders, full extents, no brush.
func (e *Explorer) Reset() View {
	e.filter = DefaultFilterState(e.records)
	e.brush = nil
	return e.recompute()
}

func (e *Explorer) recompute() View {
	filtered := Filter(e.records, e.filter)
	v := View{
		Filter:    e.filter,
		Extents:   e.extents,
		Total:     len(e.records),
		Filtered:  filtered,
		Counts:    CountByGender(filtered),
		Histogram: BuildHistogram(filtered, e.filter.Genders, HistogramOptions{Bins: e.opt.Bins, Nice: e.opt.Nice}),
	}
	if e.brush != nil {
		s := ComputeSelectionStats(filtered, *e.brush)
		v.Selection = &s
	}
	e.view = v
	for _, fn := range e.listeners {
		fn(v)
	}
	return v
}
