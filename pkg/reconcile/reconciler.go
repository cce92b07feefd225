// Package reconcile keeps the official and simulated schedule projections
// apart and applies operation results to the right one.
package reconcile

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/escalaflow/scalegate/pkg/contracts"
)

// ViewMode selects the projection being presented.
type ViewMode string

const (
	ViewOfficial  ViewMode = "OFFICIAL"
	ViewSimulated ViewMode = "SIMULATED"
)

// ErrNoSimulation is returned when switching to SIMULATED with nothing simulated.
var ErrNoSimulation = errors.New("no simulation available")

// Counts are the last assignment/violation counts reported by the engine.
type Counts struct {
	Assignments          int
	Violations           int
	PreferencesProcessed int
	ExceptionsApplied    int
}

// Projection is one coherent view of a schedule.
type Projection struct {
	Assignments []contracts.Assignment
	Violations  []contracts.Violation
	Weekly      *contracts.WeeklyAnalysis
	Counts      *Counts
	Request     *contracts.ScaleRequest
}

// Empty reports whether nothing was ever loaded into the projection.
func (p Projection) Empty() bool {
	return p.Assignments == nil && p.Violations == nil && p.Weekly == nil && p.Counts == nil
}

func (p Projection) clone() Projection {
	out := Projection{
		Assignments: cloneSlice(p.Assignments),
		Violations:  cloneSlice(p.Violations),
	}
	if p.Weekly != nil {
		w := *p.Weekly
		w.SummariesMonSun = cloneSlice(w.SummariesMonSun)
		w.SummariesSunSat = cloneSlice(w.SummariesSunSat)
		w.ExternalDependenciesOpen = cloneSlice(w.ExternalDependenciesOpen)
		out.Weekly = &w
	}
	if p.Counts != nil {
		c := *p.Counts
		out.Counts = &c
	}
	if p.Request != nil {
		r := *p.Request
		out.Request = &r
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	return append(make([]T, 0, len(in)), in...)
}

// OfficialReload is what the runner fetched after a successful generate.
// Nil fields keep the previous official data.
type OfficialReload struct {
	Assignments []contracts.Assignment
	Violations  []contracts.Violation
	Weekly      *contracts.WeeklyAnalysis
}

// Reconciler holds both projections. Switching the view never performs I/O.
type Reconciler struct {
	mu        sync.RWMutex
	official  Projection
	simulated Projection
	hasSim    bool
	mode      ViewMode
	logger    *slog.Logger
}

// New creates an empty reconciler showing the official projection.
func New() *Reconciler {
	return &Reconciler{
		mode:   ViewOfficial,
		logger: slog.Default().With("component", "reconcile"),
	}
}

// LoadOfficial sets the official projection from an initial load.
func (r *Reconciler) LoadOfficial(assignments []contracts.Assignment, violations []contracts.Violation, weekly *contracts.WeeklyAnalysis) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if assignments != nil {
		r.official.Assignments = cloneSlice(assignments)
	}
	if violations != nil {
		r.official.Violations = cloneSlice(violations)
	}
	if weekly != nil {
		r.official.Weekly = Projection{Weekly: weekly}.clone().Weekly
	}
}

// ApplyGenerate replaces the official projection, discards any simulation and
// switches the view to OFFICIAL.
func (r *Reconciler) ApplyGenerate(req contracts.ScaleRequest, res contracts.OperationResult, reload OfficialReload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reload.Assignments != nil {
		r.official.Assignments = cloneSlice(reload.Assignments)
	}
	if reload.Violations != nil {
		r.official.Violations = cloneSlice(reload.Violations)
	}
	if reload.Weekly != nil {
		r.official.Weekly = Projection{Weekly: reload.Weekly}.clone().Weekly
	}
	r.official.Counts = countsOf(res)
	rq := req
	r.official.Request = &rq

	r.simulated = Projection{}
	r.hasSim = false
	r.mode = ViewOfficial
	r.logger.Info("official projection replaced",
		"request", req.Key(),
		"assignments", res.AssignmentsCount,
		"violations", res.ViolationsCount,
	)
}

// ApplySimulate replaces the simulated projection and switches the view to
// SIMULATED. The official projection is never touched.
func (r *Reconciler) ApplySimulate(req contracts.ScaleRequest, res contracts.OperationResult, weekly *contracts.WeeklyAnalysis) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rq := req
	r.simulated = Projection{
		Assignments: cloneSlice(res.Assignments),
		Violations:  cloneSlice(res.Violations),
		Counts:      countsOf(res),
		Request:     &rq,
	}
	if r.simulated.Assignments == nil {
		r.simulated.Assignments = []contracts.Assignment{}
	}
	if r.simulated.Violations == nil {
		r.simulated.Violations = []contracts.Violation{}
	}
	if weekly != nil {
		r.simulated.Weekly = Projection{Weekly: weekly}.clone().Weekly
	}
	r.hasSim = true
	r.mode = ViewSimulated
	r.logger.Info("simulated projection replaced",
		"request", req.Key(),
		"assignments", res.AssignmentsCount,
		"violations", res.ViolationsCount,
	)
}

func countsOf(res contracts.OperationResult) *Counts {
	return &Counts{
		Assignments:          res.AssignmentsCount,
		Violations:           res.ViolationsCount,
		PreferencesProcessed: res.PreferencesProcessed,
		ExceptionsApplied:    res.ExceptionsApplied,
	}
}

// SetWeekly replaces the weekly analysis of one projection.
func (r *Reconciler) SetWeekly(mode ViewMode, weekly contracts.WeeklyAnalysis) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := Projection{Weekly: &weekly}.clone().Weekly
	if mode == ViewSimulated {
		if r.hasSim {
			r.simulated.Weekly = w
		}
		return
	}
	r.official.Weekly = w
}

// SetViewMode switches the presented projection.
func (r *Reconciler) SetViewMode(mode ViewMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mode == ViewSimulated && !r.hasSim {
		return ErrNoSimulation
	}
	if mode != ViewSimulated {
		mode = ViewOfficial
	}
	r.mode = mode
	return nil
}

// ViewMode returns the presented projection selector.
func (r *Reconciler) ViewMode() ViewMode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode
}

// HasSimulation reports whether a simulated projection exists.
func (r *Reconciler) HasSimulation() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasSim
}

// Official returns a copy of the official projection.
func (r *Reconciler) Official() Projection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.official.clone()
}

// Simulated returns a copy of the simulated projection.
func (r *Reconciler) Simulated() (Projection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.simulated.clone(), r.hasSim
}

// Active returns the projection selected by the view mode.
func (r *Reconciler) Active() (ViewMode, Projection) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.mode == ViewSimulated && r.hasSim {
		return ViewSimulated, r.simulated.clone()
	}
	return ViewOfficial, r.official.clone()
}
