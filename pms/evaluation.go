/*
Package pms models performance-management (PMS) evaluations.

An evaluation holds a set of goals agreed between staff and supervisor.
Each goal carries a weight and, once assessed, a supervisor rating on
the 1-5 scale. The evaluation's final score is the weighted mean over
goals that are both agreed and rated; everything else is excluded. The
promotion engine consumes the final score rescaled to 0-100.
*/
package pms

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nbti/promotion-engine/engine"
)

type EvaluationStatus string

const (
	StatusPending    EvaluationStatus = "Pending"
	StatusInProgress EvaluationStatus = "In Progress"
	StatusCompleted  EvaluationStatus = "Completed"
)

// Goal is one line of an evaluation. Rating 0 means "not yet rated".
type Goal struct {
	ID          string
	Description string
	KRACategory string
	Weight      float64
	Agreed      bool

	SelfRating int // staff self-assessment, 1-5
	Rating     int // supervisor rating, 1-5
}

// Evaluation is one staff member's review for a quarter.
type Evaluation struct {
	ID           string
	StaffID      engine.EmployeeID
	SupervisorID string
	Quarter      string
	Year         int
	Status       EvaluationStatus
	Goals        []Goal
	CreatedAt    time.Time
}

// FinalScore is the weighted mean rating (1-5 scale) over goals that are
// agreed and rated. No qualifying goals, or zero total weight, scores 0.
func (e *Evaluation) FinalScore() float64 {
	var weighted, total float64
	for _, g := range e.Goals {
		if !g.Agreed || g.Rating == 0 {
			continue
		}
		weighted += float64(g.Rating) * g.Weight
		total += g.Weight
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// Percentage rescales the final score to 0-100.
func (e *Evaluation) Percentage() float64 {
	return e.FinalScore() / 5.0 * 100
}

// =============================================================================
// MEMORY SOURCE - engine.PerformanceSource over an in-memory slice
// =============================================================================

// MemorySource serves performance scores from evaluations held in
// memory. Used by tests and the demo seed; production reads come from
// the SQL store.
type MemorySource struct {
	mu    sync.RWMutex
	evals []Evaluation
}

func NewMemorySource() *MemorySource { return &MemorySource{} }

func (s *MemorySource) Add(e Evaluation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evals = append(s.evals, e)
}

// LatestPerformanceScore returns the newest matching evaluation's
// percentage. year 0 matches any year.
func (s *MemorySource) LatestPerformanceScore(_ context.Context, id engine.EmployeeID, year int) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []Evaluation
	for _, e := range s.evals {
		if e.StaffID != id {
			continue
		}
		if year != 0 && e.Year != year {
			continue
		}
		matches = append(matches, e)
	}
	if len(matches) == 0 {
		return 0, false, nil
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	latest := matches[0]
	return latest.Percentage(), true, nil
}

var _ engine.PerformanceSource = (*MemorySource)(nil)
