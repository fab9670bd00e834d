/*
Package exams models promotional exam (EMM) submissions.

A submission's percentage is computed from earned/total points when the
candidate submits; the engine only ever reads completed submissions.
When no specific exam is requested, the latest completed submission for
any exam flagged as promotional supplies the exam score.
*/
package exams

import (
	"context"
	"sync"
	"time"

	"github.com/nbti/promotion-engine/engine"
)

type SubmissionStatus string

const (
	StatusInProgress SubmissionStatus = "In Progress"
	StatusCompleted  SubmissionStatus = "Completed"
)

// Exam is a published exam definition.
type Exam struct {
	ID          string
	Title       string
	Promotional bool
	TotalPoints float64
}

// Submission is one candidate's attempt at an exam.
type Submission struct {
	ID          string
	ExamID      string
	CandidateID engine.EmployeeID

	EarnedPoints float64
	TotalPoints  float64
	Percentage   float64 // fixed at submission time

	Status      SubmissionStatus
	SubmittedAt time.Time
}

// Complete finalizes a submission: stamps the time, computes the
// percentage and marks it Completed.
func (s *Submission) Complete(at time.Time) {
	s.Percentage = ComputePercentage(s.EarnedPoints, s.TotalPoints)
	s.SubmittedAt = at
	s.Status = StatusCompleted
}

// ComputePercentage returns earned/total as 0-100; zero total scores 0.
func ComputePercentage(earned, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return earned / total * 100
}

// =============================================================================
// MEMORY SOURCE - engine.ExamSource over in-memory records
// =============================================================================

// MemorySource serves exam scores from records held in memory. Used by
// tests and the demo seed; production reads come from the SQL store.
type MemorySource struct {
	mu          sync.RWMutex
	exams       map[string]Exam
	submissions []Submission
}

func NewMemorySource() *MemorySource {
	return &MemorySource{exams: make(map[string]Exam)}
}

func (s *MemorySource) AddExam(e Exam) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exams[e.ID] = e
}

func (s *MemorySource) AddSubmission(sub Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, sub)
}

// LatestExamScore returns the percentage of the newest completed
// submission. A non-empty examID pins one exam; otherwise only exams
// flagged promotional qualify.
func (s *MemorySource) LatestExamScore(_ context.Context, id engine.EmployeeID, examID string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		found bool
		best  Submission
	)
	for _, sub := range s.submissions {
		if sub.CandidateID != id || sub.Status != StatusCompleted {
			continue
		}
		if examID != "" {
			if sub.ExamID != examID {
				continue
			}
		} else if !s.exams[sub.ExamID].Promotional {
			continue
		}
		if !found || sub.SubmittedAt.After(best.SubmittedAt) {
			found = true
			best = sub
		}
	}
	if !found {
		return 0, false, nil
	}
	return best.Percentage, true, nil
}

var _ engine.ExamSource = (*MemorySource)(nil)
