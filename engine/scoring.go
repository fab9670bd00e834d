/*
scoring.go - Exam, performance and seniority scoring

PURPOSE:
  Computes the three component scores for a candidate and blends them
  into the combined score used for ranking:

    combined = 0.70*exam + 0.20*performance + 0.10*seniority

  rounded to 2 decimals. A missing component contributes 0 - it never
  blocks computation of the others.

SOURCES:
  Exam and performance signals live in their own subsystems (EMM, PMS).
  The engine consumes them through narrow source interfaces returning a
  0-100 percentage plus an ok flag; ok=false means "no data, score 0".

SENIORITY:
  Rank-based over the full peer group sharing the candidate's grade.
  Sort order: step descending, confirmation date ascending, date of
  birth ascending, file number ascending; missing values sort last.
  The 1-indexed rank maps to ((N-rank)/(N-1))*100. A lone candidate
  scores 100; a candidate missing from the peer list scores 0.

SEE ALSO:
  - pms/: performance evaluation scoring
  - exams/: promotional exam submissions
  - allocation.go: consumes these scores for ranking
*/
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// SIGNAL SOURCES
// =============================================================================

// PerformanceSource yields the latest performance score for an employee
// on the 0-100 scale. year, when non-zero, restricts the evaluation year.
// ok=false means no evaluation exists.
type PerformanceSource interface {
	LatestPerformanceScore(ctx context.Context, id EmployeeID, year int) (score float64, ok bool, err error)
}

// ExamSource yields the percentage of the latest completed submission.
// examID, when non-empty, pins a specific exam; otherwise the latest
// completed submission for any promotional exam wins. ok=false means no
// completed submission exists.
type ExamSource interface {
	LatestExamScore(ctx context.Context, id EmployeeID, examID string) (score float64, ok bool, err error)
}

// =============================================================================
// SCORER
// =============================================================================

// Scorer computes candidate scores. PMSYear and ExamID narrow the
// signal lookups; zero values mean "latest anything".
type Scorer struct {
	Performance PerformanceSource
	Exams       ExamSource
	PMSYear     int
	ExamID      string
}

// Scores computes all components for one candidate. peers is the full
// pool sharing the candidate's grade and drives the seniority rank.
// Missing signals degrade the candidate's score to 0; only
// infrastructure failures return an error.
func (s *Scorer) Scores(ctx context.Context, emp Employee, peers []Employee) (CandidateScore, error) {
	var score CandidateScore

	if s.Performance != nil {
		pct, ok, err := s.Performance.LatestPerformanceScore(ctx, emp.ID, s.PMSYear)
		if err != nil {
			return CandidateScore{}, fmt.Errorf("performance score for %s: %w", emp.ID, err)
		}
		if ok {
			score.Performance = pct
		}
	}

	if s.Exams != nil {
		pct, ok, err := s.Exams.LatestExamScore(ctx, emp.ID, s.ExamID)
		if err != nil {
			return CandidateScore{}, fmt.Errorf("exam score for %s: %w", emp.ID, err)
		}
		if ok {
			score.Exam = pct
		}
	}

	score.Seniority = SeniorityScore(emp, peers)
	score.Combined = CombinedScore(score.Exam, score.Performance, score.Seniority)
	return score, nil
}

// CombinedScore applies the 70/20/10 blend, rounded to 2 decimals.
func CombinedScore(exam, performance, seniority float64) float64 {
	return round2(exam*WeightExam + performance*WeightPerformance + seniority*WeightSeniority)
}

// =============================================================================
// SENIORITY
// =============================================================================

// farFuture pushes missing dates to the bottom of the order.
var farFuture = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// SeniorityScore ranks emp within peers and maps the rank to 0-100.
func SeniorityScore(emp Employee, peers []Employee) float64 {
	if len(peers) == 0 {
		return 100
	}

	ranked := make([]Employee, len(peers))
	copy(ranked, peers)
	// Stable: residual ties keep input order so repeated runs reproduce
	// the same ranking.
	sort.SliceStable(ranked, func(i, j int) bool {
		return moreSenior(ranked[i], ranked[j])
	})

	rank := 0
	for i, p := range ranked {
		if p.ID == emp.ID {
			rank = i + 1
			break
		}
	}
	if rank == 0 {
		return 0 // not in the peer pool
	}

	n := len(ranked)
	if n == 1 {
		return 100
	}
	return round2(float64(n-rank) / float64(n-1) * 100)
}

// moreSenior implements the seniority priority hierarchy:
// step desc, confirmation date asc, date of birth asc, file number asc.
func moreSenior(a, b Employee) bool {
	if a.Step != b.Step {
		return a.Step > b.Step
	}
	if c := compareDates(a.ConfirmationDate, b.ConfirmationDate); c != 0 {
		return c < 0
	}
	if c := compareDates(a.DateOfBirth, b.DateOfBirth); c != 0 {
		return c < 0
	}
	// File number ascending; a missing number sorts after every real one.
	if (a.FileNumber == "") != (b.FileNumber == "") {
		return a.FileNumber != ""
	}
	return a.FileNumber < b.FileNumber
}

// compareDates orders two optional dates ascending, nil last.
func compareDates(a, b *time.Time) int {
	at, bt := farFuture, farFuture
	if a != nil {
		at = *a
	}
	if b != nil {
		bt = *b
	}
	switch {
	case at.Before(bt):
		return -1
	case at.After(bt):
		return 1
	default:
		return 0
	}
}
