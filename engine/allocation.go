/*
allocation.go - Ranking and RRR slot allocation

PURPOSE:
  Ranks every candidate within a grade by combined score and partitions
  the ranked list into the three RRR tiers by configured slot counts:

    ranks [1, promotion]                     -> promoted
    next recognition ranks                   -> recognized
    next reward ranks                        -> rewarded
    remainder                                -> unallocated

  Grades are fully independent; there is no cross-grade slot sharing.

ORDERING:
  Sort key is (combined score, seniority score) descending - seniority
  breaks combined-score ties. Residual ties (equal on both) keep the
  input order via a stable sort, so identical inputs reproduce identical
  rankings.

RE-RUNS:
  Materializing recommendations upserts by (employee, cycle). A row that
  has already reached a terminal status (Approved/Rejected) is never
  overwritten - it is skipped and counted, and only Pending rows are
  refreshed. Re-running a cycle with unchanged inputs is idempotent.

SEE ALSO:
  - scoring.go: component scores
  - approval.go: what happens to Pending recommendations next
*/
package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// =============================================================================
// RESULTS
// =============================================================================

// RankedCandidate pairs an employee with its computed scores and
// 1-indexed rank within the grade.
type RankedCandidate struct {
	Employee Employee
	Score    CandidateScore
	Rank     int
}

// GradeAllocation is the outcome of one grade's allocation run.
type GradeAllocation struct {
	Grade int
	Cycle Cycle

	TotalCandidates int
	Candidates      []RankedCandidate // full ranked list

	Promoted   []RankedCandidate
	Recognized []RankedCandidate
	Rewarded   []RankedCandidate

	Slots Slots

	// SkippedTerminal counts recommendations left untouched during
	// materialization because they had already been approved/rejected.
	SkippedTerminal int
}

// =============================================================================
// ALLOCATOR
// =============================================================================

// Allocator runs ranking and slot distribution and materializes
// recommendations.
type Allocator struct {
	Store  TxStores
	Scorer *Scorer
	Now    Clock
}

// RankCandidates scores and ranks a candidate pool. The pool itself is
// each candidate's seniority peer group. Callers that want eligibility
// filtering apply it before passing the pool in.
func (a *Allocator) RankCandidates(ctx context.Context, candidates []Employee) ([]RankedCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ranked := make([]RankedCandidate, 0, len(candidates))
	for _, emp := range candidates {
		score, err := a.Scorer.Scores(ctx, emp, candidates)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, RankedCandidate{Employee: emp, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := ranked[i].Score, ranked[j].Score
		if si.Combined != sj.Combined {
			return si.Combined > sj.Combined
		}
		return si.Seniority > sj.Seniority
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked, nil
}

// AllocateGrade ranks the active employees at a grade and partitions
// them into tiers by the given slot counts.
func (a *Allocator) AllocateGrade(ctx context.Context, grade int, cycle Cycle, slots Slots) (*GradeAllocation, error) {
	candidates, err := a.Store.ListActiveByGrade(ctx, grade)
	if err != nil {
		return nil, fmt.Errorf("loading candidates for grade %d: %w", grade, err)
	}

	ranked, err := a.RankCandidates(ctx, candidates)
	if err != nil {
		return nil, err
	}

	alloc := &GradeAllocation{
		Grade:           grade,
		Cycle:           cycle,
		TotalCandidates: len(ranked),
		Candidates:      ranked,
		Slots:           slots,
	}

	cut := func(from, count int) []RankedCandidate {
		if count <= 0 || from >= len(ranked) {
			return nil
		}
		to := from + count
		if to > len(ranked) {
			to = len(ranked)
		}
		return ranked[from:to]
	}
	alloc.Promoted = cut(0, slots.Promotion)
	alloc.Recognized = cut(len(alloc.Promoted), slots.Recognition)
	alloc.Rewarded = cut(len(alloc.Promoted)+len(alloc.Recognized), slots.Reward)
	return alloc, nil
}

// AllocateAll runs the single-grade allocation for every active vacancy
// configuration of the cycle. A cycle with no configured grades yields
// an empty map - nothing to allocate, not an error.
func (a *Allocator) AllocateAll(ctx context.Context, cycle Cycle) (map[int]*GradeAllocation, error) {
	vacancies, err := a.Store.ListActiveVacancies(ctx, cycle)
	if err != nil {
		return nil, err
	}

	results := make(map[int]*GradeAllocation, len(vacancies))
	for _, v := range vacancies {
		alloc, err := a.AllocateGrade(ctx, v.Grade, cycle, Slots{
			Promotion:   v.PromotionSlots,
			Recognition: v.RecognitionSlots,
			Reward:      v.RewardSlots,
		})
		if err != nil {
			return nil, err
		}
		results[v.Grade] = alloc
	}
	return results, nil
}

// =============================================================================
// RECOMMENDATION MATERIALIZATION
// =============================================================================

// SaveRecommendations upserts one recommendation per ranked candidate,
// keyed by (employee, cycle). Terminal rows are skipped and counted on
// the allocation. Promoted candidates point at grade+1 with the step
// deferred to approval; their status resets to Pending.
func (a *Allocator) SaveRecommendations(ctx context.Context, alloc *GradeAllocation, recommendedBy string) ([]Recommendation, error) {
	var saved []Recommendation
	err := a.Store.WithTx(ctx, func(st Stores) error {
		for _, c := range alloc.Candidates {
			existing, err := st.FindRecommendation(ctx, c.Employee.ID, alloc.Cycle)
			if err != nil && !IsNotFound(err) {
				return err
			}

			var rec Recommendation
			if existing != nil {
				if existing.Status.Terminal() {
					alloc.SkippedTerminal++
					continue
				}
				rec = *existing
			} else {
				rec = Recommendation{
					ID:         RecommendationID(uuid.NewString()),
					EmployeeID: c.Employee.ID,
					Cycle:      alloc.Cycle,
				}
			}

			rec.Grade = alloc.Grade
			rec.ExamScore = c.Score.Exam
			rec.PerformanceScore = c.Score.Performance
			rec.SeniorityScore = c.Score.Seniority
			rec.CombinedScore = c.Score.Combined
			rec.RankInGrade = c.Rank
			rec.TotalInGrade = alloc.TotalCandidates

			rec.Promoted = c.Rank <= len(alloc.Promoted)
			rec.Recognized = !rec.Promoted && c.Rank <= len(alloc.Promoted)+len(alloc.Recognized)
			rec.Rewarded = !rec.Promoted && !rec.Recognized &&
				c.Rank <= len(alloc.Promoted)+len(alloc.Recognized)+len(alloc.Rewarded)

			if rec.Promoted {
				rec.PromotedToGrade = alloc.Grade + 1
				rec.PromotedToStep = 0 // allocated at approval time
			} else {
				rec.PromotedToGrade = 0
				rec.PromotedToStep = 0
			}
			rec.Status = StatusPending
			if recommendedBy != "" {
				rec.RecommendedBy = recommendedBy
			}

			if err := st.SaveRecommendation(ctx, rec); err != nil {
				return err
			}
			saved = append(saved, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// RunCycle allocates every configured grade of a cycle and materializes
// the recommendations. Returns the per-grade allocations.
func (a *Allocator) RunCycle(ctx context.Context, cycle Cycle, recommendedBy string) (map[int]*GradeAllocation, error) {
	results, err := a.AllocateAll(ctx, cycle)
	if err != nil {
		return nil, err
	}
	for _, alloc := range results {
		if _, err := a.SaveRecommendations(ctx, alloc, recommendedBy); err != nil {
			return nil, fmt.Errorf("materializing grade %d: %w", alloc.Grade, err)
		}
	}
	return results, nil
}

// Rankings returns the persisted recommendations for (grade, cycle)
// ordered by rank.
func (a *Allocator) Rankings(ctx context.Context, grade int, cycle Cycle) ([]Recommendation, error) {
	return a.Store.ListRecommendations(ctx, grade, cycle)
}
