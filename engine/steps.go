/*
steps.go - Step allocation and the step increment ledger

PURPOSE:
  Promotion must never be a pay cut. RecommendStep scans the target
  grade's ladder bottom-up and picks the first step whose salary
  strictly exceeds the candidate's current salary.

DEGRADED FALLBACK:
  If no step in the target grade beats the current salary (a salary
  table inversion - a data quality problem, not a programming error),
  the allocator falls back to the target grade's maximum step and flags
  the result Degraded for human review instead of failing.

MUTATIONS:
  ApplyPromotion and IncrementStep are the only places the engine
  mutates an employee's grade/step. Each mutation and its ledger entry
  are written inside one WithTx so they persist together or not at all,
  and the employee update is compare-and-set on Version.

ANNUAL BATCH:
  IncrementAll walks the active population once per year. An employee
  who already has an Annual entry dated in the run's calendar year is
  skipped, which makes the batch safe to retry after a partial failure.

SEE ALSO:
  - conraiss: MaxStep, the single source of the step ceiling
  - approval.go: commits promotions through applyPromotion
*/
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nbti/promotion-engine/conraiss"
)

// =============================================================================
// STEP RECOMMENDATION
// =============================================================================

// StepRecommendation is the outcome of a promotion step calculation.
type StepRecommendation struct {
	Step          int             `json:"step"`
	CurrentSalary decimal.Decimal `json:"current_salary"`
	NewSalary     decimal.Decimal `json:"new_salary"`
	Increment     decimal.Decimal `json:"salary_increment"`

	// IncrementPercent is the raise relative to the current salary,
	// rounded to 2 decimals.
	IncrementPercent float64 `json:"increment_percentage"`

	// Degraded marks the salary-inversion fallback: the returned step is
	// the target grade's maximum and the new salary may not exceed the
	// current one. Must be surfaced for human review.
	Degraded bool `json:"degraded,omitempty"`
}

// =============================================================================
// STEP SERVICE
// =============================================================================

// StepService owns step allocation, promotion commits and annual
// increments.
type StepService struct {
	Store TxStores
	Now   Clock
}

func NewStepService(store TxStores) *StepService {
	return &StepService{Store: store}
}

// RecommendStep finds the minimum step in targetGrade whose salary
// strictly exceeds the salary at (currentGrade, currentStep).
// Returns ErrSalaryNotFound (wrapped with the offending pair) when the
// current position has no active salary row.
func (s *StepService) RecommendStep(ctx context.Context, currentGrade, currentStep, targetGrade int) (StepRecommendation, error) {
	return recommendStep(ctx, s.Store, currentGrade, currentStep, targetGrade)
}

// recommendStep is the transaction-friendly core: it only needs a salary
// lookup, so approval can run it against an open transaction.
func recommendStep(ctx context.Context, salaries SalaryStore, currentGrade, currentStep, targetGrade int) (StepRecommendation, error) {
	if !conraiss.ValidGrade(targetGrade) {
		return StepRecommendation{}, &GradeStepError{Grade: targetGrade, Cause: ErrInvalidGrade}
	}

	current, err := salaries.ActiveSalary(ctx, currentGrade, currentStep)
	if err != nil {
		if IsNotFound(err) {
			return StepRecommendation{}, &GradeStepError{Grade: currentGrade, Step: currentStep, Cause: ErrSalaryNotFound}
		}
		return StepRecommendation{}, err
	}

	maxStep := conraiss.MaxStep(targetGrade)
	for step := 1; step <= maxStep; step++ {
		salary, err := salaries.ActiveSalary(ctx, targetGrade, step)
		if err != nil {
			if IsNotFound(err) {
				continue // gap in the table; keep scanning
			}
			return StepRecommendation{}, err
		}
		if salary.GreaterThan(current) {
			return newStepRecommendation(step, current, salary, false), nil
		}
	}

	// Salary table inversion: no step in the target grade beats the
	// current salary. Return the best effort at max step, flagged.
	best := current
	if salary, err := salaries.ActiveSalary(ctx, targetGrade, maxStep); err == nil {
		best = salary
	} else if !IsNotFound(err) {
		return StepRecommendation{}, err
	}
	return newStepRecommendation(maxStep, current, best, true), nil
}

// RecommendStepFor resolves the employee and delegates to RecommendStep.
func (s *StepService) RecommendStepFor(ctx context.Context, id EmployeeID, targetGrade int) (StepRecommendation, error) {
	emp, err := s.Store.GetEmployee(ctx, id)
	if err != nil {
		return StepRecommendation{}, err
	}
	if !emp.HasGradeStep() {
		return StepRecommendation{}, ErrMissingGradeStep
	}
	return s.RecommendStep(ctx, emp.Grade, emp.Step, targetGrade)
}

func newStepRecommendation(step int, current, next decimal.Decimal, degraded bool) StepRecommendation {
	increment := next.Sub(current)
	pct := 0.0
	if !current.IsZero() {
		pct, _ = increment.Div(current).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	}
	return StepRecommendation{
		Step:             step,
		CurrentSalary:    current,
		NewSalary:        next,
		Increment:        increment,
		IncrementPercent: pct,
		Degraded:         degraded,
	}
}

// =============================================================================
// PROMOTION COMMIT
// =============================================================================

// ApplyPromotion moves an employee to (newGrade, newStep), resets the
// failed-attempt counter and appends a Promotion ledger entry. The
// employee update and the ledger append are atomic.
func (s *StepService) ApplyPromotion(ctx context.Context, id EmployeeID, newGrade, newStep int, effective time.Time, processedBy, notes string) (*Employee, *StepIncrement, error) {
	var (
		emp   *Employee
		entry *StepIncrement
	)
	err := s.Store.WithTx(ctx, func(st Stores) error {
		var err error
		emp, entry, err = applyPromotion(ctx, st, id, newGrade, newStep, effective, processedBy, notes, s.Now)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return emp, entry, nil
}

// applyPromotion runs inside a caller-provided transaction so approval
// can bundle it with the recommendation update.
func applyPromotion(ctx context.Context, st Stores, id EmployeeID, newGrade, newStep int, effective time.Time, processedBy, notes string, clock Clock) (*Employee, *StepIncrement, error) {
	if !conraiss.ValidStep(newGrade, newStep) {
		return nil, nil, &GradeStepError{Grade: newGrade, Step: newStep, Cause: ErrInvalidStep}
	}

	emp, err := st.GetEmployee(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if effective.IsZero() {
		effective = orNow(clock)
	}

	oldGrade, oldStep := emp.Grade, emp.Step
	emp.Grade = newGrade
	emp.Step = newStep
	emp.DateOfLastPromotion = &effective
	emp.LastRRRDate = &effective
	emp.LastRRRType = string(IncrementPromotion)
	emp.FailedPromotionAttempts = 0

	if err := st.UpdateEmployee(ctx, *emp); err != nil {
		return nil, nil, err
	}
	emp.Version++

	if notes == "" {
		notes = fmt.Sprintf("Promoted from Grade %d Step %d to Grade %d Step %d",
			oldGrade, oldStep, newGrade, newStep)
	}
	entry := StepIncrement{
		ID:           uuid.NewString(),
		EmployeeID:   emp.ID,
		PreviousStep: oldStep,
		NewStep:      newStep,
		Date:         effective,
		Type:         IncrementPromotion,
		ProcessedBy:  processedBy,
		Notes:        notes,
	}
	if err := st.AppendIncrement(ctx, entry); err != nil {
		return nil, nil, err
	}
	return emp, &entry, nil
}

// =============================================================================
// ANNUAL INCREMENT
// =============================================================================

// IncrementStep advances an employee one step within the current grade.
// Returns (nil, nil) - not an error - when the employee is already at
// the grade's ceiling or has no grade/step.
func (s *StepService) IncrementStep(ctx context.Context, id EmployeeID, processedBy, notes string) (*StepIncrement, error) {
	var entry *StepIncrement
	err := s.Store.WithTx(ctx, func(st Stores) error {
		emp, err := st.GetEmployee(ctx, id)
		if err != nil {
			return err
		}
		if !emp.HasGradeStep() {
			return nil
		}
		if emp.Step >= conraiss.MaxStep(emp.Grade) {
			return nil
		}

		oldStep := emp.Step
		emp.Step++
		if err := st.UpdateEmployee(ctx, *emp); err != nil {
			return err
		}

		if notes == "" {
			notes = fmt.Sprintf("Annual step increment from %d to %d", oldStep, emp.Step)
		}
		e := StepIncrement{
			ID:           uuid.NewString(),
			EmployeeID:   emp.ID,
			PreviousStep: oldStep,
			NewStep:      emp.Step,
			Date:         orNow(s.Now),
			Type:         IncrementAnnual,
			ProcessedBy:  processedBy,
			Notes:        notes,
		}
		if err := st.AppendIncrement(ctx, e); err != nil {
			return err
		}
		entry = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// IncrementSummary aggregates an annual batch run.
type IncrementSummary struct {
	Total       int `json:"total"`
	Incremented int `json:"incremented"`
	Skipped     int `json:"skipped"` // at ceiling, no grade/step, or already run this year
	Failed      int `json:"failed"`
}

// IncrementAll runs the annual increment across the active population.
// An employee with an Annual entry already dated in the current calendar
// year is skipped, so a retried run does not double-increment.
func (s *StepService) IncrementAll(ctx context.Context, processedBy string) (IncrementSummary, error) {
	all, err := s.Store.ListActiveEmployees(ctx)
	if err != nil {
		return IncrementSummary{}, err
	}

	year := orNow(s.Now).Year()
	summary := IncrementSummary{Total: len(all)}
	for _, emp := range all {
		last, err := s.Store.LastIncrement(ctx, emp.ID, IncrementAnnual)
		if err != nil {
			summary.Failed++
			continue
		}
		if last != nil && last.Date.Year() == year {
			summary.Skipped++
			continue
		}

		entry, err := s.IncrementStep(ctx, emp.ID, processedBy, "")
		switch {
		case err != nil:
			summary.Failed++
		case entry == nil:
			summary.Skipped++
		default:
			summary.Incremented++
		}
	}
	return summary, nil
}

// History returns an employee's step ledger, newest first.
func (s *StepService) History(ctx context.Context, id EmployeeID) ([]StepIncrement, error) {
	if _, err := s.Store.GetEmployee(ctx, id); err != nil {
		return nil, err
	}
	return s.Store.IncrementHistory(ctx, id)
}
