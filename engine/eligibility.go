/*
eligibility.go - Promotion eligibility evaluation

PURPOSE:
  Decides whether an employee may be considered for promotion in a
  cycle. Rules are applied in order; the first failing rule determines
  the result:

    1. Grade and step must both be set
    2. Grade 15 is top of scale - no promotion path above it
    3. No active disciplinary action (pluggable check)
    4. Time in grade meets the band's cycle, or the relaxed 1-year
       retry rule after a failed attempt
    5. Optionally, an active vacancy with promotion slots must exist

TIME IN GRADE:
  Computed from date_of_last_promotion when present, else
  date_of_first_appointment, in fractional years (days / 365.25).
  Neither date set -> ineligible (cannot determine).

DISCIPLINARY CHECK:
  Injected as a DisciplinaryCheck so a discipline subsystem can plug in
  later. NoDisciplinaryActions is the current production implementation.

BATCH EVALUATION:
  EligibleCandidates and RefreshAll apply the evaluator across the
  active population. A single employee's failure (e.g. a check error)
  is counted and skipped - it never aborts the batch.
*/
package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/nbti/promotion-engine/conraiss"
)

// =============================================================================
// DISCIPLINARY CHECK - extension point
// =============================================================================

// DisciplinaryCheck reports whether an employee is blocked from
// promotion by an active disciplinary action.
type DisciplinaryCheck interface {
	HasActiveAction(ctx context.Context, emp Employee) (bool, error)
}

// NoDisciplinaryActions is the default check: no holds exist until a
// discipline subsystem is wired in.
type NoDisciplinaryActions struct{}

func (NoDisciplinaryActions) HasActiveAction(context.Context, Employee) (bool, error) {
	return false, nil
}

// =============================================================================
// RESULTS
// =============================================================================

// EligibilityDetails carries the numbers behind a verdict so the caller
// can render a precise message.
type EligibilityDetails struct {
	CurrentGrade   int     `json:"current_grade,omitempty"`
	TargetGrade    int     `json:"target_grade,omitempty"`
	YearsInGrade   float64 `json:"years_in_grade,omitempty"`
	RequiredYears  float64 `json:"required_years,omitempty"`
	YearsRemaining float64 `json:"years_remaining,omitempty"`
	StandardCycle  int     `json:"standard_cycle,omitempty"`
	FailedAttempts int     `json:"failed_attempts"`
	Cycle          Cycle   `json:"cycle,omitempty"`
}

// EligibilityResult is the verdict for one employee.
type EligibilityResult struct {
	Eligible bool               `json:"eligible"`
	Reason   string             `json:"reason"`
	Details  EligibilityDetails `json:"details"`
}

// EligibilityQuery tunes a single evaluation.
type EligibilityQuery struct {
	// TargetGrade defaults to current grade + 1 when zero.
	TargetGrade int

	// CheckVacancy additionally requires an active vacancy configuration
	// with promotion slots for (current grade, Cycle).
	CheckVacancy bool
	Cycle        Cycle
}

// EligibilitySummary aggregates a batch run over the active population.
type EligibilitySummary struct {
	Total      int `json:"total"`
	Eligible   int `json:"eligible"`
	Ineligible int `json:"ineligible"`
	Failed     int `json:"failed"` // evaluations that errored; skipped, not fatal
}

// =============================================================================
// EVALUATOR
// =============================================================================

// Evaluator applies the eligibility rules. Vacancies may be nil when no
// vacancy checks will be requested.
type Evaluator struct {
	Vacancies    VacancyStore
	Disciplinary DisciplinaryCheck
	Now          Clock
}

// NewEvaluator returns an evaluator with the default disciplinary check.
func NewEvaluator(vacancies VacancyStore) *Evaluator {
	return &Evaluator{Vacancies: vacancies, Disciplinary: NoDisciplinaryActions{}}
}

// Evaluate checks one employee against the rules in order.
// The returned error is reserved for infrastructure failures (store,
// disciplinary check); a rule failure is an ineligible result, not an error.
func (e *Evaluator) Evaluate(ctx context.Context, emp Employee, q EligibilityQuery) (EligibilityResult, error) {
	if !emp.HasGradeStep() {
		return ineligible("employee has no grade/step information", EligibilityDetails{}), nil
	}

	current := emp.Grade
	target := q.TargetGrade
	if target == 0 {
		target = current + 1
	}

	if current >= conraiss.MaxGrade {
		return ineligible(
			fmt.Sprintf("already at maximum CONRAISS grade (%d)", conraiss.MaxGrade),
			EligibilityDetails{CurrentGrade: current},
		), nil
	}

	if e.Disciplinary != nil {
		held, err := e.Disciplinary.HasActiveAction(ctx, emp)
		if err != nil {
			return EligibilityResult{}, fmt.Errorf("disciplinary check: %w", err)
		}
		if held {
			return ineligible("has active disciplinary action", EligibilityDetails{CurrentGrade: current}), nil
		}
	}

	now := orNow(e.Now)
	var since *time.Time
	switch {
	case emp.DateOfLastPromotion != nil:
		since = emp.DateOfLastPromotion
	case emp.DateOfFirstAppointment != nil:
		since = emp.DateOfFirstAppointment
	default:
		return ineligible("cannot determine time in grade (missing appointment dates)", EligibilityDetails{}), nil
	}
	yearsInGrade := yearsBetween(*since, now)

	standardCycle := conraiss.EligibilityYears(current)

	// A failed attempt relaxes the wait to one year: retry annually.
	required := float64(standardCycle)
	if emp.FailedPromotionAttempts > 0 {
		required = 1
	}

	if yearsInGrade < required {
		return ineligible(
			fmt.Sprintf("insufficient time in grade (requires %.0f years)", required),
			EligibilityDetails{
				CurrentGrade:   current,
				YearsInGrade:   round2(yearsInGrade),
				RequiredYears:  required,
				YearsRemaining: round2(required - yearsInGrade),
				FailedAttempts: emp.FailedPromotionAttempts,
			},
		), nil
	}

	if q.CheckVacancy && q.Cycle != "" {
		vacancy, err := e.Vacancies.ActiveVacancy(ctx, current, q.Cycle)
		if err != nil && !IsNotFound(err) {
			return EligibilityResult{}, fmt.Errorf("vacancy lookup: %w", err)
		}
		if vacancy == nil || vacancy.PromotionSlots <= 0 {
			return ineligible(
				fmt.Sprintf("no promotion vacancies for grade %d in cycle %s", current, q.Cycle),
				EligibilityDetails{CurrentGrade: current, Cycle: q.Cycle},
			), nil
		}
	}

	return EligibilityResult{
		Eligible: true,
		Reason:   "meets all eligibility criteria",
		Details: EligibilityDetails{
			CurrentGrade:   current,
			TargetGrade:    target,
			YearsInGrade:   round2(yearsInGrade),
			RequiredYears:  required,
			StandardCycle:  standardCycle,
			FailedAttempts: emp.FailedPromotionAttempts,
		},
	}, nil
}

// EligibleCandidates filters the active population down to employees
// eligible for promotion. targetGrade, when non-zero, restricts the pool
// to the grade directly below it. Vacancy checks are skipped in bulk.
func (e *Evaluator) EligibleCandidates(ctx context.Context, employees EmployeeStore, targetGrade int, cycle Cycle) ([]Employee, error) {
	all, err := employees.ListActiveEmployees(ctx)
	if err != nil {
		return nil, err
	}

	var eligible []Employee
	for _, emp := range all {
		if targetGrade != 0 && emp.Grade != targetGrade-1 {
			continue
		}
		result, err := e.Evaluate(ctx, emp, EligibilityQuery{TargetGrade: targetGrade, Cycle: cycle})
		if err != nil {
			continue // one bad record must not abort the batch
		}
		if result.Eligible {
			eligible = append(eligible, emp)
		}
	}
	return eligible, nil
}

// RefreshAll evaluates the whole active population and returns counts.
// Intended for periodic status refreshes.
func (e *Evaluator) RefreshAll(ctx context.Context, employees EmployeeStore) (EligibilitySummary, error) {
	all, err := employees.ListActiveEmployees(ctx)
	if err != nil {
		return EligibilitySummary{}, err
	}

	summary := EligibilitySummary{Total: len(all)}
	for _, emp := range all {
		result, err := e.Evaluate(ctx, emp, EligibilityQuery{})
		if err != nil {
			summary.Failed++
			continue
		}
		if result.Eligible {
			summary.Eligible++
		} else {
			summary.Ineligible++
		}
	}
	return summary, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func ineligible(reason string, details EligibilityDetails) EligibilityResult {
	return EligibilityResult{Eligible: false, Reason: reason, Details: details}
}

// yearsBetween returns fractional years, days / 365.25.
func yearsBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24 / 365.25
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
