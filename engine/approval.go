/*
approval.go - Recommendation approval workflow

STATE MACHINE:
  Pending -> Approved   commits the promotion (grade/step/promotion date,
                        failed attempts reset) and stamps the approver
  Pending -> Rejected   records the reason; a rejected PROMOTION bumps
                        the employee's failed-attempt counter, which
                        relaxes next cycle's time-in-grade gate to 1 year

  Both outcomes are terminal. Acting on a terminal recommendation fails
  with a StateError; an unknown id fails with ErrRecommendationNotFound.

STEP AT APPROVAL:
  Ranking leaves promoted_to_step unset on purpose - the step depends on
  the salary table at approval time. Approve fills it in via the step
  allocator right before committing, unless a step was already fixed
  administratively.

ATOMICITY:
  Each transition runs inside WithTx: the recommendation update, the
  employee mutation and the ledger entry persist together or not at all.
*/
package engine

import (
	"context"
	"fmt"
	"time"
)

// ApprovalService drives the Pending -> Approved/Rejected transitions.
type ApprovalService struct {
	Store TxStores
	Now   Clock
}

func NewApprovalService(store TxStores) *ApprovalService {
	return &ApprovalService{Store: store}
}

// Approve marks a Pending recommendation Approved. For a promotion it
// allocates the target step (if not already set) and commits the
// employee mutation plus the Promotion ledger entry atomically.
func (s *ApprovalService) Approve(ctx context.Context, id RecommendationID, approvedBy string) (*Recommendation, error) {
	var approved *Recommendation
	err := s.Store.WithTx(ctx, func(st Stores) error {
		rec, err := st.GetRecommendation(ctx, id)
		if err != nil {
			return err
		}
		if rec.Status != StatusPending {
			return &StateError{RecommendationID: id, Status: rec.Status, Wanted: StatusPending}
		}

		now := orNow(s.Now)
		rec.Status = StatusApproved
		rec.ApprovedBy = approvedBy
		rec.ApprovalTime = &now

		if rec.Promoted && rec.PromotedToGrade != 0 {
			if rec.PromotedToStep == 0 {
				emp, err := st.GetEmployee(ctx, rec.EmployeeID)
				if err != nil {
					return err
				}
				if !emp.HasGradeStep() {
					return ErrMissingGradeStep
				}
				step, err := recommendStep(ctx, st, emp.Grade, emp.Step, rec.PromotedToGrade)
				if err != nil {
					return fmt.Errorf("allocating step for %s: %w", rec.EmployeeID, err)
				}
				rec.PromotedToStep = step.Step
			}

			var effective time.Time
			if rec.PromotionEffectiveDate != nil {
				effective = *rec.PromotionEffectiveDate
			}
			if _, _, err := applyPromotion(ctx, st, rec.EmployeeID,
				rec.PromotedToGrade, rec.PromotedToStep, effective, approvedBy, "", s.Now); err != nil {
				return err
			}
		}

		if err := st.SaveRecommendation(ctx, *rec); err != nil {
			return err
		}
		approved = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

// Reject marks a Pending recommendation Rejected with the given reason.
// A rejected promotion increments the employee's failed-attempt counter;
// grade and step are untouched.
func (s *ApprovalService) Reject(ctx context.Context, id RecommendationID, reason string) (*Recommendation, error) {
	var rejected *Recommendation
	err := s.Store.WithTx(ctx, func(st Stores) error {
		rec, err := st.GetRecommendation(ctx, id)
		if err != nil {
			return err
		}
		if rec.Status != StatusPending {
			return &StateError{RecommendationID: id, Status: rec.Status, Wanted: StatusPending}
		}

		rec.Status = StatusRejected
		rec.RejectionReason = reason

		if rec.Promoted {
			emp, err := st.GetEmployee(ctx, rec.EmployeeID)
			if err != nil {
				return err
			}
			emp.FailedPromotionAttempts++
			if err := st.UpdateEmployee(ctx, *emp); err != nil {
				return err
			}
		}

		if err := st.SaveRecommendation(ctx, *rec); err != nil {
			return err
		}
		rejected = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}
