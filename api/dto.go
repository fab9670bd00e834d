/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator struct tags; handlers run
  the shared validator instance after decoding and reject bad input with
  a 400 before touching the engine.

DATES:
  All calendar dates cross the wire as "YYYY-MM-DD" strings; timestamps
  use RFC3339.

SEE ALSO:
  - handlers.go: uses these types
  - engine/types.go: the domain model these project
*/
package api

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/nbti/promotion-engine/conraiss"
	"github.com/nbti/promotion-engine/engine"
)

var validate = validator.New()

const dateLayout = "2006-01-02"

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID                      string  `json:"id"`
	Name                    string  `json:"name"`
	FileNumber              string  `json:"file_number,omitempty"`
	Grade                   int     `json:"grade"`
	Step                    int     `json:"step"`
	DateOfFirstAppointment  *string `json:"date_of_first_appointment,omitempty"`
	ConfirmationDate        *string `json:"confirmation_date,omitempty"`
	DateOfLastPromotion     *string `json:"date_of_last_promotion,omitempty"`
	DateOfBirth             *string `json:"date_of_birth,omitempty"`
	FailedPromotionAttempts int     `json:"failed_promotion_attempts"`
	LastRRRDate             *string `json:"last_rrr_date,omitempty"`
	LastRRRType             string  `json:"last_rrr_type,omitempty"`
	Active                  bool    `json:"active"`
}

// SaveEmployeeRequest creates or replaces a personnel record.
type SaveEmployeeRequest struct {
	ID                     string  `json:"id" validate:"required"`
	Name                   string  `json:"name" validate:"required"`
	FileNumber             string  `json:"file_number"`
	Grade                  int     `json:"grade" validate:"omitempty,min=2,max=15"`
	Step                   int     `json:"step" validate:"omitempty,min=1,max=15"`
	DateOfFirstAppointment *string `json:"date_of_first_appointment" validate:"omitempty,datetime=2006-01-02"`
	ConfirmationDate       *string `json:"confirmation_date" validate:"omitempty,datetime=2006-01-02"`
	DateOfLastPromotion    *string `json:"date_of_last_promotion" validate:"omitempty,datetime=2006-01-02"`
	DateOfBirth            *string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Active                 *bool   `json:"active"`
}

// =============================================================================
// ELIGIBILITY
// =============================================================================

// EligibilityDTO wraps the engine's verdict with the employee it is for.
type EligibilityDTO struct {
	EmployeeID string                   `json:"employee_id"`
	Result     engine.EligibilityResult `json:"result"`
}

// =============================================================================
// ALLOCATION
// =============================================================================

// RunAllocationRequest triggers a full cycle allocation.
type RunAllocationRequest struct {
	Cycle         string `json:"cycle" validate:"required"`
	RecommendedBy string `json:"recommended_by"`
}

// RankedCandidateDTO is one row of a ranked list.
type RankedCandidateDTO struct {
	EmployeeID       string  `json:"employee_id"`
	Name             string  `json:"name"`
	Rank             int     `json:"rank"`
	ExamScore        float64 `json:"exam_score"`
	PerformanceScore float64 `json:"performance_score"`
	SeniorityScore   float64 `json:"seniority_score"`
	CombinedScore    float64 `json:"combined_score"`
}

// GradeAllocationDTO summarizes one grade's allocation outcome.
type GradeAllocationDTO struct {
	Grade            int                  `json:"grade"`
	Cycle            string               `json:"cycle"`
	TotalCandidates  int                  `json:"total_candidates"`
	PromotionSlots   int                  `json:"promotion_slots"`
	RecognitionSlots int                  `json:"recognition_slots"`
	RewardSlots      int                  `json:"reward_slots"`
	Promoted         []RankedCandidateDTO `json:"promoted"`
	Recognized       []RankedCandidateDTO `json:"recognized"`
	Rewarded         []RankedCandidateDTO `json:"rewarded"`
	SkippedTerminal  int                  `json:"skipped_terminal,omitempty"`
}

// =============================================================================
// RECOMMENDATIONS
// =============================================================================

// RecommendationDTO represents a recommendation in API responses.
type RecommendationDTO struct {
	ID               string  `json:"id"`
	EmployeeID       string  `json:"employee_id"`
	Cycle            string  `json:"cycle"`
	Grade            int     `json:"grade"`
	ExamScore        float64 `json:"exam_score"`
	PerformanceScore float64 `json:"performance_score"`
	SeniorityScore   float64 `json:"seniority_score"`
	CombinedScore    float64 `json:"combined_score"`
	RankInGrade      int     `json:"rank_in_grade"`
	TotalInGrade     int     `json:"total_in_grade"`
	Promoted         bool    `json:"promoted"`
	Recognized       bool    `json:"recognized"`
	Rewarded         bool    `json:"rewarded"`
	PromotedToGrade  int     `json:"promoted_to_grade,omitempty"`
	PromotedToStep   int     `json:"promoted_to_step,omitempty"`
	Status           string  `json:"status"`
	RecommendedBy    string  `json:"recommended_by,omitempty"`
	ApprovedBy       string  `json:"approved_by,omitempty"`
	ApprovalTime     *string `json:"approval_time,omitempty"`
	RejectionReason  string  `json:"rejection_reason,omitempty"`
}

// ApproveRequest approves a pending recommendation.
type ApproveRequest struct {
	ApprovedBy string `json:"approved_by" validate:"required"`
}

// RejectRequest rejects a pending recommendation.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// =============================================================================
// STEPS
// =============================================================================

// IncrementDTO represents one step ledger entry.
type IncrementDTO struct {
	ID           string `json:"id"`
	EmployeeID   string `json:"employee_id"`
	PreviousStep int    `json:"previous_step"`
	NewStep      int    `json:"new_step"`
	Date         string `json:"date"`
	Type         string `json:"type"`
	ProcessedBy  string `json:"processed_by,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// IncrementStepRequest advances one employee a single step.
type IncrementStepRequest struct {
	ProcessedBy string `json:"processed_by"`
	Notes       string `json:"notes"`
}

// RunIncrementsRequest triggers the annual increment batch.
type RunIncrementsRequest struct {
	ProcessedBy string `json:"processed_by"`
}

// =============================================================================
// SALARY / VACANCY ADMIN
// =============================================================================

// SalaryRowDTO represents one rung of the salary table.
type SalaryRowDTO struct {
	Grade         int    `json:"grade"`
	Step          int    `json:"step"`
	AnnualSalary  string `json:"annual_salary"`
	EffectiveDate string `json:"effective_date"`
	Active        bool   `json:"active"`
}

// SaveSalaryRowRequest upserts one rung of the salary table.
type SaveSalaryRowRequest struct {
	Grade         int    `json:"grade" validate:"required,min=2,max=15"`
	Step          int    `json:"step" validate:"required,min=1,max=15"`
	AnnualSalary  string `json:"annual_salary" validate:"required"`
	EffectiveDate string `json:"effective_date" validate:"required,datetime=2006-01-02"`
	Active        *bool  `json:"active"`
}

// VacancyDTO represents a slot configuration.
type VacancyDTO struct {
	Grade            int    `json:"grade"`
	Cycle            string `json:"cycle"`
	PromotionSlots   int    `json:"promotion_slots"`
	RecognitionSlots int    `json:"recognition_slots"`
	RewardSlots      int    `json:"reward_slots"`
	Active           bool   `json:"active"`
}

// SaveVacancyRequest upserts a slot configuration.
type SaveVacancyRequest struct {
	Grade            int    `json:"grade" validate:"required,min=2,max=15"`
	Cycle            string `json:"cycle" validate:"required"`
	PromotionSlots   int    `json:"promotion_slots" validate:"min=0"`
	RecognitionSlots int    `json:"recognition_slots" validate:"min=0"`
	RewardSlots      int    `json:"reward_slots" validate:"min=0"`
	Active           *bool  `json:"active"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(e engine.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:                      string(e.ID),
		Name:                    e.Name,
		FileNumber:              e.FileNumber,
		Grade:                   e.Grade,
		Step:                    e.Step,
		DateOfFirstAppointment:  formatDate(e.DateOfFirstAppointment),
		ConfirmationDate:        formatDate(e.ConfirmationDate),
		DateOfLastPromotion:     formatDate(e.DateOfLastPromotion),
		DateOfBirth:             formatDate(e.DateOfBirth),
		FailedPromotionAttempts: e.FailedPromotionAttempts,
		LastRRRDate:             formatDate(e.LastRRRDate),
		LastRRRType:             e.LastRRRType,
		Active:                  e.Active,
	}
}

func toEmployeeDTOs(emps []engine.Employee) []EmployeeDTO {
	dtos := make([]EmployeeDTO, len(emps))
	for i, e := range emps {
		dtos[i] = toEmployeeDTO(e)
	}
	return dtos
}

func (r SaveEmployeeRequest) toEmployee() (engine.Employee, error) {
	emp := engine.Employee{
		ID:         engine.EmployeeID(r.ID),
		Name:       r.Name,
		FileNumber: r.FileNumber,
		Grade:      r.Grade,
		Step:       r.Step,
		Active:     true,
	}
	if r.Active != nil {
		emp.Active = *r.Active
	}
	// A record may omit grade/step entirely, but a present pair must
	// name a real rung of the ladder.
	if r.Grade != 0 || r.Step != 0 {
		if !conraiss.ValidGrade(r.Grade) {
			return emp, &engine.GradeStepError{Grade: r.Grade, Cause: engine.ErrInvalidGrade}
		}
		if !conraiss.ValidStep(r.Grade, r.Step) {
			return emp, &engine.GradeStepError{Grade: r.Grade, Step: r.Step, Cause: engine.ErrInvalidStep}
		}
	}
	var err error
	if emp.DateOfFirstAppointment, err = parseDatePtr(r.DateOfFirstAppointment); err != nil {
		return emp, err
	}
	if emp.ConfirmationDate, err = parseDatePtr(r.ConfirmationDate); err != nil {
		return emp, err
	}
	if emp.DateOfLastPromotion, err = parseDatePtr(r.DateOfLastPromotion); err != nil {
		return emp, err
	}
	if emp.DateOfBirth, err = parseDatePtr(r.DateOfBirth); err != nil {
		return emp, err
	}
	return emp, nil
}

func toRankedCandidateDTO(c engine.RankedCandidate) RankedCandidateDTO {
	return RankedCandidateDTO{
		EmployeeID:       string(c.Employee.ID),
		Name:             c.Employee.Name,
		Rank:             c.Rank,
		ExamScore:        c.Score.Exam,
		PerformanceScore: c.Score.Performance,
		SeniorityScore:   c.Score.Seniority,
		CombinedScore:    c.Score.Combined,
	}
}

func toRankedCandidateDTOs(cs []engine.RankedCandidate) []RankedCandidateDTO {
	dtos := make([]RankedCandidateDTO, len(cs))
	for i, c := range cs {
		dtos[i] = toRankedCandidateDTO(c)
	}
	return dtos
}

func toGradeAllocationDTO(a *engine.GradeAllocation) GradeAllocationDTO {
	return GradeAllocationDTO{
		Grade:            a.Grade,
		Cycle:            string(a.Cycle),
		TotalCandidates:  a.TotalCandidates,
		PromotionSlots:   a.Slots.Promotion,
		RecognitionSlots: a.Slots.Recognition,
		RewardSlots:      a.Slots.Reward,
		Promoted:         toRankedCandidateDTOs(a.Promoted),
		Recognized:       toRankedCandidateDTOs(a.Recognized),
		Rewarded:         toRankedCandidateDTOs(a.Rewarded),
		SkippedTerminal:  a.SkippedTerminal,
	}
}

func toRecommendationDTO(rec engine.Recommendation) RecommendationDTO {
	dto := RecommendationDTO{
		ID:               string(rec.ID),
		EmployeeID:       string(rec.EmployeeID),
		Cycle:            string(rec.Cycle),
		Grade:            rec.Grade,
		ExamScore:        rec.ExamScore,
		PerformanceScore: rec.PerformanceScore,
		SeniorityScore:   rec.SeniorityScore,
		CombinedScore:    rec.CombinedScore,
		RankInGrade:      rec.RankInGrade,
		TotalInGrade:     rec.TotalInGrade,
		Promoted:         rec.Promoted,
		Recognized:       rec.Recognized,
		Rewarded:         rec.Rewarded,
		PromotedToGrade:  rec.PromotedToGrade,
		PromotedToStep:   rec.PromotedToStep,
		Status:           string(rec.Status),
		RecommendedBy:    rec.RecommendedBy,
		ApprovedBy:       rec.ApprovedBy,
		RejectionReason:  rec.RejectionReason,
	}
	if rec.ApprovalTime != nil {
		s := rec.ApprovalTime.UTC().Format(time.RFC3339)
		dto.ApprovalTime = &s
	}
	return dto
}

func toRecommendationDTOs(recs []engine.Recommendation) []RecommendationDTO {
	dtos := make([]RecommendationDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toRecommendationDTO(rec)
	}
	return dtos
}

func toIncrementDTO(e engine.StepIncrement) IncrementDTO {
	return IncrementDTO{
		ID:           e.ID,
		EmployeeID:   string(e.EmployeeID),
		PreviousStep: e.PreviousStep,
		NewStep:      e.NewStep,
		Date:         e.Date.Format(dateLayout),
		Type:         string(e.Type),
		ProcessedBy:  e.ProcessedBy,
		Notes:        e.Notes,
	}
}

func toIncrementDTOs(entries []engine.StepIncrement) []IncrementDTO {
	dtos := make([]IncrementDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toIncrementDTO(e)
	}
	return dtos
}

func toSalaryRowDTO(row engine.SalaryRow) SalaryRowDTO {
	return SalaryRowDTO{
		Grade:         row.Grade,
		Step:          row.Step,
		AnnualSalary:  row.AnnualSalary.String(),
		EffectiveDate: row.EffectiveDate.Format(dateLayout),
		Active:        row.Active,
	}
}

func toVacancyDTO(v engine.VacancyConfig) VacancyDTO {
	return VacancyDTO{
		Grade:            v.Grade,
		Cycle:            string(v.Cycle),
		PromotionSlots:   v.PromotionSlots,
		RecognitionSlots: v.RecognitionSlots,
		RewardSlots:      v.RewardSlots,
		Active:           v.Active,
	}
}

func (r SaveSalaryRowRequest) toSalaryRow() (engine.SalaryRow, error) {
	salary, err := decimal.NewFromString(r.AnnualSalary)
	if err != nil {
		return engine.SalaryRow{}, err
	}
	effective, err := time.Parse(dateLayout, r.EffectiveDate)
	if err != nil {
		return engine.SalaryRow{}, err
	}
	row := engine.SalaryRow{
		Grade:         r.Grade,
		Step:          r.Step,
		AnnualSalary:  salary,
		EffectiveDate: effective,
		Active:        true,
	}
	if r.Active != nil {
		row.Active = *r.Active
	}
	return row, nil
}

func (r SaveVacancyRequest) toVacancy() engine.VacancyConfig {
	v := engine.VacancyConfig{
		Grade:            r.Grade,
		Cycle:            engine.Cycle(r.Cycle),
		PromotionSlots:   r.PromotionSlots,
		RecognitionSlots: r.RecognitionSlots,
		RewardSlots:      r.RewardSlots,
		Active:           true,
	}
	if r.Active != nil {
		v.Active = *r.Active
	}
	return v
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func parseDatePtr(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
