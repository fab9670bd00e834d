/*
Package engine implements the RRR allocation and eligibility engine.

PURPOSE:
  Decides who may be considered for promotion in a cycle, turns raw
  signals (exam, performance, seniority) into a comparable combined
  score, ranks candidates within a grade, distributes scarce
  promotion/recognition/reward slots by rank, and picks a promotion
  step that strictly increases salary.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee: the personnel record as the engine sees it
  - SalaryRow: one (grade, step) rung of the salary table
  - VacancyConfig: slot ceilings per grade per cycle
  - CandidateScore: the transient exam/performance/seniority blend
  - Recommendation: the durable per-candidate outcome of a cycle
  - StepIncrement: one append-only entry in the step ledger

DESIGN PRINCIPLES:
  1. Precision: salary amounts use decimal.Decimal, never float
  2. Determinism: identical inputs produce identical rankings
  3. Auditability: every grade/step mutation leaves a ledger entry
  4. Type safety: strong ID types keep employees and recommendations apart

SEE ALSO:
  - eligibility.go: who may compete
  - scoring.go: how signals combine
  - allocation.go: ranking and slot distribution
  - steps.go: step allocation and the increment ledger
  - approval.go: the Pending -> Approved/Rejected workflow
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type RecommendationID string

// Cycle identifies a promotion cycle, e.g. "2025".
type Cycle string

// =============================================================================
// EMPLOYEE - personnel record as seen by the engine
// =============================================================================

// Employee carries the personnel attributes the engine reads, plus the
// grade/step fields it mutates on promotion and annual increment.
// A zero Grade or Step means "not set".
type Employee struct {
	ID         EmployeeID
	Name       string
	FileNumber string

	Grade int // CONRAISS grade, 2-15
	Step  int // step within grade

	DateOfFirstAppointment *time.Time
	ConfirmationDate       *time.Time
	DateOfLastPromotion    *time.Time
	DateOfBirth            *time.Time

	FailedPromotionAttempts int
	LastRRRDate             *time.Time
	LastRRRType             string

	Active bool

	// Version supports compare-and-set on employee mutation. Stores
	// reject an update whose Version does not match the stored row.
	Version int
}

// HasGradeStep reports whether both grade and step are set.
func (e Employee) HasGradeStep() bool {
	return e.Grade != 0 && e.Step != 0
}

// =============================================================================
// SALARY TABLE
// =============================================================================

// SalaryRow is one rung of the CONRAISS salary table. Multiple
// effective-dated rows may exist for a (grade, step); exactly one should
// be active at a time and only active rows feed computation.
type SalaryRow struct {
	Grade         int
	Step          int
	AnnualSalary  decimal.Decimal
	EffectiveDate time.Time
	Active        bool
}

// =============================================================================
// VACANCY CONFIGURATION
// =============================================================================

// VacancyConfig caps the three allocation tiers for one grade in one
// cycle. Unique per (Grade, Cycle).
type VacancyConfig struct {
	Grade            int
	Cycle            Cycle
	PromotionSlots   int
	RecognitionSlots int
	RewardSlots      int
	Active           bool
}

// Slots is the per-tier ceiling passed to a single-grade allocation.
type Slots struct {
	Promotion   int
	Recognition int
	Reward      int
}

// =============================================================================
// SCORES
// =============================================================================

// Score weights: exam dominates, then performance, then seniority.
const (
	WeightExam        = 0.70
	WeightPerformance = 0.20
	WeightSeniority   = 0.10
)

// CandidateScore is the transient, computed score set for one candidate.
// All components are on the 0-100 scale; a missing input contributes 0.
type CandidateScore struct {
	Exam        float64
	Performance float64
	Seniority   float64
	Combined    float64
}

// =============================================================================
// RECOMMENDATION - durable outcome of a cycle, per candidate
// =============================================================================

type RecommendationStatus string

const (
	StatusPending  RecommendationStatus = "Pending"
	StatusApproved RecommendationStatus = "Approved"
	StatusRejected RecommendationStatus = "Rejected"
)

// Terminal reports whether the status can no longer change.
func (s RecommendationStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Recommendation records a candidate's computed scores, rank and
// allocation outcome for one cycle. Keyed logically by
// (EmployeeID, Cycle): re-running allocation updates the existing row
// rather than duplicating it.
type Recommendation struct {
	ID         RecommendationID
	EmployeeID EmployeeID
	Cycle      Cycle
	Grade      int // grade at time of evaluation

	ExamScore        float64
	PerformanceScore float64
	SeniorityScore   float64
	CombinedScore    float64

	RankInGrade  int
	TotalInGrade int

	Promoted   bool
	Recognized bool
	Rewarded   bool

	// Promotion details. PromotedToStep stays 0 until approval:
	// the step depends on the salary table at approval time.
	PromotedToGrade        int
	PromotedToStep         int
	PromotionEffectiveDate *time.Time

	Status          RecommendationStatus
	RecommendedBy   string
	ApprovedBy      string
	ApprovalTime    *time.Time
	RejectionReason string
}

// =============================================================================
// STEP INCREMENT LEDGER
// =============================================================================

type IncrementType string

const (
	IncrementAnnual    IncrementType = "Annual"
	IncrementPromotion IncrementType = "Promotion"
)

// StepIncrement is one append-only ledger entry recording a step change.
// Entries are never mutated; retention cleanup is an external concern.
type StepIncrement struct {
	ID           string
	EmployeeID   EmployeeID
	PreviousStep int
	NewStep      int
	Date         time.Time
	Type         IncrementType
	ProcessedBy  string // empty for automated runs
	Notes        string
}
