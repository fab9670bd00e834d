/*
store.go - Persistence interfaces for the allocation engine

PURPOSE:
  Defines the boundary between the engine and the database. Different
  implementations can back these with SQLite, PostgreSQL, or memory.

KEY INTERFACES:
  EmployeeStore:       read + compare-and-set mutation of employees
  SalaryStore:         active salary lookup (read-only to the engine)
  VacancyStore:        slot configuration lookup (read-only to the engine)
  RecommendationStore: recommendation upsert keyed by (employee, cycle)
  StepLogStore:        APPEND-ONLY step increment ledger
  TxStores:            atomic multi-store operations

APPEND-ONLY CONTRACT:
  StepLogStore has no Update or Delete. A promotion or annual increment
  writes exactly one new entry; corrections are new entries, not edits.

ATOMICITY:
  Approving a promotion touches the recommendation, the employee and the
  step ledger. WithTx ensures either all three writes persist or none do.

CONCURRENCY:
  Employee mutation is serialized per employee via optimistic locking:
  UpdateEmployee must fail with ErrConcurrentModification when the given
  Version no longer matches the stored row.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite
  - engine/store: in-memory for tests
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

// EmployeeStore reads employees and applies the engine's only mutations:
// grade/step/promotion-date/failed-attempt updates.
type EmployeeStore interface {
	// GetEmployee returns the employee or ErrEmployeeNotFound.
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)

	// ListActiveEmployees returns the active population.
	ListActiveEmployees(ctx context.Context) ([]Employee, error)

	// ListActiveByGrade returns active employees at a grade.
	ListActiveByGrade(ctx context.Context, grade int) ([]Employee, error)

	// UpdateEmployee persists emp if emp.Version matches the stored row,
	// then bumps the stored version. Returns ErrConcurrentModification
	// on a version mismatch, ErrEmployeeNotFound if the row is gone.
	UpdateEmployee(ctx context.Context, emp Employee) error
}

// =============================================================================
// SALARY TABLE (read-only to the engine)
// =============================================================================

type SalaryStore interface {
	// ActiveSalary returns the annual salary of the single active row for
	// (grade, step), or ErrSalaryNotFound.
	ActiveSalary(ctx context.Context, grade, step int) (decimal.Decimal, error)
}

// =============================================================================
// VACANCY CONFIGURATION (read-only to the engine)
// =============================================================================

type VacancyStore interface {
	// ActiveVacancy returns the active configuration for (grade, cycle),
	// or ErrVacancyNotFound.
	ActiveVacancy(ctx context.Context, grade int, cycle Cycle) (*VacancyConfig, error)

	// ListActiveVacancies returns every active configuration for a cycle.
	ListActiveVacancies(ctx context.Context, cycle Cycle) ([]VacancyConfig, error)
}

// =============================================================================
// RECOMMENDATION STORE
// =============================================================================

type RecommendationStore interface {
	// GetRecommendation returns the recommendation or ErrRecommendationNotFound.
	GetRecommendation(ctx context.Context, id RecommendationID) (*Recommendation, error)

	// FindRecommendation locates the row for (employee, cycle), or
	// ErrRecommendationNotFound. At most one such row exists.
	FindRecommendation(ctx context.Context, id EmployeeID, cycle Cycle) (*Recommendation, error)

	// SaveRecommendation inserts or replaces by ID.
	SaveRecommendation(ctx context.Context, rec Recommendation) error

	// ListRecommendations returns the rows for (grade, cycle) ordered by
	// rank ascending.
	ListRecommendations(ctx context.Context, grade int, cycle Cycle) ([]Recommendation, error)
}

// =============================================================================
// STEP INCREMENT LEDGER - append-only
// =============================================================================

type StepLogStore interface {
	// AppendIncrement adds a ledger entry. This is the ONLY write.
	AppendIncrement(ctx context.Context, entry StepIncrement) error

	// IncrementHistory returns an employee's entries, newest first.
	IncrementHistory(ctx context.Context, id EmployeeID) ([]StepIncrement, error)

	// LastIncrement returns the most recent entry of a type for an
	// employee, or nil if none exists.
	LastIncrement(ctx context.Context, id EmployeeID, typ IncrementType) (*StepIncrement, error)
}

// =============================================================================
// COMBINED / TRANSACTIONAL STORES
// =============================================================================

// Stores bundles every persistence interface the engine consumes.
type Stores interface {
	EmployeeStore
	SalaryStore
	VacancyStore
	RecommendationStore
	StepLogStore
}

// TxStores adds atomic execution across the bundled stores.
type TxStores interface {
	Stores

	// WithTx executes fn atomically. If fn returns an error the writes
	// it performed are rolled back.
	WithTx(ctx context.Context, fn func(Stores) error) error
}

// =============================================================================
// CLOCK
// =============================================================================

// Now is the clock signature injected into engine services so tests can
// pin time. A nil clock means time.Now.
type Clock func() time.Time

func orNow(c Clock) time.Time {
	if c != nil {
		return c()
	}
	return time.Now()
}
