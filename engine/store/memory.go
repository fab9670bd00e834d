// Package store provides an in-memory implementation of the engine's
// persistence interfaces, used by tests and development tooling.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/nbti/promotion-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	// txMu serializes WithTx blocks so snapshots are consistent.
	txMu sync.Mutex

	employees       map[engine.EmployeeID]engine.Employee
	salaries        []engine.SalaryRow
	vacancies       map[vacancyKey]engine.VacancyConfig
	recommendations map[engine.RecommendationID]engine.Recommendation
	increments      []engine.StepIncrement
}

type vacancyKey struct {
	Grade int
	Cycle engine.Cycle
}

func NewMemory() *Memory {
	return &Memory{
		employees:       make(map[engine.EmployeeID]engine.Employee),
		vacancies:       make(map[vacancyKey]engine.VacancyConfig),
		recommendations: make(map[engine.RecommendationID]engine.Recommendation),
	}
}

// =============================================================================
// SEEDING - test/dev setup writes, not part of the engine interfaces
// =============================================================================

func (m *Memory) PutEmployee(emp engine.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = emp
}

func (m *Memory) PutSalary(row engine.SalaryRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.salaries = append(m.salaries, row)
}

func (m *Memory) PutVacancy(v engine.VacancyConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vacancies[vacancyKey{Grade: v.Grade, Cycle: v.Cycle}] = v
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

func (m *Memory) GetEmployee(_ context.Context, id engine.EmployeeID) (*engine.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	emp, ok := m.employees[id]
	if !ok {
		return nil, engine.ErrEmployeeNotFound
	}
	return &emp, nil
}

func (m *Memory) ListActiveEmployees(_ context.Context) ([]engine.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.Employee
	for _, emp := range m.employees {
		if emp.Active {
			result = append(result, emp)
		}
	}
	sortEmployees(result)
	return result, nil
}

func (m *Memory) ListActiveByGrade(_ context.Context, grade int) ([]engine.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.Employee
	for _, emp := range m.employees {
		if emp.Active && emp.Grade == grade {
			result = append(result, emp)
		}
	}
	sortEmployees(result)
	return result, nil
}

func (m *Memory) UpdateEmployee(_ context.Context, emp engine.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.employees[emp.ID]
	if !ok {
		return engine.ErrEmployeeNotFound
	}
	if stored.Version != emp.Version {
		return engine.ErrConcurrentModification
	}
	emp.Version++
	m.employees[emp.ID] = emp
	return nil
}

// sortEmployees gives list results a deterministic order (maps don't).
func sortEmployees(emps []engine.Employee) {
	sort.Slice(emps, func(i, j int) bool { return emps[i].ID < emps[j].ID })
}

// =============================================================================
// SALARY STORE
// =============================================================================

func (m *Memory) ActiveSalary(_ context.Context, grade, step int) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, row := range m.salaries {
		if row.Active && row.Grade == grade && row.Step == step {
			return row.AnnualSalary, nil
		}
	}
	return decimal.Decimal{}, engine.ErrSalaryNotFound
}

// =============================================================================
// VACANCY STORE
// =============================================================================

func (m *Memory) ActiveVacancy(_ context.Context, grade int, cycle engine.Cycle) (*engine.VacancyConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.vacancies[vacancyKey{Grade: grade, Cycle: cycle}]
	if !ok || !v.Active {
		return nil, engine.ErrVacancyNotFound
	}
	return &v, nil
}

func (m *Memory) ListActiveVacancies(_ context.Context, cycle engine.Cycle) ([]engine.VacancyConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.VacancyConfig
	for _, v := range m.vacancies {
		if v.Active && v.Cycle == cycle {
			result = append(result, v)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Grade < result[j].Grade })
	return result, nil
}

// =============================================================================
// RECOMMENDATION STORE
// =============================================================================

func (m *Memory) GetRecommendation(_ context.Context, id engine.RecommendationID) (*engine.Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.recommendations[id]
	if !ok {
		return nil, engine.ErrRecommendationNotFound
	}
	return &rec, nil
}

func (m *Memory) FindRecommendation(_ context.Context, id engine.EmployeeID, cycle engine.Cycle) (*engine.Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.recommendations {
		if rec.EmployeeID == id && rec.Cycle == cycle {
			r := rec
			return &r, nil
		}
	}
	return nil, engine.ErrRecommendationNotFound
}

func (m *Memory) SaveRecommendation(_ context.Context, rec engine.Recommendation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recommendations[rec.ID] = rec
	return nil
}

func (m *Memory) ListRecommendations(_ context.Context, grade int, cycle engine.Cycle) ([]engine.Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.Recommendation
	for _, rec := range m.recommendations {
		if rec.Grade == grade && rec.Cycle == cycle {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RankInGrade < result[j].RankInGrade })
	return result, nil
}

// =============================================================================
// STEP LOG STORE - append-only
// =============================================================================

func (m *Memory) AppendIncrement(_ context.Context, entry engine.StepIncrement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.increments = append(m.increments, entry)
	return nil
}

func (m *Memory) IncrementHistory(_ context.Context, id engine.EmployeeID) ([]engine.StepIncrement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.StepIncrement
	for _, e := range m.increments {
		if e.EmployeeID == id {
			result = append(result, e)
		}
	}
	// Newest first; append order breaks date ties.
	sort.SliceStable(result, func(i, j int) bool { return result[i].Date.After(result[j].Date) })
	return result, nil
}

func (m *Memory) LastIncrement(_ context.Context, id engine.EmployeeID, typ engine.IncrementType) (*engine.StepIncrement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var last *engine.StepIncrement
	for i := range m.increments {
		e := m.increments[i]
		if e.EmployeeID != id || e.Type != typ {
			continue
		}
		if last == nil || e.Date.After(last.Date) {
			last = &e
		}
	}
	return last, nil
}

// =============================================================================
// TRANSACTIONS - snapshot/restore rollback
// =============================================================================

// WithTx serializes the block and restores a snapshot of all mutable
// state when fn fails, giving tests real all-or-nothing semantics.
func (m *Memory) WithTx(_ context.Context, fn func(engine.Stores) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	employees       map[engine.EmployeeID]engine.Employee
	recommendations map[engine.RecommendationID]engine.Recommendation
	increments      []engine.StepIncrement
}

func (m *Memory) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := memorySnapshot{
		employees:       make(map[engine.EmployeeID]engine.Employee, len(m.employees)),
		recommendations: make(map[engine.RecommendationID]engine.Recommendation, len(m.recommendations)),
		increments:      make([]engine.StepIncrement, len(m.increments)),
	}
	for k, v := range m.employees {
		snap.employees[k] = v
	}
	for k, v := range m.recommendations {
		snap.recommendations[k] = v
	}
	copy(snap.increments, m.increments)
	return snap
}

func (m *Memory) restore(snap memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees = snap.employees
	m.recommendations = snap.recommendations
	m.increments = snap.increments
}

// Compile-time check that Memory satisfies the transactional store.
var _ engine.TxStores = (*Memory)(nil)
