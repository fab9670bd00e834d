package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbti/promotion-engine/engine"
	"github.com/nbti/promotion-engine/exams"
	"github.com/nbti/promotion-engine/pms"
	"github.com/nbti/promotion-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func saveEmployee(t *testing.T, store *sqlite.Store, emp engine.Employee) {
	t.Helper()
	require.NoError(t, store.SaveEmployee(context.Background(), emp))
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestEmployeeRoundtrip(t *testing.T) {
	// GIVEN: An employee with every optional field set
	// WHEN: Saving and reloading
	// THEN: All fields survive the roundtrip

	ctx := context.Background()
	store := newTestStore(t)

	emp := engine.Employee{
		ID:                     "emp-1",
		Name:                   "Amina Bello",
		FileNumber:             "NBTI/742",
		Grade:                  7,
		Step:                   4,
		DateOfFirstAppointment: datePtr(2015, 3, 2),
		ConfirmationDate:       datePtr(2017, 3, 2),
		DateOfLastPromotion:    datePtr(2022, 1, 10),
		DateOfBirth:            datePtr(1986, 7, 19),
		Active:                 true,
	}
	saveEmployee(t, store, emp)

	got, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, emp.Name, got.Name)
	assert.Equal(t, emp.FileNumber, got.FileNumber)
	assert.Equal(t, 7, got.Grade)
	assert.Equal(t, 4, got.Step)
	require.NotNil(t, got.ConfirmationDate)
	assert.True(t, got.ConfirmationDate.Equal(*emp.ConfirmationDate))
	require.NotNil(t, got.DateOfLastPromotion)
	assert.True(t, got.DateOfLastPromotion.Equal(*emp.DateOfLastPromotion))
	assert.True(t, got.Active)
}

func TestGetEmployee_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetEmployee(context.Background(), "ghost")
	assert.ErrorIs(t, err, engine.ErrEmployeeNotFound)
}

func TestListActiveByGrade(t *testing.T) {
	// GIVEN: Employees across grades, one inactive
	// WHEN: Listing grade 6
	// THEN: Only active grade 6 employees, ordered by id

	ctx := context.Background()
	store := newTestStore(t)
	saveEmployee(t, store, engine.Employee{ID: "emp-b", Name: "B", Grade: 6, Step: 1, Active: true})
	saveEmployee(t, store, engine.Employee{ID: "emp-a", Name: "A", Grade: 6, Step: 1, Active: true})
	saveEmployee(t, store, engine.Employee{ID: "emp-c", Name: "C", Grade: 7, Step: 1, Active: true})
	saveEmployee(t, store, engine.Employee{ID: "emp-d", Name: "D", Grade: 6, Step: 1, Active: false})

	got, err := store.ListActiveByGrade(ctx, 6)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, engine.EmployeeID("emp-a"), got[0].ID)
	assert.Equal(t, engine.EmployeeID("emp-b"), got[1].ID)
}

func TestUpdateEmployee_CompareAndSet(t *testing.T) {
	// GIVEN: A stored employee at version 0
	// WHEN: Updating with the right and then a stale version
	// THEN: The first update lands and bumps the version; the stale one
	// fails with a conflict

	ctx := context.Background()
	store := newTestStore(t)
	saveEmployee(t, store, engine.Employee{ID: "emp-1", Name: "A", Grade: 6, Step: 3, Active: true})

	emp, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)

	emp.Step = 4
	require.NoError(t, store.UpdateEmployee(ctx, *emp))

	got, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Step)
	assert.Equal(t, emp.Version+1, got.Version)

	// emp still carries the old version.
	emp.Step = 5
	err = store.UpdateEmployee(ctx, *emp)
	assert.ErrorIs(t, err, engine.ErrConcurrentModification)

	err = store.UpdateEmployee(ctx, engine.Employee{ID: "ghost"})
	assert.ErrorIs(t, err, engine.ErrEmployeeNotFound)
}

// =============================================================================
// SALARY SCALE
// =============================================================================

func TestSalaryScale(t *testing.T) {
	// GIVEN: Active salary rows for grade 7
	// WHEN: Looking up positions
	// THEN: Amounts match; a missing position is not found

	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveSalaryRow(ctx, engine.SalaryRow{
		Grade: 7, Step: 1, AnnualSalary: decimal.NewFromInt(480000),
		EffectiveDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Active: true,
	}))
	require.NoError(t, store.SaveSalaryRow(ctx, engine.SalaryRow{
		Grade: 7, Step: 2, AnnualSalary: decimal.NewFromInt(510000),
		EffectiveDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Active: true,
	}))

	got, err := store.ActiveSalary(ctx, 7, 2)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(510000)), "got %s", got)

	_, err = store.ActiveSalary(ctx, 7, 9)
	assert.ErrorIs(t, err, engine.ErrSalaryNotFound)

	rows, err := store.ListSalaryRows(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

// =============================================================================
// VACANCIES
// =============================================================================

func TestVacancyUpsertByGradeAndCycle(t *testing.T) {
	// GIVEN: A vacancy saved twice for the same grade and cycle
	// WHEN: Reading it back
	// THEN: One row with the latest slot counts

	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveVacancy(ctx, engine.VacancyConfig{
		Grade: 6, Cycle: "2026", PromotionSlots: 2, Active: true,
	}))
	require.NoError(t, store.SaveVacancy(ctx, engine.VacancyConfig{
		Grade: 6, Cycle: "2026", PromotionSlots: 3, RecognitionSlots: 1, Active: true,
	}))

	v, err := store.ActiveVacancy(ctx, 6, "2026")
	require.NoError(t, err)
	assert.Equal(t, 3, v.PromotionSlots)
	assert.Equal(t, 1, v.RecognitionSlots)

	all, err := store.ListActiveVacancies(ctx, "2026")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = store.ActiveVacancy(ctx, 9, "2026")
	assert.ErrorIs(t, err, engine.ErrVacancyNotFound)
}

// =============================================================================
// RECOMMENDATIONS
// =============================================================================

func TestRecommendationUpsertAndLookup(t *testing.T) {
	// GIVEN: A saved recommendation
	// WHEN: Re-saving under the same id and looking it up both ways
	// THEN: One row, reflecting the latest save

	ctx := context.Background()
	store := newTestStore(t)
	saveEmployee(t, store, engine.Employee{ID: "emp-1", Name: "A", Grade: 6, Step: 3, Active: true})

	rec := engine.Recommendation{
		ID:              "rec-1",
		EmployeeID:      "emp-1",
		Cycle:           "2026",
		Grade:           6,
		CombinedScore:   81.5,
		RankInGrade:     1,
		TotalInGrade:    4,
		Promoted:        true,
		PromotedToGrade: 7,
		Status:          engine.StatusPending,
	}
	require.NoError(t, store.SaveRecommendation(ctx, rec))

	rec.Status = engine.StatusApproved
	rec.ApprovedBy = "director"
	now := time.Now().UTC()
	rec.ApprovalTime = &now
	require.NoError(t, store.SaveRecommendation(ctx, rec))

	got, err := store.GetRecommendation(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusApproved, got.Status)
	assert.Equal(t, "director", got.ApprovedBy)
	require.NotNil(t, got.ApprovalTime)

	found, err := store.FindRecommendation(ctx, "emp-1", "2026")
	require.NoError(t, err)
	assert.Equal(t, engine.RecommendationID("rec-1"), found.ID)

	_, err = store.FindRecommendation(ctx, "emp-1", "2027")
	assert.ErrorIs(t, err, engine.ErrRecommendationNotFound)

	rows, err := store.ListRecommendations(ctx, 6, "2026")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

// =============================================================================
// STEP LEDGER
// =============================================================================

func TestStepLedger(t *testing.T) {
	// GIVEN: Annual and Promotion entries over two years
	// WHEN: Reading history and the last entry per type
	// THEN: Newest first; LastIncrement filters by type; no entries
	// yields nil without an error

	ctx := context.Background()
	store := newTestStore(t)
	saveEmployee(t, store, engine.Employee{ID: "emp-1", Name: "A", Grade: 6, Step: 5, Active: true})

	entries := []engine.StepIncrement{
		{ID: "inc-1", EmployeeID: "emp-1", PreviousStep: 3, NewStep: 4,
			Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), Type: engine.IncrementAnnual},
		{ID: "inc-2", EmployeeID: "emp-1", PreviousStep: 4, NewStep: 5,
			Date: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), Type: engine.IncrementAnnual},
		{ID: "inc-3", EmployeeID: "emp-1", PreviousStep: 5, NewStep: 2,
			Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Type: engine.IncrementPromotion},
	}
	for _, e := range entries {
		require.NoError(t, store.AppendIncrement(ctx, e))
	}

	history, err := store.IncrementHistory(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "inc-3", history[0].ID)
	assert.Equal(t, "inc-1", history[2].ID)

	last, err := store.LastIncrement(ctx, "emp-1", engine.IncrementAnnual)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "inc-2", last.ID)
	assert.Equal(t, 2025, last.Date.Year())

	none, err := store.LastIncrement(ctx, "emp-2", engine.IncrementAnnual)
	require.NoError(t, err)
	assert.Nil(t, none)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_CommitsAtomically(t *testing.T) {
	// GIVEN: A transaction updating an employee and appending a ledger entry
	// WHEN: The block succeeds
	// THEN: Both writes are visible

	ctx := context.Background()
	store := newTestStore(t)
	saveEmployee(t, store, engine.Employee{ID: "emp-1", Name: "A", Grade: 6, Step: 3, Active: true})

	err := store.WithTx(ctx, func(st engine.Stores) error {
		emp, err := st.GetEmployee(ctx, "emp-1")
		if err != nil {
			return err
		}
		emp.Step = 4
		if err := st.UpdateEmployee(ctx, *emp); err != nil {
			return err
		}
		return st.AppendIncrement(ctx, engine.StepIncrement{
			ID: "inc-1", EmployeeID: "emp-1", PreviousStep: 3, NewStep: 4,
			Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), Type: engine.IncrementAnnual,
		})
	})
	require.NoError(t, err)

	emp, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 4, emp.Step)
	history, err := store.IncrementHistory(ctx, "emp-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that writes and then fails
	// WHEN: The block returns an error
	// THEN: Nothing persists

	ctx := context.Background()
	store := newTestStore(t)
	saveEmployee(t, store, engine.Employee{ID: "emp-1", Name: "A", Grade: 6, Step: 3, Active: true})

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(st engine.Stores) error {
		emp, err := st.GetEmployee(ctx, "emp-1")
		if err != nil {
			return err
		}
		emp.Step = 9
		if err := st.UpdateEmployee(ctx, *emp); err != nil {
			return err
		}
		if err := st.AppendIncrement(ctx, engine.StepIncrement{
			ID: "inc-x", EmployeeID: "emp-1", PreviousStep: 3, NewStep: 9,
			Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), Type: engine.IncrementAnnual,
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	emp, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 3, emp.Step)
	assert.Equal(t, 0, emp.Version)
	history, err := store.IncrementHistory(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

// =============================================================================
// SIGNAL SOURCES
// =============================================================================

func TestLatestPerformanceScore(t *testing.T) {
	// GIVEN: Two evaluations across two years
	// WHEN: Querying with and without a year filter
	// THEN: Year pins the match; year 0 returns the newest

	ctx := context.Background()
	store := newTestStore(t)
	saveEmployee(t, store, engine.Employee{ID: "emp-1", Name: "A", Grade: 6, Step: 3, Active: true})

	require.NoError(t, store.SaveEvaluation(ctx, pms.Evaluation{
		ID: "eval-24", StaffID: "emp-1", Quarter: "Q4", Year: 2024,
		Status:    pms.StatusCompleted,
		Goals:     []pms.Goal{{ID: "g1", Weight: 1, Agreed: true, Rating: 4}}, // 80%
		CreatedAt: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.SaveEvaluation(ctx, pms.Evaluation{
		ID: "eval-25", StaffID: "emp-1", Quarter: "Q4", Year: 2025,
		Status:    pms.StatusCompleted,
		Goals:     []pms.Goal{{ID: "g2", Weight: 1, Agreed: true, Rating: 5}}, // 100%
		CreatedAt: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
	}))

	score, ok, err := store.LatestPerformanceScore(ctx, "emp-1", 2024)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 80, score, 0.01)

	score, ok, err = store.LatestPerformanceScore(ctx, "emp-1", 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 100, score, 0.01)

	_, ok, err = store.LatestPerformanceScore(ctx, "emp-2", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLatestExamScore(t *testing.T) {
	// GIVEN: A promotional and a non-promotional exam with completed
	// submissions
	// WHEN: Querying unpinned and pinned
	// THEN: Unpinned only sees promotional exams; pinning overrides

	ctx := context.Background()
	store := newTestStore(t)
	saveEmployee(t, store, engine.Employee{ID: "emp-1", Name: "A", Grade: 6, Step: 3, Active: true})

	require.NoError(t, store.SaveExam(ctx, exams.Exam{ID: "promo", Title: "Promotion Exam", Promotional: true, TotalPoints: 100}))
	require.NoError(t, store.SaveExam(ctx, exams.Exam{ID: "cert", Title: "Certification", Promotional: false, TotalPoints: 100}))

	promoSub := exams.Submission{ID: "s1", ExamID: "promo", CandidateID: "emp-1", EarnedPoints: 85, TotalPoints: 100}
	promoSub.Complete(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.SaveSubmission(ctx, promoSub))

	certSub := exams.Submission{ID: "s2", ExamID: "cert", CandidateID: "emp-1", EarnedPoints: 99, TotalPoints: 100}
	certSub.Complete(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.SaveSubmission(ctx, certSub))

	score, ok, err := store.LatestExamScore(ctx, "emp-1", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 85, score, 0.01)

	score, ok, err = store.LatestExamScore(ctx, "emp-1", "cert")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 99, score, 0.01)

	_, ok, err = store.LatestExamScore(ctx, "emp-2", "")
	require.NoError(t, err)
	assert.False(t, ok)
}
