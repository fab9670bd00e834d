/*
seed.go - Demo data loader for testing and demonstrations

PURPOSE:
  Populates the database with a realistic civil-service dataset:
  the CONRAISS salary table, a sample population across grades 6-8,
  performance evaluations, a promotional exam with submissions, and
  vacancy configurations for the current cycle.

HOW THE SEED WORKS:
 1. Generate the full salary table (grades 2-15, every step)
 2. Create employees with appointment/promotion dates spread out so the
    eligibility rules produce a mix of verdicts
 3. Record one completed evaluation and one exam submission per employee
 4. Configure promotion/recognition/reward slots for the current year

Upserts throughout: reloading the seed is harmless.

NOTE:
  Only use in development/demo environments.

SEE ALSO:
  - handlers.go: SeedDemo handler
*/
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nbti/promotion-engine/conraiss"
	"github.com/nbti/promotion-engine/engine"
	"github.com/nbti/promotion-engine/exams"
	"github.com/nbti/promotion-engine/pms"
	"github.com/nbti/promotion-engine/store/sqlite"
)

// SeedDemoData loads the demo dataset into the store.
func SeedDemoData(ctx context.Context, store *sqlite.Store) error {
	if err := seedSalaryScale(ctx, store); err != nil {
		return fmt.Errorf("seeding salary scale: %w", err)
	}
	if err := seedEmployees(ctx, store); err != nil {
		return fmt.Errorf("seeding employees: %w", err)
	}
	if err := seedSignals(ctx, store); err != nil {
		return fmt.Errorf("seeding evaluations and exams: %w", err)
	}
	if err := seedVacancies(ctx, store); err != nil {
		return fmt.Errorf("seeding vacancies: %w", err)
	}
	return nil
}

// seedSalaryScale generates every (grade, step) rung. Each grade starts
// above the previous grade's base; steps add 3% of the base each.
func seedSalaryScale(ctx context.Context, store *sqlite.Store) error {
	effective := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	stepRate := decimal.NewFromFloat(0.03)

	for grade := conraiss.MinGrade; grade <= conraiss.MaxGrade; grade++ {
		base := decimal.NewFromInt(int64(250000 + 85000*(grade-conraiss.MinGrade)))
		for step := 1; step <= conraiss.MaxStep(grade); step++ {
			salary := base.Add(base.Mul(stepRate).Mul(decimal.NewFromInt(int64(step - 1)))).Round(2)
			err := store.SaveSalaryRow(ctx, engine.SalaryRow{
				Grade:         grade,
				Step:          step,
				AnnualSalary:  salary,
				EffectiveDate: effective,
				Active:        true,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

type seedEmployee struct {
	id        string
	name      string
	file      string
	grade     int
	step      int
	appointed string // first appointment, YYYY-MM-DD
	promoted  string // last promotion, empty if never
	born      string
	failed    int
	exam      float64
	rating    int // supervisor rating, 1-5
}

var demoEmployees = []seedEmployee{
	{"emp-001", "Amina Bello", "NBTI/001", 6, 8, "2012-03-01", "2019-06-01", "1984-02-11", 0, 88, 5},
	{"emp-002", "Chinedu Okafor", "NBTI/014", 6, 7, "2013-09-15", "2020-01-10", "1986-07-30", 0, 92, 4},
	{"emp-003", "Fatima Sule", "NBTI/022", 6, 5, "2015-01-05", "2021-04-01", "1989-12-02", 0, 75, 4},
	{"emp-004", "Emeka Nwosu", "NBTI/031", 6, 4, "2016-06-20", "2022-02-15", "1990-05-18", 1, 81, 3},
	{"emp-005", "Hauwa Abdullahi", "NBTI/035", 6, 3, "2018-02-12", "", "1992-09-25", 0, 68, 4},
	{"emp-006", "Tunde Adeyemi", "NBTI/040", 6, 2, "2023-08-01", "", "1995-03-14", 0, 79, 3},
	{"emp-007", "Ngozi Eze", "NBTI/044", 7, 9, "2008-05-10", "2017-11-01", "1980-10-09", 0, 85, 5},
	{"emp-008", "Ibrahim Musa", "NBTI/047", 7, 6, "2011-10-03", "2020-07-01", "1983-01-22", 0, 77, 4},
	{"emp-009", "Yetunde Balogun", "NBTI/052", 7, 4, "2014-04-18", "2021-09-15", "1987-06-05", 0, 90, 4},
	{"emp-010", "Suleiman Garba", "NBTI/058", 8, 5, "2010-01-25", "2019-12-01", "1981-08-17", 0, 82, 5},
	{"emp-011", "Adaeze Obi", "NBTI/061", 8, 3, "2016-11-07", "2022-05-20", "1991-04-28", 0, 71, 3},
	{"emp-012", "Garba Shehu", "", 8, 2, "2019-07-14", "", "1993-11-03", 0, 64, 3},
}

func seedEmployees(ctx context.Context, store *sqlite.Store) error {
	for _, e := range demoEmployees {
		emp := engine.Employee{
			ID:                      engine.EmployeeID(e.id),
			Name:                    e.name,
			FileNumber:              e.file,
			Grade:                   e.grade,
			Step:                    e.step,
			DateOfFirstAppointment:  seedDate(e.appointed),
			DateOfLastPromotion:     seedDate(e.promoted),
			DateOfBirth:             seedDate(e.born),
			FailedPromotionAttempts: e.failed,
			Active:                  true,
		}
		// Confirmation typically follows appointment by two years.
		if emp.DateOfFirstAppointment != nil {
			confirmed := emp.DateOfFirstAppointment.AddDate(2, 0, 0)
			emp.ConfirmationDate = &confirmed
		}
		if err := store.SaveEmployee(ctx, emp); err != nil {
			return err
		}
	}
	return nil
}

// seedSignals records one completed evaluation and one promotional exam
// submission per employee.
func seedSignals(ctx context.Context, store *sqlite.Store) error {
	year := time.Now().Year()
	exam := exams.Exam{
		ID:          fmt.Sprintf("promo-%d", year),
		Title:       fmt.Sprintf("%d Promotional Examination", year),
		Promotional: true,
		TotalPoints: 100,
	}
	if err := store.SaveExam(ctx, exam); err != nil {
		return err
	}

	submittedAt := time.Date(year, 3, 15, 10, 0, 0, 0, time.UTC)
	for _, e := range demoEmployees {
		sub := exams.Submission{
			ID:           "sub-" + e.id,
			ExamID:       exam.ID,
			CandidateID:  engine.EmployeeID(e.id),
			EarnedPoints: e.exam,
			TotalPoints:  exam.TotalPoints,
		}
		sub.Complete(submittedAt)
		if err := store.SaveSubmission(ctx, sub); err != nil {
			return err
		}

		eval := pms.Evaluation{
			ID:      "eval-" + e.id,
			StaffID: engine.EmployeeID(e.id),
			Quarter: "Q4",
			Year:    year - 1,
			Status:  pms.StatusCompleted,
			Goals: []pms.Goal{
				{ID: "goal-" + e.id + "-1", Description: "Service delivery", Weight: 2, Agreed: true, Rating: e.rating},
				{ID: "goal-" + e.id + "-2", Description: "Capacity building", Weight: 1, Agreed: true, Rating: e.rating},
			},
			CreatedAt: submittedAt,
		}
		if err := store.SaveEvaluation(ctx, eval); err != nil {
			return err
		}
	}
	return nil
}

func seedVacancies(ctx context.Context, store *sqlite.Store) error {
	cycle := engine.Cycle(fmt.Sprintf("%d", time.Now().Year()))
	configs := []engine.VacancyConfig{
		{Grade: 6, Cycle: cycle, PromotionSlots: 2, RecognitionSlots: 1, RewardSlots: 1, Active: true},
		{Grade: 7, Cycle: cycle, PromotionSlots: 1, RecognitionSlots: 1, RewardSlots: 1, Active: true},
		{Grade: 8, Cycle: cycle, PromotionSlots: 1, RecognitionSlots: 0, RewardSlots: 1, Active: true},
	}
	for _, v := range configs {
		if err := store.SaveVacancy(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

func seedDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
