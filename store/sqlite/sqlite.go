/*
Package sqlite provides a SQLite-backed implementation of the engine's
storage interfaces.

PURPOSE:
  Implements engine.TxStores plus the engine's performance and exam
  signal sources using SQLite. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  engine.EmployeeStore        personnel reads + compare-and-set updates
  engine.SalaryStore          active salary lookups
  engine.VacancyStore         slot configuration lookups
  engine.RecommendationStore  (employee, cycle)-keyed upserts
  engine.StepLogStore         append-only step ledger
  engine.TxStores             atomic multi-table writes
  engine.PerformanceSource    latest PMS evaluation percentage
  engine.ExamSource           latest completed promotional submission

APPEND-ONLY ENFORCEMENT:
  step_increment_log has no UPDATE or DELETE path in this package.

OPTIMISTIC LOCKING:
  employees carries a version column; UpdateEmployee compares and bumps
  it in one statement, so two racing mutations of the same employee
  cannot interleave.

KEY CONSTRAINTS:
  salary_scale          UNIQUE(grade, step, effective_date)
  rrr_vacancies         UNIQUE(grade, cycle)
  rrr_recommendations   UNIQUE(employee_id, cycle)

WAL MODE:
  SQLite is opened with WAL for better concurrency: multiple readers
  don't block and crash recovery is cleaner.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: interface definitions
  - engine/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/nbti/promotion-engine/engine"
	"github.com/nbti/promotion-engine/exams"
	"github.com/nbti/promotion-engine/pms"
)

const dateLayout = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// dbtx abstracts *sql.DB and *sql.Tx so every query helper can run
// either standalone or inside WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		file_number TEXT,
		grade INTEGER DEFAULT 0,
		step INTEGER DEFAULT 0,
		date_of_first_appointment TEXT,
		confirmation_date TEXT,
		date_of_last_promotion TEXT,
		date_of_birth TEXT,
		failed_promotion_attempts INTEGER DEFAULT 0,
		last_rrr_date TEXT,
		last_rrr_type TEXT,
		active BOOLEAN DEFAULT TRUE,
		version INTEGER DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_grade
		ON employees(grade) WHERE active;

	CREATE TABLE IF NOT EXISTS salary_scale (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		grade INTEGER NOT NULL,
		step INTEGER NOT NULL,
		annual_salary TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		active BOOLEAN DEFAULT TRUE,
		created_at TEXT NOT NULL,
		UNIQUE(grade, step, effective_date)
	);

	-- Active-row lookup is the hot path of step allocation
	CREATE INDEX IF NOT EXISTS idx_salary_grade_step
		ON salary_scale(grade, step) WHERE active;

	CREATE TABLE IF NOT EXISTS rrr_vacancies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		grade INTEGER NOT NULL,
		cycle TEXT NOT NULL,
		promotion_slots INTEGER DEFAULT 0,
		recognition_slots INTEGER DEFAULT 0,
		reward_slots INTEGER DEFAULT 0,
		active BOOLEAN DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(grade, cycle)
	);

	CREATE TABLE IF NOT EXISTS rrr_recommendations (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		cycle TEXT NOT NULL,
		grade INTEGER NOT NULL,
		exam_score REAL DEFAULT 0,
		performance_score REAL DEFAULT 0,
		seniority_score REAL DEFAULT 0,
		combined_score REAL DEFAULT 0,
		rank_in_grade INTEGER DEFAULT 0,
		total_in_grade INTEGER DEFAULT 0,
		promoted BOOLEAN DEFAULT FALSE,
		recognized BOOLEAN DEFAULT FALSE,
		rewarded BOOLEAN DEFAULT FALSE,
		promoted_to_grade INTEGER DEFAULT 0,
		promoted_to_step INTEGER DEFAULT 0,
		promotion_effective_date TEXT,
		status TEXT NOT NULL DEFAULT 'Pending',
		recommended_by TEXT,
		approved_by TEXT,
		approval_time TEXT,
		rejection_reason TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(employee_id, cycle)
	);

	CREATE INDEX IF NOT EXISTS idx_recommendations_grade_cycle
		ON rrr_recommendations(grade, cycle);

	-- Append-only: this package never updates or deletes ledger rows
	CREATE TABLE IF NOT EXISTS step_increment_log (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		previous_step INTEGER NOT NULL,
		new_step INTEGER NOT NULL,
		increment_date TEXT NOT NULL,
		increment_type TEXT NOT NULL,
		processed_by TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_step_log_employee
		ON step_increment_log(employee_id, increment_date DESC);

	CREATE TABLE IF NOT EXISTS pms_evaluations (
		id TEXT PRIMARY KEY,
		staff_id TEXT NOT NULL,
		supervisor_id TEXT,
		quarter TEXT,
		year INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'Pending',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pms_staff_year
		ON pms_evaluations(staff_id, year, created_at DESC);

	CREATE TABLE IF NOT EXISTS pms_goals (
		id TEXT PRIMARY KEY,
		evaluation_id TEXT NOT NULL REFERENCES pms_evaluations(id),
		description TEXT,
		kra_category TEXT,
		weight REAL DEFAULT 1.0,
		agreed BOOLEAN DEFAULT FALSE,
		self_rating INTEGER DEFAULT 0,
		rating INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_pms_goals_evaluation
		ON pms_goals(evaluation_id);

	CREATE TABLE IF NOT EXISTS emm_exams (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		promotional BOOLEAN DEFAULT FALSE,
		total_points REAL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS emm_submissions (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL REFERENCES emm_exams(id),
		candidate_id TEXT NOT NULL,
		earned_points REAL DEFAULT 0,
		total_points REAL DEFAULT 0,
		percentage REAL DEFAULT 0,
		status TEXT NOT NULL,
		submitted_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_candidate
		ON emm_submissions(candidate_id, submitted_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEE STORE (engine.EmployeeStore interface)
// =============================================================================

const employeeColumns = `id, name, file_number, grade, step,
	date_of_first_appointment, confirmation_date, date_of_last_promotion,
	date_of_birth, failed_promotion_attempts, last_rrr_date, last_rrr_type,
	active, version`

func (s *Store) GetEmployee(ctx context.Context, id engine.EmployeeID) (*engine.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEmployee(ctx, s.db, id)
}

func getEmployee(ctx context.Context, db dbtx, id engine.EmployeeID) (*engine.Employee, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
	emp, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}
	return emp, nil
}

func (s *Store) ListActiveEmployees(ctx context.Context) ([]engine.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEmployees(ctx, s.db,
		`SELECT `+employeeColumns+` FROM employees WHERE active ORDER BY id`)
}

func (s *Store) ListActiveByGrade(ctx context.Context, grade int) ([]engine.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEmployees(ctx, s.db,
		`SELECT `+employeeColumns+` FROM employees WHERE active AND grade = ? ORDER BY id`, grade)
}

func (s *Store) UpdateEmployee(ctx context.Context, emp engine.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateEmployee(ctx, s.db, emp)
}

// updateEmployee compares and bumps the version in one statement.
func updateEmployee(ctx context.Context, db dbtx, emp engine.Employee) error {
	res, err := db.ExecContext(ctx, `
		UPDATE employees SET
			name = ?, file_number = ?, grade = ?, step = ?,
			date_of_first_appointment = ?, confirmation_date = ?,
			date_of_last_promotion = ?, date_of_birth = ?,
			failed_promotion_attempts = ?, last_rrr_date = ?, last_rrr_type = ?,
			active = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		emp.Name, nullString(emp.FileNumber), emp.Grade, emp.Step,
		nullDate(emp.DateOfFirstAppointment), nullDate(emp.ConfirmationDate),
		nullDate(emp.DateOfLastPromotion), nullDate(emp.DateOfBirth),
		emp.FailedPromotionAttempts, nullDate(emp.LastRRRDate), nullString(emp.LastRRRType),
		emp.Active, nowRFC3339(),
		emp.ID, emp.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update employee: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the row is gone or someone else won the race.
		if _, err := getEmployee(ctx, db, emp.ID); err != nil {
			return err
		}
		return engine.ErrConcurrentModification
	}
	return nil
}

// SaveEmployee inserts or replaces a personnel record. Admin path; the
// engine itself only mutates through UpdateEmployee.
func (s *Store) SaveEmployee(ctx context.Context, emp engine.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowRFC3339()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (`+employeeColumns+`, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, file_number = excluded.file_number,
			grade = excluded.grade, step = excluded.step,
			date_of_first_appointment = excluded.date_of_first_appointment,
			confirmation_date = excluded.confirmation_date,
			date_of_last_promotion = excluded.date_of_last_promotion,
			date_of_birth = excluded.date_of_birth,
			failed_promotion_attempts = excluded.failed_promotion_attempts,
			last_rrr_date = excluded.last_rrr_date,
			last_rrr_type = excluded.last_rrr_type,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		emp.ID, emp.Name, nullString(emp.FileNumber), emp.Grade, emp.Step,
		nullDate(emp.DateOfFirstAppointment), nullDate(emp.ConfirmationDate),
		nullDate(emp.DateOfLastPromotion), nullDate(emp.DateOfBirth),
		emp.FailedPromotionAttempts, nullDate(emp.LastRRRDate), nullString(emp.LastRRRType),
		emp.Active, emp.Version, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// ListEmployees returns every personnel record, active or not.
func (s *Store) ListEmployees(ctx context.Context) ([]engine.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEmployees(ctx, s.db,
		`SELECT `+employeeColumns+` FROM employees ORDER BY id`)
}

func queryEmployees(ctx context.Context, db dbtx, query string, args ...any) ([]engine.Employee, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []engine.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *emp)
	}
	return result, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEmployee(row scannable) (*engine.Employee, error) {
	var (
		emp                                           engine.Employee
		fileNumber, lastRRRType                       sql.NullString
		firstAppt, confirmed, lastPromo, dob, lastRRR sql.NullString
	)
	err := row.Scan(&emp.ID, &emp.Name, &fileNumber, &emp.Grade, &emp.Step,
		&firstAppt, &confirmed, &lastPromo, &dob,
		&emp.FailedPromotionAttempts, &lastRRR, &lastRRRType,
		&emp.Active, &emp.Version)
	if err != nil {
		return nil, err
	}
	emp.FileNumber = fileNumber.String
	emp.LastRRRType = lastRRRType.String
	emp.DateOfFirstAppointment = parseDate(firstAppt)
	emp.ConfirmationDate = parseDate(confirmed)
	emp.DateOfLastPromotion = parseDate(lastPromo)
	emp.DateOfBirth = parseDate(dob)
	emp.LastRRRDate = parseDate(lastRRR)
	return &emp, nil
}

// =============================================================================
// SALARY STORE (engine.SalaryStore interface)
// =============================================================================

func (s *Store) ActiveSalary(ctx context.Context, grade, step int) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeSalary(ctx, s.db, grade, step)
}

func activeSalary(ctx context.Context, db dbtx, grade, step int) (decimal.Decimal, error) {
	var salary string
	err := db.QueryRowContext(ctx, `
		SELECT annual_salary FROM salary_scale
		WHERE grade = ? AND step = ? AND active
		ORDER BY effective_date DESC LIMIT 1`,
		grade, step).Scan(&salary)
	if err == sql.ErrNoRows {
		return decimal.Decimal{}, engine.ErrSalaryNotFound
	}
	if err != nil {
		return decimal.Decimal{}, err
	}
	d, err := decimal.NewFromString(salary)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("bad salary value %q: %w", salary, err)
	}
	return d, nil
}

// SaveSalaryRow upserts one rung of the salary table.
func (s *Store) SaveSalaryRow(ctx context.Context, row engine.SalaryRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO salary_scale (grade, step, annual_salary, effective_date, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(grade, step, effective_date) DO UPDATE SET
			annual_salary = excluded.annual_salary,
			active = excluded.active`,
		row.Grade, row.Step, row.AnnualSalary.String(),
		row.EffectiveDate.Format(dateLayout), row.Active, nowRFC3339(),
	)
	if err != nil {
		return fmt.Errorf("failed to save salary row: %w", err)
	}
	return nil
}

// ListSalaryRows returns the table for one grade, or all grades when
// grade is 0.
func (s *Store) ListSalaryRows(ctx context.Context, grade int) ([]engine.SalaryRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT grade, step, annual_salary, effective_date, active
		FROM salary_scale`
	var args []any
	if grade != 0 {
		query += ` WHERE grade = ?`
		args = append(args, grade)
	}
	query += ` ORDER BY grade, step, effective_date`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []engine.SalaryRow
	for rows.Next() {
		var (
			row       engine.SalaryRow
			salary    string
			effective string
		)
		if err := rows.Scan(&row.Grade, &row.Step, &salary, &effective, &row.Active); err != nil {
			return nil, err
		}
		if row.AnnualSalary, err = decimal.NewFromString(salary); err != nil {
			return nil, err
		}
		row.EffectiveDate, _ = time.Parse(dateLayout, effective)
		result = append(result, row)
	}
	return result, rows.Err()
}

// =============================================================================
// VACANCY STORE (engine.VacancyStore interface)
// =============================================================================

func (s *Store) ActiveVacancy(ctx context.Context, grade int, cycle engine.Cycle) (*engine.VacancyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeVacancy(ctx, s.db, grade, cycle)
}

func activeVacancy(ctx context.Context, db dbtx, grade int, cycle engine.Cycle) (*engine.VacancyConfig, error) {
	var v engine.VacancyConfig
	err := db.QueryRowContext(ctx, `
		SELECT grade, cycle, promotion_slots, recognition_slots, reward_slots, active
		FROM rrr_vacancies WHERE grade = ? AND cycle = ? AND active`,
		grade, cycle).
		Scan(&v.Grade, &v.Cycle, &v.PromotionSlots, &v.RecognitionSlots, &v.RewardSlots, &v.Active)
	if err == sql.ErrNoRows {
		return nil, engine.ErrVacancyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) ListActiveVacancies(ctx context.Context, cycle engine.Cycle) ([]engine.VacancyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listActiveVacancies(ctx, s.db, cycle)
}

func listActiveVacancies(ctx context.Context, db dbtx, cycle engine.Cycle) ([]engine.VacancyConfig, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT grade, cycle, promotion_slots, recognition_slots, reward_slots, active
		FROM rrr_vacancies WHERE cycle = ? AND active ORDER BY grade`, cycle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []engine.VacancyConfig
	for rows.Next() {
		var v engine.VacancyConfig
		if err := rows.Scan(&v.Grade, &v.Cycle, &v.PromotionSlots,
			&v.RecognitionSlots, &v.RewardSlots, &v.Active); err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

// SaveVacancy upserts a slot configuration.
func (s *Store) SaveVacancy(ctx context.Context, v engine.VacancyConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowRFC3339()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rrr_vacancies
			(grade, cycle, promotion_slots, recognition_slots, reward_slots, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(grade, cycle) DO UPDATE SET
			promotion_slots = excluded.promotion_slots,
			recognition_slots = excluded.recognition_slots,
			reward_slots = excluded.reward_slots,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		v.Grade, v.Cycle, v.PromotionSlots, v.RecognitionSlots, v.RewardSlots,
		v.Active, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save vacancy: %w", err)
	}
	return nil
}

// =============================================================================
// RECOMMENDATION STORE (engine.RecommendationStore interface)
// =============================================================================

const recommendationColumns = `id, employee_id, cycle, grade,
	exam_score, performance_score, seniority_score, combined_score,
	rank_in_grade, total_in_grade, promoted, recognized, rewarded,
	promoted_to_grade, promoted_to_step, promotion_effective_date,
	status, recommended_by, approved_by, approval_time, rejection_reason`

func (s *Store) GetRecommendation(ctx context.Context, id engine.RecommendationID) (*engine.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRecommendation(ctx, s.db, id)
}

func getRecommendation(ctx context.Context, db dbtx, id engine.RecommendationID) (*engine.Recommendation, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+recommendationColumns+` FROM rrr_recommendations WHERE id = ?`, id)
	return scanRecommendation(row)
}

func (s *Store) FindRecommendation(ctx context.Context, id engine.EmployeeID, cycle engine.Cycle) (*engine.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findRecommendation(ctx, s.db, id, cycle)
}

func findRecommendation(ctx context.Context, db dbtx, id engine.EmployeeID, cycle engine.Cycle) (*engine.Recommendation, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+recommendationColumns+` FROM rrr_recommendations
		 WHERE employee_id = ? AND cycle = ?`, id, cycle)
	return scanRecommendation(row)
}

func scanRecommendation(row scannable) (*engine.Recommendation, error) {
	var (
		rec                                        engine.Recommendation
		effectiveDate, approvalTime                sql.NullString
		recommendedBy, approvedBy, rejectionReason sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.EmployeeID, &rec.Cycle, &rec.Grade,
		&rec.ExamScore, &rec.PerformanceScore, &rec.SeniorityScore, &rec.CombinedScore,
		&rec.RankInGrade, &rec.TotalInGrade, &rec.Promoted, &rec.Recognized, &rec.Rewarded,
		&rec.PromotedToGrade, &rec.PromotedToStep, &effectiveDate,
		&rec.Status, &recommendedBy, &approvedBy, &approvalTime, &rejectionReason)
	if err == sql.ErrNoRows {
		return nil, engine.ErrRecommendationNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.PromotionEffectiveDate = parseDate(effectiveDate)
	rec.RecommendedBy = recommendedBy.String
	rec.ApprovedBy = approvedBy.String
	rec.RejectionReason = rejectionReason.String
	if approvalTime.Valid {
		if t, err := time.Parse(time.RFC3339, approvalTime.String); err == nil {
			rec.ApprovalTime = &t
		}
	}
	return &rec, nil
}

func (s *Store) SaveRecommendation(ctx context.Context, rec engine.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRecommendation(ctx, s.db, rec)
}

func saveRecommendation(ctx context.Context, db dbtx, rec engine.Recommendation) error {
	now := nowRFC3339()
	var approvalTime sql.NullString
	if rec.ApprovalTime != nil {
		approvalTime = sql.NullString{String: rec.ApprovalTime.UTC().Format(time.RFC3339), Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO rrr_recommendations (`+recommendationColumns+`, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			grade = excluded.grade,
			exam_score = excluded.exam_score,
			performance_score = excluded.performance_score,
			seniority_score = excluded.seniority_score,
			combined_score = excluded.combined_score,
			rank_in_grade = excluded.rank_in_grade,
			total_in_grade = excluded.total_in_grade,
			promoted = excluded.promoted,
			recognized = excluded.recognized,
			rewarded = excluded.rewarded,
			promoted_to_grade = excluded.promoted_to_grade,
			promoted_to_step = excluded.promoted_to_step,
			promotion_effective_date = excluded.promotion_effective_date,
			status = excluded.status,
			recommended_by = excluded.recommended_by,
			approved_by = excluded.approved_by,
			approval_time = excluded.approval_time,
			rejection_reason = excluded.rejection_reason,
			updated_at = excluded.updated_at`,
		rec.ID, rec.EmployeeID, rec.Cycle, rec.Grade,
		rec.ExamScore, rec.PerformanceScore, rec.SeniorityScore, rec.CombinedScore,
		rec.RankInGrade, rec.TotalInGrade, rec.Promoted, rec.Recognized, rec.Rewarded,
		rec.PromotedToGrade, rec.PromotedToStep, nullDate(rec.PromotionEffectiveDate),
		rec.Status, nullString(rec.RecommendedBy), nullString(rec.ApprovedBy),
		approvalTime, nullString(rec.RejectionReason),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save recommendation: %w", err)
	}
	return nil
}

func (s *Store) ListRecommendations(ctx context.Context, grade int, cycle engine.Cycle) ([]engine.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRecommendations(ctx, s.db, grade, cycle)
}

func listRecommendations(ctx context.Context, db dbtx, grade int, cycle engine.Cycle) ([]engine.Recommendation, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+recommendationColumns+` FROM rrr_recommendations
		 WHERE grade = ? AND cycle = ? ORDER BY rank_in_grade`, grade, cycle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []engine.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	return result, rows.Err()
}

// =============================================================================
// STEP LOG STORE (engine.StepLogStore interface) - append-only
// =============================================================================

func (s *Store) AppendIncrement(ctx context.Context, entry engine.StepIncrement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendIncrement(ctx, s.db, entry)
}

func appendIncrement(ctx context.Context, db dbtx, entry engine.StepIncrement) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO step_increment_log
			(id, employee_id, previous_step, new_step, increment_date, increment_type, processed_by, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.EmployeeID, entry.PreviousStep, entry.NewStep,
		entry.Date.Format(dateLayout), entry.Type,
		nullString(entry.ProcessedBy), nullString(entry.Notes), nowRFC3339(),
	)
	if err != nil {
		return fmt.Errorf("failed to append increment: %w", err)
	}
	return nil
}

func (s *Store) IncrementHistory(ctx context.Context, id engine.EmployeeID) ([]engine.StepIncrement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return incrementHistory(ctx, s.db, id)
}

func incrementHistory(ctx context.Context, db dbtx, id engine.EmployeeID) ([]engine.StepIncrement, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, employee_id, previous_step, new_step, increment_date, increment_type, processed_by, notes
		FROM step_increment_log
		WHERE employee_id = ?
		ORDER BY increment_date DESC, created_at DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []engine.StepIncrement
	for rows.Next() {
		entry, err := scanIncrement(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *entry)
	}
	return result, rows.Err()
}

func (s *Store) LastIncrement(ctx context.Context, id engine.EmployeeID, typ engine.IncrementType) (*engine.StepIncrement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lastIncrement(ctx, s.db, id, typ)
}

func lastIncrement(ctx context.Context, db dbtx, id engine.EmployeeID, typ engine.IncrementType) (*engine.StepIncrement, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, employee_id, previous_step, new_step, increment_date, increment_type, processed_by, notes
		FROM step_increment_log
		WHERE employee_id = ? AND increment_type = ?
		ORDER BY increment_date DESC, created_at DESC LIMIT 1`, id, typ)
	entry, err := scanIncrement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func scanIncrement(row scannable) (*engine.StepIncrement, error) {
	var (
		entry              engine.StepIncrement
		date               string
		processedBy, notes sql.NullString
	)
	err := row.Scan(&entry.ID, &entry.EmployeeID, &entry.PreviousStep, &entry.NewStep,
		&date, &entry.Type, &processedBy, &notes)
	if err != nil {
		return nil, err
	}
	entry.Date, _ = time.Parse(dateLayout, date)
	entry.ProcessedBy = processedBy.String
	entry.Notes = notes.String
	return &entry, nil
}

// =============================================================================
// TRANSACTIONS (engine.TxStores interface)
// =============================================================================

// WithTx executes fn within a database transaction. The wrapper passed
// to fn reuses the shared query helpers against the open *sql.Tx, so fn
// may freely mix reads and writes without re-entering the store's lock.
func (s *Store) WithTx(ctx context.Context, fn func(engine.Stores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStores{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStores routes every store method through one open transaction.
type txStores struct {
	tx *sql.Tx
}

func (ts *txStores) GetEmployee(ctx context.Context, id engine.EmployeeID) (*engine.Employee, error) {
	return getEmployee(ctx, ts.tx, id)
}

func (ts *txStores) ListActiveEmployees(ctx context.Context) ([]engine.Employee, error) {
	return queryEmployees(ctx, ts.tx,
		`SELECT `+employeeColumns+` FROM employees WHERE active ORDER BY id`)
}

func (ts *txStores) ListActiveByGrade(ctx context.Context, grade int) ([]engine.Employee, error) {
	return queryEmployees(ctx, ts.tx,
		`SELECT `+employeeColumns+` FROM employees WHERE active AND grade = ? ORDER BY id`, grade)
}

func (ts *txStores) UpdateEmployee(ctx context.Context, emp engine.Employee) error {
	return updateEmployee(ctx, ts.tx, emp)
}

func (ts *txStores) ActiveSalary(ctx context.Context, grade, step int) (decimal.Decimal, error) {
	return activeSalary(ctx, ts.tx, grade, step)
}

func (ts *txStores) ActiveVacancy(ctx context.Context, grade int, cycle engine.Cycle) (*engine.VacancyConfig, error) {
	return activeVacancy(ctx, ts.tx, grade, cycle)
}

func (ts *txStores) ListActiveVacancies(ctx context.Context, cycle engine.Cycle) ([]engine.VacancyConfig, error) {
	return listActiveVacancies(ctx, ts.tx, cycle)
}

func (ts *txStores) GetRecommendation(ctx context.Context, id engine.RecommendationID) (*engine.Recommendation, error) {
	return getRecommendation(ctx, ts.tx, id)
}

func (ts *txStores) FindRecommendation(ctx context.Context, id engine.EmployeeID, cycle engine.Cycle) (*engine.Recommendation, error) {
	return findRecommendation(ctx, ts.tx, id, cycle)
}

func (ts *txStores) SaveRecommendation(ctx context.Context, rec engine.Recommendation) error {
	return saveRecommendation(ctx, ts.tx, rec)
}

func (ts *txStores) ListRecommendations(ctx context.Context, grade int, cycle engine.Cycle) ([]engine.Recommendation, error) {
	return listRecommendations(ctx, ts.tx, grade, cycle)
}

func (ts *txStores) AppendIncrement(ctx context.Context, entry engine.StepIncrement) error {
	return appendIncrement(ctx, ts.tx, entry)
}

func (ts *txStores) IncrementHistory(ctx context.Context, id engine.EmployeeID) ([]engine.StepIncrement, error) {
	return incrementHistory(ctx, ts.tx, id)
}

func (ts *txStores) LastIncrement(ctx context.Context, id engine.EmployeeID, typ engine.IncrementType) (*engine.StepIncrement, error) {
	return lastIncrement(ctx, ts.tx, id, typ)
}

// =============================================================================
// PERFORMANCE SOURCE (engine.PerformanceSource interface)
// =============================================================================

// LatestPerformanceScore loads the newest evaluation for (staff, year)
// and returns its weighted goal percentage. year 0 matches any year.
func (s *Store) LatestPerformanceScore(ctx context.Context, id engine.EmployeeID, year int) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, staff_id, year, status
		FROM pms_evaluations WHERE staff_id = ?`
	args := []any{id}
	if year != 0 {
		query += ` AND year = ?`
		args = append(args, year)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	var eval pms.Evaluation
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&eval.ID, &eval.StaffID, &eval.Year, &eval.Status)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, kra_category, weight, agreed, self_rating, rating
		FROM pms_goals WHERE evaluation_id = ?`, eval.ID)
	if err != nil {
		return 0, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			g           pms.Goal
			description sql.NullString
			category    sql.NullString
		)
		if err := rows.Scan(&g.ID, &description, &category,
			&g.Weight, &g.Agreed, &g.SelfRating, &g.Rating); err != nil {
			return 0, false, err
		}
		g.Description = description.String
		g.KRACategory = category.String
		eval.Goals = append(eval.Goals, g)
	}
	if err := rows.Err(); err != nil {
		return 0, false, err
	}
	return eval.Percentage(), true, nil
}

// SaveEvaluation stores an evaluation and its goals atomically.
func (s *Store) SaveEvaluation(ctx context.Context, eval pms.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	createdAt := eval.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO pms_evaluations (id, staff_id, supervisor_id, quarter, year, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status`,
		eval.ID, eval.StaffID, nullString(eval.SupervisorID), nullString(eval.Quarter),
		eval.Year, eval.Status, createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}

	for _, g := range eval.Goals {
		_, err = sqlTx.ExecContext(ctx, `
			INSERT INTO pms_goals (id, evaluation_id, description, kra_category, weight, agreed, self_rating, rating)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				weight = excluded.weight, agreed = excluded.agreed,
				self_rating = excluded.self_rating, rating = excluded.rating`,
			g.ID, eval.ID, g.Description, nullString(g.KRACategory),
			g.Weight, g.Agreed, g.SelfRating, g.Rating,
		)
		if err != nil {
			return fmt.Errorf("failed to save goal: %w", err)
		}
	}
	return sqlTx.Commit()
}

// =============================================================================
// EXAM SOURCE (engine.ExamSource interface)
// =============================================================================

// LatestExamScore returns the percentage of the newest completed
// submission. A non-empty examID pins one exam; otherwise only exams
// flagged promotional qualify.
func (s *Store) LatestExamScore(ctx context.Context, id engine.EmployeeID, examID string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		query string
		args  []any
	)
	if examID != "" {
		query = `SELECT percentage FROM emm_submissions
			WHERE candidate_id = ? AND status = ? AND exam_id = ?
			ORDER BY submitted_at DESC LIMIT 1`
		args = []any{id, exams.StatusCompleted, examID}
	} else {
		query = `SELECT s.percentage FROM emm_submissions s
			JOIN emm_exams e ON e.id = s.exam_id
			WHERE s.candidate_id = ? AND s.status = ? AND e.promotional
			ORDER BY s.submitted_at DESC LIMIT 1`
		args = []any{id, exams.StatusCompleted}
	}

	var pct float64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&pct)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return pct, true, nil
}

// SaveExam stores an exam definition.
func (s *Store) SaveExam(ctx context.Context, e exams.Exam) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO emm_exams (id, title, promotional, total_points)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, promotional = excluded.promotional,
			total_points = excluded.total_points`,
		e.ID, e.Title, e.Promotional, e.TotalPoints,
	)
	if err != nil {
		return fmt.Errorf("failed to save exam: %w", err)
	}
	return nil
}

// SaveSubmission stores an exam submission.
func (s *Store) SaveSubmission(ctx context.Context, sub exams.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var submittedAt sql.NullString
	if !sub.SubmittedAt.IsZero() {
		submittedAt = sql.NullString{String: sub.SubmittedAt.UTC().Format(time.RFC3339), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO emm_submissions
			(id, exam_id, candidate_id, earned_points, total_points, percentage, status, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			earned_points = excluded.earned_points,
			total_points = excluded.total_points,
			percentage = excluded.percentage,
			status = excluded.status,
			submitted_at = excluded.submitted_at`,
		sub.ID, sub.ExamID, sub.CandidateID, sub.EarnedPoints, sub.TotalPoints,
		sub.Percentage, sub.Status, submittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

func parseDate(s sql.NullString) *time.Time {
	if !s.Valid || strings.TrimSpace(s.String) == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// Compile-time interface checks.
var (
	_ engine.TxStores          = (*Store)(nil)
	_ engine.PerformanceSource = (*Store)(nil)
	_ engine.ExamSource        = (*Store)(nil)
)
