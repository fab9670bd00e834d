/*
handlers.go - HTTP API handlers for the promotion engine

PURPOSE:
  Exposes the allocation and eligibility engine via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain
  logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                        List all employees
    POST   /api/employees                        Create/replace employee
    GET    /api/employees/{id}                   Get employee details
    GET    /api/employees/{id}/eligibility       Eligibility verdict
    GET    /api/employees/{id}/step-recommendation  Step for a target grade
    POST   /api/employees/{id}/increment         Manual single increment
    GET    /api/employees/{id}/increments        Step ledger, newest first

  Eligibility:
    GET    /api/eligibility/summary              Batch counts
    GET    /api/eligibility/candidates           Eligible pool

  Allocation:
    POST   /api/allocation/run                   Run a full cycle
    GET    /api/allocation/{cycle}/grades/{grade} Persisted rankings

  Recommendations:
    GET    /api/recommendations/{id}             Get one
    POST   /api/recommendations/{id}/approve     Approve (commits promotion)
    POST   /api/recommendations/{id}/reject      Reject with reason

  Admin:
    GET/POST /api/salary                         Salary table
    GET/POST /api/vacancies                      Slot configurations
    POST   /api/admin/increments/run             Annual increment batch
    POST   /api/admin/seed                       Demo data

ERROR HANDLING:
  Engine errors map onto HTTP status via their category:
  - 400: validation errors, invalid grade/step, missing grade/step
  - 404: unknown employee/recommendation, missing salary/vacancy row
  - 409: terminal recommendation, concurrent modification
  - 500: storage failures

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: request/response data structures
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nbti/promotion-engine/engine"
	"github.com/nbti/promotion-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Evaluator *engine.Evaluator
	Allocator *engine.Allocator
	Steps     *engine.StepService
	Approvals *engine.ApprovalService
	Logger    *zap.Logger
}

// NewHandler wires the engine services around one store.
func NewHandler(store *sqlite.Store, logger *zap.Logger) *Handler {
	scorer := &engine.Scorer{Performance: store, Exams: store}
	return &Handler{
		Store:     store,
		Evaluator: engine.NewEvaluator(store),
		Allocator: &engine.Allocator{Store: store, Scorer: scorer},
		Steps:     engine.NewStepService(store),
		Approvals: engine.NewApprovalService(store),
		Logger:    logger,
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		h.writeError(w, "Failed to list employees", err)
		return
	}
	h.writeJSON(w, http.StatusOK, toEmployeeDTOs(employees))
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))
	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		h.writeError(w, "Failed to get employee", err)
		return
	}
	h.writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// SaveEmployee creates or replaces a personnel record.
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var req SaveEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}

	emp, err := req.toEmployee()
	if err != nil {
		h.writeStatus(w, http.StatusBadRequest, "Invalid employee record", err)
		return
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		h.writeError(w, "Failed to save employee", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// =============================================================================
// ELIGIBILITY HANDLERS
// =============================================================================

// CheckEligibility evaluates one employee. Query params: target_grade,
// cycle (enables the vacancy check when present).
func (h *Handler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))
	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		h.writeError(w, "Failed to get employee", err)
		return
	}

	q := engine.EligibilityQuery{
		TargetGrade: queryInt(r, "target_grade"),
		Cycle:       engine.Cycle(r.URL.Query().Get("cycle")),
	}
	q.CheckVacancy = q.Cycle != ""

	result, err := h.Evaluator.Evaluate(r.Context(), *emp, q)
	if err != nil {
		h.writeError(w, "Eligibility evaluation failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, EligibilityDTO{EmployeeID: string(id), Result: result})
}

// EligibilitySummary evaluates the whole active population.
func (h *Handler) EligibilitySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Evaluator.RefreshAll(r.Context(), h.Store)
	if err != nil {
		h.writeError(w, "Eligibility refresh failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// EligibleCandidates returns the eligible pool. Query params:
// target_grade (restricts to the grade below), cycle.
func (h *Handler) EligibleCandidates(w http.ResponseWriter, r *http.Request) {
	eligible, err := h.Evaluator.EligibleCandidates(r.Context(), h.Store,
		queryInt(r, "target_grade"), engine.Cycle(r.URL.Query().Get("cycle")))
	if err != nil {
		h.writeError(w, "Failed to compute eligible candidates", err)
		return
	}
	h.writeJSON(w, http.StatusOK, toEmployeeDTOs(eligible))
}

// =============================================================================
// ALLOCATION HANDLERS
// =============================================================================

// RunAllocation runs ranking + slot allocation for every configured
// grade of a cycle and materializes the recommendations.
func (h *Handler) RunAllocation(w http.ResponseWriter, r *http.Request) {
	var req RunAllocationRequest
	if !h.decode(w, r, &req) {
		return
	}

	results, err := h.Allocator.RunCycle(r.Context(), engine.Cycle(req.Cycle), req.RecommendedBy)
	if err != nil {
		h.writeError(w, "Allocation run failed", err)
		return
	}

	dtos := make(map[string]GradeAllocationDTO, len(results))
	for grade, alloc := range results {
		dtos[strconv.Itoa(grade)] = toGradeAllocationDTO(alloc)
		h.Logger.Info("allocated grade",
			zap.Int("grade", grade),
			zap.String("cycle", req.Cycle),
			zap.Int("candidates", alloc.TotalCandidates),
			zap.Int("promoted", len(alloc.Promoted)),
			zap.Int("skipped_terminal", alloc.SkippedTerminal))
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// GetRankings returns the persisted recommendations for (grade, cycle)
// ordered by rank.
func (h *Handler) GetRankings(w http.ResponseWriter, r *http.Request) {
	grade, err := strconv.Atoi(chi.URLParam(r, "grade"))
	if err != nil {
		h.writeStatus(w, http.StatusBadRequest, "Invalid grade", err)
		return
	}
	cycle := engine.Cycle(chi.URLParam(r, "cycle"))

	recs, err := h.Allocator.Rankings(r.Context(), grade, cycle)
	if err != nil {
		h.writeError(w, "Failed to load rankings", err)
		return
	}
	h.writeJSON(w, http.StatusOK, toRecommendationDTOs(recs))
}

// =============================================================================
// RECOMMENDATION HANDLERS
// =============================================================================

// GetRecommendation returns a single recommendation.
func (h *Handler) GetRecommendation(w http.ResponseWriter, r *http.Request) {
	id := engine.RecommendationID(chi.URLParam(r, "id"))
	rec, err := h.Store.GetRecommendation(r.Context(), id)
	if err != nil {
		h.writeError(w, "Failed to get recommendation", err)
		return
	}
	h.writeJSON(w, http.StatusOK, toRecommendationDTO(*rec))
}

// ApproveRecommendation transitions Pending -> Approved and commits the
// promotion (grade, step, ledger entry) atomically.
func (h *Handler) ApproveRecommendation(w http.ResponseWriter, r *http.Request) {
	id := engine.RecommendationID(chi.URLParam(r, "id"))
	var req ApproveRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.Approvals.Approve(r.Context(), id, req.ApprovedBy)
	if err != nil {
		h.writeError(w, "Approval failed", err)
		return
	}
	h.Logger.Info("recommendation approved",
		zap.String("recommendation", string(id)),
		zap.String("employee", string(rec.EmployeeID)),
		zap.Int("to_grade", rec.PromotedToGrade),
		zap.Int("to_step", rec.PromotedToStep))
	h.writeJSON(w, http.StatusOK, toRecommendationDTO(*rec))
}

// RejectRecommendation transitions Pending -> Rejected. A rejected
// promotion bumps the employee's failed-attempt counter.
func (h *Handler) RejectRecommendation(w http.ResponseWriter, r *http.Request) {
	id := engine.RecommendationID(chi.URLParam(r, "id"))
	var req RejectRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.Approvals.Reject(r.Context(), id, req.Reason)
	if err != nil {
		h.writeError(w, "Rejection failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, toRecommendationDTO(*rec))
}

// =============================================================================
// STEP HANDLERS
// =============================================================================

// RecommendStep computes the salary-increasing step for an employee and
// a target grade. Query param: target_grade (defaults to grade + 1).
func (h *Handler) RecommendStep(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))
	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		h.writeError(w, "Failed to get employee", err)
		return
	}

	target := queryInt(r, "target_grade")
	if target == 0 {
		target = emp.Grade + 1
	}

	rec, err := h.Steps.RecommendStepFor(r.Context(), id, target)
	if err != nil {
		h.writeError(w, "Step recommendation failed", err)
		return
	}
	if rec.Degraded {
		h.Logger.Warn("degraded step recommendation (salary table inversion)",
			zap.String("employee", string(id)),
			zap.Int("target_grade", target),
			zap.Int("step", rec.Step))
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// IncrementStep advances one employee a single step within grade.
func (h *Handler) IncrementStep(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))
	var req IncrementStepRequest
	if !h.decode(w, r, &req) {
		return
	}

	entry, err := h.Steps.IncrementStep(r.Context(), id, req.ProcessedBy, req.Notes)
	if err != nil {
		h.writeError(w, "Increment failed", err)
		return
	}
	if entry == nil {
		// At ceiling or no grade/step: a no-op, not an error.
		h.writeJSON(w, http.StatusOK, map[string]any{"incremented": false})
		return
	}
	h.writeJSON(w, http.StatusOK, toIncrementDTO(*entry))
}

// GetIncrementHistory returns an employee's step ledger, newest first.
func (h *Handler) GetIncrementHistory(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))
	entries, err := h.Steps.History(r.Context(), id)
	if err != nil {
		h.writeError(w, "Failed to load increment history", err)
		return
	}
	h.writeJSON(w, http.StatusOK, toIncrementDTOs(entries))
}

// RunIncrements runs the annual increment batch across the active
// population. Safe to retry: employees already incremented this calendar
// year are skipped.
func (h *Handler) RunIncrements(w http.ResponseWriter, r *http.Request) {
	var req RunIncrementsRequest
	if !h.decode(w, r, &req) {
		return
	}

	summary, err := h.Steps.IncrementAll(r.Context(), req.ProcessedBy)
	if err != nil {
		h.writeError(w, "Increment batch failed", err)
		return
	}
	h.Logger.Info("annual increment batch completed",
		zap.Int("total", summary.Total),
		zap.Int("incremented", summary.Incremented),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	h.writeJSON(w, http.StatusOK, summary)
}

// =============================================================================
// SALARY / VACANCY ADMIN HANDLERS
// =============================================================================

// ListSalary returns the salary table. Query param: grade (0 = all).
func (h *Handler) ListSalary(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.ListSalaryRows(r.Context(), queryInt(r, "grade"))
	if err != nil {
		h.writeError(w, "Failed to list salary table", err)
		return
	}
	dtos := make([]SalaryRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toSalaryRowDTO(row)
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// SaveSalary upserts one rung of the salary table.
func (h *Handler) SaveSalary(w http.ResponseWriter, r *http.Request) {
	var req SaveSalaryRowRequest
	if !h.decode(w, r, &req) {
		return
	}
	row, err := req.toSalaryRow()
	if err != nil {
		h.writeStatus(w, http.StatusBadRequest, "Invalid salary row", err)
		return
	}
	if err := h.Store.SaveSalaryRow(r.Context(), row); err != nil {
		h.writeError(w, "Failed to save salary row", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toSalaryRowDTO(row))
}

// ListVacancies returns the slot configurations for a cycle.
func (h *Handler) ListVacancies(w http.ResponseWriter, r *http.Request) {
	cycle := engine.Cycle(r.URL.Query().Get("cycle"))
	vacancies, err := h.Store.ListActiveVacancies(r.Context(), cycle)
	if err != nil {
		h.writeError(w, "Failed to list vacancies", err)
		return
	}
	dtos := make([]VacancyDTO, len(vacancies))
	for i, v := range vacancies {
		dtos[i] = toVacancyDTO(v)
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// SaveVacancy upserts a slot configuration.
func (h *Handler) SaveVacancy(w http.ResponseWriter, r *http.Request) {
	var req SaveVacancyRequest
	if !h.decode(w, r, &req) {
		return
	}
	v := req.toVacancy()
	if err := h.Store.SaveVacancy(r.Context(), v); err != nil {
		h.writeError(w, "Failed to save vacancy", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toVacancyDTO(v))
}

// SeedDemo loads the demo dataset: the CONRAISS salary table, a sample
// population with evaluations and exam submissions, and vacancy
// configurations for the current cycle.
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	if err := SeedDemoData(r.Context(), h.Store); err != nil {
		h.writeError(w, "Seeding failed", err)
		return
	}
	h.Logger.Info("demo data seeded")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "seeded"})
}

// Health is the liveness endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode parses and validates a JSON request body. Writes the error
// response itself and returns false when the input is bad.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeStatus(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		h.writeStatus(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps an engine error onto an HTTP status.
func (h *Handler) writeError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case engine.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidState), engine.IsRetryable(err):
		status = http.StatusConflict
	case engine.IsClientError(err):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.Logger.Error(message, zap.Error(err))
	}
	h.writeStatus(w, status, message, err)
}

func (h *Handler) writeStatus(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	h.writeJSON(w, status, resp)
}

func queryInt(r *http.Request, key string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(key))
	return v
}
