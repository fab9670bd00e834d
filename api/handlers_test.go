package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nbti/promotion-engine/api"
	"github.com/nbti/promotion-engine/engine"
	"github.com/nbti/promotion-engine/exams"
	"github.com/nbti/promotion-engine/pms"
	"github.com/nbti/promotion-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	handler := api.NewHandler(store, zap.NewNop())
	server := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})
	return server, store
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func decodeBody(t *testing.T, data []byte, dst any) {
	t.Helper()
	if err := json.Unmarshal(data, dst); err != nil {
		t.Fatalf("decoding response %q: %v", data, err)
	}
}

// seedCandidate writes an employee with salary rows, an exam submission
// and an evaluation, ready for allocation.
func seedCandidate(t *testing.T, store *sqlite.Store, id string, grade, step int, examPct float64) {
	t.Helper()
	ctx := context.Background()

	promo := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	err := store.SaveEmployee(ctx, engine.Employee{
		ID:                  engine.EmployeeID(id),
		Name:                id,
		Grade:               grade,
		Step:                step,
		DateOfLastPromotion: &promo,
		Active:              true,
	})
	if err != nil {
		t.Fatalf("seeding employee: %v", err)
	}

	err = store.SaveExam(ctx, exams.Exam{
		ID: "promo-exam", Title: "Promotion Exam", Promotional: true, TotalPoints: 100,
	})
	if err != nil {
		t.Fatalf("seeding exam: %v", err)
	}
	sub := exams.Submission{
		ID: "sub-" + id, ExamID: "promo-exam", CandidateID: engine.EmployeeID(id),
		EarnedPoints: examPct, TotalPoints: 100,
	}
	sub.Complete(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	if err := store.SaveSubmission(ctx, sub); err != nil {
		t.Fatalf("seeding submission: %v", err)
	}

	err = store.SaveEvaluation(ctx, pms.Evaluation{
		ID: "eval-" + id, StaffID: engine.EmployeeID(id), Quarter: "Q4", Year: 2025,
		Status: pms.StatusCompleted,
		Goals:  []pms.Goal{{ID: "g-" + id, Weight: 1, Agreed: true, Rating: 4}},
	})
	if err != nil {
		t.Fatalf("seeding evaluation: %v", err)
	}
}

func seedSalaryLadder(t *testing.T, store *sqlite.Store, grade int, base int64) {
	t.Helper()
	ctx := context.Background()
	for step := 1; step <= 15; step++ {
		err := store.SaveSalaryRow(ctx, engine.SalaryRow{
			Grade:         grade,
			Step:          step,
			AnnualSalary:  decimal.NewFromInt(base + int64(step)*10000),
			EffectiveDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Active:        true,
		})
		if err != nil {
			t.Fatalf("seeding salary: %v", err)
		}
	}
}

// =============================================================================
// BASIC ENDPOINTS
// =============================================================================

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSaveAndGetEmployee(t *testing.T) {
	// GIVEN: A valid create request
	// WHEN: Saving and fetching
	// THEN: 201 then 200 with the same record; an unknown id is a 404

	server, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/employees", map[string]any{
		"id":                     "emp-1",
		"name":                   "Amina Bello",
		"grade":                  7,
		"step":                   4,
		"date_of_last_promotion": "2022-01-10",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/employees/emp-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	var dto struct {
		Name  string `json:"name"`
		Grade int    `json:"grade"`
	}
	decodeBody(t, body, &dto)
	if dto.Name != "Amina Bello" || dto.Grade != 7 {
		t.Errorf("unexpected employee: %+v", dto)
	}

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/employees/ghost", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", resp.StatusCode)
	}
}

func TestSaveEmployee_ValidationFailure(t *testing.T) {
	// GIVEN: A request missing the required name, with an off-scale grade
	// WHEN: Saving
	// THEN: 400 before the store is touched

	server, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/employees", map[string]any{
		"id":    "emp-1",
		"grade": 99,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSaveEmployee_RejectsStepAboveGradeCeiling(t *testing.T) {
	// GIVEN: A record at grade 12, where the ladder tops out at step 11
	// WHEN: Saving with step 15
	// THEN: 400, and the pair is accepted once the step is on the ladder

	server, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/employees", map[string]any{
		"id":    "emp-1",
		"name":  "Ngozi Eze",
		"grade": 12,
		"step":  15,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/employees", map[string]any{
		"id":    "emp-1",
		"name":  "Ngozi Eze",
		"grade": 12,
		"step":  11,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want 201", resp.StatusCode)
	}
}

func TestCheckEligibility(t *testing.T) {
	// GIVEN: An employee promoted well past the grade 7 cycle
	// WHEN: Checking eligibility
	// THEN: An eligible verdict naming the target grade

	server, store := newTestServer(t)
	seedCandidate(t, store, "emp-1", 7, 4, 80)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/employees/emp-1/eligibility", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var dto struct {
		EmployeeID string                   `json:"employee_id"`
		Result     engine.EligibilityResult `json:"result"`
	}
	decodeBody(t, body, &dto)
	if !dto.Result.Eligible {
		t.Fatalf("expected eligible, got %q", dto.Result.Reason)
	}
	if dto.Result.Details.TargetGrade != 8 {
		t.Errorf("target grade = %d, want 8", dto.Result.Details.TargetGrade)
	}
}

// =============================================================================
// ALLOCATION FLOW
// =============================================================================

func TestAllocationApprovalFlow(t *testing.T) {
	// GIVEN: Three grade 7 candidates, one promotion slot and salary
	// ladders for grades 7 and 8
	// WHEN: Running the allocation, then approving the top recommendation
	// THEN: Rankings follow exam scores, approval promotes the winner
	// with a salary-increasing step, and a second approval is a 409

	server, store := newTestServer(t)
	ctx := context.Background()

	seedCandidate(t, store, "emp-a", 7, 4, 90)
	seedCandidate(t, store, "emp-b", 7, 4, 70)
	seedCandidate(t, store, "emp-c", 7, 4, 50)
	seedSalaryLadder(t, store, 7, 400000)
	seedSalaryLadder(t, store, 8, 450000)
	if err := store.SaveVacancy(ctx, engine.VacancyConfig{
		Grade: 7, Cycle: "2026", PromotionSlots: 1, RecognitionSlots: 1, Active: true,
	}); err != nil {
		t.Fatalf("seeding vacancy: %v", err)
	}

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/allocation/run", map[string]any{
		"cycle":          "2026",
		"recommended_by": "hr-committee",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("allocation status = %d: %s", resp.StatusCode, body)
	}
	var allocations map[string]struct {
		TotalCandidates int `json:"total_candidates"`
		Promoted        []struct {
			EmployeeID string `json:"employee_id"`
		} `json:"promoted"`
	}
	decodeBody(t, body, &allocations)
	grade7 := allocations["7"]
	if grade7.TotalCandidates != 3 {
		t.Fatalf("candidates = %d, want 3", grade7.TotalCandidates)
	}
	if len(grade7.Promoted) != 1 || grade7.Promoted[0].EmployeeID != "emp-a" {
		t.Fatalf("promoted = %+v, want emp-a", grade7.Promoted)
	}

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/allocation/2026/grades/7", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rankings status = %d", resp.StatusCode)
	}
	var rankings []struct {
		ID         string `json:"id"`
		EmployeeID string `json:"employee_id"`
		Rank       int    `json:"rank_in_grade"`
		Promoted   bool   `json:"promoted"`
		Status     string `json:"status"`
	}
	decodeBody(t, body, &rankings)
	if len(rankings) != 3 || rankings[0].EmployeeID != "emp-a" || !rankings[0].Promoted {
		t.Fatalf("unexpected rankings: %+v", rankings)
	}

	approveURL := fmt.Sprintf("%s/api/recommendations/%s/approve", server.URL, rankings[0].ID)
	resp, body = doJSON(t, http.MethodPost, approveURL, map[string]any{"approved_by": "director"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status = %d: %s", resp.StatusCode, body)
	}
	var approved struct {
		Status          string `json:"status"`
		PromotedToGrade int    `json:"promoted_to_grade"`
		PromotedToStep  int    `json:"promoted_to_step"`
	}
	decodeBody(t, body, &approved)
	if approved.Status != "Approved" || approved.PromotedToGrade != 8 {
		t.Fatalf("unexpected approval: %+v", approved)
	}
	if approved.PromotedToStep == 0 {
		t.Fatal("expected a step allocated at approval time")
	}

	emp, err := store.GetEmployee(ctx, "emp-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emp.Grade != 8 || emp.Step != approved.PromotedToStep {
		t.Errorf("employee at %d/%d, want 8/%d", emp.Grade, emp.Step, approved.PromotedToStep)
	}

	// Terminal recommendations cannot be approved twice.
	resp, _ = doJSON(t, http.MethodPost, approveURL, map[string]any{"approved_by": "director"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second approve status = %d, want 409", resp.StatusCode)
	}
}

func TestRejectRecommendation(t *testing.T) {
	// GIVEN: A materialized promotion recommendation
	// WHEN: Rejecting it without a reason, then with one
	// THEN: 400 then 200; the employee's failed-attempt counter advances

	server, store := newTestServer(t)
	ctx := context.Background()

	seedCandidate(t, store, "emp-a", 7, 4, 90)
	if err := store.SaveVacancy(ctx, engine.VacancyConfig{
		Grade: 7, Cycle: "2026", PromotionSlots: 1, Active: true,
	}); err != nil {
		t.Fatalf("seeding vacancy: %v", err)
	}

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/allocation/run", map[string]any{"cycle": "2026"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("allocation status = %d", resp.StatusCode)
	}

	rec, err := store.FindRecommendation(ctx, "emp-a", "2026")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rejectURL := fmt.Sprintf("%s/api/recommendations/%s/reject", server.URL, rec.ID)

	resp, _ = doJSON(t, http.MethodPost, rejectURL, map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing reason status = %d, want 400", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, rejectURL, map[string]any{"reason": "vacancy withdrawn"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reject status = %d", resp.StatusCode)
	}

	emp, err := store.GetEmployee(ctx, "emp-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emp.FailedPromotionAttempts != 1 {
		t.Errorf("failed attempts = %d, want 1", emp.FailedPromotionAttempts)
	}
}

// =============================================================================
// INCREMENTS
// =============================================================================

func TestIncrementEndpoints(t *testing.T) {
	// GIVEN: One mid-ladder and one at-ceiling employee
	// WHEN: Incrementing each, then reading the ledger
	// THEN: The mid-ladder employee advances; the ceiling case reports
	// incremented=false; history lists the new entry

	server, store := newTestServer(t)
	ctx := context.Background()

	for id, step := range map[string]int{"emp-mid": 4, "emp-top": 15} {
		err := store.SaveEmployee(ctx, engine.Employee{
			ID: engine.EmployeeID(id), Name: id, Grade: 6, Step: step, Active: true,
		})
		if err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/employees/emp-mid/increment",
		map[string]any{"processed_by": "hr"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("increment status = %d", resp.StatusCode)
	}
	var entry struct {
		NewStep int    `json:"new_step"`
		Type    string `json:"type"`
	}
	decodeBody(t, body, &entry)
	if entry.NewStep != 5 || entry.Type != "Annual" {
		t.Errorf("unexpected entry: %+v", entry)
	}

	resp, body = doJSON(t, http.MethodPost, server.URL+"/api/employees/emp-top/increment",
		map[string]any{"processed_by": "hr"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ceiling increment status = %d", resp.StatusCode)
	}
	var noop struct {
		Incremented *bool `json:"incremented"`
	}
	decodeBody(t, body, &noop)
	if noop.Incremented == nil || *noop.Incremented {
		t.Errorf("expected incremented=false, got %s", body)
	}

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/employees/emp-mid/increments", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d", resp.StatusCode)
	}
	var history []struct {
		NewStep int `json:"new_step"`
	}
	decodeBody(t, body, &history)
	if len(history) != 1 || history[0].NewStep != 5 {
		t.Errorf("unexpected history: %+v", history)
	}
}
