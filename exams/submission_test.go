package exams_test

import (
	"context"
	"testing"
	"time"

	"github.com/nbti/promotion-engine/exams"
)

func TestComplete_ComputesPercentage(t *testing.T) {
	// GIVEN: An in-progress submission with 72/90 points
	// WHEN: Completing it
	// THEN: Percentage fixed at 80, status Completed, time stamped

	at := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	sub := exams.Submission{EarnedPoints: 72, TotalPoints: 90, Status: exams.StatusInProgress}
	sub.Complete(at)

	if sub.Percentage != 80 {
		t.Errorf("percentage = %v, want 80", sub.Percentage)
	}
	if sub.Status != exams.StatusCompleted {
		t.Errorf("status = %s, want Completed", sub.Status)
	}
	if !sub.SubmittedAt.Equal(at) {
		t.Errorf("submitted at = %v, want %v", sub.SubmittedAt, at)
	}
}

func TestComputePercentage_ZeroTotal(t *testing.T) {
	// GIVEN: An exam with no points
	// WHEN: Computing the percentage
	// THEN: 0, not a division by zero

	if got := exams.ComputePercentage(10, 0); got != 0 {
		t.Errorf("percentage = %v, want 0", got)
	}
}

func TestMemorySource_PromotionalFilterAndLatestWins(t *testing.T) {
	// GIVEN: A promotional and a non-promotional exam, plus an older
	// promotional attempt
	// WHEN: Querying without pinning an exam
	// THEN: The newest completed promotional submission wins

	src := exams.NewMemorySource()
	src.AddExam(exams.Exam{ID: "promo", Promotional: true, TotalPoints: 100})
	src.AddExam(exams.Exam{ID: "cert", Promotional: false, TotalPoints: 100})

	older := exams.Submission{ID: "s1", ExamID: "promo", CandidateID: "emp-1", EarnedPoints: 60, TotalPoints: 100}
	older.Complete(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	newer := exams.Submission{ID: "s2", ExamID: "promo", CandidateID: "emp-1", EarnedPoints: 85, TotalPoints: 100}
	newer.Complete(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	nonPromo := exams.Submission{ID: "s3", ExamID: "cert", CandidateID: "emp-1", EarnedPoints: 99, TotalPoints: 100}
	nonPromo.Complete(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	src.AddSubmission(older)
	src.AddSubmission(newer)
	src.AddSubmission(nonPromo)

	score, ok, err := src.LatestExamScore(context.Background(), "emp-1", "")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if score != 85 {
		t.Errorf("score = %v, want 85 (newest promotional)", score)
	}
}

func TestMemorySource_PinnedExam(t *testing.T) {
	// GIVEN: Submissions across two exams
	// WHEN: Pinning a specific exam id
	// THEN: Only that exam's submission counts, promotional or not

	src := exams.NewMemorySource()
	src.AddExam(exams.Exam{ID: "cert", Promotional: false, TotalPoints: 100})

	sub := exams.Submission{ID: "s1", ExamID: "cert", CandidateID: "emp-1", EarnedPoints: 70, TotalPoints: 100}
	sub.Complete(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	src.AddSubmission(sub)

	score, ok, err := src.LatestExamScore(context.Background(), "emp-1", "cert")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if score != 70 {
		t.Errorf("score = %v, want 70", score)
	}
}

func TestMemorySource_IgnoresInProgress(t *testing.T) {
	// GIVEN: Only an in-progress submission
	// WHEN: Querying
	// THEN: No score

	src := exams.NewMemorySource()
	src.AddExam(exams.Exam{ID: "promo", Promotional: true, TotalPoints: 100})
	src.AddSubmission(exams.Submission{
		ID: "s1", ExamID: "promo", CandidateID: "emp-1",
		EarnedPoints: 50, TotalPoints: 100, Status: exams.StatusInProgress,
	})

	_, ok, err := src.LatestExamScore(context.Background(), "emp-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected no score from an in-progress submission")
	}
}
