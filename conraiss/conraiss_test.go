package conraiss_test

import (
	"testing"

	"github.com/nbti/promotion-engine/conraiss"
)

func TestMaxStep_Bands(t *testing.T) {
	cases := []struct {
		grade int
		want  int
	}{
		{2, 15},
		{9, 15},
		{10, 11},
		{12, 11},
		{13, 9},
		{15, 9},
		{0, 15}, // out of range falls back to the widest ladder
		{99, 15},
	}
	for _, c := range cases {
		if got := conraiss.MaxStep(c.grade); got != c.want {
			t.Errorf("MaxStep(%d) = %d, want %d", c.grade, got, c.want)
		}
	}
}

func TestEligibilityYears_Bands(t *testing.T) {
	cases := []struct {
		grade int
		want  int
	}{
		{2, 2},
		{5, 2},
		{6, 3},
		{12, 3},
		{13, 4},
		{14, 4},
		{15, 0}, // top of scale, no promotion path
		{99, 3}, // out of range uses the default cycle
	}
	for _, c := range cases {
		if got := conraiss.EligibilityYears(c.grade); got != c.want {
			t.Errorf("EligibilityYears(%d) = %d, want %d", c.grade, got, c.want)
		}
	}
}

func TestValidGrade(t *testing.T) {
	for grade := conraiss.MinGrade; grade <= conraiss.MaxGrade; grade++ {
		if !conraiss.ValidGrade(grade) {
			t.Errorf("grade %d should be valid", grade)
		}
	}
	for _, grade := range []int{0, 1, 16, -3} {
		if conraiss.ValidGrade(grade) {
			t.Errorf("grade %d should be invalid", grade)
		}
	}
}

func TestValidStep(t *testing.T) {
	if !conraiss.ValidStep(9, 15) {
		t.Error("grade 9 step 15 should be valid")
	}
	if conraiss.ValidStep(10, 12) {
		t.Error("grade 10 step 12 exceeds the 11-step ladder")
	}
	if conraiss.ValidStep(6, 0) {
		t.Error("step 0 should be invalid")
	}
	if conraiss.ValidStep(1, 5) {
		t.Error("grade 1 is off the scale")
	}
}
