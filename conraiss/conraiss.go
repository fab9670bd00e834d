/*
Package conraiss encodes the CONRAISS grade/step ladder.

PURPOSE:
  Pure arithmetic over the civil-service pay scale: grade bounds, the
  step ceiling per grade band, and the standard promotion eligibility
  cycle per grade band. Everything here is a function of the grade
  alone - no storage, no clock, no configuration.

THE LADDER:
  Grades run 2..15; grade 15 is top of scale. Steps shrink at senior
  grades:

    Grades  2-9   steps 1..15
    Grades 10-12  steps 1..11
    Grades 13-15  steps 1..9

  Eligibility cycles (years in grade before a promotion attempt):

    Grades  2-5   every 2 years
    Grades  6-12  every 3 years
    Grades 13-14  every 4 years
    Grade  15     no promotion path

CENTRALIZATION:
  MaxStep gates both promotion step allocation and annual increments,
  so it lives here and only here.

SEE ALSO:
  - engine/steps.go: step allocation against the salary table
  - engine/eligibility.go: time-in-grade gating
*/
package conraiss

// Grade bounds of the CONRAISS scale.
const (
	MinGrade = 2
	MaxGrade = 15
)

// ValidGrade reports whether g is on the CONRAISS scale.
func ValidGrade(g int) bool {
	return g >= MinGrade && g <= MaxGrade
}

// MaxStep returns the step ceiling for a grade.
// Grades outside the scale fall back to the widest ladder.
func MaxStep(grade int) int {
	switch {
	case grade >= 2 && grade <= 9:
		return 15
	case grade >= 10 && grade <= 12:
		return 11
	case grade >= 13 && grade <= 15:
		return 9
	default:
		return 15
	}
}

// ValidStep reports whether (grade, step) is a real rung on the ladder.
func ValidStep(grade, step int) bool {
	return ValidGrade(grade) && step >= 1 && step <= MaxStep(grade)
}

// EligibilityYears returns the standard number of years an employee must
// spend in a grade before a promotion attempt. Grade 15 returns 0: there
// is nothing above it.
func EligibilityYears(grade int) int {
	switch {
	case grade >= 2 && grade <= 5:
		return 2
	case grade >= 6 && grade <= 12:
		return 3
	case grade >= 13 && grade <= 14:
		return 4
	case grade == 15:
		return 0
	default:
		return 3
	}
}
