package academic

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/campus-registrar/deliberation/internal/domain/shared"
)

// NormalizeScore returns an exam's weighted contribution on the 0–20 scale:
// (score / max_score) × 20 × weight. A nil result or an absence contributes
// zero points; its weight still counts in the course's total weight.
func NormalizeScore(exam Exam, result *ExamResult) (decimal.Decimal, error) {
	if err := exam.Validate(); err != nil {
		return decimal.Zero, err
	}
	if result == nil || result.Absent {
		return decimal.Zero, nil
	}
	if result.Score.IsNegative() || result.Score.GreaterThan(exam.MaxScore) {
		return decimal.Zero, shared.WrapError("academic", "NormalizeScore", shared.ErrInvalidExamResult, "invalid exam result",
			fmt.Errorf("student %s exam %s: score %s not in [0, %s]", result.StudentID, exam.ID, result.Score, exam.MaxScore))
	}
	return result.Score.Div(exam.MaxScore).Mul(shared.MaxGrade).Mul(exam.Weight), nil
}

// ScoreSheet accumulates the exams of one course for one student.
// The zero value is ready to use.
type ScoreSheet struct {
	points decimal.Decimal
	weight decimal.Decimal
	exams  int
}

// Add records one exam and the student's result for it (nil when missing).
func (s *ScoreSheet) Add(exam Exam, result *ExamResult) error {
	contribution, err := NormalizeScore(exam, result)
	if err != nil {
		return err
	}
	s.points = s.points.Add(contribution)
	s.weight = s.weight.Add(exam.Weight)
	s.exams++
	return nil
}

// Exams returns how many exams were added.
func (s *ScoreSheet) Exams() int {
	return s.exams
}

// FinalScore returns Σcontribution / Σweight rounded to two places, and
// whether the grade is meaningful. With no weight at all the score is zero
// and not validated.
func (s *ScoreSheet) FinalScore() (decimal.Decimal, bool) {
	if !s.weight.IsPositive() {
		return decimal.Zero, false
	}
	return shared.RoundGrade(s.points.Div(s.weight)), true
}

// ComputeGPA returns the credit-weighted mean of the final scores, rounded to
// two places, and the total credits. Zero credits yield a zero GPA.
func ComputeGPA(grades []GradedCourse) (decimal.Decimal, int) {
	points := decimal.Zero
	credits := 0
	for _, g := range grades {
		if g.Credits <= 0 {
			continue
		}
		points = points.Add(g.Grade.FinalScore.Mul(decimal.NewFromInt(int64(g.Credits))))
		credits += g.Credits
	}
	if credits == 0 {
		return decimal.Zero, 0
	}
	return shared.RoundGrade(points.Div(decimal.NewFromInt(int64(credits)))), credits
}

// AnnualGPA combines the report cards of a year (nil entries are skipped and
// contribute nothing) into a credit-weighted mean rounded to two places.
func AnnualGPA(cards ...*ReportCard) (decimal.Decimal, int) {
	points := decimal.Zero
	credits := 0
	for _, card := range cards {
		if card == nil || card.TotalCredits <= 0 {
			continue
		}
		points = points.Add(card.Points())
		credits += card.TotalCredits
	}
	if credits == 0 {
		return decimal.Zero, 0
	}
	return shared.RoundGrade(points.Div(decimal.NewFromInt(int64(credits)))), credits
}
