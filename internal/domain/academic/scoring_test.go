package academic

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-registrar/deliberation/internal/domain/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func exam(maxScore, weight string) Exam {
	return Exam{ID: uuid.New(), MaxScore: dec(maxScore), Weight: dec(weight)}
}

func result(e Exam, score string) *ExamResult {
	return &ExamResult{ExamID: e.ID, Score: dec(score)}
}

func TestNormalizeScore(t *testing.T) {
	e := exam("40", "0.5")

	got, err := NormalizeScore(e, result(e, "30"))
	require.NoError(t, err)
	assert.True(t, dec("7.5").Equal(got), "got %s", got)

	got, err = NormalizeScore(e, &ExamResult{ExamID: e.ID, Score: dec("30"), Absent: true})
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = NormalizeScore(e, nil)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestNormalizeScore_InvalidExamConfiguration(t *testing.T) {
	for _, e := range []Exam{exam("0", "1"), exam("-5", "1"), exam("20", "-0.1")} {
		_, err := NormalizeScore(e, result(e, "0"))
		assert.True(t, errors.Is(err, shared.ErrInvalidExamConfiguration), "max=%s weight=%s", e.MaxScore, e.Weight)
	}
}

func TestNormalizeScore_ScoreOutOfRange(t *testing.T) {
	e := exam("20", "1")

	_, err := NormalizeScore(e, result(e, "20.5"))
	assert.True(t, errors.Is(err, shared.ErrInvalidExamResult))

	_, err = NormalizeScore(e, result(e, "-1"))
	assert.True(t, errors.Is(err, shared.ErrInvalidExamResult))

	// Absent results are never range-checked.
	_, err = NormalizeScore(e, &ExamResult{Score: dec("99"), Absent: true})
	assert.NoError(t, err)
}

func TestScoreSheet_FinalScore(t *testing.T) {
	midterm := exam("20", "0.4")
	final := exam("100", "0.6")

	var sheet ScoreSheet
	require.NoError(t, sheet.Add(midterm, result(midterm, "12")))
	require.NoError(t, sheet.Add(final, result(final, "75")))

	score, validated := sheet.FinalScore()
	assert.True(t, validated)
	// (12/20*20*0.4 + 75/100*20*0.6) / 1.0 = 4.8 + 9 = 13.8
	assert.Equal(t, "13.8", score.String())
	assert.Equal(t, 2, sheet.Exams())
}

func TestScoreSheet_AbsenceCountsAsZero(t *testing.T) {
	e := exam("20", "1")

	var sheet ScoreSheet
	require.NoError(t, sheet.Add(e, &ExamResult{ExamID: e.ID, Absent: true}))

	score, validated := sheet.FinalScore()
	assert.True(t, validated)
	assert.True(t, score.IsZero())
}

func TestScoreSheet_MissingResultCountsAsAbsence(t *testing.T) {
	graded := exam("20", "0.5")
	missing := exam("20", "0.5")

	var sheet ScoreSheet
	require.NoError(t, sheet.Add(graded, result(graded, "16")))
	require.NoError(t, sheet.Add(missing, nil))

	score, _ := sheet.FinalScore()
	assert.Equal(t, "8", score.String())
}

func TestScoreSheet_NoWeight(t *testing.T) {
	var sheet ScoreSheet
	score, validated := sheet.FinalScore()
	assert.False(t, validated)
	assert.True(t, score.IsZero())

	e := exam("20", "0")
	require.NoError(t, sheet.Add(e, result(e, "18")))
	score, validated = sheet.FinalScore()
	assert.False(t, validated)
	assert.True(t, score.IsZero())
}

func TestScoreSheet_StaysWithinScale(t *testing.T) {
	weights := []string{"0.1", "0.2", "0.3", "0.25", "0.15"}
	scores := []string{"20", "0", "13.37", "19.99", "7"}

	var sheet ScoreSheet
	for i := range weights {
		e := exam("20", weights[i])
		require.NoError(t, sheet.Add(e, result(e, scores[i])))
	}
	score, _ := sheet.FinalScore()
	assert.True(t, shared.InGradeRange(score), "score %s", score)
}

func TestComputeGPA(t *testing.T) {
	grades := []GradedCourse{
		{Grade: CourseGrade{FinalScore: dec("10")}, Credits: 3},
		{Grade: CourseGrade{FinalScore: dec("14")}, Credits: 6},
	}

	gpa, credits := ComputeGPA(grades)
	assert.Equal(t, "12.67", gpa.String())
	assert.Equal(t, 9, credits)
}

func TestComputeGPA_NoCredits(t *testing.T) {
	gpa, credits := ComputeGPA(nil)
	assert.True(t, gpa.IsZero())
	assert.Equal(t, 0, credits)

	gpa, credits = ComputeGPA([]GradedCourse{{Grade: CourseGrade{FinalScore: dec("15")}, Credits: 0}})
	assert.True(t, gpa.IsZero())
	assert.Equal(t, 0, credits)
}

func TestAnnualGPA(t *testing.T) {
	s1 := &ReportCard{GPA: dec("12.67"), TotalCredits: 9}
	s2 := &ReportCard{GPA: dec("8.5"), TotalCredits: 6}

	gpa, credits := AnnualGPA(s1, s2)
	// (12.67*9 + 8.5*6) / 15 = (114.03 + 51) / 15 = 11.002
	assert.Equal(t, "11", gpa.String())
	assert.Equal(t, 15, credits)
}

func TestAnnualGPA_SingleSemester(t *testing.T) {
	s1 := &ReportCard{GPA: dec("9.99"), TotalCredits: 30}

	gpa, credits := AnnualGPA(s1, nil)
	assert.True(t, s1.GPA.Equal(gpa))
	assert.Equal(t, 30, credits)
}

func TestSplitSemesters(t *testing.T) {
	year := uuid.New()
	semesters := []Semester{
		{ID: uuid.New(), AcademicYearID: year, Type: SemesterSecond},
		{ID: uuid.New(), AcademicYearID: year, Type: SemesterFirst},
	}

	s1, s2 := SplitSemesters(semesters)
	require.NotNil(t, s1)
	require.NotNil(t, s2)
	assert.Equal(t, semesters[1].ID, s1.ID)
	assert.Equal(t, semesters[0].ID, s2.ID)

	s1, s2 = SplitSemesters(semesters[:1])
	assert.Nil(t, s1)
	assert.NotNil(t, s2)
}

func TestCourseGrade_Validate(t *testing.T) {
	for _, score := range []string{"0", "9.99", "20"} {
		assert.NoError(t, CourseGrade{FinalScore: dec(score)}.Validate(), score)
	}
	for _, score := range []string{"-0.01", "20.5"} {
		err := CourseGrade{CourseID: uuid.New(), FinalScore: dec(score)}.Validate()
		require.Error(t, err, score)
		assert.ErrorIs(t, err, shared.ErrInvalidCourseGrade)
		assert.True(t, shared.IsDataIntegrity(err))
	}
}
