package command_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-registrar/deliberation/internal/application/command"
	"github.com/campus-registrar/deliberation/internal/domain/academic"
	"github.com/campus-registrar/deliberation/internal/domain/shared"
)

func TestComputeCourseGrade(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l1)
	midterm := c.exam(c.algebra, c.s1, "20", "0.4")
	final := c.exam(c.algebra, c.s1, "100", "0.6")
	c.store.AddExamResult(academic.ExamResult{StudentID: st.ID, ExamID: midterm.ID, Score: dec("12")})
	c.store.AddExamResult(academic.ExamResult{StudentID: st.ID, ExamID: final.ID, Score: dec("75")})

	events := &recorder{}
	validator := uuid.New()
	h := command.NewComputeCourseGradeHandler(c.store, events, quietLogger())

	grade, err := h.Handle(context.Background(), command.ComputeCourseGradeCommand{
		StudentID: st.ID, CourseID: c.algebra.ID, SemesterID: c.s1.ID, ValidatedBy: &validator,
	})
	require.NoError(t, err)
	assert.Equal(t, "13.8", grade.FinalScore.String())
	assert.True(t, grade.Validated)
	assert.Equal(t, &validator, grade.ValidatedBy)

	stored, ok := c.store.CourseGrade(st.ID, c.algebra.ID, c.s1.ID)
	require.True(t, ok)
	assert.True(t, grade.FinalScore.Equal(stored.FinalScore))
	assert.Equal(t, []shared.EventType{shared.EventCourseGradeComputed}, events.types())
}

func TestComputeCourseGrade_Idempotent(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l1)
	e := c.exam(c.physics, c.s1, "30", "1")
	c.store.AddExamResult(academic.ExamResult{StudentID: st.ID, ExamID: e.ID, Score: dec("17")})

	h := command.NewComputeCourseGradeHandler(c.store, nil, quietLogger())
	cmd := command.ComputeCourseGradeCommand{StudentID: st.ID, CourseID: c.physics.ID, SemesterID: c.s1.ID}

	first, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	second, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, first.FinalScore.String(), second.FinalScore.String())
	assert.Equal(t, "11.33", second.FinalScore.String())
	assert.Equal(t, 1, c.store.CourseGradeCount())
}

func TestComputeCourseGrade_AbsentYieldsZero(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l1)
	e := c.exam(c.algebra, c.s1, "20", "1")
	c.store.AddExamResult(academic.ExamResult{StudentID: st.ID, ExamID: e.ID, Absent: true})

	h := command.NewComputeCourseGradeHandler(c.store, nil, quietLogger())
	grade, err := h.Handle(context.Background(), command.ComputeCourseGradeCommand{
		StudentID: st.ID, CourseID: c.algebra.ID, SemesterID: c.s1.ID,
	})
	require.NoError(t, err)
	assert.True(t, grade.FinalScore.IsZero())
	assert.True(t, grade.Validated)
}

func TestComputeCourseGrade_MissingResultIsAbsence(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l1)
	graded := c.exam(c.algebra, c.s1, "20", "0.5")
	c.exam(c.algebra, c.s1, "20", "0.5")
	c.store.AddExamResult(academic.ExamResult{StudentID: st.ID, ExamID: graded.ID, Score: dec("18")})

	h := command.NewComputeCourseGradeHandler(c.store, nil, quietLogger())
	grade, err := h.Handle(context.Background(), command.ComputeCourseGradeCommand{
		StudentID: st.ID, CourseID: c.algebra.ID, SemesterID: c.s1.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "9", grade.FinalScore.String())
}

func TestComputeCourseGrade_NoExams(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l1)

	validator := uuid.New()
	h := command.NewComputeCourseGradeHandler(c.store, nil, quietLogger())
	grade, err := h.Handle(context.Background(), command.ComputeCourseGradeCommand{
		StudentID: st.ID, CourseID: c.algebra.ID, SemesterID: c.s1.ID, ValidatedBy: &validator,
	})
	require.NoError(t, err)
	assert.True(t, grade.FinalScore.IsZero())
	assert.False(t, grade.Validated)
	assert.Nil(t, grade.ValidatedBy)
}

func TestComputeCourseGrade_InvalidExamWritesNothing(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l1)
	c.exam(c.algebra, c.s1, "0", "1")

	h := command.NewComputeCourseGradeHandler(c.store, nil, quietLogger())
	_, err := h.Handle(context.Background(), command.ComputeCourseGradeCommand{
		StudentID: st.ID, CourseID: c.algebra.ID, SemesterID: c.s1.ID,
	})
	assert.True(t, errors.Is(err, shared.ErrInvalidExamConfiguration))
	assert.Equal(t, 0, c.store.CourseGradeCount())
}

func TestComputeCourseGrade_UnknownCourse(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l1)

	h := command.NewComputeCourseGradeHandler(c.store, nil, quietLogger())
	_, err := h.Handle(context.Background(), command.ComputeCourseGradeCommand{
		StudentID: st.ID, CourseID: uuid.New(), SemesterID: c.s1.ID,
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestComputeCourseGradeCommand_Validate(t *testing.T) {
	assert.Error(t, command.ComputeCourseGradeCommand{}.Validate())
	assert.NoError(t, command.ComputeCourseGradeCommand{
		StudentID: uuid.New(), CourseID: uuid.New(), SemesterID: uuid.New(),
	}.Validate())
}

func TestCalculateGPA(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l1)
	c.grade(st, c.algebra, c.s1, "10")
	c.grade(st, c.physics, c.s1, "14")

	generator := uuid.New()
	events := &recorder{}
	h := command.NewCalculateGPAHandler(c.store, events, quietLogger())

	card, err := h.Handle(context.Background(), command.CalculateGPACommand{
		StudentID: st.ID, SemesterID: c.s1.ID, GeneratedBy: &generator,
	})
	require.NoError(t, err)
	assert.Equal(t, "12.67", card.GPA.String())
	assert.Equal(t, 9, card.TotalCredits)
	assert.Equal(t, &generator, card.GeneratedBy)

	stored, ok := c.store.ReportCard(st.ID, c.s1.ID)
	require.True(t, ok)
	assert.Equal(t, "12.67", stored.GPA.String())
	assert.Equal(t, []shared.EventType{shared.EventReportCardUpdated}, events.types())
}

func TestCalculateGPA_NoGrades(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l1)

	h := command.NewCalculateGPAHandler(c.store, nil, quietLogger())
	card, err := h.Handle(context.Background(), command.CalculateGPACommand{StudentID: st.ID, SemesterID: c.s2.ID})
	require.NoError(t, err)
	assert.True(t, card.GPA.IsZero())
	assert.Equal(t, 0, card.TotalCredits)
}

func TestCalculateGPA_OverwritesPreviousCard(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l1)
	c.grade(st, c.algebra, c.s1, "8")

	h := command.NewCalculateGPAHandler(c.store, nil, quietLogger())
	cmd := command.CalculateGPACommand{StudentID: st.ID, SemesterID: c.s1.ID}

	_, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)

	c.grade(st, c.algebra, c.s1, "16")
	card, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, "16", card.GPA.String())

	stored, _ := c.store.ReportCard(st.ID, c.s1.ID)
	assert.Equal(t, "16", stored.GPA.String())
}

func TestCalculateGPA_RejectsGradeOffScale(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l1)
	c.grade(st, c.algebra, c.s1, "12")
	c.grade(st, c.physics, c.s1, "25")

	h := command.NewCalculateGPAHandler(c.store, nil, quietLogger())
	_, err := h.Handle(context.Background(), command.CalculateGPACommand{StudentID: st.ID, SemesterID: c.s1.ID})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidCourseGrade)
	assert.True(t, shared.IsDataIntegrity(err))

	_, ok := c.store.ReportCard(st.ID, c.s1.ID)
	assert.False(t, ok)
}
