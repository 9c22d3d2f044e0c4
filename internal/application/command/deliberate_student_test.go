package command_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-registrar/deliberation/internal/application/command"
	"github.com/campus-registrar/deliberation/internal/domain/academic"
	"github.com/campus-registrar/deliberation/internal/domain/shared"
	"github.com/campus-registrar/deliberation/internal/domain/student"
)

func deliberate(t *testing.T, c *campus, st student.Student) (*command.DeliberationResult, error) {
	t.Helper()
	h := command.NewDeliberateStudentHandler(c.store, nil, quietLogger())
	return h.Handle(context.Background(), command.DeliberateStudentCommand{StudentID: st.ID, AcademicYearID: c.year.ID})
}

func TestDeliberate_Promoted(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l1)
	c.grade(st, c.algebra, c.s1, "10")
	c.grade(st, c.physics, c.s1, "14")
	c.grade(st, c.networks, c.s2, "9")
	c.fee(&c.l2, c.nextYear, "2100")

	events := &recorder{}
	h := command.NewDeliberateStudentHandler(c.store, events, quietLogger())
	res, err := h.Handle(context.Background(), command.DeliberateStudentCommand{StudentID: st.ID, AcademicYearID: c.year.ID})
	require.NoError(t, err)

	// S1: 12.67 over 9 credits, S2: 9 over 5 credits.
	// (12.67*9 + 9*5) / 14 = 159.03 / 14 = 11.359...
	p := res.Promotion
	assert.Equal(t, "11.36", p.AnnualGPA.String())
	assert.Equal(t, 14, res.AnnualCredits)
	assert.Equal(t, student.DecisionPromoted, p.Decision)
	assert.Equal(t, c.l1.ID, p.LevelFromID)
	assert.Equal(t, c.l2.ID, p.LevelToID)
	assert.Equal(t, c.program.ID, p.ProgramID)
	assert.Equal(t, "Admitted to L2", p.Remarks)
	assert.Len(t, res.ReportCards, 2)

	stored, ok := c.store.Promotion(st.ID, c.year.ID)
	require.True(t, ok)
	assert.Equal(t, p.Decision, stored.Decision)

	enrollment, ok := c.store.Enrollment(st.ID, c.nextYear.ID)
	require.True(t, ok)
	assert.Equal(t, c.l2.ID, enrollment.LevelID)
	assert.Equal(t, c.program.ID, enrollment.ProgramID)
	assert.Equal(t, student.EnrollmentEnrolled, enrollment.Status)

	balance, ok := c.store.Balance(st.ID, c.nextYear.ID)
	require.True(t, ok)
	assert.Equal(t, "2100.00", balance.TotalDue.StringFixed(2))
	assert.True(t, balance.TotalPaid.IsZero())

	assert.ElementsMatch(t, []shared.EventType{
		shared.EventReportCardUpdated,
		shared.EventReportCardUpdated,
		shared.EventPromotionDecided,
		shared.EventStudentEnrolled,
		shared.EventBalanceOpened,
	}, events.types())
}

func TestDeliberate_ThresholdIsInclusive(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l1)
	c.grade(st, c.algebra, c.s1, "10.00")
	c.grade(st, c.networks, c.s2, "10.00")

	res, err := deliberate(t, c, st)
	require.NoError(t, err)
	assert.Equal(t, "10", res.Promotion.AnnualGPA.String())
	assert.Equal(t, student.DecisionPromoted, res.Promotion.Decision)
}

func TestDeliberate_DecidesOnRoundedGPA(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l1)
	c.grade(st, c.algebra, c.s1, "9.99")
	c.grade(st, c.physics, c.s1, "10.00")

	// (9.99*3 + 10*6) / 9 = 9.9967 before rounding.
	mean := decimal.RequireFromString("89.97").Div(decimal.NewFromInt(9))
	require.True(t, mean.LessThan(decimal.NewFromInt(10)))

	res, err := deliberate(t, c, st)
	require.NoError(t, err)

	card, ok := c.store.ReportCard(st.ID, c.s1.ID)
	require.True(t, ok)
	assert.Equal(t, "10", card.GPA.String())
	assert.Equal(t, "10", res.Promotion.AnnualGPA.String())
	assert.Equal(t, student.DecisionPromoted, res.Promotion.Decision)
	assert.Equal(t, c.l2.ID, res.Promotion.LevelToID)
}

func TestDeliberate_RepeatedStillEnrolled(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l1)
	c.grade(st, c.algebra, c.s1, "9.99")
	c.grade(st, c.networks, c.s2, "9.99")

	res, err := deliberate(t, c, st)
	require.NoError(t, err)
	assert.Equal(t, student.DecisionRepeated, res.Promotion.Decision)
	assert.Equal(t, c.l1.ID, res.Promotion.LevelToID)
	assert.Equal(t, student.RemarkRepeat, res.Promotion.Remarks)

	enrollment, ok := c.store.Enrollment(st.ID, c.nextYear.ID)
	require.True(t, ok)
	assert.Equal(t, c.l1.ID, enrollment.LevelID)

	balance, ok := c.store.Balance(st.ID, c.nextYear.ID)
	require.True(t, ok)
	assert.Equal(t, "1500.00", balance.TotalDue.StringFixed(2))
}

func TestDeliberate_OnlyFirstSemesterGraded(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l1)
	c.grade(st, c.algebra, c.s1, "10")
	c.grade(st, c.physics, c.s1, "14")

	res, err := deliberate(t, c, st)
	require.NoError(t, err)

	s1, ok := c.store.ReportCard(st.ID, c.s1.ID)
	require.True(t, ok)
	assert.True(t, s1.GPA.Equal(res.Promotion.AnnualGPA))
	assert.Equal(t, s1.TotalCredits, res.AnnualCredits)
}

func TestDeliberate_YearWithSingleSemester(t *testing.T) {
	c := newCampus()
	year := academic.AcademicYear{ID: uuid.New(), Name: "short", StartDate: c.year.StartDate.AddDate(-1, 0, 0)}
	c.store.AddAcademicYear(year)
	sem := academic.Semester{ID: uuid.New(), AcademicYearID: year.ID, Type: academic.SemesterSecond}
	c.store.AddSemester(sem)

	st := c.student("M001", c.l1)
	c.grade(st, c.networks, sem, "12")

	h := command.NewDeliberateStudentHandler(c.store, nil, quietLogger())
	res, err := h.Handle(context.Background(), command.DeliberateStudentCommand{StudentID: st.ID, AcademicYearID: year.ID})
	require.NoError(t, err)
	assert.Equal(t, "12", res.Promotion.AnnualGPA.String())
	assert.Len(t, res.ReportCards, 1)

	// The next year after "short" is c.year.
	_, ok := c.store.Enrollment(st.ID, c.year.ID)
	assert.True(t, ok)
}

func TestDeliberate_TerminalLevel(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l3)
	c.grade(st, c.algebra, c.s1, "15")

	res, err := deliberate(t, c, st)
	require.NoError(t, err)
	assert.Equal(t, student.DecisionPromoted, res.Promotion.Decision)
	assert.Equal(t, c.l3.ID, res.Promotion.LevelToID)
	assert.Equal(t, student.RemarkProgramComplete, res.Promotion.Remarks)
	assert.True(t, res.ProgramCompleted)
}

func TestDeliberate_NoSemestersDefined(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l1)

	h := command.NewDeliberateStudentHandler(c.store, nil, quietLogger())
	_, err := h.Handle(context.Background(), command.DeliberateStudentCommand{StudentID: st.ID, AcademicYearID: c.nextYear.ID})
	assert.True(t, errors.Is(err, shared.ErrNoSemestersDefined))
	assert.Equal(t, 0, c.store.PromotionCount())
}

func TestDeliberate_MissingPlacement(t *testing.T) {
	c := newCampus()

	noProgram := student.Student{ID: uuid.New(), Matricule: "M100", CurrentLevelID: &c.l1.ID}
	c.store.AddStudent(noProgram)
	_, err := deliberate(t, c, noProgram)
	assert.True(t, errors.Is(err, shared.ErrMissingProgram))

	noLevel := student.Student{ID: uuid.New(), Matricule: "M101", ProgramID: &c.program.ID}
	c.store.AddStudent(noLevel)
	_, err = deliberate(t, c, noLevel)
	assert.True(t, errors.Is(err, shared.ErrMissingCurrentLevel))

	assert.Equal(t, 0, c.store.PromotionCount())
}

func TestDeliberate_UnknownStudent(t *testing.T) {
	c := newCampus()
	_, err := deliberate(t, c, student.Student{ID: uuid.New()})
	assert.True(t, errors.Is(err, shared.ErrStudentNotFound))
}

func TestDeliberate_CascadeFailureRollsBackPromotion(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l1)
	c.grade(st, c.algebra, c.s1, "15")

	boom := errors.New("disk full")
	c.store.FailOn("Balances.CreateIfAbsent", boom)

	_, err := deliberate(t, c, st)
	assert.ErrorIs(t, err, boom)

	_, ok := c.store.Promotion(st.ID, c.year.ID)
	assert.False(t, ok, "promotion must not survive a failed cascade")
	_, ok = c.store.Enrollment(st.ID, c.nextYear.ID)
	assert.False(t, ok)
	_, ok = c.store.ReportCard(st.ID, c.s1.ID)
	assert.False(t, ok)

	c.store.FailOn("Balances.CreateIfAbsent", nil)
	_, err = deliberate(t, c, st)
	require.NoError(t, err)
	_, ok = c.store.Promotion(st.ID, c.year.ID)
	assert.True(t, ok)
}

func TestDeliberate_RerunOverwrites(t *testing.T) {
	c := newCampus()
	st := c.student("M001", c.l1)
	c.grade(st, c.algebra, c.s1, "8")

	first, err := deliberate(t, c, st)
	require.NoError(t, err)
	assert.Equal(t, student.DecisionRepeated, first.Promotion.Decision)

	c.grade(st, c.algebra, c.s1, "12")
	second, err := deliberate(t, c, st)
	require.NoError(t, err)
	assert.Equal(t, student.DecisionPromoted, second.Promotion.Decision)
	assert.Equal(t, first.Promotion.ID, second.Promotion.ID)

	assert.Equal(t, 1, c.store.PromotionCount())
	assert.Equal(t, 1, c.store.EnrollmentCount())
	assert.Equal(t, 1, c.store.BalanceCount())
	assert.False(t, second.Cascade.EnrollmentCreated)

	// The enrollment created by the first run is kept.
	enrollment, _ := c.store.Enrollment(st.ID, c.nextYear.ID)
	assert.Equal(t, c.l1.ID, enrollment.LevelID)
}
