package command_test

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campus-registrar/deliberation/internal/domain/academic"
	"github.com/campus-registrar/deliberation/internal/domain/finance"
	"github.com/campus-registrar/deliberation/internal/domain/shared"
	"github.com/campus-registrar/deliberation/internal/domain/student"
	"github.com/campus-registrar/deliberation/internal/infrastructure/persistence/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder is an EventPublisher that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []shared.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

// campus is a small university: two consecutive years, the first one split
// in two semesters, three levels and one program.
type campus struct {
	store *memory.Store

	year, nextYear academic.AcademicYear
	s1, s2         academic.Semester
	l1, l2, l3     academic.Level
	program        academic.Program

	// Courses: algebra (3 credits) and physics (6 credits) in S1, networks
	// (5 credits) in S2.
	algebra, physics, networks academic.Course
}

func newCampus() *campus {
	c := &campus{store: memory.NewStore()}

	c.year = academic.AcademicYear{ID: uuid.New(), Name: "2024-2025",
		StartDate: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)}
	c.nextYear = academic.AcademicYear{ID: uuid.New(), Name: "2025-2026",
		StartDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)}
	c.store.AddAcademicYear(c.year)
	c.store.AddAcademicYear(c.nextYear)

	c.s1 = academic.Semester{ID: uuid.New(), AcademicYearID: c.year.ID, Type: academic.SemesterFirst}
	c.s2 = academic.Semester{ID: uuid.New(), AcademicYearID: c.year.ID, Type: academic.SemesterSecond}
	c.store.AddSemester(c.s1)
	c.store.AddSemester(c.s2)

	c.l1 = academic.Level{ID: uuid.New(), Name: "L1", Order: 1}
	c.l2 = academic.Level{ID: uuid.New(), Name: "L2", Order: 2}
	c.l3 = academic.Level{ID: uuid.New(), Name: "L3", Order: 3}
	for _, l := range []academic.Level{c.l1, c.l2, c.l3} {
		c.store.AddLevel(l)
	}

	c.program = academic.Program{ID: uuid.New(), Code: "INF", Name: "Computer Science", DefaultTuition: dec("1500")}
	c.store.AddProgram(c.program)

	c.algebra = c.course("ALG101", 3, academic.SemesterFirst)
	c.physics = c.course("PHY101", 6, academic.SemesterFirst)
	c.networks = c.course("NET101", 5, academic.SemesterSecond)

	return c
}

func (c *campus) course(code string, credits int, sem academic.SemesterType) academic.Course {
	course := academic.Course{ID: uuid.New(), ProgramID: c.program.ID, LevelID: c.l1.ID,
		Code: code, Name: code, Credits: credits, SemesterType: sem}
	c.store.AddCourse(course)
	return course
}

func (c *campus) student(matricule string, level academic.Level) student.Student {
	s := student.Student{ID: uuid.New(), Matricule: matricule, FirstName: "Student", LastName: matricule,
		ProgramID: &c.program.ID, CurrentLevelID: &level.ID}
	c.store.AddStudent(s)
	return s
}

func (c *campus) exam(course academic.Course, sem academic.Semester, maxScore, weight string) academic.Exam {
	e := academic.Exam{ID: uuid.New(), CourseID: course.ID, SemesterID: sem.ID, Name: course.Code,
		MaxScore: dec(maxScore), Weight: dec(weight)}
	c.store.AddExam(e)
	return e
}

func (c *campus) grade(st student.Student, course academic.Course, sem academic.Semester, score string) {
	c.store.AddCourseGrade(academic.CourseGrade{StudentID: st.ID, CourseID: course.ID, SemesterID: sem.ID,
		FinalScore: dec(score), Validated: true})
}

func (c *campus) fee(level *academic.Level, year academic.AcademicYear, amount string) {
	f := finance.FeeSchedule{ID: uuid.New(), ProgramID: c.program.ID, AcademicYearID: year.ID, Amount: dec(amount)}
	if level != nil {
		f.LevelID = &level.ID
	}
	c.store.AddFeeSchedule(f)
}
