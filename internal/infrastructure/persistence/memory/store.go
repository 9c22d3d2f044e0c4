// Package memory is an in-process implementation of every repository and of
// the command unit of work. Transactions are serialized and roll back by
// restoring a snapshot, which gives tests the same all-or-nothing behavior as
// the PostgreSQL store.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/campus-registrar/deliberation/internal/application/command"
	"github.com/campus-registrar/deliberation/internal/domain/academic"
	"github.com/campus-registrar/deliberation/internal/domain/finance"
	"github.com/campus-registrar/deliberation/internal/domain/student"
)

type studentYear struct {
	student uuid.UUID
	year    uuid.UUID
}

type studentSemester struct {
	student  uuid.UUID
	semester uuid.UUID
}

type gradeKey struct {
	student  uuid.UUID
	course   uuid.UUID
	semester uuid.UUID
}

type resultKey struct {
	student uuid.UUID
	exam    uuid.UUID
}

type dataset struct {
	years       map[uuid.UUID]academic.AcademicYear
	semesters   map[uuid.UUID]academic.Semester
	levels      map[uuid.UUID]academic.Level
	programs    map[uuid.UUID]academic.Program
	courses     map[uuid.UUID]academic.Course
	exams       map[uuid.UUID]academic.Exam
	results     map[resultKey]academic.ExamResult
	grades      map[gradeKey]academic.CourseGrade
	cards       map[studentSemester]academic.ReportCard
	students    map[uuid.UUID]student.Student
	promotions  map[studentYear]student.Promotion
	enrollments map[studentYear]student.Enrollment
	balances    map[studentYear]finance.Balance
	fees        map[uuid.UUID]finance.FeeSchedule
	payments    map[uuid.UUID]finance.Payment
}

func newDataset() *dataset {
	return &dataset{
		years:       map[uuid.UUID]academic.AcademicYear{},
		semesters:   map[uuid.UUID]academic.Semester{},
		levels:      map[uuid.UUID]academic.Level{},
		programs:    map[uuid.UUID]academic.Program{},
		courses:     map[uuid.UUID]academic.Course{},
		exams:       map[uuid.UUID]academic.Exam{},
		results:     map[resultKey]academic.ExamResult{},
		grades:      map[gradeKey]academic.CourseGrade{},
		cards:       map[studentSemester]academic.ReportCard{},
		students:    map[uuid.UUID]student.Student{},
		promotions:  map[studentYear]student.Promotion{},
		enrollments: map[studentYear]student.Enrollment{},
		balances:    map[studentYear]finance.Balance{},
		fees:        map[uuid.UUID]finance.FeeSchedule{},
		payments:    map[uuid.UUID]finance.Payment{},
	}
}

// clone copies every table. Values are plain structs, so a shallow map copy
// is a full snapshot.
func (d *dataset) clone() *dataset {
	return &dataset{
		years:       maps.Clone(d.years),
		semesters:   maps.Clone(d.semesters),
		levels:      maps.Clone(d.levels),
		programs:    maps.Clone(d.programs),
		courses:     maps.Clone(d.courses),
		exams:       maps.Clone(d.exams),
		results:     maps.Clone(d.results),
		grades:      maps.Clone(d.grades),
		cards:       maps.Clone(d.cards),
		students:    maps.Clone(d.students),
		promotions:  maps.Clone(d.promotions),
		enrollments: maps.Clone(d.enrollments),
		balances:    maps.Clone(d.balances),
		fees:        maps.Clone(d.fees),
		payments:    maps.Clone(d.payments),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store holds all tables in memory.
type Store struct {
	mu       sync.Mutex
	data     *dataset
	failures map[string]error
	txCount  int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		data:     newDataset(),
		failures: map[string]error{},
	}
}

// FailOn makes the named repository operation (e.g. "Balances.CreateIfAbsent")
// return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Transactions returns how many transactions were committed.
func (s *Store) Transactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

// WithinTx implements command.UnitOfWork. A cancelled context at commit time
// rolls the transaction back, as a database driver would.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos command.Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			panic(p)
		}
		if err != nil {
			s.data = snapshot
			return
		}
		s.txCount++
	}()

	if err = fn(ctx, s.repositories()); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return fmt.Errorf("memory: commit: %w", err)
	}
	return nil
}

func (s *Store) repositories() command.Repositories {
	tx := &tx{store: s}
	return command.Repositories{
		Calendar:    calendarRepo{tx},
		Curriculum:  curriculumRepo{tx},
		Exams:       examRepo{tx},
		Grades:      gradeRepo{tx},
		Students:    studentRepo{tx},
		Promotions:  promotionRepo{tx},
		Enrollments: enrollmentRepo{tx},
		Balances:    balanceRepo{tx},
		Fees:        feeRepo{tx},
		Payments:    paymentRepo{tx},
	}
}

// tx gives repositories access to the live dataset.
type tx struct {
	store *Store
}

func (t *tx) d() *dataset {
	return t.store.data
}

func (t *tx) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := t.store.failures[op]; ok {
		return err
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SEEDING
// ══════════════════════════════════════════════════════════════════════════════

// AddAcademicYear inserts or replaces a year.
func (s *Store) AddAcademicYear(y academic.AcademicYear) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.years[y.ID] = y
}

// AddSemester inserts or replaces a semester.
func (s *Store) AddSemester(sem academic.Semester) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.semesters[sem.ID] = sem
}

// AddLevel inserts or replaces a level.
func (s *Store) AddLevel(l academic.Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.levels[l.ID] = l
}

// AddProgram inserts or replaces a program.
func (s *Store) AddProgram(p academic.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.programs[p.ID] = p
}

// AddCourse inserts or replaces a course.
func (s *Store) AddCourse(c academic.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.courses[c.ID] = c
}

// AddExam inserts or replaces an exam.
func (s *Store) AddExam(e academic.Exam) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.exams[e.ID] = e
}

// AddExamResult inserts or replaces a result.
func (s *Store) AddExamResult(r academic.ExamResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.results[resultKey{r.StudentID, r.ExamID}] = r
}

// AddCourseGrade inserts or replaces a course grade.
func (s *Store) AddCourseGrade(g academic.CourseGrade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.grades[gradeKey{g.StudentID, g.CourseID, g.SemesterID}] = g
}

// AddStudent inserts or replaces a student.
func (s *Store) AddStudent(st student.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.students[st.ID] = st
}

// AddEnrollment inserts or replaces an enrollment.
func (s *Store) AddEnrollment(e student.Enrollment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.enrollments[studentYear{e.StudentID, e.AcademicYearID}] = e
}

// AddFeeSchedule inserts or replaces a fee.
func (s *Store) AddFeeSchedule(f finance.FeeSchedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.fees[f.ID] = f
}

// AddBalance inserts or replaces a balance.
func (s *Store) AddBalance(b finance.Balance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.balances[studentYear{b.StudentID, b.AcademicYearID}] = b
}

// AddPayment inserts or replaces a payment.
func (s *Store) AddPayment(p finance.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.payments[p.ID] = p
}

// ══════════════════════════════════════════════════════════════════════════════
// INSPECTION
// ══════════════════════════════════════════════════════════════════════════════

// CourseGrade returns a stored grade.
func (s *Store) CourseGrade(studentID, courseID, semesterID uuid.UUID) (academic.CourseGrade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.data.grades[gradeKey{studentID, courseID, semesterID}]
	return g, ok
}

// CourseGradeCount returns the number of stored grades.
func (s *Store) CourseGradeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.grades)
}

// ReportCard returns a stored report card.
func (s *Store) ReportCard(studentID, semesterID uuid.UUID) (academic.ReportCard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data.cards[studentSemester{studentID, semesterID}]
	return c, ok
}

// Promotion returns a stored promotion.
func (s *Store) Promotion(studentID, yearID uuid.UUID) (student.Promotion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.promotions[studentYear{studentID, yearID}]
	return p, ok
}

// PromotionCount returns the number of stored promotions.
func (s *Store) PromotionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.promotions)
}

// Enrollment returns a stored enrollment.
func (s *Store) Enrollment(studentID, yearID uuid.UUID) (student.Enrollment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data.enrollments[studentYear{studentID, yearID}]
	return e, ok
}

// EnrollmentCount returns the number of stored enrollments.
func (s *Store) EnrollmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.enrollments)
}

// Balance returns a stored balance.
func (s *Store) Balance(studentID, yearID uuid.UUID) (finance.Balance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data.balances[studentYear{studentID, yearID}]
	return b, ok
}

// BalanceCount returns the number of stored balances.
func (s *Store) BalanceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.balances)
}

// Payment returns a stored payment.
func (s *Store) Payment(id uuid.UUID) (finance.Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.payments[id]
	return p, ok
}
