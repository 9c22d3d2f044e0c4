package memory

import (
	"bytes"
	"context"
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campus-registrar/deliberation/internal/domain/academic"
	"github.com/campus-registrar/deliberation/internal/domain/finance"
	"github.com/campus-registrar/deliberation/internal/domain/shared"
	"github.com/campus-registrar/deliberation/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACADEMIC
// ══════════════════════════════════════════════════════════════════════════════

type calendarRepo struct{ *tx }

func (r calendarRepo) GetAcademicYear(ctx context.Context, id uuid.UUID) (*academic.AcademicYear, error) {
	if err := r.check(ctx, "Calendar.GetAcademicYear"); err != nil {
		return nil, err
	}
	y, ok := r.d().years[id]
	if !ok {
		return nil, shared.ErrAcademicYearNotFound
	}
	return &y, nil
}

func (r calendarRepo) NextAcademicYear(ctx context.Context, after academic.AcademicYear) (*academic.AcademicYear, error) {
	if err := r.check(ctx, "Calendar.NextAcademicYear"); err != nil {
		return nil, err
	}
	var next *academic.AcademicYear
	for _, y := range r.d().years {
		if !y.StartDate.After(after.StartDate) {
			continue
		}
		if next == nil || y.StartDate.Before(next.StartDate) {
			y := y
			next = &y
		}
	}
	if next == nil {
		return nil, shared.ErrNoNextAcademicYear
	}
	return next, nil
}

func (r calendarRepo) ListSemesters(ctx context.Context, academicYearID uuid.UUID) ([]academic.Semester, error) {
	if err := r.check(ctx, "Calendar.ListSemesters"); err != nil {
		return nil, err
	}
	var out []academic.Semester
	for _, s := range r.d().semesters {
		if s.AcademicYearID == academicYearID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (r calendarRepo) GetSemester(ctx context.Context, id uuid.UUID) (*academic.Semester, error) {
	if err := r.check(ctx, "Calendar.GetSemester"); err != nil {
		return nil, err
	}
	s, ok := r.d().semesters[id]
	if !ok {
		return nil, shared.ErrSemesterNotFound
	}
	return &s, nil
}

type curriculumRepo struct{ *tx }

func (r curriculumRepo) GetProgram(ctx context.Context, id uuid.UUID) (*academic.Program, error) {
	if err := r.check(ctx, "Curriculum.GetProgram"); err != nil {
		return nil, err
	}
	p, ok := r.d().programs[id]
	if !ok {
		return nil, shared.ErrProgramNotFound
	}
	return &p, nil
}

func (r curriculumRepo) GetLevel(ctx context.Context, id uuid.UUID) (*academic.Level, error) {
	if err := r.check(ctx, "Curriculum.GetLevel"); err != nil {
		return nil, err
	}
	l, ok := r.d().levels[id]
	if !ok {
		return nil, shared.ErrLevelNotFound
	}
	return &l, nil
}

func (r curriculumRepo) GetLevelByOrder(ctx context.Context, order int) (*academic.Level, error) {
	if err := r.check(ctx, "Curriculum.GetLevelByOrder"); err != nil {
		return nil, err
	}
	for _, l := range r.d().levels {
		if l.Order == order {
			return &l, nil
		}
	}
	return nil, shared.ErrLevelNotFound
}

func (r curriculumRepo) GetCourse(ctx context.Context, id uuid.UUID) (*academic.Course, error) {
	if err := r.check(ctx, "Curriculum.GetCourse"); err != nil {
		return nil, err
	}
	c, ok := r.d().courses[id]
	if !ok {
		return nil, shared.ErrCourseNotFound
	}
	return &c, nil
}

type examRepo struct{ *tx }

func (r examRepo) ListExams(ctx context.Context, courseID, semesterID uuid.UUID) ([]academic.Exam, error) {
	if err := r.check(ctx, "Exams.ListExams"); err != nil {
		return nil, err
	}
	var out []academic.Exam
	for _, e := range r.d().exams {
		if e.CourseID == courseID && e.SemesterID == semesterID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	return out, nil
}

func (r examRepo) ListResults(ctx context.Context, studentID uuid.UUID, examIDs []uuid.UUID) (map[uuid.UUID]academic.ExamResult, error) {
	if err := r.check(ctx, "Exams.ListResults"); err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]academic.ExamResult, len(examIDs))
	for _, id := range examIDs {
		if res, ok := r.d().results[resultKey{studentID, id}]; ok {
			out[id] = res
		}
	}
	return out, nil
}

type gradeRepo struct{ *tx }

func (r gradeRepo) UpsertCourseGrade(ctx context.Context, grade *academic.CourseGrade) error {
	if err := r.check(ctx, "Grades.UpsertCourseGrade"); err != nil {
		return err
	}
	r.d().grades[gradeKey{grade.StudentID, grade.CourseID, grade.SemesterID}] = *grade
	return nil
}

func (r gradeRepo) ListGradedCourses(ctx context.Context, studentID, semesterID uuid.UUID) ([]academic.GradedCourse, error) {
	if err := r.check(ctx, "Grades.ListGradedCourses"); err != nil {
		return nil, err
	}
	var out []academic.GradedCourse
	for k, g := range r.d().grades {
		if k.student != studentID || k.semester != semesterID {
			continue
		}
		course, ok := r.d().courses[k.course]
		if !ok {
			continue
		}
		out = append(out, academic.GradedCourse{Grade: g, Credits: course.Credits})
	}
	return out, nil
}

func (r gradeRepo) UpsertReportCard(ctx context.Context, card *academic.ReportCard) error {
	if err := r.check(ctx, "Grades.UpsertReportCard"); err != nil {
		return err
	}
	r.d().cards[studentSemester{card.StudentID, card.SemesterID}] = *card
	return nil
}

func (r gradeRepo) GetReportCard(ctx context.Context, studentID, semesterID uuid.UUID) (*academic.ReportCard, error) {
	if err := r.check(ctx, "Grades.GetReportCard"); err != nil {
		return nil, err
	}
	c, ok := r.d().cards[studentSemester{studentID, semesterID}]
	if !ok {
		return nil, shared.ErrReportCardNotFound
	}
	return &c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT
// ══════════════════════════════════════════════════════════════════════════════

type studentRepo struct{ *tx }

func (r studentRepo) GetByID(ctx context.Context, id uuid.UUID) (*student.Student, error) {
	if err := r.check(ctx, "Students.GetByID"); err != nil {
		return nil, err
	}
	s, ok := r.d().students[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return &s, nil
}

func (r studentRepo) ListIDs(ctx context.Context, filter student.CohortFilter) ([]uuid.UUID, error) {
	if err := r.check(ctx, "Students.ListIDs"); err != nil {
		return nil, err
	}
	var matched []student.Student
	for _, s := range r.d().students {
		if filter.ProgramID != nil && (s.ProgramID == nil || *s.ProgramID != *filter.ProgramID) {
			continue
		}
		if filter.LevelID != nil && (s.CurrentLevelID == nil || *s.CurrentLevelID != *filter.LevelID) {
			continue
		}
		matched = append(matched, s)
	}
	slices.SortFunc(matched, func(a, b student.Student) int {
		if a.Matricule != b.Matricule {
			if a.Matricule < b.Matricule {
				return -1
			}
			return 1
		}
		return bytes.Compare(a.ID[:], b.ID[:])
	})

	ids := make([]uuid.UUID, 0, len(matched))
	for _, s := range matched {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

type promotionRepo struct{ *tx }

func (r promotionRepo) Upsert(ctx context.Context, p *student.Promotion) error {
	if err := r.check(ctx, "Promotions.Upsert"); err != nil {
		return err
	}
	key := studentYear{p.StudentID, p.AcademicYearID}
	if existing, ok := r.d().promotions[key]; ok {
		p.ID = existing.ID
	}
	r.d().promotions[key] = *p
	return nil
}

func (r promotionRepo) Get(ctx context.Context, studentID, academicYearID uuid.UUID) (*student.Promotion, error) {
	if err := r.check(ctx, "Promotions.Get"); err != nil {
		return nil, err
	}
	p, ok := r.d().promotions[studentYear{studentID, academicYearID}]
	if !ok {
		return nil, shared.ErrPromotionNotFound
	}
	return &p, nil
}

type enrollmentRepo struct{ *tx }

func (r enrollmentRepo) CreateIfAbsent(ctx context.Context, e *student.Enrollment) (bool, error) {
	if err := r.check(ctx, "Enrollments.CreateIfAbsent"); err != nil {
		return false, err
	}
	key := studentYear{e.StudentID, e.AcademicYearID}
	if _, ok := r.d().enrollments[key]; ok {
		return false, nil
	}
	r.d().enrollments[key] = *e
	return true, nil
}

func (r enrollmentRepo) Get(ctx context.Context, studentID, academicYearID uuid.UUID) (*student.Enrollment, error) {
	if err := r.check(ctx, "Enrollments.Get"); err != nil {
		return nil, err
	}
	e, ok := r.d().enrollments[studentYear{studentID, academicYearID}]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r enrollmentRepo) GetActive(ctx context.Context, studentID, academicYearID uuid.UUID) (*student.Enrollment, error) {
	if err := r.check(ctx, "Enrollments.GetActive"); err != nil {
		return nil, err
	}
	e, ok := r.d().enrollments[studentYear{studentID, academicYearID}]
	if !ok || !e.IsActive {
		return nil, nil
	}
	return &e, nil
}

func (r enrollmentRepo) ListByYear(ctx context.Context, academicYearID uuid.UUID) ([]student.Enrollment, error) {
	if err := r.check(ctx, "Enrollments.ListByYear"); err != nil {
		return nil, err
	}
	var out []student.Enrollment
	for k, e := range r.d().enrollments {
		if k.year == academicYearID && e.IsActive {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].StudentID[:], out[j].StudentID[:]) < 0 })
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FINANCE
// ══════════════════════════════════════════════════════════════════════════════

type balanceRepo struct{ *tx }

func (r balanceRepo) CreateIfAbsent(ctx context.Context, b *finance.Balance) (bool, error) {
	if err := r.check(ctx, "Balances.CreateIfAbsent"); err != nil {
		return false, err
	}
	key := studentYear{b.StudentID, b.AcademicYearID}
	if _, ok := r.d().balances[key]; ok {
		return false, nil
	}
	r.d().balances[key] = *b
	return true, nil
}

func (r balanceRepo) Get(ctx context.Context, studentID, academicYearID uuid.UUID) (*finance.Balance, error) {
	if err := r.check(ctx, "Balances.Get"); err != nil {
		return nil, err
	}
	b, ok := r.d().balances[studentYear{studentID, academicYearID}]
	if !ok {
		return nil, shared.ErrBalanceNotFound
	}
	return &b, nil
}

func (r balanceRepo) Update(ctx context.Context, b *finance.Balance) error {
	if err := r.check(ctx, "Balances.Update"); err != nil {
		return err
	}
	key := studentYear{b.StudentID, b.AcademicYearID}
	if _, ok := r.d().balances[key]; !ok {
		return shared.ErrBalanceNotFound
	}
	r.d().balances[key] = *b
	return nil
}

type feeRepo struct{ *tx }

func (r feeRepo) Find(ctx context.Context, programID uuid.UUID, levelID *uuid.UUID, academicYearID uuid.UUID) (*finance.FeeSchedule, error) {
	if err := r.check(ctx, "Fees.Find"); err != nil {
		return nil, err
	}
	for _, f := range r.d().fees {
		if f.ProgramID != programID || f.AcademicYearID != academicYearID {
			continue
		}
		switch {
		case levelID == nil && f.LevelID == nil:
			return &f, nil
		case levelID != nil && f.LevelID != nil && *levelID == *f.LevelID:
			return &f, nil
		}
	}
	return nil, nil
}

type paymentRepo struct{ *tx }

func (r paymentRepo) Get(ctx context.Context, id uuid.UUID) (*finance.Payment, error) {
	if err := r.check(ctx, "Payments.Get"); err != nil {
		return nil, err
	}
	p, ok := r.d().payments[id]
	if !ok {
		return nil, shared.ErrPaymentNotFound
	}
	return &p, nil
}

func (r paymentRepo) UpdateStatus(ctx context.Context, p *finance.Payment) error {
	if err := r.check(ctx, "Payments.UpdateStatus"); err != nil {
		return err
	}
	stored, ok := r.d().payments[p.ID]
	if !ok {
		return shared.ErrPaymentNotFound
	}
	stored.Status = p.Status
	stored.PaymentDate = p.PaymentDate
	r.d().payments[p.ID] = stored
	return nil
}

func (r paymentRepo) SumCompleted(ctx context.Context, studentID, academicYearID uuid.UUID) (decimal.Decimal, error) {
	if err := r.check(ctx, "Payments.SumCompleted"); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range r.d().payments {
		if p.StudentID == studentID && p.AcademicYearID == academicYearID && p.Status == finance.PaymentCompleted {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}
