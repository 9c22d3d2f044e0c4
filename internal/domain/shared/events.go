package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each is published after the transaction that produced
// it has committed.
const (
	// Grading events
	EventCourseGradeComputed EventType = "grade.course_computed"
	EventReportCardUpdated   EventType = "grade.report_card_updated"

	// Deliberation events
	EventPromotionDecided EventType = "deliberation.promotion_decided"
	EventStudentEnrolled  EventType = "enrollment.student_enrolled"

	// Finance events
	EventBalanceOpened       EventType = "finance.balance_opened"
	EventBalanceRecalculated EventType = "finance.balance_recalculated"
	EventPaymentApproved     EventType = "finance.payment_approved"

	// System events
	EventCohortDeliberated EventType = "system.cohort_deliberated"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Grading Events
// ═══════════════════════════════════════════════════════════════════════════

// CourseGradeComputedEvent is emitted when a course grade is (re)computed.
type CourseGradeComputedEvent struct {
	BaseEvent
	CourseID   string `json:"course_id"`
	SemesterID string `json:"semester_id"`
	FinalScore string `json:"final_score"`
	Validated  bool   `json:"validated"`
}

// Payload implements Event interface.
func (e CourseGradeComputedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id":   e.CourseID,
		"semester_id": e.SemesterID,
		"final_score": e.FinalScore,
		"validated":   e.Validated,
	}
}

// NewCourseGradeComputedEvent creates a new CourseGradeComputedEvent.
func NewCourseGradeComputedEvent(studentID, courseID, semesterID, finalScore string, validated bool) CourseGradeComputedEvent {
	return CourseGradeComputedEvent{
		BaseEvent:  NewBaseEvent(EventCourseGradeComputed, studentID),
		CourseID:   courseID,
		SemesterID: semesterID,
		FinalScore: finalScore,
		Validated:  validated,
	}
}

// ReportCardUpdatedEvent is emitted when a semester report card is recomputed.
type ReportCardUpdatedEvent struct {
	BaseEvent
	SemesterID   string `json:"semester_id"`
	GPA          string `json:"gpa"`
	TotalCredits int    `json:"total_credits"`
}

// Payload implements Event interface.
func (e ReportCardUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"semester_id":   e.SemesterID,
		"gpa":           e.GPA,
		"total_credits": e.TotalCredits,
	}
}

// NewReportCardUpdatedEvent creates a new ReportCardUpdatedEvent.
func NewReportCardUpdatedEvent(studentID, semesterID, gpa string, totalCredits int) ReportCardUpdatedEvent {
	return ReportCardUpdatedEvent{
		BaseEvent:    NewBaseEvent(EventReportCardUpdated, studentID),
		SemesterID:   semesterID,
		GPA:          gpa,
		TotalCredits: totalCredits,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Deliberation Events
// ═══════════════════════════════════════════════════════════════════════════

// PromotionDecidedEvent is emitted when a student's annual decision is recorded.
type PromotionDecidedEvent struct {
	BaseEvent
	AcademicYearID string `json:"academic_year_id"`
	Decision       string `json:"decision"`
	AnnualGPA      string `json:"annual_gpa"`
	LevelFromID    string `json:"level_from_id"`
	LevelToID      string `json:"level_to_id"`
}

// Payload implements Event interface.
func (e PromotionDecidedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"academic_year_id": e.AcademicYearID,
		"decision":         e.Decision,
		"annual_gpa":       e.AnnualGPA,
		"level_from_id":    e.LevelFromID,
		"level_to_id":      e.LevelToID,
	}
}

// NewPromotionDecidedEvent creates a new PromotionDecidedEvent.
func NewPromotionDecidedEvent(studentID, yearID, decision, annualGPA, levelFromID, levelToID string) PromotionDecidedEvent {
	return PromotionDecidedEvent{
		BaseEvent:      NewBaseEvent(EventPromotionDecided, studentID),
		AcademicYearID: yearID,
		Decision:       decision,
		AnnualGPA:      annualGPA,
		LevelFromID:    levelFromID,
		LevelToID:      levelToID,
	}
}

// StudentEnrolledEvent is emitted when the cascade creates a next-year enrollment.
type StudentEnrolledEvent struct {
	BaseEvent
	AcademicYearID string `json:"academic_year_id"`
	ProgramID      string `json:"program_id"`
	LevelID        string `json:"level_id"`
}

// Payload implements Event interface.
func (e StudentEnrolledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"academic_year_id": e.AcademicYearID,
		"program_id":       e.ProgramID,
		"level_id":         e.LevelID,
	}
}

// NewStudentEnrolledEvent creates a new StudentEnrolledEvent.
func NewStudentEnrolledEvent(studentID, yearID, programID, levelID string) StudentEnrolledEvent {
	return StudentEnrolledEvent{
		BaseEvent:      NewBaseEvent(EventStudentEnrolled, studentID),
		AcademicYearID: yearID,
		ProgramID:      programID,
		LevelID:        levelID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Finance Events
// ═══════════════════════════════════════════════════════════════════════════

// BalanceChangedEvent is emitted when a balance is opened, recalculated or credited.
type BalanceChangedEvent struct {
	BaseEvent
	AcademicYearID string `json:"academic_year_id"`
	TotalDue       string `json:"total_due"`
	TotalPaid      string `json:"total_paid"`
}

// Payload implements Event interface.
func (e BalanceChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"academic_year_id": e.AcademicYearID,
		"total_due":        e.TotalDue,
		"total_paid":       e.TotalPaid,
	}
}

// NewBalanceChangedEvent creates a BalanceChangedEvent of the given type.
func NewBalanceChangedEvent(eventType EventType, studentID, yearID, totalDue, totalPaid string) BalanceChangedEvent {
	return BalanceChangedEvent{
		BaseEvent:      NewBaseEvent(eventType, studentID),
		AcademicYearID: yearID,
		TotalDue:       totalDue,
		TotalPaid:      totalPaid,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// CohortDeliberatedEvent is emitted when a batch deliberation run finishes.
type CohortDeliberatedEvent struct {
	BaseEvent
	Total    int           `json:"total"`
	Promoted int           `json:"promoted"`
	Repeated int           `json:"repeated"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e CohortDeliberatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"total":    e.Total,
		"promoted": e.Promoted,
		"repeated": e.Repeated,
		"failed":   e.Failed,
		"duration": e.Duration.String(),
	}
}

// NewCohortDeliberatedEvent creates a new CohortDeliberatedEvent keyed by academic year.
func NewCohortDeliberatedEvent(yearID string, total, promoted, repeated, failed int, duration time.Duration) CohortDeliberatedEvent {
	return CohortDeliberatedEvent{
		BaseEvent: NewBaseEvent(EventCohortDeliberated, yearID),
		Total:     total,
		Promoted:  promoted,
		Repeated:  repeated,
		Failed:    failed,
		Duration:  duration,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
