package eventhandler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/campus-registrar/deliberation/internal/application/eventhandler"
	"github.com/campus-registrar/deliberation/internal/domain/shared"
	"github.com/campus-registrar/deliberation/internal/infrastructure/messaging"
)

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) Invalidate(ctx context.Context, studentID, yearID uuid.UUID) error {
	return m.Called(studentID, yearID).Error(0)
}

func (m *mockInvalidator) InvalidateStudent(ctx context.Context, studentID uuid.UUID) error {
	return m.Called(studentID).Error(0)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOnStandingChanged_PromotionDecided(t *testing.T) {
	studentID, yearID := uuid.New(), uuid.New()
	cache := &mockInvalidator{}
	cache.On("Invalidate", studentID, yearID).Return(nil).Once()

	h := eventhandler.NewOnStandingChangedHandler(cache, quietLogger())
	err := h.Handle(shared.NewPromotionDecidedEvent(studentID.String(), yearID.String(), "PROMOTED", "11.00", "a", "b"))
	require.NoError(t, err)
	cache.AssertExpectations(t)
}

func TestOnStandingChanged_ReportCardUpdated(t *testing.T) {
	studentID := uuid.New()
	cache := &mockInvalidator{}
	cache.On("InvalidateStudent", studentID).Return(errors.New("redis down")).Once()

	h := eventhandler.NewOnStandingChangedHandler(cache, quietLogger())
	err := h.Handle(shared.NewReportCardUpdatedEvent(studentID.String(), uuid.NewString(), "10.00", 30))
	assert.ErrorContains(t, err, "redis down")
	cache.AssertExpectations(t)
}

func TestOnStandingChanged_IgnoresForeignEvents(t *testing.T) {
	cache := &mockInvalidator{}
	h := eventhandler.NewOnStandingChangedHandler(cache, quietLogger())

	assert.NoError(t, h.Handle(shared.NewStudentEnrolledEvent(uuid.NewString(), uuid.NewString(), "p", "l")))
	assert.NoError(t, h.Handle(shared.NewCohortDeliberatedEvent("not-a-uuid", 1, 1, 0, 0, 0)))
	cache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	cache.AssertNotCalled(t, "InvalidateStudent", mock.Anything)
}

func TestOnStandingChanged_RegisteredOnBus(t *testing.T) {
	studentID, yearID := uuid.New(), uuid.New()
	cache := &mockInvalidator{}
	cache.On("Invalidate", studentID, yearID).Return(nil).Once()

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: quietLogger()})
	defer bus.Close()

	h := eventhandler.NewOnStandingChangedHandler(cache, quietLogger())
	require.NoError(t, h.Register(bus))

	require.NoError(t, bus.Publish(shared.NewPromotionDecidedEvent(studentID.String(), yearID.String(), "REPEATED", "8.00", "a", "a")))
	cache.AssertExpectations(t)
}
