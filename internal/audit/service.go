package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records reconciliation decisions for operators.
//
// Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// WithClock overrides the time source for CreatedAt.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.CallID == "" || e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogProcessed records a call whose analysis was handed to the processor.
func (s *Service) LogProcessed(ctx context.Context, callID, track string, retryCount int, message string) error {
	return s.Append(ctx, Event{
		Type:       EventTypeProcessed,
		CallID:     callID,
		Track:      track,
		RetryCount: retryCount,
		Message:    message,
	})
}

// LogDiscarded records a call dropped because of a non-recoverable status.
func (s *Service) LogDiscarded(ctx context.Context, callID, status string) error {
	return s.Append(ctx, Event{
		Type:    EventTypeDiscarded,
		CallID:  callID,
		Message: "terminal status " + status,
	})
}

// LogTrackSwitched records the completion loop handing a call to the analysis loop.
func (s *Service) LogTrackSwitched(ctx context.Context, callID, from, to string, retryCount int) error {
	return s.Append(ctx, Event{
		Type:       EventTypeTrackSwitched,
		CallID:     callID,
		Track:      to,
		RetryCount: retryCount,
		Message:    from + " -> " + to,
	})
}

// LogPermanentlyFailed records a call given up on.
func (s *Service) LogPermanentlyFailed(ctx context.Context, callID, track string, retryCount int, reason string) error {
	return s.Append(ctx, Event{
		Type:       EventTypePermanentlyFailed,
		CallID:     callID,
		Track:      track,
		RetryCount: retryCount,
		Message:    reason,
	})
}
