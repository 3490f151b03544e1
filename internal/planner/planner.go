// Package planner drives a schedule entry from an unsaved form through
// validation to storage, enforcing the legal lifecycle transitions.
package planner

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/timegrid"
)

// State is a lifecycle stage of an entry being edited.
type State string

const (
	StateDraft     State = "DRAFT"
	StateValidated State = "VALIDATED"
	StatePersisted State = "PERSISTED"
	StateDeleted   State = "DELETED"
)

// Store is the schedule backend the planner reads from and writes to.
type Store interface {
	List(ctx context.Context, groupID string, day *models.Weekday) ([]models.ScheduleEntry, error)
	Create(ctx context.Context, entry models.ScheduleEntry) (*models.ScheduleEntry, error)
	Update(ctx context.Context, entry models.ScheduleEntry) (*models.ScheduleEntry, error)
	Delete(ctx context.Context, groupID, id string) error
}

// Entry is a schedule entry together with its lifecycle state.
// An Entry is not safe for concurrent use.
type Entry struct {
	value     models.ScheduleEntry
	state     State
	excludeID string
}

// NewDraft starts a new, unsaved entry.
func NewDraft(value models.ScheduleEntry) *Entry {
	value.ID = ""
	return &Entry{value: value, state: StateDraft}
}

// Loaded wraps an entry that already exists in the store.
func Loaded(value models.ScheduleEntry) *Entry {
	return &Entry{value: value, state: StatePersisted}
}

// State returns the current lifecycle state.
func (e *Entry) State() State {
	return e.state
}

// Value returns a copy of the entry.
func (e *Entry) Value() models.ScheduleEntry {
	return e.value
}

// ExcludeID is the id ignored by the overlap check; set once the entry is stored.
func (e *Entry) ExcludeID() string {
	return e.excludeID
}

// Edit replaces the editable fields and returns the entry to Draft. The id and
// group of a stored entry are kept so validation skips the entry itself.
func (e *Entry) Edit(value models.ScheduleEntry) error {
	if e.state == StateDeleted {
		return invalidTransition(e.state, StateDraft)
	}
	if e.value.ID != "" {
		value.ID = e.value.ID
		value.GroupID = e.value.GroupID
		value.CreatedAt = e.value.CreatedAt
		e.excludeID = e.value.ID
	}
	e.value = value
	e.state = StateDraft
	return nil
}

// Planner validates and persists entries against a Store.
type Planner struct {
	store  Store
	logger *zap.Logger
}

// New builds a Planner.
func New(store Store, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{store: store, logger: logger}
}

// Validate moves a Draft to Validated. It fails with INVALID_TIME_FORMAT,
// END_BEFORE_START or OVERLAP_CONFLICT and never writes. The overlap check
// runs against a snapshot; a concurrent writer can still race it, which the
// store is expected to reject.
func (p *Planner) Validate(ctx context.Context, e *Entry) error {
	if e.state != StateDraft {
		return invalidTransition(e.state, StateValidated)
	}
	if _, err := timegrid.ParseInterval(e.value.StartTime, e.value.EndTime); err != nil {
		return err
	}

	day := e.value.Weekday
	existing, err := p.store.List(ctx, e.value.GroupID, &day)
	if err != nil {
		return persistenceError(err, "failed to load schedules for validation")
	}
	conflict, err := timegrid.FindConflict(e.value, existing, e.excludeID)
	if err != nil {
		return err
	}
	if conflict != nil {
		p.logger.Info("schedule overlap detected",
			zap.String("group_id", e.value.GroupID),
			zap.Stringer("weekday", e.value.Weekday),
			zap.String("conflict_id", conflict.ID),
		)
		return timegrid.OverlapError(models.NewScheduleConflict(*conflict))
	}

	e.state = StateValidated
	return nil
}

// Persist writes a Validated entry. A rejected write is returned as a
// PERSISTENCE_ERROR and leaves the entry Validated; it is never retried.
func (p *Planner) Persist(ctx context.Context, e *Entry) error {
	if e.state != StateValidated {
		return invalidTransition(e.state, StatePersisted)
	}

	var (
		stored *models.ScheduleEntry
		err    error
	)
	if e.value.ID == "" {
		stored, err = p.store.Create(ctx, e.value)
	} else {
		stored, err = p.store.Update(ctx, e.value)
	}
	if err != nil {
		p.logger.Warn("schedule write rejected", zap.String("group_id", e.value.GroupID), zap.Error(err))
		return persistenceError(err, "schedule service rejected the write")
	}

	if stored != nil {
		e.value = *stored
	}
	e.excludeID = e.value.ID
	e.state = StatePersisted
	return nil
}

// Delete removes a Persisted entry; Deleted is terminal.
func (p *Planner) Delete(ctx context.Context, e *Entry) error {
	if e.state != StatePersisted {
		return invalidTransition(e.state, StateDeleted)
	}
	if err := p.store.Delete(ctx, e.value.GroupID, e.value.ID); err != nil {
		return persistenceError(err, "schedule service rejected the delete")
	}
	e.state = StateDeleted
	return nil
}

func invalidTransition(from, to State) error {
	return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move entry from %s to %s", from, to))
}

// persistenceError keeps errors that already carry PERSISTENCE_ERROR as they are.
func persistenceError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Code == appErrors.ErrPersistence.Code {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, message)
}
