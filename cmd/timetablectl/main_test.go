package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type fakeStore struct {
	entries []models.ScheduleEntry
	seq     int
}

func (f *fakeStore) List(ctx context.Context, groupID string, day *models.Weekday) ([]models.ScheduleEntry, error) {
	var out []models.ScheduleEntry
	for _, e := range f.entries {
		if e.GroupID == groupID && (day == nil || e.Weekday == *day) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) Create(ctx context.Context, entry models.ScheduleEntry) (*models.ScheduleEntry, error) {
	f.seq++
	entry.ID = fmt.Sprintf("s-%d", f.seq)
	f.entries = append(f.entries, entry)
	return &entry, nil
}

func (f *fakeStore) Update(ctx context.Context, entry models.ScheduleEntry) (*models.ScheduleEntry, error) {
	for i := range f.entries {
		if f.entries[i].ID == entry.ID {
			f.entries[i] = entry
			return &entry, nil
		}
	}
	return nil, errors.New("missing")
}

func (f *fakeStore) Delete(ctx context.Context, groupID, id string) error {
	for i := range f.entries {
		if f.entries[i].ID == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return errors.New("missing")
}

type fakeExporter struct{}

func (fakeExporter) Export(ctx context.Context, groupID, format, locale string) (string, []byte, error) {
	return "timetable_" + groupID + "." + format, []byte("Day,Start\n"), nil
}

func newTestApp(store *fakeStore) (*app, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &app{
		store:   store,
		exports: fakeExporter{},
		tokens:  service.NewTokenService(service.TokenConfig{Secret: "secret"}),
		logger:  zap.NewNop(),
		out:     out,
	}, out
}

func TestAddEditDelete(t *testing.T) {
	store := &fakeStore{}
	a, out := newTestApp(store)
	ctx := context.Background()

	require.NoError(t, a.run(ctx, []string{"add", "-group", "g-1", "-day", "monday", "-start", "09:00", "-end", "10:00", "-subject", "math"}))
	require.Len(t, store.entries, 1)
	assert.Equal(t, models.Monday, store.entries[0].Weekday)
	assert.Contains(t, out.String(), "s-1")

	require.NoError(t, a.run(ctx, []string{"edit", "-group", "g-1", "-id", "s-1", "-start", "09:30", "-end", "10:30", "-room", "R1"}))
	assert.Equal(t, "09:30", store.entries[0].StartTime)
	assert.Equal(t, "math", store.entries[0].SubjectID)
	require.NotNil(t, store.entries[0].RoomID)
	assert.Equal(t, "R1", *store.entries[0].RoomID)

	require.NoError(t, a.run(ctx, []string{"delete", "-group", "g-1", "-id", "s-1"}))
	assert.Empty(t, store.entries)
}

func TestAddRejectsOverlap(t *testing.T) {
	store := &fakeStore{entries: []models.ScheduleEntry{{ID: "a", GroupID: "g-1", Weekday: models.Monday, StartTime: "09:00", EndTime: "10:00"}}}
	a, _ := newTestApp(store)

	err := a.run(context.Background(), []string{"add", "-group", "g-1", "-day", "1", "-start", "09:30", "-end", "10:30", "-subject", "math"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrOverlapConflict))
	assert.Contains(t, describe(err), "overlaps a on Monday 09:00-10:00")
	assert.Len(t, store.entries, 1)
}

func TestEditUnknownEntry(t *testing.T) {
	a, _ := newTestApp(&fakeStore{})
	err := a.run(context.Background(), []string{"edit", "-group", "g-1", "-id", "nope", "-start", "08:00"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestExportWritesFile(t *testing.T) {
	a, out := newTestApp(&fakeStore{})
	dir := t.TempDir()

	require.NoError(t, a.run(context.Background(), []string{"export", "-group", "g-1", "-format", "csv", "-out", dir}))
	data, err := os.ReadFile(filepath.Join(dir, "timetable_g-1.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Day,Start\n", string(data))
	assert.Contains(t, out.String(), "wrote")
}

func TestTokenCommand(t *testing.T) {
	a, out := newTestApp(&fakeStore{})
	require.NoError(t, a.run(context.Background(), []string{"token", "-user", "u-1", "-role", "admin"}))

	claims, err := a.tokens.ValidateToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestUnknownCommand(t *testing.T) {
	a, _ := newTestApp(&fakeStore{})
	assert.Error(t, a.run(context.Background(), nil))
	assert.Error(t, a.run(context.Background(), []string{"frobnicate"}))
}

func TestAddRequiresDay(t *testing.T) {
	store := &fakeStore{}
	a, _ := newTestApp(store)

	err := a.run(context.Background(), []string{"add", "-group", "g-1", "-start", "09:00", "-end", "10:00", "-subject", "math"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-day")
	assert.Empty(t, store.entries)
}
