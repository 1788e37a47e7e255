package session

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/linewalk/internal/datastore"
	"github.com/tphakala/linewalk/internal/errors"
	"github.com/tphakala/linewalk/internal/inspection"
	"github.com/tphakala/linewalk/internal/logger"
	"github.com/tphakala/linewalk/internal/notification"
)

var testNow = time.Date(2025, 6, 2, 14, 5, 0, 0, time.UTC)

type toastRecorder struct {
	mu     sync.Mutex
	toasts []notification.Toast
}

func (r *toastRecorder) Notify(t notification.Type, component, message string) *notification.Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	toast := notification.NewToast(t, component, message, 0)
	r.toasts = append(r.toasts, *toast)
	return toast
}

func (r *toastRecorder) last() notification.Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toasts) == 0 {
		return notification.Toast{}
	}
	return r.toasts[len(r.toasts)-1]
}

func (r *toastRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.toasts)
}

type eventRecorder struct {
	mu      sync.Mutex
	saved   []string
	deleted []string
}

func (e *eventRecorder) RecordSaved(_ context.Context, rec *datastore.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.saved = append(e.saved, rec.ID)
}

func (e *eventRecorder) RecordDeleted(_ context.Context, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleted = append(e.deleted, id)
}

type fixture struct {
	session *Session
	store   *datastore.Store
	toasts  *toastRecorder
	events  *eventRecorder
}

func newFixture(t *testing.T, pairs int) *fixture {
	t.Helper()
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
	clock := func() time.Time { return testNow }
	store := datastore.NewStore(datastore.NewMemoryKV(), "",
		datastore.WithClock(clock), datastore.WithLogger(log))
	toasts := &toastRecorder{}
	events := &eventRecorder{}
	s := New(Config{TotalPairs: pairs, Defaults: inspection.RowDefaults{MaxScore: 10}},
		inspection.DefaultCatalog(), store,
		WithNotifier(toasts), WithEvents(events), WithClock(clock), WithLogger(log))
	return &fixture{session: s, store: store, toasts: toasts, events: events}
}

func (f *fixture) dispatch(t *testing.T, cmd Command) Result {
	t.Helper()
	res, err := f.session.Dispatch(context.Background(), cmd)
	require.NoError(t, err, "command %s", cmd.Kind)
	return res
}

func (f *fixture) rowID(i int) string {
	return f.session.Snapshot().Rows[i].ID
}

func (f *fixture) fillHeader(t *testing.T) {
	t.Helper()
	f.dispatch(t, Command{Kind: CmdSetHeader, Field: "category", Value: "Line Walk Through"})
	f.dispatch(t, Command{Kind: CmdSelectStyle, Value: "STY001"})
	f.dispatch(t, Command{Kind: CmdSetHeader, Field: "line", Value: "101"})
}

func TestSession_DeleteRowAsksThenRenumbers(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 5)
	ids := make([]string, 5)
	for i := range ids {
		ids[i] = f.rowID(i)
	}

	res := f.dispatch(t, Command{Kind: CmdRequestDeleteRow, RowID: ids[1]})
	require.NotNil(t, res.Confirmation)
	assert.Equal(t, KindDeleteRow, res.Confirmation.Kind)
	assert.Len(t, f.session.Snapshot().Rows, 5, "nothing deleted before confirming")

	res = f.dispatch(t, Command{Kind: CmdResolve, Ticket: res.Confirmation.Ticket, Confirmed: true})
	assert.Equal(t, KindDeleteRow, res.Resolved)

	rows := f.session.Snapshot().Rows
	require.Len(t, rows, 4)
	for i, r := range rows {
		assert.Equal(t, i+1, r.Index)
	}
	assert.Equal(t, []string{ids[0], ids[2], ids[3], ids[4]},
		[]string{rows[0].ID, rows[1].ID, rows[2].ID, rows[3].ID})
	assert.True(t, f.session.Snapshot().Dirty)
}

func TestSession_CancelDeleteKeepsRow(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 3)

	res := f.dispatch(t, Command{Kind: CmdRequestDeleteRow, RowID: f.rowID(0)})
	f.dispatch(t, Command{Kind: CmdResolve, Ticket: res.Confirmation.Ticket, Confirmed: false})

	v := f.session.Snapshot()
	assert.Len(t, v.Rows, 3)
	assert.Nil(t, v.Confirmation)
	assert.False(t, v.Dirty)
}

func TestSession_ResetRowClearsEverything(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	id := f.rowID(1)

	f.dispatch(t, Command{Kind: CmdSetStatus, RowID: id, Status: inspection.StatusNG})
	f.dispatch(t, Command{Kind: CmdSetScore, RowID: id, Field: "actual", Value: "4"})
	f.dispatch(t, Command{Kind: CmdSetNote, RowID: id, Value: "glue mark"})
	f.dispatch(t, Command{Kind: CmdSetPhoto, RowID: id, Attachment: &inspection.Attachment{Name: "p.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}}})

	res := f.dispatch(t, Command{Kind: CmdRequestResetRow, RowID: id})
	assert.Equal(t, KindResetRow, res.Confirmation.Kind)
	f.dispatch(t, Command{Kind: CmdResolve, Ticket: res.Confirmation.Ticket, Confirmed: true})

	row := f.session.Snapshot().Rows[1]
	assert.Equal(t, id, row.ID)
	assert.Equal(t, 2, row.Index)
	assert.Equal(t, inspection.StatusUnset, row.Status)
	assert.Zero(t, row.ActualScore)
	assert.Empty(t, row.Note)
	assert.Nil(t, row.Attachment)
	assert.Equal(t, inspection.PickerDisabled, f.session.Snapshot().Pickers[id])
}

func TestSession_PickerModalCommit(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	id := f.rowID(0)

	_, err := f.session.Dispatch(context.Background(), Command{Kind: CmdTogglePicker, RowID: id})
	require.ErrorIs(t, err, inspection.ErrPickerDisabled, "picker needs NG")
	assert.Equal(t, notification.TypeError, f.toasts.last().Type)

	f.dispatch(t, Command{Kind: CmdSetStatus, RowID: id, Status: inspection.StatusNG})
	res := f.dispatch(t, Command{Kind: CmdTogglePicker, RowID: id})
	require.NotNil(t, res.Picker)
	assert.Equal(t, inspection.PickerOpen, res.Picker.State)
	require.NotNil(t, res.Confirmation)
	assert.Equal(t, KindCommitTags, res.Confirmation.Kind)
	assert.Equal(t, id, f.session.Snapshot().TaggingRow)

	f.dispatch(t, Command{Kind: CmdCheckTag, RowID: id, Tag: "Bonding Gap", On: true})
	f.dispatch(t, Command{Kind: CmdCheckTag, RowID: id, Tag: "Stain", On: true})
	res = f.dispatch(t, Command{Kind: CmdCheckTag, RowID: id, Tag: "Hairy", On: true})
	assert.Equal(t, []string{"Bonding Gap", "Stain", "Hairy"}, res.Picker.Pending)
	assert.Empty(t, f.session.Snapshot().Rows[0].Tags, "staged tags are not on the row yet")

	_, err = f.session.Dispatch(context.Background(), Command{Kind: CmdCheckTag, RowID: id, Tag: "Scratch", On: true})
	require.ErrorIs(t, err, inspection.ErrUnknownDefect)

	pending, ok := f.session.Pending()
	require.True(t, ok)
	assert.Equal(t, KindCommitTags, pending.Kind)
	f.dispatch(t, Command{Kind: CmdResolve, Ticket: pending.Ticket, Confirmed: true})

	v := f.session.Snapshot()
	assert.Equal(t, []string{"Hairy", "Stain", "Bonding Gap"}, v.Rows[0].Tags, "vocabulary order")
	assert.Equal(t, inspection.PickerClosed, v.Pickers[id])
	assert.Empty(t, v.TaggingRow)
}

func TestSession_PickerCancelDiscards(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 1)
	id := f.rowID(0)

	f.dispatch(t, Command{Kind: CmdSetStatus, RowID: id, Status: inspection.StatusNG})
	res := f.dispatch(t, Command{Kind: CmdTogglePicker, RowID: id})
	ticket := res.Confirmation.Ticket
	f.dispatch(t, Command{Kind: CmdSetPickerTags, RowID: id, Tags: []string{"Damage"}})
	f.dispatch(t, Command{Kind: CmdResolve, Ticket: ticket, Confirmed: false})

	assert.Empty(t, f.session.Snapshot().Rows[0].Tags)
	view, err := f.session.Picker(id, "")
	require.NoError(t, err)
	assert.Equal(t, inspection.PickerClosed, view.State)
	assert.Empty(t, view.Pending)
}

func TestSession_CloseAllPickersDropsCommit(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	id := f.rowID(0)

	f.dispatch(t, Command{Kind: CmdSetStatus, RowID: id, Status: inspection.StatusNG})
	res := f.dispatch(t, Command{Kind: CmdTogglePicker, RowID: id})
	ticket := res.Confirmation.Ticket
	f.dispatch(t, Command{Kind: CmdCheckTag, RowID: id, Tag: "Cracked", On: true})

	res = f.dispatch(t, Command{Kind: CmdCloseAllPickers})
	assert.Equal(t, []string{id}, res.Closed)

	_, err := f.session.Dispatch(context.Background(), Command{Kind: CmdResolve, Ticket: ticket, Confirmed: true})
	require.ErrorIs(t, err, ErrNoPendingConfirmation)
	assert.Empty(t, f.session.Snapshot().Rows[0].Tags)
}

func TestSession_OpeningPickerClosesOthers(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	a, b := f.rowID(0), f.rowID(1)
	f.dispatch(t, Command{Kind: CmdSetStatus, RowID: a, Status: inspection.StatusNG})
	f.dispatch(t, Command{Kind: CmdSetStatus, RowID: b, Status: inspection.StatusNG})

	f.dispatch(t, Command{Kind: CmdTogglePicker, RowID: a})
	f.dispatch(t, Command{Kind: CmdTogglePicker, RowID: b})

	v := f.session.Snapshot()
	assert.Equal(t, inspection.PickerClosed, v.Pickers[a])
	assert.Equal(t, inspection.PickerOpen, v.Pickers[b])
	assert.Equal(t, b, v.TaggingRow)

	// Toggling the open picker again closes it without committing
	res := f.dispatch(t, Command{Kind: CmdTogglePicker, RowID: b})
	assert.Equal(t, inspection.PickerClosed, res.Picker.State)
	assert.Nil(t, f.session.Snapshot().Confirmation)
}

func TestSession_OtherConfirmationDismissesPicker(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	a, b := f.rowID(0), f.rowID(1)

	f.dispatch(t, Command{Kind: CmdSetStatus, RowID: a, Status: inspection.StatusNG})
	f.dispatch(t, Command{Kind: CmdTogglePicker, RowID: a})
	f.dispatch(t, Command{Kind: CmdCheckTag, RowID: a, Tag: "Stain", On: true})

	res := f.dispatch(t, Command{Kind: CmdRequestDeleteRow, RowID: b})
	require.NotNil(t, res.Confirmation)
	assert.Equal(t, KindDeleteRow, res.Confirmation.Kind)

	v := f.session.Snapshot()
	assert.Equal(t, inspection.PickerClosed, v.Pickers[a])
	assert.Empty(t, v.TaggingRow)

	f.dispatch(t, Command{Kind: CmdResolve, Ticket: res.Confirmation.Ticket, Confirmed: false})
	v = f.session.Snapshot()
	assert.Nil(t, v.Confirmation)
	assert.Empty(t, v.Rows[0].Tags, "staged tags never reach the row")

	_, err := f.session.Dispatch(context.Background(), Command{Kind: CmdCheckTag, RowID: a, Tag: "Hairy", On: true})
	require.ErrorIs(t, err, inspection.ErrPickerNotOpen)
}

func TestSession_StatusChangeClearsTags(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 1)
	id := f.rowID(0)

	f.dispatch(t, Command{Kind: CmdSetStatus, RowID: id, Status: inspection.StatusNG})
	res := f.dispatch(t, Command{Kind: CmdTogglePicker, RowID: id})
	f.dispatch(t, Command{Kind: CmdCheckTag, RowID: id, Tag: "Wrinkle", On: true})
	f.dispatch(t, Command{Kind: CmdResolve, Ticket: res.Confirmation.Ticket, Confirmed: true})
	require.Equal(t, []string{"Wrinkle"}, f.session.Snapshot().Rows[0].Tags)

	// Reopen, then switch to OK while the picker is open
	f.dispatch(t, Command{Kind: CmdTogglePicker, RowID: id})
	res = f.dispatch(t, Command{Kind: CmdSetStatus, RowID: id, Status: inspection.StatusOK})
	assert.Empty(t, res.Row.Tags)

	v := f.session.Snapshot()
	assert.Equal(t, inspection.PickerDisabled, v.Pickers[id])
	assert.Empty(t, v.TaggingRow)
	assert.Nil(t, v.Confirmation, "pending commit is dropped")

	_, err := f.session.Dispatch(context.Background(), Command{Kind: CmdSetStatus, RowID: id, Status: "MAYBE"})
	require.ErrorIs(t, err, inspection.ErrInvalidStatus)
}

func TestSession_ScoreClamp(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 1)
	id := f.rowID(0)

	res := f.dispatch(t, Command{Kind: CmdSetScore, RowID: id, Field: "actual", Value: "15"})
	require.NotNil(t, res.Score)
	assert.True(t, res.Score.Clamped)
	assert.InDelta(t, 10, res.Score.ActualScore, 0.0001)

	res = f.dispatch(t, Command{Kind: CmdSetScore, RowID: id, Field: "actual", Value: "abc"})
	assert.False(t, res.Score.Clamped)
	assert.Zero(t, res.Score.ActualScore)
}

func TestSession_SelectStyleSetsModel(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 1)

	res := f.dispatch(t, Command{Kind: CmdSelectStyle, Value: "STY001"})
	assert.Equal(t, "Air Max 270", res.Header.Model)

	res = f.dispatch(t, Command{Kind: CmdSetHeader, Field: "style", Value: "UNKNOWN"})
	assert.Empty(t, res.Header.Model)

	_, err := f.session.Dispatch(context.Background(), Command{Kind: CmdSetHeader, Field: "colour", Value: "red"})
	require.ErrorIs(t, err, inspection.ErrInvalidHeaderField)
}

func TestSession_SaveIncompleteAsksFirst(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 20)
	f.fillHeader(t)
	f.dispatch(t, Command{Kind: CmdSetStatus, RowID: f.rowID(0), Status: inspection.StatusOK})

	res := f.dispatch(t, Command{Kind: CmdSave})
	require.NotNil(t, res.Confirmation)
	assert.Equal(t, KindSaveIncomplete, res.Confirmation.Kind)
	assert.Contains(t, res.Confirmation.Body, "Only 1 of 20")
	records, err := f.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	res = f.dispatch(t, Command{Kind: CmdResolve, Ticket: res.Confirmation.Ticket, Confirmed: true})
	require.NotNil(t, res.Record)
	assert.Equal(t, "LWT-Line Walk Through-2025-06-02", res.Record.Name)
	assert.Equal(t, "14:05", res.Record.Header.Time)

	v := f.session.Snapshot()
	assert.Empty(t, v.Header.Category, "form resets after an explicit save")
	assert.Len(t, v.Rows, 20)
	assert.False(t, v.Dirty)
	assert.Equal(t, notification.TypeSuccess, f.toasts.last().Type)
	assert.Equal(t, []string{res.Record.ID}, f.events.saved)
}

func TestSession_SaveCompleteSavesImmediately(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	f.fillHeader(t)
	f.dispatch(t, Command{Kind: CmdSetStatus, RowID: f.rowID(0), Status: inspection.StatusOK})
	f.dispatch(t, Command{Kind: CmdSetStatus, RowID: f.rowID(1), Status: inspection.StatusNG})

	res := f.dispatch(t, Command{Kind: CmdSave})
	assert.Nil(t, res.Confirmation)
	require.NotNil(t, res.Record)

	records, err := f.store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSession_SaveInvalidHeader(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	f.dispatch(t, Command{Kind: CmdSetHeader, Field: "category", Value: "Quality Audit"})

	_, err := f.session.Dispatch(context.Background(), Command{Kind: CmdSave})
	require.ErrorIs(t, err, datastore.ErrIncompleteHeader)
	assert.True(t, errors.IsValidation(err))

	last := f.toasts.last()
	assert.Equal(t, notification.TypeError, last.Type)
	assert.Contains(t, last.Message, "style, line")
	assert.Nil(t, f.session.Snapshot().Confirmation)

	records, err := f.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSession_DeleteRecord(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 1)
	f.fillHeader(t)
	f.dispatch(t, Command{Kind: CmdSetStatus, RowID: f.rowID(0), Status: inspection.StatusOK})
	saved := f.dispatch(t, Command{Kind: CmdSave}).Record
	require.NotNil(t, saved)

	_, err := f.session.Dispatch(context.Background(), Command{Kind: CmdRequestDeleteRecord, RecordID: "lwt_404"})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	res := f.dispatch(t, Command{Kind: CmdRequestDeleteRecord, RecordID: saved.ID})
	assert.Equal(t, KindDeleteRecord, res.Confirmation.Kind)
	assert.Contains(t, res.Confirmation.Body, saved.Name)

	f.dispatch(t, Command{Kind: CmdResolve, Ticket: res.Confirmation.Ticket, Confirmed: true})
	records, err := f.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, []string{saved.ID}, f.events.deleted)
}

func TestSession_UnknownRowAndCommand(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 1)

	_, err := f.session.Dispatch(context.Background(), Command{Kind: CmdSetNote, RowID: "nope", Value: "x"})
	require.ErrorIs(t, err, inspection.ErrRowNotFound)
	assert.True(t, errors.IsNotFound(err))

	_, err = f.session.Dispatch(context.Background(), Command{Kind: CommandKind(999)})
	require.ErrorIs(t, err, ErrUnknownCommand)
	assert.Equal(t, "unknown", CommandKind(999).String())
	assert.Equal(t, "toggle_picker", CmdTogglePicker.String())
}

func TestSession_AddRowAndSummary(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)

	for _, actual := range []string{"10", "8", "5"} {
		res := f.dispatch(t, Command{Kind: CmdAddRow})
		f.dispatch(t, Command{Kind: CmdSetScore, RowID: res.Row.ID, Field: "actual", Value: actual})
	}

	s := f.session.Summary()
	assert.Equal(t, 3, s.TotalItems)
	assert.InDelta(t, 30, s.TotalMax, 0.0001)
	assert.InDelta(t, 23, s.TotalActual, 0.0001)
	assert.InDelta(t, 76.67, s.Percentage, 0.0001)
}

func TestSession_AutoSave(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	ctx := context.Background()

	require.NoError(t, f.session.AutoSave(ctx))
	assert.Zero(t, f.toasts.count(), "clean form is not saved")

	f.dispatch(t, Command{Kind: CmdSetHeader, Field: "auditor", Value: "Rina"})
	require.NoError(t, f.session.AutoSave(ctx))
	assert.Equal(t, notification.TypeWarning, f.toasts.last().Type)
	records, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	f.fillHeader(t)
	require.NoError(t, f.session.AutoSave(ctx))
	records, err = f.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2025-06-02", records[0].Header.Date)

	v := f.session.Snapshot()
	assert.Equal(t, "Line Walk Through", v.Header.Category, "auto-save never resets the form")
	assert.Empty(t, v.Header.Date, "the snapshot is stamped, not the live form")
	assert.False(t, v.Dirty)

	require.NoError(t, f.session.AutoSave(ctx))
	records, err = f.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1, "nothing changed since the last auto-save")
}
