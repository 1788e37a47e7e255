package inspection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/linewalk/internal/errors"
)

var testDefaults = RowDefaults{MaxScore: 10}

func indexes(f *Form) []int {
	out := make([]int, len(f.Rows))
	for i := range f.Rows {
		out[i] = f.Rows[i].Index
	}
	return out
}

func TestNewFormCreatesDefaultRows(t *testing.T) {
	t.Parallel()

	f := NewForm(20, testDefaults)

	require.Len(t, f.Rows, 20)
	seen := map[string]bool{}
	for i, r := range f.Rows {
		assert.Equal(t, i+1, r.Index)
		assert.InDelta(t, 10.0, r.MaxScore, 0)
		assert.Zero(t, r.ActualScore)
		assert.Equal(t, StatusUnset, r.Status)
		assert.Empty(t, r.Tags)
		assert.NotEmpty(t, r.ID)
		assert.False(t, seen[r.ID], "row ids are unique")
		seen[r.ID] = true
	}
}

func TestDeleteRowRenumbers(t *testing.T) {
	t.Parallel()

	f := NewForm(4, testDefaults)
	third := f.Rows[2].ID
	second := f.Rows[1].ID
	fourth := f.Rows[3].ID

	require.NoError(t, f.DeleteRow(second))

	assert.Equal(t, []int{1, 2, 3}, indexes(f))
	assert.Equal(t, third, f.Rows[1].ID, "former row 3 is now row 2")
	assert.Equal(t, fourth, f.Rows[2].ID)
}

func TestDeleteUnknownRowIsNoop(t *testing.T) {
	t.Parallel()

	f := NewForm(3, testDefaults)
	err := f.DeleteRow("missing")

	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.ErrorIs(t, err, ErrRowNotFound)
	assert.Len(t, f.Rows, 3)
}

func TestIndexesStayContiguous(t *testing.T) {
	t.Parallel()

	f := NewForm(5, testDefaults)
	require.NoError(t, f.DeleteRow(f.Rows[0].ID))
	f.AddRow(testDefaults)
	require.NoError(t, f.DeleteRow(f.Rows[2].ID))
	id := f.AddRow(testDefaults)
	f.AddRow(testDefaults)

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, indexes(f))
	added, err := f.Row(id)
	require.NoError(t, err)
	assert.Equal(t, 5, added.Index)
}

func TestSetStatusClearsTagsWhenNotNG(t *testing.T) {
	t.Parallel()

	f := NewForm(1, testDefaults)
	id := f.Rows[0].ID

	require.NoError(t, f.SetStatus(id, StatusNG))
	require.NoError(t, f.SetTags(id, []string{"Stain", "Hairy", "Stain"}))
	assert.Equal(t, []string{"Stain", "Hairy"}, f.Rows[0].Tags)

	require.NoError(t, f.SetStatus(id, StatusOK))
	assert.Empty(t, f.Rows[0].Tags)

	err := f.SetTags(id, []string{"Stain"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
}

func TestSetStatusRejectsUnknownValue(t *testing.T) {
	t.Parallel()

	f := NewForm(1, testDefaults)
	err := f.SetStatus(f.Rows[0].ID, Status("MAYBE"))

	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, StatusUnset, f.Rows[0].Status)
}

func TestSetScoreClampsActual(t *testing.T) {
	t.Parallel()

	f := NewForm(1, testDefaults)
	id := f.Rows[0].ID

	res, err := f.SetScore(id, ScoreActual, "12")
	require.NoError(t, err)
	assert.True(t, res.Clamped)
	assert.InDelta(t, 10.0, res.ActualScore, 0)
	assert.InDelta(t, 10.0, f.Rows[0].ActualScore, 0)

	res, err = f.SetScore(id, ScoreMax, "6")
	require.NoError(t, err)
	assert.True(t, res.Clamped, "lowering max below actual clamps actual")
	assert.InDelta(t, 6.0, res.ActualScore, 0)

	res, err = f.SetScore(id, ScoreActual, " 4.5 ")
	require.NoError(t, err)
	assert.False(t, res.Clamped)
	assert.InDelta(t, 4.5, res.ActualScore, 0)
}

func TestSetScoreMalformedInputBecomesZero(t *testing.T) {
	t.Parallel()

	f := NewForm(1, testDefaults)
	id := f.Rows[0].ID

	res, err := f.SetScore(id, ScoreActual, "abc")
	require.NoError(t, err)
	assert.Zero(t, res.ActualScore)

	res, err = f.SetScore(id, ScoreMax, "")
	require.NoError(t, err)
	assert.Zero(t, res.MaxScore)
}

func TestSetScoreRejectsUnknownField(t *testing.T) {
	t.Parallel()

	f := NewForm(1, testDefaults)
	_, err := f.SetScore(f.Rows[0].ID, ScoreField("bonus"), "3")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestClampInvariantHoldsForAnyEditSequence(t *testing.T) {
	t.Parallel()

	inputs := []struct {
		field ScoreField
		value string
	}{
		{ScoreActual, "9"}, {ScoreMax, "3"}, {ScoreActual, "-4"}, {ScoreMax, "NaN"},
		{ScoreActual, "1e9"}, {ScoreMax, "20"}, {ScoreActual, "15"}, {ScoreMax, "14.5"},
	}

	f := NewForm(1, testDefaults)
	id := f.Rows[0].ID
	for _, in := range inputs {
		_, err := f.SetScore(id, in.field, in.value)
		require.NoError(t, err)
		r := f.Rows[0]
		assert.LessOrEqual(t, r.ActualScore, r.MaxScore)
		assert.GreaterOrEqual(t, r.ActualScore, 0.0)
	}
}

func TestResetRowKeepsIdentity(t *testing.T) {
	t.Parallel()

	f := NewForm(2, testDefaults)
	row := f.Rows[1]
	require.NoError(t, f.SetStatus(row.ID, StatusNG))
	require.NoError(t, f.SetTags(row.ID, []string{"Damage"}))
	require.NoError(t, f.SetNote(row.ID, "scuffed toe"))
	require.NoError(t, f.SetAttachment(row.ID, Attachment{Name: "p.jpg", ContentType: "image/jpeg", Data: []byte{1, 2}}))
	_, err := f.SetScore(row.ID, ScoreActual, "7")
	require.NoError(t, err)

	require.NoError(t, f.ResetRow(row.ID, testDefaults))

	got := f.Rows[1]
	assert.Equal(t, row.ID, got.ID)
	assert.Equal(t, 2, got.Index)
	assert.Equal(t, StatusUnset, got.Status)
	assert.Empty(t, got.Tags)
	assert.Empty(t, got.Note)
	assert.Nil(t, got.Attachment)
	assert.Zero(t, got.ActualScore)
}

func TestAttachmentIndependentOfStatus(t *testing.T) {
	t.Parallel()

	f := NewForm(1, testDefaults)
	id := f.Rows[0].ID
	require.NoError(t, f.SetAttachment(id, Attachment{Name: "a.png", ContentType: "image/png", Data: []byte("png")}))
	require.NoError(t, f.SetStatus(id, StatusOK))

	assert.True(t, f.Rows[0].HasAttachment())

	require.NoError(t, f.ClearAttachment(id))
	assert.False(t, f.Rows[0].HasAttachment())
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	f := NewForm(1, testDefaults)
	id := f.Rows[0].ID
	f.Header.Style = "STY001"
	require.NoError(t, f.SetStatus(id, StatusNG))
	require.NoError(t, f.SetTags(id, []string{"Stain"}))
	require.NoError(t, f.SetAttachment(id, Attachment{Data: []byte{9}}))

	snap := f.Clone()

	f.Header.Style = "STY002"
	f.Rows[0].Tags[0] = "Hairy"
	f.Rows[0].Attachment.Data[0] = 1
	f.AddRow(testDefaults)

	assert.Equal(t, "STY001", snap.Header.Style)
	assert.Equal(t, []string{"Stain"}, snap.Rows[0].Tags)
	assert.Equal(t, byte(9), snap.Rows[0].Attachment.Data[0])
	assert.Len(t, snap.Rows, 1)
}

func TestHeaderMissing(t *testing.T) {
	t.Parallel()

	h := Header{Category: "Quality Audit", Line: ""}
	assert.Equal(t, []string{"style", "line"}, h.Missing([]string{"category", "style", "line"}))

	require.NoError(t, h.SetField("line", "101"))
	assert.Equal(t, []string{"style"}, h.Missing([]string{"category", "style", "line"}))

	err := h.SetField("shift", "night")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}
