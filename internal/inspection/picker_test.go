package inspection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/linewalk/internal/errors"
)

func TestPickerLifecycle(t *testing.T) {
	t.Parallel()

	p := NewPicker("row-1", DefaultCatalog())
	assert.Equal(t, PickerDisabled, p.State())

	_, err := p.Toggle(nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))

	p.SyncStatus(StatusNG)
	assert.Equal(t, PickerClosed, p.State())

	open, err := p.Toggle([]string{"Stain"})
	require.NoError(t, err)
	assert.True(t, open)
	assert.Equal(t, []string{"Stain"}, p.Pending())

	require.NoError(t, p.Check("Hairy", true))
	require.NoError(t, p.Check("Stain", false))
	require.NoError(t, p.Check("Wrinkle", true))

	tags, err := p.Commit()
	require.NoError(t, err)
	assert.Equal(t, []string{"Hairy", "Wrinkle"}, tags, "vocabulary order")
	assert.Equal(t, PickerClosed, p.State())
}

func TestPickerToggleTwiceDiscards(t *testing.T) {
	t.Parallel()

	p := NewPicker("row-1", DefaultCatalog())
	p.SyncStatus(StatusNG)

	_, err := p.Toggle([]string{})
	require.NoError(t, err)
	require.NoError(t, p.Check("Damage", true))

	open, err := p.Toggle(nil)
	require.NoError(t, err)
	assert.False(t, open)
	assert.Empty(t, p.Pending())

	_, err = p.Commit()
	require.Error(t, err)
}

func TestPickerRejectsUnknownTag(t *testing.T) {
	t.Parallel()

	p := NewPicker("row-1", DefaultCatalog())
	p.SyncStatus(StatusNG)
	_, err := p.Toggle(nil)
	require.NoError(t, err)

	err = p.Check("Bogus", true)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	err = p.Replace([]string{"Stain", "Bogus"})
	require.Error(t, err)
	assert.Empty(t, p.Pending())
}

func TestPickerDisabledByStatusChange(t *testing.T) {
	t.Parallel()

	p := NewPicker("row-1", DefaultCatalog())
	p.SyncStatus(StatusNG)
	_, err := p.Toggle([]string{"Stain"})
	require.NoError(t, err)

	p.SyncStatus(StatusOK)
	assert.Equal(t, PickerDisabled, p.State())
	assert.Empty(t, p.Pending())

	err = p.Check("Stain", true)
	require.Error(t, err)
}

func TestPickerFilterDoesNotTouchSelection(t *testing.T) {
	t.Parallel()

	p := NewPicker("row-1", DefaultCatalog())
	p.SyncStatus(StatusNG)
	_, err := p.Toggle([]string{"Hairy"})
	require.NoError(t, err)

	visible := p.Filter("crack")
	assert.Equal(t, []string{"Cracked"}, visible)
	assert.Equal(t, []string{"Hairy"}, p.Pending())
}

func TestPickersCloseAll(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()
	ps := Pickers{}
	a := ps.For("a", StatusNG, c)
	b := ps.For("b", StatusNG, c)
	ps.For("c", StatusOK, c)

	_, err := a.Toggle(nil)
	require.NoError(t, err)
	_, err = b.Toggle(nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, ps.CloseAll())
	assert.Equal(t, PickerClosed, a.State())
	assert.Equal(t, PickerClosed, b.State())
	assert.Empty(t, ps.CloseAll())
}
