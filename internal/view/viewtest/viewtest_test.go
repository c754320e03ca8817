package viewtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goerpcheck/internal/view"
)

func texts(t *testing.T, els []view.Element) []string {
	t.Helper()
	out := make([]string, 0, len(els))
	for _, el := range els {
		s, err := el.Text(context.Background())
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

func TestWindowedScroll(t *testing.T) {
	ctx := context.Background()
	v := New()
	v.SetWindowed(".row", ".list", 2, 1, Texts("a", "b", "c", "d")...)

	els, err := v.Query(ctx, ".row")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, texts(t, els))

	require.NoError(t, v.ScrollBy(ctx, ".list", 100))
	els, _ = v.Query(ctx, ".row")
	assert.Equal(t, []string{"b", "c"}, texts(t, els))

	// Clamped at the end
	for i := 0; i < 5; i++ {
		require.NoError(t, v.ScrollBy(ctx, ".list", 100))
	}
	els, _ = v.Query(ctx, ".row")
	assert.Equal(t, []string{"c", "d"}, texts(t, els))
	assert.Equal(t, 6, v.Count(OpScroll))
}

func TestPagedNext(t *testing.T) {
	ctx := context.Background()
	v := New()
	v.SetPaged(".item", ".next", Texts("a", "b"), Texts("c"))

	visible, _ := v.IsVisible(ctx, ".next")
	assert.True(t, visible)

	require.NoError(t, v.Click(ctx, ".next", view.ClickOptions{}))
	els, _ := v.Query(ctx, ".item")
	assert.Equal(t, []string{"c"}, texts(t, els))

	visible, _ = v.IsVisible(ctx, ".next")
	assert.False(t, visible)
	assert.Error(t, v.Click(ctx, ".next", view.ClickOptions{}))
}

func TestControlsAndHooks(t *testing.T) {
	ctx := context.Background()
	v := New()
	v.Show("#save")
	v.OnClick("#save", func(v *View) { v.Show(".toast") })

	require.NoError(t, v.WaitForVisible(ctx, "#save", 0))
	assert.ErrorIs(t, v.WaitForVisible(ctx, ".toast", 0), view.ErrNotVisible)

	require.NoError(t, v.Click(ctx, "#save", view.ClickOptions{}))
	assert.NoError(t, v.WaitForVisible(ctx, ".toast", 0))
	assert.Equal(t, 1, v.Control("#save").Clicks)

	require.NoError(t, v.Fill(ctx, "#name", "Acme"))
	got, ok := v.Filled("#name")
	assert.True(t, ok)
	assert.Equal(t, "Acme", got)
	assert.Equal(t, 2, v.Interactions())
}

func TestFindByText(t *testing.T) {
	ctx := context.Background()
	v := New()
	v.SetList("tr", Texts("Acme Ltd", "Globex")...)

	el, err := v.FindByText(ctx, "Glob", false)
	require.NoError(t, err)
	s, _ := el.Text(ctx)
	assert.Equal(t, "Globex", s)

	_, err = v.FindByText(ctx, "Glob", true)
	assert.ErrorIs(t, err, view.ErrNoElement)
}

func TestWaitForText(t *testing.T) {
	ctx := context.Background()
	v := New()
	time.AfterFunc(20*time.Millisecond, func() { v.SetText(".message", "Record Saved") })

	require.NoError(t, v.WaitForText(ctx, "Saved", false, 2*time.Second))

	err := v.WaitForText(ctx, "Saved", true, 20*time.Millisecond)
	assert.ErrorIs(t, err, view.ErrNotVisible)

	v.Hide(".message")
	err = v.WaitForText(ctx, "Saved", false, 20*time.Millisecond)
	assert.ErrorIs(t, err, view.ErrNotVisible, "hidden text does not count")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, v.WaitForText(cancelled, "Saved", false, time.Second), context.Canceled)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	v := New()
	v.SetList("tr", Texts("a", "b")...)
	v.Remove("tr", "a")

	els, _ := v.Query(ctx, "tr")
	assert.Equal(t, []string{"b"}, texts(t, els))
}
