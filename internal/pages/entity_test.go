package pages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goerpcheck/internal/batch"
	"github.com/dbsmedya/goerpcheck/internal/config"
	"github.com/dbsmedya/goerpcheck/internal/logger"
	"github.com/dbsmedya/goerpcheck/internal/resolver"
	"github.com/dbsmedya/goerpcheck/internal/view"
	"github.com/dbsmedya/goerpcheck/internal/view/viewtest"
)

const (
	rowsSel    = "tbody tr"
	optionSel  = "[role=option]"
	listboxSel = "[role=listbox]"
)

func customerConfig() config.EntityConfig {
	return config.EntityConfig{
		Path:          "/customers",
		Rows:          rowsSel,
		Search:        "#search",
		NewButton:     "#new",
		SaveButton:    "#save",
		DeleteButton:  "#delete",
		ConfirmButton: "#confirm",
		Form:          "#form",
		Toast:         ".toast",
		Fields: []config.FieldConfig{
			{Name: "name", Selector: "#name"},
			{Name: "city", Selector: "#city"},
			{Name: "currency", Lookup: &config.LookupConfig{
				Strategy: resolver.NameAriaOption,
				Trigger:  "#currency",
				Root:     listboxSel,
				Item:     optionSel,
				Exact:    true,
			}},
		},
	}
}

func newTestEntity(t *testing.T, v *viewtest.View, cfg config.EntityConfig) *Entity {
	t.Helper()
	r, err := resolver.New(v, resolver.DefaultOptions(), logger.NewNop())
	require.NoError(t, err)
	e, err := NewEntity(v, r, cfg, logger.NewNop())
	require.NoError(t, err)
	return e
}

// rows registers listing rows whose click opens the edit form.
func rows(v *viewtest.View, texts ...string) []*viewtest.Node {
	nodes := viewtest.Texts(texts...)
	for _, n := range nodes {
		n.OnClick = func(v *viewtest.View) { v.Show("#form") }
	}
	v.SetList(rowsSel, nodes...)
	return nodes
}

func saveShowsToast(v *viewtest.View) {
	v.OnClick("#save", func(v *viewtest.View) { v.Show(".toast") })
}

// ============================================================================
// Construction
// ============================================================================

func TestNewEntity_Validation(t *testing.T) {
	v := viewtest.New()
	r, err := resolver.New(v, resolver.DefaultOptions(), nil)
	require.NoError(t, err)

	_, err = NewEntity(nil, r, customerConfig(), nil)
	assert.Error(t, err)

	_, err = NewEntity(v, nil, customerConfig(), nil)
	assert.Error(t, err)

	_, err = NewEntity(v, r, config.EntityConfig{Path: "/x"}, nil)
	assert.Error(t, err)

	e, err := NewEntity(v, r, customerConfig(), nil)
	require.NoError(t, err)
	assert.NotNil(t, e.logger)
	assert.Equal(t, DefaultSuccessTimeout, e.successTimeout)
}

// ============================================================================
// Exists
// ============================================================================

func TestExists(t *testing.T) {
	v := viewtest.New()
	rows(v, "Acme Ltd  Berlin", "Globex  Paris")
	e := newTestEntity(t, v, customerConfig())

	found, err := e.Exists(context.Background(), batch.Key{Name: "Globex"})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "/customers", v.URL)

	value, ok := v.Filled("#search")
	require.True(t, ok)
	assert.Equal(t, "Globex", value)

	found, err = e.Exists(context.Background(), batch.Key{Name: "Initech"})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, v.CountOn(viewtest.OpClick, rowsSel), "existence checks never click")
}

func TestExists_CodeMustMatch(t *testing.T) {
	v := viewtest.New()
	rows(v, "C-001  Acme Ltd")
	e := newTestEntity(t, v, customerConfig())

	found, err := e.Exists(context.Background(), batch.Key{Name: "Acme", Code: "C-001"})
	require.NoError(t, err)
	assert.True(t, found)

	value, _ := v.Filled("#search")
	assert.Equal(t, "C-001", value, "search uses the code when present")

	found, err = e.Exists(context.Background(), batch.Key{Name: "Acme", Code: "C-002"})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExists_CodeIsWholeWord(t *testing.T) {
	v := viewtest.New()
	rows(v, "Widget Pro  W-2", "Widget  W-10", "Widget  W-1")
	e := newTestEntity(t, v, customerConfig())

	found, err := e.Exists(context.Background(), batch.Key{Name: "Widget", Code: "W-1"})
	require.NoError(t, err)
	assert.True(t, found, "earlier rows with a similar name do not hide the match")

	v.SetList(rowsSel, viewtest.Texts("Widget  W-10")...)
	found, err = e.Exists(context.Background(), batch.Key{Name: "Widget", Code: "W-1"})
	require.NoError(t, err)
	assert.False(t, found, "W-10 is not W-1")
}

func TestUpdate_CodeSelectsMatchingRow(t *testing.T) {
	v := viewtest.New()
	nodes := rows(v, "Widget Pro  W-2", "Widget  W-1")
	saveShowsToast(v)
	e := newTestEntity(t, v, customerConfig())

	err := e.Update(context.Background(), batch.Key{Name: "Widget", Code: "W-1"}, map[string]string{"city": "Oslo"})
	require.NoError(t, err)
	assert.Equal(t, 0, nodes[0].Clicks)
	assert.Equal(t, 1, nodes[1].Clicks)
}

func TestExists_NavigationError(t *testing.T) {
	v := viewtest.New()
	v.FailOn("/customers", errors.New("net::ERR_CONNECTION_REFUSED"))
	e := newTestEntity(t, v, customerConfig())

	_, err := e.Exists(context.Background(), batch.Key{Name: "Acme"})
	assert.Error(t, err)
}

// ============================================================================
// Create
// ============================================================================

func TestCreate_FillsFieldsAndLookup(t *testing.T) {
	v := viewtest.New()
	rows(v)
	v.OnClick("#new", func(v *viewtest.View) { v.Show("#form") })
	v.OnClick("#currency", func(v *viewtest.View) { v.Show(listboxSel) })
	options := viewtest.Texts("USD", "EUR", "EURO-X")
	v.SetList(optionSel, options...)
	saveShowsToast(v)

	e := newTestEntity(t, v, customerConfig())
	err := e.Create(context.Background(), map[string]string{
		"name":     "Acme",
		"city":     "Berlin",
		"currency": "EUR",
	})
	require.NoError(t, err)

	name, _ := v.Filled("#name")
	city, _ := v.Filled("#city")
	assert.Equal(t, "Acme", name)
	assert.Equal(t, "Berlin", city)
	assert.Equal(t, 1, options[1].Clicks, "exact match picks EUR")
	assert.Equal(t, 0, options[2].Clicks)
	assert.Equal(t, 1, v.CountOn(viewtest.OpClick, "#save"))
}

func TestCreate_LookupNotFound(t *testing.T) {
	v := viewtest.New()
	v.OnClick("#new", func(v *viewtest.View) { v.Show("#form") })
	v.OnClick("#currency", func(v *viewtest.View) { v.Show(listboxSel) })
	v.SetList(optionSel, viewtest.Texts("USD")...)
	saveShowsToast(v)

	e := newTestEntity(t, v, customerConfig())
	err := e.Create(context.Background(), map[string]string{"name": "Acme", "currency": "JPY"})

	var nf *resolver.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "JPY", nf.Criterion.Text)
	assert.Equal(t, 0, v.CountOn(viewtest.OpClick, "#save"), "save is not attempted")
}

func TestCreate_EmptyLookupValue(t *testing.T) {
	v := viewtest.New()
	v.OnClick("#new", func(v *viewtest.View) { v.Show("#form") })
	v.OnClick("#currency", func(v *viewtest.View) { v.Show(listboxSel) })
	options := viewtest.Texts("USD", "EUR")
	v.SetList(optionSel, options...)
	saveShowsToast(v)

	e := newTestEntity(t, v, customerConfig())
	err := e.Create(context.Background(), map[string]string{"name": "Acme", "currency": "  "})

	require.ErrorIs(t, err, resolver.ErrEmptyCriterion)
	assert.Contains(t, err.Error(), "currency")
	assert.Equal(t, 0, options[0].Clicks, "blank value never picks the first option")
	assert.Equal(t, 0, v.CountOn(viewtest.OpClick, optionSel))
	assert.Equal(t, 0, v.CountOn(viewtest.OpClick, "#save"))
}

func TestCreate_UnknownField(t *testing.T) {
	v := viewtest.New()
	v.OnClick("#new", func(v *viewtest.View) { v.Show("#form") })
	e := newTestEntity(t, v, customerConfig())

	err := e.Create(context.Background(), map[string]string{"name": "Acme", "fax": "123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fax")
	assert.Equal(t, 0, v.Count(viewtest.OpFill))
}

func TestCreate_FormNotOpened(t *testing.T) {
	v := viewtest.New()
	e := newTestEntity(t, v, customerConfig())

	err := e.Create(context.Background(), map[string]string{"name": "Acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "form did not open")
}

func TestCreate_NoSuccessIndicator(t *testing.T) {
	v := viewtest.New()
	v.OnClick("#new", func(v *viewtest.View) { v.Show("#form") })
	e := newTestEntity(t, v, customerConfig())

	err := e.Create(context.Background(), map[string]string{"name": "Acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "success indicator")
}

func TestCreate_ToastText(t *testing.T) {
	cfg := customerConfig()
	cfg.Toast = ""
	cfg.ToastText = "Saved"

	v := viewtest.New()
	v.OnClick("#new", func(v *viewtest.View) { v.Show("#form") })
	v.OnClick("#save", func(v *viewtest.View) { v.Show(".message").Text = "Record Saved" })
	e := newTestEntity(t, v, cfg)

	require.NoError(t, e.Create(context.Background(), map[string]string{"name": "Acme"}))
}

func TestCreate_ToastTextAppearsLater(t *testing.T) {
	cfg := customerConfig()
	cfg.Toast = ""
	cfg.ToastText = "Saved"

	v := viewtest.New()
	v.OnClick("#new", func(v *viewtest.View) { v.Show("#form") })
	v.OnClick("#save", func(v *viewtest.View) {
		time.AfterFunc(30*time.Millisecond, func() { v.SetText(".message", "Record Saved") })
	})
	e := newTestEntity(t, v, cfg)
	e.SetSuccessTimeout(2 * time.Second)

	require.NoError(t, e.Create(context.Background(), map[string]string{"name": "Acme"}))
}

func TestCreate_ToastTextNeverShown(t *testing.T) {
	cfg := customerConfig()
	cfg.Toast = ""
	cfg.ToastText = "Saved"

	v := viewtest.New()
	v.OnClick("#new", func(v *viewtest.View) { v.Show("#form") })
	e := newTestEntity(t, v, cfg)
	e.SetSuccessTimeout(40 * time.Millisecond)

	start := time.Now()
	err := e.Create(context.Background(), map[string]string{"name": "Acme"})
	require.ErrorIs(t, err, view.ErrNotVisible)
	assert.Contains(t, err.Error(), "success message not shown")
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond, "waits the full timeout")
}

// ============================================================================
// Update and Delete
// ============================================================================

func TestUpdate_OpensRowAndSaves(t *testing.T) {
	v := viewtest.New()
	nodes := rows(v, "Acme Ltd", "Globex")
	saveShowsToast(v)
	e := newTestEntity(t, v, customerConfig())

	err := e.Update(context.Background(), batch.Key{Name: "Globex"}, map[string]string{"city": "Rome"})
	require.NoError(t, err)

	assert.Equal(t, 0, nodes[0].Clicks)
	assert.Equal(t, 1, nodes[1].Clicks)
	city, _ := v.Filled("#city")
	assert.Equal(t, "Rome", city)
}

func TestUpdate_RowMissing(t *testing.T) {
	v := viewtest.New()
	rows(v, "Acme Ltd")
	e := newTestEntity(t, v, customerConfig())

	err := e.Update(context.Background(), batch.Key{Name: "Globex"}, map[string]string{"city": "Rome"})
	var nf *resolver.NotFoundError
	assert.True(t, errors.As(err, &nf))
	assert.Equal(t, 1, v.Count(viewtest.OpFill), "only the search input is filled")
}

func TestDelete_Confirms(t *testing.T) {
	v := viewtest.New()
	rows(v, "Acme Ltd")
	v.OnClick("#delete", func(v *viewtest.View) { v.Show("#confirm") })
	v.OnClick("#confirm", func(v *viewtest.View) {
		v.Remove(rowsSel, "Acme Ltd")
		v.Show(".toast")
	})
	e := newTestEntity(t, v, customerConfig())

	require.NoError(t, e.Delete(context.Background(), batch.Key{Name: "Acme"}))
	assert.Equal(t, 1, v.CountOn(viewtest.OpClick, "#confirm"))

	found, err := e.Exists(context.Background(), batch.Key{Name: "Acme"})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDelete_ConfirmationMissing(t *testing.T) {
	v := viewtest.New()
	rows(v, "Acme Ltd")
	e := newTestEntity(t, v, customerConfig())

	err := e.Delete(context.Background(), batch.Key{Name: "Acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confirmation")
}

// ============================================================================
// Navigation
// ============================================================================

func TestBack_PrefersBackButton(t *testing.T) {
	cfg := customerConfig()
	cfg.BackButton = "#close"

	v := viewtest.New()
	e := newTestEntity(t, v, cfg)

	require.NoError(t, e.Back(context.Background()))
	assert.Equal(t, 1, v.Count(viewtest.OpBack), "falls back to history when the button is absent")

	v.Show("#close")
	require.NoError(t, e.Back(context.Background()))
	assert.Equal(t, 1, v.CountOn(viewtest.OpClick, "#close"))
	assert.Equal(t, 1, v.Count(viewtest.OpBack))
}

func TestReload(t *testing.T) {
	v := viewtest.New()
	v.ReloadErr = errors.New("crashed")
	e := newTestEntity(t, v, customerConfig())

	assert.Error(t, e.Reload(context.Background()))
	assert.Equal(t, 1, v.Count(viewtest.OpReload))
}
