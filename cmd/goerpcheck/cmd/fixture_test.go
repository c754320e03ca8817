package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goerpcheck/internal/config"
	"github.com/dbsmedya/goerpcheck/internal/logger"
	"github.com/dbsmedya/goerpcheck/internal/view"
	"github.com/dbsmedya/goerpcheck/internal/view/viewtest"
)

const fixtureConfig = `app:
  base_url: https://erp.example.test
resolver:
  settle_timeout_ms: 0
  settle_delay_ms: 0
entities:
  customers:
    path: /customers
    rows: "tbody tr"
    search: "#search"
    new_button: "#new"
    save_button: "#save"
    delete_button: "#delete"
    confirm_button: "#confirm"
    form: "#form"
    toast: ".toast"
    fields:
      - name: name
        selector: "#name"
      - name: city
        selector: "#city"
batches:
  create_customers:
    entity: customers
    operation: create
    data: data/create.json
  delete_customers:
    entity: customers
    operation: delete
    data: data/delete.json
    depends_on: [create_customers]
report:
  format: %s
  output: %s
logging:
  level: error
`

// writeFixture writes a config with two dependent batches and their data
// files, and points cfgFile at it for the duration of the test.
func writeFixture(t *testing.T, format string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "create.json"),
		[]byte(`[{"name": "Acme", "city": "Berlin"}, {"name": "Globex"}]`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "delete.json"),
		[]byte(`[{"name": "Acme"}]`), 0644))

	reportPath := filepath.Join(dir, "out", "report.json")
	content := []byte(fmt.Sprintf(fixtureConfig, format, reportPath))
	path := filepath.Join(dir, "goerpcheck.yaml")
	require.NoError(t, os.WriteFile(path, content, 0644))

	original := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = original })
	return dir
}

// erpView scripts a customers listing where saving appends a row and
// confirming a delete removes it.
func erpView() *viewtest.View {
	v := viewtest.New()
	v.SetList("tbody tr")
	v.OnClick("#new", func(v *viewtest.View) { v.Show("#form") })
	v.OnClick("#save", func(v *viewtest.View) {
		name, _ := v.Filled("#name")
		v.Append("tbody tr", &viewtest.Node{
			Text:    name,
			OnClick: func(v *viewtest.View) { v.Show("#form") },
		})
		v.Show(".toast")
	})
	v.OnClick("#delete", func(v *viewtest.View) { v.Show("#confirm") })
	v.OnClick("#confirm", func(v *viewtest.View) {
		v.Remove("tbody tr", "Acme")
		v.Show(".toast")
	})
	return v
}

// useView replaces the browser with v for the duration of the test.
func useView(t *testing.T, v view.View) {
	t.Helper()
	original := openView
	openView = func(ctx context.Context, cfg *config.Config, log *logger.Logger) (view.View, func(), error) {
		return v, func() {}, nil
	}
	t.Cleanup(func() { openView = original })
}
