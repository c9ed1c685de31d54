package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"searchads-client/internal/components/configutil"
	"searchads-client/internal/query"

	"github.com/stretchr/testify/require"
)

func TestReportFlags(t *testing.T) {
	flags := reportFlags{
		appID:       42,
		measure:     "Keywords",
		start:       "2024-01-01",
		end:         "2024-01-31",
		timezone:    "ortz",
		granularity: "weekly",
		groupBy:     []string{"countryOrRegion"},
		orderBy:     "impressions",
		descending:  true,
		limit:       query.DefaultLimit,
	}
	q, err := flags.build()
	require.NoError(t, err)
	require.Equal(t, "/reports/keywords", q.Endpoint())
	require.Equal(t, "42", q.ResourceID())

	var body map[string]any
	require.NoError(t, json.Unmarshal(q.Body(), &body))
	require.Equal(t, "ORTZ", body["timeZone"])
	require.Equal(t, "WEEKLY", body["granularity"])
	require.Equal(t, []any{"countryOrRegion"}, body["groupBy"])

	flags.groupBy = []string{"planet"}
	_, err = flags.build()
	require.ErrorIs(t, err, query.ErrInvalidFieldValue)
}

func TestRecommendFlags(t *testing.T) {
	_, err := recommendFlags{storefronts: []string{"US"}}.build("photo")
	require.ErrorIs(t, err, query.ErrInvalidFieldValue)

	q, err := recommendFlags{appID: 7, storefronts: []string{"us", "de"}}.build("photo editor")
	require.NoError(t, err)
	require.Equal(t, "photo editor", q.Params().Get("text"))
	require.JSONEq(t, `{"storefronts":["US","DE"]}`, string(q.Body()))
}

func TestRenderRows(t *testing.T) {
	var out bytes.Buffer
	err := renderRows(&out, json.RawMessage(`[
		{"text": "photo", "popularity": 45, "metadata": {"app": "x"}},
		{"text": "editor"}
	]`))
	require.NoError(t, err)
	require.Contains(t, out.String(), "metadata.app")
	require.Contains(t, out.String(), "popularity")
	require.Contains(t, out.String(), "editor")

	out.Reset()
	err = renderRows(&out, json.RawMessage(`{"total": 3}`))
	require.NoError(t, err)
	require.Contains(t, out.String(), `"total": 3`)
}

func TestReportRows(t *testing.T) {
	rows := reportRows(json.RawMessage(`{"reportingDataResponse":{"row":[{"a":1}]}}`))
	require.JSONEq(t, `[{"a":1}]`, string(rows))

	other := json.RawMessage(`[1,2]`)
	require.Equal(t, other, reportRows(other))
}

func TestConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "searchads.json5"), []byte(`{
		// shared defaults
		client: { concurrent_requests: 2, requests_per_second: 1.5 },
		session_store: { sqlite: { file: "session.db" } },
	}`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "searchads.local.json5"), []byte(`{
		client: { concurrent_requests: 4 },
		telemetry: { verbose: true },
	}`), 0600))

	cfg, err := configutil.ReadConfig[Config](filepath.Join(dir, "searchads.json5"))
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Client.ConcurrentRequests)
	require.Equal(t, 1.5, cfg.Client.RequestsPerSecond)
	require.Equal(t, "session.db", cfg.SessionStore.SQLite.File)
	require.True(t, cfg.Telemetry.Verbose)
}

func TestLinePrompt(t *testing.T) {
	input, writer := io.Pipe()
	prompt := newLinePrompt(input)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := prompt.ReadLine(canceled)
	require.ErrorIs(t, err, context.Canceled)

	go func() {
		_, _ = writer.Write([]byte(" 123456 \n"))
		_ = writer.Close()
	}()

	code, err := prompt.ReadLine(context.Background())
	require.NoError(t, err)
	require.Equal(t, "123456", code)

	_, err = prompt.ReadLine(context.Background())
	require.ErrorIs(t, err, io.EOF)
	_, err = prompt.ReadLine(context.Background())
	require.ErrorIs(t, err, io.EOF)
}
