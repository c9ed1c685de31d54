package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

// flatten turns nested objects into dotted keys so a row fits in a table.
func flatten(prefix string, value any, out map[string]any) {
	obj, ok := value.(map[string]any)
	if !ok {
		out[prefix] = value
		return
	}
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		flatten(key, v, out)
	}
}

// renderRows prints a json array of objects as a table, anything else is
// printed as indented json.
func renderRows(out io.Writer, data json.RawMessage) error {
	var rows []map[string]any
	err := json.Unmarshal(data, &rows)
	if err != nil || len(rows) == 0 {
		var value any
		err = json.Unmarshal(data, &value)
		if err != nil {
			return err
		}
		indented, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(indented))
		return err
	}

	flat := make([]map[string]any, len(rows))
	columns := map[string]struct{}{}
	for i, row := range rows {
		flat[i] = map[string]any{}
		flatten("", row, flat[i])
		for k := range flat[i] {
			columns[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(columns))
	for k := range columns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := newTable(out)
	header := make(table.Row, len(keys))
	for i, k := range keys {
		header[i] = k
	}
	t.AppendHeader(header)
	for _, row := range flat {
		r := make(table.Row, len(keys))
		for i, k := range keys {
			if v, ok := row[k]; ok {
				r[i] = v
			}
		}
		t.AppendRow(r)
	}
	t.Render()
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
