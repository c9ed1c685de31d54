package assert

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotNil(t *testing.T) {
	var db *sql.DB
	var m map[string]int
	require.PanicsWithValue(t, "expected db to be not nil", func() { NotNil(db, "db") })
	require.Panics(t, func() { NotNil(nil, "value") })
	require.Panics(t, func() { NotNil(m, "map") })
	require.NotPanics(t, func() { NotNil(&sql.DB{}, "db") })
	require.NotPanics(t, func() { NotNil(3, "number") })
}

func TestNotEmptyStr(t *testing.T) {
	require.PanicsWithValue(t, "expected prefix to be non-empty", func() { NotEmptyStr("", "prefix") })
	require.NotPanics(t, func() { NotEmptyStr("x", "prefix") })
}
