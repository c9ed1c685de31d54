package chrono

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStandardImpl(t *testing.T) {
	var zero StandardImpl
	require.Equal(t, time.UTC, zero.Location())
	require.Equal(t, time.UTC, zero.Now().Location())

	utc, err := NewStandardImpl("")
	require.NoError(t, err)
	require.Equal(t, time.UTC, utc.Location())

	_, err = NewStandardImpl("Not/AZone")
	require.Error(t, err)
}

func TestFixed(t *testing.T) {
	at := time.Date(2021, time.February, 1, 12, 0, 0, 0, time.UTC)
	clock := Fixed(at)
	require.True(t, at.Equal(clock.Now()))
	require.Equal(t, time.UTC, clock.Location())
}
