package guard

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markerPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), ".intakebot.lock")
}

func TestAcquireFreshMarker(t *testing.T) {
	path := markerPath(t)

	g, err := Acquire(path)
	require.NoError(t, err)
	defer g.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid, "marker must record the owning pid")
}

func TestAcquireReclaimsStaleMarker(t *testing.T) {
	path := markerPath(t)
	// Large pids beyond kernel limits never correspond to a live process.
	require.NoError(t, os.WriteFile(path, []byte("999999999\n"), 0o644))

	g, err := Acquire(path)
	require.NoError(t, err)
	defer g.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))
}

func TestAcquireRefusedByLiveHolder(t *testing.T) {
	path := markerPath(t)
	// Our own pid is definitionally alive.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644))

	g, err := Acquire(path)
	assert.Nil(t, g)
	assert.ErrorIs(t, err, ErrActiveInstance)

	// The live holder's marker is untouched.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))
}

func TestAcquireReclaimsMalformedMarker(t *testing.T) {
	path := markerPath(t)
	// Garbage content names no live process, so the marker is abandoned.
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))

	g, err := Acquire(path)
	require.NoError(t, err)
	defer g.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))
}

func TestReleaseIdempotent(t *testing.T) {
	path := markerPath(t)
	g, err := Acquire(path)
	require.NoError(t, err)

	g.Release()
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	// Second release and nil receiver are harmless.
	g.Release()
	var nilGuard *Guard
	nilGuard.Release()
}

func TestReacquireAfterRelease(t *testing.T) {
	path := markerPath(t)
	g, err := Acquire(path)
	require.NoError(t, err)
	g.Release()

	g2, err := Acquire(path)
	require.NoError(t, err)
	g2.Release()
}
