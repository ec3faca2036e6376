package archive

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpulse/gridpulse/internal/timing/model"
)

func TestWriteReadRoundTrip(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	state := model.NewSessionState(7, 42)
	state.SessionName = "Main Race"
	state.CurrentFlag = model.FlagCheckered
	car := state.Car("12")
	car.OverallPosition = 1
	car.LastLapTime = 95 * time.Second

	path, err := w.Write(state, "quiet")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "session-7-42-quiet-"))
	assert.True(t, strings.HasSuffix(path, ".json.gz"))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "Main Race", got.SessionName)
	assert.Equal(t, model.FlagCheckered, got.CurrentFlag)
	require.NotNil(t, got.Cars["12"])
	assert.Equal(t, 95*time.Second, got.Cars["12"].LastLapTime)
}

func TestRepeatedWritesNeverCollide(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	state := model.NewSessionState(7, 42)
	first, err := w.Write(state, "change")
	require.NoError(t, err)
	second, err := w.Write(state, "change")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.json.gz"))
	assert.Error(t, err)
}
