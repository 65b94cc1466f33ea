package pid

import (
	"os"
	"strconv"
	"testing"

	"codeberg.org/mutker/blinktrack/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndRemove(t *testing.T) {
	f := New(t.TempDir())

	require.NoError(t, f.Write())

	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, f.Remove())
	_, err = os.Stat(f.Path())
	assert.True(t, os.IsNotExist(err))

	// removing twice is fine
	require.NoError(t, f.Remove())
}

func TestWriteRefusesLiveOwner(t *testing.T) {
	f := New(t.TempDir())
	parent := os.Getppid()
	require.NoError(t, os.WriteFile(f.Path(), []byte(strconv.Itoa(parent)), 0o600))

	err := f.Write()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
}

func TestWriteReplacesGarbage(t *testing.T) {
	f := New(t.TempDir())
	require.NoError(t, os.WriteFile(f.Path(), []byte("not a pid"), 0o600))

	require.NoError(t, f.Write())
}
