package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndList(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "runs.sqlite3"))
	require.NoError(t, err)
	defer r.Close()

	base := time.Unix(1700000000, 0)
	for i, arch := range []string{"dense", "cnn", "estimator"} {
		require.NoError(t, r.Record(Run{
			ID:           arch + "-run",
			Architecture: arch,
			Steps:        100 * (i + 1),
			BatchSize:    50,
			Accuracy:     0.9 + float64(i)/100,
			ExportDir:    "/tmp/" + arch,
			StartedAt:    base.Add(time.Duration(i) * time.Minute),
			Duration:     1500 * time.Millisecond,
			PicPredictions: map[string][]int{
				"MNIST": {0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
			},
		}))
	}

	runs, err := r.List(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "estimator", runs[0].Architecture, "newest first")
	assert.Equal(t, 300, runs[0].Steps)
	assert.Equal(t, 1500*time.Millisecond, runs[0].Duration)
	assert.True(t, runs[0].StartedAt.Equal(base.Add(2*time.Minute)))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, runs[0].PicPredictions["MNIST"])

	limited, err := r.List(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestGet(t *testing.T) {
	r, err := Open(":memory:")
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Record(Run{ID: "abc", Architecture: "cnn", StartedAt: time.Now()}))

	run, err := r.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, "cnn", run.Architecture)
	assert.Nil(t, run.PicPredictions)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecord_DuplicateID(t *testing.T) {
	r, err := Open(":memory:")
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Record(Run{ID: "dup"}))
	assert.Error(t, r.Record(Run{ID: "dup"}))
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.sqlite3")
	r, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, r.Record(Run{ID: "persisted", StartedAt: time.Now()}))
	require.NoError(t, r.Close())

	r, err = Open(path)
	require.NoError(t, err)
	defer r.Close()
	_, err = r.Get("persisted")
	assert.NoError(t, err)
}
