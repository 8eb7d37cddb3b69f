package cask_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/cask/pkg/cask"
	"github.com/iamNilotpal/cask/pkg/errors"
	"github.com/iamNilotpal/cask/pkg/logger"
	"github.com/iamNilotpal/cask/pkg/options"
)

func openTemp(t *testing.T, opts ...options.OptionFunc) *cask.Store {
	t.Helper()

	opts = append([]options.OptionFunc{options.WithLogger(logger.NewNop())}, opts...)
	store, err := cask.OpenWithConfig(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenPutGet(t *testing.T) {
	store := openTemp(t)

	require.NoError(t, store.Put([]byte("hello"), []byte("world")))

	got, err := store.Get([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, []byte("world"), got)
}

func TestPutPutDeleteGet(t *testing.T) {
	store := openTemp(t)

	require.NoError(t, store.Put([]byte("k"), []byte("v1")))
	require.NoError(t, store.Put([]byte("k"), []byte("v2")))
	require.NoError(t, store.Delete([]byte("k")))

	_, err := store.Get([]byte("k"))
	require.True(t, errors.IsNotFound(err))
}

func TestValuesSurviveReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := cask.OpenWithConfig(dir, options.WithLogger(logger.NewNop()))
	require.NoError(t, err)
	require.NoError(t, store.Put([]byte("k"), []byte("v")))
	require.NoError(t, store.Close())

	reopened, err := cask.OpenWithConfig(dir, options.WithLogger(logger.NewNop()))
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}

func TestDeleteSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := cask.OpenWithConfig(dir, options.WithLogger(logger.NewNop()))
	require.NoError(t, err)
	require.NoError(t, store.Put([]byte("k"), []byte("v")))
	require.NoError(t, store.Delete([]byte("k")))
	require.NoError(t, store.Close())

	reopened, err := cask.OpenWithConfig(dir, options.WithLogger(logger.NewNop()))
	require.NoError(t, err)
	defer reopened.Close()

	_, err = reopened.Get([]byte("k"))
	require.True(t, errors.IsNotFound(err))
}

func TestRotationKeepsAllKeysReadable(t *testing.T) {
	store := openTemp(t, options.WithActiveThreshold(264), options.WithWorkers(0))

	for i := 0; i < 512; i++ {
		require.NoError(t, store.Put([]byte("entry"), []byte("1")))
	}

	got, err := store.Get([]byte("entry"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), got)
}

func TestConcurrentUse(t *testing.T) {
	store := openTemp(t, options.WithActiveThreshold(264))

	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("w%d-%d", w, i)
				require.NoError(t, store.Put([]byte(key), []byte("v")))

				got, err := store.Get([]byte(key))
				require.NoError(t, err)
				require.Equal(t, []byte("v"), got)
			}
		}(w)
	}
	wg.Wait()
}

func TestCompactThenRead(t *testing.T) {
	store := openTemp(t, options.WithActiveThreshold(17), options.WithWorkers(0))

	require.NoError(t, store.Put([]byte("k"), []byte("A")))
	require.NoError(t, store.Put([]byte("k"), []byte("B")))

	require.NoError(t, store.Compact())

	got, err := store.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("B"), got)
}

func TestCompactedStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := cask.OpenWithConfig(
		dir,
		options.WithLogger(logger.NewNop()),
		options.WithActiveThreshold(32),
		options.WithWorkers(0),
	)
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		require.NoError(t, store.Put([]byte("churn"), []byte(fmt.Sprintf("v%d", i))))
		require.NoError(t, store.Put([]byte(fmt.Sprintf("stable-%d", i)), []byte("s")))
	}
	require.NoError(t, store.Compact())
	require.NoError(t, store.Close())

	// The hint files written by compaction feed this reopen.
	reopened, err := cask.OpenWithConfig(dir, options.WithLogger(logger.NewNop()))
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get([]byte("churn"))
	require.NoError(t, err)
	require.Equal(t, []byte("v7"), got)

	for i := 0; i < 8; i++ {
		got, err := reopened.Get([]byte(fmt.Sprintf("stable-%d", i)))
		require.NoError(t, err)
		require.Equal(t, []byte("s"), got)
	}
}

func TestOpenDefaultConfiguration(t *testing.T) {
	store, err := cask.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put([]byte("k"), []byte("v")))
	got, err := store.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}
