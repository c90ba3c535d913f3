package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitAppliesReflection(t *testing.T) {
	store := NewFileStore(t.TempDir() + "/MEMORY.md")
	r := NewReflector(store, 0)
	defer r.Stop()

	err := r.Submit(context.Background(), func(_ context.Context, current string) (string, error) {
		assert.Empty(t, current)
		return "first note", nil
	})
	require.NoError(t, err)

	doc, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first note", doc)
}

func TestConcurrentSubmitsAreSerialised(t *testing.T) {
	// N concurrent submissions produce N writes, each reading the state
	// written by its predecessor.
	store := NewFileStore(t.TempDir() + "/MEMORY.md")
	r := NewReflector(store, 0)
	defer r.Stop()

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := r.Submit(context.Background(), func(_ context.Context, current string) (string, error) {
				if current == "" {
					return fmt.Sprintf("line %d", i), nil
				}
				return current + "\n" + fmt.Sprintf("line %d", i), nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	doc, err := store.Load(context.Background())
	require.NoError(t, err)
	lines := strings.Split(doc, "\n")
	assert.Len(t, lines, n)

	seen := make(map[string]bool, n)
	for _, line := range lines {
		assert.False(t, seen[line], "duplicate write: %s", line)
		seen[line] = true
	}
}

func TestMaxLinesCap(t *testing.T) {
	store := NewFileStore(t.TempDir() + "/MEMORY.md")
	r := NewReflector(store, 3)
	defer r.Stop()

	err := r.Submit(context.Background(), func(_ context.Context, _ string) (string, error) {
		return "1\n2\n3\n4\n5", nil
	})
	require.NoError(t, err)

	doc, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3", doc)
}

func TestReflectErrorPropagates(t *testing.T) {
	store := NewFileStore(t.TempDir() + "/MEMORY.md")
	r := NewReflector(store, 0)
	defer r.Stop()

	err := r.Submit(context.Background(), func(_ context.Context, _ string) (string, error) {
		return "", fmt.Errorf("model unavailable")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")

	doc, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestNilReflectorDropsSubmissions(t *testing.T) {
	var r *Reflector
	err := r.Submit(context.Background(), func(_ context.Context, _ string) (string, error) {
		t.Fatal("must not run")
		return "", nil
	})
	assert.NoError(t, err)
	r.Stop()
}

func TestSubmitAfterStop(t *testing.T) {
	store := NewFileStore(t.TempDir() + "/MEMORY.md")
	r := NewReflector(store, 0)
	r.Stop()

	err := r.Submit(context.Background(), func(_ context.Context, current string) (string, error) {
		return current, nil
	})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestFileStoreMissingFileLoadsEmpty(t *testing.T) {
	store := NewFileStore(t.TempDir() + "/nested/dir/MEMORY.md")
	doc, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc)

	require.NoError(t, store.Save(context.Background(), "hello"))
	doc, err = store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", doc)
}
