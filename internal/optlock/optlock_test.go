package optlock

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardSecondWriterFromSameVersionConflicts(t *testing.T) {
	g := NewGuard()
	g.Track("operation", 7, 3)

	next, err := g.Update("operation", 7, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), next)

	_, err = g.Update("operation", 7, 3, nil)
	require.ErrorIs(t, err, ErrConcurrentModification)

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, int64(3), conflict.Expected)
	assert.Equal(t, int64(4), conflict.Actual)

	v, ok := g.Version("operation", 7)
	require.True(t, ok)
	assert.Equal(t, int64(4), v)
}

func TestGuardConcurrentWritersBumpExactlyOnce(t *testing.T) {
	g := NewGuard()
	g.Track("operation", 1, 5)

	const writers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := g.Update("operation", 1, 5, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrConcurrentModification):
				conflicts++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, writers-1, conflicts)
	v, _ := g.Version("operation", 1)
	assert.Equal(t, int64(6), v)
}

func TestGuardApplyFailureKeepsVersion(t *testing.T) {
	g := NewGuard()
	g.Track("work_center", 2, 1)

	boom := errors.New("boom")
	_, err := g.Update("work_center", 2, 1, func(int64) error { return boom })
	require.ErrorIs(t, err, boom)

	v, _ := g.Version("work_center", 2)
	assert.Equal(t, int64(1), v)
}

func TestGuardUnknownEntity(t *testing.T) {
	g := NewGuard()
	_, err := g.Update("part", 99, 1, nil)
	require.ErrorIs(t, err, ErrNotFound)

	g.Track("part", 99, 1)
	g.Forget("part", 99)
	_, err = g.Update("part", 99, 1, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGuardUpdateManyIsAllOrNothing(t *testing.T) {
	g := NewGuard()
	g.Track("batch", 1, 1)
	g.Track("batch", 2, 4)

	applied := false
	err := g.UpdateMany([]Expect{{"batch", 1, 1}, {"batch", 2, 3}}, func() error {
		applied = true
		return nil
	})
	require.ErrorIs(t, err, ErrConcurrentModification)
	assert.False(t, applied)
	v1, _ := g.Version("batch", 1)
	assert.Equal(t, int64(1), v1, "first entity must not be bumped")

	require.NoError(t, g.UpdateMany([]Expect{{"batch", 1, 1}, {"batch", 2, 4}}, nil))
	v1, _ = g.Version("batch", 1)
	v2, _ := g.Version("batch", 2)
	assert.Equal(t, int64(2), v1)
	assert.Equal(t, int64(5), v2)
}
