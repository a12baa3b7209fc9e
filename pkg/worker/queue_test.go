package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSerializesJobs(t *testing.T) {
	q := New("counter")
	t.Cleanup(q.Close)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := q.Do(context.Background(), func(context.Context) error {
				current := counter
				time.Sleep(time.Microsecond)
				counter = current + 1
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestDoReturnsJobError(t *testing.T) {
	q := New("errors")
	t.Cleanup(q.Close)

	sentinel := errors.New("boom")
	err := q.Do(context.Background(), func(context.Context) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
}

func TestDoTimesOutWhenBusy(t *testing.T) {
	q := New("slow").WithTimeout(20 * time.Millisecond)
	t.Cleanup(q.Close)

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = q.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := q.Do(context.Background(), func(context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slow")
	close(release)
}

func TestDoAfterClose(t *testing.T) {
	q := New("closed")
	q.Close()
	q.Close()

	err := q.Do(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}
