package stream

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/netlens/internal/api"
	"github.com/user/netlens/internal/model"
	"github.com/user/netlens/internal/sink"
)

type step struct {
	banner model.Banner
	err    error
}

// fakeChannel replays a fixed script, then blocks until closed.
type fakeChannel struct {
	steps  []step
	idx    int
	closed chan struct{}
	once   sync.Once
}

func newFakeChannel(steps ...step) *fakeChannel {
	return &fakeChannel{steps: steps, closed: make(chan struct{})}
}

func (f *fakeChannel) Next() (model.Banner, error) {
	if f.idx < len(f.steps) {
		s := f.steps[f.idx]
		f.idx++
		return s.banner, s.err
	}
	<-f.closed
	return nil, io.EOF
}

func (f *fakeChannel) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func testBanner(ip string, port int) model.Banner {
	return model.Banner{
		"ip_str":    ip,
		"port":      float64(port),
		"timestamp": "2024-03-01T10:00:00.000000",
	}
}

func TestRunStopsAtLimitAfterPersisting(t *testing.T) {
	dir := t.TempDir()

	ch := newFakeChannel(
		step{banner: testBanner("1.1.1.1", 80)},
		step{banner: testBanner("2.2.2.2", 443)},
		step{banner: testBanner("3.3.3.3", 22)},
	)

	var handled []string
	c := &Consumer{
		Factory: func(ctx context.Context) (Channel, error) { return ch, nil },
		Limit:   2,
		Rotator: sink.NewRotator(dir, 9),
		Handle:  func(b model.Banner) { handled = append(handled, b.HostIP()) },
	}

	n, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"1.1.1.1", "2.2.2.2"}, handled)
	assert.Equal(t, StateStopped, c.State())

	require.NoError(t, c.Rotator.Close())

	// Both records made it to disk before the consumer stopped.
	var persisted int
	err = sink.ReadFile(filepath.Join(dir, "2024-03-01.json.gz"), func(model.Banner) error {
		persisted++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, persisted)
}

func TestRunReconnectsOnTransientError(t *testing.T) {
	channels := []*fakeChannel{
		newFakeChannel(
			step{banner: testBanner("1.1.1.1", 80)},
			step{err: api.ErrIdleTimeout},
		),
		newFakeChannel(
			step{banner: testBanner("2.2.2.2", 443)},
		),
	}

	opens := 0
	c := &Consumer{
		Factory: func(ctx context.Context) (Channel, error) {
			ch := channels[opens]
			opens++
			return ch, nil
		},
		Limit:   2,
		Backoff: time.Millisecond,
	}

	n, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, opens)
}

func TestRunSurfacesProtocolError(t *testing.T) {
	ch := newFakeChannel(
		step{banner: testBanner("1.1.1.1", 80)},
		step{err: &api.Error{StatusCode: 401, Message: "invalid key"}},
	)

	c := &Consumer{
		Factory: func(ctx context.Context) (Channel, error) { return ch, nil },
		Backoff: time.Millisecond,
	}

	n, err := c.Run(context.Background())
	require.Error(t, err)
	var apiErr *api.Error
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 1, n, "records before the failure still count")
}

func TestRunGivesUpAfterRepeatedOpenFailures(t *testing.T) {
	opens := 0
	c := &Consumer{
		Factory: func(ctx context.Context) (Channel, error) {
			opens++
			return nil, syscall.ECONNREFUSED
		},
		Backoff:    time.Millisecond,
		MaxReopens: 2,
	}

	n, err := c.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, syscall.ECONNREFUSED))
	assert.Equal(t, 0, n)
	assert.Equal(t, 3, opens)
}

func TestRunReportsRecoveringDuringReopenBackoff(t *testing.T) {
	c := &Consumer{
		Factory: func(ctx context.Context) (Channel, error) {
			return nil, syscall.ECONNREFUSED
		},
		Backoff:    50 * time.Millisecond,
		MaxReopens: 1000,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return c.State() == StateRecovering },
		time.Second, time.Millisecond,
		"a consumer waiting out a failed reopen is recovering, not connecting")

	cancel()
	<-done
	assert.Equal(t, StateStopped, c.State())
}

func TestRunProtocolErrorOnOpenIsFatal(t *testing.T) {
	opens := 0
	c := &Consumer{
		Factory: func(ctx context.Context) (Channel, error) {
			opens++
			return nil, &api.Error{StatusCode: 402, Message: "no credits"}
		},
		Backoff: time.Millisecond,
	}

	_, err := c.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, opens, "protocol rejections must not be retried")
}

func TestRunStopsCleanlyOnCancel(t *testing.T) {
	ch := newFakeChannel(step{banner: testBanner("1.1.1.1", 80)})

	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		Factory: func(ctx context.Context) (Channel, error) { return ch, nil },
		Handle:  func(model.Banner) { cancel() },
	}

	n, err := c.Run(ctx)
	require.NoError(t, err, "cancellation is a normal stop")
	assert.Equal(t, 1, n)
	assert.Equal(t, StateStopped, c.State())
}

func TestRunSinkFailureIsFatal(t *testing.T) {
	ch := newFakeChannel(step{banner: testBanner("1.1.1.1", 80)})

	// Point the rotator at a path that cannot be created.
	c := &Consumer{
		Factory: func(ctx context.Context) (Channel, error) { return ch, nil },
		Rotator: sink.NewRotator(filepath.Join(t.TempDir(), "missing", "nested"), 9),
	}

	n, err := c.Run(context.Background())
	require.Error(t, err)
	var werr *sink.WriteError
	assert.ErrorAs(t, err, &werr)
	assert.Equal(t, 0, n)
}
