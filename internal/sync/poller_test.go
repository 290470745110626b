package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	mu    gosync.Mutex
	calls int
	err   error
}

func (l *countingLoader) LoadAll(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.err
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func TestPoller_RefreshEmitsMessage(t *testing.T) {
	loader := &countingLoader{}
	p := New(loader, time.Hour)
	cmd := p.Start()
	require.NotNil(t, cmd)
	defer p.Stop()

	assert.Nil(t, p.Start(), "second Start is a no-op")

	p.Refresh()
	msg, ok := cmd().(RefreshedMsg)
	require.True(t, ok)
	assert.NoError(t, msg.Error)
	assert.Equal(t, 1, loader.count())

	st := p.Status()
	assert.Equal(t, SyncIdle, st.State)
	assert.False(t, st.LastSync.IsZero())
}

func TestPoller_TickerReloads(t *testing.T) {
	loader := &countingLoader{}
	p := New(loader, 10*time.Millisecond)
	p.Start()
	defer p.Stop()

	assert.Eventually(t, func() bool { return loader.count() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestPoller_ReportsError(t *testing.T) {
	loader := &countingLoader{err: errors.New("projects: connection refused")}
	p := New(loader, time.Hour)
	p.Start()
	defer p.Stop()

	p.Refresh()
	msg := p.WaitForNextResult()().(RefreshedMsg)
	assert.EqualError(t, msg.Error, "projects: connection refused")
	assert.Equal(t, SyncError, p.Status().State)
}

func TestNew_DefaultInterval(t *testing.T) {
	p := New(&countingLoader{}, 0)
	assert.Equal(t, DefaultInterval, p.interval)
	p.Stop()
}
