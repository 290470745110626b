// Package sync refreshes the ledger in the background so rows written by
// other devices to a shared database show up in the UI.
package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// SyncState represents the current state of the refresh loop.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the refresh state.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// RefreshedMsg is a tea.Msg sent after each reload. Error is
// informational: collections that loaded are already applied.
type RefreshedMsg struct {
	At    time.Time
	Error error
}

// Loader reloads all collections. *ledger.Repository satisfies it.
type Loader interface {
	LoadAll(ctx context.Context) error
}

// DefaultInterval is used when no positive interval is configured.
const DefaultInterval = 60 * time.Second

// loadTimeout is the maximum time allowed for a single reload.
const loadTimeout = 30 * time.Second

// Poller periodically calls LoadAll. It only reads.
type Poller struct {
	loader    Loader
	interval  time.Duration
	status    SyncStatus
	resultCh  chan RefreshedMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool
	now       func() time.Time
}

// New creates a Poller that reloads every interval.
func New(loader Loader, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		loader:    loader,
		interval:  interval,
		resultCh:  make(chan RefreshedMsg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}
}

// Start launches the polling goroutine and returns a command that waits
// for the first result. Calling Start twice is a no-op.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.poll()

	return p.waitForResult()
}

// Stop halts the polling goroutine.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Refresh requests an immediate reload.
func (p *Poller) Refresh() tea.Cmd {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// a reload is already pending
	}
	return nil
}

// Status returns the current refresh status.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) poll() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.load()
		case <-p.triggerCh:
			p.load()
		}
	}
}

// load performs a single reload and publishes the result.
func (p *Poller) load() {
	p.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	err := p.loader.LoadAll(ctx)
	if err != nil {
		p.setStatus(SyncError, err)
	} else {
		p.setStatus(SyncIdle, nil)
	}
	p.sendResult(RefreshedMsg{At: p.now(), Error: err})
}

func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle && err == nil {
		p.status.LastSync = p.now()
	}
}

// sendResult publishes without blocking; a full channel drops the result.
func (p *Poller) sendResult(msg RefreshedMsg) {
	select {
	case p.resultCh <- msg:
	default:
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next reload.
// Call it after handling a RefreshedMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
