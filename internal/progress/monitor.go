package progress

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is the polling interval used when Monitor.Interval is unset.
const DefaultInterval = 500 * time.Millisecond

// Renderer displays progress samples. Finish is called exactly once per
// session, after the last Render.
type Renderer interface {
	Render(Sample)
	Finish(final Sample, completed bool)
}

// Monitor describes what to watch.
type Monitor struct {
	Dir      string
	Total    int
	Interval time.Duration
	Renderer Renderer
	// Counter defaults to CountArtifacts.
	Counter CountFunc
}

// Session is a running monitor.
type Session struct {
	done     chan struct{}
	finished chan struct{}
	once     sync.Once

	// completed is written by Stop before done is closed and read by the
	// polling goroutine only after it observes the close.
	completed bool
}

// Start begins polling in a background goroutine. The caller must call Stop.
func (m Monitor) Start(ctx context.Context) *Session {
	s := &Session{
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go m.loop(ctx, s)
	return s
}

// Stop signals the end of the supervised stage and blocks until the final
// render has returned. completed selects a final 100% render; otherwise the
// last observed sample is rendered. Only the first call has any effect.
func (s *Session) Stop(completed bool) {
	s.once.Do(func() {
		s.completed = completed
		close(s.done)
	})
	<-s.finished
}

func (m Monitor) loop(ctx context.Context, s *Session) {
	defer close(s.finished)

	interval := m.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	counter := m.Counter
	if counter == nil {
		counter = CountArtifacts
	}
	renderer := m.Renderer
	if renderer == nil {
		renderer = nopRenderer{}
	}

	last := Sample{Total: m.Total}
	observe := func() {
		count, err := counter(m.Dir)
		if err != nil {
			return
		}
		if count > m.Total && m.Total > 0 {
			count = m.Total
		}
		if count > last.Done {
			last.Done = count
			renderer.Render(last)
		}
	}

	renderer.Render(last)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			if s.completed {
				renderer.Finish(Sample{Done: m.Total, Total: m.Total}, true)
			} else {
				renderer.Finish(last, false)
			}
			return
		case <-ctx.Done():
			renderer.Finish(last, false)
			return
		case <-ticker.C:
			observe()
		}
	}
}

type nopRenderer struct{}

func (nopRenderer) Render(Sample)       {}
func (nopRenderer) Finish(Sample, bool) {}
