package job

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/viant/lodstream/internal/clock"
)

// TickStats summarizes one End call.
type TickStats struct {
	Steps     int
	Completed int
	Elapsed   time.Duration
	Budget    time.Duration
	Remaining int
}

type slot struct {
	handle  Handle
	job     Job
	seq     uint64
	running bool
}

// Manager runs jobs cooperatively within a per-tick time budget. It is not
// safe for concurrent use; Update and End are driven from a single thread.
type Manager struct {
	config     Config
	now        func() time.Time
	logger     zerolog.Logger
	slots      map[Handle]*slot
	queue      []*slot // ascending priority; the back is selected first
	nextHandle Handle
	seq        uint64
	dirty      bool
	frameStart time.Time
	last       TickStats
}

// New creates a manager.
func New(options ...Option) (*Manager, error) {
	m := &Manager{
		config: DefaultConfig(),
		now:    clock.Now,
		logger: zerolog.Nop(),
		slots:  make(map[Handle]*slot),
	}
	for _, opt := range options {
		opt(m)
	}
	if m.config.MinStepsPerTick == 0 {
		m.config.MinStepsPerTick = 1
	}
	if err := m.config.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Config returns the active configuration.
func (m *Manager) Config() Config { return m.config }

// SetLoadingFramerate changes the tick frequency and therefore the budget.
func (m *Manager) SetLoadingFramerate(hz float64) error {
	config := m.config
	config.LoadingFramerate = hz
	if err := config.Validate(); err != nil {
		return err
	}
	m.config = config
	return nil
}

// Push adds job to the manager and returns its handle.
func (m *Manager) Push(job Job) Handle {
	m.nextHandle++
	m.seq++
	s := &slot{handle: m.nextHandle, job: job, seq: m.seq}
	m.slots[s.handle] = s
	m.queue = append(m.queue, s)
	m.dirty = true
	return s.handle
}

// Remove drops the job without calling AfterLastStep.
func (m *Manager) Remove(handle Handle) bool {
	s, ok := m.slots[handle]
	if !ok {
		return false
	}
	m.drop(s)
	return true
}

// Contains reports whether handle refers to a live job.
func (m *Manager) Contains(handle Handle) bool {
	_, ok := m.slots[handle]
	return ok
}

// Len returns the number of live jobs.
func (m *Manager) Len() int { return len(m.slots) }

// Invalidate records a priority change so the queue is re-sorted on the next
// selection.
func (m *Manager) Invalidate() { m.dirty = true }

// Update marks the start of a host frame. The budget consumed by End is
// measured from this instant.
func (m *Manager) Update() { m.frameStart = m.now() }

// Last returns the stats of the previous End call.
func (m *Manager) Last() TickStats { return m.last }

// End runs jobs until the budget is spent and the step floor is met, or no
// runnable job remains. The frame start is reset afterwards.
func (m *Manager) End() TickStats {
	start := m.frameStart
	if start.IsZero() {
		start = m.now()
	}
	m.frameStart = time.Time{}
	stats := TickStats{Budget: m.config.Budget()}
	for {
		next := m.selectNext()
		if next == nil {
			break
		}
		if m.now().Sub(start) >= stats.Budget && stats.Steps >= m.config.MinStepsPerTick {
			break
		}
		m.run(next, &stats)
	}
	stats.Elapsed = m.now().Sub(start)
	stats.Remaining = len(m.slots)
	m.last = stats
	return stats
}

func (m *Manager) run(s *slot, stats *TickStats) {
	if !s.running {
		s.running = true
		s.job.BeforeFirstStep()
		if !m.live(s) {
			return
		}
	}
	if !s.job.Complete() {
		s.job.Step()
		stats.Steps++
		if !m.live(s) || !s.job.Complete() {
			return
		}
	}
	m.drop(s)
	stats.Completed++
	s.job.AfterLastStep()
	m.logger.Debug().Uint64("job", uint64(s.handle)).Msg("job completed")
}

// selectNext returns the highest-priority job whose live priority is > 0.
func (m *Manager) selectNext() *slot {
	for _, s := range m.queue {
		if r, ok := s.job.(Reprioritizer); ok && r.PriorityChanged() {
			m.dirty = true
		}
	}
	if m.dirty {
		m.sort()
	}
	for i := len(m.queue) - 1; i >= 0; i-- {
		if m.queue[i].job.Priority() > 0 {
			return m.queue[i]
		}
	}
	return nil
}

// sort orders jobs by ascending priority; among equal priorities the earliest
// pushed job sorts last so that it is selected first.
func (m *Manager) sort() {
	sort.SliceStable(m.queue, func(i, j int) bool {
		pi, pj := m.queue[i].job.Priority(), m.queue[j].job.Priority()
		if pi != pj {
			return pi < pj
		}
		return m.queue[i].seq > m.queue[j].seq
	})
	m.dirty = false
}

func (m *Manager) live(s *slot) bool {
	current, ok := m.slots[s.handle]
	return ok && current == s
}

func (m *Manager) drop(s *slot) {
	delete(m.slots, s.handle)
	for i, candidate := range m.queue {
		if candidate == s {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
}
