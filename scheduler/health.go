package scheduler

// Health summarizes how the scheduler is doing.
type Health struct {
	Pending  int
	Active   int
	Runnable int
	Paused   bool
	// Stalled is set when entries are waiting but none of them can fetch and
	// nothing is in flight.
	Stalled bool
}

// Health computes the current summary.
func (s *Scheduler) Health() Health {
	ret := Health{Pending: len(s.pending), Active: len(s.active), Paused: s.Paused()}
	for _, e := range s.pending {
		if e.parser.Priority() > 0 {
			ret.Runnable++
		}
	}
	ret.Stalled = ret.Pending > 0 && ret.Runnable == 0 && ret.Active == 0 && !ret.Paused
	return ret
}
