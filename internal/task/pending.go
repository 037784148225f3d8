package task

// Report is a completed task's result.
type Report struct {
	Markdown string
	Title    string
}

// outcome settles a foreground caller's wait: exactly one of report/err.
type outcome struct {
	report Report
	err    error
}

// registerPending creates the completion channel a foreground CreateTask call
// blocks on. Caller must hold s.mu.
func (s *Service) registerPendingLocked(taskID string) chan outcome {
	ch := make(chan outcome, 1)
	s.pending[taskID] = ch
	return ch
}

// settlePending delivers out to the foreground waiter for taskID, if any,
// and removes the registration. Safe to call for tasks with no waiter.
func (s *Service) settlePending(taskID string, out outcome) {
	s.mu.Lock()
	ch, ok := s.pending[taskID]
	if ok {
		delete(s.pending, taskID)
	}
	s.mu.Unlock()
	if ok {
		ch <- out
	}
}

// dropPending removes a registration without settling it (caller abandoned
// the wait).
func (s *Service) dropPending(taskID string) {
	s.mu.Lock()
	delete(s.pending, taskID)
	s.mu.Unlock()
}

// rejectAllPendingLocked rejects every outstanding completion with err.
// Caller must hold s.mu.
func (s *Service) rejectAllPendingLocked(err error) {
	for id, ch := range s.pending {
		delete(s.pending, id)
		ch <- outcome{err: err}
	}
}
