package task

// queueEntry is one pending task creation awaiting a free concurrency slot.
// Everything startTask needs is read fresh from the task state store, so the
// entry carries only the ID.
type queueEntry struct {
	taskID string
}

// enqueue appends a task to the FIFO.
func (s *Service) enqueue(taskID string) {
	s.mu.Lock()
	s.queue = append(s.queue, queueEntry{taskID: taskID})
	s.mu.Unlock()
}

// ProcessQueue starts queued tasks oldest-first while concurrency slots are
// free. The running count is re-read after every start, since each start
// changes it.
func (s *Service) ProcessQueue() {
	max := s.cfg.TaskSettings().MaxParallelAgentTasks
	for {
		s.mu.Lock()
		if s.disposed || len(s.queue) == 0 || s.cfg.CountRunningAgentTasks() >= max {
			s.mu.Unlock()
			return
		}
		entry := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.startTask(entry.taskID)
	}
}

// queueLen returns the current queue depth.
func (s *Service) queueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
