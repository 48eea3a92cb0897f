package dispatcher

import "sync"

// subjectLocks provides a mutex per subject so dispatches for one subject
// are serialized with respect to the active-alert dedup check, while
// dispatches for different subjects proceed in parallel.
type subjectLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSubjectLocks() *subjectLocks {
	return &subjectLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// acquire locks the mutex for the subject, creating it on first use, and
// returns the unlock function.
func (s *subjectLocks) acquire(subjectID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[subjectID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[subjectID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
