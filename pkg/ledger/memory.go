package ledger

import "sync"

// MemoryLedger implements Ledger in memory (not persistent)
type MemoryLedger struct {
	runs map[string][]byte
	mu   sync.RWMutex
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{runs: make(map[string][]byte)}
}

// SaveRun stores an encoded copy so later mutation of run does not leak in.
func (m *MemoryLedger) SaveRun(run *RunRecord) error {
	if run.ID == "" {
		return ErrInvalidRun
	}
	data, err := encodeJSON(run)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = data
	return nil
}

func (m *MemoryLedger) LoadRun(id string) (*RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	var run RunRecord
	if err := decodeJSON(data, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (m *MemoryLedger) ListRuns() ([]*RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]*RunRecord, 0, len(m.runs))
	for _, data := range m.runs {
		var run RunRecord
		if err := decodeJSON(data, &run); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}
	sortRuns(runs)
	return runs, nil
}

func (m *MemoryLedger) DeleteRun(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, id)
	return nil
}

// Close is a no-op for the memory ledger
func (m *MemoryLedger) Close() error {
	return nil
}
