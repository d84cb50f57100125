package ledger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var runsBucket = []byte("runs")

// BboltLedger implements Ledger using bbolt
type BboltLedger struct {
	db *bolt.DB
}

// NewBboltLedger opens (or creates) a bbolt-backed ledger at dbPath.
func NewBboltLedger(dbPath string) (*BboltLedger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BboltLedger{db: db}, nil
}

func (l *BboltLedger) SaveRun(run *RunRecord) error {
	if run.ID == "" {
		return ErrInvalidRun
	}
	data, err := encodeJSON(run)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).Put([]byte(run.ID), data)
	})
}

func (l *BboltLedger) LoadRun(id string) (*RunRecord, error) {
	var run *RunRecord
	err := l.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(runsBucket).Get([]byte(id))
		if v == nil {
			return ErrRunNotFound
		}
		run = &RunRecord{}
		return decodeJSON(v, run)
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (l *BboltLedger) ListRuns() ([]*RunRecord, error) {
	var runs []*RunRecord
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(k, v []byte) error {
			var run RunRecord
			if err := decodeJSON(v, &run); err != nil {
				log.Printf("[LEDGER] Warning: Failed to decode run %s: %v", k, err)
				return nil // Skip corrupted runs
			}
			runs = append(runs, &run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortRuns(runs)
	return runs, nil
}

func (l *BboltLedger) DeleteRun(id string) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).Delete([]byte(id))
	})
}

// Close closes the database
func (l *BboltLedger) Close() error {
	return l.db.Close()
}
