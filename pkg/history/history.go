// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package history is ambient operational bookkeeping, not a user-facing
// history feature (spec.md's Non-goals exclude that): a bounded ring of
// recent status snapshots (readable with RecentSnapshots; the monitor
// endpoints do not read it), and the actuator's on-since timestamp so
// grace_time survives a daemon restart.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/buntdb"

	"thermod/pkg/logger"
)

const (
	onSincePrefix = "onsince:"
	snapshotPrefix = "snap:"

	// maxSnapshots bounds the ring regardless of how long the daemon runs.
	maxSnapshots = 500
)

// Store is a small embedded-KV wrapper over buntdb, grounded on the
// retrieved pack's BuntDBStorage idiom (open/Update/View, key prefixes
// as poor-man's tables).
type Store struct {
	db  *buntdb.DB
	log *logger.Logger
}

// Open creates dataDir if needed and opens (or creates) the bookkeeping
// database inside it.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "thermod.db")
	db, err := buntdb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return &Store{db: db, log: logger.New("History")}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SetOnSince records the moment the actuator identified by key last
// transitioned from off to on.
func (s *Store) SetOnSince(key string, t time.Time) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(onSincePrefix+key, t.Format(time.RFC3339Nano), nil)
		return err
	})
}

// GetOnSince returns the last recorded on-transition for key, if any.
func (s *Store) GetOnSince(key string) (time.Time, bool, error) {
	var raw string
	err := s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(onSincePrefix + key)
		if err != nil {
			return err
		}
		raw = v
		return nil
	})
	if err == buntdb.ErrNotFound {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse on-since timestamp: %w", err)
	}
	return t, true, nil
}

// ClearOnSince removes the on-since bookkeeping for key (the actuator
// has gone back to off from a fresh decision).
func (s *Store) ClearOnSince(key string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(onSincePrefix + key)
		if err != nil && err != buntdb.ErrNotFound {
			return err
		}
		return nil
	})
}

// SaveSnapshot appends a status snapshot to the bounded ring, trimming
// the oldest entries once the ring exceeds maxSnapshots.
func (s *Store) SaveSnapshot(snapshot any, at time.Time) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	key := fmt.Sprintf("%s%020d", snapshotPrefix, at.UnixNano())

	return s.db.Update(func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set(key, string(data), nil); err != nil {
			return err
		}

		var keys []string
		if err := tx.AscendKeys(snapshotPrefix+"*", func(k, _ string) bool {
			keys = append(keys, k)
			return true
		}); err != nil {
			return err
		}
		for len(keys) > maxSnapshots {
			if _, err := tx.Delete(keys[0]); err != nil {
				return err
			}
			keys = keys[1:]
		}
		return nil
	})
}

// RecentSnapshots returns up to n of the most recently saved snapshots,
// newest first, each still encoded as raw JSON.
func (s *Store) RecentSnapshots(n int) ([]json.RawMessage, error) {
	var out []json.RawMessage
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.DescendKeys(snapshotPrefix+"*", func(_, v string) bool {
			out = append(out, json.RawMessage(v))
			return len(out) < n
		})
	})
	return out, err
}
