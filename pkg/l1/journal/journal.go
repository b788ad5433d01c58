// Package journal keeps a persistent record of controller faults.
//
// Every rising edge of a controller fault flag increments the count of
// its (link, flag) record and updates the last seen time. Records
// survive restarts until cleared.
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/robotalks/motorlink/pkg/l0/motorlink"
)

const bucketKey = "faults"

// recordSize is count, first seen and last seen, 8 bytes each.
const recordSize = 24

// ErrClosed indicates the journal is closed.
var ErrClosed = errors.New("journal closed")

// Entry is the record of one fault flag on a link.
type Entry struct {
	Link      int
	Bit       int
	Count     uint64
	FirstSeen time.Time
	LastSeen  time.Time
}

// Name returns the fault flag name.
func (e Entry) Name() string {
	return motorlink.FaultName(e.Bit)
}

// String implements fmt.Stringer.
func (e Entry) String() string {
	return fmt.Sprintf("link %d %s x%d (first %s, last %s)", e.Link, e.Name(), e.Count,
		e.FirstSeen.Format(time.RFC3339), e.LastSeen.Format(time.RFC3339))
}

// Journal is a bbolt backed fault journal.
type Journal struct {
	db     *bolt.DB
	active map[int]motorlink.FaultFlags
	lock   sync.Mutex
}

// Open opens (or creates) the journal at path.
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketKey))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db, active: make(map[int]motorlink.FaultFlags)}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	j.lock.Lock()
	defer j.lock.Unlock()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

func entryKey(link, bit int) []byte {
	return []byte{byte(link >> 8), byte(link), byte(bit)}
}

func decodeEntry(k, v []byte) (e Entry, ok bool) {
	if len(k) != 3 || len(v) != recordSize {
		return
	}
	e.Link, e.Bit = int(k[0])<<8|int(k[1]), int(k[2])
	e.Count = binary.BigEndian.Uint64(v)
	e.FirstSeen = time.Unix(0, int64(binary.BigEndian.Uint64(v[8:])))
	e.LastSeen = time.Unix(0, int64(binary.BigEndian.Uint64(v[16:])))
	return e, true
}

func encodeEntry(e Entry) []byte {
	v := make([]byte, recordSize)
	binary.BigEndian.PutUint64(v, e.Count)
	binary.BigEndian.PutUint64(v[8:], uint64(e.FirstSeen.UnixNano()))
	binary.BigEndian.PutUint64(v[16:], uint64(e.LastSeen.UnixNano()))
	return v
}

// Record records the active fault flags of a link at a time. Only flags
// not active in the previous call for the link are counted.
func (j *Journal) Record(link int, flags motorlink.FaultFlags, at time.Time) error {
	j.lock.Lock()
	defer j.lock.Unlock()
	if j.db == nil {
		return ErrClosed
	}
	rising := flags &^ j.active[link]
	j.active[link] = flags
	if rising == 0 {
		return nil
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketKey))
		var err error
		rising.Each(func(bit int, _ string) {
			if err != nil {
				return
			}
			key := entryKey(link, bit)
			e, ok := decodeEntry(key, b.Get(key))
			if !ok {
				e = Entry{Link: link, Bit: bit, FirstSeen: at}
			}
			e.Count++
			e.LastSeen = at
			err = b.Put(key, encodeEntry(e))
		})
		return err
	})
}

// Entries lists records of a link, or all links when link is 0, ordered
// by link then bit.
func (j *Journal) Entries(link int) ([]Entry, error) {
	j.lock.Lock()
	defer j.lock.Unlock()
	if j.db == nil {
		return nil, ErrClosed
	}
	var entries []Entry
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketKey)).ForEach(func(k, v []byte) error {
			if e, ok := decodeEntry(k, v); ok && (link == 0 || e.Link == link) {
				entries = append(entries, e)
			}
			return nil
		})
	})
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].Link != entries[b].Link {
			return entries[a].Link < entries[b].Link
		}
		return entries[a].Bit < entries[b].Bit
	})
	return entries, err
}

// Clear removes records of a link, or all records when link is 0, and
// forgets which flags were active there.
func (j *Journal) Clear(link int) error {
	j.lock.Lock()
	defer j.lock.Unlock()
	if j.db == nil {
		return ErrClosed
	}
	if link == 0 {
		j.active = make(map[int]motorlink.FaultFlags)
	} else {
		delete(j.active, link)
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketKey))
		var keys [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if e, ok := decodeEntry(k, v); !ok || link == 0 || e.Link == link {
				keys = append(keys, append([]byte{}, k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
