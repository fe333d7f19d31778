package store

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	appErrors "github.com/unclebandit/darb-backend/internal/errors"
)

const recordBucket = "records"

// BoltStore persists the fallback store in a single bbolt file.
type BoltStore struct {
	db       *bbolt.DB
	capacity int64

	mu   sync.Mutex
	used int64
}

// OpenBolt opens (creating if needed) the store at path.
func OpenBolt(path string, capacity int64) (*BoltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	s := &BoltStore{db: db, capacity: capacity}
	if err := s.ensureBucket(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.recount(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStore) Get(key string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordBucket))
		if bucket == nil {
			return fmt.Errorf("record bucket is missing")
		}
		if value := bucket.Get([]byte(key)); value != nil {
			out = make([]byte, len(value))
			copy(out, value)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (s *BoltStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordBucket))
		if bucket == nil {
			return fmt.Errorf("record bucket is missing")
		}
		next = s.used - int64(len(bucket.Get([]byte(key)))) + int64(len(value))
		if next > s.capacity {
			return appErrors.NewCapacityExceeded(s.used, s.capacity)
		}
		return bucket.Put([]byte(key), value)
	})
	if err != nil {
		return err
	}
	s.used = next
	return nil
}

func (s *BoltStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var freed int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordBucket))
		if bucket == nil {
			return fmt.Errorf("record bucket is missing")
		}
		freed = int64(len(bucket.Get([]byte(key))))
		return bucket.Delete([]byte(key))
	})
	if err != nil {
		return err
	}
	s.used -= freed
	return nil
}

func (s *BoltStore) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordBucket))
		if bucket == nil {
			return fmt.Errorf("record bucket is missing")
		}
		return bucket.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

func (s *BoltStore) Capacity() int64 { return s.capacity }

func (s *BoltStore) ensureBucket() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(recordBucket)); err != nil {
			return fmt.Errorf("create record bucket: %w", err)
		}
		return nil
	})
}

func (s *BoltStore) recount() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		var total int64
		err := tx.Bucket([]byte(recordBucket)).ForEach(func(_, v []byte) error {
			total += int64(len(v))
			return nil
		})
		s.used = total
		return err
	})
}

var _ KV = (*BoltStore)(nil)
