package report

import (
	"fmt"
	"sort"
	"time"

	ttlcache "github.com/jellydator/ttlcache/v2"
)

// Store keeps the reports of recent runs for a limited time.
type Store struct {
	cache *ttlcache.Cache
}

func NewStore(ttl time.Duration) (*Store, error) {
	cache := ttlcache.NewCache()
	if err := cache.SetTTL(ttl); err != nil {
		return nil, fmt.Errorf("unable to set report TTL: %w", err)
	}
	return &Store{cache: cache}, nil
}

func (s *Store) Put(l *Log) error {
	return s.cache.Set(l.ID, l)
}

// Get returns the run with the given ID, and false if it is unknown or expired.
func (s *Store) Get(id string) (*Log, bool) {
	v, err := s.cache.Get(id)
	if err != nil {
		return nil, false
	}
	return v.(*Log), true
}

// List returns all retained runs, newest first.
func (s *Store) List() []*Log {
	var logs []*Log
	for _, v := range s.cache.GetItems() {
		logs = append(logs, v.(*Log))
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Started.After(logs[j].Started)
	})
	return logs
}

func (s *Store) Close() error {
	return s.cache.Close()
}
