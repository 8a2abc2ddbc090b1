package config

import "sync/atomic"

// Store holds the current settings. Readers get an immutable copy; Set
// replaces the whole value.
type Store struct {
	v atomic.Pointer[Config]
}

func NewStore(c Config) *Store {
	s := &Store{}
	s.Set(c)
	return s
}

func (s *Store) Set(c Config) {
	c = c.Clone()
	s.v.Store(&c)
}

func (s *Store) Snapshot() Config {
	return s.v.Load().Clone()
}
