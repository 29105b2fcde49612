package core

import (
	"fmt"

	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Records         int    `json:"records"`
	Version         uint64 `json:"version"`
	CollectionFeeds int    `json:"collection_feeds"`
	RecordFeeds     int    `json:"record_feeds"`
	RepositoryType  string `json:"repository_type"`
	ReadOnly        bool   `json:"read_only"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	records, version := len(s.index), s.version
	s.mu.RUnlock()

	repoType := "memory"
	if s.repo != nil {
		repoType = fmt.Sprintf("%T", s.repo)
		if comp, ok := s.repo.(introspection.Component); ok {
			repoType = comp.ComponentType()
		}
	}

	collection, recordFeeds := s.hub.counts()
	return StoreState{
		Records:         records,
		Version:         version,
		CollectionFeeds: collection,
		RecordFeeds:     recordFeeds,
		RepositoryType:  repoType,
		ReadOnly:        s.readOnly,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
