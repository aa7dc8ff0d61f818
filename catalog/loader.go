/*
loader.go - Read-through, version-stamped graph cache

PURPOSE:
  Building the graph means querying every config record and resolving
  versions; reports do this on every read. The Loader caches the built Graph
  and invalidates by version stamp: a cheap stamp over the config record set
  is recomputed per read, and the graph is rebuilt only when the stamp moved.
  No ambient globals - each Loader owns its cache.
*/
package catalog

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/lodgekeeper/ops-engine/record"
)

type Loader struct {
	Store record.Store

	mu     sync.Mutex
	cached *Graph
}

func NewLoader(store record.Store) *Loader {
	return &Loader{Store: store}
}

// Graph returns the current configuration graph, rebuilding only when the
// underlying config records changed.
func (l *Loader) Graph(ctx context.Context) (*Graph, error) {
	records, err := l.configRecords(ctx)
	if err != nil {
		return nil, err
	}

	stamp := stampRecords(records)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cached != nil && l.cached.Version() == stamp {
		return l.cached, nil
	}

	graph, err := BuildGraph(records)
	if err != nil {
		return nil, err
	}
	l.cached = graph
	return graph, nil
}

// Invalidate drops the cached graph. The next read rebuilds unconditionally.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cached = nil
}

func (l *Loader) configRecords(ctx context.Context) ([]record.OperationalRecord, error) {
	return l.Store.Query(ctx, record.Query{
		Tags:  []record.Tag{record.TagConfigItem, record.TagConfigCategory, record.TagConfigCollection},
		Order: record.OrderByVersion,
	})
}

// stampRecords derives a version stamp for a record set: a hash over every
// member's (id, version_no, status, created_at). Status is part of the stamp
// because UpdateStatus mutates in place - an approval changes what projects
// without adding a record.
func stampRecords(records []record.OperationalRecord) string {
	h := fnv.New64a()
	for _, rec := range records {
		fmt.Fprintf(h, "%s|%d|%s|%d;", rec.ID, rec.VersionNo, rec.Status, rec.CreatedAt.UnixNano())
	}
	return fmt.Sprintf("%d:%x", len(records), h.Sum64())
}
