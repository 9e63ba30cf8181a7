package session

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve"
)

// Record is one long-lived pipeline conversation. The same pointer is
// returned for every lookup of the same id, so accumulated state mutated
// during a run is visible to the next run.
//
// Interleaved runs against one record race on the value maps
// (last write wins); the cache only guarantees safe concurrent
// lookup/insert, not run-level ordering.
type Record struct {
	ID      string
	Created bool

	mu     sync.RWMutex
	values map[string]string
	lists  map[string][]string
	notes  map[string]string // note id -> text, mirrors the bleve docs
	index  bleve.Index
	seq    int
}

// NoteHit is one research-note search result.
type NoteHit struct {
	ID    string
	Text  string
	Score float64
	Rank  int
}

func newRecord(id string) (*Record, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Record{
		ID:      id,
		Created: true,
		values:  make(map[string]string),
		lists:   make(map[string][]string),
		notes:   make(map[string]string),
		index:   index,
	}, nil
}

// Set stores a single-valued state entry, overwriting any prior value.
func (r *Record) Set(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
}

// Get returns a single-valued state entry.
func (r *Record) Get(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	return v, ok
}

// AppendTo appends to an ordered list-valued state entry.
func (r *Record) AppendTo(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists[key] = append(r.lists[key], value)
}

// List returns a copy of a list-valued state entry.
func (r *Record) List(key string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src := r.lists[key]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Values returns a copy of the single-valued state, the shape prompt
// rendering consumes.
func (r *Record) Values() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Snapshot flattens the full accumulated state for durable persistence.
func (r *Record) Snapshot() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]interface{}, len(r.values)+len(r.lists))
	for k, v := range r.values {
		out[k] = v
	}
	for k, v := range r.lists {
		vs := make([]string, len(v))
		copy(vs, v)
		out[k] = vs
	}
	return out
}

// AddNote stores a research note and indexes it for search.
func (r *Record) AddNote(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	id := fmt.Sprintf("note-%d", r.seq)
	r.notes[id] = text
	r.lists["research_notes"] = append(r.lists["research_notes"], text)
	return r.index.Index(id, map[string]string{"text": text})
}

// SearchNotes runs a query-string search over the record's research notes.
func (r *Record) SearchNotes(q string, k int) ([]NoteHit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if k <= 0 {
		k = 5
	}
	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, k, 0, false)
	res, err := r.index.Search(req)
	if err != nil {
		return nil, err
	}
	var out []NoteHit
	for i, hit := range res.Hits {
		out = append(out, NoteHit{ID: hit.ID, Text: r.notes[hit.ID], Score: hit.Score, Rank: i + 1})
	}
	return out, nil
}

// Cache maps session ids to long-lived records. It is intentionally
// unbounded: no eviction, no TTL, no size limit. Durability is the
// store's job, not the cache's.
type Cache struct {
	mu       sync.RWMutex
	sessions map[string]*Record
}

// NewCache constructs an empty session cache.
func NewCache() *Cache {
	return &Cache{sessions: make(map[string]*Record)}
}

// GetOrCreate returns the cached record for id, creating one on first
// sight. Repeat calls with the same id return the identical record.
func (c *Cache) GetOrCreate(id string) (*Record, error) {
	c.mu.RLock()
	rec, ok := c.sessions[id]
	c.mu.RUnlock()
	if ok {
		return rec, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if rec, ok := c.sessions[id]; ok {
		return rec, nil
	}
	rec, err := newRecord(id)
	if err != nil {
		return nil, err
	}
	c.sessions[id] = rec
	return rec, nil
}

// Invalidate removes the cached record if present and reports whether
// removal occurred.
func (c *Cache) Invalidate(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[id]; !ok {
		return false
	}
	delete(c.sessions, id)
	return true
}

// ClearAll empties the cache.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = make(map[string]*Record)
}

// Len reports the number of cached sessions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}
