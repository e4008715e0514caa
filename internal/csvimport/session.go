package csvimport

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Session holds the mutable state of one import from parse to commit: the
// parsed grid, the current column mapping, per-row edits and inclusion flags,
// and the latest validation outcome. All methods are safe for concurrent use.
type Session struct {
	ID      string
	Warning string

	mu        sync.Mutex
	headers   []string
	mapping   Mapping
	rows      []*ImportRow
	ref       *ReferenceSnapshot
	validated bool
}

// NewSession wraps a parse result in a fresh session. The mapping starts from
// auto-detection and every row starts included; nothing is validated yet.
func NewSession(parsed *ParseResult, ref *ReferenceSnapshot) *Session {
	rows := make([]*ImportRow, 0, len(parsed.Rows))
	for i, original := range parsed.Rows {
		values := make(map[string]string, len(original))
		for k, v := range original {
			values[k] = v
		}
		rows = append(rows, &ImportRow{
			Line:     i + 1,
			Original: original,
			Values:   values,
			Included: true,
		})
	}

	return &Session{
		ID:      uuid.NewString(),
		Warning: parsed.Warning,
		headers: append([]string(nil), parsed.Headers...),
		mapping: AutoDetect(parsed.Headers),
		rows:    rows,
		ref:     ref,
	}
}

// Headers returns the column names in file order.
func (s *Session) Headers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.headers...)
}

// Mapping returns a copy of the current column mapping.
func (s *Session) Mapping() Mapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapping.clone()
}

// SetMapping reassigns one column. If the session was already validated, every
// row is re-checked under the new mapping so stale errors never linger.
func (s *Session) SetMapping(column string, field HeaderField) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mapping.Set(column, field); err != nil {
		return err
	}
	if s.validated {
		s.revalidateAllLocked()
	}
	return nil
}

// ValidateAll checks every row against the current mapping. It refuses to run
// until the mandatory fields are mapped, returning MappingIncompleteError.
func (s *Session) ValidateAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mapping.Complete(); err != nil {
		return err
	}
	s.revalidateAllLocked()
	return nil
}

func (s *Session) revalidateAllLocked() {
	v := NewValidator(s.headers, s.mapping, s.ref)
	for _, row := range s.rows {
		row.Errors = v.Validate(row.Values)
	}
	s.validated = true
}

// EditCell replaces one cell's working value and re-validates only that row.
// The original parsed value is preserved untouched.
func (s *Session) EditCell(line int, column, value string) (*ImportRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.rowLocked(line)
	if err != nil {
		return nil, err
	}
	if _, ok := s.mapping[column]; !ok {
		return nil, fmt.Errorf("unknown column %q", column)
	}

	row.Values[column] = value
	if s.validated {
		v := NewValidator(s.headers, s.mapping, s.ref)
		row.Errors = v.Validate(row.Values)
	}
	return copyRow(row), nil
}

// SetIncluded flags one row in or out of the commit set.
func (s *Session) SetIncluded(line int, included bool) (*ImportRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.rowLocked(line)
	if err != nil {
		return nil, err
	}
	row.Included = included
	return copyRow(row), nil
}

// SelectAll marks every row included.
func (s *Session) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		row.Included = true
	}
}

// UnselectErrorRows excludes every row whose last validation failed and
// returns how many were flipped.
func (s *Session) UnselectErrorRows() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	flipped := 0
	for _, row := range s.rows {
		if !row.Valid() && row.Included {
			row.Included = false
			flipped++
		}
	}
	return flipped
}

// Validated reports whether ValidateAll has run at least once.
func (s *Session) Validated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validated
}

// Stats counts the session's rows by validity and inclusion.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{Total: len(s.rows)}
	for _, row := range s.rows {
		if row.Valid() {
			stats.Valid++
		} else {
			stats.Invalid++
		}
		if row.Included {
			stats.Included++
		}
	}
	return stats
}

// Rows returns a page of row copies. A limit of 0 means no limit.
func (s *Session) Rows(offset, limit int) []*ImportRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.rows) {
		return nil
	}
	end := len(s.rows)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]*ImportRow, 0, end-offset)
	for _, row := range s.rows[offset:end] {
		out = append(out, copyRow(row))
	}
	return out
}

// IncludedRows returns copies of the rows currently slated for commit.
func (s *Session) IncludedRows() []*ImportRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ImportRow
	for _, row := range s.rows {
		if row.Included {
			out = append(out, copyRow(row))
		}
	}
	return out
}

// Reference returns the snapshot the session resolves names against.
func (s *Session) Reference() *ReferenceSnapshot {
	return s.ref
}

func (s *Session) rowLocked(line int) (*ImportRow, error) {
	if line < 1 || line > len(s.rows) {
		return nil, fmt.Errorf("row %d out of range (1..%d)", line, len(s.rows))
	}
	return s.rows[line-1], nil
}

func copyRow(row *ImportRow) *ImportRow {
	out := &ImportRow{
		Line:     row.Line,
		Original: row.Original,
		Values:   make(map[string]string, len(row.Values)),
		Included: row.Included,
	}
	for k, v := range row.Values {
		out.Values[k] = v
	}
	if row.Errors != nil {
		out.Errors = append([]ValidationError(nil), row.Errors...)
	}
	return out
}

// Registry is a concurrent map of live sessions keyed by session ID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}
