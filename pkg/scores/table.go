// Package scores keeps per-profile high score tables and campaign progress.
package scores

import (
	"sort"
	"time"
)

// DefaultTableSize is the number of entries kept per profile.
const DefaultTableSize = 3

// Entry is one row of a high score table.
type Entry struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	Score      int       `json:"score"`
	Stars      int       `json:"stars"`
	Seq        int64     `json:"-"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Table is a bounded list of entries, best first. Equal scores keep
// insertion order.
type Table struct {
	size    int
	entries []Entry
}

// NewTable builds a table from stored entries, ordering and trimming them.
func NewTable(size int, entries []Entry) *Table {
	if size <= 0 {
		size = DefaultTableSize
	}
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Seq < sorted[j].Seq
	})
	if len(sorted) > size {
		sorted = sorted[:size]
	}
	return &Table{size: size, entries: sorted}
}

// Qualifies reports whether score would enter the table.
func (t *Table) Qualifies(score int) bool {
	if score <= 0 {
		return false
	}
	if len(t.entries) < t.size {
		return true
	}
	return score > t.entries[len(t.entries)-1].Score
}

// Insert places e after every entry scoring at least as much and returns
// its 1-based rank, or 0 if it did not qualify.
func (t *Table) Insert(e Entry) int {
	if !t.Qualifies(e.Score) {
		return 0
	}
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].Score < e.Score })
	t.entries = append(t.entries, Entry{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = e
	if len(t.entries) > t.size {
		t.entries = t.entries[:t.size]
	}
	return i + 1
}

// Entries returns a copy of the rows, best first.
func (t *Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.entries) }
