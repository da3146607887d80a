package scores

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func labels(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Label
	}
	return out
}

func TestTable_KeepsTopScoresDescending(t *testing.T) {
	table := NewTable(3, nil)

	assert.Equal(t, 1, table.Insert(Entry{Label: "a", Score: 100}))
	assert.Equal(t, 1, table.Insert(Entry{Label: "b", Score: 300}))
	assert.Equal(t, 2, table.Insert(Entry{Label: "c", Score: 200}))
	assert.Equal(t, 1, table.Insert(Entry{Label: "d", Score: 400}))

	assert.Equal(t, []string{"d", "b", "c"}, labels(table.Entries()))
	assert.Equal(t, 3, table.Len())
}

func TestTable_TiesKeepInsertionOrder(t *testing.T) {
	table := NewTable(3, nil)

	table.Insert(Entry{Label: "first", Score: 500})
	assert.Equal(t, 2, table.Insert(Entry{Label: "second", Score: 500}))
	assert.Equal(t, 3, table.Insert(Entry{Label: "third", Score: 500}))

	assert.False(t, table.Qualifies(500), "a tie with the last entry does not displace it")
	assert.Equal(t, 0, table.Insert(Entry{Label: "fourth", Score: 500}))
	assert.Equal(t, []string{"first", "second", "third"}, labels(table.Entries()))
}

func TestTable_Qualifies(t *testing.T) {
	table := NewTable(2, []Entry{{Label: "x", Score: 50}})

	assert.False(t, table.Qualifies(0))
	assert.False(t, table.Qualifies(-10))
	assert.True(t, table.Qualifies(1), "short tables accept any positive score")

	table.Insert(Entry{Label: "y", Score: 70})
	assert.False(t, table.Qualifies(50))
	assert.True(t, table.Qualifies(51))
}

func TestNewTable_OrdersStoredEntries(t *testing.T) {
	table := NewTable(3, []Entry{
		{Label: "late tie", Score: 900, Seq: 7},
		{Label: "low", Score: 10, Seq: 1},
		{Label: "early tie", Score: 900, Seq: 2},
		{Label: "top", Score: 2000, Seq: 5},
	})

	assert.Equal(t, []string{"top", "early tie", "late tie"}, labels(table.Entries()))
}

func TestTable_EntriesIsCopy(t *testing.T) {
	table := NewTable(3, []Entry{{Label: "a", Score: 1}})

	entries := table.Entries()
	entries[0].Label = "changed"

	assert.Equal(t, "a", table.Entries()[0].Label)
}

func TestProgress_Complete(t *testing.T) {
	p := NewProgress()

	assert.Equal(t, 2, p.complete(1, 2, 10))
	assert.Equal(t, 0, p.complete(1, 1, 10), "replaying a level unlocks nothing new")
	assert.Equal(t, 2, p.Stars[1], "best stars are kept")
	assert.Equal(t, 0, p.complete(10, 3, 10), "the last level has no successor")
	assert.Equal(t, 5, p.TotalStars())
	assert.True(t, p.IsUnlocked(2))
	assert.False(t, p.IsUnlocked(3))
	assert.False(t, p.IsUnlocked(0))
}
