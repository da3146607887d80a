package scores

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/event"
	"github.com/opd-ai/go-lander/pkg/logging"
	"github.com/opd-ai/go-lander/pkg/validation"
)

// ErrInvalidLabel is returned when a qualifying score carries an unusable label.
var ErrInvalidLabel = errors.New("invalid score label")

// DefaultSeedScore is the score of every seeded table entry.
const DefaultSeedScore = 1000

// classicSeedName and campaignSeedNames fill empty tables on first use.
var (
	classicSeedName   = "Elon"
	campaignSeedNames = []string{
		"Armstrong", "Aldrin", "Huygens", "Galileo", "Gagarin",
		"Shepard", "Glenn", "Marius", "Collins", "Shoemaker",
	}
)

// Record describes what RecordOutcome changed.
type Record struct {
	Rank      int  `json:"rank"`
	HighScore bool `json:"highScore"`
	Unlocked  int  `json:"unlocked,omitempty"`
	BestStars int  `json:"bestStars"`
}

// Board owns the score tables and campaign progress. It is safe for
// concurrent use.
type Board struct {
	mu       sync.Mutex
	store    Store
	catalog  *config.Catalog
	size     int
	bus      *event.Bus
	logger   *logging.Logger
	tables   map[string]*Table
	progress Progress
	seq      int64
	now      func() time.Time
}

// BoardOption customises a Board.
type BoardOption func(*Board)

// WithBus publishes HighScore and LevelUnlocked events on bus.
func WithBus(bus *event.Bus) BoardOption {
	return func(b *Board) { b.bus = bus }
}

// WithLogger sets the board logger.
func WithLogger(l *logging.Logger) BoardOption {
	return func(b *Board) { b.logger = l }
}

// WithTableSize overrides DefaultTableSize.
func WithTableSize(n int) BoardOption {
	return func(b *Board) {
		if n > 0 {
			b.size = n
		}
	}
}

// NewBoard loads tables and progress from store, seeding any profile that
// has no stored entries.
func NewBoard(ctx context.Context, store Store, catalog *config.Catalog, opts ...BoardOption) (*Board, error) {
	if catalog == nil {
		catalog = config.DefaultCatalog()
	}
	b := &Board{
		store:   store,
		catalog: catalog,
		size:    DefaultTableSize,
		tables:  make(map[string]*Table),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.Discard()
	}

	stored, err := store.LoadEntries(ctx)
	if err != nil {
		return nil, logging.WrapError(err, "failed to load score tables")
	}
	for profile, entries := range stored {
		for _, e := range entries {
			b.seq = max(b.seq, e.Seq)
		}
		b.tables[profile] = NewTable(b.size, entries)
	}
	for _, id := range catalog.IDs() {
		if _, ok := b.tables[id]; ok {
			continue
		}
		if err := b.seed(ctx, id); err != nil {
			return nil, err
		}
	}

	b.progress, err = store.LoadProgress(ctx)
	if err != nil {
		return nil, logging.WrapError(err, "failed to load campaign progress")
	}
	if b.progress.Unlocked < 1 {
		b.progress.Unlocked = 1
	}
	return b, nil
}

// seed writes the default entry for profile, if it has one.
func (b *Board) seed(ctx context.Context, profile string) error {
	name := seedName(b.catalog, profile)
	t := NewTable(b.size, nil)
	b.tables[profile] = t
	if name == "" {
		return nil
	}
	t.Insert(b.newEntry(name, DefaultSeedScore, 0))
	if err := b.store.SaveEntries(ctx, profile, t.Entries()); err != nil {
		return logging.WrapError(err, "failed to seed %s", profile)
	}
	return nil
}

func seedName(catalog *config.Catalog, profile string) string {
	if profile == "classic" {
		return classicSeedName
	}
	p, err := catalog.Lookup(profile)
	if err != nil || p.Level < 1 || p.Level > len(campaignSeedNames) {
		return ""
	}
	return campaignSeedNames[p.Level-1]
}

func (b *Board) newEntry(label string, score, stars int) Entry {
	b.seq++
	return Entry{
		ID:         uuid.NewString(),
		Label:      label,
		Score:      score,
		Stars:      stars,
		Seq:        b.seq,
		RecordedAt: b.now().UTC(),
	}
}

// IsHighScore reports whether score would enter profile's table.
func (b *Board) IsHighScore(profile string, score int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.table(profile).Qualifies(score)
}

// Table returns profile's entries, best first.
func (b *Board) Table(profile string) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.table(profile).Entries()
}

func (b *Board) table(profile string) *Table {
	t, ok := b.tables[profile]
	if !ok {
		t = NewTable(b.size, nil)
		b.tables[profile] = t
	}
	return t
}

// Progress returns a copy of the campaign progress.
func (b *Board) Progress() Progress {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.progress.Clone()
}

// IsUnlocked reports whether profile may be played. Profiles outside the
// campaign are always open.
func (b *Board) IsUnlocked(profile string) bool {
	p, err := b.catalog.Lookup(profile)
	if err != nil {
		return false
	}
	if p.Level == 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.progress.IsUnlocked(p.Level)
}

// RecordOutcome applies a finished round to the campaign and, when the score
// qualifies, to profile's table. stars is 0 for a crash. The label is only
// checked when the score enters the table; an invalid one leaves the board
// unchanged.
func (b *Board) RecordOutcome(ctx context.Context, profile string, score, stars int, label string) (Record, error) {
	p, err := b.catalog.Lookup(profile)
	if err != nil {
		return Record{}, err
	}

	b.mu.Lock()
	var rec Record
	var events []event.Event
	t := b.table(profile)
	qualifies := t.Qualifies(score)

	if qualifies {
		label, err = validation.ValidateLabel(label)
		if err != nil {
			b.mu.Unlock()
			return Record{}, fmt.Errorf("%w: %v", ErrInvalidLabel, err)
		}
	}

	if stars > 0 && p.Level > 0 {
		maxLevel := len(b.catalog.Campaign())
		if next := b.progress.complete(p.Level, stars, maxLevel); next > 0 {
			rec.Unlocked = next
			unlocked, _ := b.catalog.ByLevel(next)
			events = append(events, &event.ScoreEvent{
				BaseEvent: event.BaseEvent{EventType: event.LevelUnlocked, Source: b},
				Profile:   unlocked.ID,
				Level:     next,
			})
		}
		rec.BestStars = b.progress.Stars[p.Level]
		if err := b.store.SaveProgress(ctx, b.progress); err != nil {
			b.mu.Unlock()
			return rec, logging.WrapError(err, "failed to save progress")
		}
	}

	if qualifies {
		rec.Rank = t.Insert(b.newEntry(label, score, stars))
		rec.HighScore = true
		events = append(events, &event.ScoreEvent{
			BaseEvent: event.BaseEvent{EventType: event.HighScore, Source: b},
			Profile:   profile,
			Label:     label,
			Score:     score,
			Rank:      rec.Rank,
		})
		if err := b.store.SaveEntries(ctx, profile, t.Entries()); err != nil {
			b.mu.Unlock()
			return rec, logging.WrapError(err, "failed to save %s table", profile)
		}
	}
	b.mu.Unlock()

	if rec.HighScore {
		b.logger.Info(ctx, "new high score", "profile", profile, "score", score, "rank", rec.Rank)
	}
	if b.bus != nil {
		for _, e := range events {
			b.bus.Publish(e)
		}
	}
	return rec, nil
}

// Close closes the underlying store.
func (b *Board) Close() error {
	return b.store.Close()
}
