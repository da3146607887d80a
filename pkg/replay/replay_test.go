package replay

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-lander/pkg/engine"
	"github.com/opd-ai/go-lander/pkg/entity"
	"github.com/opd-ai/go-lander/pkg/event"
	"github.com/opd-ai/go-lander/pkg/landing"
)

const dt = 1.0 / 60

var fixedClock = func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }

// fly records a round on profile, thrusting for the first burn ticks, and
// returns the bundle directory and final snapshot.
func fly(t *testing.T, profile string, seed uint64, burn int) (string, engine.FrameSnapshot) {
	t.Helper()
	s, err := engine.NewSession(nil, nil, engine.Options{ID: "pilot", Profile: profile, Seed: seed})
	require.NoError(t, err)
	w, err := NewWriter(t.TempDir(), s, fixedClock)
	require.NoError(t, err)

	var snap engine.FrameSnapshot
	for i := 0; i < 3000 && !snap.Terminal(); i++ {
		in := entity.ControlInput{Thrust: i < burn, RotateLeft: i%45 == 0 && i < burn}
		snap = s.Tick(dt, in)
	}
	require.True(t, snap.Terminal(), "flight should end")
	require.NoError(t, w.Close())
	return w.Dir(), snap
}

func TestVerify_ReproducesRecordedOutcome(t *testing.T) {
	for _, profile := range []string{"classic", "jupiter", "io", "earth"} {
		t.Run(profile, func(t *testing.T) {
			dir, snap := fly(t, profile, 99, 40)

			res, err := Verify(dir)
			require.NoError(t, err)

			require.NotNil(t, res.Recorded)
			require.NotNil(t, res.Replayed)
			assert.True(t, res.Match)
			assert.Equal(t, snap.Outcome.Cause, res.Replayed.Cause)
			assert.Equal(t, snap.Outcome.Score, res.Replayed.Score)
		})
	}
}

func TestReader_TicksAndEvents(t *testing.T) {
	dir, snap := fly(t, "classic", 7, 10)

	r, err := Open(dir)
	require.NoError(t, err)
	h := r.Header()
	assert.Equal(t, "pilot", h.SessionID)
	assert.Equal(t, uint64(7), h.Seed)
	assert.Equal(t, "classic", h.Profile.ID)
	assert.Equal(t, FormatVersion, r.Manifest().Version)

	ticks, err := r.Ticks()
	require.NoError(t, err)
	assert.Len(t, ticks, int(h.Ticks))
	assert.Equal(t, int(snap.Tick), len(ticks))
	assert.True(t, ticks[0].Input.Thrust)
	assert.Equal(t, uint64(0), ticks[0].Tick)

	events, err := r.Events()
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, event.SessionStarted, events[0].Type)
	last := events[len(events)-1]
	assert.Contains(t, []event.Type{event.Crash, event.LandingSuccess}, last.Type)
	assert.Contains(t, string(last.Payload), `"session":"pilot"`)
}

func TestVerify_DetectsTampering(t *testing.T) {
	dir, _ := fly(t, "classic", 5, 20)
	r, err := Open(dir)
	require.NoError(t, err)

	h := r.Header()
	h.Profile.Gravity = -1.6
	require.NoError(t, writeJSON(filepath.Join(dir, headerFile), h))

	res, err := Verify(dir)
	require.NoError(t, err)
	assert.False(t, res.Match)
}

func TestOpen_RejectsOtherVersions(t *testing.T) {
	dir, _ := fly(t, "classic", 5, 5)
	require.NoError(t, writeJSON(filepath.Join(dir, manifestFile), Manifest{
		Version:    FormatVersion + 1,
		HeaderPath: headerFile,
	}))

	_, err := Open(dir)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = Verify(dir)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestOpen_MissingBundle(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestWriter_DetachesOnClose(t *testing.T) {
	s, err := engine.NewSession(nil, nil, engine.Options{ID: "x/../y", Seed: 1})
	require.NoError(t, err)
	root := t.TempDir()
	w, err := NewWriter(root, s, fixedClock)
	require.NoError(t, err)

	s.Tick(dt, entity.ControlInput{Thrust: true})
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "closing twice is harmless")
	s.Tick(dt, entity.ControlInput{Thrust: true})

	assert.Equal(t, root, filepath.Dir(w.Dir()), "session IDs cannot escape the root")
	r, err := Open(w.Dir())
	require.NoError(t, err)
	ticks, err := r.Ticks()
	require.NoError(t, err)
	assert.Len(t, ticks, 1)
	assert.Nil(t, r.Header().Outcome)
}

func TestWriter_RequiresRoot(t *testing.T) {
	s, err := engine.NewSession(nil, nil, engine.Options{})
	require.NoError(t, err)

	_, err = NewWriter("", s, nil)
	assert.Error(t, err)
}

func TestReplay_UnfinishedRoundMatchesUnfinished(t *testing.T) {
	s, err := engine.NewSession(nil, nil, engine.Options{ID: "u", Seed: 3})
	require.NoError(t, err)
	w, err := NewWriter(t.TempDir(), s, fixedClock)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		s.Tick(dt, entity.ControlInput{Thrust: true})
	}
	require.NoError(t, w.Close())

	res, err := Verify(w.Dir())
	require.NoError(t, err)
	assert.True(t, res.Match)
	assert.Nil(t, res.Replayed)
	assert.Equal(t, 10, res.Ticks)
}

func TestSameOutcome(t *testing.T) {
	a := &landing.Outcome{Result: landing.ResultCrash, Cause: landing.CauseGround}
	b := a.Clone()

	assert.True(t, sameOutcome(a, &b))
	assert.True(t, sameOutcome(nil, nil))
	assert.False(t, sameOutcome(a, nil))
	b.Cause = landing.CauseHazard
	assert.False(t, sameOutcome(a, &b))
}
