package scoring

import (
	"math/rand/v2"

	"github.com/opd-ai/go-lander/pkg/landing"
)

// RareScore is the score a landing must beat to be eligible for the rare message.
const RareScore = 4500

// RareOdds is the one-in-N chance of the rare message.
const RareOdds = 50

var (
	standardMessages = []string{
		"Landing confirmed.",
		"Precision achieved.",
		"Controlled descent.",
		"Touchdown successful.",
		"Stable landing.",
		"Descent nominal.",
		"Contact confirmed.",
		"Vehicle secured.",
	}
	eliteMessages = []string{
		"Elite landing.",
		"Near-perfect execution.",
		"Outstanding precision.",
		"Textbook landing.",
	}
	rareMessage   = "This was exceptional."
	crashMessages = []string{
		"Descent unstable.",
		"Rapid unscheduled disassembly.",
		"Contact lost.",
		"Vehicle integrity compromised.",
		"Landing aborted.",
		"Structural failure.",
	}
	crashNudges = []string{
		"Try a slower approach.",
		"Reduce horizontal drift before landing.",
		"Keep the rocket upright on final approach.",
		"Use short thrust bursts to slow down.",
		"Watch your vertical speed indicator.",
		"Aim for the larger platforms first.",
	}
	checkNudges = map[landing.Check]string{
		landing.CheckVertical:   "Watch your vertical speed indicator.",
		landing.CheckHorizontal: "Reduce horizontal drift before landing.",
		landing.CheckRotation:   "Keep the rocket upright on final approach.",
		landing.CheckApproach:   "Use short thrust bursts to slow down.",
	}
	causeNudges = map[landing.Cause]string{
		landing.CauseGround:      "Aim for the larger platforms first.",
		landing.CauseSlideOff:    "Kill your drift before touching the ice.",
		landing.CauseOutOfBounds: "Keep some thrust in reserve for the descent.",
		landing.CauseHazard:      "Time your descent between eruptions.",
	}
)

// Messenger picks landing and crash messages from a seeded source.
type Messenger struct {
	rng *rand.Rand
}

// NewMessenger creates a messenger seeded with seed.
func NewMessenger(seed uint64) *Messenger {
	return &Messenger{rng: rand.New(rand.NewPCG(seed, seed+1))}
}

// Success returns the message for a safe landing worth score on a target
// with the given star value.
func (m *Messenger) Success(stars, score int) string {
	if score > RareScore && m.rng.IntN(RareOdds) == 0 {
		return rareMessage
	}
	if stars >= 3 {
		return pick(m.rng, eliteMessages)
	}
	return pick(m.rng, standardMessages)
}

// Crash returns a crash message and a nudge. The nudge addresses the first
// failed check when there is one, then the crash cause.
func (m *Messenger) Crash(cause landing.Cause, failed []landing.Check) (string, string) {
	msg := pick(m.rng, crashMessages)
	if len(failed) > 0 {
		if n, ok := checkNudges[failed[0]]; ok {
			return msg, n
		}
	}
	if n, ok := causeNudges[cause]; ok {
		return msg, n
	}
	return msg, pick(m.rng, crashNudges)
}

func pick(rng *rand.Rand, from []string) string {
	return from[rng.IntN(len(from))]
}
