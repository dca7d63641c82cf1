// Package presence tracks which participants are connected to the shared
// document and ranks them for autosave leadership.
package presence

import (
	"regexp"
	"sort"
	"strconv"
	"sync"

	"inkroom/collab/internal/room"
)

// Participant is one distinct (name, color) pair currently present.
type Participant struct {
	Name  string
	Color string
}

const (
	anonymousName  = "Anonymous"
	anonymousColor = "#ccc"
)

// Directory keeps a de-duplicated participant list fed by the transport's
// awareness map. It recomputes synchronously on every change event and once
// eagerly at construction, so callers never depend on an event having fired.
type Directory struct {
	mu           sync.Mutex
	awareness    room.Awareness
	participants []Participant
	cancel       func()
}

func NewDirectory(awareness room.Awareness) *Directory {
	d := &Directory{awareness: awareness}
	d.cancel = awareness.OnChange(d.recompute)
	d.recompute()
	return d
}

// Snapshot returns the distinct participants present, in join order.
// Two peers with identical display metadata collapse into one entry.
func (d *Directory) Snapshot() []Participant {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Participant, len(d.participants))
	copy(out, d.participants)
	return out
}

// Leader returns the presence-ranked participant authorized for autosave
// this cycle. False when nobody is present.
func (d *Directory) Leader() (Participant, bool) {
	return Leader(d.Snapshot())
}

func (d *Directory) Close() {
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Directory) recompute() {
	states := d.awareness.States()

	// Peer handles increase in join order; sort for a stable first-seen
	// ordering.
	handles := make([]int, 0, len(states))
	for handle := range states {
		handles = append(handles, handle)
	}
	sort.Ints(handles)

	seen := make(map[Participant]struct{}, len(handles))
	participants := make([]Participant, 0, len(handles))
	for _, handle := range handles {
		state := states[handle]
		p := Participant{Name: state.Name, Color: state.Color}
		if p.Name == "" && p.Color == "" {
			p = Participant{Name: anonymousName, Color: anonymousColor}
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		participants = append(participants, p)
	}

	d.mu.Lock()
	d.participants = participants
	d.mu.Unlock()
}

var suffixPattern = regexp.MustCompile(`User-(\d+)`)

// NumericSuffix extracts the trailing integer of a User-<digits> display
// name; names without one rank 0.
func NumericSuffix(name string) int {
	match := suffixPattern.FindStringSubmatch(name)
	if match == nil {
		return 0
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return n
}

// Leader picks the participant with the maximum numeric suffix; ties
// resolve to the first-encountered participant.
func Leader(participants []Participant) (Participant, bool) {
	if len(participants) == 0 {
		return Participant{}, false
	}
	leader := participants[0]
	best := NumericSuffix(leader.Name)
	for _, p := range participants[1:] {
		if n := NumericSuffix(p.Name); n > best {
			leader, best = p, n
		}
	}
	return leader, true
}
