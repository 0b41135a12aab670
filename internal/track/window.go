package track

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"stepassist/internal/observe"
)

// #region window
// Window keeps the most recent observations per activity, oldest evicted
// first. Deferred observations are recorded alongside accepted ones, but
// only accepted evidence feeds the jump math: a deferred step must not pull
// future observations toward itself. Activities sit in an LRU map so an
// abandoned activity's history eventually falls away. Not safe for
// concurrent use; the tracker serializes access.
type Window struct {
	capacity int
	rings    *lru.Cache[string, *ring]
}

// Entry is one recorded observation with its admission flag.
type Entry struct {
	Obs      observe.Observation
	Accepted bool
}

type ring struct {
	entries []Entry
}

// NewWindow creates a window holding up to capacity observations for each of
// up to maxActivities activities.
func NewWindow(capacity, maxActivities int) (*Window, error) {
	if capacity < 1 || maxActivities < 1 {
		return nil, fmt.Errorf("window capacity %d and max activities %d must be positive", capacity, maxActivities)
	}
	rings, err := lru.New[string, *ring](maxActivities)
	if err != nil {
		return nil, fmt.Errorf("window lru: %w", err)
	}
	return &Window{capacity: capacity, rings: rings}, nil
}

// Append records an observation for its activity, evicting the oldest entry
// once the ring is full.
func (w *Window) Append(obs observe.Observation, accepted bool) {
	r, ok := w.rings.Get(obs.ActivityID)
	if !ok {
		r = &ring{}
		w.rings.Add(obs.ActivityID, r)
	}
	r.entries = append(r.entries, Entry{Obs: obs, Accepted: accepted})
	if len(r.entries) > w.capacity {
		r.entries = r.entries[1:]
	}
}

// LastAccepted returns the step of the most recent accepted observation for
// the activity and whether one is still held.
func (w *Window) LastAccepted(activityID string) (int, bool) {
	r, ok := w.rings.Get(activityID)
	if !ok {
		return 0, false
	}
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].Accepted {
			return r.entries[i].Obs.StepIndex, true
		}
	}
	return 0, false
}

// Len reports how many observations are held for the activity.
func (w *Window) Len(activityID string) int {
	r, ok := w.rings.Peek(activityID)
	if !ok {
		return 0
	}
	return len(r.entries)
}

// Lens reports the held observation count per activity.
func (w *Window) Lens() map[string]int {
	lens := make(map[string]int, w.rings.Len())
	for _, id := range w.rings.Keys() {
		lens[id] = w.Len(id)
	}
	return lens
}

// Reset drops all recorded observations.
func (w *Window) Reset() {
	w.rings.Purge()
}

// #endregion window
