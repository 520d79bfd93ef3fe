// scoring/round.go — round/timer state machine (pure, no I/O)
package scoring

import "time"

// NumStations is fixed by the workshop format: four physical stations.
const NumStations = 4

// DefaultTimeLimit is the round length used when an operator starts a round
// without specifying one (seconds).
const DefaultTimeLimit = 300

// Phase is the conceptual state of a round authority, derived from the two
// persisted fields rather than stored: Active=false + StartedAt=nil is Idle,
// Active=true is Running, Active=false + StartedAt set is Paused (mid-round).
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhasePaused  Phase = "paused"
)

// Mode selects which field set is the admission authority. Exactly one mode
// is authoritative at any instant.
type Mode string

const (
	ModeSingle Mode = "single" // global fields + activeStation
	ModeAll    Mode = "all"    // per-station records
)

// StationState is one round authority: either the legacy global round fields
// or one station's sub-record in all-stations mode.
type StationState struct {
	Active    bool
	TimeLimit int // seconds
	StartedAt *time.Time
}

func (s StationState) Phase() Phase {
	switch {
	case s.Active:
		return PhaseRunning
	case s.StartedAt != nil:
		return PhasePaused
	default:
		return PhaseIdle
	}
}

// Elapsed returns whole seconds since the round started (floored, like the
// original millisecond arithmetic). Zero when the round never started.
func (s StationState) Elapsed(now time.Time) int {
	if s.StartedAt == nil {
		return 0
	}
	e := int(now.Sub(*s.StartedAt) / time.Second)
	if e < 0 {
		return 0
	}
	return e
}

// Remaining returns the seconds left on the clock, floored at zero.
func (s StationState) Remaining(now time.Time) int {
	r := s.TimeLimit - s.Elapsed(now)
	if r < 0 {
		return 0
	}
	return r
}

// Expired reports the implicit Expired condition: Running with the clock run
// out. It is detected lazily by readers, never stored.
// Only elapsed > limit expires; elapsed == limit is still admissible.
func (s StationState) Expired(now time.Time) bool {
	return s.Active && s.StartedAt != nil && s.TimeLimit > 0 && s.Elapsed(now) > s.TimeLimit
}

// ── Transitions ──────────────────────────────────────────────────────────────
// Each transition returns the full replacement state; the store persists it
// wholesale so there is no partial-patch bookkeeping to get wrong.

func Start(now time.Time, limitSec int) StationState {
	if limitSec <= 0 {
		limitSec = DefaultTimeLimit
	}
	started := now
	return StationState{Active: true, TimeLimit: limitSec, StartedAt: &started}
}

// Pause keeps StartedAt so the paused round is distinguishable from one that
// never started.
func Pause(s StationState) StationState {
	s.Active = false
	return s
}

// Resume rewrites StartedAt to now - (limit - remaining) so that elapsed-time
// arithmetic keeps yielding the remaining value computed at the moment of the
// call. No separate "remaining" field is ever stored.
func Resume(s StationState, now time.Time) StationState {
	remaining := s.Remaining(now)
	started := now.Add(-time.Duration(s.TimeLimit-remaining) * time.Second)
	s.Active = true
	s.StartedAt = &started
	return s
}

func Stop(s StationState) StationState {
	s.Active = false
	s.StartedAt = nil
	return s
}

// ── Snapshot ─────────────────────────────────────────────────────────────────

// Snapshot is a point-in-time read of the whole round document. The validator
// gets a fresh one per submission; nothing here is cached.
type Snapshot struct {
	AllActive     bool
	Single        StationState // legacy global round fields
	ActiveStation *int         // meaningful only in single mode
	Stations      map[int]StationState // keyed 1..NumStations, authority when AllActive
}

// Mode makes the authority selection explicit: the two field sets never mix.
func (s Snapshot) Mode() Mode {
	if s.AllActive {
		return ModeAll
	}
	return ModeSingle
}

// ── Whole-document patches ───────────────────────────────────────────────────

// AllPatch is the write an all-stations transition produces: every station
// sub-record plus the force-written legacy single-mode fields, so readers of
// the old admission path see something coherent.
type AllPatch struct {
	AllActive     bool
	Legacy        StationState
	ActiveStation *int // always nil in all-mode: "no single station selected"
	Stations      map[int]StationState
}

// StartAll starts every station simultaneously with the same limit and
// synthesizes the legacy fields (roundActive=true, activeStation=null).
func StartAll(now time.Time, limitSec int) AllPatch {
	st := Start(now, limitSec)
	p := AllPatch{AllActive: true, Legacy: st, Stations: make(map[int]StationState, NumStations)}
	for n := 1; n <= NumStations; n++ {
		p.Stations[n] = st
	}
	return p
}

// PauseAll drops out of all-mode while every station keeps its StartedAt, so
// ResumeAll can restore each station's own remaining time.
func PauseAll(snap Snapshot) AllPatch {
	p := AllPatch{AllActive: false, Legacy: Pause(snap.Single), Stations: make(map[int]StationState, NumStations)}
	for n := 1; n <= NumStations; n++ {
		p.Stations[n] = Pause(snap.Stations[n])
	}
	return p
}

// ResumeAll re-engages all-mode, rebasing each station's StartedAt from its
// own remaining time.
func ResumeAll(snap Snapshot, now time.Time) AllPatch {
	legacy := snap.Single
	legacy.Active = true
	p := AllPatch{AllActive: true, Legacy: legacy, Stations: make(map[int]StationState, NumStations)}
	for n := 1; n <= NumStations; n++ {
		p.Stations[n] = Resume(snap.Stations[n], now)
	}
	return p
}

func StopAll(snap Snapshot) AllPatch {
	p := AllPatch{AllActive: false, Legacy: Stop(snap.Single), Stations: make(map[int]StationState, NumStations)}
	for n := 1; n <= NumStations; n++ {
		p.Stations[n] = Stop(snap.Stations[n])
	}
	return p
}

// SinglePatch is the write a single-station transition produces: the global
// fields become the authority, all-mode is explicitly disengaged, and the
// targeted station's sub-record is mirrored so an all-mode dashboard reading
// per-station records stays coherent.
type SinglePatch struct {
	AllActive     bool // always false: starting a single round leaves all-mode
	Legacy        StationState
	ActiveStation *int
	Station       int // which sub-record to mirror Legacy into (0 = none)
}

func StartSingle(now time.Time, station, limitSec int) SinglePatch {
	st := Start(now, limitSec)
	return SinglePatch{Legacy: st, ActiveStation: &station, Station: station}
}

func PauseSingle(snap Snapshot) SinglePatch {
	return SinglePatch{
		Legacy:        Pause(snap.Single),
		ActiveStation: snap.ActiveStation,
		Station:       stationOrZero(snap.ActiveStation),
	}
}

func ResumeSingle(snap Snapshot, now time.Time) SinglePatch {
	return SinglePatch{
		Legacy:        Resume(snap.Single, now),
		ActiveStation: snap.ActiveStation,
		Station:       stationOrZero(snap.ActiveStation),
	}
}

// StopSingle clears the active station along with the timer fields.
func StopSingle(snap Snapshot) SinglePatch {
	return SinglePatch{
		Legacy:  Stop(snap.Single),
		Station: stationOrZero(snap.ActiveStation),
	}
}

func stationOrZero(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
