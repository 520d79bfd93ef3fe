package scoring

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleSnapshot(clock clockwork.Clock, station, limit int) Snapshot {
	p := StartSingle(clock.Now(), station, limit)
	return Snapshot{
		Single:        p.Legacy,
		ActiveStation: p.ActiveStation,
		Stations:      map[int]StationState{station: p.Legacy},
	}
}

func allSnapshot(clock clockwork.Clock, limit int) Snapshot {
	p := StartAll(clock.Now(), limit)
	return Snapshot{AllActive: true, Single: p.Legacy, Stations: p.Stations}
}

func TestAdmitSingleMode(t *testing.T) {
	clock := clockwork.NewFakeClock()

	t.Run("accepts the active station", func(t *testing.T) {
		snap := singleSnapshot(clock, 2, 180)
		assert.Nil(t, Admit(snap, 2, clock.Now()))
	})

	t.Run("rejects the wrong station", func(t *testing.T) {
		snap := singleSnapshot(clock, 2, 180)
		rej := Admit(snap, 3, clock.Now())
		require.NotNil(t, rej)
		assert.Equal(t, ReasonWrongStation, rej.Reason)
	})

	t.Run("rejects when no round is running", func(t *testing.T) {
		rej := Admit(Snapshot{}, 1, clock.Now())
		require.NotNil(t, rej)
		assert.Equal(t, ReasonRoundNotActive, rej.Reason)
	})

	t.Run("rejects when active but no station selected", func(t *testing.T) {
		snap := singleSnapshot(clock, 2, 180)
		snap.ActiveStation = nil
		rej := Admit(snap, 2, clock.Now())
		require.NotNil(t, rej)
		assert.Equal(t, ReasonRoundNotActive, rej.Reason)
	})

	t.Run("rejects a paused round", func(t *testing.T) {
		snap := singleSnapshot(clock, 2, 180)
		snap.Single = Pause(snap.Single)
		rej := Admit(snap, 2, clock.Now())
		require.NotNil(t, rej)
		assert.Equal(t, ReasonRoundNotActive, rej.Reason)
	})
}

// Expiry is detected lazily by the validator: roundActive is still true here,
// nothing has written the expiry, and the submission must be rejected anyway.
func TestAdmitExpiryCutoff(t *testing.T) {
	clock := clockwork.NewFakeClock()
	snap := singleSnapshot(clock, 2, 180)

	// Boundary: elapsed == limit is still admissible.
	at := clock.Now().Add(180 * time.Second)
	assert.Nil(t, Admit(snap, 2, at))

	// One second past the limit is not.
	at = clock.Now().Add(181 * time.Second)
	rej := Admit(snap, 2, at)
	require.NotNil(t, rej)
	assert.Equal(t, ReasonRoundExpired, rej.Reason)
}

func TestAdmitAllMode(t *testing.T) {
	clock := clockwork.NewFakeClock()

	t.Run("accepts every running station", func(t *testing.T) {
		snap := allSnapshot(clock, 300)
		for n := 1; n <= NumStations; n++ {
			assert.Nil(t, Admit(snap, n, clock.Now()))
		}
	})

	t.Run("rejects a station whose record is missing", func(t *testing.T) {
		snap := allSnapshot(clock, 300)
		delete(snap.Stations, 3)
		rej := Admit(snap, 3, clock.Now())
		require.NotNil(t, rej)
		assert.Equal(t, ReasonStationNotActive, rej.Reason)
	})

	t.Run("rejects an individually stopped station", func(t *testing.T) {
		snap := allSnapshot(clock, 300)
		snap.Stations[2] = Stop(snap.Stations[2])
		rej := Admit(snap, 2, clock.Now())
		require.NotNil(t, rej)
		assert.Equal(t, ReasonStationNotActive, rej.Reason)

		// Other stations are unaffected.
		assert.Nil(t, Admit(snap, 1, clock.Now()))
	})

	t.Run("expires stations on their own clocks", func(t *testing.T) {
		snap := allSnapshot(clock, 60)
		rej := Admit(snap, 4, clock.Now().Add(61*time.Second))
		require.NotNil(t, rej)
		assert.Equal(t, ReasonRoundExpired, rej.Reason)
	})
}

// When allActive is set, admissibility depends solely on the per-station
// records — the legacy single-mode fields can say anything.
func TestAdmitModeExclusivity(t *testing.T) {
	clock := clockwork.NewFakeClock()

	snap := allSnapshot(clock, 300)
	snap.Single = StationState{} // legacy fields say "nothing running"
	snap.ActiveStation = nil
	assert.Nil(t, Admit(snap, 1, clock.Now()), "all-mode ignores legacy fields")

	wrong := 3
	snap.ActiveStation = &wrong
	assert.Nil(t, Admit(snap, 1, clock.Now()), "legacy activeStation is not consulted")

	// And the other way: single mode never consults station records.
	snap = singleSnapshot(clock, 2, 180)
	snap.Stations[3] = Start(clock.Now(), 300)
	rej := Admit(snap, 3, clock.Now())
	require.NotNil(t, rej)
	assert.Equal(t, ReasonWrongStation, rej.Reason)
}

func TestRejectionMessages(t *testing.T) {
	rej := &Rejection{ReasonRoundExpired}
	assert.Equal(t, "Round expired", rej.Message())
	assert.Equal(t, rej.Message(), rej.Error())
}
