// scoring/validate.go — admission gate for device score submissions
package scoring

import "time"

// Reason tells a device why its submission was turned away, and whether a
// retry can ever succeed (RoundNotActive: retry once the round starts;
// RoundExpired: do not retry).
type Reason string

const (
	ReasonRoundNotActive   Reason = "round_not_active"
	ReasonStationNotActive Reason = "station_not_active"
	ReasonWrongStation     Reason = "wrong_station"
	ReasonRoundExpired     Reason = "round_expired"
)

var reasonMessages = map[Reason]string{
	ReasonRoundNotActive:   "Round not active",
	ReasonStationNotActive: "Station not active",
	ReasonWrongStation:     "Wrong station",
	ReasonRoundExpired:     "Round expired",
}

// Rejection is a non-admission outcome. It is an error so services can bubble
// it, but a rejection is an expected path, not a fault.
type Rejection struct {
	Reason Reason
}

func (r *Rejection) Error() string { return reasonMessages[r.Reason] }

// Message is the short display string devices render.
func (r *Rejection) Message() string { return reasonMessages[r.Reason] }

// Admit decides whether a submission for the given station is admissible
// against the snapshot at instant now. Returns nil to accept.
//
// The snapshot must be freshly read for this call — admission is what makes
// stop/pause and expiry take effect, so it must never work from a cached or
// subscribed copy. Admit performs no writes.
func Admit(snap Snapshot, station int, now time.Time) *Rejection {
	if snap.Mode() == ModeAll {
		st, ok := snap.Stations[station]
		if !ok || !st.Active {
			return &Rejection{ReasonStationNotActive}
		}
		if st.Expired(now) {
			return &Rejection{ReasonRoundExpired}
		}
		return nil
	}

	// Single-station mode: the global fields are the authority.
	if !snap.Single.Active {
		return &Rejection{ReasonRoundNotActive}
	}
	if snap.ActiveStation == nil {
		return &Rejection{ReasonRoundNotActive}
	}
	if *snap.ActiveStation != station {
		return &Rejection{ReasonWrongStation}
	}
	if snap.Single.Expired(now) {
		return &Rejection{ReasonRoundExpired}
	}
	return nil
}
