package realtime

import "sync/atomic"

// Store holds the current realtime snapshots. Each feed's snapshot is an
// immutable value replaced by a single pointer swap, so readers always see
// one complete snapshot. Commits carry the poll generation that produced
// them and a commit from an older generation never replaces a newer one.
type Store struct {
	vehicles    atomic.Pointer[VehicleSnapshot]
	tripUpdates atomic.Pointer[TripUpdateSnapshot]
}

// NewStore creates a store holding empty generation-zero snapshots.
func NewStore() *Store {
	s := &Store{}
	s.vehicles.Store(&VehicleSnapshot{})
	s.tripUpdates.Store(&TripUpdateSnapshot{})
	return s
}

// Vehicles returns the current vehicle snapshot. Never nil.
func (s *Store) Vehicles() *VehicleSnapshot {
	return s.vehicles.Load()
}

// TripUpdates returns the current trip update snapshot. Never nil.
func (s *Store) TripUpdates() *TripUpdateSnapshot {
	return s.tripUpdates.Load()
}

// SetVehicles installs snap unless a snapshot from the same or a later
// generation is already in place. It reports whether snap was installed.
func (s *Store) SetVehicles(snap *VehicleSnapshot) bool {
	for {
		cur := s.vehicles.Load()
		if snap.Generation <= cur.Generation {
			return false
		}
		if s.vehicles.CompareAndSwap(cur, snap) {
			return true
		}
	}
}

// SetTripUpdates installs snap unless a snapshot from the same or a later
// generation is already in place. It reports whether snap was installed.
func (s *Store) SetTripUpdates(snap *TripUpdateSnapshot) bool {
	for {
		cur := s.tripUpdates.Load()
		if snap.Generation <= cur.Generation {
			return false
		}
		if s.tripUpdates.CompareAndSwap(cur, snap) {
			return true
		}
	}
}
