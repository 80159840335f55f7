// Package input holds the latest controller and pose readings reported by
// the headset, and hands out per-tick snapshots of them.
package input

import (
	"sync"
	"time"

	"github.com/golang/geo/r3"
)

// Buttons is the set of boolean features read from one handheld device.
type Buttons struct {
	Primary   bool `json:"primary"`
	Secondary bool `json:"secondary"`
	Trigger   bool `json:"trigger"`
}

// ControllerSnapshot is one frame's reading of both devices. An absent
// device reads as all-false.
type ControllerSnapshot struct {
	Left  Buttons
	Right Buttons
}

// Device is a device report as sent by the headset.
type Device struct {
	Connected bool `json:"connected"`
	Buttons
}

// Frame is one input report from the headset: both controllers plus the
// tracked frame position.
type Frame struct {
	Left     *Device    `json:"left,omitempty"`
	Right    *Device    `json:"right,omitempty"`
	Position *r3.Vector `json:"position,omitempty"`
}

// Store keeps the most recent Frame. It is written by the input endpoint
// and read by the scheduler, so all access is locked.
type Store struct {
	mu         sync.RWMutex
	left       Device
	right      Device
	position   r3.Vector
	lastUpdate time.Time
	frames     uint64
}

// NewStore creates an empty store: both devices absent, position at the origin.
func NewStore() *Store {
	return &Store{}
}

// Apply merges a frame into the store. Nil parts of the frame leave the
// previous value untouched.
func (s *Store) Apply(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.Left != nil {
		s.left = *f.Left
	}
	if f.Right != nil {
		s.right = *f.Right
	}
	if f.Position != nil {
		s.position = *f.Position
	}
	s.lastUpdate = time.Now()
	s.frames++
}

// MarkDisconnected drops both devices, e.g. when the headset connection closes.
// The last position is kept so the shaper sees no displacement.
func (s *Store) MarkDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.left = Device{}
	s.right = Device{}
}

// Snapshot implements the device source used by the trigger component.
func (s *Store) Snapshot() ControllerSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ControllerSnapshot{
		Left:  s.left.read(),
		Right: s.right.read(),
	}
}

// Position implements the pose source used by the shaping component.
func (s *Store) Position() r3.Vector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.position
}

// Stats reports how many frames were applied and when the last one arrived.
func (s *Store) Stats() (frames uint64, lastUpdate time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames, s.lastUpdate
}

func (d Device) read() Buttons {
	if !d.Connected {
		return Buttons{}
	}
	return d.Buttons
}
