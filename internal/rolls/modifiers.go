package rolls

import "sync"

// Modifier key names.
const (
	KeyShift = "shiftKey"
	KeyAlt   = "altKey"
	KeyCtrl  = "ctrlKey"
	KeyMeta  = "metaKey"
)

// Modifiers is a snapshot of the interaction state that triggered a roll.
type Modifiers struct {
	Shift   bool `json:"shiftKey"`
	Alt     bool `json:"altKey"`
	Ctrl    bool `json:"ctrlKey"`
	Meta    bool `json:"metaKey"`
	ClientX int  `json:"clientX,omitempty"`
	ClientY int  `json:"clientY,omitempty"`
}

// Held reports whether the named modifier key is down. Unknown names are
// never held.
func (m Modifiers) Held(key string) bool {
	switch key {
	case KeyShift:
		return m.Shift
	case KeyAlt:
		return m.Alt
	case KeyCtrl:
		return m.Ctrl
	case KeyMeta:
		return m.Meta
	}
	return false
}

// ModifierTracker exposes the live modifier state.
type ModifierTracker interface {
	Snapshot() Modifiers
}

// KeyState is a ModifierTracker updated by the input layer.
// It is safe for concurrent use.
type KeyState struct {
	mu  sync.Mutex
	cur Modifiers
}

// Set replaces the tracked state.
func (k *KeyState) Set(m Modifiers) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.cur = m
}

// Snapshot returns a copy of the tracked state.
func (k *KeyState) Snapshot() Modifiers {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.cur
}
