package chat

import "fmt"

// RollMode controls who can see a roll message.
type RollMode string

const (
	RollModePublic  RollMode = "publicroll"
	RollModePrivate RollMode = "gmroll"
	RollModeBlind   RollMode = "blindroll"
	RollModeSelf    RollMode = "selfroll"
)

// ParseRollMode validates s as a RollMode.
func ParseRollMode(s string) (RollMode, error) {
	switch m := RollMode(s); m {
	case RollModePublic, RollModePrivate, RollModeBlind, RollModeSelf:
		return m, nil
	}
	return "", fmt.Errorf("chat: unknown roll mode %q", s)
}

// Audience is the user context a visibility rule is applied against.
type Audience struct {
	UserID string
	GMIDs  []string
}

// ApplyRollMode sets the whisper and blind keys of p for mode.
// gmroll and blindroll whisper the GMs, selfroll whispers the rolling user,
// and blindroll additionally hides the result from its author.
func ApplyRollMode(p Payload, mode RollMode, aud Audience) {
	switch mode {
	case RollModePrivate, RollModeBlind:
		p[KeyWhisper] = append([]string(nil), aud.GMIDs...)
	case RollModeSelf:
		p[KeyWhisper] = []string{aud.UserID}
	}
	if mode == RollModeBlind {
		p[KeyBlind] = true
	}
}
