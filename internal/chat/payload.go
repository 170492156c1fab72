// Package chat builds the outbound chat-message payloads produced by rolls:
// visibility rules, rendered roll content, and the payload merge policies.
package chat

import "encoding/json"

// Reserved payload keys.
const (
	KeyID          = "_id"
	KeyUser        = "user"
	KeyContent     = "content"
	KeyFlavor      = "flavor"
	KeyRoll        = "roll"
	KeySpeaker     = "speaker"
	KeySound       = "sound"
	KeyType        = "type"
	KeyWhisper     = "whisper"
	KeyBlind       = "blind"
	KeyMessageData = "messageData"

	// KeyRollFlags holds the roll kind, item identity and critical marker.
	KeyRollFlags = "flags.dnd5e.roll"
	// KeyPartRolls holds every individual serialized part roll, in rolled order.
	KeyPartRolls = "flags.mre-dnd5e.rolls"
)

// Payload values.
const (
	TypeRoll  = "roll"
	TypeOther = "other"
	SoundDice = "sounds/dice.wav"
)

// ReservedKeys are the keys an assembler sets that caller options may never replace.
var ReservedKeys = []string{KeyContent, KeyFlavor, KeyRoll, KeySpeaker, KeySound, KeyType}

// Speaker identifies who a message is spoken as.
type Speaker struct {
	Actor string `json:"actor,omitempty"`
	Alias string `json:"alias,omitempty"`
}

// Payload is an outbound chat message as a flat key map, ready for the
// message store.
type Payload map[string]any

// ID returns the message identifier, if assigned.
func (p Payload) ID() string {
	s, _ := p[KeyID].(string)
	return s
}

// Content returns the rendered markup.
func (p Payload) Content() string {
	s, _ := p[KeyContent].(string)
	return s
}

// Flavor returns the flavor line.
func (p Payload) Flavor() string {
	s, _ := p[KeyFlavor].(string)
	return s
}

// Whisper returns the recipients when the message is whispered. It accepts
// both the typed form and the []any form a JSON decode produces.
func (p Payload) Whisper() []string {
	switch v := p[KeyWhisper].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Blind reports whether the message is hidden from its author.
func (p Payload) Blind() bool {
	b, _ := p[KeyBlind].(bool)
	return b
}

// PartRolls returns the serialized part rolls. Decoded documents hold the
// rolls as generic values, which are re-encoded.
func (p Payload) PartRolls() []json.RawMessage {
	switch v := p[KeyPartRolls].(type) {
	case []json.RawMessage:
		return v
	case []any:
		out := make([]json.RawMessage, 0, len(v))
		for _, e := range v {
			raw, err := json.Marshal(e)
			if err != nil {
				continue
			}
			out = append(out, raw)
		}
		return out
	}
	return nil
}

// RollFlags returns the roll metadata record.
func (p Payload) RollFlags() map[string]any {
	m, _ := p[KeyRollFlags].(map[string]any)
	return m
}

// Critical reports whether the roll metadata marks a critical.
func (p Payload) Critical() bool {
	c, _ := p.RollFlags()["critical"].(bool)
	return c
}

// Clone returns a shallow copy of p.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
