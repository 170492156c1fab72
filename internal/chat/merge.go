package chat

import (
	"fmt"

	"dario.cat/mergo"
)

// MergeOptions inserts every caller option whose key is not already set on p.
// Keys already present, including the reserved ones, keep their value. The
// nested messageData entry is never inserted; see MergeMessageData.
func MergeOptions(p Payload, options map[string]any) error {
	missing := Payload{}
	for k, v := range options {
		if k == KeyMessageData {
			continue
		}
		if _, taken := p[k]; taken {
			continue
		}
		missing[k] = v
	}
	if err := mergo.Merge(&p, missing); err != nil {
		return fmt.Errorf("chat: merging options: %w", err)
	}
	return nil
}

// MergeMessageData deep-merges data into p with data taking priority.
func MergeMessageData(p Payload, data map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	if err := mergo.Merge(&p, Payload(data), mergo.WithOverride); err != nil {
		return fmt.Errorf("chat: merging message data: %w", err)
	}
	return nil
}
