package rolls

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/multiroll/internal/chat"
	"github.com/cory-johannsen/multiroll/internal/game/dice"
	"github.com/cory-johannsen/multiroll/internal/game/item"
	"github.com/cory-johannsen/multiroll/internal/i18n"
)

// RollKindDamage is the roll kind recorded in the roll metadata.
const RollKindDamage = "damage"

// publish renders and assembles the aggregate message, then animates every
// part and persists the message unless the caller disabled it.
func (r *DamageRoller) publish(ctx context.Context, it *item.Item, req DamageRequest, res *DamageRoll) (*DamageRoll, error) {
	if res == nil {
		return nil, nil
	}
	payload, err := r.assemble(it, res, req.Options)
	if err != nil {
		return nil, fmt.Errorf("assembling damage message for item %s: %w", it.ID, err)
	}
	res.Payload = payload
	if !req.Options.CreatesMessage() {
		return res, nil
	}

	r.animate(ctx, it, res.Parts, VisibilityOf(payload))

	id, err := r.deps.Messages.Create(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("creating damage message for item %s: %w", it.ID, err)
	}
	res.MessageID = id
	r.logger.Info("damage rolled",
		zap.String("item", it.ID),
		zap.String("message", id),
		zap.Int("parts", len(res.Parts)),
		zap.Bool("critical", res.Critical),
	)
	return res, nil
}

// assemble builds the outbound payload for res.
func (r *DamageRoller) assemble(it *item.Item, res *DamageRoll, opts Options) (chat.Payload, error) {
	fragments := make([]chat.Fragment, len(res.Parts))
	rolls := make([]json.RawMessage, len(res.Parts))
	for i, part := range res.Parts {
		fragments[i] = chat.Fragment{Roll: part.Roll, Flavor: part.Flavor}
		data, err := part.Roll.JSON()
		if err != nil {
			return nil, err
		}
		rolls[i] = data
	}
	content, err := chat.RenderParts(fragments)
	if err != nil {
		return nil, err
	}

	flavor := res.Title
	meta := map[string]any{"type": RollKindDamage, "itemId": it.ID}
	if res.Critical {
		flavor = fmt.Sprintf("%s (%s)", flavor, r.deps.Localizer.Localize(i18n.KeyCritical))
		meta["critical"] = true
	}

	payload := chat.Payload{
		chat.KeyUser:      r.deps.Audience.UserID,
		chat.KeyContent:   content,
		chat.KeyFlavor:    flavor,
		chat.KeyRoll:      dice.Zero(),
		chat.KeySpeaker:   chat.Speaker{Actor: it.ActorID, Alias: it.ActorName},
		chat.KeySound:     chat.SoundDice,
		chat.KeyType:      chat.TypeRoll,
		chat.KeyRollFlags: meta,
		chat.KeyPartRolls: rolls,
	}
	chat.ApplyRollMode(payload, res.RollMode, r.deps.Audience)

	if err := chat.MergeOptions(payload, opts.Extra); err != nil {
		return nil, err
	}
	if err := chat.MergeMessageData(payload, opts.MessageData); err != nil {
		return nil, err
	}
	return payload, nil
}

// animate dispatches every part's roll to the animator concurrently and
// waits for all of them. Failures are logged and never returned.
func (r *DamageRoller) animate(ctx context.Context, it *item.Item, parts []DamagePart, vis Visibility) {
	if r.deps.Animator == nil || len(parts) == 0 {
		return
	}
	var g errgroup.Group
	for i, part := range parts {
		g.Go(func() error {
			if err := r.deps.Animator.Animate(ctx, part.Roll, vis); err != nil {
				return fmt.Errorf("part %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Warn("dice animation failed", zap.String("item", it.ID), zap.Error(err))
	}
}
