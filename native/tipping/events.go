package tipping

import (
	"encoding/hex"
	"strconv"

	"tipvault/core/events"
	"tipvault/core/types"
)

const (
	// EventTypeSeasonCreated is emitted when the registry opens a new season.
	EventTypeSeasonCreated = "tipping.season.created"
	// EventTypeSeasonUpdated is emitted when a mutable season field changes.
	EventTypeSeasonUpdated = "tipping.season.updated"
	// EventTypeQuotaUsed is emitted by the ledger after a successful debit.
	EventTypeQuotaUsed = "tipping.quota.used"
	// EventTypeUnclaimedWithdrawn is emitted by the post-season sweep.
	EventTypeUnclaimedWithdrawn = "tipping.unclaimed.withdrawn"
	// EventTypeLabelUpserted is emitted when a label profile is written.
	EventTypeLabelUpserted = "tipping.label.upserted"
	// EventTypeProfileUpdated is emitted when an account profile is assigned.
	EventTypeProfileUpdated = "tipping.profile.updated"
	// EventTypeTipSubmitted is emitted by the gateway once a tip settles.
	EventTypeTipSubmitted = "tipping.tip.submitted"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func hexHash(h [32]byte) string {
	return "0x" + hex.EncodeToString(h[:])
}

func seasonCreatedEvent(s *Season) *types.Event {
	return &types.Event{
		Type: EventTypeSeasonCreated,
		Attributes: map[string]string{
			"seasonId":      strconv.FormatUint(s.ID, 10),
			"title":         s.Title,
			"startTime":     strconv.FormatInt(s.StartTime, 10),
			"endTime":       strconv.FormatInt(s.EndTime, 10),
			"seasonCap":     s.SeasonCap.String(),
			"baseDailyUnit": s.BaseDailyUnit.String(),
			"root":          hexHash(s.CommitmentRoot),
		},
	}
}

func seasonUpdatedEvent(id uint64, field string, value string) *types.Event {
	return &types.Event{
		Type: EventTypeSeasonUpdated,
		Attributes: map[string]string{
			"seasonId": strconv.FormatUint(id, 10),
			"field":    field,
			"value":    value,
		},
	}
}

func quotaUsedEvent(account [20]byte, seasonID uint64, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeQuotaUsed,
		Attributes: map[string]string{
			"account":  hexAddr(account),
			"seasonId": strconv.FormatUint(seasonID, 10),
			"amount":   amount,
		},
	}
}

func unclaimedWithdrawnEvent(seasonID uint64, amount string, treasury [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeUnclaimedWithdrawn,
		Attributes: map[string]string{
			"seasonId": strconv.FormatUint(seasonID, 10),
			"amount":   amount,
			"treasury": hexAddr(treasury),
		},
	}
}

func labelUpsertedEvent(label *LabelProfile) *types.Event {
	return &types.Event{
		Type: EventTypeLabelUpserted,
		Attributes: map[string]string{
			"labelId":    hexHash(label.ID),
			"name":       label.Name,
			"multiplier": strconv.FormatUint(label.Multiplier, 10),
			"active":     strconv.FormatBool(label.Active),
		},
	}
}

func profileUpdatedEvent(profile *AccountProfile) *types.Event {
	return &types.Event{
		Type: EventTypeProfileUpdated,
		Attributes: map[string]string{
			"account": hexAddr(profile.Account),
			"labelId": hexHash(profile.LabelID),
			"active":  strconv.FormatBool(profile.Active),
		},
	}
}

func tipSubmittedEvent(tipper [20]byte, recipient [20]byte, seasonID uint64, amount string, multiplier uint64) *types.Event {
	return &types.Event{
		Type: EventTypeTipSubmitted,
		Attributes: map[string]string{
			"tipper":     hexAddr(tipper),
			"recipient":  hexAddr(recipient),
			"seasonId":   strconv.FormatUint(seasonID, 10),
			"amount":     amount,
			"multiplier": strconv.FormatUint(multiplier, 10),
		},
	}
}
