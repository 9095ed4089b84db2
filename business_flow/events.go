package businessflow

import (
	"context"
	"time"

	"github.com/amirphl/likebounty/models"
	"github.com/google/uuid"
)

// EventType names an observable registry or campaign event
type EventType string

const (
	EventCampaignCreated  EventType = models.CampaignEventCampaignCreated
	EventApplied          EventType = models.CampaignEventApplied
	EventSelected         EventType = models.CampaignEventSelected
	EventEngaged          EventType = models.CampaignEventEngaged
	EventFinished         EventType = models.CampaignEventFinished
	EventPayoutClaimed    EventType = models.CampaignEventPayoutClaimed
	EventSponsorAdded     EventType = models.CampaignEventSponsorAdded
	EventSponsorRemoved   EventType = models.CampaignEventSponsorRemoved
	EventRegistryPaused   EventType = models.CampaignEventRegistryPaused
	EventRegistryUnpaused EventType = models.CampaignEventRegistryUnpaused
)

// Event is emitted after every successful state change
type Event struct {
	UUID              uuid.UUID              `json:"uuid"`
	Type              EventType              `json:"type"`
	CampaignID        uint64                 `json:"campaign_id,omitempty"`
	Name              string                 `json:"name,omitempty"`
	LikeGoal          uint64                 `json:"like_goal,omitempty"`
	ActivityWindowEnd *time.Time             `json:"activity_window_end,omitempty"`
	Sponsor           string                 `json:"sponsor,omitempty"`
	Applicant         string                 `json:"applicant,omitempty"`
	Owner             string                 `json:"owner,omitempty"`
	SelectedBy        string                 `json:"selected_by,omitempty"`
	Payout            uint64                 `json:"payout,omitempty"`
	Outcome           models.CampaignOutcome `json:"outcome,omitempty"`
	Timestamp         time.Time              `json:"timestamp"`
}

// Actor returns the identity that caused the event
func (e Event) Actor() string {
	switch e.Type {
	case EventApplied, EventSelected, EventEngaged, EventPayoutClaimed:
		return e.Applicant
	case EventRegistryPaused, EventRegistryUnpaused:
		return e.Owner
	default:
		return e.Sponsor
	}
}

func newEvent(t EventType, campaignID uint64, now time.Time) Event {
	return Event{
		UUID:       uuid.New(),
		Type:       t,
		CampaignID: campaignID,
		Timestamp:  now,
	}
}

// EventSink observes events. Sinks must not block for long and cannot fail
// the operation that produced the event.
type EventSink interface {
	Publish(ctx context.Context, evt Event)
}

// MultiEventSink fans an event out to several sinks in order
type MultiEventSink []EventSink

func (m MultiEventSink) Publish(ctx context.Context, evt Event) {
	for _, sink := range m {
		if sink != nil {
			sink.Publish(ctx, evt)
		}
	}
}

type nopEventSink struct{}

func (nopEventSink) Publish(context.Context, Event) {}
