package models

import "time"

// SequenceCounterCampaignID names the counter holding the next campaign id
const SequenceCounterCampaignID = "campaign_id"

// SequenceCounter stores the next value for named monotonic counters.
type SequenceCounter struct {
	Name      string    `gorm:"primaryKey;size:64" json:"name"`
	NextValue uint64    `gorm:"not null" json:"next_value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SequenceCounter) TableName() string { return "sequence_counters" }
