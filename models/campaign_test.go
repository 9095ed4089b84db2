package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCampaignStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to CampaignStatus
		allowed  bool
	}{
		{CampaignStatusCreated, CampaignStatusActive, true},
		{CampaignStatusCreated, CampaignStatusFinished, true},
		{CampaignStatusActive, CampaignStatusFinished, true},
		{CampaignStatusActive, CampaignStatusCreated, false},
		{CampaignStatusFinished, CampaignStatusCreated, false},
		{CampaignStatusFinished, CampaignStatusActive, false},
		{CampaignStatusFinished, CampaignStatusFinished, false},
		{CampaignStatusCreated, CampaignStatusCreated, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"_to_"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.True(t, CampaignStatusFinished.IsTerminal())
	assert.False(t, CampaignStatusActive.IsTerminal())
	assert.False(t, CampaignStatusCreated.IsTerminal())
}
