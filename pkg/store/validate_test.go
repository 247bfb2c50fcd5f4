package store

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	sgberrors "github.com/signalboard/sgb-cli/pkg/errors"
)

func strptr(s string) *string { return &s }

func validContent() *ContentEvent {
	return &ContentEvent{
		ExternalKey: strptr("post-1"),
		Channel:     ChannelLinkedIn,
		ContentType: ContentTypePost,
	}
}

func validFunnel() *FunnelEvent {
	return &FunnelEvent{
		ExternalKey: strptr("lead-1"),
		Stage:       StageLead,
	}
}

func TestValidateContentEvent(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ContentEvent)
		wantErr bool
	}{
		{"valid", func(ev *ContentEvent) {}, false},
		{"no external key is valid", func(ev *ContentEvent) { ev.ExternalKey = nil }, false},
		{"missing channel", func(ev *ContentEvent) { ev.Channel = "" }, true},
		{"missing content type", func(ev *ContentEvent) { ev.ContentType = "" }, true},
		{"empty external key", func(ev *ContentEvent) { ev.ExternalKey = strptr("") }, true},
		{"negative views", func(ev *ContentEvent) { ev.Views = -1 }, true},
		{"negative clicks", func(ev *ContentEvent) { ev.Clicks = -10 }, true},
		{"zero metrics are fine", func(ev *ContentEvent) {}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validContent()
			tt.mutate(ev)
			err := ValidateContentEvent(ev)
			if tt.wantErr {
				assert.True(t, sgberrors.IsValidation(err), "expected validation error, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateContentEventNil(t *testing.T) {
	assert.True(t, sgberrors.IsValidation(ValidateContentEvent(nil)))
}

func TestValidateFunnelEvent(t *testing.T) {
	negative := decimal.NewFromInt(-5)
	positive := decimal.NewFromInt(5000)

	tests := []struct {
		name    string
		mutate  func(*FunnelEvent)
		wantErr bool
	}{
		{"valid", func(ev *FunnelEvent) {}, false},
		{"missing stage", func(ev *FunnelEvent) { ev.Stage = "" }, true},
		{"empty external key", func(ev *FunnelEvent) { ev.ExternalKey = strptr("") }, true},
		{"negative amount", func(ev *FunnelEvent) { ev.Amount = &negative }, true},
		{"positive amount at lead stage is fine", func(ev *FunnelEvent) { ev.Amount = &positive }, false},
		{"nil amount is fine", func(ev *FunnelEvent) { ev.Amount = nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validFunnel()
			tt.mutate(ev)
			err := ValidateFunnelEvent(ev)
			if tt.wantErr {
				assert.True(t, sgberrors.IsValidation(err), "expected validation error, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUnknownContentValues(t *testing.T) {
	ev := validContent()
	assert.Empty(t, UnknownContentValues(ev))

	ev.Channel = "tiktok"
	ev.ContentType = "reel"
	unknown := UnknownContentValues(ev)
	assert.Len(t, unknown, 2)
	assert.Contains(t, unknown, "channel=tiktok")
	assert.Contains(t, unknown, "content_type=reel")
}

func TestUnknownFunnelValues(t *testing.T) {
	ev := validFunnel()
	assert.Empty(t, UnknownFunnelValues(ev))

	ev.Stage = "won"
	ev.Sector = strptr("retail")
	ev.SourceChannel = strptr("carrier_pigeon")
	unknown := UnknownFunnelValues(ev)
	assert.Len(t, unknown, 3)
	assert.Contains(t, unknown, "stage=won")
}

func TestKnownValueSets(t *testing.T) {
	assert.True(t, IsKnownContentChannel(ChannelLinkedIn))
	assert.True(t, IsKnownContentChannel(ChannelSite))
	// email and referral are funnel source channels, not content channels
	assert.False(t, IsKnownContentChannel(ChannelEmail))
	assert.True(t, IsKnownSourceChannel(ChannelEmail))
	assert.True(t, IsKnownSourceChannel(ChannelReferral))
	assert.False(t, IsKnownSourceChannel(ChannelSite))

	assert.True(t, IsKnownContentType(ContentTypeLanding))
	assert.False(t, IsKnownContentType("story"))

	for _, stage := range []string{StageLead, StageMeeting, StagePilot, StageDeal} {
		assert.True(t, IsKnownStage(stage))
	}
	assert.False(t, IsKnownStage("churned"))

	assert.True(t, IsKnownSector(SectorEnergy))
	assert.False(t, IsKnownSector("finance"))
}
