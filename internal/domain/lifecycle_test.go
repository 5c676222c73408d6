package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextLeadStatus(t *testing.T) {
	tests := []struct {
		name    string
		current LeadStatus
		event   Event
		want    LeadStatus
		wantErr bool
	}{
		{"new contact", LeadNew, EventContact, LeadContacted, false},
		{"new lost", LeadNew, EventMarkLost, LeadLost, false},
		{"contacted qualify", LeadContacted, EventQualify, LeadQualified, false},
		{"contacted lost", LeadContacted, EventMarkLost, LeadLost, false},
		{"qualified convert", LeadQualified, EventConvert, LeadConverted, false},
		{"qualified lost", LeadQualified, EventMarkLost, LeadLost, false},
		{"new qualify skips contacted", LeadNew, EventQualify, "", true},
		{"new convert", LeadNew, EventConvert, "", true},
		{"contacted convert skips qualified", LeadContacted, EventConvert, "", true},
		{"lost is terminal", LeadLost, EventContact, "", true},
		{"converted is terminal", LeadConverted, EventMarkLost, "", true},
		{"offer event on lead", LeadNew, EventSend, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextLeadStatus(tt.current, tt.event)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrIllegalTransition))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNextOfferStatus(t *testing.T) {
	tests := []struct {
		name    string
		current OfferStatus
		event   Event
		want    OfferStatus
		wantErr bool
	}{
		{"draft send", OfferDraft, EventSend, OfferSent, false},
		{"sent accept", OfferSent, EventAccept, OfferAccepted, false},
		{"sent reject", OfferSent, EventReject, OfferRejected, false},
		{"sent expire", OfferSent, EventExpire, OfferExpired, false},
		{"draft accept before send", OfferDraft, EventAccept, "", true},
		{"re-send a sent offer", OfferSent, EventSend, "", true},
		{"accepted is terminal", OfferAccepted, EventReject, "", true},
		{"rejected is terminal", OfferRejected, EventSend, "", true},
		{"expired is terminal", OfferExpired, EventAccept, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOfferStatus(tt.current, tt.event)
			if tt.wantErr {
				require.True(t, errors.Is(err, ErrIllegalTransition))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNextInstallationStatus(t *testing.T) {
	tests := []struct {
		name    string
		current InstallationStatus
		event   Event
		want    InstallationStatus
		wantErr bool
	}{
		{"pending schedule", InstallationPending, EventSchedule, InstallationScheduled, false},
		{"scheduled start", InstallationScheduled, EventStart, InstallationInProgress, false},
		{"scheduled undone", InstallationScheduled, EventMarkUndone, InstallationUndone, false},
		{"in progress finish", InstallationInProgress, EventFinish, InstallationDone, false},
		{"in progress undone", InstallationInProgress, EventMarkUndone, InstallationUndone, false},
		{"pending start before schedule", InstallationPending, EventStart, "", true},
		{"pending finish", InstallationPending, EventFinish, "", true},
		{"done is terminal", InstallationDone, EventStart, "", true},
		{"undone is terminal", InstallationUndone, EventSchedule, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextInstallationStatus(tt.current, tt.event)
			if tt.wantErr {
				require.True(t, errors.Is(err, ErrIllegalTransition))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCanCreateOffer(t *testing.T) {
	require.True(t, CanCreateOffer(&Lead{Status: LeadNew}))
	require.True(t, CanCreateOffer(&Lead{Status: LeadQualified}))
	require.True(t, CanCreateOffer(&Lead{Status: LeadConverted}))
	require.False(t, CanCreateOffer(&Lead{Status: LeadLost}))
}
