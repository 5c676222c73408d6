package domain

import "fmt"

// Event is a lifecycle transition request. Each entity kind accepts its own
// subset; anything else fails with ErrIllegalTransition and no mutation.
type Event string

const (
	// Lead events
	EventContact  Event = "contact"
	EventQualify  Event = "qualify"
	EventMarkLost Event = "mark_lost"
	EventConvert  Event = "convert"

	// Offer events
	EventSend   Event = "send"
	EventAccept Event = "accept"
	EventReject Event = "reject"
	EventExpire Event = "expire" // raised by the deadline sweep, not by clients

	// Installation events
	EventSchedule   Event = "schedule"
	EventStart      Event = "start"
	EventFinish     Event = "finish"
	EventMarkUndone Event = "mark_undone" // raised by the deadline sweep
)

var leadTransitions = map[LeadStatus]map[Event]LeadStatus{
	LeadNew: {
		EventContact:  LeadContacted,
		EventMarkLost: LeadLost,
	},
	LeadContacted: {
		EventQualify:  LeadQualified,
		EventMarkLost: LeadLost,
	},
	LeadQualified: {
		EventConvert:  LeadConverted,
		EventMarkLost: LeadLost,
	},
}

var offerTransitions = map[OfferStatus]map[Event]OfferStatus{
	OfferDraft: {
		EventSend: OfferSent,
	},
	OfferSent: {
		EventAccept: OfferAccepted,
		EventReject: OfferRejected,
		EventExpire: OfferExpired,
	},
}

var installationTransitions = map[InstallationStatus]map[Event]InstallationStatus{
	InstallationPending: {
		EventSchedule: InstallationScheduled,
	},
	InstallationScheduled: {
		EventStart:      InstallationInProgress,
		EventMarkUndone: InstallationUndone,
	},
	InstallationInProgress: {
		EventFinish:     InstallationDone,
		EventMarkUndone: InstallationUndone,
	},
}

// NextLeadStatus resolves the target status for (current, event) or fails
// with ErrIllegalTransition.
func NextLeadStatus(current LeadStatus, event Event) (LeadStatus, error) {
	if next, ok := leadTransitions[current][event]; ok {
		return next, nil
	}
	return "", fmt.Errorf("%w: lead in %q cannot %q", ErrIllegalTransition, current, event)
}

// NextOfferStatus resolves the target status for (current, event) or fails
// with ErrIllegalTransition. Send is irreversible: there is no event out of
// sent back to draft, and re-sending a sent offer is illegal.
func NextOfferStatus(current OfferStatus, event Event) (OfferStatus, error) {
	if next, ok := offerTransitions[current][event]; ok {
		return next, nil
	}
	return "", fmt.Errorf("%w: offer in %q cannot %q", ErrIllegalTransition, current, event)
}

// NextInstallationStatus resolves the target status for (current, event) or
// fails with ErrIllegalTransition.
func NextInstallationStatus(current InstallationStatus, event Event) (InstallationStatus, error) {
	if next, ok := installationTransitions[current][event]; ok {
		return next, nil
	}
	return "", fmt.Errorf("%w: installation in %q cannot %q", ErrIllegalTransition, current, event)
}

// CanCreateOffer: offers may be created for any lead not lost.
func CanCreateOffer(lead *Lead) bool {
	return lead.Status != LeadLost
}
