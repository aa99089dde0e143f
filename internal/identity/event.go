// Package identity turns sign-in credentials from the external identity
// provider into user profiles and delivers them as events.
package identity

import "logossophia/pkg/domain"

type EventKind string

const (
	SignIn  EventKind = "sign_in"
	SignOut EventKind = "sign_out"
)

// Event is emitted by the identity provider adapter. Profile is set for SignIn only.
type Event struct {
	Kind    EventKind
	Profile *domain.UserProfile
}

func SignInEvent(p domain.UserProfile) Event {
	return Event{Kind: SignIn, Profile: &p}
}

func SignOutEvent() Event {
	return Event{Kind: SignOut}
}
