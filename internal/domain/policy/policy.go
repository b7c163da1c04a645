// Package policy decides which booking affordance the UI may offer for a
// given session and slot or booking. Decisions are pure: no network, no
// state, same inputs same answer. Role flags are probed and cached by the
// session store; this package only consumes them, so swapping the probe
// mechanism for real token claims would not touch anything here.
package policy

import (
	"github.com/medibook/medibook/internal/platform/restapi"
)

// Action is the single affordance the UI should surface.
type Action int

const (
	// ViewOnly offers nothing. Reason may explain why.
	ViewOnly Action = iota
	// PromptLogin routes the user to the login surface.
	PromptLogin
	// OfferBook opens the booking form for a free slot.
	OfferBook
	// OfferEdit opens the edit surface for an existing booking.
	OfferEdit
	// OfferCancel allows cancelling a non-terminal booking.
	OfferCancel
	// OfferCreateSlot opens the add-slot form on an empty range.
	OfferCreateSlot
)

func (a Action) String() string {
	switch a {
	case ViewOnly:
		return "view-only"
	case PromptLogin:
		return "prompt-login"
	case OfferBook:
		return "offer-book"
	case OfferEdit:
		return "offer-edit"
	case OfferCancel:
		return "offer-cancel"
	case OfferCreateSlot:
		return "offer-create-slot"
	}
	return "unknown"
}

// Session is the policy-relevant snapshot of the session store.
type Session struct {
	Authenticated bool
	Doctor        bool
	Administrator bool
}

// Decision pairs an action with an optional user-facing explanation.
type Decision struct {
	Action Action
	Reason string
}

// DecideSlotClick resolves a click on a calendar slot.
//
// The edit offer on a booked slot is optimistic: ownership is re-resolved
// server-side when the edit surface loads its booking, and degrades to
// view-only if the slot turns out to be someone else's.
func DecideSlotClick(s Session, slot restapi.Slot) Decision {
	if slot.IsBooked {
		if !s.Authenticated {
			return Decision{Action: PromptLogin}
		}
		return Decision{Action: OfferEdit}
	}
	if !s.Authenticated {
		return Decision{Action: PromptLogin}
	}
	return Decision{Action: OfferBook}
}

// DecideRangeSelect resolves a selection of an empty date/time range. Only a
// doctor gets the add-slot offer; everyone else gets silence rather than an
// error, so the affordance itself does not leak who holds the role.
func DecideRangeSelect(s Session) Decision {
	if s.Authenticated && s.Doctor {
		return Decision{Action: OfferCreateSlot}
	}
	return Decision{Action: ViewOnly}
}

// DecideBooking resolves the affordance for a single booking row. A
// cancelled booking is terminal: view-only for every role, no exceptions.
func DecideBooking(s Session, b restapi.Booking) Decision {
	if b.Cancelled() {
		return Decision{Action: ViewOnly, Reason: "this booking is cancelled and can no longer be changed"}
	}
	if !s.Authenticated {
		return Decision{Action: PromptLogin}
	}
	return Decision{Action: OfferEdit}
}

// CanCancel reports whether the cancel affordance applies to a booking.
func CanCancel(s Session, b restapi.Booking) bool {
	return s.Authenticated && !b.Cancelled()
}

// DecideBookedSlot resolves what the edit surface may offer after fetching a
// booked slot's bookings. An empty result on a slot flagged as booked means
// the booking is not the viewer's (or the data is inconsistent); either way
// the answer is view-only with an explanation, never a crash and never a
// misleading edit form.
func DecideBookedSlot(s Session, bookings []restapi.Booking) Decision {
	if !s.Authenticated {
		return Decision{Action: PromptLogin}
	}
	if len(bookings) == 0 {
		return Decision{Action: ViewOnly, Reason: "this is not your booking; you can only edit your own bookings"}
	}
	return DecideBooking(s, bookings[0])
}
