package policy

import (
	"testing"

	"github.com/medibook/medibook/internal/platform/restapi"
)

var (
	anon    = Session{}
	patient = Session{Authenticated: true}
	doctor  = Session{Authenticated: true, Doctor: true}
	admin   = Session{Authenticated: true, Administrator: true}
)

func TestDecideSlotClick(t *testing.T) {
	free := restapi.Slot{ID: 1}
	booked := restapi.Slot{ID: 2, IsBooked: true}

	tests := []struct {
		name    string
		session Session
		slot    restapi.Slot
		want    Action
	}{
		{"booked slot, anonymous", anon, booked, PromptLogin},
		{"booked slot, authenticated", patient, booked, OfferEdit},
		{"free slot, anonymous", anon, free, PromptLogin},
		{"free slot, authenticated", patient, free, OfferBook},
		{"free slot, doctor", doctor, free, OfferBook},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecideSlotClick(tt.session, tt.slot); got.Action != tt.want {
				t.Errorf("DecideSlotClick() = %v, want %v", got.Action, tt.want)
			}
		})
	}
}

func TestDecideRangeSelect(t *testing.T) {
	tests := []struct {
		name    string
		session Session
		want    Action
	}{
		{"anonymous", anon, ViewOnly},
		{"patient", patient, ViewOnly},
		{"administrator without doctor role", admin, ViewOnly},
		{"doctor", doctor, OfferCreateSlot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecideRangeSelect(tt.session)
			if got.Action != tt.want {
				t.Errorf("DecideRangeSelect() = %v, want %v", got.Action, tt.want)
			}
			// The silent cases must not carry an explanation that a UI
			// would surface.
			if tt.want == ViewOnly && got.Reason != "" {
				t.Errorf("reason = %q, want empty for the silent case", got.Reason)
			}
		})
	}
}

func TestDecideBooking_CancelledIsTerminalForEveryRole(t *testing.T) {
	cancelled := restapi.Booking{ID: 1, Status: restapi.StatusCancelled}
	for _, s := range []Session{anon, patient, doctor, admin} {
		got := DecideBooking(s, cancelled)
		if got.Action != ViewOnly {
			t.Errorf("DecideBooking(%+v, cancelled) = %v, want ViewOnly", s, got.Action)
		}
		if got.Reason == "" {
			t.Error("a terminal booking decision should explain itself")
		}
	}
}

func TestDecideBooking_ActiveOffersEdit(t *testing.T) {
	active := restapi.Booking{ID: 1, Status: restapi.StatusConfirmed}
	if got := DecideBooking(patient, active); got.Action != OfferEdit {
		t.Errorf("DecideBooking() = %v, want OfferEdit", got.Action)
	}
	if got := DecideBooking(anon, active); got.Action != PromptLogin {
		t.Errorf("DecideBooking(anon) = %v, want PromptLogin", got.Action)
	}
}

func TestCanCancel(t *testing.T) {
	active := restapi.Booking{Status: restapi.StatusPending}
	cancelled := restapi.Booking{Status: restapi.StatusCancelled}

	if !CanCancel(patient, active) {
		t.Error("CanCancel(patient, active) = false, want true")
	}
	if CanCancel(patient, cancelled) {
		t.Error("CanCancel(patient, cancelled) = true, want false")
	}
	if CanCancel(anon, active) {
		t.Error("CanCancel(anon, active) = true, want false")
	}
}

func TestDecideBookedSlot_ZeroBookingsDegradesToViewOnly(t *testing.T) {
	got := DecideBookedSlot(patient, nil)
	if got.Action != ViewOnly {
		t.Fatalf("DecideBookedSlot() = %v, want ViewOnly", got.Action)
	}
	if got.Reason == "" {
		t.Error("the not-your-booking case must carry an explanation")
	}
}

func TestDecideBookedSlot_OwnBookingOffersEdit(t *testing.T) {
	bookings := []restapi.Booking{{ID: 1, Status: restapi.StatusConfirmed}}
	if got := DecideBookedSlot(patient, bookings); got.Action != OfferEdit {
		t.Errorf("DecideBookedSlot() = %v, want OfferEdit", got.Action)
	}

	cancelled := []restapi.Booking{{ID: 1, Status: restapi.StatusCancelled}}
	if got := DecideBookedSlot(patient, cancelled); got.Action != ViewOnly {
		t.Errorf("DecideBookedSlot(cancelled) = %v, want ViewOnly", got.Action)
	}
}
