// Package calendar drives the availability calendar: it fetches slots for a
// date range, projects them into events, routes clicks and range selections
// through the access policy, and owns the modal state machine. After every
// successful mutation it refetches the whole visible range rather than
// patching events in place, so stale or duplicate events cannot survive.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/medibook/medibook/internal/domain/policy"
	"github.com/medibook/medibook/internal/platform/notify"
	"github.com/medibook/medibook/internal/platform/restapi"
)

// minReasonLength mirrors the booking form's shortest acceptable reason.
const minReasonLength = 3

// ModalKind tags the modal state variant.
type ModalKind int

const (
	ModalNone ModalKind = iota
	ModalBooking
	ModalEditBooking
	ModalAddSlot
)

// ModalState is a tagged variant: exactly one modal (or none) at a time, by
// construction rather than by convention.
type ModalState struct {
	Kind   ModalKind
	SlotID int64
	Date   time.Time
}

// sessionStore is the slice of the session store the presenter consults.
type sessionStore interface {
	IsAuthenticated() bool
	IsDoctor(ctx context.Context) bool
}

// gateway is the slice of the REST client the presenter drives.
type gateway interface {
	ListSlots(ctx context.Context, start, end time.Time) ([]restapi.Slot, error)
	CreateSlot(ctx context.Context, start time.Time) (*restapi.Slot, error)
	BookingsBySlot(ctx context.Context, slotID int64) ([]restapi.Booking, error)
	CreateBooking(ctx context.Context, slotID int64, reason string) (*restapi.Booking, error)
	UpdateBookingReason(ctx context.Context, id int64, reason string) (*restapi.Booking, error)
	CancelBooking(ctx context.Context, id int64) (*restapi.Booking, error)
}

// Presenter is the calendar view model. It is driven from the UI event loop;
// the generation counter guards continuations so a torn-down or re-navigated
// presenter ignores late responses.
type Presenter struct {
	api      gateway
	session  sessionStore
	bus      *notify.Bus
	logger   zerolog.Logger
	validate *validator.Validate

	rangeStart time.Time
	rangeEnd   time.Time
	events     []Event
	modal      ModalState

	editBooking *restapi.Booking

	generation uint64
	closed     bool
}

// NewPresenter creates a presenter over the given gateway and session store.
func NewPresenter(api gateway, session sessionStore, bus *notify.Bus, logger zerolog.Logger) *Presenter {
	return &Presenter{
		api:      api,
		session:  session,
		bus:      bus,
		logger:   logger,
		validate: validator.New(),
	}
}

// Close tears the presenter down. Any response landing after this is dropped.
func (p *Presenter) Close() {
	p.closed = true
	p.generation++
	p.modal = ModalState{}
	p.editBooking = nil
}

// Events returns the current projection of the visible range.
func (p *Presenter) Events() []Event {
	return p.events
}

// Modal returns the current modal state.
func (p *Presenter) Modal() ModalState {
	return p.modal
}

// CloseModal dismisses whatever modal is open.
func (p *Presenter) CloseModal() {
	p.modal = ModalState{}
	p.editBooking = nil
}

// LoadRange fetches the slots in [start, end) and replaces the event set.
func (p *Presenter) LoadRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	if p.closed {
		return nil, fmt.Errorf("presenter is closed")
	}
	p.rangeStart, p.rangeEnd = start, end
	gen := p.generation

	slots, err := p.api.ListSlots(ctx, start, end)
	if p.closed || gen != p.generation {
		return nil, nil
	}
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to load calendar range")
		p.bus.Error("Could not load the calendar: " + restapi.Detail(err))
		return nil, err
	}

	p.events = EventsFromSlots(slots)
	return p.events, nil
}

// Refetch re-queries the currently visible range.
func (p *Presenter) Refetch(ctx context.Context) error {
	_, err := p.LoadRange(ctx, p.rangeStart, p.rangeEnd)
	return err
}

// EditBooking returns the booking loaded for the edit modal, nil when the
// edit surface degraded to view-only.
func (p *Presenter) EditBooking() *restapi.Booking {
	return p.editBooking
}

// HandleEventClick resolves a click on a calendar event through the access
// policy and performs the resulting modal transition. The returned decision
// tells the caller what surface to show (login prompt, booking form, edit
// form, or a view-only explanation).
func (p *Presenter) HandleEventClick(ctx context.Context, slotID int64) (policy.Decision, error) {
	var slot *restapi.Slot
	for i := range p.events {
		if p.events[i].SlotID == slotID {
			slot = &restapi.Slot{ID: slotID, Start: p.events[i].Start, IsBooked: p.events[i].Booked}
			break
		}
	}
	if slot == nil {
		return policy.Decision{Action: policy.ViewOnly}, fmt.Errorf("slot %d is not on the calendar", slotID)
	}

	sess := policy.Session{Authenticated: p.session.IsAuthenticated()}
	decision := policy.DecideSlotClick(sess, *slot)

	switch decision.Action {
	case policy.OfferBook:
		p.modal = ModalState{Kind: ModalBooking, SlotID: slotID}
		return decision, nil

	case policy.OfferEdit:
		// Optimistic: ownership resolves server-side. An empty result
		// means the booking is someone else's and the surface degrades
		// to view-only.
		gen := p.generation
		bookings, err := p.api.BookingsBySlot(ctx, slotID)
		if p.closed || gen != p.generation {
			return policy.Decision{Action: policy.ViewOnly}, nil
		}
		if err != nil {
			p.bus.Error("Could not load the booking: " + restapi.Detail(err))
			return policy.Decision{Action: policy.ViewOnly}, err
		}
		resolved := policy.DecideBookedSlot(sess, bookings)
		if resolved.Action == policy.OfferEdit {
			p.modal = ModalState{Kind: ModalEditBooking, SlotID: slotID}
			p.editBooking = &bookings[0]
		}
		return resolved, nil

	default:
		return decision, nil
	}
}

// HandleRangeSelect resolves a selection of an empty range. Doctors get the
// add-slot modal; everyone else gets silence - no error, so the role is not
// leaked by the response.
func (p *Presenter) HandleRangeSelect(ctx context.Context, start time.Time) policy.Decision {
	sess := policy.Session{Authenticated: p.session.IsAuthenticated()}
	if !sess.Authenticated {
		return policy.Decision{Action: policy.ViewOnly}
	}

	gen := p.generation
	sess.Doctor = p.session.IsDoctor(ctx)
	if p.closed || gen != p.generation {
		return policy.Decision{Action: policy.ViewOnly}
	}

	decision := policy.DecideRangeSelect(sess)
	if decision.Action == policy.OfferCreateSlot {
		p.modal = ModalState{Kind: ModalAddSlot, Date: start}
	}
	return decision
}

// SubmitBooking books the slot held by the open booking modal. On success
// the modal closes, a notification fires, and the range refetches.
func (p *Presenter) SubmitBooking(ctx context.Context, reason string) error {
	if p.modal.Kind != ModalBooking {
		return fmt.Errorf("no booking form is open")
	}
	trimmed := strings.TrimSpace(reason)
	if err := p.validate.Var(trimmed, fmt.Sprintf("required,min=%d", minReasonLength)); err != nil {
		return &restapi.ValidationError{
			Field:  "reason",
			Detail: fmt.Sprintf("reason must be at least %d characters", minReasonLength),
		}
	}

	gen := p.generation
	if _, err := p.api.CreateBooking(ctx, p.modal.SlotID, trimmed); err != nil {
		p.bus.Error("Could not create the booking: " + restapi.Detail(err))
		return err
	}
	if p.closed || gen != p.generation {
		return nil
	}

	p.bus.Success("Booking created")
	p.CloseModal()
	return p.Refetch(ctx)
}

// SubmitEditReason persists a new reason for the booking in the edit modal.
func (p *Presenter) SubmitEditReason(ctx context.Context, reason string) error {
	if p.modal.Kind != ModalEditBooking || p.editBooking == nil {
		return fmt.Errorf("no edit form is open")
	}
	trimmed := strings.TrimSpace(reason)
	if err := p.validate.Var(trimmed, fmt.Sprintf("required,min=%d", minReasonLength)); err != nil {
		return &restapi.ValidationError{
			Field:  "reason",
			Detail: fmt.Sprintf("reason must be at least %d characters", minReasonLength),
		}
	}

	gen := p.generation
	if _, err := p.api.UpdateBookingReason(ctx, p.editBooking.ID, trimmed); err != nil {
		p.bus.Error("Could not update the booking: " + restapi.Detail(err))
		return err
	}
	if p.closed || gen != p.generation {
		return nil
	}

	p.bus.Success("Booking updated")
	p.CloseModal()
	return p.Refetch(ctx)
}

// CancelEditBooking cancels the booking in the edit modal. A booking that is
// already cancelled never reaches the gateway, and a server-side "already
// cancelled" rejection is absorbed as success to soak up double-click races.
func (p *Presenter) CancelEditBooking(ctx context.Context) error {
	if p.modal.Kind != ModalEditBooking || p.editBooking == nil {
		return fmt.Errorf("no edit form is open")
	}
	if p.editBooking.Cancelled() {
		p.CloseModal()
		return nil
	}

	gen := p.generation
	if _, err := p.api.CancelBooking(ctx, p.editBooking.ID); err != nil {
		// The slot query returns only confirmed bookings, so if ours is
		// gone from it the cancellation already happened.
		if bookings, lookupErr := p.api.BookingsBySlot(ctx, p.editBooking.Slot); lookupErr == nil {
			stillConfirmed := false
			for i := range bookings {
				if bookings[i].ID == p.editBooking.ID && !bookings[i].Cancelled() {
					stillConfirmed = true
					break
				}
			}
			if !stillConfirmed {
				p.CloseModal()
				return p.Refetch(ctx)
			}
		}
		p.bus.Error("Could not cancel the booking: " + restapi.Detail(err))
		return err
	}
	if p.closed || gen != p.generation {
		return nil
	}

	p.bus.Success("Booking cancelled")
	p.CloseModal()
	return p.Refetch(ctx)
}

// SubmitAddSlot creates an availability slot at the date held by the open
// add-slot modal.
func (p *Presenter) SubmitAddSlot(ctx context.Context) error {
	if p.modal.Kind != ModalAddSlot {
		return fmt.Errorf("no add-slot form is open")
	}

	gen := p.generation
	if _, err := p.api.CreateSlot(ctx, p.modal.Date); err != nil {
		p.bus.Error("Could not create the slot: " + restapi.Detail(err))
		return err
	}
	if p.closed || gen != p.generation {
		return nil
	}

	p.bus.Success("Slot created")
	p.CloseModal()
	return p.Refetch(ctx)
}
