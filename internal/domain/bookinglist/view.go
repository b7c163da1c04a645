package bookinglist

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/medibook/medibook/internal/platform/notify"
	"github.com/medibook/medibook/internal/platform/restapi"
)

// MinReasonLength is the shortest acceptable booking reason after trimming.
const MinReasonLength = 3

// Fetcher loads the backing collection: the user's own bookings, or all
// bookings for the administrator view.
type Fetcher func(ctx context.Context) ([]restapi.Booking, error)

// gateway is the slice of the REST client the view mutates through.
type gateway interface {
	UpdateBookingReason(ctx context.Context, id int64, reason string) (*restapi.Booking, error)
	CancelBooking(ctx context.Context, id int64) (*restapi.Booking, error)
}

type editState struct {
	bookingID int64
	draft     string
}

// View is the stateful bookings list: reconciled items, a page cursor, and at
// most one row in edit mode. It is a per-surface view model driven from the
// UI event loop, not a shared resource.
type View struct {
	api      gateway
	fetch    Fetcher
	bus      *notify.Bus
	logger   zerolog.Logger
	validate *validator.Validate

	items    []restapi.Booking
	page     int
	pageSize int
	editing  *editState
}

// NewView creates a view over the given fetcher.
func NewView(api gateway, fetch Fetcher, bus *notify.Bus, logger zerolog.Logger, pageSize int) *View {
	if pageSize < 1 {
		pageSize = 1
	}
	return &View{
		api:      api,
		fetch:    fetch,
		bus:      bus,
		logger:   logger,
		validate: validator.New(),
		page:     1,
		pageSize: pageSize,
	}
}

// Refresh re-fetches and re-reconciles the whole list. The page cursor is
// clamped in case the list shrank.
func (v *View) Refresh(ctx context.Context) error {
	bookings, err := v.fetch(ctx)
	if err != nil {
		v.logger.Error().Err(err).Msg("failed to load bookings")
		v.bus.Error("Could not load bookings: " + restapi.Detail(err))
		return err
	}
	v.items = Reconcile(bookings)
	if _, total := Paginate(v.items, v.page, v.pageSize); v.page > total {
		v.page = total
	}
	return nil
}

// Items returns the full reconciled list.
func (v *View) Items() []restapi.Booking {
	return v.items
}

// Page returns the current page's rows and the total page count.
func (v *View) Page() ([]restapi.Booking, int) {
	return Paginate(v.items, v.page, v.pageSize)
}

// CurrentPage returns the 1-based page cursor.
func (v *View) CurrentPage() int {
	return v.page
}

// SetPage moves the cursor. An out-of-range page is a no-op, not an error:
// the view stays where it was.
func (v *View) SetPage(page int) {
	_, total := Paginate(v.items, v.page, v.pageSize)
	if page < 1 || page > total {
		return
	}
	v.page = page
}

// find returns the booking with the given id from the current list.
func (v *View) find(id int64) (*restapi.Booking, bool) {
	for i := range v.items {
		if v.items[i].ID == id {
			return &v.items[i], true
		}
	}
	return nil, false
}

// BeginEdit puts one row into edit mode, seeding the draft with the current
// reason. Starting a new edit abandons any other row's unsaved draft.
func (v *View) BeginEdit(bookingID int64) error {
	b, ok := v.find(bookingID)
	if !ok {
		return fmt.Errorf("booking %d is not in the list", bookingID)
	}
	if b.Cancelled() {
		return fmt.Errorf("booking %d is cancelled and cannot be edited", bookingID)
	}
	v.editing = &editState{bookingID: bookingID, draft: b.Reason}
	return nil
}

// EditingID returns the row currently in edit mode, or (0, false).
func (v *View) EditingID() (int64, bool) {
	if v.editing == nil {
		return 0, false
	}
	return v.editing.bookingID, true
}

// SetDraft updates the unsaved draft text of the row in edit mode.
func (v *View) SetDraft(text string) {
	if v.editing != nil {
		v.editing.draft = text
	}
}

// CommitEdit validates and persists a new reason, then refreshes the full
// list so ordering reflects any server-side effects. Validation failures
// never reach the gateway.
func (v *View) CommitEdit(ctx context.Context, bookingID int64, newReason string) error {
	trimmed := strings.TrimSpace(newReason)
	if err := v.validate.Var(trimmed, fmt.Sprintf("required,min=%d", MinReasonLength)); err != nil {
		return &restapi.ValidationError{
			Field:  "reason",
			Detail: fmt.Sprintf("reason must be at least %d characters", MinReasonLength),
		}
	}

	if _, err := v.api.UpdateBookingReason(ctx, bookingID, trimmed); err != nil {
		v.bus.Error("Could not update the booking: " + restapi.Detail(err))
		return err
	}

	v.editing = nil
	v.bus.Success("Booking updated")
	return v.Refresh(ctx)
}

// Cancel transitions a booking to cancelled and refreshes. Cancelling an
// already-cancelled booking is absorbed as a no-op success so a double click
// racing the server never surfaces as an error.
func (v *View) Cancel(ctx context.Context, bookingID int64) error {
	if b, ok := v.find(bookingID); ok && b.Cancelled() {
		return nil
	}

	if _, err := v.api.CancelBooking(ctx, bookingID); err != nil {
		if refreshErr := v.Refresh(ctx); refreshErr == nil {
			if b, ok := v.find(bookingID); ok && b.Cancelled() {
				return nil
			}
		}
		v.bus.Error("Could not cancel the booking: " + restapi.Detail(err))
		return err
	}

	v.bus.Success("Booking cancelled")
	return v.Refresh(ctx)
}
