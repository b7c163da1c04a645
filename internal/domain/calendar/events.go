package calendar

import (
	"fmt"
	"time"

	"github.com/medibook/medibook/internal/platform/restapi"
)

// SlotDuration is the display length of every slot. The backend stores only
// the start; appointments are one hour by convention.
const SlotDuration = time.Hour

const (
	colorFree   = "#28a745"
	colorBooked = "#dc3545"
)

// Event is the calendar projection of a slot. Events are transient: they are
// regenerated from scratch on every fetch and never persisted.
type Event struct {
	ID     string
	Title  string
	Start  time.Time
	End    time.Time
	Color  string
	SlotID int64
	Booked bool
	Doctor string
}

// EventsFromSlots projects raw slots into displayable events.
func EventsFromSlots(slots []restapi.Slot) []Event {
	events := make([]Event, 0, len(slots))
	for _, slot := range slots {
		doctor := slot.DoctorName()
		title := fmt.Sprintf("Free - %s", doctor)
		color := colorFree
		if slot.IsBooked {
			title = fmt.Sprintf("Booked - %s", doctor)
			color = colorBooked
		}
		events = append(events, Event{
			ID:     fmt.Sprintf("%d", slot.ID),
			Title:  title,
			Start:  slot.Start,
			End:    slot.Start.Add(SlotDuration),
			Color:  color,
			SlotID: slot.ID,
			Booked: slot.IsBooked,
			Doctor: doctor,
		})
	}
	return events
}
