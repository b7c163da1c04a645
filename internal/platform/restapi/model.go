package restapi

import (
	"strings"
	"time"
)

// TokenPair is the response of the login and register endpoints.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// User is the authenticated user's profile as served by /auth/me/.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DisplayName returns "First Last", falling back to the username when both
// name parts are empty.
func (u *User) DisplayName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full == "" {
		return u.Username
	}
	return full
}

// RegisterRequest is the payload of /auth/register/. The validate tags mirror
// the server-side rules so obviously bad input never leaves the client.
type RegisterRequest struct {
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required,min=8"`
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
}

// Slot is an appointment slot as served by /appointments/. Slots are owned by
// the server; the client only ever creates them (doctor) or reads them.
type Slot struct {
	ID       int64     `json:"id"`
	Start    time.Time `json:"start"`
	Doctor   *string   `json:"doctor"`
	IsBooked bool      `json:"is_booked"`
}

// DoctorName returns the slot's doctor, or a generic placeholder when the
// server sent null.
func (s *Slot) DoctorName() string {
	if s.Doctor == nil || *s.Doctor == "" {
		return "Doctor"
	}
	return *s.Doctor
}

// BookingStatus is the lifecycle state of a booking. Cancelled is terminal.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

// Label returns a human-readable form of the status for display surfaces.
func (s BookingStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusConfirmed:
		return "Confirmed"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// SlotDetails is the denormalized slot snapshot embedded in a booking.
type SlotDetails struct {
	ID         int64     `json:"id"`
	Start      time.Time `json:"start"`
	DoctorName string    `json:"doctor_name"`
}

// UserDetails is the denormalized user snapshot embedded in a booking. It is
// omitted by the server on public (anonymous) slot queries.
type UserDetails struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// Booking is a reservation of a slot by a user.
type Booking struct {
	ID          int64         `json:"id"`
	Slot        int64         `json:"slot"`
	User        int64         `json:"user"`
	Reason      string        `json:"reason"`
	Status      BookingStatus `json:"status"`
	SlotDetails *SlotDetails  `json:"slot_details,omitempty"`
	UserDetails *UserDetails  `json:"user_details,omitempty"`
}

// Cancelled reports whether the booking is in its terminal state.
func (b *Booking) Cancelled() bool {
	return b.Status == StatusCancelled
}

// SlotStart returns the booked slot's start time, or the zero time when the
// server sent no slot snapshot.
func (b *Booking) SlotStart() time.Time {
	if b.SlotDetails == nil {
		return time.Time{}
	}
	return b.SlotDetails.Start
}

// BookerName returns the booking owner's display name, "First Last" falling
// back to username, or "-" when the snapshot is absent.
func (b *Booking) BookerName() string {
	if b.UserDetails == nil {
		return "-"
	}
	full := strings.TrimSpace(b.UserDetails.FirstName + " " + b.UserDetails.LastName)
	if full == "" {
		return b.UserDetails.Username
	}
	return full
}
