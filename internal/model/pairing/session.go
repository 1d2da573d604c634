package pairing

import (
	"time"

	"github.com/yachaflex/pairing/internal/model/biometric"
)

// Session is one relay-side pairing attempt, created when the web app asks for
// a QR code and completed when the forwarder delivers its payload.
type Session struct {
	ID        string    `json:"id"`
	TokenID   string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Result    *Result   `json:"result,omitempty"`
}

// Expired reports whether the session can no longer accept a delivery.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Result is the payload the forwarder delivered for a session.
type Result struct {
	Payload    biometric.Payload `json:"payload"`
	ReceivedAt time.Time         `json:"receivedAt"`
}

// Status is what the waiting web session polls or receives over the push channel.
type Status struct {
	SessionID  string     `json:"sessionId"`
	Received   bool       `json:"received"`
	HeartRate  *float64   `json:"heart_rate,omitempty"`
	HRV        *float64   `json:"hrv,omitempty"`
	Activity   *float64   `json:"activity,omitempty"`
	ReceivedAt *time.Time `json:"receivedAt,omitempty"`
}

// StatusOf projects a session into its pollable status.
func StatusOf(s Session) Status {
	st := Status{SessionID: s.ID}
	if s.Result == nil {
		return st
	}
	received := s.Result.ReceivedAt
	st.Received = true
	st.HeartRate = s.Result.Payload.HeartRate
	st.HRV = s.Result.Payload.HRV
	st.Activity = s.Result.Payload.Activity
	st.ReceivedAt = &received
	return st
}

// Ticket is handed to the web client so it can render the QR code and wait for
// the forwarder.
type Ticket struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Endpoint  string    `json:"endpoint"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expiresAt"`
}
