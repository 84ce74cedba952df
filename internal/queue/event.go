// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/iliyamo/ride-hailing/internal/model"
)

// RideEvent is emitted after a ride is created or changes status. It
// contains enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.
type RideEvent struct {
	Type       string           `json:"type"`
	RideID     string           `json:"ride_id"`
	RiderID    string           `json:"rider_id"`
	DriverID   string           `json:"driver_id,omitempty"`
	Status     model.RideStatus `json:"status"`
	ActorID    string           `json:"actor_id"`
	OccurredAt time.Time        `json:"occurred_at"`
	Ride       *model.Ride      `json:"ride,omitempty"`
}

// NewRideEvent builds the event describing ride after a change made by actorID.
func NewRideEvent(eventType string, ride model.Ride, actorID string, at time.Time) RideEvent {
	ev := RideEvent{
		Type:       eventType,
		RideID:     ride.ID,
		RiderID:    ride.RiderID,
		Status:     ride.Status,
		ActorID:    actorID,
		OccurredAt: at.UTC(),
		Ride:       &ride,
	}
	if ride.DriverID != nil {
		ev.DriverID = *ride.DriverID
	}
	return ev
}

// Recipients returns the account ids that should hear about the event.
func (e RideEvent) Recipients() []string {
	out := []string{e.RiderID}
	if e.DriverID != "" && e.DriverID != e.RiderID {
		out = append(out, e.DriverID)
	}
	return out
}
