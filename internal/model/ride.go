package model

import (
	"math"
	"time"
)

// RideStatus is a state of the ride lifecycle.
type RideStatus string

const (
	RideStatusPending        RideStatus = "pending"
	RideStatusSearching      RideStatus = "searching"
	RideStatusAccepted       RideStatus = "accepted"
	RideStatusDriverArriving RideStatus = "driver_arriving"
	RideStatusInProgress     RideStatus = "in_progress"
	RideStatusCompleted      RideStatus = "completed"
	RideStatusCancelled      RideStatus = "cancelled"
	RideStatusRejected       RideStatus = "rejected"
	RideStatusExpired        RideStatus = "expired"
)

// RiderActiveStatuses are the statuses in which a ride still belongs to its
// rider's single open slot.
var RiderActiveStatuses = []RideStatus{
	RideStatusPending,
	RideStatusSearching,
	RideStatusAccepted,
	RideStatusDriverArriving,
	RideStatusInProgress,
}

// DriverActiveStatuses are the statuses in which a ride occupies its
// driver's single open slot.
var DriverActiveStatuses = []RideStatus{
	RideStatusAccepted,
	RideStatusDriverArriving,
	RideStatusInProgress,
}

// AcceptableStatuses are the statuses from which a driver may take a ride.
var AcceptableStatuses = []RideStatus{RideStatusPending, RideStatusSearching}

// AllRideStatuses lists every known status in lifecycle order.
var AllRideStatuses = []RideStatus{
	RideStatusPending,
	RideStatusSearching,
	RideStatusAccepted,
	RideStatusDriverArriving,
	RideStatusInProgress,
	RideStatusCompleted,
	RideStatusCancelled,
	RideStatusRejected,
	RideStatusExpired,
}

// Valid reports whether s is a known status.
func (s RideStatus) Valid() bool { return statusIn(s, AllRideStatuses) }

// Terminal reports whether no further transition is permitted from s.
func (s RideStatus) Terminal() bool {
	switch s {
	case RideStatusCompleted, RideStatusCancelled, RideStatusRejected, RideStatusExpired:
		return true
	}
	return false
}

// RiderActive reports whether s counts against the rider's open slot.
func (s RideStatus) RiderActive() bool { return statusIn(s, RiderActiveStatuses) }

// DriverActive reports whether s counts against the driver's open slot.
func (s RideStatus) DriverActive() bool { return statusIn(s, DriverActiveStatuses) }

// Acceptable reports whether a driver may accept a ride in status s.
func (s RideStatus) Acceptable() bool { return statusIn(s, AcceptableStatuses) }

func statusIn(s RideStatus, set []RideStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// PaymentStatus tracks settlement of a ride's fare.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// PaymentMethod is how the rider intends to pay.
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodWallet PaymentMethod = "wallet"
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodPromo  PaymentMethod = "promo"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodWallet, PaymentMethodCash, PaymentMethodPromo:
		return true
	}
	return false
}

// RideType is the product the rider ordered.
type RideType string

const (
	RideTypeStandard  RideType = "standard"
	RideTypePremium   RideType = "premium"
	RideTypePool      RideType = "pool"
	RideTypeScheduled RideType = "scheduled"
)

// Valid reports whether t is a known ride type.
func (t RideType) Valid() bool {
	switch t {
	case RideTypeStandard, RideTypePremium, RideTypePool, RideTypeScheduled:
		return true
	}
	return false
}

// Location is a point on the map with an optional human readable address.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Valid reports whether the coordinates are within WGS84 bounds.
func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// Ride mirrors the `rides` table. It is the only entity whose status is
// driven by the lifecycle engine.
type Ride struct {
	ID        string     `json:"id"`
	RiderID   string     `json:"riderId"`
	DriverID  *string    `json:"driverId"`
	VehicleID *string    `json:"vehicleId"`
	Status    RideStatus `json:"status"`
	RideType  RideType   `json:"rideType"`

	PickupLocation  Location  `json:"pickupLocation"`
	DropoffLocation Location  `json:"dropoffLocation"`
	CurrentLocation *Location `json:"currentLocation"`

	EstimatedDistance *float64 `json:"estimatedDistance"` // km
	ActualDistance    *float64 `json:"actualDistance"`
	EstimatedDuration *int     `json:"estimatedDuration"` // minutes
	ActualDuration    *int     `json:"actualDuration"`

	BaseFare           float64 `json:"baseFare"`
	DistanceFare       float64 `json:"distanceFare"`
	TimeFare           float64 `json:"timeFare"`
	SurgeMultiplier    float64 `json:"surgeMultiplier"`
	PromoDiscount      float64 `json:"promoDiscount"`
	ServiceFee         float64 `json:"serviceFee"`
	TotalFare          float64 `json:"totalFare"`
	DriverEarnings     float64 `json:"driverEarnings"`
	PlatformCommission float64 `json:"platformCommission"`

	PaymentMethod *PaymentMethod `json:"paymentMethod"`
	PaymentStatus PaymentStatus  `json:"paymentStatus"`

	ScheduledPickupTime *time.Time `json:"scheduledPickupTime"`
	RequestedAt         time.Time  `json:"requestedAt"`
	AcceptedAt          *time.Time `json:"acceptedAt"`
	DriverArrivedAt     *time.Time `json:"driverArrivedAt"`
	StartedAt           *time.Time `json:"startedAt"`
	CompletedAt         *time.Time `json:"completedAt"`
	CancelledAt         *time.Time `json:"cancelledAt"`

	CancelledBy        *string `json:"cancelledBy"`
	CancellationReason *string `json:"cancellationReason"`

	SpecialInstructions *string `json:"specialInstructions"`
	PassengerCount      int     `json:"passengerCount"`
	LuggageCount        int     `json:"luggageCount"`

	RiderRating  *float64 `json:"riderRating"`
	DriverRating *float64 `json:"driverRating"`
	RiderReview  *string  `json:"riderReview"`
	DriverReview *string  `json:"driverReview"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsParticipant reports whether accountID is the rider or the assigned driver.
func (r Ride) IsParticipant(accountID string) bool {
	if accountID == "" {
		return false
	}
	return r.RiderID == accountID || r.IsDriver(accountID)
}

// IsDriver reports whether accountID is the assigned driver.
func (r Ride) IsDriver(accountID string) bool {
	return r.DriverID != nil && *r.DriverID == accountID && accountID != ""
}

// RidePatch is the explicit set of columns a transition may write. A nil
// field leaves the column untouched.
type RidePatch struct {
	Status             *RideStatus
	DriverID           *string
	VehicleID          *string
	CurrentLocation    *Location
	ActualDistance     *float64
	ActualDuration     *int
	DriverEarnings     *float64
	PlatformCommission *float64
	PaymentStatus      *PaymentStatus
	AcceptedAt         *time.Time
	DriverArrivedAt    *time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	CancelledBy        *string
	CancellationReason *string
}

// Empty reports whether the patch writes nothing.
func (p RidePatch) Empty() bool { return p == (RidePatch{}) }

// Ride event types recorded in the audit trail and published to listeners.
const (
	EventRideRequested      = "ride.requested"
	EventRideAccepted       = "ride.accepted"
	EventRideDriverArriving = "ride.driver_arriving"
	EventRideStarted        = "ride.started"
	EventRideCompleted      = "ride.completed"
	EventRideCancelled      = "ride.cancelled"
	EventRideStatusChanged  = "ride.status_changed"
)

// EventTypeFor names the event emitted when a ride enters status to.
func EventTypeFor(to RideStatus) string {
	switch to {
	case RideStatusPending:
		return EventRideRequested
	case RideStatusAccepted:
		return EventRideAccepted
	case RideStatusDriverArriving:
		return EventRideDriverArriving
	case RideStatusInProgress:
		return EventRideStarted
	case RideStatusCompleted:
		return EventRideCompleted
	case RideStatusCancelled:
		return EventRideCancelled
	}
	return EventRideStatusChanged
}

// RideEventRecord is one row of the `ride_events` audit trail.
type RideEventRecord struct {
	ID         string      `json:"id"`
	RideID     string      `json:"rideId"`
	EventType  string      `json:"eventType"`
	ActorID    string      `json:"actorId"`
	FromStatus *RideStatus `json:"fromStatus"`
	ToStatus   RideStatus  `json:"toStatus"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// RoundMoney rounds an amount to cents.
func RoundMoney(v float64) float64 { return math.Round(v*100) / 100 }

// SplitFare divides a total fare between the driver and the platform using
// the given commission rate. The two parts always add back to the total.
func SplitFare(total, commissionRate float64) (driverEarnings, platformCommission float64) {
	if commissionRate < 0 {
		commissionRate = 0
	}
	if commissionRate > 1 {
		commissionRate = 1
	}
	driverEarnings = RoundMoney(total * (1 - commissionRate))
	platformCommission = RoundMoney(total - driverEarnings)
	return driverEarnings, platformCommission
}

// RideRequest is a pending ride as shown to drivers browsing the market.
type RideRequest struct {
	Ride
	Rider *RiderSummary `json:"rider"`
}

// DriverRide is a driver's active ride with the rider and vehicle it involves.
type DriverRide struct {
	Ride
	Rider   *RiderSummary   `json:"rider"`
	Vehicle *VehicleSummary `json:"vehicle"`
}
