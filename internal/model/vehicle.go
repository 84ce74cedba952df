package model

import "time"

// VehicleType is the body class of a vehicle.
type VehicleType string

const (
	VehicleTypeSedan      VehicleType = "sedan"
	VehicleTypeSUV        VehicleType = "suv"
	VehicleTypeHatchback  VehicleType = "hatchback"
	VehicleTypeLuxury     VehicleType = "luxury"
	VehicleTypeVan        VehicleType = "van"
	VehicleTypeMotorcycle VehicleType = "motorcycle"
	VehicleTypeTruck      VehicleType = "truck"
)

// Valid reports whether t is a known vehicle type.
func (t VehicleType) Valid() bool {
	switch t {
	case VehicleTypeSedan, VehicleTypeSUV, VehicleTypeHatchback, VehicleTypeLuxury,
		VehicleTypeVan, VehicleTypeMotorcycle, VehicleTypeTruck:
		return true
	}
	return false
}

// VerificationStatus is the document review state of a vehicle.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
	VerificationExpired  VerificationStatus = "expired"
)

// Valid reports whether s is a known verification status.
func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationPending, VerificationApproved, VerificationRejected, VerificationExpired:
		return true
	}
	return false
}

// Vehicle mirrors the `vehicles` table. Each vehicle is owned by exactly
// one driver account.
type Vehicle struct {
	ID                 string             `json:"id"`
	DriverID           string             `json:"driverId"`
	Make               string             `json:"make"`
	Model              string             `json:"model"`
	Year               int                `json:"year"`
	Color              *string            `json:"color"`
	PlateNumber        string             `json:"plateNumber"`
	VehicleType        VehicleType        `json:"vehicleType"`
	SeatingCapacity    int                `json:"seatingCapacity"`
	IsActive           bool               `json:"isActive"`
	IsVerified         bool               `json:"isVerified"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	VerifiedAt         *time.Time         `json:"verifiedAt"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// Eligible reports whether the vehicle may be assigned to a ride.
func (v Vehicle) Eligible() bool {
	return v.IsActive && v.IsVerified && v.VerificationStatus == VerificationApproved
}

// VehicleSummary is the view of a vehicle attached to a driver's active ride.
type VehicleSummary struct {
	ID          string `json:"id"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	PlateNumber string `json:"plateNumber"`
}

// Summary returns the short view of v.
func (v Vehicle) Summary() VehicleSummary {
	return VehicleSummary{ID: v.ID, Make: v.Make, Model: v.Model, PlateNumber: v.PlateNumber}
}

// NewVehicle carries the columns a driver supplies on registration.
type NewVehicle struct {
	DriverID        string
	Make            string
	Model           string
	Year            int
	Color           *string
	PlateNumber     string
	VehicleType     VehicleType
	SeatingCapacity int
}

// VehiclePatch is the explicit driver-side update contract. Verification
// columns change only through SetVerification.
type VehiclePatch struct {
	Make            *string
	Model           *string
	Year            *int
	Color           *string
	PlateNumber     *string
	VehicleType     *VehicleType
	SeatingCapacity *int
	IsActive        *bool
}

// Empty reports whether the patch writes nothing.
func (p VehiclePatch) Empty() bool { return p == (VehiclePatch{}) }
