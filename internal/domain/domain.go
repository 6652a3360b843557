package domain

import "time"

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
	RoleBusiness = "business"
)

type Location struct {
	Lat float64
	Lng float64
}

// Tariff is the linear delivery tariff. Fees are plain currency units.
type Tariff struct {
	BaseFee float64
	PerKm   float64
	MinFee  float64
	MaxFee  float64
}

// DefaultTariff applies whenever the configured tariff cannot be fetched.
var DefaultTariff = Tariff{BaseFee: 15, PerKm: 8, MinFee: 15, MaxFee: 40}

type TariffRecord struct {
	Tariff    Tariff
	UpdatedBy string
	UpdatedAt time.Time
}

type DecisionStatus string

const (
	DecisionConfirmed     DecisionStatus = "CONFIRMED"
	DecisionAutoConfirmed DecisionStatus = "AUTO_CONFIRMED"
	DecisionRegretted     DecisionStatus = "REGRETTED"
	DecisionFailed        DecisionStatus = "FAILED"
)

// Decision is the outcome of an order's regret window.
type Decision struct {
	ID        string
	OrderID   string
	Status    DecisionStatus
	Reason    *string
	StartedAt time.Time
	DecidedAt time.Time
}
