package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Offer is an incoming tow job. It is never mutated after creation.
type Offer struct {
	ID             string          `json:"id"`
	CustomerName   string          `json:"customer_name"`
	CustomerRating float64         `json:"customer_rating"`
	CustomerPhone  string          `json:"customer_phone,omitempty"`
	Pickup         Coord           `json:"pickup"`
	Dropoff        Coord           `json:"dropoff"`
	PickupAddress  string          `json:"pickup_address"`
	DropoffAddress string          `json:"dropoff_address"`
	Problem        string          `json:"problem"`
	VehicleType    string          `json:"vehicle_type,omitempty"`
	BasePrice      decimal.Decimal `json:"base_price"`
	CreatedAt      time.Time       `json:"created_at"`
}

// PriceRange is the inclusive span of counter-offers the customer will take.
type PriceRange struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

type NegotiationOutcome string

const (
	OutcomePending  NegotiationOutcome = "pending"
	OutcomeAccepted NegotiationOutcome = "accepted"
	OutcomeRejected NegotiationOutcome = "rejected"
)

type NegotiationAttempt struct {
	ID             string             `json:"id"`
	OfferID        string             `json:"offer_id"`
	RawInput       string             `json:"raw_input"`
	ProposedPrice  decimal.Decimal    `json:"proposed_price"`
	Parsed         bool               `json:"parsed"` // false when the input fell back to the base price
	Outcome        NegotiationOutcome `json:"outcome"`
	FinalPrice     decimal.Decimal    `json:"final_price"`
	StartedAt      time.Time          `json:"started_at"`
	ResponseWindow time.Duration      `json:"response_window"`
}

type TripStatus string

const (
	TripActive    TripStatus = "active"
	TripCompleted TripStatus = "completed"
	TripCancelled TripStatus = "cancelled" // history only; the active slot is simply cleared
)

type ActiveTrip struct {
	ID             string          `json:"id"`
	OfferID        string          `json:"offer_id"`
	Pickup         Coord           `json:"pickup"`
	Dropoff        Coord           `json:"dropoff"`
	PickupAddress  string          `json:"pickup_address"`
	DropoffAddress string          `json:"dropoff_address"`
	FinalPrice     decimal.Decimal `json:"final_price"`
	Negotiated     bool            `json:"negotiated"`
	Status         TripStatus      `json:"status"`
	AcceptedAt     time.Time       `json:"accepted_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// Trip is the persisted history row for a trip.
type Trip struct {
	ActiveTrip
	UpdatedAt time.Time `json:"updated_at"`
}

type Earnings struct {
	Daily   decimal.Decimal `json:"daily"`
	Weekly  decimal.Decimal `json:"weekly"`
	Monthly decimal.Decimal `json:"monthly"`
}

func (e Earnings) Add(amount decimal.Decimal) Earnings {
	return Earnings{Daily: e.Daily.Add(amount), Weekly: e.Weekly.Add(amount), Monthly: e.Monthly.Add(amount)}
}

func (e Earnings) Sub(amount decimal.Decimal) Earnings {
	return Earnings{Daily: e.Daily.Sub(amount), Weekly: e.Weekly.Sub(amount), Monthly: e.Monthly.Sub(amount)}
}

type Availability string

const (
	Available Availability = "available"
	Busy      Availability = "busy"
)

// LocationUpdate is the telemetry payload published for every driver fix.
type LocationUpdate struct {
	DriverID  string  `json:"driver_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"` // unix millis
}

type OfferEventKind string

const (
	EventState     OfferEventKind = "state"
	EventCountdown OfferEventKind = "countdown"
	EventTrip      OfferEventKind = "trip"
)

// OfferEvent is what the controller reports to the UI layer.
type OfferEvent struct {
	ID               string              `json:"id"`
	Kind             OfferEventKind      `json:"kind"`
	OfferID          string              `json:"offer_id"`
	State            string              `json:"state"`
	Reason           string              `json:"reason,omitempty"`
	RemainingSeconds int                 `json:"remaining_seconds"`
	Price            *decimal.Decimal    `json:"price,omitempty"`
	PriceRange       *PriceRange         `json:"price_range,omitempty"`
	Attempt          *NegotiationAttempt `json:"attempt,omitempty"`
	Trip             *ActiveTrip         `json:"trip,omitempty"`
	PickupDistanceM  float64             `json:"pickup_distance_m,omitempty"`
	PickupETASeconds float64             `json:"pickup_eta_seconds,omitempty"`
	At               time.Time           `json:"at"`
}
