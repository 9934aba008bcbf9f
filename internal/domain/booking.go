package domain

import (
	"encoding/json"
	"time"
)

type BookingType string

const BookingTypeFlight BookingType = "FLIGHT"

// StagedBooking is what a customer is paying for, held until the gateway
// reports an authorization for InvoiceID.
type StagedBooking struct {
	InvoiceID          string          `json:"invoiceId"`
	InvoiceValue       float64         `json:"invoiceValue"`
	FlightOffer        json.RawMessage `json:"flightOffer"`
	Travelers          []Traveler      `json:"travelers"`
	TicketingAgreement json.RawMessage `json:"ticketingAgreement,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
}

// BookingPayload is the request sent to the inventory service.
type BookingPayload struct {
	FlightOffer        json.RawMessage     `json:"flightOffer"`
	Travelers          []InventoryTraveler `json:"travelers"`
	TicketingAgreement json.RawMessage     `json:"ticketingAgreement"`
}
