package domain

import "encoding/json"

// Order is the confirmed reservation returned by the inventory service.
// Only the fields the settlement flow reads are typed; the rest is kept
// verbatim so the stored record matches what the inventory service sent.
type Order struct {
	Data         OrderBody       `json:"data"`
	Dictionaries json.RawMessage `json:"dictionaries,omitempty"`
}

type OrderBody struct {
	Type               string             `json:"type,omitempty"`
	ID                 string             `json:"id,omitempty"`
	QueuingOfficeID    string             `json:"queuingOfficeId,omitempty"`
	AssociatedRecords  []AssociatedRecord `json:"associatedRecords,omitempty"`
	FlightOffers       []FlightOffer      `json:"flightOffers"`
	Travelers          json.RawMessage    `json:"travelers,omitempty"`
	TicketingAgreement json.RawMessage    `json:"ticketingAgreement,omitempty"`
	Contacts           json.RawMessage    `json:"contacts,omitempty"`
}

type AssociatedRecord struct {
	Reference        string `json:"reference"`
	CreationDate     string `json:"creationDate,omitempty"`
	OriginSystemCode string `json:"originSystemCode,omitempty"`
	FlightOfferID    string `json:"flightOfferId,omitempty"`
}

type FlightOffer struct {
	ID                     string          `json:"id,omitempty"`
	Source                 string          `json:"source,omitempty"`
	Itineraries            []Itinerary     `json:"itineraries"`
	Price                  json.RawMessage `json:"price,omitempty"`
	ValidatingAirlineCodes []string        `json:"validatingAirlineCodes,omitempty"`
	TravelerPricings       json.RawMessage `json:"travelerPricings,omitempty"`
}

type Itinerary struct {
	Duration string    `json:"duration,omitempty"`
	Segments []Segment `json:"segments"`
}

type Segment struct {
	ID            string          `json:"id,omitempty"`
	CarrierCode   string          `json:"carrierCode"`
	Number        string          `json:"number,omitempty"`
	Departure     FlightEndpoint  `json:"departure"`
	Arrival       FlightEndpoint  `json:"arrival"`
	Duration      string          `json:"duration,omitempty"`
	NumberOfStops int             `json:"numberOfStops,omitempty"`
	Aircraft      json.RawMessage `json:"aircraft,omitempty"`
	Operating     json.RawMessage `json:"operating,omitempty"`
}

type FlightEndpoint struct {
	IataCode string `json:"iataCode"`
	Terminal string `json:"terminal,omitempty"`
	At       string `json:"at,omitempty"`
}

// ReferenceCodes returns the distinct carrier and airport codes used by
// every segment of the order, in first-seen order.
func (o *Order) ReferenceCodes() (carriers, airports []string) {
	seenCarrier := make(map[string]struct{})
	seenAirport := make(map[string]struct{})
	add := func(seen map[string]struct{}, list *[]string, code string) {
		if code == "" {
			return
		}
		if _, ok := seen[code]; ok {
			return
		}
		seen[code] = struct{}{}
		*list = append(*list, code)
	}

	for _, offer := range o.Data.FlightOffers {
		for _, itinerary := range offer.Itineraries {
			for _, segment := range itinerary.Segments {
				add(seenCarrier, &carriers, segment.CarrierCode)
				add(seenAirport, &airports, segment.Departure.IataCode)
				add(seenAirport, &airports, segment.Arrival.IataCode)
			}
		}
	}
	return carriers, airports
}

// OrderData is the confirmed order as stored: the inventory order plus
// display records for the codes it references.
type OrderData struct {
	Order
	Airlines map[string]Airline `json:"airlines"`
	Airports map[string]Airport `json:"airports"`
}
