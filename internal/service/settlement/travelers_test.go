package settlement

import (
	"encoding/json"
	"testing"

	"github.com/Domenick1991/airsettle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformTravelers(t *testing.T) {
	travelers := []domain.Traveler{
		{
			FirstName:       "A",
			LastName:        "B",
			DateOfBirth:     domain.NewFlexDate("1990-01-01"),
			Gender:          "female",
			Email:           "a@example.com",
			PhoneCode:       "+966",
			PhoneNumber:     "501234567",
			PassportNumber:  "P123",
			PassportExpiry:  domain.NewFlexDateParts(1, 2, 2030),
			Nationality:     "SA",
			IssuanceCountry: "SA",
		},
		{FirstName: "C", LastName: "D"},
	}

	out := TransformTravelers(travelers)
	require.Len(t, out, 2)

	first := out[0]
	assert.Equal(t, "1", first.ID)
	assert.Equal(t, "1990-01-01", first.DateOfBirth)
	assert.Equal(t, domain.TravelerName{FirstName: "A", LastName: "B"}, first.Name)
	assert.Equal(t, "FEMALE", first.Gender)
	assert.Equal(t, "a@example.com", first.Contact.EmailAddress)
	assert.Equal(t, []domain.Phone{{DeviceType: "MOBILE", CountryCallingCode: "966", Number: "501234567"}}, first.Contact.Phones)
	assert.Equal(t, []domain.TravelDocument{{
		DocumentType:    "PASSPORT",
		Number:          "P123",
		ExpiryDate:      "2030-02-01",
		IssuanceCountry: "SA",
		Nationality:     "SA",
		Holder:          true,
	}}, first.Documents)

	second := out[1]
	assert.Equal(t, "2", second.ID)
	assert.Equal(t, "", second.DateOfBirth)
	assert.Equal(t, domain.DefaultGender, second.Gender)
	assert.Equal(t, domain.DefaultPhoneCountryCode, second.Contact.Phones[0].CountryCallingCode)
	assert.Equal(t, "", second.Documents[0].ExpiryDate)
}

func TestTransformTravelers_Empty(t *testing.T) {
	assert.Empty(t, TransformTravelers(nil))
}

func TestBuildPayload(t *testing.T) {
	staged := &domain.StagedBooking{
		InvoiceID:   "INV1",
		FlightOffer: json.RawMessage(`{"id":"1"}`),
		Travelers:   []domain.Traveler{{FirstName: "A"}},
	}

	payload := BuildPayload(staged)
	assert.JSONEq(t, `{"id":"1"}`, string(payload.FlightOffer))
	assert.JSONEq(t, `{}`, string(payload.TicketingAgreement))
	assert.Len(t, payload.Travelers, 1)

	staged.TicketingAgreement = json.RawMessage(`{"option":"CONFIRM"}`)
	payload = BuildPayload(staged)
	assert.JSONEq(t, `{"option":"CONFIRM"}`, string(payload.TicketingAgreement))
}
