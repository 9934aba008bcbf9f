package settlement

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Domenick1991/airsettle/internal/domain"
)

var emptyObject = json.RawMessage(`{}`)

// TransformTravelers converts checkout travelers into the inventory
// service's traveler shape. Missing optional fields fall back to defaults.
func TransformTravelers(travelers []domain.Traveler) []domain.InventoryTraveler {
	out := make([]domain.InventoryTraveler, 0, len(travelers))
	for i, t := range travelers {
		gender := strings.ToUpper(strings.TrimSpace(t.Gender))
		if gender == "" {
			gender = domain.DefaultGender
		}
		callingCode := strings.Replace(strings.TrimSpace(t.PhoneCode), "+", "", 1)
		if callingCode == "" {
			callingCode = domain.DefaultPhoneCountryCode
		}

		out = append(out, domain.InventoryTraveler{
			ID:          strconv.Itoa(i + 1),
			DateOfBirth: t.DateOfBirth.ISO(),
			Name: domain.TravelerName{
				FirstName: t.FirstName,
				LastName:  t.LastName,
			},
			Gender: gender,
			Contact: domain.TravelerContact{
				EmailAddress: t.Email,
				Phones: []domain.Phone{{
					DeviceType:         "MOBILE",
					CountryCallingCode: callingCode,
					Number:             t.PhoneNumber,
				}},
			},
			Documents: []domain.TravelDocument{{
				DocumentType:    "PASSPORT",
				Number:          t.PassportNumber,
				ExpiryDate:      t.PassportExpiry.ISO(),
				IssuanceCountry: t.IssuanceCountry,
				Nationality:     t.Nationality,
				Holder:          true,
			}},
		})
	}
	return out
}

// BuildPayload is the inventory request for a staged booking.
func BuildPayload(staged *domain.StagedBooking) domain.BookingPayload {
	agreement := staged.TicketingAgreement
	if len(agreement) == 0 || string(agreement) == "null" {
		agreement = emptyObject
	}
	return domain.BookingPayload{
		FlightOffer:        staged.FlightOffer,
		Travelers:          TransformTravelers(staged.Travelers),
		TicketingAgreement: agreement,
	}
}
