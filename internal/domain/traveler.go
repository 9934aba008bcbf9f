package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultGender           = "MALE"
	DefaultPhoneCountryCode = "20"
)

// Traveler is a passenger as entered at checkout.
type Traveler struct {
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	DateOfBirth     *FlexDate `json:"dateOfBirth,omitempty"`
	Gender          string    `json:"gender,omitempty"`
	Email           string    `json:"email,omitempty"`
	PhoneCode       string    `json:"phoneCode,omitempty"`
	PhoneNumber     string    `json:"phoneNumber,omitempty"`
	PassportNumber  string    `json:"passportNumber,omitempty"`
	PassportExpiry  *FlexDate `json:"passportExpiry,omitempty"`
	Nationality     string    `json:"nationality,omitempty"`
	IssuanceCountry string    `json:"issuanceCountry,omitempty"`
}

// InventoryTraveler is the traveler shape the inventory service expects.
type InventoryTraveler struct {
	ID          string           `json:"id"`
	DateOfBirth string           `json:"dateOfBirth,omitempty"`
	Name        TravelerName     `json:"name"`
	Gender      string           `json:"gender"`
	Contact     TravelerContact  `json:"contact"`
	Documents   []TravelDocument `json:"documents"`
}

type TravelerName struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type TravelerContact struct {
	EmailAddress string  `json:"emailAddress,omitempty"`
	Phones       []Phone `json:"phones"`
}

type Phone struct {
	DeviceType         string `json:"deviceType"`
	CountryCallingCode string `json:"countryCallingCode"`
	Number             string `json:"number,omitempty"`
}

type TravelDocument struct {
	DocumentType    string `json:"documentType"`
	Number          string `json:"number,omitempty"`
	ExpiryDate      string `json:"expiryDate,omitempty"`
	IssuanceCountry string `json:"issuanceCountry,omitempty"`
	Nationality     string `json:"nationality,omitempty"`
	Holder          bool   `json:"holder"`
}

// FlexDate is a calendar date sent either as a string or as
// {"day":..,"month":..,"year":..}. Raw input is kept so an unparsable value
// survives a round trip through the staging store.
type FlexDate struct {
	raw json.RawMessage
}

func (d *FlexDate) UnmarshalJSON(data []byte) error {
	d.raw = append(d.raw[:0], data...)
	return nil
}

func (d FlexDate) MarshalJSON() ([]byte, error) {
	if len(d.raw) == 0 {
		return []byte("null"), nil
	}
	return d.raw, nil
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000Z",
	"2006/01/02",
}

// ISO returns the date as YYYY-MM-DD, or "" when it cannot be parsed.
func (d *FlexDate) ISO() string {
	if d == nil {
		return ""
	}
	raw := bytes.TrimSpace(d.raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		s = strings.TrimSpace(s)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC().Format("2006-01-02")
			}
		}
		return ""
	}

	var parts struct {
		Day   json.RawMessage `json:"day"`
		Month json.RawMessage `json:"month"`
		Year  json.RawMessage `json:"year"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	day, okDay := intPart(parts.Day)
	month, okMonth := intPart(parts.Month)
	year, okYear := intPart(parts.Year)
	if !okDay || !okMonth || !okYear {
		return ""
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range values; reject them instead.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return ""
	}
	return t.Format("2006-01-02")
}

func NewFlexDate(s string) *FlexDate {
	raw, _ := json.Marshal(s)
	return &FlexDate{raw: raw}
}

func NewFlexDateParts(day, month, year int) *FlexDate {
	raw := []byte(fmt.Sprintf(`{"day":%d,"month":%d,"year":%d}`, day, month, year))
	return &FlexDate{raw: raw}
}

func intPart(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var s FlexString
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s.String()))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
