package domain

import "fmt"

const airlineLogoURLFormat = "https://assets.wego.com/image/upload/h_240,c_fill,f_auto,fl_lossy,q_auto:best,g_auto/v20240602/flights/airlines_square/%s.png"

type LocalizedText struct {
	En string `json:"en"`
	Ar string `json:"ar"`
}

type Airline struct {
	ID    int64         `json:"id"`
	Code  string        `json:"code"`
	Name  LocalizedText `json:"name"`
	Image string        `json:"image"`
}

type Airport struct {
	ID      int64         `json:"id"`
	Code    string        `json:"code"`
	Name    LocalizedText `json:"name"`
	City    LocalizedText `json:"city"`
	Country LocalizedText `json:"country"`
}

func AirlineLogoURL(code string) string {
	return fmt.Sprintf(airlineLogoURLFormat, code)
}
