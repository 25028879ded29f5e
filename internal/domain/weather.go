package domain

import "time"

// Conditions is the current-conditions block of a report
type Conditions struct {
	Temperature float64 `json:"temperature"`
	WindSpeed   float64 `json:"wind_speed"`
	Humidity    float64 `json:"humidity"`
	HeatIndex   float64 `json:"heat_index"`
	Conditions  string  `json:"conditions"`
	Datetime    string  `json:"datetime"`
}

// Period is one entry of the forecast series
type Period struct {
	Datetime    string  `json:"datetime"`
	Temperature float64 `json:"temperature"`
	Conditions  string  `json:"conditions"`
}

// Report is everything the widget renders for one place
type Report struct {
	Place     string     `json:"place"`
	Address   string     `json:"address"`
	Current   Conditions `json:"current"`
	Forecast  []Period   `json:"forecast"`
	Timestamp time.Time  `json:"timestamp"`
	IsMock    bool       `json:"is_mock"`
	Stale     bool       `json:"stale,omitempty"`
}

// Strip bounds for the forecast cards. The provider's first period is the
// current day, which the main card already shows.
const (
	StripStart = 1
	StripEnd   = 7
)

// Strip returns the forecast window shown as mini cards
func (r Report) Strip() []Period {
	if len(r.Forecast) <= StripStart {
		return nil
	}
	end := StripEnd
	if end > len(r.Forecast) {
		end = len(r.Forecast)
	}
	return r.Forecast[StripStart:end]
}

// ReportResponse wraps a report with metadata
type ReportResponse struct {
	Data    Report `json:"data"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
