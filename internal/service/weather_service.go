package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skycast/weather/internal/domain"
	"github.com/skycast/weather/pkg/utils"
)

// DefaultWeatherURL is the Visual Crossing forecast endpoint
const DefaultWeatherURL = "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/weatherdata/forecast"

// ErrEmptyPlace is returned for a lookup with nothing to look up
var ErrEmptyPlace = errors.New("weather: empty place")

// errUpstream marks provider failures that the mock fallback covers
var errUpstream = errors.New("weather: upstream unavailable")

// WeatherService handles forecast fetching
type WeatherService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewWeatherService creates a new weather service. An empty baseURL uses
// DefaultWeatherURL.
func NewWeatherService(apiKey, baseURL string) *WeatherService {
	if baseURL == "" {
		baseURL = DefaultWeatherURL
	}
	return &WeatherService{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// IsMock reports whether the service runs without an API key
func (s *WeatherService) IsMock() bool {
	return s.apiKey == ""
}

// visualCrossingResponse is the aggregated forecast payload
type visualCrossingResponse struct {
	Locations map[string]struct {
		Address           string `json:"address"`
		CurrentConditions struct {
			Temp       float64  `json:"temp"`
			Wspd       float64  `json:"wspd"`
			Humidity   float64  `json:"humidity"`
			HeatIndex  *float64 `json:"heatindex"`
			Conditions string   `json:"conditions"`
			Datetime   string   `json:"datetime"`
		} `json:"currentConditions"`
		Values []struct {
			Datetime    int64   `json:"datetime"`
			DatetimeStr string  `json:"datetimeStr"`
			Temp        float64 `json:"temp"`
			Conditions  string  `json:"conditions"`
		} `json:"values"`
	} `json:"locations"`
}

// GetReport fetches the forecast for place, falling back to mock data when
// there is no API key or the provider cannot be reached.
func (s *WeatherService) GetReport(ctx context.Context, place string) (domain.Report, error) {
	report, err := s.Fetch(ctx, place)
	if errors.Is(err, errUpstream) {
		return s.Mock(place), nil
	}
	return report, err
}

// Fetch queries the provider without the mock fallback. Unreachable or
// keyless providers return an error.
func (s *WeatherService) Fetch(ctx context.Context, place string) (domain.Report, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return domain.Report{}, ErrEmptyPlace
	}
	if s.apiKey == "" {
		return domain.Report{}, fmt.Errorf("%w: no api key", errUpstream)
	}

	q := url.Values{}
	q.Set("aggregateHours", "24")
	q.Set("location", place)
	q.Set("contentType", "json")
	q.Set("unitGroup", "metric")
	q.Set("shortColumnNames", "0")
	q.Set("key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return domain.Report{}, fmt.Errorf("weather: failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.Report{}, fmt.Errorf("%w: %v", errUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Report{}, fmt.Errorf("%w: status %d", errUpstream, resp.StatusCode)
	}

	var vcResp visualCrossingResponse
	if err := json.NewDecoder(resp.Body).Decode(&vcResp); err != nil {
		return domain.Report{}, fmt.Errorf("weather: failed to decode response: %w", err)
	}

	for _, loc := range vcResp.Locations {
		cur := loc.CurrentConditions
		report := domain.Report{
			Place:   place,
			Address: loc.Address,
			Current: domain.Conditions{
				Temperature: cur.Temp,
				WindSpeed:   cur.Wspd,
				Humidity:    utils.Clamp(cur.Humidity, 0, 100),
				HeatIndex:   cur.Temp,
				Conditions:  cur.Conditions,
				Datetime:    cur.Datetime,
			},
			Forecast:  make([]domain.Period, 0, len(loc.Values)),
			Timestamp: time.Now(),
		}
		if cur.HeatIndex != nil {
			report.Current.HeatIndex = *cur.HeatIndex
		}
		for _, v := range loc.Values {
			when := v.DatetimeStr
			if when == "" && v.Datetime > 0 {
				when = time.UnixMilli(v.Datetime).UTC().Format(time.RFC3339)
			}
			report.Forecast = append(report.Forecast, domain.Period{
				Datetime:    when,
				Temperature: v.Temp,
				Conditions:  v.Conditions,
			})
		}
		return report, nil
	}

	return domain.Report{}, fmt.Errorf("weather: no location in response for %q", place)
}

// Mock returns a simulated report for place
func (s *WeatherService) Mock(place string) domain.Report {
	place = strings.TrimSpace(place)
	now := time.Now()

	var temp float64
	var conditions string
	switch month := now.Month(); {
	case month >= 12 || month <= 2:
		temp, conditions = -2.0, "Snow"
	case month >= 3 && month <= 5:
		temp, conditions = 13.0, "Partially cloudy"
	case month >= 6 && month <= 8:
		temp, conditions = 27.0, "Clear"
	default:
		temp, conditions = 9.0, "Overcast"
	}

	forecast := make([]domain.Period, 0, 8)
	for day := 0; day < 8; day++ {
		// small deterministic swing so the strip is not flat
		swing := float64(day%3) - 1
		forecast = append(forecast, domain.Period{
			Datetime:    now.AddDate(0, 0, day).Format("2006-01-02") + "T00:00:00",
			Temperature: utils.RoundTo(temp+swing*1.5, 1),
			Conditions:  conditions,
		})
	}

	return domain.Report{
		Place:   place,
		Address: place,
		Current: domain.Conditions{
			Temperature: temp,
			WindSpeed:   12.5,
			Humidity:    65,
			HeatIndex:   temp,
			Conditions:  conditions,
			Datetime:    now.Format(time.RFC3339),
		},
		Forecast:  forecast,
		Timestamp: now,
		IsMock:    true,
	}
}
