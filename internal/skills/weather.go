package skills

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"jarvis/internal/intent"
)

const (
	NameWeather = "weather"

	OpenWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

	weatherKeyMissing = "Weather API key not configured. Please add OPENWEATHER_API_KEY to .env"
)

type WeatherSkill struct {
	apiKey          string
	defaultLocation string
	baseURL         string
	client          *http.Client
}

func NewWeatherSkill(apiKey, defaultLocation string, client *http.Client) *WeatherSkill {
	if defaultLocation == "" {
		defaultLocation = "London"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &WeatherSkill{apiKey: apiKey, defaultLocation: defaultLocation, baseURL: OpenWeatherURL, client: client}
}

// WithBaseURL points the skill at another OpenWeatherMap-compatible endpoint.
func (s *WeatherSkill) WithBaseURL(u string) *WeatherSkill {
	s.baseURL = u
	return s
}

func (s *WeatherSkill) Name() string     { return NameWeather }
func (s *WeatherSkill) Describe() string { return "Provides weather information" }

func (s *WeatherSkill) IsEligible(in intent.Result) bool { return in.Has(intent.Weather) }

var locationRe = regexp.MustCompile(`(?i)\b(?:in|at|for)\s+([a-z][a-z .'-]*?)\s*(?:\b(?:today|tomorrow|tonight|now|right now|this week)\b)?[?.!]*$`)

func (s *WeatherSkill) ParametersFrom(text string, _ intent.Result) Params {
	loc := s.defaultLocation
	if m := locationRe.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		switch l := strings.TrimSpace(m[1]); strings.ToLower(l) {
		case "", "today", "tomorrow", "tonight", "now", "this week":
		default:
			loc = l
		}
	}
	return Params{"location": loc}
}

type owmResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

type WeatherInfo struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feels_like"`
	Description string  `json:"description"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
}

func (s *WeatherSkill) Invoke(ctx context.Context, p Params) Result {
	if s.apiKey == "" {
		return fail(NameWeather, weatherKeyMissing)
	}
	location := p.Get("location", s.defaultLocation)

	var raw owmResponse
	status, err := getJSON(ctx, s.client, s.baseURL, url.Values{
		"q":     {location},
		"appid": {s.apiKey},
		"units": {"metric"},
	}, &raw)
	if status == http.StatusUnauthorized {
		return fail(NameWeather, weatherKeyMissing)
	}
	if err != nil {
		return fail(NameWeather, fmt.Sprintf("Failed to get weather: %v", err))
	}

	info := WeatherInfo{
		Location:    raw.Name,
		Temperature: raw.Main.Temp,
		FeelsLike:   raw.Main.FeelsLike,
		Humidity:    raw.Main.Humidity,
		WindSpeed:   raw.Wind.Speed,
	}
	if info.Location == "" {
		info.Location = location
	}
	if len(raw.Weather) > 0 {
		info.Description = raw.Weather[0].Description
	}
	msg := fmt.Sprintf("Weather in %s: %s°C, %s", info.Location, FormatNumber(info.Temperature), info.Description)
	return ok(NameWeather, info, msg)
}
