package providers

import (
	"context"
	"fmt"
	"net/url"
)

// Forecast is the structured current-weather lookup result.
type Forecast struct {
	Location    string  `json:"location"`
	Description string  `json:"description"`
	TempC       float64 `json:"temp_c"`
	FeelsLikeC  float64 `json:"feels_like_c"`
	Humidity    int     `json:"humidity_pct"`
	WindSpeed   float64 `json:"wind_speed_mps"`
}

// Weather looks up current conditions for a location via OpenWeatherMap.
func (c *Client) Weather(ctx context.Context, location string) (*Forecast, error) {
	if c.openWeatherKey == "" {
		return nil, fmt.Errorf("openweather api key not configured")
	}

	urlValues := url.Values{}
	urlValues.Set("q", location)
	urlValues.Set("appid", c.openWeatherKey)
	urlValues.Set("units", "metric")

	var parsed struct {
		Name    string `json:"name"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  int     `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	}
	if err := c.getJSON(ctx,
		(&url.URL{
			Scheme: "https",
			Host:   "api.openweathermap.org", Path: "/data/2.5/weather",
			RawQuery: urlValues.Encode(),
		}).String(),
		&parsed,
	); err != nil {
		return nil, fmt.Errorf("weather lookup failed: %w", err)
	}

	forecast := &Forecast{
		Location:   parsed.Name,
		TempC:      parsed.Main.Temp,
		FeelsLikeC: parsed.Main.FeelsLike,
		Humidity:   parsed.Main.Humidity,
		WindSpeed:  parsed.Wind.Speed,
	}
	if forecast.Location == "" {
		forecast.Location = location
	}
	if len(parsed.Weather) > 0 {
		forecast.Description = parsed.Weather[0].Description
	}

	return forecast, nil
}
