// Package models provides data model definitions for the trip planner offline layer.
package models

import "encoding/json"

// Plan is a multi-day itinerary document as served by the trip planner API.
// Content is kept opaque and stored in compact form: insignificant
// whitespace is dropped, everything else round-trips unchanged.
// Use PlanContent for typed access to the days.
type Plan struct {
	ID         string          `json:"id" validate:"required"`
	Name       string          `json:"name"`
	IsFavorite bool            `json:"is_favorite"`
	Content    json.RawMessage `json:"content,omitempty"`
	CreatedAt  string          `json:"created_at,omitempty"`
	UpdatedAt  string          `json:"updated_at,omitempty"`
}

// PlanContent is the expected shape of Plan.Content.
type PlanContent struct {
	Days []Day `json:"days" validate:"dive"`
}

// Day is one day of an itinerary, holding ordered attraction visits.
type Day struct {
	DayNumber   int          `json:"day_number" validate:"gte=0"`
	Date        string       `json:"date,omitempty"`
	Attractions []Attraction `json:"attractions" validate:"dive"`
}

// Attraction is a single scheduled visit within a day.
type Attraction struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	ImageURL        string `json:"image_url,omitempty"`
	StartTime       string `json:"start_time,omitempty"`
	EndTime         string `json:"end_time,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty" validate:"gte=0"`
	Notes           string `json:"notes,omitempty"`
	Order           int    `json:"order" validate:"gte=0"`
}
