package usecase

import (
	"time"

	"github.com/hauldesk/hauldesk-api/internal/entity"
)

// TimeframeScheduler maps the customer's timeframe preference to a fixed
// follow-up delay.
type TimeframeScheduler struct {
	Delays map[entity.Timeframe]time.Duration
}

func NewTimeframeScheduler() *TimeframeScheduler {
	return &TimeframeScheduler{Delays: map[entity.Timeframe]time.Duration{
		entity.TimeframeASAP:     15 * time.Minute,
		entity.TimeframeThisWeek: 4 * time.Hour,
		entity.TimeframeNextWeek: 24 * time.Hour,
		entity.TimeframeFlexible: 48 * time.Hour,
	}}
}

func (s *TimeframeScheduler) Suggest(intake entity.JobIntake, from time.Time) (time.Time, string) {
	delay, ok := s.Delays[intake.Timeframe]
	if !ok {
		delay = s.Delays[entity.TimeframeFlexible]
	}

	reason := "quote_followup"
	if intake.BookingRequested {
		reason = "booking_confirmation"
		delay = min(delay, 15*time.Minute)
	}
	return from.Add(delay).UTC(), reason
}
