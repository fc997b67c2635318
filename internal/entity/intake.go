package entity

import "strings"

// PerceivedSize is the customer's self-reported job scale.
type PerceivedSize string

const (
	SizeFewItems          PerceivedSize = "few_items"
	SizeSmallLoad         PerceivedSize = "small_load"
	SizeOneRoomHalfGarage PerceivedSize = "one_room_or_half_garage"
	SizeFullGarage        PerceivedSize = "full_garage"
	SizeBigCleanout       PerceivedSize = "big_cleanout"
	SizeUnsure            PerceivedSize = "unsure"
)

// ParsePerceivedSize maps free input to a known tier. Unknown or empty input
// resolves to SizeUnsure.
func ParsePerceivedSize(s string) PerceivedSize {
	switch PerceivedSize(strings.ToLower(strings.TrimSpace(s))) {
	case SizeFewItems:
		return SizeFewItems
	case SizeSmallLoad:
		return SizeSmallLoad
	case SizeOneRoomHalfGarage:
		return SizeOneRoomHalfGarage
	case SizeFullGarage:
		return SizeFullGarage
	case SizeBigCleanout:
		return SizeBigCleanout
	default:
		return SizeUnsure
	}
}

// IsLargestTier reports whether the size is the top of the tier table.
func (s PerceivedSize) IsLargestTier() bool {
	return s == SizeBigCleanout
}

// ServiceTag is a service category attached to an intake.
type ServiceTag string

const (
	TagBulkyHeavy         ServiceTag = "bulky_heavy"
	TagAppliances         ServiceTag = "appliances"
	TagConstructionDebris ServiceTag = "construction_debris"
	TagHotTub             ServiceTag = "hot_tub"
	TagPiano              ServiceTag = "piano"
	TagBusinessCommercial ServiceTag = "business_commercial"
	TagEstateCleanout     ServiceTag = "estate_cleanout"
	TagYardWaste          ServiceTag = "yard_waste"
	TagFurniture          ServiceTag = "furniture"
)

var bulkyTags = map[ServiceTag]bool{
	TagBulkyHeavy:         true,
	TagAppliances:         true,
	TagConstructionDebris: true,
	TagHotTub:             true,
	TagPiano:              true,
}

// IsBulky reports whether the tag marks heavy or oversized material.
func (t ServiceTag) IsBulky() bool {
	return bulkyTags[t]
}

// Timeframe is the customer's contact/scheduling preference.
type Timeframe string

const (
	TimeframeASAP     Timeframe = "asap"
	TimeframeThisWeek Timeframe = "this_week"
	TimeframeNextWeek Timeframe = "next_week"
	TimeframeFlexible Timeframe = "flexible"
)

// ParseTimeframe defaults unknown values to TimeframeFlexible.
func ParseTimeframe(s string) Timeframe {
	switch Timeframe(strings.ToLower(strings.TrimSpace(s))) {
	case TimeframeASAP:
		return TimeframeASAP
	case TimeframeThisWeek:
		return TimeframeThisWeek
	case TimeframeNextWeek:
		return TimeframeNextWeek
	default:
		return TimeframeFlexible
	}
}

// Channel identifies where an intake came from.
type Channel string

const (
	ChannelWebForm       Channel = "web_form"
	ChannelChatWidget    Channel = "chat_widget"
	ChannelSocialWebhook Channel = "social_webhook"
	ChannelAIQuote       Channel = "ai_quote"
)

// AddressInput is an optional street address supplied with an intake.
type AddressInput struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Gated      bool   `json:"gated"`
}

// Attribution carries marketing attribution for a lead.
type Attribution struct {
	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
	LandingPage string `json:"landing_page,omitempty"`
}

// JobIntake is the normalized, request-scoped description of a job. It is
// never persisted verbatim, only through derived entities and the lead's
// form payload snapshot.
type JobIntake struct {
	ID               string        `json:"id"`
	Channel          Channel       `json:"channel"`
	Services         []ServiceTag  `json:"services"`
	Size             PerceivedSize `json:"size"`
	Notes            string        `json:"notes,omitempty"`
	PostalCode       string        `json:"postal_code"`
	PhotoURLs        []string      `json:"photo_urls,omitempty"`
	Timeframe        Timeframe     `json:"timeframe"`
	BookingRequested bool          `json:"booking_requested"`
	Address          *AddressInput `json:"address,omitempty"`
	Attribution      Attribution   `json:"attribution"`
}

// HasTag reports whether the intake carries the given service tag.
func (j JobIntake) HasTag(tag ServiceTag) bool {
	for _, t := range j.Services {
		if t == tag {
			return true
		}
	}
	return false
}

// ContactInfo is the person half of a normalized intake.
type ContactInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	PhoneRaw  string `json:"phone_raw,omitempty"`
	PhoneE164 string `json:"phone_e164,omitempty"`
}

// FullName joins first and last name.
func (c ContactInfo) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
