package usecase

import (
	"strings"

	"github.com/google/uuid"
	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalizer turns channel-specific payloads into the shared intake shape.
type Normalizer struct {
	Region string
}

func NewNormalizer(region string) *Normalizer {
	if region == "" {
		region = "US"
	}
	return &Normalizer{Region: strings.ToUpper(region)}
}

func (n *Normalizer) FromQuoteRequest(req QuoteRequest) InstantQuoteInput {
	channel := entity.Channel(strings.ToLower(strings.TrimSpace(req.Channel)))
	switch channel {
	case entity.ChannelWebForm, entity.ChannelChatWidget, entity.ChannelAIQuote:
	default:
		channel = entity.ChannelWebForm
	}

	return InstantQuoteInput{
		Intake: entity.JobIntake{
			ID:               uuid.New().String(),
			Channel:          channel,
			Services:         NormalizeServices(req.Services),
			Size:             entity.ParsePerceivedSize(req.Size),
			Notes:            strings.TrimSpace(req.Notes),
			PostalCode:       strings.TrimSpace(req.PostalCode),
			PhotoURLs:        trimAll(req.PhotoURLs),
			Timeframe:        entity.ParseTimeframe(req.Timeframe),
			BookingRequested: req.BookingRequested,
			Address:          req.Address,
			Attribution: entity.Attribution{
				UTMSource:   strings.TrimSpace(req.UTMSource),
				UTMMedium:   strings.TrimSpace(req.UTMMedium),
				UTMCampaign: strings.TrimSpace(req.UTMCampaign),
				Referrer:    strings.TrimSpace(req.Referrer),
				LandingPage: strings.TrimSpace(req.LandingPage),
			},
		},
		Contact: n.contact(req.FirstName, req.LastName, req.Email, req.Phone),
	}
}

// FromSocialLead maps a lead-ads form submission. Field names follow the
// platform's standard question keys.
func (n *Normalizer) FromSocialLead(v SocialLeadValue) InstantQuoteInput {
	fields := make(map[string]string, len(v.FieldData))
	for _, f := range v.FieldData {
		key := strings.ToLower(strings.TrimSpace(f.Name))
		fields[key] = strings.TrimSpace(strings.Join(f.Values, ","))
	}
	pick := func(keys ...string) string {
		for _, k := range keys {
			if val := fields[k]; val != "" {
				return val
			}
		}
		return ""
	}

	first, last := pick("first_name"), pick("last_name")
	if first == "" && last == "" {
		first, last = splitFullName(pick("full_name", "name"))
	}

	var services []string
	if raw := pick("services", "service", "job_type"); raw != "" {
		services = strings.Split(raw, ",")
	}

	return InstantQuoteInput{
		Intake: entity.JobIntake{
			ID:         uuid.New().String(),
			Channel:    entity.ChannelSocialWebhook,
			Services:   NormalizeServices(services),
			Size:       entity.ParsePerceivedSize(pick("job_size", "size")),
			Notes:      pick("notes", "details", "job_details"),
			PostalCode: pick("zip_code", "postal_code", "zip"),
			Timeframe:  entity.ParseTimeframe(pick("timeframe", "when")),
			Attribution: entity.Attribution{
				UTMSource:   "social",
				UTMMedium:   "lead_ad",
				UTMCampaign: v.CampaignID,
			},
		},
		Contact: n.contact(first, last, pick("email"), pick("phone_number", "phone")),
	}
}

func (n *Normalizer) contact(first, last, email, phone string) entity.ContactInfo {
	raw := strings.TrimSpace(phone)
	return entity.ContactInfo{
		FirstName: NormalizeName(first),
		LastName:  NormalizeName(last),
		Email:     NormalizeEmail(email),
		PhoneRaw:  raw,
		PhoneE164: n.NormalizePhone(raw),
	}
}

// NormalizePhone returns the E.164 form of raw, or "" when raw is not a
// valid number in the configured region.
func (n *Normalizer) NormalizePhone(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	num, err := phonenumbers.Parse(raw, n.Region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return ""
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NormalizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	return cases.Title(language.English).String(name)
}

// NormalizeServices lower-cases tags, joins words with underscores and drops
// blanks and duplicates while keeping first-seen order.
func NormalizeServices(raw []string) []entity.ServiceTag {
	seen := make(map[entity.ServiceTag]bool, len(raw))
	var tags []entity.ServiceTag
	for _, s := range raw {
		s = strings.ToLower(strings.TrimSpace(s))
		s = strings.Join(strings.FieldsFunc(s, func(r rune) bool {
			return r == ' ' || r == '-' || r == '_'
		}), "_")
		tag := entity.ServiceTag(s)
		if s == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

func splitFullName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
