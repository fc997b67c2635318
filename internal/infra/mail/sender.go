package mail

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

//go:embed templates/lead_alert.html
var leadAlertTemplate string

var leadAlert = template.Must(template.New("lead_alert").Funcs(template.FuncMap{
	"join": func(tags []entity.ServiceTag) string {
		out := make([]string, len(tags))
		for i, t := range tags {
			out[i] = strings.ReplaceAll(string(t), "_", " ")
		}
		return strings.Join(out, ", ")
	},
}).Parse(leadAlertTemplate))

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// AlertSender emails new-lead alerts to the sales inbox. Without an SMTP
// host it only logs them.
type AlertSender struct {
	cfg    Config
	dialer dialer
	logger *zap.Logger
}

func NewAlertSender(cfg Config, logger *zap.Logger) *AlertSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AlertSender{cfg: cfg, logger: logger}
	if cfg.Host != "" {
		s.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	}
	return s
}

func (s *AlertSender) SendLeadAlert(ctx context.Context, alert entity.LeadAlertPayload) error {
	if s.dialer == nil || len(s.cfg.AlertTo) == 0 {
		s.logger.Info("lead alert (mail disabled)",
			zap.String("lead_id", alert.LeadID),
			zap.String("contact", alert.ContactName),
		)
		return nil
	}

	m, err := s.buildMessage(alert)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "mail: lead alert")
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return eris.Wrapf(err, "mail: send lead alert %s", alert.LeadID)
	}
	return nil
}

func (s *AlertSender) buildMessage(alert entity.LeadAlertPayload) (*gomail.Message, error) {
	var body bytes.Buffer
	if err := leadAlert.Execute(&body, alert); err != nil {
		return nil, eris.Wrap(err, "mail: render lead alert")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", s.cfg.AlertTo...)
	m.SetHeader("Subject", alertSubject(alert))
	m.SetBody("text/html", body.String())
	return m, nil
}

func alertSubject(a entity.LeadAlertPayload) string {
	if a.PriceHigh > 0 {
		return fmt.Sprintf("New lead: %s (%s, $%d-$%d)", a.ContactName, a.PostalCode, a.PriceLow, a.PriceHigh)
	}
	return fmt.Sprintf("New lead: %s (%s)", a.ContactName, a.PostalCode)
}
