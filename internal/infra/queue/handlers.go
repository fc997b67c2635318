package queue

import (
	"context"
	"encoding/json"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

type AlertSender interface {
	SendLeadAlert(ctx context.Context, alert entity.LeadAlertPayload) error
}

type FollowupScheduler interface {
	Schedule(ctx context.Context, f entity.FollowupPayload) error
}

type StageChangeNotifier interface {
	NotifyStageChange(ctx context.Context, c entity.StageChangePayload) error
}

func LeadAlertHandler(sender AlertSender) Handler {
	return func(ctx context.Context, e Event) error {
		var p entity.LeadAlertPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return eris.Wrap(err, "lead alert: decode payload")
		}
		return sender.SendLeadAlert(ctx, p)
	}
}

func FollowupHandler(scheduler FollowupScheduler) Handler {
	return func(ctx context.Context, e Event) error {
		var p entity.FollowupPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return eris.Wrap(err, "followup: decode payload")
		}
		return scheduler.Schedule(ctx, p)
	}
}

// StageChangeHandler logs the transition and forwards it when a notifier is
// configured.
func StageChangeHandler(logger *zap.Logger, notifier StageChangeNotifier) Handler {
	return func(ctx context.Context, e Event) error {
		var p entity.StageChangePayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return eris.Wrap(err, "stage change: decode payload")
		}
		logger.Info("pipeline stage changed",
			zap.String("contact_id", p.ContactID),
			zap.String("lead_id", p.LeadID),
			zap.String("from", string(p.FromStage)),
			zap.String("to", string(p.ToStage)),
			zap.String("reason", p.Reason),
		)
		if notifier == nil {
			return nil
		}
		return notifier.NotifyStageChange(ctx, p)
	}
}
