package followup

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const DefaultTimeout = 10 * time.Second

// Client posts follow-up and stage change events to the scheduling
// webhook. With no URL configured every call is a logged no-op.
type Client struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

func NewClient(url string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{httpClient: client, url: url, logger: logger}
}

func (c *Client) Schedule(ctx context.Context, f entity.FollowupPayload) error {
	return c.post(ctx, string(entity.EventFollowupSchedule), f.LeadID+":"+f.Reason, f)
}

func (c *Client) NotifyStageChange(ctx context.Context, s entity.StageChangePayload) error {
	return c.post(ctx, string(entity.EventPipelineAutoStage), s.LeadID+":"+string(s.ToStage), s)
}

func (c *Client) post(ctx context.Context, event, idempotencyKey string, data any) error {
	if c.url == "" {
		c.logger.Debug("followup webhook disabled", zap.String("event", event))
		return nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return eris.Wrapf(err, "followup: encode %s", event)
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", idempotencyKey).
		SetBody(Envelope{Event: event, Data: raw}).
		Post(c.url)
	if err != nil {
		return eris.Wrapf(err, "followup: post %s", event)
	}
	if resp.IsError() {
		c.logger.Error("followup webhook rejected event",
			zap.String("event", event),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return eris.Errorf("followup: %s rejected with status %d", event, resp.StatusCode())
	}

	c.logger.Debug("followup webhook accepted event", zap.String("event", event))
	return nil
}
