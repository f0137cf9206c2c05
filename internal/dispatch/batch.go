package dispatch

import (
	"context"
	"time"

	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
	"github.com/ignite/sparkpost-monitor/internal/transmit"
)

// ProcessBatch runs one pass: select due items, claim each atomically,
// render and send it, and record the outcome. The per-campaign
// generation-failure counter lives only for the duration of this call
// — it does not persist across batches, so a campaign's circuit only
// trips on failures clustered within a single poll.
func (w *Worker) ProcessBatch(ctx context.Context) error {
	items, err := w.store.SelectDue(ctx, w.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	genFailures := make(map[string]int)
	campaignCache := make(map[string]*domain.Campaign)

	for _, item := range items {
		if genFailures[item.CampaignID] >= w.cfg.CircuitThreshold {
			continue
		}

		claimed, err := w.store.Claim(ctx, item.ID)
		if err != nil {
			logger.Error("dispatcher: claim failed", "item_id", item.ID, "error", err.Error())
			continue
		}
		if !claimed {
			continue
		}

		if item.DelaySeconds > 0 {
			select {
			case <-time.After(time.Duration(item.DelaySeconds) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		campaign, ok := campaignCache[item.CampaignID]
		if !ok {
			campaign, err = w.store.GetCampaign(ctx, item.CampaignID)
			if err != nil {
				w.finalizeFailed(ctx, item.ID, "campaign lookup failed: "+err.Error())
				continue
			}
			campaignCache[item.CampaignID] = campaign
		}

		body := item.Body
		if body == "" {
			rendered, err := w.renderItem(ctx, campaign, item)
			if err != nil {
				genFailures[item.CampaignID]++
				w.finalizeFailed(ctx, item.ID, "generation failed: "+err.Error())
				if genFailures[item.CampaignID] >= w.cfg.CircuitThreshold {
					w.tripCircuitBreaker(ctx, item.CampaignID)
				}
				continue
			}
			body = rendered
			genFailures[item.CampaignID] = 0
			if err := w.store.SetBody(ctx, item.ID, body); err != nil {
				logger.Warn("dispatcher: failed to persist rendered body", "item_id", item.ID, "error", err.Error())
			}
		}

		fromEmail := ""
		if item.FromEmail != nil {
			fromEmail = *item.FromEmail
		}

		sent, err := w.sender.Send(ctx, transmit.SendRequest{
			To:          item.Email,
			FromEmail:   fromEmail,
			FromName:    campaign.Sender.DisplayName(),
			Subject:     item.Subject,
			Body:        body,
			CampaignID:  campaign.ID,
			CampaignTag: campaign.Name,
		})
		if err != nil || !sent {
			msg := "send failed"
			if err != nil {
				msg = err.Error()
			}
			w.finalizeFailed(ctx, item.ID, msg)
			genFailures[item.CampaignID] = 0
			continue
		}

		if err := w.store.FinalizeSent(ctx, item.ID, time.Now().UTC()); err != nil {
			logger.Error("dispatcher: failed to finalize sent item", "item_id", item.ID, "error", err.Error())
		}
	}

	return nil
}

func (w *Worker) renderItem(ctx context.Context, campaign *domain.Campaign, item domain.QueueItem) (string, error) {
	generated := map[string]string{}
	hasPersonalized := false
	for _, s := range campaign.Sections {
		if s.Personalized() {
			hasPersonalized = true
			break
		}
	}
	if hasPersonalized {
		g, err := w.generator.Generate(ctx, campaign.Sections, item.Metadata)
		if err != nil {
			return "", err
		}
		generated = g
	}
	return w.renderer.Render(campaign.Sections, item.Metadata, generated, campaign.Format)
}

func (w *Worker) finalizeFailed(ctx context.Context, itemID, reason string) {
	if err := w.store.FinalizeFailed(ctx, itemID, reason); err != nil {
		logger.Error("dispatcher: failed to finalize failed item", "item_id", itemID, "error", err.Error())
	}
}

func (w *Worker) tripCircuitBreaker(ctx context.Context, campaignID string) {
	now := time.Now().UTC()
	if _, err := w.store.UpdateCampaignStatusIf(ctx, campaignID, domain.CampaignScheduled, domain.CampaignPaused); err != nil {
		logger.Error("dispatcher: failed to pause campaign", "campaign_id", campaignID, "error", err.Error())
		return
	}
	if _, err := w.store.UpdateCampaignStatusIf(ctx, campaignID, domain.CampaignSending, domain.CampaignPaused); err != nil {
		logger.Error("dispatcher: failed to pause sending campaign", "campaign_id", campaignID, "error", err.Error())
	}
	if err := w.store.SetPauseReason(ctx, campaignID, "generation failure circuit breaker tripped", now); err != nil {
		logger.Warn("dispatcher: failed to record pause reason", "campaign_id", campaignID, "error", err.Error())
	}
	logger.Warn("dispatcher: circuit breaker tripped, campaign paused", "campaign_id", campaignID)
}
