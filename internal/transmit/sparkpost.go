// Package transmit sends a rendered message through the outbound
// transmission API and reports success or failure. It never retries
// the business decision of whether to send again — that is the
// dispatcher's job — but it does retry transient transport failures
// via httpretry before giving up.
package transmit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ignite/sparkpost-monitor/internal/pkg/httpretry"
)

// Client sends one message per call.
type Client interface {
	Send(ctx context.Context, req SendRequest) (bool, error)
}

// SendRequest is everything the transmission API needs for one recipient.
type SendRequest struct {
	To          string
	FromEmail   string
	FromName    string
	Subject     string
	Body        string
	CampaignID  string
	CampaignTag string
}

// SparkPostClient posts to the SparkPost transmissions API.
type SparkPostClient struct {
	apiKey     string
	endpoint   string
	httpClient httpretry.HTTPDoer
}

// NewSparkPostClient builds a SparkPostClient. httpDoer may be nil, in
// which case a retrying client with a 10s per-attempt timeout is used,
// matching the timeout the original sender used.
func NewSparkPostClient(apiKey string, httpDoer httpretry.HTTPDoer) *SparkPostClient {
	if httpDoer == nil {
		httpDoer = httpretry.NewRetryClient(&http.Client{Timeout: 10 * time.Second}, 3)
	}
	return &SparkPostClient{
		apiKey:     apiKey,
		endpoint:   "https://api.sparkpost.com/api/v1/transmissions",
		httpClient: httpDoer,
	}
}

const maxCampaignTagLen = 25

var tagSanitizePattern = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)

// SanitizeCampaignName strips everything outside [A-Za-z0-9 _-] and
// truncates to maxCampaignTagLen characters. The allowlist leaves only
// single-rune ASCII code points, so a plain []rune slice is already a
// safe truncation boundary — there's nothing left by this point that a
// grapheme segmenter would treat differently.
func SanitizeCampaignName(name string) string {
	clean := tagSanitizePattern.ReplaceAllString(name, "")
	r := []rune(clean)
	if len(r) > maxCampaignTagLen {
		r = r[:maxCampaignTagLen]
	}
	return string(r)
}

// Send posts the message to SparkPost and reports whether it was
// accepted. A non-2xx/3xx response or a transport error after retries
// is reported as (false, err); the caller treats either as a terminal
// send failure for this recipient.
func (c *SparkPostClient) Send(ctx context.Context, req SendRequest) (bool, error) {
	if c.apiKey == "" {
		return false, fmt.Errorf("transmit: no SparkPost API key configured")
	}

	isHTML := strings.Contains(req.Body, "<") && strings.Contains(req.Body, ">")

	content := map[string]interface{}{
		"from":    map[string]string{"email": req.FromEmail, "name": req.FromName},
		"subject": req.Subject,
	}
	if isHTML {
		content["html"] = req.Body
	} else {
		content["text"] = req.Body
	}

	payload := map[string]interface{}{
		"recipients": []map[string]interface{}{
			{"address": map[string]string{"email": req.To}},
		},
		"content": content,
		"options": map[string]interface{}{
			"click_tracking": false,
		},
	}
	if req.CampaignID != "" {
		tag := SanitizeCampaignName(req.CampaignTag)
		payload["campaign_id"] = fmt.Sprintf("%s - %s", tag, req.CampaignID)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("transmit: encode payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("transmit: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("transmit: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("transmit: sparkpost returned status %d", resp.StatusCode)
	}
	return true, nil
}
