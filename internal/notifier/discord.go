package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/smart-shopper/internal/models"
)

const (
	colorPositive  = 3066993  // #2ECC71
	colorNeutral   = 16753920 // #FFA500
	colorNegative  = 16711680 // #FF0000
	colorNoReviews = 3092790  // #2F3136

	maxAttempts     = 3
	baseBackoff     = 500 * time.Millisecond
	maxRetryAfter   = 10 * time.Second
	maxFieldNameLen = 256
)

// Client posts recommendation summaries to a Discord webhook.
type Client struct {
	webhookURL  string
	client      *http.Client
	rateLimiter *rate.Limiter
}

func New(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		// Discord allows 5 webhook requests per 2 seconds.
		rateLimiter: rate.NewLimiter(rate.Every(400*time.Millisecond), 1),
	}
}

// NotifyRecommendations posts the top offers of a finished search.
// It is a no-op when no webhook is configured or there is nothing to recommend.
func (c *Client) NotifyRecommendations(ctx context.Context, query string, offers []models.Offer) error {
	if c.webhookURL == "" || len(offers) == 0 {
		return nil
	}
	embed := formatRecommendationsEmbed(query, offers, time.Now())
	_, err := c.send(ctx, embed)
	return err
}

type discordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbedThumbnail struct {
	URL string `json:"url,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text,omitempty"`
}

type discordEmbed struct {
	Title       string                `json:"title,omitempty"`
	Description string                `json:"description,omitempty"`
	URL         string                `json:"url,omitempty"`
	Timestamp   string                `json:"timestamp,omitempty"`
	Color       int                   `json:"color,omitempty"`
	Thumbnail   discordEmbedThumbnail `json:"thumbnail,omitempty"`
	Fields      []discordEmbedField   `json:"fields,omitempty"`
	Footer      discordEmbedFooter    `json:"footer,omitempty"`
}

type discordMessageResponse struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

func formatRecommendationsEmbed(query string, offers []models.Offer, now time.Time) discordEmbed {
	fields := make([]discordEmbedField, 0, len(offers))
	for i, o := range offers {
		name := fmt.Sprintf("%d. %s", i+1, o.Name)
		if len(name) > maxFieldNameLen {
			name = name[:maxFieldNameLen-3] + "..."
		}
		value := fmt.Sprintf("**%s** on %s", o.DisplayPrice, o.Source)
		if o.DiscountPercent() > 0 {
			value += fmt.Sprintf(" (%s)", o.DiscountLabel)
		}
		value += "\n" + sentimentLabel(o.Sentiment)
		if o.DetailURL != "" {
			value += fmt.Sprintf("\n[View offer](%s)", o.DetailURL)
		}
		fields = append(fields, discordEmbedField{Name: name, Value: value})
	}

	var thumbnail discordEmbedThumbnail
	if offers[0].ImageURL != "" {
		thumbnail.URL = offers[0].ImageURL
	}

	return discordEmbed{
		Title:     fmt.Sprintf("Cheapest picks for %q", query),
		Timestamp: now.Format(time.RFC3339),
		Color:     sentimentColor(offers[0].Sentiment),
		Thumbnail: thumbnail,
		Fields:    fields,
		Footer:    discordEmbedFooter{Text: strconv.Itoa(len(offers)) + " recommendations"},
	}
}

func sentimentLabel(s *models.Sentiment) string {
	if s == nil {
		return "Sentiment pending"
	}
	if s.Verdict == models.VerdictNoReviews {
		return "No reviews"
	}
	return fmt.Sprintf("%s (%d%%)", s.Verdict, s.Confidence)
}

func sentimentColor(s *models.Sentiment) int {
	if s == nil {
		return colorNoReviews
	}
	switch s.Verdict {
	case models.VerdictPositive:
		return colorPositive
	case models.VerdictNeutral:
		return colorNeutral
	case models.VerdictNegative:
		return colorNegative
	}
	return colorNoReviews
}

// retryBackoff returns how long to wait before retrying resp, or zero when
// the status is not worth retrying.
func retryBackoff(resp *http.Response, attempt int) time.Duration {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil && secs > 0 {
			return min(time.Duration(secs*float64(time.Second)), maxRetryAfter)
		}
		return time.Duration(1<<attempt) * baseBackoff
	case resp.StatusCode >= 500:
		return time.Duration(1<<attempt) * baseBackoff
	}
	return 0
}

func (c *Client) send(ctx context.Context, embed discordEmbed) (string, error) {
	payloadBytes, err := json.Marshal(discordWebhookPayload{Embeds: []discordEmbed{embed}})
	if err != nil {
		return "", err
	}

	parsedURL, err := url.Parse(c.webhookURL)
	if err != nil {
		return "", err
	}
	q := parsedURL.Query()
	q.Set("wait", "true")
	parsedURL.RawQuery = q.Encode()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, parsedURL.String(), bytes.NewReader(payloadBytes))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return "", err
		}
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			var msgResponse discordMessageResponse
			if err := json.Unmarshal(bodyBytes, &msgResponse); err != nil {
				return "", err
			}
			return msgResponse.ID, nil
		}

		lastErr = fmt.Errorf("discord status: %s, body: %s", resp.Status, strings.TrimSpace(string(bodyBytes)))
		backoff := retryBackoff(resp, attempt)
		if backoff == 0 || attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}
	return "", lastErr
}
