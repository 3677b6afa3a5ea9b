package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/openfeeder/internal/common"
)

// Event describes one feed request for analytics purposes
type Event struct {
	BotName    string
	BotFamily  string
	Endpoint   string
	Query      string
	Intent     string
	Results    int
	Cached     bool
	ResponseMS int64
}

// Tracker reports feed traffic to Umami or GA4. Reporting is best-effort
// and fire-and-forget: analytics must never slow down or fail a request.
type Tracker struct {
	provider string
	baseURL  string
	siteID   string
	apiKey   string
	hostname string
	client   *http.Client
	logger   arbor.ILogger
}

func NewTracker(config *common.Config, logger arbor.ILogger) *Tracker {
	hostname := ""
	if u, err := url.Parse(config.Site.URL); err == nil {
		hostname = u.Host
	}
	return &Tracker{
		provider: config.Analytics.Provider,
		baseURL:  strings.TrimRight(config.Analytics.URL, "/"),
		siteID:   config.Analytics.SiteID,
		apiKey:   config.Analytics.APIKey,
		hostname: hostname,
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   logger,
	}
}

// Enabled reports whether events will actually be sent anywhere
func (t *Tracker) Enabled() bool {
	if t.provider == "" || t.provider == "none" {
		return false
	}
	if t.provider == "ga4" {
		return t.siteID != "" && t.apiKey != ""
	}
	return t.baseURL != "" && t.siteID != ""
}

// Track reports an event in the background
func (t *Tracker) Track(event Event) {
	if !t.Enabled() {
		return
	}
	go t.send(event)
}

func (t *Tracker) send(event Event) {
	var err error
	switch t.provider {
	case "umami":
		err = t.sendUmami(event)
	case "ga4":
		err = t.sendGA4(event)
	default:
		return
	}
	if err != nil {
		t.logger.Debug().Err(err).Str("provider", t.provider).Msg("Analytics event failed")
	}
}

func (t *Tracker) sendUmami(event Event) error {
	payload := map[string]any{
		"type": "event",
		"payload": map[string]any{
			"website":  t.siteID,
			"hostname": t.hostname,
			"url":      event.Endpoint,
			"name":     "openfeeder_request",
			"data": map[string]any{
				"bot_name":    event.BotName,
				"bot_family":  event.BotFamily,
				"endpoint":    event.Endpoint,
				"query":       event.Query,
				"intent":      event.Intent,
				"results":     event.Results,
				"cached":      event.Cached,
				"response_ms": event.ResponseMS,
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, t.baseURL+"/api/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "OpenFeeder/1.0")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("umami returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (t *Tracker) sendGA4(event Event) error {
	payload := map[string]any{
		"client_id": event.BotName,
		"events": []map[string]any{
			{
				"name": "openfeeder_request",
				"params": map[string]any{
					"bot_name":    event.BotName,
					"bot_family":  event.BotFamily,
					"endpoint":    event.Endpoint,
					"search_term": event.Query,
					"results":     event.Results,
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("https://www.google-analytics.com/mp/collect?measurement_id=%s&api_secret=%s",
		url.QueryEscape(t.siteID), url.QueryEscape(t.apiKey))

	resp, err := t.client.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("ga4 returned HTTP %d", resp.StatusCode)
	}
	return nil
}
