package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/openfeeder/internal/common"
)

func TestDetectBot(t *testing.T) {
	tests := []struct {
		name       string
		userAgent  string
		wantName   string
		wantFamily string
	}{
		{"gptbot", "Mozilla/5.0 AppleWebKit/537.36 (compatible; GPTBot/1.0; +https://openai.com/gptbot)", "GPTBot", "openai"},
		{"chatgpt user", "Mozilla/5.0 ChatGPT-User/1.0", "ChatGPT-User", "openai"},
		{"claudebot", "Mozilla/5.0 (compatible; ClaudeBot/1.0)", "ClaudeBot", "anthropic"},
		{"perplexity", "PerplexityBot/1.0 (+https://perplexity.ai/perplexitybot)", "PerplexityBot", "perplexity"},
		{"google extended", "Mozilla/5.0 (compatible; Google-Extended)", "Google-Extended", "google"},
		{"googlebot", "Mozilla/5.0 (compatible; Googlebot/2.1)", "Googlebot", "google"},
		{"ccbot", "CCBot/2.0 (https://commoncrawl.org/faq/)", "CCBot", "common-crawl"},
		{"bytespider", "Mozilla/5.0 Bytespider", "Bytespider", "bytedance"},
		{"case insensitive", "mozilla/5.0 (compatible; gptbot/1.0)", "GPTBot", "openai"},
		{"browser", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Safari/605.1.15", "human-or-unknown", "unknown"},
		{"empty", "", "unknown", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, family := DetectBot(tt.userAgent)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantFamily, family)
		})
	}
}

func TestTrackerEnabled(t *testing.T) {
	logger := common.GetLogger()

	config := common.NewDefaultConfig()
	assert.False(t, NewTracker(config, logger).Enabled())

	config.Analytics.Provider = "umami"
	config.Analytics.URL = "https://stats.example.com"
	config.Analytics.SiteID = "site-123"
	assert.True(t, NewTracker(config, logger).Enabled())

	config.Analytics.SiteID = ""
	assert.False(t, NewTracker(config, logger).Enabled())

	config.Analytics.Provider = "ga4"
	config.Analytics.SiteID = "G-XXXX"
	config.Analytics.APIKey = ""
	assert.False(t, NewTracker(config, logger).Enabled())

	config.Analytics.APIKey = "secret"
	assert.True(t, NewTracker(config, logger).Enabled())
}
