package analytics

import "strings"

type botSignature struct {
	Pattern string
	Family  string
}

// Order matters: the first matching pattern wins, so more specific agents
// (ChatGPT-User vs the plain GPTBot crawler) sit where they resolve correctly.
var botSignatures = []botSignature{
	{"GPTBot", "openai"},
	{"ChatGPT-User", "openai"},
	{"ClaudeBot", "anthropic"},
	{"anthropic-ai", "anthropic"},
	{"PerplexityBot", "perplexity"},
	{"Google-Extended", "google"},
	{"Googlebot", "google"},
	{"CCBot", "common-crawl"},
	{"cohere-ai", "cohere"},
	{"FacebookBot", "meta"},
	{"Amazonbot", "amazon"},
	{"YouBot", "you"},
	{"Bytespider", "bytedance"},
}

// DetectBot classifies a User-Agent into a bot name and family.
// Unrecognised agents are assumed to be humans or unlisted crawlers.
func DetectBot(userAgent string) (name, family string) {
	if userAgent == "" {
		return "unknown", "unknown"
	}
	lower := strings.ToLower(userAgent)
	for _, sig := range botSignatures {
		if strings.Contains(lower, strings.ToLower(sig.Pattern)) {
			return sig.Pattern, sig.Family
		}
	}
	return "human-or-unknown", "unknown"
}
