package domain

import "strings"

// keywordSeparator delimits keyword overrides in seed source rows.
const keywordSeparator = "|"

// FeedSource is one row of the master feed list. Each row drives one feed
// fetch per run.
type FeedSource struct {
	Name       string `mapstructure:"name"       yaml:"name"`
	FeedURL    string `mapstructure:"feed_url"   yaml:"feed_url"`
	Type       string `mapstructure:"type"       yaml:"type"`
	Tier       string `mapstructure:"tier"       yaml:"tier"`
	Confidence string `mapstructure:"confidence" yaml:"confidence"`
	Notes      string `mapstructure:"notes"      yaml:"notes"`
}

// SeedSource is one row of the location-scoped seed list. It narrows a feed
// to a specific county or city and may override the keyword set.
type SeedSource struct {
	ID         int    `mapstructure:"id"         yaml:"id"`
	Name       string `mapstructure:"name"       yaml:"name"`
	FeedURL    string `mapstructure:"feed_url"   yaml:"feed_url"`
	Type       string `mapstructure:"type"       yaml:"type"`
	Tier       string `mapstructure:"tier"       yaml:"tier"`
	Confidence string `mapstructure:"confidence" yaml:"confidence"`
	County     string `mapstructure:"county"     yaml:"county"`
	City       string `mapstructure:"city"       yaml:"city"`
	Keywords   string `mapstructure:"keywords"   yaml:"keywords"`
}

// FeedSource converts the seed row to a plain feed source.
func (s SeedSource) FeedSource() FeedSource {
	return FeedSource{
		Name:       s.Name,
		FeedURL:    s.FeedURL,
		Type:       s.Type,
		Tier:       s.Tier,
		Confidence: s.Confidence,
	}
}

// KeywordList splits the pipe-delimited keyword override into a slice,
// dropping empty segments. A seed with no override returns nil.
func (s SeedSource) KeywordList() []string {
	if s.Keywords == "" {
		return nil
	}

	parts := strings.Split(s.Keywords, keywordSeparator)
	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			keywords = append(keywords, trimmed)
		}
	}

	return keywords
}
