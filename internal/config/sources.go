package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jonesrussell/checkpoint-ingestor/internal/domain"
)

// ErrNoSources indicates the sources file contains no feed sources.
var ErrNoSources = errors.New("no sources found in configuration")

// Sources holds the feed lists loaded from the sources file: the master
// list fetched on every core run, and the location-scoped seeds used by
// discovery runs.
type Sources struct {
	Master []domain.FeedSource `yaml:"master"`
	Seeds  []domain.SeedSource `yaml:"seeds"`
}

// SeedByID returns the seed source with the given ID, or nil.
func (s *Sources) SeedByID(id int) *domain.SeedSource {
	for i := range s.Seeds {
		if s.Seeds[i].ID == id {
			return &s.Seeds[i]
		}
	}
	return nil
}

// LoadSources reads and validates the sources file.
func LoadSources(path string) (*Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var sources Sources
	if err := yaml.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}

	if len(sources.Master) == 0 && len(sources.Seeds) == 0 {
		return nil, ErrNoSources
	}

	for i, src := range sources.Master {
		if src.Name == "" || src.FeedURL == "" {
			return nil, fmt.Errorf("master source %d: name and feed_url are required", i)
		}
	}
	for i, seed := range sources.Seeds {
		if seed.ID == 0 || seed.FeedURL == "" {
			return nil, fmt.Errorf("seed source %d: id and feed_url are required", i)
		}
	}

	return &sources, nil
}
