package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RankWeights controls how semantic similarity and the portfolio score are
// blended into the final ranking score. Both values should sum to 1; Validate
// enforces it so a bad override cannot push blended scores outside [0,1].
type RankWeights struct {
	Similarity float64 `yaml:"similarity"`
	Portfolio  float64 `yaml:"portfolio"`
}

// DefaultRankWeights is the shipped blend: 60% similarity, 40% portfolio.
func DefaultRankWeights() RankWeights {
	return RankWeights{Similarity: 0.6, Portfolio: 0.4}
}

// Validate rejects weight pairs that are negative or do not sum to 1.
func (w RankWeights) Validate() error {
	if w.Similarity < 0 || w.Portfolio < 0 {
		return fmt.Errorf("rank weights must be non-negative: %+v", w)
	}
	const eps = 1e-9
	if sum := w.Similarity + w.Portfolio; sum < 1-eps || sum > 1+eps {
		return fmt.Errorf("rank weights must sum to 1, got %g", sum)
	}
	return nil
}

// LoadRankWeights reads a YAML weight override from path. An empty path
// returns the defaults.
func LoadRankWeights(path string) (RankWeights, error) {
	if path == "" {
		return DefaultRankWeights(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return RankWeights{}, fmt.Errorf("op=config.LoadRankWeights: %w", err)
	}
	w := DefaultRankWeights()
	if err := yaml.Unmarshal(b, &w); err != nil {
		return RankWeights{}, fmt.Errorf("op=config.LoadRankWeights: %w", err)
	}
	if err := w.Validate(); err != nil {
		return RankWeights{}, fmt.Errorf("op=config.LoadRankWeights: %w", err)
	}
	return w, nil
}
