package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRankWeightsAreValid(t *testing.T) {
	t.Parallel()
	w := DefaultRankWeights()
	require.NoError(t, w.Validate())
	assert.InDelta(t, 1.0, w.Similarity+w.Portfolio, 1e-9)
}

func TestRankWeightsValidate(t *testing.T) {
	t.Parallel()
	require.Error(t, RankWeights{Similarity: -0.1, Portfolio: 1.1}.Validate())
	require.Error(t, RankWeights{Similarity: 0.5, Portfolio: 0.6}.Validate())
	require.NoError(t, RankWeights{Similarity: 1, Portfolio: 0}.Validate())
}

func TestLoadRankWeights(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("similarity: 0.7\nportfolio: 0.3\n"), 0o600))

	w, err := LoadRankWeights(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, w.Similarity, 1e-9)
	assert.InDelta(t, 0.3, w.Portfolio, 1e-9)

	require.NoError(t, os.WriteFile(path, []byte("similarity: 0.9\nportfolio: 0.9\n"), 0o600))
	_, err = LoadRankWeights(path)
	require.Error(t, err)

	_, err = LoadRankWeights(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
