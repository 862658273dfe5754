package risk

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// Two stumps: one splits on the username flag, one on name length.
const sampleForest = `{
  "n_features": 4,
  "trees": [
    {"nodes": [
      {"feature": 0, "threshold": 0.5, "left": 1, "right": 2, "probability": 0.5},
      {"feature": 0, "threshold": 0, "left": -1, "right": -1, "probability": 0.1},
      {"feature": 0, "threshold": 0, "left": -1, "right": -1, "probability": 0.9}
    ]},
    {"nodes": [
      {"feature": 2, "threshold": 4.5, "left": 1, "right": 2, "probability": 0.5},
      {"feature": 0, "threshold": 0, "left": -1, "right": -1, "probability": 0.8},
      {"feature": 0, "threshold": 0, "left": -1, "right": -1, "probability": 0.2}
    ]}
  ]
}`

func TestForestPredict(t *testing.T) {
	forest, err := ParseForest([]byte(sampleForest))
	require.NoError(t, err)

	bot, err := forest.Predict([]float64{1, 0, 3, 0})
	require.NoError(t, err)
	require.Equal(t, 1, bot.Class)
	require.InDelta(t, 0.85, bot.Probability, 1e-9)

	human, err := forest.Predict([]float64{0, 0, 11, 0})
	require.NoError(t, err)
	require.Equal(t, 0, human.Class)
	require.InDelta(t, 0.15, human.Probability, 1e-9)

	_, err = forest.Predict([]float64{1, 0})
	require.Error(t, err)
}

func TestParseForestRejectsInvalidArtifacts(t *testing.T) {
	_, err := ParseForest([]byte(`{"n_features": 4}`))
	require.Error(t, err)

	_, err = ParseForest([]byte(`{"n_features": 4, "trees": [{"nodes": [{"feature": 0, "threshold": 1, "left": 5, "right": 6, "probability": 0.3}]}]}`))
	require.Error(t, err)

	_, err = ParseForest([]byte(`{"n_features": 2, "trees": [{"nodes": [{"feature": 0, "threshold": 1, "left": -1, "right": -1, "probability": 1.7}]}]}`))
	require.Error(t, err)

	_, err = ParseForest([]byte(`not json`))
	require.Error(t, err)
}

func TestFileLoaderMissingArtifact(t *testing.T) {
	classifier, err := FileLoader(filepath.Join(t.TempDir(), "missing.json"))()
	require.NoError(t, err)
	require.Nil(t, classifier)

	classifier, err = FileLoader("")()
	require.NoError(t, err)
	require.Nil(t, classifier)
}

func TestModelHandleLoadsOnceAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forest.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleForest), 0o600))

	var loads int32
	loader := FileLoader(path)
	handle := NewModelHandle(func() (Classifier, error) {
		atomic.AddInt32(&loads, 1)
		return loader()
	}, zerolog.Nop())

	require.NotNil(t, handle.Classifier())
	require.NotNil(t, handle.Classifier())
	require.Equal(t, int32(1), atomic.LoadInt32(&loads))

	require.NoError(t, handle.Reload())
	require.Equal(t, int32(2), atomic.LoadInt32(&loads))
	require.NotNil(t, handle.Classifier())

	assessment := NewScorer(handle).Score(Features{GenericUsername: true, NameLength: 3})
	require.Equal(t, SourceClassifier, assessment.Source)
	require.Equal(t, 0.85, assessment.Score)
}

func TestModelHandleReloadFailureKeepsCurrent(t *testing.T) {
	forest, err := ParseForest([]byte(sampleForest))
	require.NoError(t, err)

	fail := false
	handle := NewModelHandle(func() (Classifier, error) {
		if fail {
			return nil, errors.New("corrupt artifact")
		}
		return forest, nil
	}, zerolog.Nop())

	require.Same(t, forest, handle.Classifier())

	fail = true
	require.Error(t, handle.Reload())
	require.Same(t, forest, handle.Classifier())
}

func TestModelHandleInitialLoadFailureFallsBack(t *testing.T) {
	handle := NewModelHandle(func() (Classifier, error) {
		return nil, errors.New("unreadable")
	}, zerolog.Nop())

	require.Nil(t, handle.Classifier())
	assessment := NewScorer(handle).Score(Features{NameLength: 2})
	require.Equal(t, SourceRules, assessment.Source)
}
