package risk

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Loader produces a classifier. Returning (nil, nil) means none is configured.
type Loader func() (Classifier, error)

type classifierSlot struct {
	classifier Classifier
}

// ModelHandle shares one classifier across all requests. The first call to
// Classifier loads it; Reload swaps in a fresh copy and keeps the old one on failure.
type ModelHandle struct {
	load    Loader
	once    sync.Once
	reload  sync.Mutex
	current atomic.Pointer[classifierSlot]
	logger  zerolog.Logger
}

// NewModelHandle constructs a lazily initialised handle.
func NewModelHandle(load Loader, logger zerolog.Logger) *ModelHandle {
	return &ModelHandle{
		load:   load,
		logger: logger.With().Str("component", "risk_model").Logger(),
	}
}

// Classifier returns the shared classifier, or nil when none is available.
func (h *ModelHandle) Classifier() Classifier {
	if h == nil {
		return nil
	}
	h.once.Do(func() {
		classifier, err := h.load()
		if err != nil {
			h.logger.Warn().Err(err).Msg("risk classifier unavailable, using rule-based scoring")
			classifier = nil
		}
		h.current.Store(&classifierSlot{classifier: classifier})
	})

	slot := h.current.Load()
	if slot == nil {
		return nil
	}
	return slot.classifier
}

// Reload reloads the artifact. On error the previously loaded classifier stays in place.
func (h *ModelHandle) Reload() error {
	h.reload.Lock()
	defer h.reload.Unlock()

	// Make sure a later first call to Classifier does not overwrite the reloaded value.
	h.Classifier()

	classifier, err := h.load()
	if err != nil {
		h.logger.Error().Err(err).Msg("risk classifier reload failed")
		return err
	}
	h.current.Store(&classifierSlot{classifier: classifier})
	h.logger.Info().Bool("classifier_loaded", classifier != nil).Msg("risk classifier reloaded")
	return nil
}
