package worker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/code-o-holic/ai-toolkit-datasets/internal/dataset"
	"github.com/code-o-holic/ai-toolkit-datasets/internal/domain"
)

// SettingsSource supplies the datasets root, resolved once per tick so a
// settings change takes effect on the next tick.
type SettingsSource interface {
	DatasetsRoot() string
}

// CaptionGenerator produces one caption for one image.
type CaptionGenerator interface {
	Generate(ctx context.Context, imagePath string, cfg domain.CaptionConfig) (string, error)
}

// Captioner is the background scan-and-caption loop. Each tick it walks the
// dataset directories for the first running dataset with an uncaptioned
// image, captions exactly one file, and persists recomputed progress.
// Processing one file per tick bounds tick latency to one backend call and
// lets a cancel (sidecar delete) land within a tick.
//
// Datasets are visited in sorted directory order and the first running one
// wins the tick, so an earlier dataset starves later ones until it reaches
// completed. Known fairness limitation, kept for compatibility.
type Captioner struct {
	settings  SettingsSource
	generator CaptionGenerator
	apiKey    string
	interval  time.Duration
	log       *logrus.Entry

	inFlight atomic.Bool
}

func NewCaptioner(settings SettingsSource, generator CaptionGenerator, apiKey string, interval time.Duration, log *logrus.Logger) *Captioner {
	if interval <= 0 {
		interval = time.Second
	}
	return &Captioner{
		settings:  settings,
		generator: generator,
		apiKey:    apiKey,
		interval:  interval,
		log:       log.WithField("component", "captioner"),
	}
}

// Start drives the loop on a fixed period until the context is cancelled.
// Each fire launches the tick asynchronously; if the previous tick is still
// in flight the fire is a no-op, so at most one tick ever runs at a time.
// That single-flight guard is the only concurrency control protecting the
// state sidecars.
func (c *Captioner) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.log.WithField("interval", c.interval.String()).Info("caption worker started")

	for {
		select {
		case <-ctx.Done():
			c.log.Info("caption worker stopped")
			return
		case <-ticker.C:
			if !c.inFlight.CompareAndSwap(false, true) {
				continue
			}
			go func() {
				defer c.inFlight.Store(false)
				defer func() {
					if r := recover(); r != nil {
						c.log.WithField("panic", r).Error("tick panicked, resuming next tick")
					}
				}()
				c.Tick(ctx)
			}()
		}
	}
}

// Tick runs one pass of the per-tick algorithm. Exported so tests and
// one-shot tooling can drive the loop without the ticker.
func (c *Captioner) Tick(ctx context.Context) {
	root := c.settings.DatasetsRoot()

	for _, name := range dataset.ListDatasetDirs(root) {
		dir := filepath.Join(root, name)

		state, ok := dataset.ReadState(dir)
		if !ok || state.Status != domain.CaptionStatusRunning {
			continue
		}

		next := dataset.FindNextUncaptioned(dir, dataset.ModeImages)
		if next == "" {
			// Nothing left: mark completed and give the rest of the tick
			// to the next dataset.
			state.Status = domain.CaptionStatusCompleted
			if err := dataset.WriteState(dir, state); err != nil {
				c.log.WithError(err).WithField("dataset", name).Error("persist completed state")
			}
			c.log.WithField("dataset", name).Info("captioning completed")
			continue
		}

		c.processFile(ctx, dir, name, next, state)
		return
	}
}

func (c *Captioner) processFile(ctx context.Context, dir, name, mediaPath string, state domain.CaptionState) {
	cfg := domain.CaptionConfig{
		Provider: state.Provider,
		BaseURL:  state.BaseURL,
		Model:    state.Model,
		Prompt:   state.Prompt,
		APIKey:   c.apiKey,
	}

	caption, err := c.generator.Generate(ctx, mediaPath, cfg)
	if err != nil {
		// Per-file failure: leave the file uncaptioned so the next tick
		// retries it naturally.
		c.log.WithError(err).WithFields(logrus.Fields{
			"dataset": name,
			"file":    filepath.Base(mediaPath),
		}).Warn("caption generation failed, will retry")
	} else if caption = strings.TrimSpace(caption); caption != "" {
		if werr := os.WriteFile(dataset.CaptionPath(mediaPath), []byte(caption), 0o644); werr != nil {
			c.log.WithError(werr).WithField("file", mediaPath).Error("write caption")
		}
	}

	st := dataset.ComputeStatus(dir, dataset.ModeImages)
	state.Total = st.Total
	state.Progress = st.Captioned
	if err := dataset.WriteState(dir, state); err != nil {
		c.log.WithError(err).WithField("dataset", name).Error("persist progress")
		return
	}

	c.log.WithFields(logrus.Fields{
		"dataset":  name,
		"file":     filepath.Base(mediaPath),
		"progress": st.Captioned,
		"total":    st.Total,
	}).Info("processed one file")
}
