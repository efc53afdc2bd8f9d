package aasist

import (
	"context"
	"os"

	"github.com/veridict/voiceguard-go/internal/conf"
	"github.com/veridict/voiceguard-go/internal/errors"
	"github.com/veridict/voiceguard-go/internal/weights"
)

// LoadFunc builds a scorer from one model configuration. The production
// loader resolves remote weights and constructs a TFLite interpreter; tests
// substitute fakes.
type LoadFunc func(ctx context.Context, cfg conf.ModelConfig) (Scorer, error)

// Registry is the read-only model roster built once at startup and shared by
// all requests without locking. A model that fails to load is excluded from
// the roster rather than failing the process: the service still answers
// requests, degrading to fewer models or to the quality-gate fallback.
type Registry struct {
	scorers   []Scorer
	byID      map[string]Scorer
	primaryID string
}

// NewRegistry loads every enabled model through load. Load failures are
// logged and the model is skipped.
func NewRegistry(ctx context.Context, settings *conf.Settings, load LoadFunc) *Registry {
	r := &Registry{
		byID:      make(map[string]Scorer),
		primaryID: settings.Models.Primary.ID,
	}

	for _, cfg := range []conf.ModelConfig{settings.Models.Primary, settings.Models.Secondary} {
		if !cfg.Enabled {
			logger.Info("model disabled by configuration", "model_id", cfg.ID)
			continue
		}
		scorer, err := load(ctx, cfg)
		if err != nil {
			logger.Error("model failed to load, excluding it from the roster",
				"model_id", cfg.ID,
				"error", err)
			continue
		}
		r.scorers = append(r.scorers, scorer)
		r.byID[scorer.ID()] = scorer
	}

	logger.Info("model registry initialized",
		"loaded", len(r.scorers),
		"primary_id", r.primaryID)
	return r
}

// Scorers returns the loaded scorers in configuration order, primary first
// when it loaded.
func (r *Registry) Scorers() []Scorer {
	return r.scorers
}

// PrimaryID returns the configured primary model identifier, whether or not
// that model loaded.
func (r *Registry) PrimaryID() string {
	return r.primaryID
}

// Get returns the scorer with the given model identifier.
func (r *Registry) Get(id string) (Scorer, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// Empty reports whether no model loaded at all.
func (r *Registry) Empty() bool {
	return len(r.scorers) == 0
}

// Close releases interpreter resources for scorers that hold any.
func (r *Registry) Close() {
	for _, s := range r.scorers {
		if closer, ok := s.(interface{ Delete() }); ok {
			closer.Delete()
		}
	}
}

// DefaultLoader returns the production loader: it resolves the model file
// through the weights cache when a remote URI is configured, reads it and
// builds a TFLite scorer.
func DefaultLoader(settings *conf.Settings, resolver *weights.Resolver) LoadFunc {
	return func(ctx context.Context, cfg conf.ModelConfig) (Scorer, error) {
		path := cfg.Path
		if cfg.URI != "" {
			resolved, err := resolver.Resolve(ctx, cfg.URI)
			if err != nil {
				return nil, err
			}
			path = resolved
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.New(err).
				Component("aasist").
				Category(errors.CategoryFileIO).
				ModelContext(cfg.ID).
				Context("path", path).
				Build()
		}
		return NewTFLiteScorer(cfg.ID, data, settings)
	}
}
