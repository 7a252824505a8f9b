package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fslexpress/golang_services/internal/classification_service/domain"
	"github.com/fslexpress/golang_services/internal/classification_service/runtime"
	"github.com/fslexpress/golang_services/internal/core_domain"
)

// LoadedModel is an immutable cache entry shared by all requests.
type LoadedModel struct {
	Name   string
	Model  domain.Model
	Labels []string
}

// Loader reads one model from disk.
type Loader func(spec domain.ModelSpec) (*LoadedModel, error)

// RuntimeLoader loads TF.js layers models and their metadata.json labels.
func RuntimeLoader(spec domain.ModelSpec) (*LoadedModel, error) {
	m, err := runtime.Load(spec.ModelPath)
	if err != nil {
		return nil, err
	}
	labels, err := runtime.LoadLabels(spec.MetadataPath)
	if err != nil {
		return nil, err
	}
	return &LoadedModel{Name: spec.Name, Model: m, Labels: labels}, nil
}

// ModelSpecs builds the registry for names under dir: dir/<name>/model.json
// and dir/<name>/metadata.json.
func ModelSpecs(dir string, names []string) []domain.ModelSpec {
	specs := make([]domain.ModelSpec, 0, len(names))
	for _, n := range names {
		specs = append(specs, domain.ModelSpec{
			Name:         n,
			ModelPath:    filepath.Join(dir, n, "model.json"),
			MetadataPath: filepath.Join(dir, n, "metadata.json"),
		})
	}
	return specs
}

// ModelCache loads each registered model at most once at a time and keeps
// successful loads for the life of the process. Failed loads are not
// cached, so a later request retries.
type ModelCache struct {
	specs   map[string]domain.ModelSpec
	loader  Loader
	entries sync.Map // name -> *LoadedModel
	group   singleflight.Group
	logger  *slog.Logger
}

func NewModelCache(specs []domain.ModelSpec, loader Loader, logger *slog.Logger) *ModelCache {
	if loader == nil {
		loader = RuntimeLoader
	}
	byName := make(map[string]domain.ModelSpec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}
	return &ModelCache{
		specs:  byName,
		loader: loader,
		logger: logger.With("component", "model_cache"),
	}
}

// Known reports whether name is a registered model.
func (c *ModelCache) Known(name string) bool {
	_, ok := c.specs[name]
	return ok
}

// Names returns the registered model names, sorted.
func (c *ModelCache) Names() []string {
	out := make([]string, 0, len(c.specs))
	for n := range c.specs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Loaded reports whether name currently has a cache entry.
func (c *ModelCache) Loaded(name string) bool {
	_, ok := c.entries.Load(name)
	return ok
}

// Get returns the model, loading it on first use. Concurrent callers for the
// same name share one load. An unregistered name fails with
// KindModelNotFound and leaves the cache untouched.
func (c *ModelCache) Get(ctx context.Context, name string) (*LoadedModel, error) {
	spec, ok := c.specs[name]
	if !ok {
		return nil, core_domain.Errorf(core_domain.KindModelNotFound, "model cache", "unknown model %q", name)
	}
	if v, ok := c.entries.Load(name); ok {
		return v.(*LoadedModel), nil
	}

	ch := c.group.DoChan(name, func() (any, error) {
		if v, ok := c.entries.Load(name); ok {
			return v, nil
		}
		start := time.Now()
		m, err := c.loader(spec)
		if err == nil {
			err = checkInputSize(m.Model)
		}
		modelLoadDurationHist.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil {
			modelLoadsCounter.WithLabelValues(name, "error").Inc()
			c.logger.Error("Error loading model", "model", name, "path", spec.ModelPath, "error", err)
			return nil, fmt.Errorf("load model %s: %w", name, err)
		}
		modelLoadsCounter.WithLabelValues(name, "success").Inc()
		c.entries.Store(name, m)
		c.logger.Info("Model loaded", "model", name, "labels", len(m.Labels), "duration_ms", time.Since(start).Milliseconds())
		return m, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*LoadedModel), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// checkInputSize rejects models that cannot take a domain.InputSize square
// RGB image.
func checkInputSize(m domain.Model) error {
	if h, w := m.InputSize(); h != domain.InputSize || w != domain.InputSize {
		return fmt.Errorf("model expects %dx%d input, want %dx%d", h, w, domain.InputSize, domain.InputSize)
	}
	return nil
}

// Warm loads every registered model. Failures are logged and returned
// joined; models that loaded stay cached.
func (c *ModelCache) Warm(ctx context.Context) error {
	var errs []error
	for _, name := range c.Names() {
		if _, err := c.Get(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
