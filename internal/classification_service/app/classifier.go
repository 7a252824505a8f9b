package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fslexpress/golang_services/internal/classification_service/domain"
	"github.com/fslexpress/golang_services/internal/classification_service/imaging"
	"github.com/fslexpress/golang_services/internal/core_domain"
)

// Client-facing messages, kept from the original API.
const (
	MsgInvalidModel    = "Invalid model"
	MsgNoImage         = "No image uploaded"
	MsgPredictionError = "Prediction failed"
)

// Classifier runs image classification against cached models.
type Classifier struct {
	cache   *ModelCache
	buffers sync.Pool
	logger  *slog.Logger
}

func NewClassifier(cache *ModelCache, logger *slog.Logger) *Classifier {
	return &Classifier{
		cache:  cache,
		logger: logger.With("service", "classification"),
	}
}

// Models lists the model names the classifier accepts.
func (c *Classifier) Models() []string { return c.cache.Names() }

// Classify predicts the label of image with the named model.
func (c *Classifier) Classify(ctx context.Context, modelName string, image []byte) (*domain.Result, error) {
	const op = "classify"
	if !c.cache.Known(modelName) {
		predictionsCounter.WithLabelValues("unknown", "invalid_model").Inc()
		return nil, core_domain.Errorf(core_domain.KindModelNotFound, op, "unknown model %q", modelName)
	}
	if len(image) == 0 {
		predictionsCounter.WithLabelValues(modelName, "no_image").Inc()
		return nil, core_domain.Errorf(core_domain.KindValidation, op, MsgNoImage)
	}

	img, format, err := imaging.Decode(image)
	if err != nil {
		predictionsCounter.WithLabelValues(modelName, "decode_error").Inc()
		return nil, core_domain.E(core_domain.KindDecodeError, op, err)
	}

	lm, err := c.cache.Get(ctx, modelName)
	if err != nil {
		predictionsCounter.WithLabelValues(modelName, "load_error").Inc()
		return nil, err
	}

	h, w := domain.InputSize, domain.InputSize
	bufp := c.buffer(imaging.TensorLen(h, w))
	defer c.buffers.Put(bufp)
	*bufp = imaging.ToTensor(img, h, w, *bufp)

	scores, err := lm.Model.Predict(*bufp)
	if err != nil {
		predictionsCounter.WithLabelValues(modelName, "error").Inc()
		return nil, core_domain.E(core_domain.KindUnknown, op, err)
	}
	res, err := domain.NewResult(scores, lm.Labels)
	if err != nil {
		predictionsCounter.WithLabelValues(modelName, "error").Inc()
		return nil, core_domain.E(core_domain.KindUnknown, op, err)
	}

	predictionsCounter.WithLabelValues(modelName, "success").Inc()
	c.logger.DebugContext(ctx, "Prediction complete", "model", modelName, "format", format, "label", res.Label, "confidence", res.Confidence)
	return res, nil
}

func (c *Classifier) buffer(n int) *[]float32 {
	if v, ok := c.buffers.Get().(*[]float32); ok && cap(*v) >= n {
		return v
	}
	b := make([]float32, n)
	return &b
}
