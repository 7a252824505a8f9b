package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/fslexpress/golang_services/internal/classification_service/app"
	"github.com/fslexpress/golang_services/internal/classification_service/domain"
	"github.com/fslexpress/golang_services/internal/core_domain"
)

// DefaultMaxUploadBytes bounds the multipart body of a predict request.
const DefaultMaxUploadBytes = 10 << 20

// ImageClassifier is implemented by the classification service.
type ImageClassifier interface {
	Classify(ctx context.Context, modelName string, image []byte) (*domain.Result, error)
}

type PredictHandler struct {
	classifier ImageClassifier
	maxUpload  int64
	logger     *slog.Logger
}

func NewPredictHandler(classifier ImageClassifier, maxUploadBytes int64, logger *slog.Logger) *PredictHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &PredictHandler{
		classifier: classifier,
		maxUpload:  maxUploadBytes,
		logger:     logger.With("handler", "predict"),
	}
}

func (h *PredictHandler) RegisterRoutes(r chi.Router) {
	r.Post("/predict/{model}", h.handlePredict)
}

func (h *PredictHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	model := chi.URLParam(r, "model")
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx), "model", model)

	image, err := h.readImage(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.WarnContext(ctx, "Upload exceeds limit", "limit", tooLarge.Limit)
			jsonError(w, logger, "Image too large", http.StatusRequestEntityTooLarge)
			return
		}
		logger.ErrorContext(ctx, "Failed to read upload", "error", err)
		jsonError(w, logger, app.MsgPredictionError, http.StatusInternalServerError)
		return
	}

	res, err := h.classifier.Classify(ctx, model, image)
	if err != nil {
		kind := core_domain.KindOf(err)
		status := statusForKind(kind)
		if status == http.StatusBadRequest {
			logger.WarnContext(ctx, "Prediction rejected", "kind", kind, "error", err)
		} else {
			logger.ErrorContext(ctx, "Prediction error", "kind", kind, "error", err)
		}
		jsonError(w, logger, predictMessage(kind), status)
		return
	}
	writeJSON(w, logger, http.StatusOK, PredictResponse{Label: res.Label, Confidence: res.Confidence})
}

// readImage returns the "image" form file, or nil when the request carries
// none. Only a body over the size limit or a broken read is an error.
func (h *PredictHandler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, nil
	}
	defer r.MultipartForm.RemoveAll()

	f, _, err := r.FormFile("image")
	if err != nil {
		return nil, nil
	}
	defer f.Close()
	return io.ReadAll(f)
}

func predictMessage(kind core_domain.Kind) string {
	switch kind {
	case core_domain.KindModelNotFound:
		return app.MsgInvalidModel
	case core_domain.KindValidation:
		return app.MsgNoImage
	case core_domain.KindDecodeError:
		return "Unsupported or corrupt image"
	default:
		return app.MsgPredictionError
	}
}
