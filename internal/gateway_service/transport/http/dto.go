package http

import (
	assetdomain "github.com/fslexpress/golang_services/internal/asset_search_service/domain"
	maildomain "github.com/fslexpress/golang_services/internal/mail_delivery_service/domain"
)

// SearchResponse DTO for GET /api/search
type SearchResponse struct {
	PublicID *string       `json:"public_id"`
	Message  string        `json:"message"`
	AllFiles []AssetResult `json:"all_files"`
}

type AssetResult struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// SendOTPRequest DTO for POST /send-otp
type SendOTPRequest struct {
	To      string `json:"to" validate:"required"`
	OTP     string `json:"otp" validate:"required"`
	Subject string `json:"subject,omitempty" validate:"omitempty,max=200"`
}

// SendOTPResponse DTO
type SendOTPResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
	Message   string `json:"message"`
	Channel   string `json:"channel"`
}

// SendOTPErrorResponse is returned for every failed OTP request. Error,
// Hint and Attempts are only set on server-side failures.
type SendOTPErrorResponse struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	Error    string           `json:"error,omitempty"`
	Hint     string           `json:"hint,omitempty"`
	Attempts []AttemptSummary `json:"attempts,omitempty"`
}

type AttemptSummary struct {
	Channel string `json:"channel"`
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Error   string `json:"error"`
}

// PredictResponse DTO for POST /predict/{model}
type PredictResponse struct {
	Label      string `json:"label"`
	Confidence string `json:"confidence"`
}

// ErrorResponse is the generic {error} body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func toSearchResponse(m *assetdomain.Match) SearchResponse {
	resp := SearchResponse{
		Message:  "No match found",
		AllFiles: make([]AssetResult, 0, len(m.Assets)),
	}
	if m.Found() {
		id := m.PublicID
		resp.PublicID = &id
		resp.Message = "Match found"
	}
	for _, a := range m.Assets {
		resp.AllFiles = append(resp.AllFiles, AssetResult{PublicID: a.PublicID, URL: a.URL})
	}
	return resp
}

func toAttemptSummaries(attempts []maildomain.Attempt) []AttemptSummary {
	if len(attempts) == 0 {
		return nil
	}
	out := make([]AttemptSummary, 0, len(attempts))
	for _, a := range attempts {
		s := AttemptSummary{Channel: a.Channel, Stage: string(a.Stage), Kind: string(a.Kind)}
		if a.Err != nil {
			s.Error = a.Err.Error()
		}
		out = append(out, s)
	}
	return out
}
