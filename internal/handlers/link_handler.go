package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jmdto/linkshort/internal/auth"
	"github.com/jmdto/linkshort/internal/models"
	"github.com/jmdto/linkshort/internal/services"
)

// CreateLinkRequest is the request body for creating a link.
type CreateLinkRequest struct {
	LongURL    string `json:"long_url"`
	CustomCode string `json:"custom_code,omitempty"`
}

// UpdateLinkRequest is the request body for updating a link.
type UpdateLinkRequest struct {
	LongURL string `json:"long_url"`
}

// CreateVariantRequest is the request body for creating a variant.
type CreateVariantRequest struct {
	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	UTMTerm     string `json:"utm_term,omitempty"`
	UTMContent  string `json:"utm_content,omitempty"`
}

// LinkResponse is a link with its public short URL.
type LinkResponse struct {
	models.Link
	ShortURL string `json:"short_url"`
}

// LinkHandler handles the link management API.
type LinkHandler struct {
	service *services.LinkService
}

// NewLinkHandler creates a LinkHandler.
func NewLinkHandler(svc *services.LinkService) *LinkHandler {
	return &LinkHandler{service: svc}
}

// Create handles POST /api/v1/links.
func (h *LinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	link, err := h.service.Create(r.Context(), caller, services.CreateLinkRequest{
		LongURL:    req.LongURL,
		CustomCode: req.CustomCode,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toResponse(link))
}

// List handles GET /api/v1/links.
func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	links, err := h.service.List(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}

	responses := make([]LinkResponse, 0, len(links))
	for i := range links {
		responses = append(responses, *h.toResponse(&links[i]))
	}
	writeJSON(w, http.StatusOK, map[string][]LinkResponse{"links": responses})
}

// Update handles PUT /api/v1/links/{id}.
func (h *LinkHandler) Update(w http.ResponseWriter, r *http.Request, linkID string) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req UpdateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	link, err := h.service.Update(r.Context(), caller, linkID, req.LongURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(link))
}

// Delete handles DELETE /api/v1/links/{id}.
func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request, linkID string) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.Delete(r.Context(), caller, linkID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateVariant handles POST /api/v1/links/{id}/variants.
func (h *LinkHandler) CreateVariant(w http.ResponseWriter, r *http.Request, linkID string) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateVariantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	variant, err := h.service.CreateVariant(r.Context(), caller, services.CreateVariantRequest{
		LinkID:      linkID,
		UTMSource:   req.UTMSource,
		UTMMedium:   req.UTMMedium,
		UTMCampaign: req.UTMCampaign,
		UTMTerm:     req.UTMTerm,
		UTMContent:  req.UTMContent,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, variant)
}

// DeleteVariant handles DELETE /api/v1/variants/{id}.
func (h *LinkHandler) DeleteVariant(w http.ResponseWriter, r *http.Request, variantID string) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.DeleteVariant(r.Context(), caller, variantID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LinkHandler) toResponse(link *models.Link) *LinkResponse {
	return &LinkResponse{
		Link:     *link,
		ShortURL: h.service.ShortURL(link.ShortCode),
	}
}
