package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/kimhsiao/leadbook/internal/models"
	"github.com/kimhsiao/leadbook/internal/services"
)

// LeadHandler handles lead operations.
type LeadHandler struct {
	leads *services.LeadService
}

// NewLeadHandler creates a new LeadHandler.
func NewLeadHandler(leads *services.LeadService) *LeadHandler {
	return &LeadHandler{leads: leads}
}

// LeadResponse is a lead with its current position.
type LeadResponse struct {
	Index int         `json:"index"`
	Lead  models.Lead `json:"lead"`
}

// ListResponse holds leads in list order.
type ListResponse struct {
	Items []LeadResponse `json:"items"`
	Total int            `json:"total"`
	Dirty bool           `json:"dirty"`
}

// UpdateRequest sets one field.
type UpdateRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// ListLeads handles GET /api/leads
func (h *LeadHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	var want models.LeadStatus
	filter := r.URL.Query().Get("status")
	if filter != "" {
		status, err := models.ParseLeadStatus(filter)
		if err != nil {
			writeError(w, err)
			return
		}
		want = status
	}

	leads := h.leads.List()
	items := make([]LeadResponse, 0, len(leads))
	for i, l := range leads {
		if filter != "" && l.Status != want {
			continue
		}
		items = append(items, LeadResponse{Index: i, Lead: l})
	}
	writeJSON(w, http.StatusOK, ListResponse{Items: items, Total: len(items), Dirty: h.leads.Dirty()})
}

// CreateLead handles POST /api/leads with a field-to-value object.
func (h *LeadHandler) CreateLead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var request map[string]string
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		badRequest(w, "Invalid request body: "+err.Error())
		return
	}

	values := make(map[models.Field]string, len(request))
	for k, v := range request {
		field, err := models.ParseField(k)
		if err != nil {
			writeError(w, err)
			return
		}
		values[field] = v
	}

	lead, index, err := h.leads.Create(values)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, LeadResponse{Index: index, Lead: lead})
}

// GetLead handles GET /api/leads/{id}
func (h *LeadHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	lead, index, err := h.leads.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LeadResponse{Index: index, Lead: lead})
}

// UpdateLead handles PATCH /api/leads/{id}
func (h *LeadHandler) UpdateLead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}

	field, value, ok := decodeUpdate(w, r)
	if !ok {
		return
	}
	lead, index, err := h.leads.Update(r.PathValue("id"), field, value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LeadResponse{Index: index, Lead: lead})
}

// DeleteLead handles DELETE /api/leads/{id}
func (h *LeadHandler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}

	if _, err := h.leads.Delete(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateLeadAt handles PATCH /api/leads/at/{index}
func (h *LeadHandler) UpdateLeadAt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}

	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	field, value, ok := decodeUpdate(w, r)
	if !ok {
		return
	}
	lead, err := h.leads.UpdateAt(index, field, value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LeadResponse{Index: index, Lead: lead})
}

// DeleteLeadAt handles DELETE /api/leads/at/{index}
func (h *LeadHandler) DeleteLeadAt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}

	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	if _, err := h.leads.DeleteAt(index); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Save handles POST /api/save
func (h *LeadHandler) Save(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	if err := h.leads.Save(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"saved":    true,
		"count":    h.leads.Len(),
		"location": h.leads.Location(),
	})
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		badRequest(w, "index must be an integer")
		return 0, false
	}
	return index, true
}

func decodeUpdate(w http.ResponseWriter, r *http.Request) (models.Field, string, bool) {
	var request UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		badRequest(w, "Invalid request body: "+err.Error())
		return "", "", false
	}
	field, err := models.ParseField(request.Field)
	if err != nil {
		writeError(w, err)
		return "", "", false
	}
	return field, request.Value, true
}
