package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mailflow/internal/csvparser"
	"mailflow/internal/db"
	"mailflow/internal/models"
)

const maxRecipientRows = 10000

type Handler struct {
	Store *db.Store
	Log   *zap.Logger
}

// Routes wires the campaign import and poll endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/campaigns", h.CreateCampaign)
	r.Get("/campaigns/status", h.QueueStatus)
	r.Get("/campaigns/{id}/status", h.CampaignStatus)
	return r
}

// CreateCampaign accepts a multipart form with campaign fields and a
// "recipients" CSV and queues the campaign for sending.
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ownerID, err := strconv.ParseInt(r.FormValue("owner_id"), 10, 64)
	if err != nil {
		http.Error(w, "owner_id must be an integer", http.StatusBadRequest)
		return
	}

	campaign := &models.Campaign{
		OwnerID:  ownerID,
		Name:     r.FormValue("name"),
		Subject:  r.FormValue("subject"),
		Template: r.FormValue("template"),
	}
	if campaign.Name == "" || campaign.Subject == "" || campaign.Template == "" {
		http.Error(w, "name, subject and template are required", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("recipients")
	if err != nil {
		http.Error(w, "recipients csv is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	recipients, err := csvparser.ParseRecipients(file, maxRecipientRows)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Store.CreateCampaign(r.Context(), campaign, recipients); err != nil {
		h.Log.Error("campaign creation failed", zap.Error(err))
		http.Error(w, "campaign creation failed", http.StatusInternalServerError)
		return
	}

	h.Log.Info("campaign created",
		zap.Int64("campaign_id", campaign.ID),
		zap.Int("recipients", len(recipients)),
	)

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"id":         campaign.ID,
		"recipients": len(recipients),
	})
}

// QueueStatus reports the queue-wide view: whether a campaign is actively
// processing, how many are queued and the earliest resume time.
func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	overview, err := h.Store.Overview(r.Context())
	if err != nil {
		h.Log.Error("queue overview failed", zap.Error(err))
		http.Error(w, "status unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(overview)
}

// CampaignStatus reports one campaign's status, projected directly from the
// queue entry the defer ledger writes.
func (h *Handler) CampaignStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "campaign id must be an integer", http.StatusBadRequest)
		return
	}

	detail, err := h.Store.CampaignStatus(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(detail)
}
