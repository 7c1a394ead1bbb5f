package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thijsken/gmsnederland/internal/application"
	"github.com/thijsken/gmsnederland/internal/domain"
)

const apiKeyHeader = "x-api-key"

type contextKey string

const ownerKey contextKey = "owner"

const operatorTokenTTL = 12 * time.Hour

type Handler struct {
	service *application.DispatchService
}

func NewRouter(service *application.DispatchService) http.Handler {
	h := &Handler{service: service}
	r := chi.NewRouter()
	r.Use(instrument)

	r.Get("/health", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Post("/apikey/generate", h.handleGenerateAPIKey)
		api.Post("/auth/login", h.handleLogin)

		api.With(h.requireOwner).Post("/meldingen", h.handleCreateMelding)
		api.With(h.requireOwner).Get("/meldingen", h.handleListMeldingen)
		api.With(h.requireOwner).Patch("/meldingen/{id}/status", h.handleSetMeldingStatus)

		api.With(h.requireOwner).Post("/units", h.handleUpsertUnit)
		api.With(h.requireOwner).Get("/units", h.handleListUnits)

		api.With(h.requireOwner).Post("/luchtalarm/actie", h.handlePostSirenAction)
		api.With(h.requireOwner).Get("/luchtalarm/actie", h.handleTakeSirenAction)

		api.With(h.requireOwner).Post("/posten/alarm", h.handlePostPostAlarm)
		api.With(h.requireOwner).Get("/posten/alarm", h.handleTakePostAlarm)

		api.With(h.requireOwner).Post("/amber", h.handleCreateAmberAlert)
		api.With(h.requireOwner).Get("/amber", h.handleListAmberAlerts)

		api.With(h.requireOwner).Post("/nlalert", h.handleCreateNLAlert)
		api.With(h.requireOwner).Get("/nlalert", h.handleListNLAlerts)

		api.With(h.requireOwner).Post("/anpr", h.handleScanPlate)
	})

	return r
}

// requireOwner resolves the inbound credential (x-api-key first, then a
// bearer token) to an owner id and attaches it to the request context.
// Handlers behind this middleware never see an unresolved request.
func (h *Handler) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := h.resolveCredential(r)
		if err != nil {
			respondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, ownerID)))
	})
}

func (h *Handler) resolveCredential(r *http.Request) (string, error) {
	if key := strings.TrimSpace(r.Header.Get(apiKeyHeader)); key != "" {
		return h.service.ResolveAPIKey(r.Context(), key)
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[7:])
		return h.service.ResolveBearerToken(r.Context(), token)
	}

	return "", domain.ErrMissingCredential
}

func ownerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey).(string)
	return owner
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type generateAPIKeyRequest struct {
	OwnerID  string `json:"ownerId"`
	ServerID string `json:"serverId"`
}

func (h *Handler) handleGenerateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req generateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "ongeldige payload")
		return
	}
	apiKey, err := h.service.GenerateAPIKey(r.Context(), req.OwnerID, req.ServerID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"apiKey": apiKey})
}

type loginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	TokenName string `json:"tokenName"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "ongeldige payload")
		return
	}
	token, err := h.service.LoginOperator(r.Context(), req.Email, req.Password, req.TokenName, operatorTokenTTL)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "ongeldige inloggegevens")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}

func (h *Handler) handleCreateMelding(w http.ResponseWriter, r *http.Request) {
	var req application.MeldingInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "ongeldige payload")
		return
	}
	melding, err := h.service.SubmitMelding(r.Context(), ownerFromContext(r.Context()), req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "melding ontvangen", "data": melding})
}

func (h *Handler) handleListMeldingen(w http.ResponseWriter, r *http.Request) {
	meldingen, err := h.service.ListMeldingen(r.Context(), ownerFromContext(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meldingen)
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleSetMeldingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "ongeldig melding id")
		return
	}
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "ongeldige payload")
		return
	}
	melding, err := h.service.SetMeldingStatus(r.Context(), ownerFromContext(r.Context()), uint(id), req.Status)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "status bijgewerkt", "data": melding})
}

func (h *Handler) handleUpsertUnit(w http.ResponseWriter, r *http.Request) {
	var req application.UnitInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "ongeldige payload")
		return
	}
	unit, err := h.service.UpsertUnit(r.Context(), ownerFromContext(r.Context()), req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "eenheid opgeslagen", "data": unit})
}

func (h *Handler) handleListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.service.ListUnits(r.Context(), ownerFromContext(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, units)
}

func (h *Handler) handlePostSirenAction(w http.ResponseWriter, r *http.Request) {
	var req domain.SirenAction
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "ongeldige payload")
		return
	}
	if err := h.service.PostSirenAction(ownerFromContext(r.Context()), req); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "actie in wachtrij"})
}

func (h *Handler) handleTakeSirenAction(w http.ResponseWriter, r *http.Request) {
	action, ok := h.service.TakeSirenAction(ownerFromContext(r.Context()))
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (h *Handler) handlePostPostAlarm(w http.ResponseWriter, r *http.Request) {
	var req domain.PostAlarm
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "ongeldige payload")
		return
	}
	if err := h.service.PostPostAlarm(ownerFromContext(r.Context()), req); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "alarm in wachtrij"})
}

func (h *Handler) handleTakePostAlarm(w http.ResponseWriter, r *http.Request) {
	alarm, ok := h.service.TakePostAlarm(ownerFromContext(r.Context()))
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, alarm)
}

type amberAlertRequest struct {
	Name        string `json:"name"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

func (h *Handler) handleCreateAmberAlert(w http.ResponseWriter, r *http.Request) {
	var req amberAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "ongeldige payload")
		return
	}
	alert, err := h.service.CreateAmberAlert(r.Context(), ownerFromContext(r.Context()), req.Name, req.Location, req.Description)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "amber alert opgeslagen", "data": alert})
}

func (h *Handler) handleListAmberAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.ListAmberAlerts(r.Context(), ownerFromContext(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

type nlAlertRequest struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Location string `json:"location"`
}

func (h *Handler) handleCreateNLAlert(w http.ResponseWriter, r *http.Request) {
	var req nlAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "ongeldige payload")
		return
	}
	alert, err := h.service.CreateNLAlert(r.Context(), ownerFromContext(r.Context()), req.Title, req.Message, req.Location)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "nl-alert opgeslagen", "data": alert})
}

func (h *Handler) handleListNLAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.ListNLAlerts(r.Context(), ownerFromContext(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

type anprRequest struct {
	Plate    string `json:"plate"`
	Location string `json:"location"`
}

func (h *Handler) handleScanPlate(w http.ResponseWriter, r *http.Request) {
	var req anprRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "ongeldige payload")
		return
	}
	melding, hit, err := h.service.ScanPlate(r.Context(), ownerFromContext(r.Context()), req.Plate, req.Location)
	if err != nil {
		respondError(w, err)
		return
	}
	if !hit {
		writeJSON(w, http.StatusOK, map[string]any{"message": "kenteken gescand, geen hit"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "verdacht voertuig gemeld", "data": melding})
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrMissingCredential):
		writeMessage(w, http.StatusUnauthorized, "API key ontbreekt")
	case errors.Is(err, domain.ErrInvalidCredential):
		writeMessage(w, http.StatusForbidden, "ongeldige credential")
	case errors.Is(err, domain.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "geen toegang tot deze melding")
	case errors.Is(err, domain.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "melding niet gevonden")
	default:
		writeMessage(w, http.StatusInternalServerError, "interne fout")
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"message": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
