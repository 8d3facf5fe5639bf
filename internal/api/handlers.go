package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dennisdiepolder/monti/agentdesk/internal/order"
	"github.com/dennisdiepolder/monti/agentdesk/internal/outcome"
	"github.com/dennisdiepolder/monti/agentdesk/internal/session"
	"github.com/dennisdiepolder/monti/agentdesk/internal/types"
	"github.com/go-chi/chi/v5"
)

type statusResponse struct {
	Channel       types.ChannelStatus `json:"channel"`
	Live          bool                `json:"live"`
	LastHeartbeat *time.Time          `json:"lastHeartbeat,omitempty"`
	Session       session.State       `json:"session"`
	PendingAlerts int                 `json:"pendingAlerts"`
}

// statusHandler returns the live indicator and session state
func (api *API) statusHandler(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Session: api.session.Snapshot().State}
	if api.channel != nil {
		resp.Channel = api.channel.Status()
		resp.Live = resp.Channel.Live()
		if hb := api.channel.LastHeartbeat(); !hb.IsZero() {
			resp.LastHeartbeat = &hb
		}
	}
	if api.alerts != nil {
		resp.PendingAlerts = len(api.alerts.Pending())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (api *API) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.session.Snapshot())
}

type startRequest struct {
	LeadID int `json:"lead_id" validate:"required,gt=0"`
}

func (api *API) startSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !api.decode(w, r, &req) {
		return
	}
	if err := api.session.StartCallForLead(r.Context(), req.LeadID); err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.session.Snapshot())
}

type notesRequest struct {
	Notes string `json:"notes" validate:"max=5000"`
}

func (api *API) notesHandler(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if !api.decode(w, r, &req) {
		return
	}
	if err := api.session.UpdateNotes(req.Notes); err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.session.Snapshot())
}

type productPayload struct {
	ID        int             `json:"id" validate:"required,gt=0"`
	Name      string          `json:"name" validate:"required"`
	BasePrice float64         `json:"base_price" validate:"gte=0"`
	Options   []order.Option  `json:"options"`
	Variants  []order.Variant `json:"variants"`
}

type addLineRequest struct {
	Product   productPayload    `json:"product"`
	Selection map[string]string `json:"selection"`
	Quantity  int               `json:"quantity" validate:"required,gt=0,lte=1000"`
}

func (api *API) addLineHandler(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if !api.decode(w, r, &req) {
		return
	}

	product := order.Product{
		ID:        req.Product.ID,
		Name:      req.Product.Name,
		BasePrice: req.Product.BasePrice,
		Options:   req.Product.Options,
		Variants:  req.Product.Variants,
	}
	if _, err := api.session.AddLine(product, req.Selection, req.Quantity); err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.session.Snapshot())
}

type quantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0,lte=1000"`
}

func (api *API) updateLineHandler(w http.ResponseWriter, r *http.Request) {
	index, ok := lineIndex(w, r)
	if !ok {
		return
	}
	var req quantityRequest
	if !api.decode(w, r, &req) {
		return
	}
	if err := api.session.SetQuantity(index, req.Quantity); err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.session.Snapshot())
}

func (api *API) removeLineHandler(w http.ResponseWriter, r *http.Request) {
	index, ok := lineIndex(w, r)
	if !ok {
		return
	}
	if err := api.session.RemoveLine(index); err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.session.Snapshot())
}

type logisticsRequest struct {
	City     string `json:"city" validate:"max=120"`
	Address  string `json:"address" validate:"max=500"`
	Courier  string `json:"courier" validate:"max=60"`
	Exchange bool   `json:"exchange"`
}

func (api *API) logisticsHandler(w http.ResponseWriter, r *http.Request) {
	var req logisticsRequest
	if !api.decode(w, r, &req) {
		return
	}
	err := api.session.SetLogistics(order.Logistics{
		City:     req.City,
		Address:  req.Address,
		Courier:  req.Courier,
		Exchange: req.Exchange,
	})
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.session.Snapshot())
}

func (api *API) endSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.session.End(); err != nil {
		api.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resolveRequest struct {
	Outcome       types.Outcome `json:"outcome" validate:"required,oneof=CONFIRMED CALLBACK NO_ANSWER CANCELLED WRONG_NUMBER"`
	Reason        string        `json:"cancellation_reason" validate:"max=500"`
	CallbackAt    *time.Time    `json:"callback_time"`
	CallbackNotes string        `json:"callback_notes" validate:"max=500"`
}

func (api *API) resolveHandler(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !api.decode(w, r, &req) {
		return
	}

	res := session.Resolution{
		Outcome:       req.Outcome,
		Reason:        req.Reason,
		CallbackNotes: req.CallbackNotes,
	}
	if req.CallbackAt != nil {
		res.CallbackAt = *req.CallbackAt
	}

	var leadID int
	if snap := api.session.Snapshot(); snap.Lead != nil {
		leadID = snap.Lead.ID
	}

	report, err := api.session.Resolve(r.Context(), res)
	var se *outcome.StepError
	if errors.As(err, &se) && se.Partial() {
		// The call is logged; the agent must see exactly what is missing
		api.logger.Error().Err(err).Int("lead_id", leadID).Msg("resolution partially applied")
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "order_not_created",
			Message: err.Error(),
			Step:    string(se.Step),
			Report:  &report,
		})
		return
	}
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

const scheduleTimeout = 30 * time.Second

type scheduleRequest struct {
	LeadID     int       `json:"lead_id" validate:"required,gt=0"`
	CallbackAt time.Time `json:"callback_time" validate:"required"`
	Notes      string    `json:"callback_notes" validate:"max=500"`
}

func (api *API) scheduleCallbackHandler(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !api.decode(w, r, &req) {
		return
	}

	lead, ok := api.queue.Lead(req.LeadID)
	if !ok {
		var err error
		if lead, err = api.leads.GetLead(r.Context(), req.LeadID); err != nil {
			api.writeError(w, err)
			return
		}
	}

	// Once sent, the scheduling request outlives a dropped browser
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), scheduleTimeout)
	defer cancel()

	plan, err := api.scheduler.ScheduleFromQueue(ctx, lead, req.CallbackAt, req.Notes)
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (api *API) listAlertsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.alerts.Pending())
}

// callAlertHandler runs the alert's "Call Now" action
func (api *API) callAlertHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.alerts.Invoke(r.Context(), chi.URLParam(r, "id")); err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.session.Snapshot())
}

func (api *API) dismissAlertHandler(w http.ResponseWriter, r *http.Request) {
	if !api.alerts.Dismiss(chi.URLParam(r, "id")) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "alert_not_found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) queueHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.queue.Snapshot())
}

func (api *API) refreshQueueHandler(w http.ResponseWriter, r *http.Request) {
	api.queue.RequestRefresh()
	w.WriteHeader(http.StatusAccepted)
}

type combinationsRequest struct {
	Options []order.Option `json:"options"`
}

// combinationsHandler expands option lists into a variant matrix
func (api *API) combinationsHandler(w http.ResponseWriter, r *http.Request) {
	var req combinationsRequest
	if !api.decode(w, r, &req) {
		return
	}
	combos := order.Combinations(req.Options)
	if combos == nil {
		combos = []order.Combination{}
	}
	writeJSON(w, http.StatusOK, combos)
}

func lineIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "line index must be an integer",
		})
		return 0, false
	}
	return index, true
}

// listFollowupsHandler returns confirmed calls whose order still has to be
// entered by hand
func (api *API) listFollowupsHandler(w http.ResponseWriter, r *http.Request) {
	records, err := api.followups.GetFollowups(r.Context(), api.agentID)
	if err != nil {
		api.writeError(w, err)
		return
	}
	if records == nil {
		records = []types.Followup{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (api *API) deleteFollowupHandler(w http.ResponseWriter, r *http.Request) {
	// Record ids carry '#' and ':' so clients send them escaped
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "malformed record id"})
		return
	}
	if err := api.followups.DeleteFollowup(r.Context(), api.agentID, id); err != nil {
		api.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
