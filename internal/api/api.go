package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dennisdiepolder/monti/agentdesk/internal/order"
	"github.com/dennisdiepolder/monti/agentdesk/internal/outcome"
	"github.com/dennisdiepolder/monti/agentdesk/internal/session"
	"github.com/dennisdiepolder/monti/agentdesk/internal/storage"
	"github.com/dennisdiepolder/monti/agentdesk/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// SessionController is the call session surface exposed over HTTP
type SessionController interface {
	Snapshot() session.Snapshot
	StartCallForLead(ctx context.Context, leadID int) error
	UpdateNotes(text string) error
	AddLine(p order.Product, selection map[string]string, quantity int) (order.Line, error)
	RemoveLine(index int) error
	SetQuantity(index, quantity int) error
	SetLogistics(l order.Logistics) error
	End() error
	Resolve(ctx context.Context, res session.Resolution) (outcome.Report, error)
}

// Scheduler books callbacks from the idle queue
type Scheduler interface {
	ScheduleFromQueue(ctx context.Context, lead types.Lead, at time.Time, notes string) (types.CallbackSchedule, error)
}

// AlertInbox holds undismissed callback alerts
type AlertInbox interface {
	Pending() []types.Alert
	Invoke(ctx context.Context, alertID string) error
	Dismiss(alertID string) bool
}

// Queue is the cached lead queue
type Queue interface {
	Snapshot() types.QueueSnapshot
	Lead(id int) (types.Lead, bool)
	RequestRefresh()
}

// LeadSource fetches a lead that is not in the cached queue
type LeadSource interface {
	GetLead(ctx context.Context, leadID int) (types.Lead, error)
}

// ChannelState reports the notification channel status
type ChannelState interface {
	Status() types.ChannelStatus
	LastHeartbeat() time.Time
}

// API serves the agent workspace endpoints
type API struct {
	session   SessionController
	scheduler Scheduler
	alerts    AlertInbox
	queue     Queue
	leads     LeadSource
	channel   ChannelState
	followups storage.Store
	agentID   string
	validator *validator.Validate
	logger    zerolog.Logger
}

// Deps bundles the collaborators of the API
type Deps struct {
	Session   SessionController
	Scheduler Scheduler
	Alerts    AlertInbox
	Queue     Queue
	Leads     LeadSource
	Channel   ChannelState
	Followups storage.Store
	AgentID   string
}

// NewAPI creates the workspace API
func NewAPI(deps Deps, logger zerolog.Logger) *API {
	if deps.Followups == nil {
		deps.Followups = storage.NewNoopStore()
	}
	return &API{
		session:   deps.Session,
		scheduler: deps.Scheduler,
		alerts:    deps.Alerts,
		queue:     deps.Queue,
		leads:     deps.Leads,
		channel:   deps.Channel,
		followups: deps.Followups,
		agentID:   deps.AgentID,
		validator: validator.New(),
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// SetupRoutes mounts the workspace routes under /api
func (api *API) SetupRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", api.statusHandler)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", api.getSessionHandler)
			r.Post("/start", api.startSessionHandler)
			r.Put("/notes", api.notesHandler)
			r.Post("/lines", api.addLineHandler)
			r.Put("/lines/{index}", api.updateLineHandler)
			r.Delete("/lines/{index}", api.removeLineHandler)
			r.Put("/logistics", api.logisticsHandler)
			r.Post("/end", api.endSessionHandler)
			r.Post("/resolve", api.resolveHandler)
		})

		r.Post("/callbacks", api.scheduleCallbackHandler)

		r.Get("/alerts", api.listAlertsHandler)
		r.Post("/alerts/{id}/call", api.callAlertHandler)
		r.Delete("/alerts/{id}", api.dismissAlertHandler)

		r.Get("/queue", api.queueHandler)
		r.Post("/queue/refresh", api.refreshQueueHandler)

		r.Get("/followups", api.listFollowupsHandler)
		r.Delete("/followups/{id}", api.deleteFollowupHandler)

		r.Post("/variants/combinations", api.combinationsHandler)
	})
}

// ErrorResponse is the body of every non-2xx answer
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Step    string            `json:"step,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Report  *outcome.Report   `json:"report,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// decode reads and validates a JSON body; it writes the error response itself
func (api *API) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
		return false
	}
	if err := api.validator.Struct(v); err != nil {
		api.writeError(w, err)
		return false
	}
	return true
}
