package outcome

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dennisdiepolder/monti/agentdesk/internal/metrics"
	"github.com/dennisdiepolder/monti/agentdesk/internal/order"
	"github.com/dennisdiepolder/monti/agentdesk/internal/schedule"
	"github.com/dennisdiepolder/monti/agentdesk/internal/storage"
	"github.com/dennisdiepolder/monti/agentdesk/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Backend is the CRM surface the resolver writes to
type Backend interface {
	LogCall(ctx context.Context, log types.CallLog) error
	CreateOrder(ctx context.Context, req types.OrderRequest, idempotencyKey string) (types.OrderCreated, error)
	ScheduleCallback(ctx context.Context, leadID int, req types.CallbackRequest) error
}

// Refresher is asked to refetch the lead queue; it must not block
type Refresher interface {
	RequestRefresh()
}

// CallbackClearer is implemented by refreshers that can drop a settled
// callback from their local view before the refetch completes
type CallbackClearer interface {
	ClearCallback(leadID int)
}

// Request is everything needed to resolve one call
type Request struct {
	Lead     types.Lead
	Outcome  types.Outcome
	Duration time.Duration
	Notes    string

	// Reason is required for CANCELLED
	Reason string

	// CallbackAt is required for CALLBACK
	CallbackAt    time.Time
	CallbackNotes string

	Lines     []order.Line
	Logistics order.Logistics
}

// Report lists the steps that were applied
type Report struct {
	Outcome          types.Outcome           `json:"outcome"`
	CallLogged       bool                    `json:"callLogged"`
	OrderCreated     bool                    `json:"orderCreated"`
	Order            *types.OrderCreated     `json:"order,omitempty"`
	Callback         *types.CallbackSchedule `json:"callback,omitempty"`
	CallbackCleared  bool                    `json:"callbackCleared"`
	FollowupRecorded bool                    `json:"followupRecorded"`
	DurationSeconds  int                     `json:"durationSeconds"`
}

// Resolver performs the ordered side effects of a call outcome
type Resolver struct {
	backend   Backend
	store     storage.Store
	refresher Refresher
	rates     order.Rates
	agentID   string
	logger    zerolog.Logger
	now       func() time.Time
}

// NewResolver creates a resolver; store and refresher may be nil
func NewResolver(backend Backend, store storage.Store, refresher Refresher, rates order.Rates, agentID int, logger zerolog.Logger) *Resolver {
	if store == nil {
		store = storage.NewNoopStore()
	}
	return &Resolver{
		backend:   backend,
		store:     store,
		refresher: refresher,
		rates:     rates,
		agentID:   strconv.Itoa(agentID),
		logger:    logger.With().Str("component", "outcome").Logger(),
		now:       time.Now,
	}
}

// SetRefresher wires the queue refresh target
func (r *Resolver) SetRefresher(refresher Refresher) {
	r.refresher = refresher
}

// Validate rejects a request locally before any network call
func (r *Resolver) Validate(req Request) error {
	if !req.Outcome.Valid() {
		return fmt.Errorf("%w %q", ErrInvalidOutcome, req.Outcome)
	}

	switch req.Outcome {
	case types.OutcomeCallback:
		if _, err := schedule.Plan(req.Lead, req.CallbackAt, req.CallbackNotes); err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
	case types.OutcomeCancelled:
		if strings.TrimSpace(req.Reason) == "" {
			return ErrMissingReason
		}
	case types.OutcomeConfirmed:
		if len(req.Lines) > 0 && (req.Logistics.City == "" || req.Logistics.Address == "") {
			return ErrMissingLogistics
		}
	}
	return nil
}

// Resolve runs the call log, the optional order, and the queue refresh in
// that order. A call-log failure applies nothing. An order failure leaves the
// call logged and returns ErrOrderNotCreated with the partial report.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Report, error) {
	m := metrics.Get()
	report := Report{
		Outcome:         req.Outcome,
		DurationSeconds: durationSeconds(req.Duration),
	}

	if err := r.Validate(req); err != nil {
		m.RecordResolution(string(req.Outcome), "rejected")
		return report, err
	}

	log := types.CallLog{
		LeadID:   req.Lead.ID,
		Outcome:  req.Outcome,
		Duration: report.DurationSeconds,
		Notes:    strings.TrimSpace(req.Notes),
	}
	switch req.Outcome {
	case types.OutcomeCancelled:
		log.CancellationReason = strings.TrimSpace(req.Reason)
	case types.OutcomeCallback:
		plan, _ := schedule.Plan(req.Lead, req.CallbackAt, req.CallbackNotes)
		log.CallbackDate = &plan.At
		report.Callback = &plan
	}

	logger := r.logger.With().Int("lead_id", req.Lead.ID).Str("outcome", string(req.Outcome)).Logger()

	if err := r.backend.LogCall(ctx, log); err != nil {
		m.RecordResolution(string(req.Outcome), "log_failed")
		logger.Warn().Err(err).Msg("call log failed, nothing applied")
		return Report{Outcome: req.Outcome, DurationSeconds: report.DurationSeconds},
			&StepError{Step: StepCallLog, Sentinel: ErrCallLogFailed, Err: err}
	}
	report.CallLogged = true
	report.CallbackCleared = clearsCallback(req.Lead, req.Outcome)
	if report.CallbackCleared {
		if cc, ok := r.refresher.(CallbackClearer); ok {
			cc.ClearCallback(req.Lead.ID)
		}
	}
	m.CallDuration.Observe(req.Duration.Seconds())

	// Past this point the session goes idle whatever happens next
	defer r.requestRefresh()

	if req.Outcome != types.OutcomeConfirmed || len(req.Lines) == 0 {
		m.RecordResolution(string(req.Outcome), "ok")
		logger.Info().Int("duration", report.DurationSeconds).Msg("call resolved")
		return report, nil
	}

	orderReq := r.buildOrder(req)
	key := uuid.New().String()

	created, err := r.backend.CreateOrder(ctx, orderReq, key)
	if err != nil {
		m.RecordResolution(string(req.Outcome), "order_failed")
		logger.Error().Err(err).Str("idempotency_key", key).Float64("total", orderReq.Total).
			Msg("call logged as confirmed but order creation failed")
		report.FollowupRecorded = r.recordFollowup(ctx, req, orderReq, key, err)
		return report, &StepError{Step: StepOrder, Sentinel: ErrOrderNotCreated, Err: err}
	}

	report.OrderCreated = true
	report.Order = &created
	m.RecordResolution(string(req.Outcome), "ok")
	logger.Info().Int("order_id", created.ID).Float64("total", orderReq.Total).Msg("call resolved with order")
	return report, nil
}

// ScheduleFromQueue schedules a callback for a lead outside any call
func (r *Resolver) ScheduleFromQueue(ctx context.Context, lead types.Lead, at time.Time, notes string) (types.CallbackSchedule, error) {
	plan, err := schedule.Plan(lead, at, notes)
	if err != nil {
		return types.CallbackSchedule{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if err := r.backend.ScheduleCallback(ctx, lead.ID, schedule.Request(plan)); err != nil {
		r.logger.Warn().Err(err).Int("lead_id", lead.ID).Msg("schedule callback failed")
		return types.CallbackSchedule{}, &StepError{Step: StepSchedule, Sentinel: ErrScheduleFailed, Err: err}
	}

	r.logger.Info().Int("lead_id", lead.ID).Time("callback_time", plan.At).Msg("callback scheduled")
	r.requestRefresh()
	return plan, nil
}

func (r *Resolver) buildOrder(req Request) types.OrderRequest {
	totals := order.Compute(req.Lines, req.Logistics, r.rates)

	return types.OrderRequest{
		LeadID:        req.Lead.ID,
		CustomerName:  req.Lead.Name,
		CustomerPhone: req.Lead.Phone,
		City:          req.Logistics.City,
		Address:       req.Logistics.Address,
		Courier:       req.Logistics.Courier,
		Items:         order.Items(req.Lines),
		Subtotal:      totals.Subtotal,
		ShippingCost:  totals.Shipping,
		Total:         totals.Total,
		IsExchange:    req.Logistics.Exchange,
		IsUpsell:      totals.Upsell,
		Notes:         strings.TrimSpace(req.Notes),
	}
}

func (r *Resolver) recordFollowup(ctx context.Context, req Request, orderReq types.OrderRequest, key string, cause error) bool {
	now := r.now().UTC()
	record := types.Followup{
		AgentID:        r.agentID,
		RecordID:       now.Format(time.RFC3339) + "#" + key,
		LeadID:         req.Lead.ID,
		LeadName:       req.Lead.Name,
		LeadPhone:      req.Lead.Phone,
		Outcome:        req.Outcome,
		Error:          cause.Error(),
		IdempotencyKey: key,
		Lines:          len(orderReq.Items),
		Total:          orderReq.Total,
		CreatedAt:      now.Format(time.RFC3339),
	}
	if err := r.store.SaveFollowup(ctx, record); err != nil {
		r.logger.Error().Err(err).Int("lead_id", req.Lead.ID).Msg("failed to record order followup")
		return false
	}
	return true
}

func (r *Resolver) requestRefresh() {
	if r.refresher != nil {
		r.refresher.RequestRefresh()
	}
}

// clearsCallback reports whether outcome settles a pending callback.
// NO_ANSWER leaves it pending so the lead is retried at the agreed time.
// The desk sends no separate clearing request: the CRM settles the callback
// from the logged outcome, and the local queue view is only cleared ahead of
// the refetch that confirms it.
func clearsCallback(lead types.Lead, outcome types.Outcome) bool {
	if lead.PendingCallback() == nil {
		return false
	}
	switch outcome {
	case types.OutcomeConfirmed, types.OutcomeCancelled, types.OutcomeWrongNumber:
		return true
	}
	return false
}

func durationSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds()))
}
