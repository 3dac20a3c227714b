package facility

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voltmesh/fex/core/audit"
	"github.com/voltmesh/fex/core/auth"
	"github.com/voltmesh/fex/core/events"
	"github.com/voltmesh/fex/core/logger"
	"github.com/voltmesh/fex/core/metrics"
	"github.com/voltmesh/fex/core/model"
	"github.com/voltmesh/fex/core/protocol"
	"github.com/voltmesh/fex/core/rpc"
	"github.com/voltmesh/fex/core/scheduler"
	"github.com/voltmesh/fex/core/store"
	"github.com/voltmesh/fex/internal/eventbus"
)

// Service is the acceptance side of the negotiation engine. It verifies
// incoming offers, evaluates them against the configured templates and
// drives accepted commitments through execution.
type Service struct {
	cfg         Config
	keys        auth.Keypair
	exchangePub *ecdsa.PublicKey
	templates   *TemplateRegistry
	events      store.OfferEventStore
	sched       *scheduler.Scheduler
	bus         eventbus.EventBus
	log         logger.Logger
	metrics     metrics.MetricsSink
	rpcTimeout  time.Duration

	mu       sync.Mutex
	exchange rpc.ExchangeConn
	audit    audit.LogStore
}

// NewService creates a facility service and starts its execution scheduler.
func NewService(cfg Config, keys auth.Keypair, exchangePub *ecdsa.PublicKey, eventStore store.OfferEventStore, bus eventbus.EventBus, sink metrics.MetricsSink, log logger.Logger) (*Service, error) {
	if eventStore == nil || log == nil {
		return nil, fmt.Errorf("facility: nil parameter provided to NewService")
	}
	if keys.IsZero() {
		return nil, fmt.Errorf("facility: keypair is required")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	cfg.SetDefaults()
	templates := NewTemplateRegistry()
	for _, d := range cfg.Templates {
		t, err := d.ToTemplate()
		if err != nil {
			return nil, err
		}
		templates.Put(t)
	}
	s := &Service{
		cfg:         cfg,
		keys:        keys,
		exchangePub: exchangePub,
		templates:   templates,
		events:      eventStore,
		bus:         bus,
		log:         log,
		metrics:     sink,
		rpcTimeout:  time.Duration(cfg.RPCTimeoutSeconds) * time.Second,
	}
	s.sched = scheduler.New(s, cfg.Scheduler, log)
	s.sched.Start()
	return s, nil
}

// PublicKey returns the facility's public key, served by the GetPublicKey
// bootstrap call.
func (s *Service) PublicKey() *ecdsa.PublicKey { return s.keys.Public() }

// Templates returns the template registry for runtime policy changes.
func (s *Service) Templates() *TemplateRegistry { return s.templates }

// Scheduler exposes the execution scheduler.
func (s *Service) Scheduler() *scheduler.Scheduler { return s.sched }

// SetExchangeConn configures the connection used to report execution status
// back to the exchange.
func (s *Service) SetExchangeConn(conn rpc.ExchangeConn) {
	s.mu.Lock()
	s.exchange = conn
	s.mu.Unlock()
}

// SetAuditStore configures the store used to persist negotiation decisions.
func (s *Service) SetAuditStore(a audit.LogStore) {
	s.mu.Lock()
	s.audit = a
	s.mu.Unlock()
}

// Close stops the scheduler. The event store and bus are owned by the
// caller.
func (s *Service) Close() error {
	s.sched.Close()
	return nil
}

// ReceiveOffer verifies and evaluates a signed offer, persists the resulting
// OfferEvent and publishes exactly one decision notification. Accepted
// offers are armed in the execution scheduler.
func (s *Service) ReceiveOffer(ctx context.Context, so protocol.SignedOffer) (model.OfferEvent, error) {
	offersReceived.Inc()
	if err := so.Validate(); err != nil {
		return model.OfferEvent{}, err
	}
	if err := so.Route.Matches(s.cfg.ExchangeUID, s.cfg.UID); err != nil {
		return model.OfferEvent{}, err
	}
	if err := auth.Verify(so.Signature, s.exchangePub, s.keys, so.SignatureItems()...); err != nil {
		var authErr *auth.AuthenticationError
		if errors.As(err, &authErr) {
			verifyFailures.Inc()
		}
		return model.OfferEvent{}, err
	}
	if _, err := s.events.GetEvent(ctx, so.OfferID); err == nil {
		return model.OfferEvent{}, &protocol.StateConflictError{
			OfferID: so.OfferID, State: model.StateUnknown, Want: model.StateUnknown,
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return model.OfferEvent{}, err
	}

	ev := model.OfferEvent{
		ID:          so.OfferID,
		ExchangeUID: so.Route.SenderUID,
		PriceMap:    so.PriceMap,
		StartTime:   so.StartTime,
	}
	dec := Evaluate(so.PriceMap, s.templates.List())
	switch dec.State {
	case model.StateWaiting:
		ev.State = model.StateWaiting
		ev.TemplateID = dec.TemplateID
	case model.StateCountered:
		ev.State = model.StateCountered
		ev.TemplateID = dec.TemplateID
		ev.CounterOffer = dec.Counter
	default:
		ev.State = model.StateDeclined
		ev.Message = "no acceptable price map template"
	}
	if err := s.events.SaveEvent(ctx, ev); err != nil {
		return model.OfferEvent{}, err
	}
	if ev.State == model.StateWaiting {
		s.arm(ev)
	}
	decisionsTotal.WithLabelValues(ev.State.String()).Inc()
	s.log.Infof("offer %s from %s: %s", ev.ID, ev.ExchangeUID, ev.State)
	if s.bus != nil {
		s.bus.Publish(events.DecisionEvent{
			OfferID:     ev.ID,
			ExchangeUID: ev.ExchangeUID,
			State:       ev.State,
			TemplateID:  ev.TemplateID,
			Counter:     ev.CounterOffer,
		})
	}
	if dr, ok := s.metrics.(metrics.DecisionRecorder); ok {
		if err := dr.RecordDecision(metrics.Decision{
			OfferID:     ev.ID,
			ExchangeUID: ev.ExchangeUID,
			State:       ev.State,
			TemplateID:  ev.TemplateID,
			Time:        time.Now(),
		}); err != nil {
			s.log.Errorf("decision metrics error: %v", err)
		}
	}
	s.appendAudit(ctx, ev)
	return ev, nil
}

// arm enqueues the begin and end execution events for an accepted offer.
func (s *Service) arm(ev model.OfferEvent) {
	s.sched.Schedule(scheduler.Event{At: ev.StartTime, OfferID: ev.ID, Target: model.StateExecuting})
	s.sched.Schedule(scheduler.Event{At: ev.EndTime(), OfferID: ev.ID, Target: model.StateCompleted})
}

// ProposeOffer implements the rpc.FacilityHandler contract: it evaluates the
// offer and returns a signed response.
func (s *Service) ProposeOffer(ctx context.Context, so protocol.SignedOffer) (protocol.OfferResponse, error) {
	ev, err := s.ReceiveOffer(ctx, so)
	if err != nil {
		return protocol.OfferResponse{}, err
	}
	resp := protocol.OfferResponse{
		Route:        so.Route.Reversed(),
		OfferID:      ev.ID,
		Accepted:     ev.State == model.StateWaiting,
		CounterOffer: ev.CounterOffer,
		Message:      ev.Message,
	}
	sig, err := auth.Sign(s.keys, s.exchangePub, resp.SignatureItems()...)
	if err != nil {
		return protocol.OfferResponse{}, err
	}
	resp.Signature = sig
	return resp, nil
}

// HandleStatus processes a status report from the exchange. The only
// transition the exchange may drive is the confirmation of a counter-offer:
// WAITING moves the countered event into the accepted state and arms the
// scheduler. Reports matching the current state are acknowledged
// idempotently.
func (s *Service) HandleStatus(ctx context.Context, st protocol.SignedStatus) (protocol.StatusResponse, error) {
	if err := st.Validate(); err != nil {
		return protocol.StatusResponse{}, err
	}
	if err := st.Route.Matches(s.cfg.ExchangeUID, s.cfg.UID); err != nil {
		return protocol.StatusResponse{}, err
	}
	if err := auth.Verify(st.Signature, s.exchangePub, s.keys, st.SignatureItems()...); err != nil {
		var authErr *auth.AuthenticationError
		if errors.As(err, &authErr) {
			verifyFailures.Inc()
		}
		return protocol.StatusResponse{}, err
	}
	ev, err := s.events.GetEvent(ctx, st.OfferID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return protocol.StatusResponse{}, &protocol.ValidationError{Field: "offer_id", Reason: "unknown offer"}
		}
		return protocol.StatusResponse{}, err
	}
	switch {
	case st.State == model.StateWaiting && ev.State == model.StateCountered:
		// Counter confirmed: the counter-offer becomes the working price map.
		from := ev.State
		ev.PriceMap = *ev.CounterOffer
		ev.State = model.StateWaiting
		if err := s.events.UpdateEvent(ctx, ev); err != nil {
			return protocol.StatusResponse{}, err
		}
		s.arm(ev)
		s.publishTransition(ev, from, false)
	case st.State == ev.State:
		// Idempotent acknowledgment.
	default:
		return protocol.StatusResponse{}, &protocol.StateConflictError{
			OfferID: ev.ID, State: ev.State, Want: st.State,
		}
	}
	return s.statusResponse(st)
}

func (s *Service) statusResponse(st protocol.SignedStatus) (protocol.StatusResponse, error) {
	resp := protocol.StatusResponse{
		Route:    st.Route.Reversed(),
		OfferID:  st.OfferID,
		Accepted: true,
	}
	sig, err := auth.Sign(s.keys, s.exchangePub, resp.SignatureItems()...)
	if err != nil {
		return protocol.StatusResponse{}, err
	}
	resp.Signature = sig
	return resp, nil
}

// Transition implements scheduler.ExecutionService. The scheduler invokes it
// at the start instant (WAITING to EXECUTING) and at the end instant
// (EXECUTING to COMPLETED).
func (s *Service) Transition(ctx context.Context, sev scheduler.Event) error {
	ev, err := s.events.GetEvent(ctx, sev.OfferID)
	if err != nil {
		return err
	}
	if !ev.State.CanTransition(sev.Target) {
		return &protocol.StateConflictError{OfferID: ev.ID, State: ev.State, Want: sev.Target}
	}
	from := ev.State
	ev.State = sev.Target
	if sev.Target == model.StateCompleted {
		ev.CompletedSuccessfully = true
	}
	if err := s.events.UpdateEvent(ctx, ev); err != nil {
		return err
	}
	transitionsTotal.WithLabelValues(sev.Target.String()).Inc()
	s.publishTransition(ev, from, ev.CompletedSuccessfully)
	s.reportStatus(ctx, ev)
	return nil
}

// Abort moves an executing commitment into ABORTED and reports it outward.
func (s *Service) Abort(ctx context.Context, offerID uuid.UUID, reason string) error {
	ev, err := s.events.GetEvent(ctx, offerID)
	if err != nil {
		return err
	}
	if !ev.State.CanTransition(model.StateAborted) {
		return &protocol.StateConflictError{OfferID: ev.ID, State: ev.State, Want: model.StateAborted}
	}
	from := ev.State
	ev.State = model.StateAborted
	ev.Message = reason
	if err := s.events.UpdateEvent(ctx, ev); err != nil {
		return err
	}
	transitionsTotal.WithLabelValues(model.StateAborted.String()).Inc()
	s.publishTransition(ev, from, false)
	s.reportStatus(ctx, ev)
	return nil
}

func (s *Service) publishTransition(ev model.OfferEvent, from model.ExecutionState, success bool) {
	if s.bus != nil {
		s.bus.Publish(events.StateChangeEvent{OfferID: ev.ID, From: from, To: ev.State, Success: success})
	}
	if tr, ok := s.metrics.(metrics.TransitionRecorder); ok {
		if err := tr.RecordTransition(metrics.Transition{
			OfferID: ev.ID,
			From:    from,
			To:      ev.State,
			Success: success,
			Time:    time.Now(),
		}); err != nil {
			s.log.Errorf("transition metrics error: %v", err)
		}
	}
}

// reportStatus forwards the current execution state to the exchange. Failure
// is logged but never propagated: a slow or absent exchange must not stall
// execution.
func (s *Service) reportStatus(ctx context.Context, ev model.OfferEvent) {
	s.mu.Lock()
	conn := s.exchange
	s.mu.Unlock()
	if conn == nil {
		return
	}
	st := protocol.SignedStatus{
		Route:   protocol.Route{SenderUID: s.cfg.UID, ReceiverUID: s.cfg.ExchangeUID},
		OfferID: ev.ID,
		State:   ev.State,
		Success: ev.CompletedSuccessfully,
	}
	sig, err := auth.Sign(s.keys, s.exchangePub, st.SignatureItems()...)
	if err != nil {
		s.log.Errorf("sign status for %s: %v", ev.ID, err)
		return
	}
	st.Signature = sig
	cctx, cancel := context.WithTimeout(ctx, s.rpcTimeout)
	defer cancel()
	if _, err := conn.ReportOfferStatus(cctx, st); err != nil {
		s.log.Errorf("report status for %s: %v", ev.ID, err)
	}
}

func (s *Service) appendAudit(ctx context.Context, ev model.OfferEvent) {
	s.mu.Lock()
	a := s.audit
	s.mu.Unlock()
	if a == nil {
		return
	}
	rec := audit.LogRecord{
		Timestamp:   time.Now(),
		Party:       "facility",
		OfferID:     ev.ID,
		ExchangeUID: ev.ExchangeUID,
		FacilityUID: s.cfg.UID,
		State:       ev.State,
		Countered:   ev.CounterOffer != nil,
		TemplateID:  ev.TemplateID,
		PriceMap:    ev.PriceMap,
		Counter:     ev.CounterOffer,
		Message:     ev.Message,
	}
	if err := a.Append(ctx, rec); err != nil {
		s.log.Errorf("audit append: %v", err)
	}
}
