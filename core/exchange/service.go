package exchange

import (
	"context"
	"crypto/ecdsa"
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

// Service is the offering side of the negotiation engine. It creates
// offerings, fans them out as individually signed offers and aggregates the
// per-facility outcomes.
type Service struct {
	cfg        Config
	keys       auth.Keypair
	dir        *Directory
	stores     store.ExchangeStore
	sched      *scheduler.Scheduler
	bus        eventbus.EventBus
	log        logger.Logger
	metrics    metrics.MetricsSink
	rpcTimeout time.Duration

	mu     sync.Mutex
	policy CounterOfferPolicy
	audit  audit.LogStore
}

// NewService creates an exchange service and starts its execution scheduler.
// The counter-offer policy defaults to AcceptAllCounters.
func NewService(cfg Config, keys auth.Keypair, dir *Directory, stores store.ExchangeStore, bus eventbus.EventBus, sink metrics.MetricsSink, log logger.Logger) (*Service, error) {
	if dir == nil || stores == nil || log == nil {
		return nil, fmt.Errorf("exchange: nil parameter provided to NewService")
	}
	if keys.IsZero() {
		return nil, fmt.Errorf("exchange: keypair is required")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	cfg.SetDefaults()
	s := &Service{
		cfg:        cfg,
		keys:       keys,
		dir:        dir,
		stores:     stores,
		bus:        bus,
		log:        log,
		metrics:    sink,
		rpcTimeout: time.Duration(cfg.RPCTimeoutSeconds) * time.Second,
		policy:     AcceptAllCounters{},
	}
	s.sched = scheduler.New(s, cfg.Scheduler, log)
	s.sched.Start()
	return s, nil
}

// UID returns the exchange's stable identifier.
func (s *Service) UID() string { return s.cfg.UID }

// PublicKey returns the exchange's public key for facility configuration.
func (s *Service) PublicKey() *ecdsa.PublicKey { return s.keys.Public() }

// Scheduler exposes the execution scheduler.
func (s *Service) Scheduler() *scheduler.Scheduler { return s.sched }

// Directory exposes the facility directory.
func (s *Service) Directory() *Directory { return s.dir }

// SetCounterOfferPolicy replaces the policy applied to counter-offers.
func (s *Service) SetCounterOfferPolicy(p CounterOfferPolicy) {
	if p == nil {
		return
	}
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
}

// SetAuditStore configures the store used to persist negotiation decisions.
func (s *Service) SetAuditStore(a audit.LogStore) {
	s.mu.Lock()
	s.audit = a
	s.mu.Unlock()
}

// Close stops the scheduler. The stores and bus are owned by the caller.
func (s *Service) Close() error {
	s.sched.Close()
	return nil
}

// CreateOffering builds and persists an offering for the given price map and
// start instant.
func (s *Service) CreateOffering(ctx context.Context, pm model.PriceMap, start time.Time) (model.Offering, error) {
	if start.IsZero() {
		return model.Offering{}, &protocol.ValidationError{Field: "start_time", Reason: "missing"}
	}
	off := model.Offering{
		ID:        uuid.New(),
		PriceMap:  pm,
		StartTime: start,
		Created:   time.Now(),
	}
	if err := s.stores.SaveOffering(ctx, off); err != nil {
		return model.Offering{}, err
	}
	s.log.Infof("offering %s created for %s", off.ID, start.Format(time.RFC3339))
	return off, nil
}

// MakeOfferToFacilities fans the offering out to the given facilities. Each
// facility gets a fresh offer id signed against its cached public key. The
// offers are persisted before any RPC leaves the process: per-facility
// dispatches are staged in an outbox and released only after the store
// commit. The returned Fanout resolves once every slot has resolved; one
// slot's failure never blocks or fails its siblings.
func (s *Service) MakeOfferToFacilities(ctx context.Context, offeringID uuid.UUID, facilityUIDs []string) (*Fanout, error) {
	off, err := s.stores.GetOffering(ctx, offeringID)
	if err != nil {
		return nil, err
	}
	if len(facilityUIDs) == 0 {
		return nil, &protocol.ValidationError{Field: "facilities", Reason: "empty"}
	}

	offers := make([]model.Offer, len(facilityUIDs))
	for i, uid := range facilityUIDs {
		offers[i] = model.Offer{
			ID:          uuid.New(),
			OfferingID:  off.ID,
			FacilityUID: uid,
			PriceMap:    off.PriceMap,
			StartTime:   off.StartTime,
			State:       model.StateUnknown,
		}
	}

	f := newFanout(off.ID, len(facilityUIDs))
	outbox := &Outbox{}
	for i := range offers {
		i := i
		offer := offers[i]
		outbox.Stage(func() { s.dispatch(offer, i, f) })
	}
	if err := s.stores.SaveOffers(ctx, offers); err != nil {
		outbox.Discard()
		return nil, err
	}
	outbox.Commit()
	go func() {
		<-f.Done()
		outs := f.Outcomes()
		accepted := 0
		for _, o := range outs {
			if o.Err == nil && o.Offer.Accepted {
				accepted++
			}
		}
		acceptRate.Set(float64(accepted) / float64(len(outs)))
		s.log.Infof("offering %s resolved: %d/%d accepted", off.ID, accepted, len(outs))
	}()
	return f, nil
}

// dispatch sends one offer, handles its response and resolves the fan-out
// slot. It runs in its own goroutine with the service's own timeout so the
// aggregate outlives the caller's context.
func (s *Service) dispatch(offer model.Offer, slot int, f *Fanout) {
	start := time.Now()
	fail := func(err error) {
		offerFailures.Inc()
		offersSent.WithLabelValues("error").Inc()
		s.log.Errorf("offer %s to %s failed: %v", offer.ID, offer.FacilityUID, err)
		s.publishOutcome(offer, err, time.Since(start))
		f.resolve(slot, Outcome{FacilityUID: offer.FacilityUID, Offer: offer, Err: err, Latency: time.Since(start)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.rpcTimeout)
	defer cancel()

	conn, err := s.dir.Conn(offer.FacilityUID)
	if err != nil {
		fail(err)
		return
	}
	facilityKey, err := s.dir.PublicKey(ctx, offer.FacilityUID)
	if err != nil {
		fail(err)
		return
	}

	so := protocol.SignedOffer{
		Route:     protocol.Route{SenderUID: s.cfg.UID, ReceiverUID: offer.FacilityUID},
		OfferID:   offer.ID,
		StartTime: offer.StartTime,
		PriceMap:  offer.PriceMap,
	}
	sig, err := auth.Sign(s.keys, facilityKey, so.SignatureItems()...)
	if err != nil {
		fail(err)
		return
	}
	so.Signature = sig

	offer.Proposed = true
	resp, err := conn.ProposeOffer(ctx, so)
	latency := time.Since(start)
	responseLatency.Observe(latency.Seconds())
	if err != nil {
		fail(err)
		return
	}
	// A response that fails verification is an authentication failure, never
	// a decline.
	if err := auth.Verify(resp.Signature, facilityKey, s.keys, resp.SignatureItems()...); err != nil {
		fail(err)
		return
	}
	// A valid signature alone does not tie the reply to this offer; a replayed
	// response from an earlier negotiation would carry another offer id.
	if err := s.bindReply(resp.Route, resp.OfferID, offer); err != nil {
		fail(err)
		return
	}

	offer = s.applyResponse(ctx, offer, resp, conn, facilityKey)
	if err := s.stores.UpdateOffer(ctx, offer); err != nil {
		s.log.Errorf("persist offer %s: %v", offer.ID, err)
	}
	if offer.State == model.StateWaiting {
		s.sched.Schedule(scheduler.Event{At: offer.StartTime, OfferID: offer.ID, Target: model.StateExecuting})
	}
	offersSent.WithLabelValues(offer.State.String()).Inc()
	s.publishOutcome(offer, nil, latency)
	s.recordOutcome(offer, latency)
	s.appendAudit(context.Background(), offer)
	f.resolve(slot, Outcome{FacilityUID: offer.FacilityUID, Offer: offer, Latency: latency})
}

// applyResponse folds the facility's reply into the offer record. A
// counter-offer taken by the policy replaces the working price map and is
// confirmed back to the facility in the same round; at most one counter round
// runs per offer.
func (s *Service) applyResponse(ctx context.Context, offer model.Offer, resp protocol.OfferResponse, conn rpc.FacilityConn, facilityKey *ecdsa.PublicKey) model.Offer {
	if !resp.Countered() {
		if resp.Accepted {
			offer.Accepted = true
			offer.State = model.StateWaiting
		} else {
			offer.State = model.StateDeclined
			offer.Message = resp.Message
		}
		return offer
	}

	s.mu.Lock()
	policy := s.policy
	s.mu.Unlock()
	if !policy.Accept(offer, *resp.CounterOffer) {
		offer.State = model.StateDeclined
		offer.Message = "counter-offer rejected"
		return offer
	}

	offer.CounterOffer = resp.CounterOffer
	offer.PriceMap = *resp.CounterOffer
	offer.Accepted = true
	offer.State = model.StateWaiting
	if err := s.confirmCounter(ctx, offer, conn, facilityKey); err != nil {
		s.log.Errorf("confirm counter for offer %s: %v", offer.ID, err)
		offer.State = model.StateDeclined
		offer.Accepted = false
		offer.Message = fmt.Sprintf("counter confirmation failed: %v", err)
		return offer
	}
	offer.Confirmed = true
	return offer
}

// confirmCounter reports WAITING back to the facility so the countered offer
// is re-armed under the agreed terms.
func (s *Service) confirmCounter(ctx context.Context, offer model.Offer, conn rpc.FacilityConn, facilityKey *ecdsa.PublicKey) error {
	st := protocol.SignedStatus{
		Route:   protocol.Route{SenderUID: s.cfg.UID, ReceiverUID: offer.FacilityUID},
		OfferID: offer.ID,
		State:   model.StateWaiting,
	}
	sig, err := auth.Sign(s.keys, facilityKey, st.SignatureItems()...)
	if err != nil {
		return err
	}
	st.Signature = sig
	resp, err := conn.ReportOfferStatus(ctx, st)
	if err != nil {
		return err
	}
	if err := auth.Verify(resp.Signature, facilityKey, s.keys, resp.SignatureItems()...); err != nil {
		return err
	}
	return s.bindReply(resp.Route, resp.OfferID, offer)
}

// bindReply checks that a verified reply answers the given offer on the
// reverse route.
func (s *Service) bindReply(route protocol.Route, offerID uuid.UUID, offer model.Offer) error {
	if err := route.Matches(offer.FacilityUID, s.cfg.UID); err != nil {
		return err
	}
	if offerID != offer.ID {
		return &protocol.ValidationError{Field: "offer_id", Reason: "reply answers a different offer"}
	}
	return nil
}

// HandleStatus processes an execution status report from a facility,
// advancing the offer's state. Reports matching the current state are
// acknowledged idempotently.
func (s *Service) HandleStatus(ctx context.Context, st protocol.SignedStatus) (protocol.StatusResponse, error) {
	if err := st.Validate(); err != nil {
		return protocol.StatusResponse{}, err
	}
	if st.Route.ReceiverUID != s.cfg.UID {
		return protocol.StatusResponse{}, &protocol.ValidationError{Field: "route.receiver_uid", Reason: "not addressed to this exchange"}
	}
	offer, err := s.stores.GetOffer(ctx, st.OfferID)
	if err != nil {
		return protocol.StatusResponse{}, err
	}
	if st.Route.SenderUID != offer.FacilityUID {
		return protocol.StatusResponse{}, &protocol.ValidationError{Field: "route.sender_uid", Reason: "not the offer's facility"}
	}
	facilityKey, err := s.dir.PublicKey(ctx, offer.FacilityUID)
	if err != nil {
		return protocol.StatusResponse{}, err
	}
	if err := auth.Verify(st.Signature, facilityKey, s.keys, st.SignatureItems()...); err != nil {
		return protocol.StatusResponse{}, err
	}

	switch {
	case st.State == offer.State:
		// Idempotent repeat.
	case offer.State.CanTransition(st.State):
		from := offer.State
		offer.State = st.State
		if st.State == model.StateCompleted {
			offer.CompletedSuccessfully = st.Success
		}
		if err := s.stores.UpdateOffer(ctx, offer); err != nil {
			return protocol.StatusResponse{}, err
		}
		s.publishTransition(offer, from, st.Success)
	default:
		return protocol.StatusResponse{}, &protocol.StateConflictError{OfferID: offer.ID, State: offer.State, Want: st.State}
	}

	resp := protocol.StatusResponse{
		Route:    st.Route.Reversed(),
		OfferID:  offer.ID,
		Accepted: true,
	}
	sig, err := auth.Sign(s.keys, facilityKey, resp.SignatureItems()...)
	if err != nil {
		return protocol.StatusResponse{}, err
	}
	resp.Signature = sig
	return resp, nil
}

// Transition implements scheduler.ExecutionService for the exchange's begin
// events. A facility normally reports EXECUTING itself; when it already has,
// the local event is a no-op.
func (s *Service) Transition(ctx context.Context, ev scheduler.Event) error {
	offer, err := s.stores.GetOffer(ctx, ev.OfferID)
	if err != nil {
		return err
	}
	if offer.State == ev.Target || offer.State.IsTerminal() {
		return nil
	}
	if !offer.State.CanTransition(ev.Target) {
		return &protocol.StateConflictError{OfferID: offer.ID, State: offer.State, Want: ev.Target}
	}
	from := offer.State
	offer.State = ev.Target
	if err := s.stores.UpdateOffer(ctx, offer); err != nil {
		return err
	}
	s.publishTransition(offer, from, false)
	return nil
}

func (s *Service) publishOutcome(offer model.Offer, err error, latency time.Duration) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.OutcomeEvent{
		OfferID:     offer.ID,
		OfferingID:  offer.OfferingID,
		FacilityUID: offer.FacilityUID,
		Accepted:    offer.Accepted,
		Countered:   offer.CounterOffer != nil,
		Err:         err,
		Latency:     latency,
	})
}

func (s *Service) publishTransition(offer model.Offer, from model.ExecutionState, success bool) {
	if s.bus != nil {
		s.bus.Publish(events.StateChangeEvent{OfferID: offer.ID, From: from, To: offer.State, Success: success})
	}
	if tr, ok := s.metrics.(metrics.TransitionRecorder); ok {
		if err := tr.RecordTransition(metrics.Transition{
			OfferID: offer.ID,
			From:    from,
			To:      offer.State,
			Success: success,
			Time:    time.Now(),
		}); err != nil {
			s.log.Errorf("transition metrics error: %v", err)
		}
	}
}

func (s *Service) recordOutcome(offer model.Offer, latency time.Duration) {
	if err := s.metrics.RecordOfferOutcome([]metrics.OfferOutcome{{
		OfferingID:      offer.OfferingID,
		OfferID:         offer.ID,
		FacilityUID:     offer.FacilityUID,
		State:           offer.State,
		Countered:       offer.CounterOffer != nil,
		ApparentPowerVA: offer.PriceMap.Power.ApparentPower(),
		DurationSeconds: offer.PriceMap.Duration.Seconds(),
		Latency:         latency,
		Time:            time.Now(),
	}}); err != nil {
		s.log.Errorf("outcome metrics error: %v", err)
	}
}

func (s *Service) appendAudit(ctx context.Context, offer model.Offer) {
	s.mu.Lock()
	a := s.audit
	s.mu.Unlock()
	if a == nil {
		return
	}
	rec := audit.LogRecord{
		Timestamp:   time.Now(),
		Party:       "exchange",
		OfferID:     offer.ID,
		OfferingID:  offer.OfferingID,
		FacilityUID: offer.FacilityUID,
		ExchangeUID: s.cfg.UID,
		State:       offer.State,
		Countered:   offer.CounterOffer != nil,
		PriceMap:    offer.PriceMap,
		Counter:     offer.CounterOffer,
		Message:     offer.Message,
	}
	if err := a.Append(ctx, rec); err != nil {
		s.log.Errorf("audit append: %v", err)
	}
}
