package rpc

import (
	"context"
	"crypto/ecdsa"
	"time"

	"github.com/voltmesh/fex/core/protocol"
)

// InProcConn adapts a FacilityHandler into a FacilityConn without a broker.
// Delay and Fail allow tests to inject slow or broken facilities; a call
// taking longer than Timeout resolves with ErrTimeout.
type InProcConn struct {
	Handler FacilityHandler
	Timeout time.Duration
	// Delay is applied before every call.
	Delay time.Duration
	// Fail, when non-nil, replaces every call's outcome.
	Fail error
}

func (c *InProcConn) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}

// call runs fn under the connection's deadline.
func call[T any](ctx context.Context, c *InProcConn, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if c.Fail != nil {
		return zero, c.Fail
	}
	cctx, cancel := c.deadline(ctx)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		if c.Delay > 0 {
			select {
			case <-time.After(c.Delay):
			case <-cctx.Done():
				return
			}
		}
		v, err := fn(cctx)
		done <- outcome{v: v, err: err}
	}()
	select {
	case out := <-done:
		return out.v, out.err
	case <-cctx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, ErrTimeout
	}
}

// GetPublicKey returns the facility's public key.
func (c *InProcConn) GetPublicKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	return call(ctx, c, func(context.Context) (*ecdsa.PublicKey, error) {
		return c.Handler.PublicKey(), nil
	})
}

// ProposeOffer submits the offer to the handler.
func (c *InProcConn) ProposeOffer(ctx context.Context, offer protocol.SignedOffer) (protocol.OfferResponse, error) {
	return call(ctx, c, func(cctx context.Context) (protocol.OfferResponse, error) {
		return c.Handler.ProposeOffer(cctx, offer)
	})
}

// ReportOfferStatus forwards the status to the handler.
func (c *InProcConn) ReportOfferStatus(ctx context.Context, status protocol.SignedStatus) (protocol.StatusResponse, error) {
	return call(ctx, c, func(cctx context.Context) (protocol.StatusResponse, error) {
		return c.Handler.HandleStatus(cctx, status)
	})
}

// InProcExchangeConn adapts an ExchangeHandler into an ExchangeConn.
type InProcExchangeConn struct {
	Handler ExchangeHandler
	Timeout time.Duration
}

// ReportOfferStatus forwards the status to the exchange handler.
func (c *InProcExchangeConn) ReportOfferStatus(ctx context.Context, status protocol.SignedStatus) (protocol.StatusResponse, error) {
	inner := &InProcConn{Timeout: c.Timeout}
	return call(ctx, inner, func(cctx context.Context) (protocol.StatusResponse, error) {
		return c.Handler.HandleStatus(cctx, status)
	})
}
