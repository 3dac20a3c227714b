// Package rpc defines the transport-agnostic connection contracts between
// exchange and facility nodes. infra/mqtt provides the broker-backed
// implementation; the in-process implementation in this package serves tests
// and single-binary deployments.
package rpc

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/voltmesh/fex/core/protocol"
)

// ErrTimeout is returned when a request is not answered within its deadline.
// It is distinct from a decline and from authentication failures.
var ErrTimeout = errors.New("rpc: request timed out")

// FacilityConn is the exchange's view of one facility.
type FacilityConn interface {
	// GetPublicKey performs the out-of-band key bootstrap.
	GetPublicKey(ctx context.Context) (*ecdsa.PublicKey, error)
	// ProposeOffer submits a signed offer and returns the facility's reply.
	ProposeOffer(ctx context.Context, offer protocol.SignedOffer) (protocol.OfferResponse, error)
	// ReportOfferStatus forwards an execution state transition.
	ReportOfferStatus(ctx context.Context, status protocol.SignedStatus) (protocol.StatusResponse, error)
}

// ExchangeConn is the facility's view of its exchange, used to report
// execution progress outward.
type ExchangeConn interface {
	ReportOfferStatus(ctx context.Context, status protocol.SignedStatus) (protocol.StatusResponse, error)
}

// ConnProvider resolves facility UIDs to connections.
type ConnProvider interface {
	Facility(uid string) (FacilityConn, error)
}

// FacilityHandler is the server-side contract a facility node exposes to its
// transport.
type FacilityHandler interface {
	PublicKey() *ecdsa.PublicKey
	ProposeOffer(ctx context.Context, offer protocol.SignedOffer) (protocol.OfferResponse, error)
	HandleStatus(ctx context.Context, status protocol.SignedStatus) (protocol.StatusResponse, error)
}

// ExchangeHandler is the server-side contract an exchange node exposes for
// inbound status reports.
type ExchangeHandler interface {
	HandleStatus(ctx context.Context, status protocol.SignedStatus) (protocol.StatusResponse, error)
}

// StaticProvider resolves connections from a fixed map.
type StaticProvider map[string]FacilityConn

// Facility returns the connection for uid.
func (p StaticProvider) Facility(uid string) (FacilityConn, error) {
	conn, ok := p[uid]
	if !ok {
		return nil, fmt.Errorf("rpc: unknown facility %q", uid)
	}
	return conn, nil
}
