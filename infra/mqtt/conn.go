package mqtt

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"

	"github.com/voltmesh/fex/core/auth"
	"github.com/voltmesh/fex/core/protocol"
	"github.com/voltmesh/fex/core/rpc"
)

// FacilityConn is the exchange's broker-backed view of one facility.
type FacilityConn struct {
	client      *Client
	facilityUID string
}

// NewFacilityConn creates a connection addressing the given facility.
func NewFacilityConn(client *Client, facilityUID string) *FacilityConn {
	return &FacilityConn{client: client, facilityUID: facilityUID}
}

// GetPublicKey performs the out-of-band key bootstrap.
func (c *FacilityConn) GetPublicKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	raw, err := c.client.Request(ctx, c.facilityUID, methodPubKey, struct{}{})
	if err != nil {
		return nil, err
	}
	var p pubKeyPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return auth.DecodePublicPEM([]byte(p.PublicKeyPEM))
}

// ProposeOffer submits a signed offer and returns the facility's reply.
func (c *FacilityConn) ProposeOffer(ctx context.Context, offer protocol.SignedOffer) (protocol.OfferResponse, error) {
	raw, err := c.client.Request(ctx, c.facilityUID, methodOffer, offer)
	if err != nil {
		return protocol.OfferResponse{}, err
	}
	var resp protocol.OfferResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return protocol.OfferResponse{}, err
	}
	return resp, nil
}

// ReportOfferStatus forwards an execution state transition.
func (c *FacilityConn) ReportOfferStatus(ctx context.Context, status protocol.SignedStatus) (protocol.StatusResponse, error) {
	return requestStatus(ctx, c.client, c.facilityUID, status)
}

// ExchangeConn is the facility's broker-backed view of its exchange.
type ExchangeConn struct {
	client      *Client
	exchangeUID string
}

// NewExchangeConn creates a connection addressing the given exchange.
func NewExchangeConn(client *Client, exchangeUID string) *ExchangeConn {
	return &ExchangeConn{client: client, exchangeUID: exchangeUID}
}

// ReportOfferStatus forwards an execution state transition.
func (c *ExchangeConn) ReportOfferStatus(ctx context.Context, status protocol.SignedStatus) (protocol.StatusResponse, error) {
	return requestStatus(ctx, c.client, c.exchangeUID, status)
}

func requestStatus(ctx context.Context, client *Client, targetUID string, status protocol.SignedStatus) (protocol.StatusResponse, error) {
	raw, err := client.Request(ctx, targetUID, methodStatus, status)
	if err != nil {
		return protocol.StatusResponse{}, err
	}
	var resp protocol.StatusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return protocol.StatusResponse{}, err
	}
	return resp, nil
}

// Provider resolves facility UIDs to broker-backed connections over a shared
// client.
type Provider struct {
	client *Client
}

// NewProvider creates a ConnProvider over the shared client.
func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

// Facility returns the connection for uid.
func (p *Provider) Facility(uid string) (rpc.FacilityConn, error) {
	return NewFacilityConn(p.client, uid), nil
}
