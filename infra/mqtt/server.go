package mqtt

import (
	"context"
	"encoding/json"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/voltmesh/fex/core/auth"
	"github.com/voltmesh/fex/core/protocol"
	"github.com/voltmesh/fex/core/rpc"
	"github.com/voltmesh/fex/infra/logger"
)

// handlerTimeout bounds the time a server spends on one inbound request.
const handlerTimeout = 30 * time.Second

// FacilityServer exposes a facility handler on the node's request topics.
type FacilityServer struct {
	client  *Client
	handler rpc.FacilityHandler
	log     logger.Logger
}

// ServeFacility subscribes the handler to the facility's pubkey, offer and
// status topics.
func ServeFacility(client *Client, handler rpc.FacilityHandler) (*FacilityServer, error) {
	s := &FacilityServer{client: client, handler: handler, log: logger.New("mqtt_facility_server")}
	if err := client.subscribe(methodPubKey, s.onPubKey); err != nil {
		return nil, err
	}
	if err := client.subscribe(methodOffer, s.onOffer); err != nil {
		return nil, err
	}
	if err := client.subscribe(methodStatus, s.onStatus); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FacilityServer) onPubKey(_ paho.Client, msg paho.Message) {
	serve(s.client, s.log, msg, func(_ context.Context, _ struct{}) (pubKeyPayload, error) {
		pem, err := auth.EncodePublicPEM(s.handler.PublicKey())
		if err != nil {
			return pubKeyPayload{}, err
		}
		return pubKeyPayload{PublicKeyPEM: string(pem)}, nil
	})
}

func (s *FacilityServer) onOffer(_ paho.Client, msg paho.Message) {
	serve(s.client, s.log, msg, func(ctx context.Context, offer protocol.SignedOffer) (protocol.OfferResponse, error) {
		return s.handler.ProposeOffer(ctx, offer)
	})
}

func (s *FacilityServer) onStatus(_ paho.Client, msg paho.Message) {
	serve(s.client, s.log, msg, func(ctx context.Context, st protocol.SignedStatus) (protocol.StatusResponse, error) {
		return s.handler.HandleStatus(ctx, st)
	})
}

// ExchangeServer exposes an exchange handler for inbound status reports.
type ExchangeServer struct {
	client  *Client
	handler rpc.ExchangeHandler
	log     logger.Logger
}

// ServeExchange subscribes the handler to the exchange's status topic.
func ServeExchange(client *Client, handler rpc.ExchangeHandler) (*ExchangeServer, error) {
	s := &ExchangeServer{client: client, handler: handler, log: logger.New("mqtt_exchange_server")}
	if err := client.subscribe(methodStatus, s.onStatus); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ExchangeServer) onStatus(_ paho.Client, msg paho.Message) {
	serve(s.client, s.log, msg, func(ctx context.Context, st protocol.SignedStatus) (protocol.StatusResponse, error) {
		return s.handler.HandleStatus(ctx, st)
	})
}

// serve decodes a request envelope, runs the handler and publishes the
// correlated reply. Handler errors travel back as typed wire errors.
func serve[Req, Resp any](client *Client, log logger.Logger, msg paho.Message, handle func(context.Context, Req) (Resp, error)) {
	var env envelope
	if err := json.Unmarshal(msg.Payload(), &env); err != nil {
		log.Errorf("decode request on %s: %v", msg.Topic(), err)
		return
	}
	if env.ReplyTo == "" {
		log.Warnf("request on %s without reply topic", msg.Topic())
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		out := envelope{CorrelationID: env.CorrelationID}
		var req Req
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			out.Error = encodeError(err)
			client.reply(env.ReplyTo, out)
			return
		}
		resp, err := handle(ctx, req)
		if err != nil {
			out.Error = encodeError(err)
			client.reply(env.ReplyTo, out)
			return
		}
		body, err := json.Marshal(resp)
		if err != nil {
			out.Error = encodeError(err)
			client.reply(env.ReplyTo, out)
			return
		}
		out.Payload = body
		client.reply(env.ReplyTo, out)
	}()
}
