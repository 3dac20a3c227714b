package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/voltmesh/fex/core/rpc"
	"github.com/voltmesh/fex/infra/logger"
)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Client wraps a Paho connection with request/reply correlation. One client
// serves every conversation of a node: it subscribes to the node's reply
// wildcard once and routes replies to waiting callers by correlation id.
type Client struct {
	cfg Config
	uid string
	cli pahoClient
	log logger.Logger

	mu      sync.Mutex
	pending map[string]chan envelope
}

// NewClient connects to the broker and subscribes to the reply topic for
// uid.
func NewClient(cfg Config, uid string) (*Client, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = uid
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_client")
	c := &Client{
		cfg:     cfg,
		uid:     uid,
		log:     log,
		pending: make(map[string]chan envelope),
	}
	opts.OnConnect = func(pc paho.Client) {
		log.Infof("MQTT connected as %s", uid)
		if token := pc.Subscribe(replyWildcard(uid), cfg.qosFor("reply"), c.onReply); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	c.cli = cli
	return c, nil
}

func (c *Client) onReply(_ paho.Client, msg paho.Message) {
	var env envelope
	if err := json.Unmarshal(msg.Payload(), &env); err != nil {
		c.log.Errorf("decode reply: %v", err)
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[env.CorrelationID]
	if ok {
		delete(c.pending, env.CorrelationID)
	}
	c.mu.Unlock()
	if !ok {
		c.log.Warnf("reply with unknown correlation id %s", env.CorrelationID)
		return
	}
	ch <- env
}

// Request publishes a payload to the target's method topic and waits for the
// correlated reply. The context deadline bounds the whole exchange;
// expiration surfaces as rpc.ErrTimeout.
func (c *Client) Request(ctx context.Context, targetUID, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	corrID := uuid.NewString()
	env := envelope{
		CorrelationID: corrID,
		ReplyTo:       replyTopic(c.uid, corrID),
		Payload:       body,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}

	ch := make(chan envelope, 1)
	c.mu.Lock()
	c.pending[corrID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, corrID)
		c.mu.Unlock()
	}()

	if err := c.publish(requestTopic(targetUID, method), raw); err != nil {
		return nil, err
	}

	select {
	case reply := <-ch:
		if reply.Error != nil {
			return nil, reply.Error.toError()
		}
		return reply.Payload, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %s to %s", rpc.ErrTimeout, method, targetUID)
		}
		return nil, ctx.Err()
	}
}

// publish retries with exponential backoff, mirroring the broker hiccups a
// QoS 1 session can see during reconnects.
func (c *Client) publish(topic string, payload []byte) error {
	maxRetries := c.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	backoff := time.Duration(c.cfg.BackoffMS) * time.Millisecond
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	var publishErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		token := c.cli.Publish(topic, c.cfg.qosFor("request"), false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		c.log.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		time.Sleep(backoff * time.Duration(1<<attempt))
	}
	return publishErr
}

// reply publishes a response envelope to the requester's reply topic.
func (c *Client) reply(replyTo string, env envelope) {
	raw, err := json.Marshal(env)
	if err != nil {
		c.log.Errorf("encode reply: %v", err)
		return
	}
	if err := c.publish(replyTo, raw); err != nil {
		c.log.Errorf("send reply: %v", err)
	}
}

// subscribe registers a request handler on one of the node's method topics.
func (c *Client) subscribe(method string, handler paho.MessageHandler) error {
	topic := requestTopic(c.uid, method)
	token := c.cli.Subscribe(topic, c.cfg.qosFor("request"), handler)
	token.Wait()
	return token.Error()
}

// Disconnect gracefully closes the MQTT connection.
func (c *Client) Disconnect() {
	if c.cli != nil && c.cli.IsConnected() {
		c.cli.Disconnect(250)
	}
}
