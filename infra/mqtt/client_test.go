package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/voltmesh/fex/core/auth"
	"github.com/voltmesh/fex/core/rpc"
	"github.com/voltmesh/fex/infra/logger"
)

type mockToken struct {
	err error
}

func (t *mockToken) Wait() bool                       { return true }
func (t *mockToken) WaitTimeout(_ time.Duration) bool { return true }
func (t *mockToken) Error() error                     { return t.err }
func (t *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	payload []byte
}

type mockClient struct {
	Disconnected bool
	publishErr   error

	mu         sync.Mutex
	publishes  []published
	subscribed []string
}

func (m *mockClient) IsConnected() bool       { return true }
func (m *mockClient) Connect() paho.Token     { return &mockToken{} }
func (m *mockClient) Disconnect(quiesce uint) { m.Disconnected = true }

func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	if m.publishErr != nil {
		return &mockToken{err: m.publishErr}
	}
	m.mu.Lock()
	m.publishes = append(m.publishes, published{topic: topic, payload: payload.([]byte)})
	m.mu.Unlock()
	return &mockToken{}
}

func (m *mockClient) published() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]published, len(m.publishes))
	copy(out, m.publishes)
	return out
}

func (m *mockClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, topic)
	return &mockToken{}
}

// mockMessage satisfies paho.Message for reply injection.
type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

func newTestClient(mc *mockClient) *Client {
	return &Client{
		cfg:     Config{MaxRetries: 1, BackoffMS: 1},
		uid:     "exchange-1",
		cli:     mc,
		log:     logger.NopLogger{},
		pending: make(map[string]chan envelope),
	}
}

func TestRequestCorrelatesReply(t *testing.T) {
	mc := &mockClient{}
	c := newTestClient(mc)

	type result struct {
		raw json.RawMessage
		err error
	}
	done := make(chan result, 1)
	go func() {
		raw, err := c.Request(context.Background(), "facility-1", methodOffer, map[string]string{"k": "v"})
		done <- result{raw: raw, err: err}
	}()

	// Wait for the request to land on the mock broker.
	var req envelope
	deadline := time.Now().Add(time.Second)
	for len(mc.published()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("request never published")
		}
		time.Sleep(time.Millisecond)
	}
	first := mc.published()[0]
	if first.topic != "fex/facility-1/req/offer" {
		t.Fatalf("topic: %s", first.topic)
	}
	if err := json.Unmarshal(first.payload, &req); err != nil {
		t.Fatal(err)
	}
	if req.CorrelationID == "" || req.ReplyTo == "" {
		t.Fatalf("envelope: %+v", req)
	}

	reply := envelope{CorrelationID: req.CorrelationID, Payload: json.RawMessage(`{"ok":true}`)}
	raw, _ := json.Marshal(reply)
	c.onReply(nil, &mockMessage{topic: req.ReplyTo, payload: raw})

	res := <-done
	if res.err != nil {
		t.Fatal(res.err)
	}
	if string(res.raw) != `{"ok":true}` {
		t.Fatalf("payload: %s", res.raw)
	}
}

func TestRequestDecodesTypedError(t *testing.T) {
	mc := &mockClient{}
	c := newTestClient(mc)

	done := make(chan error, 1)
	go func() {
		_, err := c.Request(context.Background(), "facility-1", methodOffer, struct{}{})
		done <- err
	}()

	deadline := time.Now().Add(time.Second)
	for len(mc.published()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("request never published")
		}
		time.Sleep(time.Millisecond)
	}
	var req envelope
	if err := json.Unmarshal(mc.published()[0].payload, &req); err != nil {
		t.Fatal(err)
	}
	reply := envelope{
		CorrelationID: req.CorrelationID,
		Error:         &wireError{Kind: errKindAuth, Message: "bad signature"},
	}
	raw, _ := json.Marshal(reply)
	c.onReply(nil, &mockMessage{payload: raw})

	err := <-done
	var authErr *auth.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
}

func TestRequestTimeout(t *testing.T) {
	mc := &mockClient{}
	c := newTestClient(mc)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Request(ctx, "facility-1", methodOffer, struct{}{})
	if !errors.Is(err, rpc.ErrTimeout) {
		t.Fatalf("err: %v", err)
	}
}

func TestPublishRetriesThenFails(t *testing.T) {
	mc := &mockClient{publishErr: errors.New("broker gone")}
	c := newTestClient(mc)

	if err := c.publish("fex/facility-1/req/offer", []byte("{}")); err == nil {
		t.Fatal("expected error")
	}
}

func TestDisconnect(t *testing.T) {
	mc := &mockClient{}
	c := newTestClient(mc)
	c.Disconnect()
	if !mc.Disconnected {
		t.Fatal("expected Disconnect() to be called")
	}
}

func TestSubscribeUsesMethodTopic(t *testing.T) {
	mc := &mockClient{}
	c := newTestClient(mc)
	if err := c.subscribe(methodStatus, func(paho.Client, paho.Message) {}); err != nil {
		t.Fatal(err)
	}
	if len(mc.subscribed) != 1 || mc.subscribed[0] != "fex/exchange-1/req/status" {
		t.Fatalf("subscribed: %v", mc.subscribed)
	}
}
