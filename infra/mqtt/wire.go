package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/voltmesh/fex/core/auth"
	"github.com/voltmesh/fex/core/protocol"
)

// Topic layout. Every node owns a request topic per method and a reply
// wildcard; replies are routed by correlation id.
//
//	fex/<uid>/req/pubkey
//	fex/<uid>/req/offer
//	fex/<uid>/req/status
//	fex/<uid>/reply/<correlation_id>
const (
	methodPubKey = "pubkey"
	methodOffer  = "offer"
	methodStatus = "status"
)

func requestTopic(uid, method string) string { return fmt.Sprintf("fex/%s/req/%s", uid, method) }
func replyTopic(uid, corrID string) string   { return fmt.Sprintf("fex/%s/reply/%s", uid, corrID) }
func replyWildcard(uid string) string        { return fmt.Sprintf("fex/%s/reply/+", uid) }

// envelope frames every request and reply on the wire.
type envelope struct {
	CorrelationID string          `json:"correlation_id"`
	ReplyTo       string          `json:"reply_to,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Error         *wireError      `json:"error,omitempty"`
}

// wireError carries a typed failure so the caller can distinguish an
// authentication failure from a protocol rejection. An authentication error
// must never collapse into a decline.
type wireError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

const (
	errKindAuth       = "auth"
	errKindValidation = "validation"
	errKindConflict   = "conflict"
	errKindInternal   = "internal"
)

func encodeError(err error) *wireError {
	var authErr *auth.AuthenticationError
	var valErr *protocol.ValidationError
	var confErr *protocol.StateConflictError
	switch {
	case errors.As(err, &authErr):
		return &wireError{Kind: errKindAuth, Message: authErr.Reason}
	case errors.As(err, &valErr):
		return &wireError{Kind: errKindValidation, Message: valErr.Error()}
	case errors.As(err, &confErr):
		return &wireError{Kind: errKindConflict, Message: confErr.Error()}
	default:
		return &wireError{Kind: errKindInternal, Message: err.Error()}
	}
}

func (w *wireError) toError() error {
	switch w.Kind {
	case errKindAuth:
		return &auth.AuthenticationError{Reason: w.Message}
	case errKindValidation:
		return fmt.Errorf("mqtt: remote validation error: %s", w.Message)
	case errKindConflict:
		return fmt.Errorf("mqtt: remote state conflict: %s", w.Message)
	default:
		return fmt.Errorf("mqtt: remote error: %s", w.Message)
	}
}

// pubKeyPayload carries a PEM-encoded public key for the bootstrap call.
type pubKeyPayload struct {
	PublicKeyPEM string `json:"public_key_pem"`
}
