package mqtt

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmesh/fex/core/auth"
	"github.com/voltmesh/fex/core/model"
	"github.com/voltmesh/fex/core/protocol"
)

func TestTopicLayout(t *testing.T) {
	assert.Equal(t, "fex/facility-1/req/offer", requestTopic("facility-1", methodOffer))
	assert.Equal(t, "fex/exchange-1/reply/abc", replyTopic("exchange-1", "abc"))
	assert.Equal(t, "fex/exchange-1/reply/+", replyWildcard("exchange-1"))
}

func TestEncodeErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind string
	}{
		{"auth", &auth.AuthenticationError{Reason: "bad signature"}, errKindAuth},
		{"wrapped auth", errors.Join(errors.New("outer"), &auth.AuthenticationError{Reason: "bad signature"}), errKindAuth},
		{"validation", &protocol.ValidationError{Field: "route", Reason: "missing"}, errKindValidation},
		{"conflict", &protocol.StateConflictError{OfferID: uuid.New(), State: model.StateCompleted, Want: model.StateExecuting}, errKindConflict},
		{"internal", errors.New("disk full"), errKindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			we := encodeError(tc.err)
			require.NotNil(t, we)
			assert.Equal(t, tc.kind, we.Kind)
			assert.NotEmpty(t, we.Message)
		})
	}
}

func TestAuthErrorSurvivesTheWire(t *testing.T) {
	original := &auth.AuthenticationError{Reason: "signature mismatch"}
	we := encodeError(original)
	back := we.toError()

	var authErr *auth.AuthenticationError
	require.ErrorAs(t, back, &authErr)
	assert.Equal(t, original.Reason, authErr.Reason)
}

func TestNonAuthErrorsStayOpaque(t *testing.T) {
	for _, kind := range []string{errKindValidation, errKindConflict, errKindInternal} {
		we := &wireError{Kind: kind, Message: "boom"}
		err := we.toError()
		var authErr *auth.AuthenticationError
		assert.False(t, errors.As(err, &authErr), "kind %s must not decode as auth", kind)
		assert.Contains(t, err.Error(), "boom")
	}
}
