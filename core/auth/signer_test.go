package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	signer, err := GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	recipient, err := GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}

	items := []any{"exchange-1", "facility-1", uuid.New(), time.Now(), true}
	sig, err := Sign(signer, recipient.Public(), items...)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := Verify(sig, signer.Public(), recipient, items...); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyRejectsMutatedItems(t *testing.T) {
	signer, _ := GenerateKeypair()
	recipient, _ := GenerateKeypair()

	id := uuid.New()
	sig, err := Sign(signer, recipient.Public(), "exchange-1", "facility-1", id)
	if err != nil {
		t.Fatal(err)
	}

	err = Verify(sig, signer.Public(), recipient, "exchange-1", "facility-1", uuid.New())
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
}

func TestVerifyRejectsMutatedSignature(t *testing.T) {
	signer, _ := GenerateKeypair()
	recipient, _ := GenerateKeypair()

	sig, err := Sign(signer, recipient.Public(), "a", int64(1))
	if err != nil {
		t.Fatal(err)
	}
	sig[len(sig)/2] ^= 0xff
	err = Verify(sig, signer.Public(), recipient, "a", int64(1))
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
}

func TestVerifyBindsRecipient(t *testing.T) {
	signer, _ := GenerateKeypair()
	recipient, _ := GenerateKeypair()
	other, _ := GenerateKeypair()

	sig, err := Sign(signer, recipient.Public(), "a", int64(1))
	if err != nil {
		t.Fatal(err)
	}
	// A message signed toward one recipient must not verify for another.
	err = Verify(sig, signer.Public(), other, "a", int64(1))
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	signer, _ := GenerateKeypair()
	imposter, _ := GenerateKeypair()
	recipient, _ := GenerateKeypair()

	sig, err := Sign(signer, recipient.Public(), "a", int64(1))
	if err != nil {
		t.Fatal(err)
	}
	err = Verify(sig, imposter.Public(), recipient, "a", int64(1))
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
}

func TestSignWithoutKey(t *testing.T) {
	recipient, _ := GenerateKeypair()
	if _, err := Sign(Keypair{}, recipient.Public(), "a"); err == nil {
		t.Fatal("expected error for zero keypair")
	}
}
