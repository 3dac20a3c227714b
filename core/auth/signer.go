package auth

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"fmt"

	"github.com/voltmesh/fex/core/sigcodec"
)

// Sign computes a signature over the ordered items, bound to the recipient's
// public key. By convention the first two items are the sender and receiver
// UIDs of the route; the remaining items are the protocol payload, each
// encoded through sigcodec.
func Sign(kp Keypair, recipientPub *ecdsa.PublicKey, items ...any) ([]byte, error) {
	if kp.IsZero() {
		return nil, fmt.Errorf("sign: no private key")
	}
	digest, err := messageDigest(recipientPub, items)
	if err != nil {
		return nil, err
	}
	sig, err := ecdsa.SignASN1(rand.Reader, kp.priv, digest)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig, nil
}

// Verify checks sig against the same ordered items using the signer's public
// key and the recipient's keypair. A failed check returns
// *AuthenticationError; it must never be downgraded to a decline.
func Verify(sig []byte, signerPub *ecdsa.PublicKey, recipient Keypair, items ...any) error {
	if signerPub == nil {
		return &AuthenticationError{Reason: "no signer public key"}
	}
	if recipient.IsZero() {
		return fmt.Errorf("verify: no recipient keypair")
	}
	digest, err := messageDigest(recipient.Public(), items)
	if err != nil {
		return err
	}
	if !ecdsa.VerifyASN1(signerPub, digest, sig) {
		return &AuthenticationError{Reason: "signature mismatch"}
	}
	return nil
}

// messageDigest hashes the recipient public key followed by the codec bytes
// of every item. Binding the recipient key prevents a signed message from
// being replayed toward a different party.
func messageDigest(recipientPub *ecdsa.PublicKey, items []any) ([]byte, error) {
	if recipientPub == nil {
		return nil, fmt.Errorf("digest: no recipient public key")
	}
	keyDER, err := x509.MarshalPKIXPublicKey(recipientPub)
	if err != nil {
		return nil, fmt.Errorf("digest: marshal recipient key: %w", err)
	}
	payload, err := sigcodec.Encode(items...)
	if err != nil {
		return nil, err
	}
	h := sha256.New()
	h.Write(keyDER)
	h.Write(payload)
	return h.Sum(nil), nil
}
