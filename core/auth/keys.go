package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// Keypair wraps a node's asymmetric key used to sign protocol messages.
type Keypair struct {
	priv *ecdsa.PrivateKey
}

// GenerateKeypair creates a new P-256 keypair.
func GenerateKeypair() (Keypair, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Keypair{}, fmt.Errorf("generate keypair: %w", err)
	}
	return Keypair{priv: priv}, nil
}

// NewKeypair wraps an existing private key.
func NewKeypair(priv *ecdsa.PrivateKey) Keypair {
	return Keypair{priv: priv}
}

// Public returns the public half of the keypair.
func (k Keypair) Public() *ecdsa.PublicKey {
	if k.priv == nil {
		return nil
	}
	return &k.priv.PublicKey
}

// IsZero reports whether the keypair holds no key.
func (k Keypair) IsZero() bool { return k.priv == nil }

// EncodePrivatePEM serializes the private key in SEC 1 PEM form.
func (k Keypair) EncodePrivatePEM() ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(k.priv)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
}

// DecodePrivatePEM parses a SEC 1 PEM private key.
func DecodePrivatePEM(data []byte) (Keypair, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "EC PRIVATE KEY" {
		return Keypair{}, fmt.Errorf("no EC private key block found")
	}
	priv, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return Keypair{}, fmt.Errorf("parse private key: %w", err)
	}
	return Keypair{priv: priv}, nil
}

// EncodePublicPEM serializes pub in PKIX PEM form, the format exchanged by
// the GetPublicKey bootstrap call.
func EncodePublicPEM(pub *ecdsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// DecodePublicPEM parses a PKIX PEM public key.
func DecodePublicPEM(data []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("no public key block found")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected key type %T", key)
	}
	return pub, nil
}

// SaveKeypair writes the private key to path with owner-only permissions.
func SaveKeypair(k Keypair, path string) error {
	data, err := k.EncodePrivatePEM()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadKeypair reads a private key from path.
func LoadKeypair(path string) (Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Keypair{}, fmt.Errorf("read key file: %w", err)
	}
	return DecodePrivatePEM(data)
}
