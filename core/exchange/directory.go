package exchange

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/voltmesh/fex/core/rpc"
)

// Directory resolves facility connections and caches their public keys,
// fetched once through the GetPublicKey bootstrap call.
type Directory struct {
	provider rpc.ConnProvider

	mu   sync.RWMutex
	keys map[string]*ecdsa.PublicKey
}

// NewDirectory creates a directory over the given provider.
func NewDirectory(provider rpc.ConnProvider) *Directory {
	return &Directory{provider: provider, keys: map[string]*ecdsa.PublicKey{}}
}

// Conn returns the connection for uid.
func (d *Directory) Conn(uid string) (rpc.FacilityConn, error) {
	return d.provider.Facility(uid)
}

// PublicKey returns the facility's public key, fetching and caching it on
// first use.
func (d *Directory) PublicKey(ctx context.Context, uid string) (*ecdsa.PublicKey, error) {
	d.mu.RLock()
	key, ok := d.keys[uid]
	d.mu.RUnlock()
	if ok {
		return key, nil
	}
	conn, err := d.provider.Facility(uid)
	if err != nil {
		return nil, err
	}
	key, err = conn.GetPublicKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap key for %s: %w", uid, err)
	}
	d.mu.Lock()
	d.keys[uid] = key
	d.mu.Unlock()
	return key, nil
}

// SetPublicKey seeds a key without a bootstrap call.
func (d *Directory) SetPublicKey(uid string, key *ecdsa.PublicKey) {
	d.mu.Lock()
	d.keys[uid] = key
	d.mu.Unlock()
}
