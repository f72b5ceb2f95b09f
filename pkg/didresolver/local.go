package didresolver

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"sync"

	"dtw/pkg/vcerror"
)

// Local resolves DIDs against a pinned in-memory key registry. Deployments
// that do not want outbound DID resolution register every trusted party here.
type Local struct {
	mu   sync.RWMutex
	keys map[string]crypto.PublicKey
}

func NewLocal() *Local {
	return &Local{keys: make(map[string]crypto.PublicKey)}
}

// Register pins a key for a DID, replacing any previous entry.
func (l *Local) Register(did string, pub crypto.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys[did] = pub
}

// RegisterPEM pins a PEM encoded PKIX public key for a DID.
func (l *Local) RegisterPEM(did string, pemKey string) error {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return errors.New("no PEM block found")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return err
	}
	l.Register(did, pub)
	return nil
}

func (l *Local) Resolve(_ context.Context, did string, kid string) (crypto.PublicKey, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if pub, ok := l.keys[did]; ok {
		return pub, nil
	}
	if kid != "" {
		if pub, ok := l.keys[kid]; ok {
			return pub, nil
		}
	}
	return nil, vcerror.Newf(vcerror.ErrDIDFrontendQueryDID, "DID not registered: %s", did)
}
