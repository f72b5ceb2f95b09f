// Package didresolver maps DIDs to verification keys. The verifier uses it
// for every signature check; implementations cover a pinned local registry
// and did:web resolution over HTTP.
package didresolver

import (
	"context"
	"crypto"
)

// Resolver resolves a DID, optionally narrowed by a key identifier, to a
// public key. kid may be empty, a fragment such as "#key-1", or an absolute
// identifier such as "did:web:example.com#key-1".
type Resolver interface {
	Resolve(ctx context.Context, did string, kid string) (crypto.PublicKey, error)
}
