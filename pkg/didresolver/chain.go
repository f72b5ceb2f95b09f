package didresolver

import (
	"context"
	"crypto"

	"dtw/pkg/vcerror"
)

// Chain tries each resolver in order and returns the first key found.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, did string, kid string) (crypto.PublicKey, error) {
	var lastErr error
	for _, r := range c {
		pub, err := r.Resolve(ctx, did, kid)
		if err == nil {
			return pub, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = vcerror.Newf(vcerror.ErrDIDFrontendQueryDID, "DID not resolvable: %s", did)
	}
	return nil, lastErr
}
