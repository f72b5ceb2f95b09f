package didresolver

import (
	"context"
	"crypto"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"dtw/pkg/logger"
	"dtw/pkg/vcerror"
)

const maxDocumentBytes = 1 << 20

// Web resolves did:web identifiers by fetching the DID document over HTTP.
// Resolved keys are cached per did+kid and concurrent lookups for the same
// key collapse into one fetch.
type Web struct {
	httpClient *http.Client
	timeout    time.Duration
	cache      *gocache.Cache
	group      singleflight.Group
	log        *logger.Log
}

type WebConfig struct {
	// Timeout bounds one resolution round trip. Required.
	Timeout time.Duration
	// CacheTTL bounds how long a resolved key is reused. Required.
	CacheTTL time.Duration
	Log      *logger.Log
}

func NewWeb(cfg WebConfig) (*Web, error) {
	if cfg.Timeout <= 0 {
		return nil, errors.New("didresolver: timeout not configured")
	}
	if cfg.CacheTTL <= 0 {
		return nil, errors.New("didresolver: cache ttl not configured")
	}
	if cfg.Log == nil {
		return nil, errors.New("didresolver: logger not configured")
	}
	return &Web{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		timeout:    cfg.Timeout,
		cache:      gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		log:        cfg.Log,
	}, nil
}

func (w *Web) Resolve(ctx context.Context, did string, kid string) (crypto.PublicKey, error) {
	cacheKey := did + "|" + kid
	if cached, ok := w.cache.Get(cacheKey); ok {
		return cached.(crypto.PublicKey), nil
	}

	pub, err, _ := w.group.Do(cacheKey, func() (any, error) {
		if cached, ok := w.cache.Get(cacheKey); ok {
			return cached.(crypto.PublicKey), nil
		}
		pub, err := w.resolve(ctx, did, kid)
		if err != nil {
			return nil, err
		}
		w.cache.Set(cacheKey, pub, gocache.DefaultExpiration)
		return pub, nil
	})
	if err != nil {
		return nil, err
	}
	return pub.(crypto.PublicKey), nil
}

func (w *Web) resolve(ctx context.Context, did string, kid string) (crypto.PublicKey, error) {
	docURL, err := documentURL(did)
	if err != nil {
		w.log.Debug("did not resolvable", "did", did, "err", err.Error())
		return nil, vcerror.Newf(vcerror.ErrDIDFrontendQueryDID, "DID not resolvable: %s", did)
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, vcerror.Newf(vcerror.ErrDIDFrontendQueryDID, "DID not resolvable: %s", did)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.log.Debug("did document fetch failed", "did", did, "err", err.Error())
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, vcerror.New(vcerror.ErrConnectionTimeout, "DID resolution timed out")
		}
		return nil, vcerror.Newf(vcerror.ErrConnectionFetchError, "DID document fetch failed for %s", did)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, vcerror.Newf(vcerror.ErrDIDFrontendQueryDID, "DID document fetch for %s returned status %d", did, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, vcerror.Newf(vcerror.ErrConnectionFetchError, "DID document fetch failed for %s", did)
	}

	doc := &Document{}
	if err := json.Unmarshal(body, doc); err != nil {
		return nil, vcerror.Newf(vcerror.ErrDIDFrontendQueryDID, "malformed DID document for %s", did)
	}

	pub, err := doc.SelectKey(did, kid)
	if err != nil {
		w.log.Debug("no usable key in did document", "did", did, "kid", kid, "err", err.Error())
		return nil, vcerror.Newf(vcerror.ErrDIDFrontendQueryDID, "no usable key in DID document for %s", did)
	}
	return pub, nil
}

// documentURL follows the did:web transformation. Plain hosts map to
// /.well-known/did.json, path qualified DIDs map to <path>/did.json. Ports
// arrive percent encoded. Loopback hosts resolve over plain HTTP so local
// setups work without certificates.
func documentURL(did string) (string, error) {
	const prefix = "did:web:"
	if !strings.HasPrefix(did, prefix) {
		return "", fmt.Errorf("unsupported DID method in %s", did)
	}

	parts := strings.Split(strings.TrimPrefix(did, prefix), ":")
	host, err := url.PathUnescape(parts[0])
	if err != nil || host == "" {
		return "", fmt.Errorf("bad host in %s", did)
	}

	scheme := "https"
	if isLoopback(host) {
		scheme = "http"
	}

	if len(parts) == 1 {
		return fmt.Sprintf("%s://%s/.well-known/did.json", scheme, host), nil
	}

	segments := make([]string, 0, len(parts)-1)
	for _, part := range parts[1:] {
		segment, err := url.PathUnescape(part)
		if err != nil || segment == "" {
			return "", fmt.Errorf("bad path segment in %s", did)
		}
		segments = append(segments, segment)
	}
	return fmt.Sprintf("%s://%s/%s/did.json", scheme, host, strings.Join(segments, "/")), nil
}

func isLoopback(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
