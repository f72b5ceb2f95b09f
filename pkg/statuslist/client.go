package statuslist

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"dtw/pkg/didresolver"
	"dtw/pkg/logger"
	"dtw/pkg/vcerror"
	"dtw/pkg/vcjwt"
)

const maxTokenBytes = 4 << 20

// Client fetches status list tokens, verifies them against the issuer DID
// and evaluates individual entries. Fetched lists are cached per URL with a
// short TTL and concurrent fetches of the same URL collapse into one.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	cache      *ttlcache.Cache[string, *BitString]
	group      singleflight.Group
	limiter    *rate.Limiter
	resolver   didresolver.Resolver
	clock      func() time.Time
	log        *logger.Log
}

type ClientConfig struct {
	// HTTPTimeout bounds one list fetch. Required.
	HTTPTimeout time.Duration
	// CacheTTL bounds reuse of a fetched list. Required.
	CacheTTL time.Duration
	// RequestsPerSecond throttles outbound fetches. Defaults to 10.
	RequestsPerSecond float64
	Resolver          didresolver.Resolver
	Clock             func() time.Time
	Log               *logger.Log
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.HTTPTimeout <= 0 {
		return nil, errors.New("statuslist: http timeout not configured")
	}
	if cfg.CacheTTL <= 0 {
		return nil, errors.New("statuslist: cache ttl not configured")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("statuslist: resolver not configured")
	}
	if cfg.Log == nil {
		return nil, errors.New("statuslist: logger not configured")
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	cache := ttlcache.New[string, *BitString](
		ttlcache.WithTTL[string, *BitString](cfg.CacheTTL),
		ttlcache.WithDisableTouchOnHit[string, *BitString](),
	)
	go cache.Start()

	return &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		timeout:    cfg.HTTPTimeout,
		cache:      cache,
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		resolver:   cfg.Resolver,
		clock:      clock,
		log:        cfg.Log,
	}, nil
}

// Close stops the cache janitor.
func (c *Client) Close() {
	c.cache.Stop()
}

// Get returns the status of one credential's status list entry. issuerDID
// identifies the party whose key must have signed the list.
func (c *Client) Get(ctx context.Context, entry *vcjwt.CredentialStatus, issuerDID string) (Status, error) {
	if entry == nil || entry.StatusListCredential == "" {
		return 0, vcerror.New(vcerror.ErrStatusListValidationError, "credential carries no status list reference")
	}
	index, err := entry.Index()
	if err != nil {
		return 0, vcerror.New(vcerror.ErrStatusListValidationError, "malformed statusListIndex")
	}

	bits, err := c.fetch(ctx, entry.StatusListCredential, issuerDID)
	if err != nil {
		return 0, err
	}

	status, err := bits.Get(index)
	if err != nil {
		return 0, vcerror.Newf(vcerror.ErrStatusListIndexOutOfRange, "status list index %d out of range", index)
	}
	if !status.Known() {
		return 0, vcerror.Newf(vcerror.ErrStatusListUnknownStatusValue, "unknown status value %d at index %d", uint8(status), index)
	}
	return status, nil
}

func (c *Client) fetch(ctx context.Context, url string, issuerDID string) (*BitString, error) {
	if item := c.cache.Get(url); item != nil {
		return item.Value(), nil
	}

	v, err, _ := c.group.Do(url, func() (any, error) {
		if item := c.cache.Get(url); item != nil {
			return item.Value(), nil
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, vcerror.Cancelled()
		}

		token, err := c.download(ctx, url)
		if err != nil {
			return nil, err
		}

		claims, err := c.parse(ctx, token, issuerDID)
		if err != nil {
			return nil, err
		}

		if claims.StatusList.Bits != BitsPerEntry {
			return nil, vcerror.Newf(vcerror.ErrStatusListValidationError, "unsupported status list bit width %d", claims.StatusList.Bits)
		}
		bits, err := claims.StatusList.BitString()
		if err != nil {
			c.log.Debug("status list decode failed", "url", url, "err", err.Error())
			return nil, vcerror.New(vcerror.ErrStatusListValidationError, "malformed status list payload")
		}

		c.cache.Set(url, bits, ttlcache.DefaultTTL)
		return bits, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*BitString), nil
}

func (c *Client) download(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", vcerror.New(vcerror.ErrConnectionFetchError, "status list fetch failed")
	}
	req.Header.Set("Accept", "application/statuslist+jwt")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("status list fetch failed", "url", url, "err", err.Error())
		if errors.Is(err, context.DeadlineExceeded) {
			return "", vcerror.New(vcerror.ErrConnectionTimeout, "status list fetch timed out")
		}
		return "", vcerror.New(vcerror.ErrConnectionFetchError, "status list fetch failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", vcerror.Newf(vcerror.ErrConnectionFetchError, "status list fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBytes))
	if err != nil {
		return "", vcerror.New(vcerror.ErrConnectionFetchError, "status list fetch failed")
	}
	return strings.TrimSpace(string(body)), nil
}

// parse verifies the token signature with the issuer's resolved key.
func (c *Client) parse(ctx context.Context, token string, issuerDID string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithTimeFunc(c.clock),
	)
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return c.resolver.Resolve(ctx, issuerDID, kid)
	})
	if err != nil {
		c.log.Debug("status list token rejected", "err", err.Error())
		return nil, vcerror.New(vcerror.ErrStatusListProofError, "status list signature invalid")
	}
	if claims.Issuer != "" && claims.Issuer != issuerDID {
		return nil, vcerror.New(vcerror.ErrStatusListProofError, "status list issuer does not match credential issuer")
	}
	return claims, nil
}
