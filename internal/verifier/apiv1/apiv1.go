// Package apiv1 implements the verifier operations: presentation validation
// and the OpenID4VP session protocol.
package apiv1

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"dtw/internal/verifier/db"
	"dtw/pkg/didresolver"
	"dtw/pkg/helpers"
	"dtw/pkg/logger"
	"dtw/pkg/mdoc"
	"dtw/pkg/messagebroker"
	"dtw/pkg/model"
	"dtw/pkg/statuslist"
	"dtw/pkg/trace"
	"dtw/pkg/vcjwt"
)

// SessionStore persists OpenID4VP sessions keyed by (client_id, nonce).
type SessionStore interface {
	Save(ctx context.Context, doc *db.SessionDoc) error
	Get(ctx context.Context, clientID, nonce string) (*db.SessionDoc, error)
	Delete(ctx context.Context, clientID, nonce string) error
}

// Client holds the verifier's api endpoints.
type Client struct {
	cfg    *model.Cfg
	log    *logger.Log
	tracer *trace.Tracer

	sessions SessionStore
	broker   messagebroker.Publisher

	resolver     didresolver.Resolver
	validator    *vcjwt.Validator
	statusClient *statuslist.Client
	// mdocVerifier is nil when no IACA roots are configured; mdoc
	// presentations are then rejected as unsupported.
	mdocVerifier *mdoc.Verifier

	statusChecker StatusChecker

	// sessionLocks serialises writers per (client_id, nonce) pair.
	sessionLocks helpers.KeyedMutex

	clock func() time.Time
}

// New creates the verifier api client.
func New(ctx context.Context, sessions SessionStore, broker messagebroker.Publisher, cfg *model.Cfg, tracer *trace.Tracer, log *logger.Log) (*Client, error) {
	if cfg.Verifier == nil {
		return nil, errors.New("verifier configuration missing")
	}

	local := didresolver.NewLocal()
	for did, pemKey := range cfg.Verifier.TrustedKeys {
		if err := local.RegisterPEM(did, pemKey); err != nil {
			return nil, fmt.Errorf("register trusted key for %s: %w", did, err)
		}
	}
	web, err := didresolver.NewWeb(didresolver.WebConfig{
		Timeout:  cfg.Common.HTTPTimeout,
		CacheTTL: cfg.Verifier.DIDCacheTTL,
		Log:      log.New("didresolver"),
	})
	if err != nil {
		return nil, err
	}
	resolver := didresolver.Chain{local, web}

	statusClient, err := statuslist.NewClient(statuslist.ClientConfig{
		HTTPTimeout: cfg.Common.HTTPTimeout,
		CacheTTL:    cfg.Verifier.StatusListTTL,
		Resolver:    resolver,
		Log:         log.New("statuslist"),
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:          cfg,
		log:          log,
		tracer:       tracer,
		sessions:     sessions,
		broker:       broker,
		resolver:     resolver,
		validator:    vcjwt.NewValidator(resolver, log.New("vcjwt"), vcjwt.WithAllowedSkew(cfg.Verifier.AllowedSkew)),
		statusClient: statusClient,
		clock:        time.Now,
	}

	if len(cfg.Verifier.TrustedIACAPaths) > 0 {
		roots, err := loadIACARoots(cfg.Verifier.TrustedIACAPaths)
		if err != nil {
			return nil, fmt.Errorf("load IACA roots: %w", err)
		}
		c.mdocVerifier, err = mdoc.NewVerifier(mdoc.VerifierConfig{
			TrustRoots:          roots,
			SkipRevocationCheck: cfg.Verifier.SkipMDocRevocationCheck,
			HTTPClient:          &http.Client{Timeout: cfg.Common.HTTPTimeout},
			Log:                 log.New("mdoc"),
		})
		if err != nil {
			return nil, err
		}
	}

	// Stores backed by a live datastore feed the health probe.
	if checker, ok := sessions.(StatusChecker); ok {
		c.statusChecker = checker
	}

	c.log.Info("verifier api ready", "trusted_keys", len(cfg.Verifier.TrustedKeys), "mdoc_enabled", c.mdocVerifier != nil)
	return c, nil
}

// Close releases the status list cache.
func (c *Client) Close(ctx context.Context) error {
	c.statusClient.Close()
	return nil
}

func loadIACARoots(paths []string) ([]*x509.Certificate, error) {
	var roots []*x509.Certificate
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		rest := raw
		for {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				break
			}
			if block.Type != "CERTIFICATE" {
				continue
			}
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse certificate in %s: %w", path, err)
			}
			roots = append(roots, cert)
		}
	}
	if len(roots) == 0 {
		return nil, errors.New("no certificates in trusted IACA files")
	}
	return roots, nil
}

func sessionKey(clientID, nonce string) string {
	return clientID + "|" + nonce
}

// publishPresented emits a presentation event. Delivery is best effort; a
// verdict must not fail because the broker is down.
func (c *Client) publishPresented(ctx context.Context, verdict *model.VerifyResult) {
	activity := &messagebroker.Activity{
		Type:      messagebroker.ActivityPresented,
		HolderDID: verdict.HolderDID,
		At:        c.clock().UTC(),
	}
	if len(verdict.VCs) > 0 {
		activity.IssuerDID = verdict.VCs[0].IssuerDID
	}
	if err := c.broker.Publish(ctx, activity); err != nil {
		c.log.Info("activity publish failed", "type", string(messagebroker.ActivityPresented), "err", err.Error())
	}
}

// externalURL joins the configured public base URL and a path.
func (c *Client) externalURL(path string) string {
	return strings.TrimSuffix(c.cfg.Verifier.ExternalURL, "/") + path
}
