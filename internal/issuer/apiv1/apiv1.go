// Package apiv1 implements the issuer operations: credential issuance,
// lifecycle transitions and status list publication.
package apiv1

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kaptinlin/jsonschema"

	"dtw/internal/issuer/db"
	"dtw/pkg/helpers"
	"dtw/pkg/logger"
	"dtw/pkg/messagebroker"
	"dtw/pkg/model"
	"dtw/pkg/statuslist"
	"dtw/pkg/trace"
)

// CredentialStore persists issued credential records.
type CredentialStore interface {
	Save(ctx context.Context, doc *db.CredentialDoc) error
	GetByCID(ctx context.Context, cid string) (*db.CredentialDoc, error)
	GetByNonce(ctx context.Context, nonce string) (*db.CredentialDoc, error)
	SetState(ctx context.Context, cid string, state model.CredentialState) error
	All(ctx context.Context) ([]*db.CredentialDoc, error)
}

// StatusListStore persists status lists and allocates entry indices.
type StatusListStore interface {
	Allocate(ctx context.Context, size int) (listID string, index int, err error)
	Get(ctx context.Context, listID string) (*db.StatusListDoc, error)
	Update(ctx context.Context, doc *db.StatusListDoc) error
}

// Client holds the issuer's api endpoints.
type Client struct {
	cfg    *model.Cfg
	log    *logger.Log
	tracer *trace.Tracer

	credentialStore CredentialStore
	statusListStore StatusListStore
	broker          messagebroker.Publisher
	generator       *statuslist.Generator

	signingKey    *ecdsa.PrivateKey
	keyID         string
	subjectSchema *jsonschema.Schema
	statusChecker StatusChecker

	// listLocks serialises writers per status list; signedLists caches
	// published tokens so reads never touch the datastore.
	listLocks   helpers.KeyedMutex
	signedLists sync.Map

	clock func() time.Time
}

// New creates the issuer api client.
func New(ctx context.Context, credentialStore CredentialStore, statusListStore StatusListStore, broker messagebroker.Publisher, cfg *model.Cfg, tracer *trace.Tracer, log *logger.Log) (*Client, error) {
	if cfg.Issuer == nil {
		return nil, errors.New("issuer configuration missing")
	}

	signingKey, err := loadSigningKey(cfg.Issuer.SigningKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}

	keyID := cfg.Issuer.KeyID
	if keyID == "" {
		keyID = cfg.Issuer.DID + "#key-1"
	}

	generator, err := statuslist.NewGenerator(statuslist.GeneratorConfig{
		Key:      signingKey,
		KeyID:    keyID,
		Issuer:   cfg.Issuer.DID,
		TokenTTL: cfg.Issuer.StatusList.TokenTTL,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:             cfg,
		log:             log,
		tracer:          tracer,
		credentialStore: credentialStore,
		statusListStore: statusListStore,
		broker:          broker,
		generator:       generator,
		signingKey:      signingKey,
		keyID:           keyID,
		clock:           time.Now,
	}

	// Stores backed by a live datastore feed the health probe.
	if checker, ok := credentialStore.(StatusChecker); ok {
		c.statusChecker = checker
	}

	if path := cfg.Issuer.SubjectSchemaPath; path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read subject schema: %w", err)
		}
		schema, err := jsonschema.NewCompiler().Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("compile subject schema: %w", err)
		}
		c.subjectSchema = schema
	}

	c.log.Info("issuer api ready", "did", cfg.Issuer.DID, "key_id", keyID)
	return c, nil
}

func loadSigningKey(path string) (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block in signing key file")
	}
	switch block.Type {
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		ecKey, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, errors.New("signing key is not an EC key")
		}
		return ecKey, nil
	}
	return nil, fmt.Errorf("unsupported PEM block %q in signing key file", block.Type)
}

// statusListURL is the public URL one status list is served from, and the
// sub claim of its signed token.
func (c *Client) statusListURL(listID string) string {
	return fmt.Sprintf("%s/api/status/%s", strings.TrimSuffix(c.cfg.Issuer.ExternalURL, "/"), listID)
}

// publishActivity emits a lifecycle event. Delivery is best effort; issuance
// and revocation must not fail because the broker is down.
func (c *Client) publishActivity(ctx context.Context, activityType messagebroker.ActivityType, doc *db.CredentialDoc) {
	activity := &messagebroker.Activity{
		Type:      activityType,
		CID:       doc.CID,
		IssuerDID: doc.IssuerDID,
		HolderDID: doc.HolderDID,
		At:        c.clock().UTC(),
	}
	if err := c.broker.Publish(ctx, activity); err != nil {
		c.log.Info("activity publish failed", "type", string(activityType), "cid", doc.CID, "err", err.Error())
	}
}
