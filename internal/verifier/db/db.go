// Package db persists the verifier's OpenID4VP sessions. Deployments pick
// between an in-memory store and mongo via configuration; both keep expired
// sessions readable for a retention window so polling clients observe
// EXPIRED instead of an unknown session.
package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"dtw/pkg/logger"
	"dtw/pkg/model"
	"dtw/pkg/openid4vp"
	"dtw/pkg/trace"
)

// ErrNotFound is returned when a lookup matches no session.
var ErrNotFound = errors.New("session not found")

// ExpiredRetention keeps sessions readable past their logical expiry before
// the store purges them.
const ExpiredRetention = 30 * time.Minute

// SessionDoc is one OpenID4VP session, keyed by (client_id, nonce).
type SessionDoc struct {
	SessionID              string                            `bson:"session_id" json:"session_id"`
	ClientID               string                            `bson:"client_id" json:"client_id"`
	Nonce                  string                            `bson:"nonce" json:"nonce"`
	State                  openid4vp.SessionState            `bson:"state" json:"state"`
	PresentationDefinition *openid4vp.PresentationDefinition `bson:"presentation_definition,omitempty" json:"presentation_definition,omitempty"`
	Verdict                *model.VerifyResult               `bson:"verdict,omitempty" json:"verdict,omitempty"`
	CreatedAt              time.Time                         `bson:"created_at" json:"created_at"`
	UpdatedAt              time.Time                         `bson:"updated_at" json:"updated_at"`
	ExpiresAt              time.Time                         `bson:"expires_at" json:"expires_at"`
}

// Expired reports whether the session passed its logical expiry.
func (d *SessionDoc) Expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && now.After(d.ExpiresAt)
}

// Service owns the verifier's datastore handles.
type Service struct {
	client  *mongo.Client
	cfg     *model.Cfg
	log     *logger.Log
	tracer  *trace.Tracer
	timeout time.Duration

	SessionColl *SessionColl
}

// New connects to mongo and prepares the session collection.
func New(ctx context.Context, cfg *model.Cfg, tracer *trace.Tracer, log *logger.Log) (*Service, error) {
	service := &Service{
		cfg:     cfg,
		log:     log,
		tracer:  tracer,
		timeout: cfg.Common.DBTimeout,
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.Common.Mongo.URI))
	if err != nil {
		return nil, err
	}
	service.client = client

	pingCtx, cancel := context.WithTimeout(ctx, service.timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, err
	}

	database := client.Database("dtw_verifier")
	service.SessionColl = &SessionColl{
		service: service,
		coll:    database.Collection("sessions"),
	}

	if err := service.SessionColl.createIndexes(ctx); err != nil {
		return nil, err
	}

	service.log.Info("datastore connected")
	return service, nil
}

// Status reports datastore connectivity for the health endpoint.
func (s *Service) Status(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from mongo.
func (s *Service) Close(ctx context.Context) error {
	s.log.Info("datastore disconnecting")
	return s.client.Disconnect(ctx)
}
