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
	"dtw/pkg/trace"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("document not found")

// Service owns the issuer's datastore handles.
type Service struct {
	client  *mongo.Client
	cfg     *model.Cfg
	log     *logger.Log
	tracer  *trace.Tracer
	timeout time.Duration

	CredentialColl *CredentialColl
	StatusListColl *StatusListColl
}

// New connects to mongo and prepares the issuer collections.
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

	database := client.Database("dtw_issuer")
	service.CredentialColl = &CredentialColl{
		service: service,
		coll:    database.Collection("credentials"),
	}
	service.StatusListColl = &StatusListColl{
		service: service,
		coll:    database.Collection("status_lists"),
	}

	if err := service.CredentialColl.createIndexes(ctx); err != nil {
		return nil, err
	}
	if err := service.StatusListColl.createIndexes(ctx); err != nil {
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
