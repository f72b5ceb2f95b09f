package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"dtw/pkg/statuslist"
)

// StatusListDoc is one revocation status list. Bits is the raw two bit
// array; SignedToken is the most recently published status list JWT, empty
// until the first publication.
type StatusListDoc struct {
	ListID      string    `bson:"list_id" json:"list_id"`
	Size        int       `bson:"size" json:"size"`
	NextIndex   int       `bson:"next_index" json:"next_index"`
	Bits        []byte    `bson:"bits" json:"-"`
	SignedToken string    `bson:"signed_token" json:"-"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// StatusListColl stores status lists and hands out entry indices.
type StatusListColl struct {
	service *Service
	coll    *mongo.Collection
}

func (c *StatusListColl) createIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.service.timeout)
	defer cancel()

	_, err := c.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "list_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	return err
}

// Allocate reserves the next free entry in the newest open list and returns
// its (listID, index) pair. When every list is full a fresh list of the
// given size is created and its first entry returned. The increment is a
// single findAndModify, so concurrent issuers never receive the same index;
// an allocation whose credential is later abandoned simply leaves a gap.
func (c *StatusListColl) Allocate(ctx context.Context, size int) (string, int, error) {
	ctx, span := c.service.tracer.Start(ctx, "db:statuslist:allocate")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.service.timeout)
	defer cancel()

	now := time.Now().UTC()
	res := c.coll.FindOneAndUpdate(ctx,
		bson.M{"$expr": bson.M{"$lt": bson.A{"$next_index", "$size"}}},
		bson.M{
			"$inc": bson.M{"next_index": 1},
			"$set": bson.M{"updated_at": now},
		},
		options.FindOneAndUpdate().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetReturnDocument(options.Before),
	)

	doc := &StatusListDoc{}
	err := res.Decode(doc)
	if err == nil {
		return doc.ListID, doc.NextIndex, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return "", 0, fmt.Errorf("allocate status list index: %w", err)
	}

	bits, err := statuslist.NewBitString(size)
	if err != nil {
		return "", 0, fmt.Errorf("new status list: %w", err)
	}
	fresh := &StatusListDoc{
		ListID:    uuid.NewString(),
		Size:      size,
		NextIndex: 1,
		Bits:      bits.Bytes(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := c.coll.InsertOne(ctx, fresh); err != nil {
		return "", 0, fmt.Errorf("insert status list: %w", err)
	}
	c.service.log.Info("status list created", "list_id", fresh.ListID, "size", size)
	return fresh.ListID, 0, nil
}

// Get fetches one status list by id.
func (c *StatusListColl) Get(ctx context.Context, listID string) (*StatusListDoc, error) {
	ctx, span := c.service.tracer.Start(ctx, "db:statuslist:get")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.service.timeout)
	defer cancel()

	doc := &StatusListDoc{}
	err := c.coll.FindOne(ctx, bson.M{"list_id": listID}).Decode(doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find status list: %w", err)
	}
	return doc, nil
}

// Update persists new bits and the signed token for one list.
func (c *StatusListColl) Update(ctx context.Context, doc *StatusListDoc) error {
	ctx, span := c.service.tracer.Start(ctx, "db:statuslist:update")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.service.timeout)
	defer cancel()

	res, err := c.coll.UpdateOne(ctx,
		bson.M{"list_id": doc.ListID},
		bson.M{"$set": bson.M{
			"bits":         doc.Bits,
			"signed_token": doc.SignedToken,
			"updated_at":   time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("update status list: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
