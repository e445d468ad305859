// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passpoll.
//
// go-passpoll is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package mongo implements polling.UserRepository and
// polling.PollRepository on MongoDB. Users and polls live in their own
// collections and poll ids are allocated from a counters collection.
// Multi-step writes rely on single-document atomicity: every conditional
// update is a single UpdateOne whose filter encodes the precondition.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/jeremyhahn/go-passpoll/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passpoll/pkg/polling"
)

const (
	// DefaultDatabase is the database used when none is configured.
	DefaultDatabase = "polling_application"

	// DefaultTimeout bounds connection setup and shutdown.
	DefaultTimeout = 10 * time.Second

	usersCollection    = "users"
	pollsCollection    = "polls"
	countersCollection = "counters"

	pollSequence = "poll_id"
)

// Config configures the MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Storage is a MongoDB-backed user and poll store.
type Storage struct {
	client   *mongo.Client
	users    *mongo.Collection
	polls    *mongo.Collection
	counters *mongo.Collection
	timeout  time.Duration
	logger   logger.Logger
	now      func() time.Time
}

// Option configures a Storage.
type Option func(*Storage)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Storage) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithClock overrides the clock used for poll creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		s.now = now
	}
}

// Connect dials MongoDB, verifies the connection with a ping and creates
// the unique indexes.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Storage, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongodb uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client, err := mongo.Connect(options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout))
	if err != nil {
		return nil, polling.NewStoreError("connect", err)
	}

	db := client.Database(cfg.Database)
	s := &Storage{
		client:   client,
		users:    db.Collection(usersCollection),
		polls:    db.Collection(pollsCollection),
		counters: db.Collection(countersCollection),
		timeout:  cfg.Timeout,
		logger:   logger.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	setupCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := s.Ping(setupCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	if err := s.EnsureIndexes(setupCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	s.logger.Info("connected to mongodb", logger.String("database", cfg.Database))
	return s, nil
}

// Ping checks that the primary is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return polling.NewStoreError("ping", err)
	}
	return nil
}

// EnsureIndexes creates the unique indexes on user names, user ids and
// poll ids. Existing indexes are left untouched.
func (s *Storage) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	if _, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_name", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: unique},
	}); err != nil {
		return polling.NewStoreError("create user indexes", err)
	}
	if _, err := s.polls.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "poll_id", Value: 1}},
		Options: unique,
	}); err != nil {
		return polling.NewStoreError("create poll indexes", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Storage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return polling.NewStoreError("disconnect", err)
	}
	return nil
}

// Drop removes every collection. Used by tests.
func (s *Storage) Drop(ctx context.Context) error {
	for _, c := range []*mongo.Collection{s.users, s.polls, s.counters} {
		if err := c.Drop(ctx); err != nil {
			return polling.NewStoreError("drop "+c.Name(), err)
		}
	}
	return nil
}

// nextSequence atomically increments and returns the named counter.
func (s *Storage) nextSequence(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: name}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, polling.NewStoreError("next sequence", err)
	}
	return doc.Seq, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

var (
	_ polling.UserRepository = (*Storage)(nil)
	_ polling.PollRepository = (*Storage)(nil)
)
