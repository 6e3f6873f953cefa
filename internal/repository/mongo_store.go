package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"typeduel/internal/model"
)

// MongoStore persists the arena in MongoDB. Commits use multi-document
// transactions and therefore need a replica set.
type MongoStore struct {
	client  *mongo.Client
	users   *mongo.Collection
	ledger  *mongo.Collection
	matches *mongo.Collection
	solo    *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		client:  client,
		users:   db.Collection("users"),
		ledger:  db.Collection("coin_ledger"),
		matches: db.Collection("matches"),
		solo:    db.Collection("solo_runs"),
	}
}

// ConnectMongo dials and pings a MongoDB deployment
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

func (s *MongoStore) AutoMigrate(ctx context.Context) error {
	_, err := s.ledger.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return err
	}
	_, err = s.matches.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "p1Id", Value: 1}}},
		{Keys: bson.D{{Key: "p2Id", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.solo.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user *model.User) error {
	if user.Rating == 0 {
		user.Rating = model.DefaultRating
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	_, err := s.users.InsertOne(ctx, user)
	return err
}

func (s *MongoStore) GetMatch(ctx context.Context, id string) (*model.MatchRecord, error) {
	var rec model.MatchRecord
	err := s.matches.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (s *MongoStore) LedgerFor(ctx context.Context, userID string) ([]model.CoinLedgerEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(LedgerLimit)
	cursor, err := s.ledger.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	rows := []model.CoinLedgerEntry{}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *MongoStore) CommitMatchOutcome(ctx context.Context, outcome *model.MatchOutcome) ([]model.ProgressUpdate, error) {
	if err := validateOutcome(outcome); err != nil {
		return nil, err
	}

	session, err := s.client.StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		err := s.matches.FindOne(sc, bson.M{"_id": outcome.SessionID}).Err()
		if err == nil {
			return nil, ErrOutcomeAlreadyCommitted
		}
		if err != mongo.ErrNoDocuments {
			return nil, err
		}

		var current [2]model.User
		for i, p := range outcome.Players {
			if err := s.users.FindOne(sc, bson.M{"_id": p.UserID}).Decode(&current[i]); err != nil {
				if err == mongo.ErrNoDocuments {
					return nil, fmt.Errorf("%w: %s", ErrUserNotFound, p.UserID)
				}
				return nil, err
			}
		}

		plan, err := planCommit(outcome, current)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		for _, u := range plan.users {
			_, err := s.users.UpdateOne(sc, bson.M{"_id": u.ID}, bson.M{"$set": bson.M{
				"rating":      u.Rating,
				"xp":          u.XP,
				"coinBalance": u.CoinBalance,
				"updatedAt":   now,
			}})
			if err != nil {
				return nil, err
			}
		}
		if len(plan.ledger) > 0 {
			docs := make([]interface{}, len(plan.ledger))
			for i := range plan.ledger {
				docs[i] = plan.ledger[i]
			}
			if _, err := s.ledger.InsertMany(sc, docs); err != nil {
				return nil, err
			}
		}
		if _, err := s.matches.InsertOne(sc, plan.record); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, ErrOutcomeAlreadyCommitted
			}
			return nil, err
		}
		return plan.updates, nil
	})
	if err != nil {
		return nil, fmt.Errorf("commit outcome %s: %w", outcome.SessionID, err)
	}

	updates, ok := result.([]model.ProgressUpdate)
	if !ok {
		return nil, errors.New("commit outcome: unexpected transaction result")
	}
	return updates, nil
}

func (s *MongoStore) CommitSoloRun(ctx context.Context, run *model.SoloRun) (*model.ProgressUpdate, error) {
	if err := validateSoloRun(run); err != nil {
		return nil, err
	}

	session, err := s.client.StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var current model.User
		if err := s.users.FindOne(sc, bson.M{"_id": run.UserID}).Decode(&current); err != nil {
			if err == mongo.ErrNoDocuments {
				return nil, fmt.Errorf("%w: %s", ErrUserNotFound, run.UserID)
			}
			return nil, err
		}

		plan, err := planSoloRun(run, current)
		if err != nil {
			return nil, err
		}
		_, err = s.users.UpdateOne(sc, bson.M{"_id": current.ID}, bson.M{"$set": bson.M{
			"xp":          plan.user.XP,
			"coinBalance": plan.user.CoinBalance,
			"updatedAt":   time.Now(),
		}})
		if err != nil {
			return nil, err
		}
		if len(plan.ledger) > 0 {
			docs := make([]interface{}, len(plan.ledger))
			for i := range plan.ledger {
				docs[i] = plan.ledger[i]
			}
			if _, err := s.ledger.InsertMany(sc, docs); err != nil {
				return nil, err
			}
		}
		if _, err := s.solo.InsertOne(sc, run); err != nil {
			return nil, err
		}
		return &plan.update, nil
	})
	if err != nil {
		return nil, fmt.Errorf("commit solo run %s: %w", run.ID, err)
	}

	update, ok := result.(*model.ProgressUpdate)
	if !ok {
		return nil, errors.New("commit solo run: unexpected transaction result")
	}
	return update, nil
}
