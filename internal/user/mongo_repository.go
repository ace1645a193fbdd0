// File: internal/user/mongo_repository.go
package user

import (
	"context"
	"errors"
	"fmt"

	"authgate/internal/common"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// CollectionName is the document collection holding profiles.
const CollectionName = "users"

type mongoRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoRepository creates a repository over the users collection in db.
func NewMongoRepository(client *mongo.Client, db *mongo.Database) Repository {
	return &mongoRepository{client: client, coll: db.Collection(CollectionName)}
}

// EnsureMongoIndexes creates the unique index on uid that serializes concurrent creates.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(CollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "uid", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uid_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create uid index: %w", err)
	}
	return nil
}

func (r *mongoRepository) Create(ctx context.Context, user *User) error {
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return common.ErrDuplicateProfile.WithDetails("A profile for this uid already exists.")
		}
		return err
	}
	return nil
}

func (r *mongoRepository) FindByUID(ctx context.Context, uid string) (*User, error) {
	var userModel User
	err := r.coll.FindOne(ctx, bson.D{{Key: "uid", Value: uid}}).Decode(&userModel)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrNotFound.WithDetails("User not found with this uid.")
		}
		return nil, err
	}
	return &userModel, nil
}

func (r *mongoRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}
