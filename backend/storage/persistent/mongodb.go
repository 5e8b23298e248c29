package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jghoshh/arise/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStorage is a struct representing a MongoDB storage.
// It provides an interface to perform CRUD operations on the user documents
// and refresh tokens kept in the MongoDB database.
type MongoStorage struct {
	client *mongo.Client
	dbName string
}

// NewMongoStorage creates a new instance of MongoStorage.
// This function doesn't establish a connection to the MongoDB server.
// To connect to the server, use the Connect method of the returned MongoStorage instance.
func NewMongoStorage() *MongoStorage {
	return &MongoStorage{}
}

func (m *MongoStorage) users() *mongo.Collection {
	return m.client.Database(m.dbName).Collection("users")
}

func (m *MongoStorage) refreshTokens() *mongo.Collection {
	return m.client.Database(m.dbName).Collection("refreshTokens")
}

// Connect establishes a connection to the MongoDB server at the given URI
// and a database name. Sets up indexes and unique constraints as necessary.
// Returns an error if any issues are encountered.
func (m *MongoStorage) Connect(dbName, uri string) error {

	// Set a timeout for the connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("error connecting to MongoDB: %v", err)
	}

	// Fail fast when the server is unreachable so callers can degrade to the
	// in-memory backend instead of timing out on the first query.
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("error pinging MongoDB: %v", err)
	}

	m.client = client
	m.dbName = dbName

	// Create a unique index on the "email" field. Email is the primary key of
	// a user document, so every user has exactly one document.
	emailIndexModel := mongo.IndexModel{
		Keys: bson.M{
			"email": 1, // 1 for ascending order
		},
		Options: options.Index().SetUnique(true),
	}

	_, err = m.users().Indexes().CreateOne(ctx, emailIndexModel)
	if err != nil {
		return fmt.Errorf("error creating email index: %v", err)
	}

	// Create an index on the "token" field. This will speed up refresh token
	// lookups during token rotation.
	tokenIndexModel := mongo.IndexModel{
		Keys: bson.M{
			"token": 1,
		},
		Options: options.Index(),
	}

	_, err = m.refreshTokens().Indexes().CreateOne(ctx, tokenIndexModel)
	if err != nil {
		return fmt.Errorf("error creating token index: %v", err)
	}

	return nil
}

// Disconnect closes the connection to the MongoDB server.
// It should be called when the MongoStorage instance is no longer needed.
// Returns an error if the disconnection process fails.
func (m *MongoStorage) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := m.client.Disconnect(ctx)
	if err != nil {
		return fmt.Errorf("error disconnecting from MongoDB: %v", err)
	}

	return nil
}

// UserCount returns the number of documents in the 'users' collection with
// the given email. With the unique email index this is 0 or 1.
func (m *MongoStorage) UserCount(ctx context.Context, email string) (int64, error) {
	count, err := m.users().CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AddUser adds a new user document to the 'users' collection.
// Returns the added user instance and an error if the insert operation fails.
// Inserting a second document for the same email fails on the unique index.
func (m *MongoStorage) AddUser(ctx context.Context, user *models.User) (*models.User, error) {
	_, err := m.users().InsertOne(ctx, user)
	if err != nil {
		if writeException, ok := err.(mongo.WriteException); ok {
			for _, writeError := range writeException.WriteErrors {
				if writeError.Code == 11000 {
					return nil, ErrUserExists
				}
			}
		}
		return nil, err
	}
	return user, nil
}

// FindUser finds the user document with the given email.
// Returns ErrNoUser when no document exists.
func (m *MongoStorage) FindUser(ctx context.Context, email string) (*models.User, error) {
	result := m.users().FindOne(ctx, bson.M{"email": email})
	user := &models.User{}
	err := result.Decode(user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNoUser
		}
		return nil, err
	}
	return user, nil
}

// updateField replaces a single top-level field of a user document.
func (m *MongoStorage) updateField(ctx context.Context, email string, update bson.M) error {
	result, err := m.users().UpdateOne(ctx, bson.M{"email": email}, bson.M{"$set": update})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNoUser
	}
	return nil
}

// UpdateQuests replaces the quests field of the user document wholesale.
func (m *MongoStorage) UpdateQuests(ctx context.Context, email string, quests []models.Quest) error {
	return m.updateField(ctx, email, bson.M{"quests": quests})
}

// UpdateStats replaces the stats field of the user document wholesale.
func (m *MongoStorage) UpdateStats(ctx context.Context, email string, stats models.UserStats) error {
	return m.updateField(ctx, email, bson.M{"stats": stats})
}

// UpdateProgress replaces the quests and stats fields in a single UpdateOne,
// so a completed quest and its reward land atomically in the document.
func (m *MongoStorage) UpdateProgress(ctx context.Context, email string, quests []models.Quest, stats models.UserStats) error {
	return m.updateField(ctx, email, bson.M{"quests": quests, "stats": stats})
}

// DeleteUser deletes the user document with the given email together with any
// refresh tokens issued to it. Used by tests and account removal.
func (m *MongoStorage) DeleteUser(ctx context.Context, email string) (*DeleteResult, error) {
	userResult := m.users().FindOne(ctx, bson.M{"email": email})
	if err := userResult.Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNoUser
		}
		return nil, err
	}

	_, err := m.refreshTokens().DeleteMany(ctx, bson.M{"email": email})
	if err != nil {
		return nil, err
	}

	result, err := m.users().DeleteOne(ctx, bson.M{"email": email})
	if err != nil {
		return nil, err
	}

	return &DeleteResult{DeletedCount: result.DeletedCount}, nil
}

// AddRefreshToken adds a refresh token record to the 'refreshTokens' collection.
func (m *MongoStorage) AddRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	_, err := m.refreshTokens().InsertOne(ctx, token)
	return err
}

// FindRefreshToken finds a refresh token record by its token string.
// Returns ErrNoToken when the token is unknown.
func (m *MongoStorage) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	result := m.refreshTokens().FindOne(ctx, bson.M{"token": token})
	record := &models.RefreshToken{}
	err := result.Decode(record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNoToken
		}
		return nil, err
	}
	return record, nil
}

// DeleteRefreshToken deletes a refresh token record by its token string.
func (m *MongoStorage) DeleteRefreshToken(ctx context.Context, token string) error {
	result, err := m.refreshTokens().DeleteOne(ctx, bson.M{"token": token})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNoToken
	}
	return nil
}

var _ StorageInterface = (*MongoStorage)(nil)
