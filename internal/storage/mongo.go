package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linusbett/MedTrack-Backend/internal/medication"
	"github.com/linusbett/MedTrack-Backend/internal/user"
)

// MongoStorage implements the Storage interface using MongoDB. Medications
// embed their occurrences and history as sub-documents, so every mutation is
// a single-document update.
type MongoStorage struct {
	client               *mongo.Client
	database             *mongo.Database
	userCollection       *mongo.Collection
	medicationCollection *mongo.Collection
	dispatchCollection   *mongo.Collection
}

// NewMongoStorage creates a new MongoDB storage instance
func NewMongoStorage(connectionString, databaseName string) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Test the connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(databaseName)

	ms := &MongoStorage{
		client:               client,
		database:             database,
		userCollection:       database.Collection("users"),
		medicationCollection: database.Collection("medications"),
		dispatchCollection:   database.Collection("dispatches"),
	}

	if err := ms.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return ms, nil
}

// Close closes the MongoDB connection
func (ms *MongoStorage) Close(ctx context.Context) error {
	return ms.client.Disconnect(ctx)
}

func (ms *MongoStorage) createIndexes(ctx context.Context) error {
	_, err := ms.userCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return err
	}
	_, err = ms.medicationCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "userid", Value: 1}}},
	})
	return err
}

// User operations

func (ms *MongoStorage) CreateUser(ctx context.Context, u *user.User) error {
	_, err := ms.userCollection.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (ms *MongoStorage) GetUser(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	err := ms.userCollection.FindOne(ctx, bson.M{"id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (ms *MongoStorage) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	var u user.User
	err := ms.userCollection.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

func (ms *MongoStorage) UpdateUser(ctx context.Context, u *user.User) error {
	result, err := ms.userCollection.ReplaceOne(ctx, bson.M{"id": u.ID}, u)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (ms *MongoStorage) GetDeviceToken(ctx context.Context, userID string) (string, error) {
	u, err := ms.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.FCMToken, nil
}

// Medication operations

func (ms *MongoStorage) CreateMedication(ctx context.Context, med *medication.Medication) error {
	_, err := ms.medicationCollection.InsertOne(ctx, med)
	if err != nil {
		return fmt.Errorf("failed to create medication: %w", err)
	}
	return nil
}

func (ms *MongoStorage) GetMedication(ctx context.Context, id, userID string) (*medication.Medication, error) {
	var med medication.Medication
	err := ms.medicationCollection.FindOne(ctx, bson.M{"id": id, "userid": userID}).Decode(&med)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get medication: %w", err)
	}
	return &med, nil
}

func (ms *MongoStorage) ListMedications(ctx context.Context, userID string) ([]*medication.Medication, error) {
	cursor, err := ms.medicationCollection.Find(ctx, bson.M{"userid": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	defer cursor.Close(ctx)

	var medications []*medication.Medication
	for cursor.Next(ctx) {
		var med medication.Medication
		if err := cursor.Decode(&med); err != nil {
			return nil, fmt.Errorf("failed to decode medication: %w", err)
		}
		medications = append(medications, &med)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return medications, nil
}

func (ms *MongoStorage) DeleteMedication(ctx context.Context, id, userID string) error {
	result, err := ms.medicationCollection.DeleteOne(ctx, bson.M{"id": id, "userid": userID})
	if err != nil {
		return fmt.Errorf("failed to delete medication: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (ms *MongoStorage) FindDueMedications(ctx context.Context, date string) ([]*medication.Medication, error) {
	filter := bson.M{
		"occurrences": bson.M{
			"$elemMatch": bson.M{"date": date, "status": medication.StatusPending},
		},
	}
	cursor, err := ms.medicationCollection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find due medications: %w", err)
	}
	defer cursor.Close(ctx)

	var medications []*medication.Medication
	for cursor.Next(ctx) {
		var med medication.Medication
		if err := cursor.Decode(&med); err != nil {
			return nil, fmt.Errorf("failed to decode medication: %w", err)
		}
		medications = append(medications, &med)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return medications, nil
}

// UpdateOccurrenceStatus uses an identity-keyed array filter rather than the
// positional operator, so an occurrence is addressed unambiguously even when
// several share a date or time.
func (ms *MongoStorage) UpdateOccurrenceStatus(ctx context.Context, medID, userID, date, tod string, status medication.Status, now time.Time) (*medication.Medication, error) {
	filter := bson.M{
		"id":     medID,
		"userid": userID,
		"occurrences": bson.M{
			"$elemMatch": bson.M{"date": date, "time": tod},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"occurrences.$[occ].status":    status,
			"occurrences.$[occ].updatedat": now,
			"updatedat":                    now,
		},
		"$push": bson.M{
			"history": medication.HistoryEntry{Date: date, Time: tod, Status: status, At: now},
		},
	}
	opts := options.FindOneAndUpdate().
		SetArrayFilters(options.ArrayFilters{Filters: []interface{}{
			bson.M{"occ.date": date, "occ.time": tod},
		}}).
		SetReturnDocument(options.After)

	var med medication.Medication
	err := ms.medicationCollection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&med)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update occurrence status: %w", err)
	}
	return &med, nil
}

// Dispatch markers

type dispatchMarker struct {
	Key          string    `bson:"_id"`
	MedicationID string    `bson:"medicationid"`
	Date         string    `bson:"date"`
	Time         string    `bson:"time"`
	SentAt       time.Time `bson:"sentat"`
}

// ClaimDispatch relies on the _id primary key: the first insert for a marker
// wins, every later one fails with a duplicate-key error.
func (ms *MongoStorage) ClaimDispatch(ctx context.Context, medID, date, tod string) (bool, error) {
	_, err := ms.dispatchCollection.InsertOne(ctx, dispatchMarker{
		Key:          markerKey(medID, date, tod),
		MedicationID: medID,
		Date:         date,
		Time:         tod,
		SentAt:       time.Now(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to claim dispatch marker: %w", err)
	}
	return true, nil
}

func (ms *MongoStorage) ReleaseDispatch(ctx context.Context, medID, date, tod string) error {
	_, err := ms.dispatchCollection.DeleteOne(ctx, bson.M{"_id": markerKey(medID, date, tod)})
	if err != nil {
		return fmt.Errorf("failed to release dispatch marker: %w", err)
	}
	return nil
}
