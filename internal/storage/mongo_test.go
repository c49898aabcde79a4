package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

// skipIfNoDocker skips the test if Docker is not available
func skipIfNoDocker(t *testing.T) {
	if os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true" {
		t.Skip("Skipping Docker-based tests in CI environment")
	}
}

// setupMongoTestContainer starts a MongoDB container and returns the storage
// instance plus a cleanup function.
func setupMongoTestContainer(t *testing.T) (*MongoStorage, func()) {
	skipIfNoDocker(t)

	ctx := context.Background()

	mongoContainer, err := mongodb.RunContainer(ctx)
	if err != nil {
		t.Skipf("Failed to start MongoDB container (Docker may not be available): %v", err)
	}

	connectionString, err := mongoContainer.ConnectionString(ctx)
	if err != nil {
		mongoContainer.Terminate(ctx)
		t.Skipf("Failed to get MongoDB connection string: %v", err)
	}

	mongoStorage, err := NewMongoStorage(connectionString, "test_medtrack")
	if err != nil {
		mongoContainer.Terminate(ctx)
		t.Skipf("Failed to create MongoDB storage: %v", err)
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		mongoStorage.Close(ctx)
		mongoContainer.Terminate(ctx)
	}

	return mongoStorage, cleanup
}

func TestMongoStorage(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping MongoDB integration test in short mode")
	}

	mongoStorage, cleanup := setupMongoTestContainer(t)
	defer cleanup()

	runStorageTests(t, mongoStorage)
}

func TestMongoStorageClaimIsAtomic(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping MongoDB integration test in short mode")
	}

	mongoStorage, cleanup := setupMongoTestContainer(t)
	defer cleanup()

	ctx := context.Background()

	// Concurrent claims for the same occurrence: exactly one must win.
	const attempts = 10
	results := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			ok, err := mongoStorage.ClaimDispatch(ctx, "med1", "2025-11-04", "08:00")
			if err != nil {
				t.Errorf("ClaimDispatch failed: %v", err)
			}
			results <- ok
		}()
	}
	won := 0
	for i := 0; i < attempts; i++ {
		if <-results {
			won++
		}
	}
	if won != 1 {
		t.Errorf("expected exactly 1 winning claim, got %d", won)
	}
}

// TestMongoStorageConnectionError tests behavior when MongoDB is not available
func TestMongoStorageConnectionError(t *testing.T) {
	_, err := NewMongoStorage("mongodb://nonexistent:27017", "test_db")
	if err == nil {
		t.Error("Expected error when connecting to non-existent MongoDB, got nil")
	}
}
