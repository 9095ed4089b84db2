// Package testing provides test utilities and database setup for testing the campaign service
package testing

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/amirphl/likebounty/repository"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbCounter atomic.Uint64

// TestDB represents a test database instance
type TestDB struct {
	DB   *gorm.DB
	Name string
}

// SetupTestDB opens a private in-memory SQLite database and migrates it.
// A single connection keeps every query on the same in-memory database.
func SetupTestDB() (*TestDB, error) {
	name := fmt.Sprintf("likebounty_test_%d", dbCounter.Add(1))

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open test database %s: %w", name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access test database %s: %w", name, err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := repository.Migrate(db); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations on test database %s: %w", name, err)
	}

	return &TestDB{DB: db, Name: name}, nil
}

// TeardownTestDB closes the connection, which discards the database
func (tdb *TestDB) TeardownTestDB() error {
	if tdb.DB == nil {
		return nil
	}
	sqlDB, err := tdb.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// TestWithDB is a helper function that sets up a test database, runs the test function, and cleans up
func TestWithDB(testFunc func(*TestDB) error) error {
	testDB, err := SetupTestDB()
	if err != nil {
		return fmt.Errorf("failed to setup test database: %w", err)
	}
	defer func() {
		if cleanupErr := testDB.TeardownTestDB(); cleanupErr != nil {
			log.Printf("Warning: failed to cleanup test database: %v", cleanupErr)
		}
	}()

	return testFunc(testDB)
}
