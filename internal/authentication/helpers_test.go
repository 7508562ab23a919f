package authentication

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mehmetcc/cafe-authentication-service/internal/person"
)

const (
	testAccessSecret  = "test-access-secret"
	testRefreshSecret = "test-refresh-secret"
	testPassword      = "doubleshot"
)

var testSettings = TokenSettings{
	AccessSecret:  testAccessSecret,
	AccessTTL:     15 * time.Minute,
	RefreshSecret: testRefreshSecret,
	RefreshTTL:    24 * time.Hour,
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&person.Person{}, &RefreshTokenRecord{}))
	return db
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// storeBackends lists every RefreshTokenStore implementation so behaviour
// tests run against each of them.
var storeBackends = []struct {
	name     string
	newStore func(t *testing.T, db *gorm.DB) RefreshTokenStore
}{
	{
		name: "gorm",
		newStore: func(_ *testing.T, db *gorm.DB) RefreshTokenStore {
			return NewRecordRepository(db)
		},
	},
	{
		name: "redis",
		newStore: func(t *testing.T, _ *gorm.DB) RefreshTokenStore {
			_, rdb := setupRedis(t)
			return NewRedisRecordRepository(rdb, "test")
		},
	},
}

func seedPerson(t *testing.T, db *gorm.DB, email string, confirmed bool) *person.Person {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	p := person.NewPerson(email, string(hash))
	p.EmailConfirmed = confirmed
	require.NoError(t, db.Create(p).Error)
	return p
}

type fixture struct {
	db          *gorm.DB
	store       RefreshTokenStore
	people      person.PersonService
	invalidator *SessionInvalidator
	service     AuthenticationService
	hasher      tokenHasher
}

func newFixture(t *testing.T, newStore func(t *testing.T, db *gorm.DB) RefreshTokenStore) *fixture {
	t.Helper()
	db := setupTestDB(t)
	store := newStore(t, db)
	log := zap.NewNop()
	invalidator := NewSessionInvalidator(store, testRefreshSecret, log)
	people := person.NewPersonService(person.NewPersonRepository(db), invalidator, log)
	return &fixture{
		db:          db,
		store:       store,
		people:      people,
		invalidator: invalidator,
		service:     NewAuthenticationService(people, store, invalidator, log, testSettings),
		hasher:      newTokenHasher(testRefreshSecret),
	}
}

func newGormFixture(t *testing.T) *fixture {
	return newFixture(t, storeBackends[0].newStore)
}

// record looks up the stored record behind a client-held refresh token.
func (f *fixture) record(t *testing.T, refreshToken string) *RefreshTokenRecord {
	t.Helper()
	rec, err := f.store.FindByID(context.Background(), f.hasher.recordID(refreshToken))
	require.NoError(t, err)
	return rec
}

func newRecordID(t *testing.T) string {
	t.Helper()
	_, id, err := newTokenHasher(testRefreshSecret).newSecret()
	require.NoError(t, err)
	return id
}
