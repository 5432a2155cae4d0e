package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

// keyDB is a core.DB implementation backed by a single api key row.
type keyDB struct {
	keyHash string
	id      string
	name    string
	role    string
}

type keyRow struct {
	db    *keyDB
	match bool
}

func (r keyRow) Scan(dest ...any) error {
	if !r.match {
		return pgx.ErrNoRows
	}
	*dest[0].(*string) = r.db.id
	*dest[1].(*string) = r.db.name
	*dest[2].(*string) = r.db.role
	return nil
}

func (db *keyDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (db *keyDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (db *keyDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	return keyRow{db: db, match: len(args) == 1 && args[0] == db.keyHash}
}

func hashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

func TestAuth(t *testing.T) {
	db := &keyDB{keyHash: hashKey("sekrit"), id: "k1", name: "ops-key", role: "operator"}

	var seen *Identity
	handler := Auth(db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetIdentity(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil)
	r.Header.Set("X-API-Key", "sekrit")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "ops-key", seen.Name)
	assert.Equal(t, "operator", seen.Role)
}

func TestAuthMissingKey(t *testing.T) {
	db := &keyDB{}
	handler := Auth(db)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthWrongKey(t *testing.T) {
	db := &keyDB{keyHash: hashKey("sekrit")}
	handler := Auth(db)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-API-Key", "guess")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActorFallsBackToAnonymous(t *testing.T) {
	assert.Equal(t, "anonymous", Actor(context.Background()))

	ctx := WithIdentity(context.Background(), &Identity{Name: "ops-key"})
	assert.Equal(t, "ops-key", Actor(ctx))
}
