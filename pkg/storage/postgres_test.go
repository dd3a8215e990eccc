package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func setupStoreTest(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewPostgresStoreWithDB(db, time.Second), mock
}

func TestPostgresStoreGet(t *testing.T) {
	store, mock := setupStoreTest(t)

	rows := sqlmock.NewRows([]string{"data"}).
		AddRow([]byte(`{"hostId":"u1","invitedMembers":["u2","u3"]}`))
	mock.ExpectQuery("SELECT data FROM documents").
		WithArgs("events", "e1").
		WillReturnRows(rows)

	doc, err := store.Get(context.Background(), "events", "e1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc.GetString("hostId") != "u1" {
		t.Errorf("hostId = %q, want u1", doc.GetString("hostId"))
	}
	if len(doc.GetStringSlice("invitedMembers")) != 2 {
		t.Errorf("invitedMembers = %v, want 2 entries", doc.GetStringSlice("invitedMembers"))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreGetNotFound(t *testing.T) {
	store, mock := setupStoreTest(t)

	mock.ExpectQuery("SELECT data FROM documents").
		WithArgs("events", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	_, err := store.Get(context.Background(), "events", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestPostgresStoreGetQueryError(t *testing.T) {
	store, mock := setupStoreTest(t)

	mock.ExpectQuery("SELECT data FROM documents").
		WithArgs("users", "u1").
		WillReturnError(errors.New("pq: connection refused"))

	_, err := store.Get(context.Background(), "users", "u1")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want wrapped store error", err)
	}
}

func TestPostgresStoreGetBadJSON(t *testing.T) {
	store, mock := setupStoreTest(t)

	mock.ExpectQuery("SELECT data FROM documents").
		WithArgs("users", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{broken`)))

	if _, err := store.Get(context.Background(), "users", "u1"); err == nil {
		t.Error("Get() should fail on undecodable document")
	}
}
