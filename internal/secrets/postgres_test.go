package secrets

import (
	"bytes"
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/alertdesk/alertdesk/internal/crypto"
)

// newPostgresStore returns a store wired to a sqlmock connection and a cipher
// with a fixed key so sealed values can be produced inside the test.
func newPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *crypto.SecretCipher) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cipher, err := crypto.NewSecretCipher(bytes.Repeat([]byte("k"), 32))
	if err != nil {
		t.Fatalf("NewSecretCipher() error: %v", err)
	}
	return NewPostgresStore(db, cipher), mock, cipher
}

func TestPostgresStoreWrite(t *testing.T) {
	store, mock, _ := newPostgresStore(t)

	mock.ExpectExec("INSERT INTO provider_secrets").
		WithArgs("tenant_grafana_i1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Write(context.Background(), "tenant_grafana_i1", []byte(`{"api_key":"k"}`)); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreRead(t *testing.T) {
	store, mock, cipher := newPostgresStore(t)

	sealed, err := cipher.Seal(`{"api_key":"k"}`)
	if err != nil {
		t.Fatalf("Seal() error: %v", err)
	}

	mock.ExpectQuery("SELECT value FROM provider_secrets").
		WithArgs("tenant_grafana_i1").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(sealed))

	got, err := store.Read(context.Background(), "tenant_grafana_i1")
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if string(got) != `{"api_key":"k"}` {
		t.Errorf("Read() = %q, want decrypted payload", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreReadNotFound(t *testing.T) {
	store, mock, _ := newPostgresStore(t)

	mock.ExpectQuery("SELECT value FROM provider_secrets").
		WithArgs("absent").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, err := store.Read(context.Background(), "absent")
	if !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("Read() error = %v, want to wrap %v", err, ErrSecretNotFound)
	}
}

func TestPostgresStoreReadCorruptCiphertext(t *testing.T) {
	store, mock, _ := newPostgresStore(t)

	mock.ExpectQuery("SELECT value FROM provider_secrets").
		WithArgs("tenant_grafana_i1").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("!!!not-base64!!!"))

	_, err := store.Read(context.Background(), "tenant_grafana_i1")
	if !errors.Is(err, crypto.ErrCiphertextCorrupted) {
		t.Errorf("Read() error = %v, want to wrap %v", err, crypto.ErrCiphertextCorrupted)
	}
}

func TestPostgresStoreDelete(t *testing.T) {
	store, mock, _ := newPostgresStore(t)

	mock.ExpectExec("DELETE FROM provider_secrets").
		WithArgs("tenant_grafana_i1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Delete(context.Background(), "tenant_grafana_i1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	// Absent key deletes zero rows and is still not an error
	mock.ExpectExec("DELETE FROM provider_secrets").
		WithArgs("absent").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Delete(context.Background(), "absent"); err != nil {
		t.Errorf("Delete(absent) error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
