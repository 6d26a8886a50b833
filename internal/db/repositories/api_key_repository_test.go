package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alertdesk/alertdesk/internal/db/models"
)

var apiKeyCols = []string{
	"id", "tenant_id", "reference_id", "key_hash", "role",
	"created_by", "created_at", "last_used_at", "revoked",
}

func sampleAPIKeyRow() *sqlmock.Rows {
	return sqlmock.NewRows(apiKeyCols).
		AddRow("key-1", "tenant-1", "system_webhook", "$2a$12$hash", "webhook",
			"system", time.Now(), nil, false)
}

func newAPIKeyRepo(t *testing.T) (*APIKeyRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAPIKeyRepository(db), mock
}

func TestCreateAPIKey_GeneratesID(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectExec("INSERT INTO api_keys").
		WillReturnResult(sqlmock.NewResult(0, 1))

	key := &models.APIKey{
		TenantID:    "tenant-1",
		ReferenceID: "system_webhook",
		KeyHash:     "$2a$12$hash",
		Role:        "webhook",
		CreatedBy:   "system",
	}
	if err := repo.CreateAPIKey(context.Background(), key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.ID == "" {
		t.Error("expected generated id")
	}
	if key.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestCreateAPIKey_KeepsPresetID(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectExec("INSERT INTO api_keys").
		WillReturnResult(sqlmock.NewResult(0, 1))

	key := &models.APIKey{
		ID:          "11111111-2222-3333-4444-555555555555",
		TenantID:    "tenant-1",
		ReferenceID: "system_webhook",
		KeyHash:     "$2a$12$hash",
		Role:        "webhook",
		CreatedBy:   "system",
	}
	if err := repo.CreateAPIKey(context.Background(), key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.ID != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("ID = %s, want preset id kept", key.ID)
	}
}

func TestGetAPIKeyByID_Found(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectQuery("SELECT.*FROM api_keys.*WHERE id").
		WillReturnRows(sampleAPIKeyRow())

	key, err := repo.GetAPIKeyByID(context.Background(), "key-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key == nil {
		t.Fatal("expected key, got nil")
	}
	if key.Role != "webhook" {
		t.Errorf("Role = %s, want webhook", key.Role)
	}
}

func TestGetAPIKeyByID_NotFound(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectQuery("SELECT.*FROM api_keys.*WHERE id").
		WillReturnRows(sqlmock.NewRows(apiKeyCols))

	key, err := repo.GetAPIKeyByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != nil {
		t.Error("expected nil, got non-nil")
	}
}

func TestGetAPIKeyByReference_Found(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectQuery("SELECT.*FROM api_keys.*WHERE tenant_id").
		WillReturnRows(sampleAPIKeyRow())

	key, err := repo.GetAPIKeyByReference(context.Background(), "tenant-1", "system_webhook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key == nil {
		t.Fatal("expected key, got nil")
	}
	if key.ReferenceID != "system_webhook" {
		t.Errorf("ReferenceID = %s, want system_webhook", key.ReferenceID)
	}
}

func TestGetAPIKeyByReference_NotFound(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectQuery("SELECT.*FROM api_keys.*WHERE tenant_id").
		WillReturnRows(sqlmock.NewRows(apiKeyCols))

	key, err := repo.GetAPIKeyByReference(context.Background(), "tenant-1", "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != nil {
		t.Error("expected nil, got non-nil")
	}
}

func TestUpdateLastUsed(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectExec("UPDATE api_keys SET last_used_at").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateLastUsed(context.Background(), "key-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRevokeAPIKey(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectExec("UPDATE api_keys SET revoked").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RevokeAPIKey(context.Background(), "key-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
