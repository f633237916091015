package repository

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/jmylchreest/erasure-api/internal/database/migrations"
	"github.com/jmylchreest/erasure-api/internal/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
// It runs migrations and returns a database connection that will be cleaned up
// when the test completes.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	// Every pooled connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := migrations.Run(context.Background(), db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// setupTestRepos creates all repositories using a test database.
func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	db := setupTestDB(t)
	return NewRepositories(db)
}

// testSubjectHash is a valid 64-char lowercase hex digest.
var testSubjectHash = strings.Repeat("a", 64)

// insertTestOrg creates an org with the given id.
func insertTestOrg(t *testing.T, repos *Repositories, id string) *models.Org {
	t.Helper()
	org := &models.Org{ID: id, Name: "Org " + id}
	if err := repos.Org.Create(context.Background(), org); err != nil {
		t.Fatalf("failed to insert test org: %v", err)
	}
	return org
}

// insertTestPartner creates a partner in an org.
func insertTestPartner(t *testing.T, repos *Repositories, orgID, id string, enabled bool) *models.Partner {
	t.Helper()
	p := &models.Partner{ID: id, OrgID: orgID, Name: "Partner " + id, Enabled: enabled}
	if err := repos.Partner.Create(context.Background(), p); err != nil {
		t.Fatalf("failed to insert test partner: %v", err)
	}
	return p
}

// insertTestRequest creates a deletion request in an org.
func insertTestRequest(t *testing.T, repos *Repositories, orgID, id string) *models.DeletionRequest {
	t.Helper()
	req := &models.DeletionRequest{ID: id, OrgID: orgID, SubjectHash: testSubjectHash}
	if err := repos.Request.Create(context.Background(), req); err != nil {
		t.Fatalf("failed to insert test request: %v", err)
	}
	return req
}

// insertTestPolicy creates a policy of the given generation with default delivery parameters.
func insertTestPolicy(t *testing.T, repos *Repositories, orgID, partnerID string, gen models.PolicyGeneration, targetType models.TargetType, targetID string) *models.CascadePolicy {
	t.Helper()
	p := &models.CascadePolicy{
		OrgID:          orgID,
		PartnerID:      partnerID,
		TargetType:     targetType,
		TargetID:       targetID,
		Mode:           models.DefaultPolicyMode,
		RetriesMax:     models.DefaultRetriesMax,
		BackoffMinutes: models.DefaultBackoffMinutes,
		Generation:     gen,
	}
	if err := repos.Policy.Create(context.Background(), p); err != nil {
		t.Fatalf("failed to insert test policy: %v", err)
	}
	return p
}
