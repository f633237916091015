package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"testing"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/jmylchreest/erasure-api/internal/crypto"
	"github.com/jmylchreest/erasure-api/internal/database/migrations"
	"github.com/jmylchreest/erasure-api/internal/models"
	"github.com/jmylchreest/erasure-api/internal/repository"
)

const testOperatorKey = "test-operator-key-0123456789abcdef"

var testSubjectHash = strings.Repeat("ab", 32)

// setupTestRepos creates repositories over a migrated in-memory database.
func setupTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
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

	return repository.NewRepositories(db)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testVault(t *testing.T) *crypto.Vault {
	t.Helper()
	v, err := crypto.NewVault(testOperatorKey)
	if err != nil {
		t.Fatalf("failed to create vault: %v", err)
	}
	return v
}

func seedOrg(t *testing.T, repos *repository.Repositories, id string) *models.Org {
	t.Helper()
	org := &models.Org{ID: id, Name: "Org " + id}
	if err := repos.Org.Create(context.Background(), org); err != nil {
		t.Fatalf("failed to seed org: %v", err)
	}
	return org
}

func seedPartner(t *testing.T, repos *repository.Repositories, orgID, name string, enabled bool) *models.Partner {
	t.Helper()
	p := &models.Partner{OrgID: orgID, Name: name, Enabled: enabled}
	if err := repos.Partner.Create(context.Background(), p); err != nil {
		t.Fatalf("failed to seed partner: %v", err)
	}
	return p
}

func seedConnector(t *testing.T, repos *repository.Repositories, orgID, name string) *models.Connector {
	t.Helper()
	c := &models.Connector{OrgID: orgID, Name: name}
	if err := repos.Connector.Create(context.Background(), c); err != nil {
		t.Fatalf("failed to seed connector: %v", err)
	}
	return c
}

func seedRequest(t *testing.T, repos *repository.Repositories, orgID string) *models.DeletionRequest {
	t.Helper()
	req := &models.DeletionRequest{OrgID: orgID, SubjectHash: testSubjectHash}
	if err := repos.Request.Create(context.Background(), req); err != nil {
		t.Fatalf("failed to seed request: %v", err)
	}
	return req
}

func seedPolicy(t *testing.T, repos *repository.Repositories, orgID, partnerID string, gen models.PolicyGeneration, targetType models.TargetType, targetID string) *models.CascadePolicy {
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
		t.Fatalf("failed to seed policy: %v", err)
	}
	return p
}

// seedIntegration stores a customer API pointing at baseURL. HMAC
// integrations get the given secret encrypted with the test vault.
func seedIntegration(t *testing.T, repos *repository.Repositories, vault *crypto.Vault, orgID, baseURL string, authType models.AuthType, secret string) *models.CustomerAPIIntegration {
	t.Helper()
	in := &models.CustomerAPIIntegration{
		OrgID:               orgID,
		Name:                "api",
		BaseURL:             baseURL,
		HealthPath:          models.DefaultHealthPath,
		StatusPath:          models.DefaultStatusPath,
		DeletePath:          models.DefaultDeletePath,
		AuthType:            authType,
		TimeoutMs:           2000,
		Retries:             0,
		HMACHeaderName:      models.DefaultSignatureHeader,
		TimestampHeaderName: models.DefaultTimestampHeader,
		ReplayWindowSeconds: models.DefaultReplayWindowSeconds,
	}
	if authType == models.AuthTypeHMAC {
		enc, err := vault.Encrypt(secret)
		if err != nil {
			t.Fatalf("failed to encrypt secret: %v", err)
		}
		in.SharedSecretEncrypted = &enc
	}
	if err := repos.Integration.Create(context.Background(), in); err != nil {
		t.Fatalf("failed to seed integration: %v", err)
	}
	return in
}

// auditTypes returns the audit event types of a request, oldest first.
func auditTypes(t *testing.T, repos *repository.Repositories, orgID, requestID string) []string {
	t.Helper()
	events, err := repos.Audit.List(context.Background(), orgID, requestID, 0)
	if err != nil {
		t.Fatalf("failed to list audit events: %v", err)
	}
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func countType(types []string, want string) int {
	n := 0
	for _, t := range types {
		if t == want {
			n++
		}
	}
	return n
}
