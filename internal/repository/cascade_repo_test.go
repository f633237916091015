package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmylchreest/erasure-api/internal/models"
)

// ========================================
// Policy Repository Tests
// ========================================

func TestPolicyRepository_ListEnabledMergesGenerations(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	insertTestOrg(t, repos, "org-1")
	insertTestPartner(t, repos, "org-1", "p-on", true)
	insertTestPartner(t, repos, "org-1", "p-off", false)

	insertTestPolicy(t, repos, "org-1", "p-on", models.PolicyGenerationLegacy, models.TargetTypeConnector, "conn-1")
	insertTestPolicy(t, repos, "org-1", "p-on", models.PolicyGenerationV2, models.TargetTypeCustomerAPI, "api-1")
	insertTestPolicy(t, repos, "org-1", "p-off", models.PolicyGenerationV2, models.TargetTypeConnector, "conn-2")

	policies, err := repos.Policy.ListEnabled(ctx, "org-1")
	if err != nil {
		t.Fatalf("failed to list policies: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("expected 2 enabled policies, got %d", len(policies))
	}

	legacy, v2 := policies[0], policies[1]
	if legacy.Generation != models.PolicyGenerationLegacy || legacy.TargetType != models.TargetTypeConnector || legacy.TargetID != "conn-1" {
		t.Errorf("legacy policy = %+v", legacy)
	}
	if v2.Generation != models.PolicyGenerationV2 || v2.TargetType != models.TargetTypeCustomerAPI || v2.TargetID != "api-1" {
		t.Errorf("v2 policy = %+v", v2)
	}

	all, err := repos.Policy.List(ctx, "org-1")
	if err != nil {
		t.Fatalf("failed to list all policies: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 policies in total, got %d", len(all))
	}
}

func TestPolicyRepository_OrgScoping(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	insertTestPartner(t, repos, "org-1", "p-1", true)
	p := insertTestPolicy(t, repos, "org-1", "p-1", models.PolicyGenerationV2, models.TargetTypeConnector, "conn-1")

	got, err := repos.Policy.GetByID(ctx, "org-2", p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected policy to be invisible to another org")
	}

	policies, err := repos.Policy.ListEnabled(ctx, "org-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(policies) != 0 {
		t.Errorf("expected no policies for org-2, got %d", len(policies))
	}
}

func TestPolicyRepository_LegacyRejectsCustomerAPI(t *testing.T) {
	repos := setupTestRepos(t)

	insertTestPartner(t, repos, "org-1", "p-1", true)
	err := repos.Policy.Create(context.Background(), &models.CascadePolicy{
		OrgID:      "org-1",
		PartnerID:  "p-1",
		TargetType: models.TargetTypeCustomerAPI,
		TargetID:   "api-1",
		Mode:       models.DefaultPolicyMode,
		Generation: models.PolicyGenerationLegacy,
	})
	if err == nil {
		t.Fatal("expected error creating a legacy customer_api policy")
	}
}

func TestPolicyRepository_UpdateAndDelete(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	insertTestPartner(t, repos, "org-1", "p-1", true)
	legacy := insertTestPolicy(t, repos, "org-1", "p-1", models.PolicyGenerationLegacy, models.TargetTypeConnector, "conn-1")
	v2 := insertTestPolicy(t, repos, "org-1", "p-1", models.PolicyGenerationV2, models.TargetTypeCustomerAPI, "api-1")

	sla := 30
	email := "dpo@example.com"
	v2.RetriesMax = 5
	v2.SLADays = &sla
	v2.EscalationEmail = &email
	v2.AttestationRequired = true
	if err := repos.Policy.Update(ctx, v2); err != nil {
		t.Fatalf("failed to update v2 policy: %v", err)
	}

	got, err := repos.Policy.GetByID(ctx, "org-1", v2.ID)
	if err != nil || got == nil {
		t.Fatalf("failed to get v2 policy: %v", err)
	}
	if got.RetriesMax != 5 || got.SLADays == nil || *got.SLADays != 30 || !got.AttestationRequired {
		t.Errorf("updated policy = %+v", got)
	}
	if got.EscalationEmail == nil || *got.EscalationEmail != email {
		t.Errorf("escalation email = %v, want %s", got.EscalationEmail, email)
	}

	legacy.BackoffMinutes = 15
	if err := repos.Policy.Update(ctx, legacy); err != nil {
		t.Fatalf("failed to update legacy policy: %v", err)
	}
	got, err = repos.Policy.GetByID(ctx, "org-1", legacy.ID)
	if err != nil || got == nil {
		t.Fatalf("failed to get legacy policy: %v", err)
	}
	if got.Generation != models.PolicyGenerationLegacy || got.BackoffMinutes != 15 {
		t.Errorf("legacy policy = %+v", got)
	}

	for _, id := range []string{legacy.ID, v2.ID} {
		deleted, err := repos.Policy.Delete(ctx, "org-1", id)
		if err != nil {
			t.Fatalf("failed to delete policy: %v", err)
		}
		if !deleted {
			t.Errorf("expected policy %s to be deleted", id)
		}
	}

	deleted, err := repos.Policy.Delete(ctx, "org-1", v2.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted {
		t.Error("expected second delete to report false")
	}
}

func TestPolicyRepository_FindForTargetPrefersV2(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	insertTestPartner(t, repos, "org-1", "p-1", true)
	insertTestPolicy(t, repos, "org-1", "p-1", models.PolicyGenerationLegacy, models.TargetTypeConnector, "conn-1")
	v2 := insertTestPolicy(t, repos, "org-1", "p-1", models.PolicyGenerationV2, models.TargetTypeConnector, "conn-1")

	got, err := repos.Policy.FindForTarget(ctx, "org-1", "p-1", "conn-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != v2.ID {
		t.Errorf("FindForTarget = %+v, want v2 policy %s", got, v2.ID)
	}

	got, err = repos.Policy.FindForTarget(ctx, "org-1", "p-1", "unknown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for an unknown target")
	}
}

func TestPolicyRepository_ReplaceLegacy(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	insertTestPartner(t, repos, "org-1", "p-1", true)
	insertTestPolicy(t, repos, "org-1", "p-1", models.PolicyGenerationLegacy, models.TargetTypeConnector, "conn-old")
	insertTestPolicy(t, repos, "org-1", "p-1", models.PolicyGenerationV2, models.TargetTypeCustomerAPI, "api-1")

	err := repos.Policy.ReplaceLegacy(ctx, "org-1", []*models.CascadePolicy{
		{PartnerID: "p-1", TargetID: "conn-a", Mode: models.DefaultPolicyMode, RetriesMax: 3, BackoffMinutes: 60},
		{PartnerID: "p-1", TargetID: "conn-b", Mode: models.DefaultPolicyMode, RetriesMax: 3, BackoffMinutes: 60},
	})
	if err != nil {
		t.Fatalf("failed to replace legacy policies: %v", err)
	}

	policies, err := repos.Policy.List(ctx, "org-1")
	if err != nil {
		t.Fatalf("failed to list policies: %v", err)
	}

	var legacyTargets []string
	v2Count := 0
	for _, p := range policies {
		if p.Generation == models.PolicyGenerationLegacy {
			legacyTargets = append(legacyTargets, p.TargetID)
		} else {
			v2Count++
		}
	}
	if len(legacyTargets) != 2 {
		t.Errorf("legacy targets = %v, want [conn-a conn-b]", legacyTargets)
	}
	if v2Count != 1 {
		t.Errorf("v2 policies = %d, want untouched 1", v2Count)
	}

	conn, err := repos.Policy.ListForConnector(ctx, "org-1", "conn-a")
	if err != nil {
		t.Fatalf("failed to list connector policies: %v", err)
	}
	if len(conn) != 1 {
		t.Errorf("expected 1 policy for conn-a, got %d", len(conn))
	}
}

// ========================================
// Cascade Job Repository Tests
// ========================================

func TestCascadeJobRepository_UpsertIdempotent(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	insertTestRequest(t, repos, "org-1", "req-1")

	job := &models.CascadeJob{
		OrgID:      "org-1",
		RequestID:  "req-1",
		PartnerID:  "p-1",
		TargetType: models.TargetTypeConnector,
		TargetID:   "conn-1",
	}
	inserted, err := repos.CascadeJob.Upsert(ctx, job)
	if err != nil {
		t.Fatalf("failed to upsert job: %v", err)
	}
	if !inserted {
		t.Error("expected first upsert to insert")
	}
	firstID := job.ID

	again := &models.CascadeJob{
		OrgID:      "org-1",
		RequestID:  "req-1",
		PartnerID:  "p-1",
		TargetType: models.TargetTypeCustomerAPI,
		TargetID:   "conn-1",
	}
	inserted, err = repos.CascadeJob.Upsert(ctx, again)
	if err != nil {
		t.Fatalf("failed to upsert job again: %v", err)
	}
	if inserted {
		t.Error("expected second upsert of the same triple to be a no-op")
	}
	if again.ID != firstID {
		t.Errorf("upsert returned id %s, want existing %s", again.ID, firstID)
	}

	jobs, err := repos.CascadeJob.ListByRequest(ctx, "org-1", "req-1")
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].TargetType != models.TargetTypeConnector {
		t.Errorf("target type = %s, want original connector", jobs[0].TargetType)
	}
}

func TestCascadeJobRepository_UpsertPreservesProgress(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	insertTestRequest(t, repos, "org-1", "req-1")
	job := &models.CascadeJob{OrgID: "org-1", RequestID: "req-1", PartnerID: "p-1", TargetType: models.TargetTypeCustomerAPI, TargetID: "api-1"}
	if _, err := repos.CascadeJob.Upsert(ctx, job); err != nil {
		t.Fatalf("failed to upsert job: %v", err)
	}

	claimed, err := repos.CascadeJob.ClaimDue(ctx, models.TargetTypeCustomerAPI, time.Now())
	if err != nil || claimed == nil {
		t.Fatalf("failed to claim job: %v", err)
	}
	msg := "HTTP 503"
	if err := repos.CascadeJob.Finish(ctx, claimed.ID, models.CascadeJobFailed, &msg, nil); err != nil {
		t.Fatalf("failed to finish job: %v", err)
	}

	if _, err := repos.CascadeJob.Upsert(ctx, &models.CascadeJob{OrgID: "org-1", RequestID: "req-1", PartnerID: "p-1", TargetType: models.TargetTypeCustomerAPI, TargetID: "api-1"}); err != nil {
		t.Fatalf("failed to re-upsert job: %v", err)
	}

	jobs, err := repos.CascadeJob.ListByRequest(ctx, "org-1", "req-1")
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	got := jobs[0]
	if got.Status != models.CascadeJobFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
	if got.LastError == nil || *got.LastError != msg {
		t.Errorf("last error = %v, want %q", got.LastError, msg)
	}
}

func TestCascadeJobRepository_ClaimDue(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	insertTestRequest(t, repos, "org-1", "req-1")
	for _, target := range []struct {
		typ models.TargetType
		id  string
	}{
		{models.TargetTypeConnector, "conn-1"},
		{models.TargetTypeCustomerAPI, "api-1"},
	} {
		job := &models.CascadeJob{OrgID: "org-1", RequestID: "req-1", PartnerID: "p-1", TargetType: target.typ, TargetID: target.id}
		if _, err := repos.CascadeJob.Upsert(ctx, job); err != nil {
			t.Fatalf("failed to upsert job: %v", err)
		}
	}

	now := time.Now()
	job, err := repos.CascadeJob.ClaimDue(ctx, models.TargetTypeCustomerAPI, now)
	if err != nil {
		t.Fatalf("failed to claim: %v", err)
	}
	if job == nil {
		t.Fatal("expected a job to be claimed")
	}
	if job.TargetID != "api-1" || job.Status != models.CascadeJobInProgress || job.Attempts != 1 {
		t.Errorf("claimed job = %+v", job)
	}

	// Nothing else of that type is pending.
	job2, err := repos.CascadeJob.ClaimDue(ctx, models.TargetTypeCustomerAPI, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job2 != nil {
		t.Errorf("expected no claimable job, got %+v", job2)
	}

	// Back to pending with a future retry time: not yet due.
	next := now.Add(time.Hour)
	if err := repos.CascadeJob.Finish(ctx, job.ID, models.CascadeJobPending, nil, &next); err != nil {
		t.Fatalf("failed to finish job: %v", err)
	}
	job2, err = repos.CascadeJob.ClaimDue(ctx, models.TargetTypeCustomerAPI, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job2 != nil {
		t.Error("expected job scheduled in the future not to be claimed")
	}

	job2, err = repos.CascadeJob.ClaimDue(ctx, models.TargetTypeCustomerAPI, next.Add(time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job2 == nil || job2.Attempts != 2 {
		t.Errorf("expected second claim with attempts=2, got %+v", job2)
	}
}

func TestCascadeJobRepository_Requeue(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	insertTestRequest(t, repos, "org-1", "req-1")
	job := &models.CascadeJob{OrgID: "org-1", RequestID: "req-1", PartnerID: "p-1", TargetType: models.TargetTypeCustomerAPI, TargetID: "api-1"}
	if _, err := repos.CascadeJob.Upsert(ctx, job); err != nil {
		t.Fatalf("failed to upsert job: %v", err)
	}

	now := time.Now()
	claimed, err := repos.CascadeJob.ClaimDue(ctx, models.TargetTypeCustomerAPI, now)
	if err != nil || claimed == nil {
		t.Fatalf("failed to claim job: %v", err)
	}
	ok, err := repos.CascadeJob.Requeue(ctx, claimed.ID, "database is locked", now)
	if err != nil {
		t.Fatalf("failed to requeue: %v", err)
	}
	if !ok {
		t.Error("an IN_PROGRESS job should be requeued")
	}

	claimed, err = repos.CascadeJob.ClaimDue(ctx, models.TargetTypeCustomerAPI, now.Add(time.Second))
	if err != nil || claimed == nil {
		t.Fatalf("failed to reclaim job: %v", err)
	}
	if err := repos.CascadeJob.Finish(ctx, claimed.ID, models.CascadeJobDone, nil, nil); err != nil {
		t.Fatalf("failed to finish job: %v", err)
	}
	ok, err = repos.CascadeJob.Requeue(ctx, claimed.ID, "database is locked", now)
	if err != nil {
		t.Fatalf("failed to requeue: %v", err)
	}
	if ok {
		t.Error("a DONE job must not be requeued")
	}

	jobs, err := repos.CascadeJob.ListByRequest(ctx, "org-1", "req-1")
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}
	if jobs[0].Status != models.CascadeJobDone || jobs[0].Attempts != 2 {
		t.Errorf("job = %s/%d, want DONE/2", jobs[0].Status, jobs[0].Attempts)
	}
}

func TestCascadeJobRepository_ReclaimStale(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	insertTestRequest(t, repos, "org-1", "req-1")
	for _, id := range []string{"api-1", "api-2"} {
		job := &models.CascadeJob{OrgID: "org-1", RequestID: "req-1", PartnerID: "p-1", TargetType: models.TargetTypeCustomerAPI, TargetID: id}
		if _, err := repos.CascadeJob.Upsert(ctx, job); err != nil {
			t.Fatalf("failed to upsert job: %v", err)
		}
	}

	now := time.Now()
	stale, err := repos.CascadeJob.ClaimDue(ctx, models.TargetTypeCustomerAPI, now.Add(-time.Hour))
	if err != nil || stale == nil {
		t.Fatalf("failed to claim stale job: %v", err)
	}
	fresh, err := repos.CascadeJob.ClaimDue(ctx, models.TargetTypeCustomerAPI, now)
	if err != nil || fresh == nil {
		t.Fatalf("failed to claim fresh job: %v", err)
	}

	n, err := repos.CascadeJob.ReclaimStale(ctx, models.TargetTypeCustomerAPI, now.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("failed to reclaim: %v", err)
	}
	if n != 1 {
		t.Errorf("reclaimed = %d, want 1", n)
	}

	// Connector jobs are never touched.
	if n, _ := repos.CascadeJob.ReclaimStale(ctx, models.TargetTypeConnector, now.Add(time.Hour)); n != 0 {
		t.Errorf("reclaimed connector jobs = %d, want 0", n)
	}

	again, err := repos.CascadeJob.ClaimDue(ctx, models.TargetTypeCustomerAPI, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again == nil || again.ID != stale.ID || again.Attempts != 2 {
		t.Errorf("expected stale job back with attempts=2, got %+v", again)
	}
	if again != nil && (again.LastError == nil || *again.LastError == "") {
		t.Error("reclaimed job should record why it was reclaimed")
	}
}

func TestCascadeJobRepository_DeletedWithRequest(t *testing.T) {
	db := setupTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	insertTestRequest(t, repos, "org-1", "req-1")
	job := &models.CascadeJob{OrgID: "org-1", RequestID: "req-1", PartnerID: "p-1", TargetType: models.TargetTypeConnector, TargetID: "conn-1"}
	if _, err := repos.CascadeJob.Upsert(ctx, job); err != nil {
		t.Fatalf("failed to upsert job: %v", err)
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM deletion_requests WHERE id = ?`, "req-1"); err != nil {
		t.Fatalf("failed to delete request: %v", err)
	}

	jobs, err := repos.CascadeJob.ListByRequest(ctx, "org-1", "req-1")
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("expected jobs to be removed with their request, got %d", len(jobs))
	}
}
