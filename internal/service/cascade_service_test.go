package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jmylchreest/erasure-api/internal/models"
)

// ========================================
// Dispatch Tests
// ========================================

func TestCascadeService_Dispatch_MergesGenerations(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	seedOrg(t, repos, "org_1")

	p1 := seedPartner(t, repos, "org_1", "Alpha", true)
	p2 := seedPartner(t, repos, "org_1", "Beta", true)
	conn := seedConnector(t, repos, "org_1", "agent")
	api := seedIntegration(t, repos, nil, "org_1", "https://api.example.test", models.AuthTypeNone, "")
	seedPolicy(t, repos, "org_1", p1.ID, models.PolicyGenerationLegacy, models.TargetTypeConnector, conn.ID)
	seedPolicy(t, repos, "org_1", p2.ID, models.PolicyGenerationV2, models.TargetTypeCustomerAPI, api.ID)
	req := seedRequest(t, repos, "org_1")

	svc := NewCascadeService(repos, testLogger())
	result, err := svc.Dispatch(ctx, "org_1", req.ID, "user_1")
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	if result.TasksCreated != 2 {
		t.Errorf("TasksCreated = %d, want 2", result.TasksCreated)
	}
	if result.Partners != 2 || result.LegacyPolicies != 1 || result.V2Policies != 1 {
		t.Errorf("result = %+v, want 2 partners split 1/1", result)
	}

	jobs, err := repos.CascadeJob.ListByRequest(ctx, "org_1", req.ID)
	if err != nil {
		t.Fatalf("ListByRequest() error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	for _, j := range jobs {
		if j.Status != models.CascadeJobPending || j.Attempts != 0 {
			t.Errorf("job %s = %s/%d, want PENDING/0", j.ID, j.Status, j.Attempts)
		}
	}

	got, _ := repos.Request.GetByID(ctx, "org_1", req.ID)
	if got.Status != models.RequestStatusCascading {
		t.Errorf("request status = %s, want CASCADING", got.Status)
	}
}

func TestCascadeService_Dispatch_Idempotent(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	seedOrg(t, repos, "org_1")

	p := seedPartner(t, repos, "org_1", "Alpha", true)
	conn := seedConnector(t, repos, "org_1", "agent")
	seedPolicy(t, repos, "org_1", p.ID, models.PolicyGenerationV2, models.TargetTypeConnector, conn.ID)
	req := seedRequest(t, repos, "org_1")

	svc := NewCascadeService(repos, testLogger())

	first, err := svc.Dispatch(ctx, "org_1", req.ID, "")
	if err != nil {
		t.Fatalf("first Dispatch() error: %v", err)
	}
	if first.TasksCreated != 1 {
		t.Fatalf("first TasksCreated = %d, want 1", first.TasksCreated)
	}

	// Move the job along so a second dispatch would visibly reset it.
	jobs, _ := repos.CascadeJob.ListByRequest(ctx, "org_1", req.ID)
	msg := "boom"
	if err := repos.CascadeJob.Finish(ctx, jobs[0].ID, models.CascadeJobFailed, &msg, nil); err != nil {
		t.Fatalf("Finish() error: %v", err)
	}

	second, err := svc.Dispatch(ctx, "org_1", req.ID, "")
	if err != nil {
		t.Fatalf("second Dispatch() error: %v", err)
	}
	if second.TasksCreated != 0 {
		t.Errorf("second TasksCreated = %d, want 0", second.TasksCreated)
	}

	jobs, _ = repos.CascadeJob.ListByRequest(ctx, "org_1", req.ID)
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}
	if jobs[0].Status != models.CascadeJobFailed {
		t.Errorf("job status = %s, want FAILED to survive redispatch", jobs[0].Status)
	}

	types := auditTypes(t, repos, "org_1", req.ID)
	if n := countType(types, models.AuditTypeCascading); n != 2 {
		t.Errorf("CASCADING entries = %d, want one per call (2)", n)
	}
}

func TestCascadeService_Dispatch_SkipsDisabledPartners(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	seedOrg(t, repos, "org_1")

	on := seedPartner(t, repos, "org_1", "On", true)
	off := seedPartner(t, repos, "org_1", "Off", false)
	conn := seedConnector(t, repos, "org_1", "agent")
	seedPolicy(t, repos, "org_1", on.ID, models.PolicyGenerationV2, models.TargetTypeConnector, conn.ID)
	seedPolicy(t, repos, "org_1", off.ID, models.PolicyGenerationLegacy, models.TargetTypeConnector, conn.ID)
	req := seedRequest(t, repos, "org_1")

	result, err := NewCascadeService(repos, testLogger()).Dispatch(ctx, "org_1", req.ID, "")
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if result.TasksCreated != 1 || result.Partners != 1 {
		t.Errorf("result = %+v, want only the enabled partner", result)
	}

	jobs, _ := repos.CascadeJob.ListByRequest(ctx, "org_1", req.ID)
	if len(jobs) != 1 || jobs[0].PartnerID != on.ID {
		t.Errorf("jobs = %+v, want one for partner %s", jobs, on.ID)
	}
}

func TestCascadeService_Dispatch_NoPolicies(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	seedOrg(t, repos, "org_1")
	req := seedRequest(t, repos, "org_1")

	result, err := NewCascadeService(repos, testLogger()).Dispatch(ctx, "org_1", req.ID, "user_1")
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if result.TasksCreated != 0 || result.Partners != 0 {
		t.Errorf("result = %+v, want zeros", result)
	}

	events, _ := repos.Audit.List(ctx, "org_1", req.ID, 0)
	if len(events) != 1 || events[0].Type != models.AuditTypeCascading {
		t.Fatalf("events = %+v, want a single CASCADING entry", events)
	}
	if events[0].Actor != "user_1" {
		t.Errorf("actor = %q, want user_1", events[0].Actor)
	}
	var details DispatchResult
	if err := json.Unmarshal([]byte(events[0].DetailsJSON), &details); err != nil {
		t.Fatalf("details are not JSON: %v", err)
	}
	if details.TasksCreated != 0 {
		t.Errorf("details.TasksCreated = %d, want 0", details.TasksCreated)
	}

	got, _ := repos.Request.GetByID(ctx, "org_1", req.ID)
	if got.Status != models.RequestStatusReceived {
		t.Errorf("request status = %s, want RECEIVED when nothing was created", got.Status)
	}
}

func TestCascadeService_Dispatch_NotFound(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	seedOrg(t, repos, "org_1")
	seedOrg(t, repos, "org_2")
	req := seedRequest(t, repos, "org_2")

	svc := NewCascadeService(repos, testLogger())

	tests := []struct {
		name      string
		orgID     string
		requestID string
	}{
		{"missing request", "org_1", "nope"},
		{"request of another org", "org_1", req.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Dispatch(ctx, tt.orgID, tt.requestID, "")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}

	if types := auditTypes(t, repos, "org_2", req.ID); countType(types, models.AuditTypeCascading) != 0 {
		t.Error("a rejected dispatch must not write an audit entry")
	}
}

func TestCascadeService_DispatchForRequest_SystemActor(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	seedOrg(t, repos, "org_1")
	req := seedRequest(t, repos, "org_1")

	if _, err := NewCascadeService(repos, testLogger()).DispatchForRequest(ctx, "org_1", req.ID); err != nil {
		t.Fatalf("DispatchForRequest() error: %v", err)
	}

	events, _ := repos.Audit.List(ctx, "org_1", req.ID, 0)
	if len(events) != 1 || events[0].Actor != models.ActorSystem {
		t.Errorf("events = %+v, want one entry by system", events)
	}
}
