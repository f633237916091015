package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/erasure-api/internal/crypto"
	"github.com/jmylchreest/erasure-api/internal/delivery"
	"github.com/jmylchreest/erasure-api/internal/metrics"
	"github.com/jmylchreest/erasure-api/internal/models"
	"github.com/jmylchreest/erasure-api/internal/repository"
)

// Delete modes sent to customer APIs.
const (
	DeleteModeLive   = "LIVE"
	DeleteModeDryRun = "DRY_RUN"
)

const maxJobError = 1000

// CascadeDeliveryService delivers claimed customer_api cascade jobs through
// the delivery client and records the outcome on the job and the audit trail.
type CascadeDeliveryService struct {
	repos  *repository.Repositories
	vault  *crypto.Vault
	client *delivery.Client
	now    func() time.Time
	logger *slog.Logger
}

// NewCascadeDeliveryService creates a new cascade delivery service.
func NewCascadeDeliveryService(repos *repository.Repositories, vault *crypto.Vault, client *delivery.Client, logger *slog.Logger) *CascadeDeliveryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CascadeDeliveryService{
		repos:  repos,
		vault:  vault,
		client: client,
		now:    time.Now,
		logger: logger.With("component", "cascade-delivery"),
	}
}

// errPermanent marks failures that retrying cannot fix.
var errPermanent = errors.New("permanent delivery failure")

// Deliver sends one IN_PROGRESS job. A failed call is rescheduled with the
// policy's backoff until attempts reach retriesMax, then the job is FAILED.
// Configuration and decryption failures fail the job immediately.
func (s *CascadeDeliveryService) Deliver(ctx context.Context, job *models.CascadeJob) error {
	policy, err := s.repos.Policy.FindForTarget(ctx, job.OrgID, job.PartnerID, job.TargetID)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}
	retriesMax := models.DefaultRetriesMax
	backoff := models.DefaultBackoffMinutes
	mode := DeleteModeLive
	if policy != nil {
		retriesMax = policy.RetriesMax
		backoff = policy.BackoffMinutes
		if policy.Mode == DeleteModeDryRun {
			mode = DeleteModeDryRun
		}
	}

	res, err := s.call(ctx, job, mode)
	if err != nil {
		if errors.Is(err, errPermanent) || errors.Is(err, crypto.ErrConfiguration) || errors.Is(err, crypto.ErrDecryption) {
			return s.fail(ctx, job, err.Error(), nil)
		}
		return err
	}

	if res.OK {
		return s.complete(ctx, job, res)
	}

	msg := res.Message
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", res.StatusCode)
	}
	if job.Attempts < retriesMax {
		next := s.now().UTC().Add(time.Duration(backoff) * time.Minute)
		lastErr := truncate(msg, maxJobError)
		if err := s.repos.CascadeJob.Finish(ctx, job.ID, models.CascadeJobPending, &lastErr, &next); err != nil {
			return fmt.Errorf("failed to reschedule job: %w", err)
		}
		metrics.CascadeJobsCompletedTotal.WithLabelValues("retry").Inc()
		s.logger.Info("cascade delivery rescheduled",
			"job_id", job.ID,
			"attempts", job.Attempts,
			"status_code", res.StatusCode,
			"next_attempt_at", next,
		)
		return nil
	}
	return s.fail(ctx, job, msg, &res)
}

func (s *CascadeDeliveryService) call(ctx context.Context, job *models.CascadeJob, mode string) (delivery.Result, error) {
	req, err := s.repos.Request.GetByID(ctx, job.OrgID, job.RequestID)
	if err != nil {
		return delivery.Result{}, fmt.Errorf("failed to load request: %w", err)
	}
	if req == nil {
		return delivery.Result{}, fmt.Errorf("%w: request %s not found", errPermanent, job.RequestID)
	}

	integration, err := s.repos.Integration.GetByID(ctx, job.OrgID, job.TargetID)
	if err != nil {
		return delivery.Result{}, fmt.Errorf("failed to load integration: %w", err)
	}
	if integration == nil {
		return delivery.Result{}, fmt.Errorf("%w: integration %s not found", errPermanent, job.TargetID)
	}

	target, err := integrationTarget(s.vault, integration, integration.DeletePath)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return delivery.Result{}, fmt.Errorf("%w: %v", errPermanent, err)
		}
		return delivery.Result{}, err
	}

	return s.client.DeleteCall(ctx, target, delivery.DeletePayload{
		RequestID:   req.ID,
		SubjectHash: req.SubjectHash,
		Mode:        mode,
		Source:      delivery.Source,
	}), nil
}

func (s *CascadeDeliveryService) complete(ctx context.Context, job *models.CascadeJob, res delivery.Result) error {
	if err := s.repos.CascadeJob.Finish(ctx, job.ID, models.CascadeJobDone, nil, nil); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	s.audit(ctx, job, models.AuditTypeCascadeDelivered, map[string]any{
		"jobId":      job.ID,
		"partnerId":  job.PartnerID,
		"targetId":   job.TargetID,
		"attempts":   job.Attempts,
		"statusCode": res.StatusCode,
		"latencyMs":  res.LatencyMs,
	})
	metrics.CascadeJobsCompletedTotal.WithLabelValues("done").Inc()
	s.logger.Info("cascade delivered", "job_id", job.ID, "attempts", job.Attempts, "latency_ms", res.LatencyMs)

	// The job is DONE; the request status update is best effort from here.
	if err := s.maybeCompleteRequest(ctx, job); err != nil {
		s.logger.Error("failed to complete request", "job_id", job.ID, "request_id", job.RequestID, "error", err)
	}
	return nil
}

func (s *CascadeDeliveryService) fail(ctx context.Context, job *models.CascadeJob, msg string, res *delivery.Result) error {
	lastErr := truncate(msg, maxJobError)
	if err := s.repos.CascadeJob.Finish(ctx, job.ID, models.CascadeJobFailed, &lastErr, nil); err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	details := map[string]any{
		"jobId":     job.ID,
		"partnerId": job.PartnerID,
		"targetId":  job.TargetID,
		"attempts":  job.Attempts,
		"error":     lastErr,
	}
	if res != nil {
		details["statusCode"] = res.StatusCode
	}
	s.audit(ctx, job, models.AuditTypeCascadeFailed, details)
	metrics.CascadeJobsCompletedTotal.WithLabelValues("failed").Inc()
	s.logger.Warn("cascade delivery failed", "job_id", job.ID, "attempts", job.Attempts, "error", lastErr)
	return nil
}

// maybeCompleteRequest marks the request COMPLETED once every job is DONE.
func (s *CascadeDeliveryService) maybeCompleteRequest(ctx context.Context, job *models.CascadeJob) error {
	jobs, err := s.repos.CascadeJob.ListByRequest(ctx, job.OrgID, job.RequestID)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	for _, j := range jobs {
		if j.Status != models.CascadeJobDone {
			return nil
		}
	}
	return s.repos.Request.UpdateStatus(ctx, job.OrgID, job.RequestID, models.RequestStatusCompleted)
}

func (s *CascadeDeliveryService) audit(ctx context.Context, job *models.CascadeJob, eventType string, details map[string]any) {
	b, _ := json.Marshal(details)
	if err := s.repos.Audit.Append(ctx, &models.AuditEvent{
		OrgID:       job.OrgID,
		RequestID:   job.RequestID,
		Type:        eventType,
		Actor:       models.ActorSystem,
		DetailsJSON: string(b),
	}); err != nil {
		s.logger.Error("failed to write audit event", "job_id", job.ID, "type", eventType, "error", err)
	}
}
