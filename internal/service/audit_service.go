package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/erasure-api/internal/models"
	"github.com/jmylchreest/erasure-api/internal/repository"
)

const (
	exportVersion = 1

	// Presigned archive links are handed to auditors, not stored.
	archiveURLExpiry = 24 * time.Hour
)

// AuditService reads the audit trail and builds evidence exports.
type AuditService struct {
	repos   *repository.Repositories
	storage *StorageService
	now     func() time.Time
	logger  *slog.Logger
}

// NewAuditService creates a new audit service. storage may be nil.
func NewAuditService(repos *repository.Repositories, storage *StorageService, logger *slog.Logger) *AuditService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditService{
		repos:   repos,
		storage: storage,
		now:     time.Now,
		logger:  logger.With("component", "audit"),
	}
}

// List returns audit events oldest first. A non-empty requestID must belong to the org.
func (s *AuditService) List(ctx context.Context, orgID, requestID string, limit int) ([]*models.AuditEvent, error) {
	if requestID != "" {
		req, err := s.repos.Request.GetByID(ctx, orgID, requestID)
		if err != nil {
			return nil, fmt.Errorf("failed to load request: %w", err)
		}
		if req == nil {
			return nil, notFound("request")
		}
	}
	events, err := s.repos.Audit.List(ctx, orgID, requestID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	if events == nil {
		events = []*models.AuditEvent{}
	}
	return events, nil
}

// ExportCascade is a cascade job annotated with its partner.
type ExportCascade struct {
	*models.CascadeJob
	PartnerName     string `json:"partnerName,omitempty"`
	PartnerEndpoint string `json:"partnerEndpoint,omitempty"`
}

// EvidenceExport is the self-contained record of what happened to a request.
type EvidenceExport struct {
	ExportVersion int                     `json:"exportVersion"`
	ExportedAt    time.Time               `json:"exportedAt"`
	Request       *models.DeletionRequest `json:"request"`
	Events        []*models.AuditEvent    `json:"events"`
	Cascades      []ExportCascade         `json:"cascades"`
	ArchiveKey    string                  `json:"archiveKey,omitempty"`
	ArchiveURL    string                  `json:"archiveUrl,omitempty"`
}

// Export builds the evidence bundle for a request. When storage is enabled
// the bundle is also archived and its key returned.
func (s *AuditService) Export(ctx context.Context, orgID, requestID, actorID string) (*EvidenceExport, error) {
	req, err := s.repos.Request.GetByID(ctx, orgID, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if req == nil {
		return nil, notFound("request")
	}

	events, err := s.repos.Audit.List(ctx, orgID, requestID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit events: %w", err)
	}
	jobs, err := s.repos.CascadeJob.ListByRequest(ctx, orgID, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cascade jobs: %w", err)
	}
	partners, err := s.repos.Partner.List(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load partners: %w", err)
	}
	byID := make(map[string]*models.Partner, len(partners))
	for _, p := range partners {
		byID[p.ID] = p
	}

	export := &EvidenceExport{
		ExportVersion: exportVersion,
		ExportedAt:    s.now().UTC(),
		Request:       req,
		Events:        events,
		Cascades:      make([]ExportCascade, 0, len(jobs)),
	}
	if export.Events == nil {
		export.Events = []*models.AuditEvent{}
	}
	for _, j := range jobs {
		c := ExportCascade{CascadeJob: j}
		if p, ok := byID[j.PartnerID]; ok {
			c.PartnerName = p.Name
			c.PartnerEndpoint = p.EndpointURL
		}
		export.Cascades = append(export.Cascades, c)
	}

	if s.storage.IsEnabled() {
		data, err := json.Marshal(export)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal export: %w", err)
		}
		key, err := s.storage.StoreExport(ctx, orgID, requestID, export.ExportedAt, data)
		if err != nil {
			return nil, err
		}
		export.ArchiveKey = key

		if url, err := s.storage.ExportPresignedURL(ctx, key, archiveURLExpiry); err != nil {
			s.logger.Warn("failed to presign export", "key", key, "error", err)
		} else {
			export.ArchiveURL = url
		}
	}

	if actorID == "" {
		actorID = models.ActorSystem
	}
	details, _ := json.Marshal(map[string]any{
		"exportVersion": exportVersion,
		"events":        len(export.Events),
		"cascades":      len(export.Cascades),
		"archiveKey":    export.ArchiveKey,
	})
	if err := s.repos.Audit.Append(ctx, &models.AuditEvent{
		OrgID:       orgID,
		RequestID:   requestID,
		Type:        models.AuditTypeEvidenceExported,
		Actor:       actorID,
		DetailsJSON: string(details),
	}); err != nil {
		s.logger.Warn("failed to record export", "request_id", requestID, "error", err)
	}

	return export, nil
}
