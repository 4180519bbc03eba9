package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adb-analytics/apiserver/internal/storage"
)

var (
	// ErrStorageDisabled is returned when no object storage backend is configured.
	ErrStorageDisabled = errors.New("report storage is not configured")
	ErrReportNotFound  = errors.New("report not found")
)

// ObjectStore is the part of storage.Storage reports need.
type ObjectStore interface {
	PutJSON(ctx context.Context, key string, value any) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]storage.Object, error)
}

// Report is an archived summary snapshot.
type Report struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	GeneratedAt time.Time `json:"generatedAt"`
	ProjectSummary
}

// ReportInfo lists an archived report without its content.
type ReportInfo struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// ReportService archives project summaries to object storage, one
// object per snapshot under reports/<owner>/<id>.json.
type ReportService struct {
	projects *ProjectService
	objects  ObjectStore
	now      func() time.Time
}

// NewReportService returns a service whose methods fail with
// ErrStorageDisabled when objects is nil.
func NewReportService(projects *ProjectService, objects ObjectStore) *ReportService {
	return &ReportService{projects: projects, objects: objects, now: time.Now}
}

func ownerPrefix(ownerID string) string {
	return path.Join("reports", ownerID) + "/"
}

// Archive stores the current summary for ownerID and returns its object key.
func (s *ReportService) Archive(ctx context.Context, ownerID string) (string, error) {
	if s.objects == nil {
		return "", ErrStorageDisabled
	}
	summary, err := s.projects.Summary(ctx, ownerID)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	key := ownerPrefix(ownerID) + id + ".json"
	report := Report{ID: id, OwnerID: ownerID, GeneratedAt: s.now().UTC(), ProjectSummary: summary}
	if err := s.objects.PutJSON(ctx, key, report); err != nil {
		return "", fmt.Errorf("archive report: %w", err)
	}
	return key, nil
}

// List returns the owner's archived reports.
func (s *ReportService) List(ctx context.Context, ownerID string) ([]ReportInfo, error) {
	if s.objects == nil {
		return nil, ErrStorageDisabled
	}
	objects, err := s.objects.List(ctx, ownerPrefix(ownerID))
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	out := make([]ReportInfo, 0, len(objects))
	for _, obj := range objects {
		out = append(out, ReportInfo{
			ID:          strings.TrimSuffix(path.Base(obj.Key), ".json"),
			Key:         obj.Key,
			Size:        obj.Size,
			GeneratedAt: obj.LastModified,
		})
	}
	return out, nil
}

// Open returns the stored JSON of one of the owner's reports.
func (s *ReportService) Open(ctx context.Context, ownerID, reportID string) (io.ReadCloser, error) {
	if s.objects == nil {
		return nil, ErrStorageDisabled
	}
	if _, err := uuid.Parse(reportID); err != nil {
		return nil, ErrReportNotFound
	}
	rc, err := s.objects.Get(ctx, ownerPrefix(ownerID)+reportID+".json")
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("open report: %w", err)
	}
	return rc, nil
}
