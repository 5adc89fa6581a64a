package service

import (
	"context"
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/colegio-app/colegio-api/pkg/errors"
	"github.com/colegio-app/colegio-api/pkg/jobs"
	"github.com/colegio-app/colegio-api/pkg/storage"
)

type gradeReportRenderer interface {
	StudentGradeReport(ctx context.Context, studentID string, format ReportFormat) (*GradeReport, error)
}

// Export job lifecycle states.
const (
	ExportStatusPending    = "pending"
	ExportStatusProcessing = "processing"
	ExportStatusCompleted  = "completed"
	ExportStatusFailed     = "failed"
)

// ExportJob tracks one queued grade-report export.
type ExportJob struct {
	ID            string     `json:"id"`
	StudentID     string     `json:"student_id"`
	Format        string     `json:"format"`
	Status        string     `json:"status"`
	Filename      string     `json:"filename,omitempty"`
	DownloadToken string     `json:"download_token,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// ExportDownload is an opened stored report ready to stream.
type ExportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	Size        int64
}

// ExportConfig tunes the export worker pool and file retention.
type ExportConfig struct {
	Workers int
	FileTTL time.Duration
}

type exportPayload struct {
	StudentID string
	Format    ReportFormat
}

// ExportService renders grade reports in the background, keeps the results on
// disk and hands out signed download tokens.
type ExportService struct {
	reports gradeReportRenderer
	store   *storage.LocalStorage
	signer  *storage.SignedURLSigner
	queue   *jobs.Queue
	logger  *zap.Logger
	fileTTL time.Duration

	mu      sync.RWMutex
	records map[string]*ExportJob
}

// NewExportService constructs an ExportService backed by an in-memory queue.
func NewExportService(reports gradeReportRenderer, store *storage.LocalStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FileTTL <= 0 {
		cfg.FileTTL = 24 * time.Hour
	}
	s := &ExportService{
		reports: reports,
		store:   store,
		signer:  signer,
		logger:  logger,
		fileTTL: cfg.FileTTL,
		records: make(map[string]*ExportJob),
	}
	s.queue = jobs.NewQueue("grade-report-export", s.process, jobs.QueueConfig{
		Workers: cfg.Workers,
		Logger:  logger,
	})
	return s
}

// Start launches the export workers and the retention sweep.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	go s.sweep(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// RequestStudentGradeReport queues a new export and returns its tracking record.
func (s *ExportService) RequestStudentGradeReport(_ context.Context, studentID string, format ReportFormat) (*ExportJob, error) {
	if format != ReportFormatCSV {
		format = ReportFormatPDF
	}
	record := &ExportJob{
		ID:        uuid.NewString(),
		StudentID: studentID,
		Format:    string(format),
		Status:    ExportStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.records[record.ID] = record
	s.mu.Unlock()

	err := s.queue.Enqueue(jobs.Job{
		ID:      record.ID,
		Type:    "grade-report",
		Payload: exportPayload{StudentID: studentID, Format: format},
	})
	if err != nil {
		s.setFailed(record.ID, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}
	return s.Job(record.ID)
}

// Job returns a snapshot of the export with the given id.
func (s *ExportService) Job(id string) (*ExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	snapshot := *record
	return &snapshot, nil
}

// OpenDownload validates a signed token and opens the stored report.
func (s *ExportService) OpenDownload(token string) (*ExportDownload, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export file")
	}
	filename := path.Base(relPath)
	contentType := "application/pdf"
	if path.Ext(filename) == ".csv" {
		contentType = "text/csv"
	}
	return &ExportDownload{File: file, Filename: filename, ContentType: contentType, Size: info.Size()}, nil
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(exportPayload)
	if !ok {
		s.setFailed(job.ID, fmt.Errorf("unexpected payload type %T", job.Payload))
		return nil
	}

	s.setStatus(job.ID, ExportStatusProcessing)

	report, err := s.reports.StudentGradeReport(ctx, payload.StudentID, payload.Format)
	if err != nil {
		s.setFailed(job.ID, err)
		if appErrors.FromError(err).Code == appErrors.ErrNotFound.Code {
			return nil
		}
		return err
	}

	relPath := path.Join(job.ID, report.Filename)
	if _, err := s.store.Save(relPath, report.Content); err != nil {
		s.setFailed(job.ID, err)
		return err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.setFailed(job.ID, err)
		return err
	}

	now := time.Now().UTC()
	s.mu.Lock()
	if record, ok := s.records[job.ID]; ok {
		record.Status = ExportStatusCompleted
		record.Filename = report.Filename
		record.DownloadToken = token
		record.ExpiresAt = &expiresAt
		record.Error = ""
		record.CompletedAt = &now
	}
	s.mu.Unlock()

	s.logger.Sugar().Infow("grade report exported", "job_id", job.ID, "student_id", payload.StudentID, "filename", report.Filename)
	return nil
}

// sweep periodically drops expired files and forgets their job records.
func (s *ExportService) sweep(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.store.CleanupOlderThan(s.fileTTL)
			if err != nil {
				s.logger.Sugar().Warnw("export cleanup failed", "error", err)
				continue
			}
			if len(deleted) > 0 {
				s.dropExpiredRecords()
				s.logger.Sugar().Infow("export cleanup removed files", "count", len(deleted))
			}
		}
	}
}

func (s *ExportService) dropExpiredRecords() {
	cutoff := time.Now().Add(-s.fileTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, record := range s.records {
		if record.CreatedAt.Before(cutoff) {
			delete(s.records, id)
		}
	}
}

func (s *ExportService) setStatus(id, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[id]; ok {
		record.Status = status
	}
}

func (s *ExportService) setFailed(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[id]; ok {
		record.Status = ExportStatusFailed
		record.Error = err.Error()
	}
}
