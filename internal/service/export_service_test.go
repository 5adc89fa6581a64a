package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/colegio-app/colegio-api/pkg/errors"
	"github.com/colegio-app/colegio-api/pkg/storage"
)

type stubReportRenderer struct {
	reports map[string]*GradeReport
}

func (s *stubReportRenderer) StudentGradeReport(_ context.Context, studentID string, _ ReportFormat) (*GradeReport, error) {
	report, ok := s.reports[studentID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return report, nil
}

func newExportFixture(t *testing.T) (*ExportService, func()) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("export-secret", time.Hour)
	renderer := &stubReportRenderer{reports: map[string]*GradeReport{
		"s1": {Filename: "grade-report-S001.csv", ContentType: "text/csv", Content: []byte("Subject,Grade\nMath,A\n")},
	}}
	svc := NewExportService(renderer, store, signer, ExportConfig{Workers: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	return svc, func() {
		cancel()
		svc.Stop()
	}
}

func waitForExport(t *testing.T, svc *ExportService, id string, statuses ...string) *ExportJob {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := svc.Job(id)
		require.NoError(t, err)
		for _, status := range statuses {
			if job.Status == status {
				return job
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("export %s never reached %v", id, statuses)
	return nil
}

func TestExportServiceCompletesAndServesDownload(t *testing.T) {
	svc, cleanup := newExportFixture(t)
	defer cleanup()

	job, err := svc.RequestStudentGradeReport(context.Background(), "s1", ReportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "csv", job.Format)

	done := waitForExport(t, svc, job.ID, ExportStatusCompleted)
	assert.Equal(t, "grade-report-S001.csv", done.Filename)
	require.NotEmpty(t, done.DownloadToken)
	require.NotNil(t, done.ExpiresAt)
	require.NotNil(t, done.CompletedAt)

	download, err := svc.OpenDownload(done.DownloadToken)
	require.NoError(t, err)
	defer download.File.Close()

	assert.Equal(t, "grade-report-S001.csv", download.Filename)
	assert.Equal(t, "text/csv", download.ContentType)
	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Equal(t, "Subject,Grade\nMath,A\n", string(content))
}

func TestExportServiceUnknownStudentFails(t *testing.T) {
	svc, cleanup := newExportFixture(t)
	defer cleanup()

	job, err := svc.RequestStudentGradeReport(context.Background(), "missing", ReportFormatPDF)
	require.NoError(t, err)

	failed := waitForExport(t, svc, job.ID, ExportStatusFailed)
	assert.Contains(t, failed.Error, "student not found")
}

func TestExportServiceJobNotFound(t *testing.T) {
	svc, cleanup := newExportFixture(t)
	defer cleanup()

	_, err := svc.Job("nope")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRejectsBadToken(t *testing.T) {
	svc, cleanup := newExportFixture(t)
	defer cleanup()

	_, err := svc.OpenDownload("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
