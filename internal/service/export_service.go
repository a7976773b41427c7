package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/studygrouphq/enrollment-api/internal/models"
	appErrors "github.com/studygrouphq/enrollment-api/pkg/errors"
	"github.com/studygrouphq/enrollment-api/pkg/export"
)

// Export formats supported by the roster export.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type waitlistLister interface {
	ListByGroup(ctx context.Context, groupID string) ([]models.Enrollment, error)
}

// ExportResult bundles rendered bytes with transport metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders a group's waiting-list roster for
// administrators.
type ExportService struct {
	waitlist waitlistLister
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
}

// NewExportService constructs ExportService.
func NewExportService(waitlist waitlistLister) *ExportService {
	return &ExportService{waitlist: waitlist, csv: export.NewCSVExporter(), pdf: export.NewPDFExporter()}
}

// BuildRoster renders the waiting list of a group as CSV or PDF.
func (s *ExportService) BuildRoster(ctx context.Context, groupID, format string) (*ExportResult, error) {
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	enrollments, err := s.waitlist.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"Position", "Enrollment ID", "Student ID", "Enrolled At"},
		Rows:    make([]map[string]string, 0, len(enrollments)),
	}
	for _, e := range enrollments {
		position := ""
		if e.WaitingPosition != nil {
			position = strconv.Itoa(*e.WaitingPosition)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Position":      position,
			"Enrollment ID": e.ID,
			"Student ID":    e.StudentID,
			"Enrolled At":   e.EnrolledAt.UTC().Format(time.RFC3339),
		})
	}

	filename := fmt.Sprintf("waitlist-%s-%s.%s", groupID, time.Now().UTC().Format("20060102"), format)
	if format == ExportFormatPDF {
		content, err := s.pdf.Render(dataset, fmt.Sprintf("Waiting list %s", groupID))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf roster")
		}
		return &ExportResult{Content: content, ContentType: "application/pdf", Filename: filename}, nil
	}

	content, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv roster")
	}
	return &ExportResult{Content: content, ContentType: "text/csv", Filename: filename}, nil
}
