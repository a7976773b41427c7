package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studygrouphq/enrollment-api/internal/models"
	appErrors "github.com/studygrouphq/enrollment-api/pkg/errors"
)

type staticWaitlist struct {
	entries []models.Enrollment
	err     error
}

func (s *staticWaitlist) ListByGroup(ctx context.Context, groupID string) ([]models.Enrollment, error) {
	return s.entries, s.err
}

func waitingEntry(id, student string, position int, enrolledAt time.Time) models.Enrollment {
	return models.Enrollment{
		ID:              id,
		StudentID:       student,
		GroupID:         "g1",
		Status:          models.EnrollmentStatusWaitingList,
		WaitingPosition: &position,
		EnrolledAt:      enrolledAt,
	}
}

func TestBuildRosterCSV(t *testing.T) {
	enrolledAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc := NewExportService(&staticWaitlist{entries: []models.Enrollment{
		waitingEntry("enr-1", "sA", 1, enrolledAt),
		waitingEntry("enr-2", "sB", 2, enrolledAt.Add(time.Hour)),
	}})

	result, err := svc.BuildRoster(context.Background(), "g1", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Contains(t, result.Filename, "waitlist-g1-")

	records, err := csv.NewReader(bytes.NewReader(result.Content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Position", "Enrollment ID", "Student ID", "Enrolled At"}, records[0])
	assert.Equal(t, []string{"1", "enr-1", "sA", "2026-03-14T09:00:00Z"}, records[1])
	assert.Equal(t, []string{"2", "enr-2", "sB", "2026-03-14T10:00:00Z"}, records[2])
}

func TestBuildRosterDefaultsToCSV(t *testing.T) {
	svc := NewExportService(&staticWaitlist{})

	result, err := svc.BuildRoster(context.Background(), "g1", "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
}

func TestBuildRosterPDF(t *testing.T) {
	svc := NewExportService(&staticWaitlist{entries: []models.Enrollment{
		waitingEntry("enr-1", "sA", 1, time.Now().UTC()),
	}})

	result, err := svc.BuildRoster(context.Background(), "g1", ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, bytes.HasPrefix(result.Content, []byte("%PDF")))
}

func TestBuildRosterUnsupportedFormat(t *testing.T) {
	svc := NewExportService(&staticWaitlist{})

	_, err := svc.BuildRoster(context.Background(), "g1", "xlsx")
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
}

func TestBuildRosterPropagatesListError(t *testing.T) {
	svc := NewExportService(&staticWaitlist{err: appErrors.Clone(appErrors.ErrNotFound, "group not found")})

	_, err := svc.BuildRoster(context.Background(), "g1", ExportFormatCSV)
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}
