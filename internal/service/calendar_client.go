package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"opsdesk/internal/domain"
)

// CalendarUpserter pushes installation appointments to an external calendar.
// Strictly best-effort: callers log failures and move on.
type CalendarUpserter interface {
	UpsertEvent(ctx context.Context, job *domain.InstallationJob, lead *domain.Lead) (string, error)
}

// CalendarClient outbound REST client for the calendar service. A previously
// stored event id makes the upsert an update instead of a create.
type CalendarClient struct {
	httpClient *resty.Client
	calendarID string
	logger     *zap.Logger
}

func NewCalendarClient(baseURL, calendarID, token string, logger *zap.Logger) *CalendarClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &CalendarClient{httpClient: client, calendarID: calendarID, logger: logger}
}

var _ CalendarUpserter = (*CalendarClient)(nil)

type calendarEventRequest struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Date        string `json:"date"`
	JobID       string `json:"job_id"`
}

type calendarEventResponse struct {
	EventID string `json:"event_id"`
}

func (c *CalendarClient) UpsertEvent(ctx context.Context, job *domain.InstallationJob, lead *domain.Lead) (string, error) {
	if job.ScheduledDate == nil {
		return "", fmt.Errorf("job %s has no scheduled date", job.JobID)
	}

	body := calendarEventRequest{
		Summary:     fmt.Sprintf("Installation - %s", lead.CompanyName),
		Description: job.Notes,
		Date:        job.ScheduledDate.Format("2006-01-02"),
		JobID:       job.JobID,
	}

	var result calendarEventResponse
	req := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result)

	var resp *resty.Response
	var err error
	if job.CalendarEventID != "" {
		resp, err = req.Put(fmt.Sprintf("/calendars/%s/events/%s", c.calendarID, job.CalendarEventID))
	} else {
		resp, err = req.Post(fmt.Sprintf("/calendars/%s/events", c.calendarID))
	}
	if err != nil {
		return "", fmt.Errorf("calendar upsert: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("calendar upsert status %d", resp.StatusCode())
	}
	if result.EventID == "" {
		result.EventID = job.CalendarEventID
	}
	return result.EventID, nil
}
