package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"opsdesk/internal/domain"
	"opsdesk/internal/health"
	"opsdesk/internal/repository"
	"opsdesk/internal/service"
)

type enqueuedDoc struct {
	entityType string
	id         string
	version    int64
	tombstone  bool
}

type recordingEnqueuer struct {
	enqueued int
	records  []enqueuedDoc
}

func (e *recordingEnqueuer) Enqueue(entityType, id string, version int64, tombstone bool) {
	e.enqueued++
	e.records = append(e.records, enqueuedDoc{entityType, id, version, tombstone})
}

type staticHealth struct {
	snap health.Snapshot
}

func (s *staticHealth) Snapshot() health.Snapshot        { return s.snap }
func (s *staticHealth) Report(b health.Backend, ok bool) {}

func newSalesFixture(t *testing.T) *SalesHandler {
	t.Helper()
	logger := zap.NewNop()

	jobs := repository.NewMemoryInstallationsRepository()
	leads := repository.NewMemoryLeadsRepository()
	offers := repository.NewMemoryOffersRepository(jobs)
	technicians := repository.NewMemoryTechniciansRepository()
	activities := repository.NewMemoryActivitiesRepository()
	notifications := repository.NewMemoryNotificationsRepository()

	notifier := service.NewNotificationService(notifications, nil, logger)
	lifecycle := service.NewLifecycleService(leads, offers, jobs, technicians, activities,
		&recordingEnqueuer{}, notifier, nil, logger)
	sweep := service.NewSweepService(leads, offers, jobs, lifecycle, notifier, nil, time.Minute, logger)
	healthy := &staticHealth{snap: health.Snapshot{OK: true, Relational: true, Search: true, Cache: true}}

	return NewSalesHandler(lifecycle, sweep, healthy, logger)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func createLeadHTTP(t *testing.T, h *SalesHandler) *domain.Lead {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/sales/leads", map[string]any{
		"company_name": "Acme Heating",
		"contact_name": "Jo Virtanen",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	lead := decodeBody[*domain.Lead](t, rec)
	require.NotEmpty(t, lead.LeadID)
	require.Equal(t, domain.LeadNew, lead.Status)
	return lead
}

func TestSalesLeadPipelineOverHTTP(t *testing.T) {
	h := newSalesFixture(t)
	lead := createLeadHTTP(t, h)

	rec := doJSON(t, h, http.MethodPost, "/sales/leads/"+lead.LeadID+"/contact",
		map[string]any{"version": lead.Version})
	require.Equal(t, http.StatusOK, rec.Code)
	lead = decodeBody[*domain.Lead](t, rec)
	require.Equal(t, domain.LeadContacted, lead.Status)
	require.Equal(t, int64(2), lead.Version)

	rec = doJSON(t, h, http.MethodPost, "/sales/leads/"+lead.LeadID+"/qualify",
		map[string]any{"version": lead.Version})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/sales/leads", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[map[string]json.RawMessage](t, rec)
	require.Contains(t, list, "leads")
	require.Contains(t, list, "total")
}

func TestOfferAcceptReturnsInstallationJob(t *testing.T) {
	h := newSalesFixture(t)
	lead := createLeadHTTP(t, h)

	for _, action := range []string{"contact", "qualify"} {
		rec := doJSON(t, h, http.MethodPost, fmt.Sprintf("/sales/leads/%s/%s", lead.LeadID, action),
			map[string]any{"version": 0})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, h, http.MethodPost, "/sales/leads/"+lead.LeadID+"/offers", map[string]any{
		"currency": "EUR",
		"total":    12500.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	offer := decodeBody[*domain.Offer](t, rec)
	require.Equal(t, domain.OfferDraft, offer.Status)

	rec = doJSON(t, h, http.MethodPost, "/sales/offers/"+offer.OfferID+"/send",
		map[string]any{"version": offer.Version})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/sales/offers/"+offer.OfferID+"/accept",
		map[string]any{"version": 0})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[struct {
		Offer *domain.Offer           `json:"offer"`
		Job   *domain.InstallationJob `json:"installation_job"`
	}](t, rec)
	require.Equal(t, domain.OfferAccepted, resp.Offer.Status)
	require.NotNil(t, resp.Job)
	require.Equal(t, domain.InstallationPending, resp.Job.Status)
	require.Equal(t, offer.OfferID, resp.Job.OfferID)
}

func TestOfferStatusEndpointResolvesEvent(t *testing.T) {
	h := newSalesFixture(t)
	lead := createLeadHTTP(t, h)

	for _, action := range []string{"contact", "qualify"} {
		rec := doJSON(t, h, http.MethodPost, fmt.Sprintf("/sales/leads/%s/%s", lead.LeadID, action),
			map[string]any{"version": 0})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := doJSON(t, h, http.MethodPost, "/sales/leads/"+lead.LeadID+"/offers", map[string]any{"currency": "EUR"})
	require.Equal(t, http.StatusCreated, rec.Code)
	offer := decodeBody[*domain.Offer](t, rec)

	rec = doJSON(t, h, http.MethodPost, "/sales/offers/"+offer.OfferID+"/status",
		map[string]any{"event": "send", "version": offer.Version})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/sales/offers/"+offer.OfferID+"/status",
		map[string]any{"event": "expire", "version": 0})
	require.Equal(t, http.StatusBadRequest, rec.Code, "expiry is sweep-only")
}

func TestTransitionErrorMapping(t *testing.T) {
	h := newSalesFixture(t)
	lead := createLeadHTTP(t, h)

	// Illegal transition: a new lead cannot convert.
	rec := doJSON(t, h, http.MethodPost, "/sales/leads/"+lead.LeadID+"/convert",
		map[string]any{"version": lead.Version})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody[errorBody](t, rec)
	require.False(t, body.Retryable)

	// Version conflict is retryable.
	rec = doJSON(t, h, http.MethodPost, "/sales/leads/"+lead.LeadID+"/contact",
		map[string]any{"version": 99})
	require.Equal(t, http.StatusConflict, rec.Code)
	body = decodeBody[errorBody](t, rec)
	require.True(t, body.Retryable)

	// Losing a lead requires a reason.
	rec = doJSON(t, h, http.MethodPost, "/sales/leads/"+lead.LeadID+"/lose",
		map[string]any{"version": lead.Version})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown lead.
	rec = doJSON(t, h, http.MethodPost, "/sales/leads/nope/contact", map[string]any{"version": 1})
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Unknown action.
	rec = doJSON(t, h, http.MethodPost, "/sales/leads/"+lead.LeadID+"/frobnicate",
		map[string]any{"version": 1})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeadExportReturnsWorkbook(t *testing.T) {
	h := newSalesFixture(t)
	createLeadHTTP(t, h)

	req := httptest.NewRequest(http.MethodGet, "/sales/leads/export", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))
	require.NotZero(t, rec.Body.Len())
	// xlsx files are zip archives.
	require.Equal(t, []byte{'P', 'K'}, rec.Body.Bytes()[:2])
}

func TestManualSweepEndpoint(t *testing.T) {
	h := newSalesFixture(t)

	rec := doJSON(t, h, http.MethodPost, "/sales/notifications/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeBody[service.SweepResult](t, rec)
	require.Zero(t, result.OffersExpired)
	require.Zero(t, result.JobsUndone)
}
