package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"opsdesk/internal/domain"
)

// MemoryInstallationsRepository in-memory InstallationsRepository for tests.
// Jobs arrive through MemoryOffersRepository.AcceptOffer.
type MemoryInstallationsRepository struct {
	mu   sync.RWMutex
	jobs map[string]*domain.InstallationJob
}

func NewMemoryInstallationsRepository() *MemoryInstallationsRepository {
	return &MemoryInstallationsRepository{jobs: make(map[string]*domain.InstallationJob)}
}

var _ InstallationsRepository = (*MemoryInstallationsRepository)(nil)

func cloneJob(j *domain.InstallationJob) *domain.InstallationJob {
	c := *j
	if j.ScheduledDate != nil {
		d := *j.ScheduledDate
		c.ScheduledDate = &d
	}
	if j.RescheduleDeadline != nil {
		d := *j.RescheduleDeadline
		c.RescheduleDeadline = &d
	}
	return &c
}

// insert is called by the offers repository inside its accept transaction.
func (r *MemoryInstallationsRepository) insert(job *domain.InstallationJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.JobID] = cloneJob(job)
}

func (r *MemoryInstallationsRepository) GetJob(ctx context.Context, jobID string) (*domain.InstallationJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("installation job %s: %w", jobID, domain.ErrNotFound)
	}
	return cloneJob(job), nil
}

func (r *MemoryInstallationsRepository) ListJobs(ctx context.Context, filter JobFilters, limit, offset int) ([]*domain.InstallationJob, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	var matched []*domain.InstallationJob
	for _, job := range r.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.TechnicianID != "" && job.TechnicianID != filter.TechnicianID {
			continue
		}
		if filter.LeadID != "" && job.LeadID != filter.LeadID {
			continue
		}
		matched = append(matched, cloneJob(job))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].UpdatedAt.After(matched[j].UpdatedAt) })

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *MemoryInstallationsRepository) UpdateJobStatus(ctx context.Context, jobID string, expectedVersion int64, status domain.InstallationStatus, schedule *JobSchedule) (*domain.InstallationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("installation job %s: %w", jobID, domain.ErrNotFound)
	}
	if job.Version != expectedVersion {
		return nil, fmt.Errorf("installation job %s: %w", jobID, domain.ErrVersionConflict)
	}

	job.Status = status
	if schedule != nil {
		d := schedule.Date
		job.ScheduledDate = &d
		dl := schedule.RescheduleDeadline
		job.RescheduleDeadline = &dl
		if schedule.TechnicianID != "" {
			job.TechnicianID = schedule.TechnicianID
		}
	}
	job.Version++
	job.UpdatedAt = time.Now().UTC()
	return cloneJob(job), nil
}

func (r *MemoryInstallationsRepository) SetCalendarEventID(ctx context.Context, jobID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return fmt.Errorf("installation job %s: %w", jobID, domain.ErrNotFound)
	}
	job.CalendarEventID = eventID
	return nil
}

func (r *MemoryInstallationsRepository) ListOverduePastDeadline(ctx context.Context, now time.Time) ([]*domain.InstallationJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.InstallationJob
	for _, job := range r.jobs {
		if job.Status != domain.InstallationScheduled && job.Status != domain.InstallationInProgress {
			continue
		}
		if job.RescheduleDeadline == nil || !job.RescheduleDeadline.Before(now) {
			continue
		}
		out = append(out, cloneJob(job))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	return out, nil
}
