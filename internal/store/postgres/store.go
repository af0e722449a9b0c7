package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/truesoulcoder/crm-admin-sub001/internal/domain"
	"github.com/truesoulcoder/crm-admin-sub001/internal/engine"
)

// Store implements the engine, pipeline, campaign and api store interfaces
// using PostgreSQL.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

// New creates a new PostgreSQL store with the given database connection.
// opTimeout bounds every single statement.
func New(db *sql.DB, opTimeout time.Duration) *Store {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &Store{db: db, opTimeout: opTimeout}
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// --- engine state ---

// GetEngineState returns the singleton control row.
func (s *Store) GetEngineState(ctx context.Context) (domain.EngineState, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var state domain.EngineState
	var pausedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, queryGetEngineState).Scan(
		&state.IsRunning,
		&state.IsPaused,
		&pausedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		return domain.EngineState{}, err
	}
	if pausedAt.Valid {
		t := pausedAt.Time
		state.PausedAt = &t
	}
	return state, nil
}

// SetEngineRunning flips the run flag. Idempotent.
func (s *Store) SetEngineRunning(ctx context.Context, running bool, now time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, querySetEngineRunning, running, now)
	return err
}

// PauseEngine stamps paused_at and moves every pending job to paused in one
// transaction. Returns the number of jobs paused. Pausing an already paused
// engine returns engine.ErrTransitionDenied and touches nothing.
func (s *Store) PauseEngine(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, queryPauseEngine, now)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, engine.ErrTransitionDenied
	}

	res, err = tx.ExecContext(ctx, queryPauseJobs, now)
	if err != nil {
		return 0, err
	}
	paused, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return paused, tx.Commit()
}

// ResumeEngine clears the pause flag and shifts every paused job forward by
// delta, preserving relative spacing. Returns the number of jobs resumed.
func (s *Store) ResumeEngine(ctx context.Context, delta time.Duration, now time.Time) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, queryResumeEngine, now)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, engine.ErrTransitionDenied
	}

	res, err = tx.ExecContext(ctx, queryResumeJobs, delta.Seconds(), now)
	if err != nil {
		return 0, err
	}
	resumed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return resumed, tx.Commit()
}

// --- jobs ---

// ClaimDueJobs atomically selects due pending jobs, marks them processing and
// returns them in ascending next_processing_time order.
func (s *Store) ClaimDueJobs(ctx context.Context, now time.Time, limit int) ([]domain.CampaignJob, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryClaimDueJobs, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}
	// UPDATE ... RETURNING does not preserve the subselect's ORDER BY.
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].NextProcessingTime.Before(jobs[j].NextProcessingTime)
	})
	return jobs, nil
}

// MarkJobSent transitions a processing job to sent.
func (s *Store) MarkJobSent(ctx context.Context, jobID uuid.UUID, now time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, queryMarkJobSent, jobID, now)
	if err != nil {
		return err
	}
	return s.checkJobTransition(ctx, res, jobID)
}

// MarkJobFailed transitions a processing job to failed and records the error.
func (s *Store) MarkJobFailed(ctx context.Context, jobID uuid.UUID, errMsg string, now time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, queryMarkJobFailed, jobID, errMsg, now)
	if err != nil {
		return err
	}
	return s.checkJobTransition(ctx, res, jobID)
}

// RequeueJob flips a failed job back to pending with next_processing_time=now.
// This is the operator-driven retry path; no automatic retry exists.
func (s *Store) RequeueJob(ctx context.Context, jobID uuid.UUID, now time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, queryRequeueJob, jobID, now)
	if err != nil {
		return err
	}
	return s.checkJobTransition(ctx, res, jobID)
}

// checkJobTransition distinguishes a missing job from a denied transition
// when a guarded update touched zero rows.
func (s *Store) checkJobTransition(ctx context.Context, res sql.Result, jobID uuid.UUID) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, queryGetJobStatus, jobID).Scan(&current)
	if err == sql.ErrNoRows {
		return sql.ErrNoRows
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s is %s", engine.ErrTransitionDenied, jobID, current)
}

// FailStaleJobs fails processing jobs untouched since olderThan. These are
// crash leftovers; the no-auto-retry policy means they surface as failed for
// the operator rather than being silently re-dispatched.
func (s *Store) FailStaleJobs(ctx context.Context, olderThan time.Time, limit int, reason string, now time.Time) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, queryFailStaleJobs, olderThan, limit, reason, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InsertJobs enrolls jobs, silently skipping (campaign, lead) pairs that
// already have one. Returns the number actually inserted.
func (s *Store) InsertJobs(ctx context.Context, jobs []domain.CampaignJob) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var inserted int64
	for _, job := range jobs {
		res, err := tx.ExecContext(ctx, queryInsertJob,
			job.ID,
			job.CampaignID,
			job.LeadID,
			job.LeadTable,
			job.SenderID,
			job.ContactEmail,
			string(job.Status),
			job.NextProcessingTime,
			job.CreatedAt,
		)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += n
	}

	return inserted, tx.Commit()
}

// CancelPendingJobs removes a campaign's pending jobs.
// Processing jobs are left to complete normally.
func (s *Store) CancelPendingJobs(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, queryCancelPendingJobs, campaignID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListJobs returns jobs belonging to the user's campaigns, optionally
// filtered by campaign and status.
func (s *Store) ListJobs(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, status string, limit, offset int) ([]domain.CampaignJob, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryListJobs, userID, uuidOrNil(campaignID), status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]domain.CampaignJob, error) {
	var result []domain.CampaignJob
	for rows.Next() {
		var job domain.CampaignJob
		var completedAt sql.NullTime

		err := rows.Scan(
			&job.ID,
			&job.CampaignID,
			&job.LeadID,
			&job.LeadTable,
			&job.SenderID,
			&job.ContactEmail,
			&job.Status,
			&job.NextProcessingTime,
			&job.ErrorMessage,
			&job.CreatedAt,
			&job.UpdatedAt,
			&completedAt,
		)
		if err != nil {
			return nil, err
		}
		if completedAt.Valid {
			t := completedAt.Time
			job.CompletedAt = &t
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// --- campaigns ---

// GetCampaign returns a campaign by id.
func (s *Store) GetCampaign(ctx context.Context, id uuid.UUID) (domain.Campaign, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var c domain.Campaign
	var pacingSeconds int64

	err := s.db.QueryRowContext(ctx, queryGetCampaign, id).Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.Status,
		&c.MarketRegion,
		&c.EmailSubjectTemplate,
		&c.EmailBodyTemplate,
		&c.DocumentTemplate,
		&c.DailySenderLimit,
		&c.TotalQuota,
		&pacingSeconds,
		&c.SendWindowCron,
		&c.Timezone,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return domain.Campaign{}, err
	}
	c.PacingInterval = time.Duration(pacingSeconds) * time.Second
	return c, nil
}

// UpdateCampaignStatus transitions the campaign if its current status is one
// of from. The guard lives in the WHERE clause so concurrent transitions
// serialize on the row lock.
func (s *Store) UpdateCampaignStatus(ctx context.Context, id uuid.UUID, from []domain.CampaignStatus, to domain.CampaignStatus, now time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	fromStrs := make([]string, len(from))
	for i, st := range from {
		fromStrs[i] = string(st)
	}

	res, err := s.db.ExecContext(ctx, queryUpdateCampaignStatus, id, string(to), now, pq.Array(fromStrs))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var current string
		err := s.db.QueryRowContext(ctx, queryGetCampaignStatus, id).Scan(&current)
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: campaign %s is %s", engine.ErrTransitionDenied, id, current)
	}
	return nil
}

// CompleteCampaignIfDone marks an ACTIVE campaign COMPLETED once no open
// jobs remain. A no-op otherwise.
func (s *Store) CompleteCampaignIfDone(ctx context.Context, id uuid.UUID, now time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, queryCompleteCampaignIfDone, id, now)
	return err
}

// --- senders ---

// GetActiveSenders returns usable sender mailboxes, default first.
func (s *Store) GetActiveSenders(ctx context.Context) ([]domain.Sender, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryGetActiveSenders)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Sender
	for rows.Next() {
		var sd domain.Sender
		if err := rows.Scan(&sd.ID, &sd.Name, &sd.Email, &sd.IsActive, &sd.IsDefault, &sd.Status, &sd.CreatedAt, &sd.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, sd)
	}
	return result, rows.Err()
}

// GetSenderByID returns a sender by id.
func (s *Store) GetSenderByID(ctx context.Context, id uuid.UUID) (domain.Sender, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var sd domain.Sender
	err := s.db.QueryRowContext(ctx, queryGetSenderByID, id).Scan(
		&sd.ID, &sd.Name, &sd.Email, &sd.IsActive, &sd.IsDefault, &sd.Status, &sd.CreatedAt, &sd.UpdatedAt,
	)
	if err != nil {
		return domain.Sender{}, err
	}
	return sd, nil
}

// --- email tasks ---

// InsertEmailTask appends one send-log row. Rows are never updated.
func (s *Store) InsertEmailTask(ctx context.Context, task domain.EmailTask) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var jobID interface{}
	if task.JobID != nil {
		jobID = *task.JobID
	}
	var sentAt interface{}
	if task.SentAt != nil {
		sentAt = *task.SentAt
	}

	_, err := s.db.ExecContext(ctx, queryInsertEmailTask,
		task.ID,
		jobID,
		task.CampaignID,
		task.SenderEmail,
		task.Recipient,
		task.Subject,
		task.BodyPreview,
		string(task.Status),
		task.ErrorMessage,
		task.AttachmentName,
		task.CreatedAt,
		sentAt,
	)
	return err
}

// ListTasks returns send-log rows for the user's campaigns.
func (s *Store) ListTasks(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, status string, limit, offset int) ([]domain.EmailTask, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryListTasks, userID, uuidOrNil(campaignID), status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.EmailTask
	for rows.Next() {
		var task domain.EmailTask
		var jobID sql.NullString
		var sentAt sql.NullTime

		err := rows.Scan(
			&task.ID,
			&jobID,
			&task.CampaignID,
			&task.SenderEmail,
			&task.Recipient,
			&task.Subject,
			&task.BodyPreview,
			&task.Status,
			&task.ErrorMessage,
			&task.AttachmentName,
			&task.CreatedAt,
			&sentAt,
		)
		if err != nil {
			return nil, err
		}
		if jobID.Valid {
			id, err := uuid.Parse(jobID.String)
			if err == nil {
				task.JobID = &id
			}
		}
		if sentAt.Valid {
			t := sentAt.Time
			task.SentAt = &t
		}
		result = append(result, task)
	}
	return result, rows.Err()
}

// --- leads ---

// GetLeadByID fetches one lead row from a region table. The table name must
// come from the region allowlist; it is quoted before interpolation.
func (s *Store) GetLeadByID(ctx context.Context, table string, leadID int64) (domain.Lead, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(queryGetLeadByIDFmt, pq.QuoteIdentifier(table))
	lead, err := scanLead(s.db.QueryRowContext(ctx, query, leadID))
	if err != nil {
		return domain.Lead{}, err
	}
	lead.SourceTable = table
	return lead, nil
}

// NextEligibleLead fetches the first lead with a contact email that no job
// references yet.
func (s *Store) NextEligibleLead(ctx context.Context, table string) (domain.Lead, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(queryNextEligibleLeadFmt, pq.QuoteIdentifier(table))
	lead, err := scanLead(s.db.QueryRowContext(ctx, query, table))
	if err != nil {
		return domain.Lead{}, err
	}
	lead.SourceTable = table
	return lead, nil
}

// ListUnenrolledLeads returns leads with a contact email that the campaign
// has not enrolled yet.
func (s *Store) ListUnenrolledLeads(ctx context.Context, table string, campaignID uuid.UUID, limit int) ([]domain.Lead, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(queryListUnenrolledLeadsFmt, pq.QuoteIdentifier(table))
	rows, err := s.db.QueryContext(ctx, query, campaignID, table, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		lead.SourceTable = table
		result = append(result, lead)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row rowScanner) (domain.Lead, error) {
	var lead domain.Lead
	err := row.Scan(
		&lead.ID,
		&lead.ContactName,
		&lead.ContactEmail,
		&lead.PropertyAddress,
		&lead.PropertyCity,
		&lead.PropertyState,
		&lead.PropertyPostal,
		&lead.AssessedTotal,
	)
	return lead, err
}

func uuidOrNil(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}
