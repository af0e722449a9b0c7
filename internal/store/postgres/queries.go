package postgres

const jobColumns = `
    id, campaign_id, lead_id, lead_table, sender_id, contact_email,
    status, next_processing_time, error_message,
    created_at, updated_at, completed_at`

// queryClaimDueJobs atomically selects due pending jobs and marks them
// processing in one statement. SKIP LOCKED keeps overlapping loop ticks
// from claiming the same row.
const queryClaimDueJobs = `
UPDATE campaign_jobs
SET status = 'processing', updated_at = $1
WHERE id IN (
    SELECT id FROM campaign_jobs
    WHERE status = 'pending'
      AND next_processing_time <= $1
    ORDER BY next_processing_time ASC
    LIMIT $2
    FOR UPDATE SKIP LOCKED
)
RETURNING` + jobColumns

const queryMarkJobSent = `
UPDATE campaign_jobs
SET status = 'sent', error_message = '', updated_at = $2, completed_at = $2
WHERE id = $1
  AND status = 'processing'
`

const queryMarkJobFailed = `
UPDATE campaign_jobs
SET status = 'failed', error_message = $2, updated_at = $3, completed_at = $3
WHERE id = $1
  AND status = 'processing'
`

const queryGetJobStatus = `
SELECT status FROM campaign_jobs WHERE id = $1
`

const queryRequeueJob = `
UPDATE campaign_jobs
SET status = 'pending', next_processing_time = $2, error_message = '',
    updated_at = $2, completed_at = NULL
WHERE id = $1
  AND status = 'failed'
`

const queryPauseJobs = `
UPDATE campaign_jobs
SET status = 'paused', updated_at = $1
WHERE status = 'pending'
`

// queryResumeJobs shifts every paused job forward by the pause duration,
// preserving relative spacing instead of releasing them all at once.
const queryResumeJobs = `
UPDATE campaign_jobs
SET status = 'pending',
    next_processing_time = next_processing_time + make_interval(secs => $1),
    updated_at = $2
WHERE status = 'paused'
`

const queryFailStaleJobs = `
WITH stale AS (
    SELECT id FROM campaign_jobs
    WHERE status = 'processing'
      AND updated_at < $1
    ORDER BY updated_at ASC
    LIMIT $2
    FOR UPDATE SKIP LOCKED
)
UPDATE campaign_jobs
SET status = 'failed', error_message = $3, updated_at = $4, completed_at = $4
FROM stale
WHERE campaign_jobs.id = stale.id
`

const queryInsertJob = `
INSERT INTO campaign_jobs (id, campaign_id, lead_id, lead_table, sender_id, contact_email,
    status, next_processing_time, error_message, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '', $9, $9)
ON CONFLICT (campaign_id, lead_table, lead_id) DO NOTHING
`

const queryCancelPendingJobs = `
DELETE FROM campaign_jobs
WHERE campaign_id = $1
  AND status = 'pending'
`

const queryListJobs = `
SELECT` + jobColumns + `
FROM campaign_jobs
WHERE campaign_id IN (SELECT id FROM campaigns WHERE user_id = $1)
  AND ($2::uuid IS NULL OR campaign_id = $2)
  AND ($3 = '' OR status = $3)
ORDER BY next_processing_time ASC
LIMIT $4 OFFSET $5
`

const queryGetEngineState = `
SELECT is_running, is_paused, paused_at, updated_at
FROM engine_state
WHERE id = 1
`

const querySetEngineRunning = `
UPDATE engine_state
SET is_running = $1, updated_at = $2
WHERE id = 1
`

const queryPauseEngine = `
UPDATE engine_state
SET is_paused = true, paused_at = $1, updated_at = $1
WHERE id = 1
  AND is_paused = false
`

const queryResumeEngine = `
UPDATE engine_state
SET is_paused = false, paused_at = NULL, updated_at = $1
WHERE id = 1
  AND is_paused = true
`

const campaignColumns = `
    id, user_id, name, status, market_region,
    email_subject_template, email_body_template, document_template,
    daily_sender_limit, total_quota, pacing_interval_seconds,
    send_window_cron, timezone, created_at, updated_at`

const queryGetCampaign = `
SELECT` + campaignColumns + `
FROM campaigns
WHERE id = $1
`

const queryUpdateCampaignStatus = `
UPDATE campaigns
SET status = $2, updated_at = $3
WHERE id = $1
  AND status = ANY($4)
`

const queryGetCampaignStatus = `
SELECT status FROM campaigns WHERE id = $1
`

const queryCompleteCampaignIfDone = `
UPDATE campaigns
SET status = 'COMPLETED', updated_at = $2
WHERE id = $1
  AND status = 'ACTIVE'
  AND NOT EXISTS (
      SELECT 1 FROM campaign_jobs
      WHERE campaign_id = $1
        AND status IN ('pending', 'processing', 'paused')
  )
`

const queryGetActiveSenders = `
SELECT id, name, email, is_active, is_default, status, created_at, updated_at
FROM senders
WHERE is_active = true
  AND status = 'active'
ORDER BY is_default DESC, created_at ASC
`

const queryGetSenderByID = `
SELECT id, name, email, is_active, is_default, status, created_at, updated_at
FROM senders
WHERE id = $1
`

const queryInsertEmailTask = `
INSERT INTO email_tasks (id, job_id, campaign_id, sender_email, recipient,
    subject, body_preview, status, error_message, attachment_name, created_at, sent_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

const queryListTasks = `
SELECT id, job_id, campaign_id, sender_email, recipient,
    subject, body_preview, status, error_message, attachment_name, created_at, sent_at
FROM email_tasks
WHERE campaign_id IN (SELECT id FROM campaigns WHERE user_id = $1)
  AND ($2::uuid IS NULL OR campaign_id = $2)
  AND ($3 = '' OR status = $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`

// Lead table queries. The table identifier comes from the region allowlist
// and is quoted before interpolation; every value is still a bind parameter.

const leadColumns = `
    l.id,
    COALESCE(l.contact_name, ''), COALESCE(l.contact_email, ''),
    COALESCE(l.property_address, ''), COALESCE(l.property_city, ''),
    COALESCE(l.property_state, ''), COALESCE(l.property_postal_code, ''),
    COALESCE(l.assessed_total, 0)`

const queryGetLeadByIDFmt = `
SELECT` + leadColumns + `
FROM %s l
WHERE l.id = $1
`

const queryNextEligibleLeadFmt = `
SELECT` + leadColumns + `
FROM %s l
WHERE COALESCE(l.contact_email, '') <> ''
  AND NOT EXISTS (
      SELECT 1 FROM campaign_jobs j
      WHERE j.lead_table = $1
        AND j.lead_id = l.id
  )
ORDER BY l.id ASC
LIMIT 1
`

const queryListUnenrolledLeadsFmt = `
SELECT` + leadColumns + `
FROM %s l
WHERE COALESCE(l.contact_email, '') <> ''
  AND NOT EXISTS (
      SELECT 1 FROM campaign_jobs j
      WHERE j.campaign_id = $1
        AND j.lead_table = $2
        AND j.lead_id = l.id
  )
ORDER BY l.id ASC
LIMIT $3
`
