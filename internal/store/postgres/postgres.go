// Package postgres implements store.Store against PostgreSQL, using
// manual SQL and $N placeholders in the style of the rest of this
// repository's data layer.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/store"
)

// Store implements store.Store against a *sql.DB.
type Store struct{ db *sql.DB }

// New wraps an open database handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var sectionsJSON []byte
	var pauseReason sql.NullString
	var pausedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, sender, subject, sections, format, status,
		       total_recipients, pause_reason, paused_at, created_at, updated_at
		FROM campaigns WHERE id = $1
	`, id).Scan(
		&c.ID, &c.Name, &c.Sender, &c.Subject.Content, &sectionsJSON, &c.Format, &c.Status,
		&c.TotalRecipients, &pauseReason, &pausedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if err := json.Unmarshal(sectionsJSON, &c.Sections); err != nil {
		return nil, fmt.Errorf("decode sections: %w", err)
	}
	if pauseReason.Valid {
		c.PauseReason = &pauseReason.String
	}
	if pausedAt.Valid {
		c.PausedAt = &pausedAt.Time
	}
	return c, nil
}

func (s *Store) UpdateCampaignStatusIf(ctx context.Context, campaignID string, expected, next domain.CampaignStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, next, campaignID, expected)
	if err != nil {
		return false, fmt.Errorf("update campaign status: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) SetPauseReason(ctx context.Context, campaignID, reason string, pausedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE campaigns SET pause_reason = $1, paused_at = $2, updated_at = NOW() WHERE id = $3
	`, reason, pausedAt, campaignID)
	if err != nil {
		return fmt.Errorf("set pause reason: %w", err)
	}
	return nil
}

func (s *Store) ListRecipients(ctx context.Context, campaignID string) ([]domain.RecipientAttachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT contact_id, selected_email, details, status
		FROM campaign_recipients WHERE campaign_id = $1
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	var out []domain.RecipientAttachment
	for rows.Next() {
		var r domain.RecipientAttachment
		var detailsJSON []byte
		r.CampaignID = campaignID
		if err := rows.Scan(&r.ContactID, &r.SelectedEmail, &detailsJSON, &r.Status); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &r.Details); err != nil {
				return nil, fmt.Errorf("decode recipient details: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DeleteStagedItems(ctx context.Context, campaignID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM queue_items WHERE campaign_id = $1 AND status = $2
	`, campaignID, domain.QueueStaged)
	if err != nil {
		return fmt.Errorf("delete staged items: %w", err)
	}
	return nil
}

// insertChunkSize matches the batch size the original task queue used
// for its bulk inserts.
const insertChunkSize = 100

func (s *Store) InsertQueueItems(ctx context.Context, items []domain.QueueItem) error {
	for start := 0; start < len(items); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(items) {
			end = len(items)
		}
		if err := s.insertChunk(ctx, items[start:end]); err != nil {
			return fmt.Errorf("insert queue items [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (s *Store) insertChunk(ctx context.Context, items []domain.QueueItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO queue_items
			(id, campaign_id, contact_id, email, subject, body, metadata, status,
			 delay_seconds, is_edited, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW())
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		metaJSON, err := json.Marshal(item.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, item.ID, item.CampaignID, item.ContactID, item.Email,
			item.Subject, item.Body, metaJSON, item.Status, item.DelaySeconds, item.IsEdited); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListStagedItems(ctx context.Context, campaignID string, onlyIDs []string) ([]domain.QueueItem, error) {
	return s.listItemsByStatus(ctx, campaignID, domain.QueueStaged, onlyIDs)
}

func (s *Store) ListFailedItems(ctx context.Context, campaignID string) ([]domain.QueueItem, error) {
	return s.listItemsByStatus(ctx, campaignID, domain.QueueFailed, nil)
}

func (s *Store) listItemsByStatus(ctx context.Context, campaignID string, status domain.QueueStatus, onlyIDs []string) ([]domain.QueueItem, error) {
	query := `
		SELECT id, campaign_id, contact_id, email, subject, metadata, domain_index
		FROM queue_items WHERE campaign_id = $1 AND status = $2`
	args := []interface{}{campaignID, status}
	if len(onlyIDs) > 0 {
		query += fmt.Sprintf(" AND id = ANY($%d)", len(args)+1)
		args = append(args, idsToArray(onlyIDs))
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var out []domain.QueueItem
	for rows.Next() {
		var it domain.QueueItem
		var metaJSON []byte
		var domainIndex sql.NullInt64
		if err := rows.Scan(&it.ID, &it.CampaignID, &it.ContactID, &it.Email, &it.Subject, &metaJSON, &domainIndex); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &it.Metadata); err != nil {
				return nil, fmt.Errorf("decode item metadata: %w", err)
			}
		}
		if domainIndex.Valid {
			v := int(domainIndex.Int64)
			it.DomainIndex = &v
		}
		it.Status = status
		out = append(out, it)
	}
	return out, rows.Err()
}

func idsToArray(ids []string) interface{} {
	return pq.Array(ids)
}

func (s *Store) ApplySchedule(ctx context.Context, itemID string, domainIndex int, scheduledFor time.Time, fromEmail string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue_items
		SET status = $1, domain_index = $2, scheduled_for = $3, from_email = $4,
		    error_message = NULL, updated_at = NOW()
		WHERE id = $5 AND status IN ($6, $7)
	`, domain.QueueQueued, domainIndex, scheduledFor, fromEmail, itemID, domain.QueueStaged, domain.QueueFailed)
	if err != nil {
		return fmt.Errorf("apply schedule: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrConflict
	}
	return nil
}

func (s *Store) SnapshotDomainCommitments(ctx context.Context) (map[int]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain_index, MAX(scheduled_for)
		FROM queue_items
		WHERE status IN ($1, $2) AND scheduled_for IS NOT NULL AND domain_index IS NOT NULL
		GROUP BY domain_index
	`, domain.QueueQueued, domain.QueueProcessing)
	if err != nil {
		return nil, fmt.Errorf("snapshot commitments: %w", err)
	}
	defer rows.Close()

	out := map[int]time.Time{}
	for rows.Next() {
		var idx int
		var t time.Time
		if err := rows.Scan(&idx, &t); err != nil {
			return nil, fmt.Errorf("scan commitment: %w", err)
		}
		out[idx] = t
	}
	return out, rows.Err()
}

func (s *Store) SelectDue(ctx context.Context, limit int) ([]domain.QueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.campaign_id, q.contact_id, q.email, q.subject, q.body, q.metadata,
		       q.from_email, q.delay_seconds
		FROM queue_items q
		JOIN campaigns c ON c.id = q.campaign_id
		WHERE q.status = $1 AND q.scheduled_for <= NOW()
		  AND c.status NOT IN ($2, $3, $4)
		ORDER BY q.created_at ASC
		LIMIT $5
	`, domain.QueueQueued, domain.CampaignPaused, domain.CampaignCompleted, domain.CampaignCancelled, limit)
	if err != nil {
		return nil, fmt.Errorf("select due: %w", err)
	}
	defer rows.Close()

	var out []domain.QueueItem
	for rows.Next() {
		var it domain.QueueItem
		var metaJSON []byte
		var fromEmail sql.NullString
		if err := rows.Scan(&it.ID, &it.CampaignID, &it.ContactID, &it.Email, &it.Subject, &it.Body,
			&metaJSON, &fromEmail, &it.DelaySeconds); err != nil {
			return nil, fmt.Errorf("scan due item: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &it.Metadata); err != nil {
				return nil, fmt.Errorf("decode due metadata: %w", err)
			}
		}
		if fromEmail.Valid {
			it.FromEmail = &fromEmail.String
		}
		it.Status = domain.QueueQueued
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) Claim(ctx context.Context, itemID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue_items SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, domain.QueueProcessing, itemID, domain.QueueQueued)
	if err != nil {
		return false, fmt.Errorf("claim: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) SetBody(ctx context.Context, itemID, body string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE queue_items SET body = $1, updated_at = NOW() WHERE id = $2`, body, itemID)
	if err != nil {
		return fmt.Errorf("set body: %w", err)
	}
	return nil
}

func (s *Store) FinalizeSent(ctx context.Context, itemID string, sentAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue_items SET status = $1, sent_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, domain.QueueSent, sentAt, itemID, domain.QueueProcessing)
	if err != nil {
		return fmt.Errorf("finalize sent: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrConflict
	}
	return nil
}

func (s *Store) FinalizeFailed(ctx context.Context, itemID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue_items SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, domain.QueueFailed, errMsg, itemID, domain.QueueProcessing)
	if err != nil {
		return fmt.Errorf("finalize failed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrConflict
	}
	return nil
}

func (s *Store) RequeueProcessing(ctx context.Context, itemID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE queue_items SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, domain.QueueQueued, itemID, domain.QueueProcessing)
	if err != nil {
		return fmt.Errorf("requeue processing: %w", err)
	}
	return nil
}

func (s *Store) CountByStatus(ctx context.Context, campaignID string, status domain.QueueStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM queue_items WHERE campaign_id = $1 AND status = $2
	`, campaignID, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count by status: %w", err)
	}
	return n, nil
}

func (s *Store) HasFutureScheduled(ctx context.Context, campaignID string, after time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM queue_items
			WHERE campaign_id = $1 AND status IN ($2, $3) AND scheduled_for > $4
		)
	`, campaignID, domain.QueueQueued, domain.QueueProcessing, after).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has future scheduled: %w", err)
	}
	return exists, nil
}

func (s *Store) ListActiveCampaignIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM campaigns WHERE status IN ($1, $2)
	`, domain.CampaignScheduled, domain.CampaignSending)
	if err != nil {
		return nil, fmt.Errorf("list active campaigns: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list active campaigns: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
