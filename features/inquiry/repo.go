package inquiry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const inquiryColumns = `id, provider_id, provider_name, service_type, email_to, subject, body,
	message_id, status, reply_body, extracted_price, extracted_currency, sent_at, replied_at, created_at`

func (r *PostgresRepo) Insert(ctx context.Context, inq *Inquiry) error {
	if inq.ID == "" {
		inq.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO inquiries (id, provider_id, provider_name, service_type, email_to, subject, body, message_id, status, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, q,
		inq.ID, inq.ProviderID, inq.ProviderName, inq.ServiceType, inq.EmailTo,
		inq.Subject, inq.Body, inq.MessageID, string(inq.Status), inq.SentAt,
	)
	if err != nil {
		return fmt.Errorf("insert inquiry: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ListOutstanding(ctx context.Context) ([]Inquiry, error) {
	q := fmt.Sprintf(`SELECT %s FROM inquiries WHERE status = 'sent' ORDER BY sent_at`, inquiryColumns)
	return r.list(ctx, q)
}

func (r *PostgresRepo) ListByProvider(ctx context.Context, providerID string) ([]Inquiry, error) {
	q := fmt.Sprintf(`SELECT %s FROM inquiries WHERE provider_id = $1 ORDER BY created_at DESC`, inquiryColumns)
	return r.list(ctx, q, providerID)
}

func (r *PostgresRepo) list(ctx context.Context, q string, args ...interface{}) ([]Inquiry, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list inquiries: %w", err)
	}
	defer rows.Close()

	var out []Inquiry
	for rows.Next() {
		var (
			inq       Inquiry
			status    string
			replyBody sql.NullString
			price     sql.NullFloat64
			currency  sql.NullString
			repliedAt sql.NullTime
		)
		if err := rows.Scan(
			&inq.ID, &inq.ProviderID, &inq.ProviderName, &inq.ServiceType, &inq.EmailTo,
			&inq.Subject, &inq.Body, &inq.MessageID, &status, &replyBody,
			&price, &currency, &inq.SentAt, &repliedAt, &inq.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan inquiry: %w", err)
		}
		inq.Status = Status(status)
		inq.ReplyBody = replyBody.String
		inq.ExtractedPrice = price.Float64
		inq.ExtractedCurrency = currency.String
		if repliedAt.Valid {
			t := repliedAt.Time
			inq.RepliedAt = &t
		}
		out = append(out, inq)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) HasActive(ctx context.Context, providerID, serviceType string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM inquiries
			WHERE provider_id = $1 AND service_type = $2 AND status IN ('sent', 'replied')
		)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, q, providerID, serviceType).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active inquiry: %w", err)
	}
	return exists, nil
}

// MarkReplied guards the forward-only transition in SQL: only a row still
// in sent state is updated.
func (r *PostgresRepo) MarkReplied(ctx context.Context, id, replyBody string, price float64, currency string) (bool, error) {
	const q = `
		UPDATE inquiries
		SET status = 'replied', reply_body = $2, extracted_price = NULLIF($3, 0),
		    extracted_currency = NULLIF($4, ''), replied_at = NOW()
		WHERE id = $1 AND status = 'sent'`

	res, err := r.db.ExecContext(ctx, q, id, replyBody, price, currency)
	if err != nil {
		return false, fmt.Errorf("mark inquiry replied: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark inquiry replied: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepo) LatestStatusByProvider(ctx context.Context, providerIDs []string, serviceType string) (map[string]string, error) {
	out := make(map[string]string)
	if len(providerIDs) == 0 {
		return out, nil
	}
	const q = `
		SELECT DISTINCT ON (provider_id) provider_id, status
		FROM inquiries
		WHERE provider_id = ANY($1) AND service_type = $2
		ORDER BY provider_id, created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, pq.Array(providerIDs), serviceType)
	if err != nil {
		return nil, fmt.Errorf("inquiry statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("scan inquiry status: %w", err)
		}
		out[id] = status
	}
	return out, rows.Err()
}
