package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/micropantry/pantrymap/internal/models"
	"github.com/micropantry/pantrymap/internal/repository"
)

type donationRepository struct {
	db *sql.DB
}

// NewDonationRepository creates a new donation report repository.
func NewDonationRepository(db *sql.DB) repository.DonationRepository {
	return &donationRepository{db: db}
}

func (r *donationRepository) Create(ctx context.Context, report *models.DonationReport) (*models.DonationReport, error) {
	query := `
		INSERT INTO donation_reports (id, pantry_id, donation_size, donation_items, note, photo_urls, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		report.ID,
		report.PantryID,
		string(report.DonationSize),
		pq.Array(report.DonationItems),
		report.Note,
		pq.Array(report.PhotoURLs),
		report.CreatedAt,
	).Scan(&report.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create donation report: %w", err)
	}

	return report, nil
}

func (r *donationRepository) ListRecent(ctx context.Context, pantryID string, since time.Time) ([]*models.DonationReport, error) {
	query := `
		SELECT id, pantry_id, donation_size, donation_items, note, photo_urls, created_at
		FROM donation_reports
		WHERE pantry_id = $1 AND created_at > $2
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, pantryID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query donation reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.DonationReport
	for rows.Next() {
		report := &models.DonationReport{}
		var size string
		if err := rows.Scan(
			&report.ID,
			&report.PantryID,
			&size,
			pq.Array(&report.DonationItems),
			&report.Note,
			pq.Array(&report.PhotoURLs),
			&report.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan donation report: %w", err)
		}
		report.DonationSize = models.DonationSize(size)
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

func (r *donationRepository) CountRecent(ctx context.Context, pantryID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(1)
		FROM donation_reports
		WHERE pantry_id = $1 AND created_at > $2`

	var count int
	if err := r.db.QueryRowContext(ctx, query, pantryID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count donation reports: %w", err)
	}

	return count, nil
}
