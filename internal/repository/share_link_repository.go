package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/credential-ledger-api/internal/models"
)

const shareLinkColumns = `id, token, credential_id, expires_at, view_count, revoked_at, created_by, created_at`

// ShareLinkRepository persists public verification links.
type ShareLinkRepository struct {
	db *sqlx.DB
}

// NewShareLinkRepository constructs the repository.
func NewShareLinkRepository(db *sqlx.DB) *ShareLinkRepository {
	return &ShareLinkRepository{db: db}
}

// Create inserts a share link.
func (r *ShareLinkRepository) Create(ctx context.Context, link *models.ShareLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO share_links (` + shareLinkColumns + `)
	VALUES (:id, :token, :credential_id, :expires_at, :view_count, :revoked_at, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return translateInsertErr(err, "create share link")
	}
	return nil
}

// GetByID fetches a link by identifier.
func (r *ShareLinkRepository) GetByID(ctx context.Context, id string) (*models.ShareLink, error) {
	const query = `SELECT ` + shareLinkColumns + ` FROM share_links WHERE id = $1`
	var link models.ShareLink
	if err := r.db.GetContext(ctx, &link, query, id); err != nil {
		return nil, err
	}
	return &link, nil
}

// GetByToken fetches a link by its opaque token.
func (r *ShareLinkRepository) GetByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	const query = `SELECT ` + shareLinkColumns + ` FROM share_links WHERE token = $1`
	var link models.ShareLink
	if err := r.db.GetContext(ctx, &link, query, token); err != nil {
		return nil, err
	}
	return &link, nil
}

// Revoke disables a link once; sql.ErrNoRows when already revoked or missing.
func (r *ShareLinkRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE share_links SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`
	return expectOneRow(r.db.ExecContext(ctx, query, at, id))
}

// IncrementViews bumps the view counter while the link is still active at now.
func (r *ShareLinkRepository) IncrementViews(ctx context.Context, id string, now time.Time) error {
	const query = `UPDATE share_links SET view_count = view_count + 1
	WHERE id = $1 AND revoked_at IS NULL AND (expires_at IS NULL OR expires_at > $2)`
	return expectOneRow(r.db.ExecContext(ctx, query, id, now))
}
