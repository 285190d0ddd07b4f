package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/iba-dss/hxd-api/core/registration"
)

// draftRepository stores each snapshot as a single JSONB blob keyed by the
// draft key; the sheet is the system of record after submission, so the shape
// here only needs to round-trip, not be queryable.
type draftRepository struct {
	db *sqlx.DB
}

var _ registration.SnapshotRepository = (*draftRepository)(nil)

func NewDraftRepository(db *sql.DB) *draftRepository {
	return &draftRepository{db: sqlx.NewDb(db, "postgres")}
}

type draftRow struct {
	Key  string `db:"key"`
	Data []byte `db:"data"`
}

func (repo *draftRepository) SaveDraft(ctx context.Context, draft registration.Draft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return errors.Wrap(err, "encoding draft")
	}
	_, err = repo.db.ExecContext(ctx, `
		INSERT INTO draft_snapshot ("key", "data", "created_at", "updated_at")
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ("key") DO UPDATE SET "data" = EXCLUDED."data", "updated_at" = EXCLUDED."updated_at"`,
		draft.Key, data, draft.CreatedAt, draft.UpdatedAt,
	)
	return errors.Wrap(err, "saving draft")
}

func (repo *draftRepository) GetDraft(ctx context.Context, key string) (registration.Draft, error) {
	var row draftRow
	err := repo.db.GetContext(ctx, &row, `SELECT "key", "data" FROM draft_snapshot WHERE "key" = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return registration.Draft{}, registration.ErrNotFound
		}
		return registration.Draft{}, errors.Wrap(err, "getting draft")
	}

	var d registration.Draft
	if err = json.Unmarshal(row.Data, &d); err != nil {
		return registration.Draft{}, errors.Wrap(err, "decoding draft")
	}
	return d, nil
}

func (repo *draftRepository) DeleteDraft(ctx context.Context, key string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM draft_snapshot WHERE "key" = $1`, key)
	return errors.Wrap(err, "deleting draft")
}
