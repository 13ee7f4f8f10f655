package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/target/renderjobs/internal/data/pgxutil"
	"github.com/target/renderjobs/internal/domain/model"
)

// targetTable describes one dependent-entity table. Both contents and projects share
// the (id, status, result_url, updated_at) shape the reconciler touches.
type targetTable struct {
	name     string
	notFound error
}

// TargetRepo updates a dependent entity (content or project) inside a caller's transaction.
type TargetRepo struct {
	DB           *sql.DB
	table        targetTable
	timeProvider TimeProvider
	logger       *slog.Logger
}

// ContentRepo is the TargetRepo for contents.
type ContentRepo struct{ *TargetRepo }

// ProjectRepo is the TargetRepo for projects.
type ProjectRepo struct{ *TargetRepo }

func newTargetRepo(db *sql.DB, cfg RepoConfig, table targetTable) *TargetRepo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TargetRepo{
		DB:           db,
		table:        table,
		timeProvider: timeProviderOrDefault(cfg.TimeProvider),
		logger:       logger.With("component", table.name+"_repo"),
	}
}

// NewContentRepo creates a repository over the contents table.
func NewContentRepo(db *sql.DB, cfg RepoConfig) *ContentRepo {
	return &ContentRepo{newTargetRepo(db, cfg, targetTable{name: "contents", notFound: ErrContentNotFound})}
}

// NewProjectRepo creates a repository over the projects table.
func NewProjectRepo(db *sql.DB, cfg RepoConfig) *ProjectRepo {
	return &ProjectRepo{newTargetRepo(db, cfg, targetTable{name: "projects", notFound: ErrProjectNotFound})}
}

// UpdateResultInTx stores the normalized result URL and marks the entity READY.
// It returns the table's not-found sentinel when no row has the id.
func (r *TargetRepo) UpdateResultInTx(ctx context.Context, tx *sql.Tx, id, resultURL string) error {
	if tx == nil {
		return ErrTxRequired
	}
	if strings.TrimSpace(resultURL) == "" {
		return errors.New("result url is required")
	}
	// table name is one of two constants, never user input
	query := `UPDATE ` + r.table.name + `
		SET result_url = $2, status = $3, updated_at = $4
		WHERE id = $1`
	return r.execOne(ctx, tx, query, id, resultURL, model.TargetStatusReady, r.timeProvider.Now().UTC())
}

// MarkFailedInTx marks the entity FAILED. The previous result URL is kept.
// The update runs under a savepoint, so when it fails tx is still usable and the
// caller may ignore the error.
func (r *TargetRepo) MarkFailedInTx(ctx context.Context, tx *sql.Tx, id string) error {
	if tx == nil {
		return ErrTxRequired
	}
	query := `UPDATE ` + r.table.name + `
		SET status = $2, updated_at = $3
		WHERE id = $1`
	return pgxutil.WithSavepoint(ctx, tx, "mark_"+r.table.name+"_failed", func() error {
		return r.execOne(ctx, tx, query, id, model.TargetStatusFailed, r.timeProvider.Now().UTC())
	})
}

func (r *TargetRepo) execOne(ctx context.Context, tx *sql.Tx, query string, args ...any) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.table.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return r.table.notFound
	}
	return nil
}

// Create inserts a content row in PENDING state.
func (r *ContentRepo) Create(ctx context.Context, id, projectID string) (*model.Content, error) {
	c := &model.Content{}
	var resultURL sql.NullString
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO contents (id, project_id, status, updated_at)
		VALUES ($1, $2, 'PENDING', $3)
		RETURNING id, project_id, status, result_url, updated_at
	`, id, projectID, r.timeProvider.Now().UTC()).Scan(&c.ID, &c.ProjectID, &c.Status, &resultURL, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create content: %w", err)
	}
	c.ResultURL = cloneNullableString(resultURL)
	return c, nil
}

// GetByID retrieves a content row.
func (r *ContentRepo) GetByID(ctx context.Context, id string) (*model.Content, error) {
	c := &model.Content{}
	var resultURL sql.NullString
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, project_id, status, result_url, updated_at FROM contents WHERE id = $1
	`, id).Scan(&c.ID, &c.ProjectID, &c.Status, &resultURL, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	c.ResultURL = cloneNullableString(resultURL)
	return c, nil
}

// Create inserts a project row in PENDING state.
func (r *ProjectRepo) Create(ctx context.Context, id, name string) (*model.Project, error) {
	p := &model.Project{}
	var resultURL sql.NullString
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO projects (id, name, status, updated_at)
		VALUES ($1, $2, 'PENDING', $3)
		RETURNING id, name, status, result_url, updated_at
	`, id, name, r.timeProvider.Now().UTC()).Scan(&p.ID, &p.Name, &p.Status, &resultURL, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	p.ResultURL = cloneNullableString(resultURL)
	return p, nil
}

// GetByID retrieves a project row.
func (r *ProjectRepo) GetByID(ctx context.Context, id string) (*model.Project, error) {
	p := &model.Project{}
	var resultURL sql.NullString
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, name, status, result_url, updated_at FROM projects WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Status, &resultURL, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	p.ResultURL = cloneNullableString(resultURL)
	return p, nil
}
