package inventory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"gatekeep/pkg/platform/sentinel"
)

// PostgresStore persists the inventory in Postgres. Tag arrays map to
// text[] columns.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the inventory tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS applications (
	id             BIGSERIAL PRIMARY KEY,
	name           TEXT NOT NULL,
	owner          TEXT NOT NULL,
	environment    TEXT NOT NULL,
	criticality    TEXT NOT NULL,
	tags           TEXT[] NOT NULL DEFAULT '{}',
	description    TEXT NOT NULL DEFAULT '',
	resource_count INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS resources (
	id             BIGSERIAL PRIMARY KEY,
	application_id BIGINT NOT NULL REFERENCES applications(id),
	name           TEXT NOT NULL,
	type           TEXT NOT NULL,
	environment    TEXT NOT NULL,
	host           TEXT NOT NULL,
	tags           TEXT[] NOT NULL DEFAULT '{}',
	status         TEXT NOT NULL DEFAULT 'active',
	created_at     TIMESTAMPTZ NOT NULL
);`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *PostgresStore) CreateApplication(ctx context.Context, app Application) (Application, error) {
	const query = `
		INSERT INTO applications (name, owner, environment, criticality, tags, description, resource_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := s.db.QueryRowContext(ctx, query,
		app.Name, app.Owner, app.Environment, app.Criticality,
		pq.Array(app.Tags), app.Description, app.ResourceCount, app.CreatedAt,
	).Scan(&app.ID)
	if err != nil {
		return Application{}, err
	}
	return app, nil
}

func (s *PostgresStore) GetApplication(ctx context.Context, id int64) (Application, error) {
	const query = `
		SELECT id, name, owner, environment, criticality, tags, description, resource_count, created_at
		FROM applications WHERE id = $1`
	return scanApplication(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) ListApplications(ctx context.Context) ([]Application, error) {
	const query = `
		SELECT id, name, owner, environment, criticality, tags, description, resource_count, created_at
		FROM applications ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// UpdateApplication applies mutate to the current row inside a transaction
// with the row locked, mirroring the in-memory store's atomic update.
func (s *PostgresStore) UpdateApplication(ctx context.Context, id int64, mutate func(*Application)) (Application, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Application{}, err
	}
	defer tx.Rollback()

	const selectQuery = `
		SELECT id, name, owner, environment, criticality, tags, description, resource_count, created_at
		FROM applications WHERE id = $1 FOR UPDATE`
	app, err := scanApplication(tx.QueryRowContext(ctx, selectQuery, id))
	if err != nil {
		return Application{}, err
	}

	mutate(&app)

	const updateQuery = `
		UPDATE applications
		SET name = $2, owner = $3, environment = $4, criticality = $5, tags = $6, description = $7, resource_count = $8
		WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateQuery,
		app.ID, app.Name, app.Owner, app.Environment, app.Criticality,
		pq.Array(app.Tags), app.Description, app.ResourceCount,
	); err != nil {
		return Application{}, err
	}
	return app, tx.Commit()
}

func (s *PostgresStore) DeleteApplication(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *PostgresStore) CreateResource(ctx context.Context, resource Resource) (Resource, error) {
	const query = `
		INSERT INTO resources (application_id, name, type, environment, host, tags, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := s.db.QueryRowContext(ctx, query,
		resource.ApplicationID, resource.Name, resource.Type, resource.Environment,
		resource.Host, pq.Array(resource.Tags), string(resource.Status), resource.CreatedAt,
	).Scan(&resource.ID)
	if err != nil {
		return Resource{}, err
	}
	return resource, nil
}

func (s *PostgresStore) GetResource(ctx context.Context, id int64) (Resource, error) {
	const query = `
		SELECT id, application_id, name, type, environment, host, tags, status, created_at
		FROM resources WHERE id = $1`
	return scanResource(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) ListResources(ctx context.Context) ([]Resource, error) {
	return s.listResources(ctx, `
		SELECT id, application_id, name, type, environment, host, tags, status, created_at
		FROM resources ORDER BY id`)
}

func (s *PostgresStore) ListResourcesByApplication(ctx context.Context, applicationID int64) ([]Resource, error) {
	return s.listResources(ctx, `
		SELECT id, application_id, name, type, environment, host, tags, status, created_at
		FROM resources WHERE application_id = $1 ORDER BY id`, applicationID)
}

func (s *PostgresStore) CountApplications(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications`).Scan(&count)
	return count, err
}

func (s *PostgresStore) listResources(ctx context.Context, query string, args ...any) ([]Resource, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var resources []Resource
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, resource)
	}
	return resources, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (Application, error) {
	var app Application
	err := row.Scan(&app.ID, &app.Name, &app.Owner, &app.Environment, &app.Criticality,
		pq.Array(&app.Tags), &app.Description, &app.ResourceCount, &app.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Application{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Application{}, err
	}
	return app, nil
}

func scanResource(row rowScanner) (Resource, error) {
	var resource Resource
	var status string
	err := row.Scan(&resource.ID, &resource.ApplicationID, &resource.Name, &resource.Type,
		&resource.Environment, &resource.Host, pq.Array(&resource.Tags), &status, &resource.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Resource{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Resource{}, err
	}
	resource.Status = ResourceStatus(status)
	return resource, nil
}
