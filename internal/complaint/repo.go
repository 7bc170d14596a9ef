package complaint

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists complaints in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const complaintColumns = `id, title, description, category, priority, status, submitted_at, resolved_at,
	student_ref, student_name, room_number, attachment_url, version, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanComplaint(row scanner) (Complaint, error) {
	var (
		c          Complaint
		resolvedAt sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Category, &c.Priority, &c.Status,
		&c.SubmittedAt, &resolvedAt, &c.StudentRef, &c.StudentName, &c.RoomNumber, &c.AttachmentURL, &c.Version, &c.UpdatedAt); err != nil {
		return Complaint{}, err
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		c.ResolvedAt = &t
	}
	c.SubmittedAt = c.SubmittedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

// Insert writes a new complaint with version 1.
func (r *Repository) Insert(ctx context.Context, c Complaint) (Complaint, error) {
	c.Version = 1
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.SubmittedAt
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO complaints (id, title, description, category, priority, status, submitted_at, resolved_at,
			student_ref, student_name, room_number, attachment_url, version, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, c.ID, c.Title, c.Description, c.Category, c.Priority, c.Status, c.SubmittedAt, nullTime(c.ResolvedAt),
		c.StudentRef, c.StudentName, c.RoomNumber, c.AttachmentURL, c.Version, c.UpdatedAt)
	if isUniqueViolation(err) {
		return Complaint{}, ErrConflict
	}
	if err != nil {
		return Complaint{}, err
	}
	return c, nil
}

// Get returns a single complaint by id.
func (r *Repository) Get(ctx context.Context, id string) (Complaint, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id = $1`, id)
	c, err := scanComplaint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Complaint{}, ErrNotFound
	}
	return c, err
}

// List returns complaints with basic filters, most recent first.
func (r *Repository) List(ctx context.Context, f Filter) ([]Complaint, error) {
	query, args := listQuery(f)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Complaint{}
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func listQuery(f Filter) (string, []any) {
	query := `SELECT ` + complaintColumns + ` FROM complaints`
	args := []any{}
	clauses := []string{}
	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, column+" = $"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		add("status", f.Status)
	}
	if f.Category != "" {
		add("category", f.Category)
	}
	if f.Priority != "" {
		add("priority", f.Priority)
	}
	if f.StudentRef != "" {
		add("student_ref", f.StudentRef)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY submitted_at DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}
	return query, args
}

// Update writes status and resolution time as a single-row update guarded by
// the version column.
func (r *Repository) Update(ctx context.Context, c Complaint, expectedVersion int64) (Complaint, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE complaints
		SET status = $3, resolved_at = $4, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING `+complaintColumns,
		c.ID, expectedVersion, c.Status, nullTime(c.ResolvedAt))
	updated, err := scanComplaint(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Complaint{}, err
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM complaints WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
		return Complaint{}, err
	}
	if !exists {
		return Complaint{}, ErrNotFound
	}
	return Complaint{}, ErrConflict
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
