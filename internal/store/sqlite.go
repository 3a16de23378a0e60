package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/civic/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes all access and avoids "database is locked" under
	// concurrent HTTP requests.
	db.SetMaxOpenConns(1)

	pragmas := []struct{ name, stmt string }{
		{"enable WAL mode", "PRAGMA journal_mode=WAL"},
		{"set busy timeout", "PRAGMA busy_timeout=5000"},
		{"enable foreign keys", "PRAGMA foreign_keys=ON"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullInt maps a nil pointer to SQL NULL.
func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

// nullFloat maps a nil pointer to SQL NULL.
func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// newULID generates a new monotonic ULID string.
func newULID() string {
	return ulid.Make().String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Users ---

const userColumns = `id, username, is_department_admin, department, city, phone, created_at`

func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = newULID()
	}
	if u.City == "" {
		u.City = models.DefaultCity
	}
	u.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, boolToInt(u.IsDepartmentAdmin), string(u.Department), u.City, u.Phone, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var dept string
	if err := row.Scan(&u.ID, &u.Username, &u.IsDepartmentAdmin, &dept, &u.City, &u.Phone, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Department = models.Department(dept)
	return u, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %w: %s", ErrNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- Complaints ---

const complaintColumns = `id, user_id, description, location_name, pincode, latitude, longitude, image_ref, department, priority, status, rating, feedback, created_at, updated_at`

func (s *SQLiteStore) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	if c.ID == "" {
		c.ID = newULID()
	}
	if c.Status == "" {
		c.Status = models.StatusPending
	}
	if c.Priority == "" {
		c.Priority = models.PriorityLow
	}
	if c.Department == "" {
		c.Department = models.DepartmentMunicipal
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO complaints (`+complaintColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Description, c.LocationName, c.Pincode, nullFloat(c.Latitude), nullFloat(c.Longitude), c.ImageRef,
		string(c.Department), string(c.Priority), string(c.Status), nullInt(c.Rating), c.Feedback,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create complaint: %w", err)
	}
	return nil
}

func scanComplaint(row interface{ Scan(...any) error }) (*models.Complaint, error) {
	c := &models.Complaint{}
	var dept, priority, status string
	var lat, lng sql.NullFloat64
	var rating sql.NullInt64

	if err := row.Scan(&c.ID, &c.UserID, &c.Description, &c.LocationName, &c.Pincode,
		&lat, &lng, &c.ImageRef, &dept, &priority, &status, &rating, &c.Feedback,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}

	c.Department = models.Department(dept)
	c.Priority = models.Priority(priority)
	c.Status = models.ComplaintStatus(status)
	if lat.Valid {
		c.Latitude = &lat.Float64
	}
	if lng.Valid {
		c.Longitude = &lng.Float64
	}
	if rating.Valid {
		r := int(rating.Int64)
		c.Rating = &r
	}
	return c, nil
}

func (s *SQLiteStore) GetComplaint(ctx context.Context, id string) (*models.Complaint, error) {
	c, err := scanComplaint(s.db.QueryRowContext(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("complaint %w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get complaint: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) ListComplaints(ctx context.Context, filter ComplaintListFilter) ([]*models.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints`
	var conditions []string
	var args []any

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Department != "" {
		conditions = append(conditions, "department = ?")
		args = append(args, string(filter.Department))
	}
	if filter.City != "" {
		conditions = append(conditions, "user_id IN (SELECT id FROM users WHERE city = ? COLLATE NOCASE)")
		args = append(args, filter.City)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		conditions = append(conditions, "priority = ?")
		args = append(args, string(filter.Priority))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var complaints []*models.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan complaint: %w", err)
		}
		complaints = append(complaints, c)
	}
	return complaints, rows.Err()
}

func (s *SQLiteStore) TransitionComplaint(ctx context.Context, c *models.Complaint, expected models.ComplaintStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	updatedAt := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE complaints SET status=?, rating=?, feedback=?, updated_at=? WHERE id=? AND status=?`,
		string(c.Status), nullInt(c.Rating), c.Feedback, updatedAt, c.ID, string(expected),
	)
	if err != nil {
		return fmt.Errorf("transition complaint: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		var current string
		err := tx.QueryRowContext(ctx, "SELECT status FROM complaints WHERE id = ?", c.ID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("complaint %w: %s", ErrNotFound, c.ID)
		}
		if err != nil {
			return fmt.Errorf("transition complaint: %w", err)
		}
		return fmt.Errorf("complaint %s is %s, expected %s: %w", c.ID, current, expected, ErrConflict)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	c.UpdatedAt = updatedAt
	return nil
}

func (s *SQLiteStore) UpdateComplaintDepartment(ctx context.Context, id string, dept models.Department) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE complaints SET department=?, updated_at=? WHERE id=?`,
		string(dept), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update complaint department: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("complaint %w: %s", ErrNotFound, id)
	}
	return nil
}

// --- Notifications ---

func (s *SQLiteStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = newULID()
	}
	n.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, complaint_id, message, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.ComplaintID, n.Message, boolToInt(n.Read), n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error) {
	query := `SELECT id, user_id, complaint_id, message, is_read, created_at FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += " AND is_read = 0"
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.ComplaintID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id, userID string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("notification %w: %s", ErrNotFound, id)
	}
	return nil
}
