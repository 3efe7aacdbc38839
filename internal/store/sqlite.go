package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ppiankov/casefile/internal/model"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// SQLiteStore implements Store with SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory if it does not exist.
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	dsn := "file:" + path + "?" + url.Values{
		"_pragma": {"foreign_keys(1)", "busy_timeout(5000)"},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; keeps the pragmas on the only connection in use
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		if _, err := s.db.Exec(schemaV1); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}

	var v int
	if err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != schemaVersion {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// mapErr turns uniqueness violations into ErrDuplicate
func mapErr(op string, err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%s: %w: %v", op, ErrDuplicate, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *SQLiteStore) InsertURL(ctx context.Context, rec *model.URLRecord) (int64, error) {
	now := nowUTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO urls(url, domain_name, source, content, accessible, actual_incident, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.URL, rec.DomainName, rec.Source, rec.Content, int(rec.Accessible), int(rec.ActualIncident), now, now)
	if err != nil {
		return 0, mapErr("insert url", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert url: %w", err)
	}
	rec.ID = id
	return id, nil
}

func (s *SQLiteStore) GetOrCreateURLID(ctx context.Context, rec *model.URLRecord) (int64, error) {
	existing, err := s.GetURL(ctx, rec.URL)
	if err == nil {
		rec.ID = existing.ID
		return existing.ID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	return s.InsertURL(ctx, rec)
}

func (s *SQLiteStore) UpdateField(ctx context.Context, id int64, field Field, value any) error {
	if err := checkFieldValue(field, value); err != nil {
		return err
	}

	var arg any
	switch v := value.(type) {
	case model.Accessibility:
		arg = int(v)
	case model.IncidentStatus:
		arg = int(v)
	default:
		arg = v
	}

	// Column name comes from the closed Field enum
	query := fmt.Sprintf("UPDATE urls SET %s = ?, updated_at = ? WHERE id = ?", field)
	res, err := s.db.ExecContext(ctx, query, arg, nowUTC(), id)
	if err != nil {
		return mapErr("update "+field.String(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", field, err)
	}
	if n == 0 {
		return fmt.Errorf("update %s of url %d: %w", field, id, ErrNotFound)
	}
	return nil
}

const urlColumns = "id, url, domain_name, source, content, accessible, actual_incident"

func scanURL(row interface{ Scan(...any) error }) (*model.URLRecord, error) {
	var rec model.URLRecord
	var accessible, incident int
	if err := row.Scan(&rec.ID, &rec.URL, &rec.DomainName, &rec.Source, &rec.Content, &accessible, &incident); err != nil {
		return nil, err
	}
	rec.Accessible = model.Accessibility(accessible)
	rec.ActualIncident = model.IncidentStatus(incident)
	return &rec, nil
}

func (s *SQLiteStore) GetURL(ctx context.Context, rawURL string) (*model.URLRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+urlColumns+" FROM urls WHERE url = ?", rawURL)
	rec, err := scanURL(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("url %q: %w", rawURL, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get url: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) SearchURLs(ctx context.Context, limit int) ([]*model.URLRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+urlColumns+" FROM urls ORDER BY id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("search urls: %w", err)
	}
	defer rows.Close()

	var out []*model.URLRecord
	for rows.Next() {
		rec, err := scanURL(rows)
		if err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) InsertIncident(ctx context.Context, inc *model.Incident) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO incidents(url_id, text, created_at) VALUES(?, ?, ?)",
		inc.URLID, inc.Text, nowUTC())
	if err != nil {
		return 0, mapErr("insert incident", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert incident: %w", err)
	}
	inc.ID = id
	return id, nil
}

func (s *SQLiteStore) ListIncidents(ctx context.Context, urlID int64) ([]*model.Incident, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, url_id, text FROM incidents WHERE url_id = ? ORDER BY id", urlID)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var out []*model.Incident
	for rows.Next() {
		var inc model.Incident
		if err := rows.Scan(&inc.ID, &inc.URLID, &inc.Text); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, &inc)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) insertPerson(ctx context.Context, table string, p *model.Person) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO "+table+"(url_id, name, created_at) VALUES(?, ?, ?)",
		p.URLID, p.Name, nowUTC())
	if err != nil {
		return 0, mapErr("insert "+table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	p.ID = id
	return id, nil
}

func (s *SQLiteStore) listPersons(ctx context.Context, table string, urlID int64) ([]*model.Person, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, url_id, name FROM "+table+" WHERE url_id = ? ORDER BY id", urlID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var out []*model.Person
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.URLID, &p.Name); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) InsertSuspect(ctx context.Context, p *model.Suspect) (int64, error) {
	return s.insertPerson(ctx, "suspects", p)
}

func (s *SQLiteStore) ListSuspects(ctx context.Context, urlID int64) ([]*model.Suspect, error) {
	return s.listPersons(ctx, "suspects", urlID)
}

func (s *SQLiteStore) InsertVictim(ctx context.Context, p *model.Victim) (int64, error) {
	return s.insertPerson(ctx, "victims", p)
}

func (s *SQLiteStore) ListVictims(ctx context.Context, urlID int64) ([]*model.Victim, error) {
	return s.listPersons(ctx, "victims", urlID)
}

// insertForm writes one form row; nil fields become NULL
func (s *SQLiteStore) insertForm(ctx context.Context, table, ownerColumn string, columns []string,
	urlID, ownerID int64, name string, fields []**string, age *model.Age) (int64, error) {

	cols := append([]string{"url_id", ownerColumn, "name", "age"}, columns...)
	args := []any{urlID, ownerID, name, nullAge(age)}
	for _, f := range fields {
		args = append(args, nullText(*f))
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s(%s) VALUES(%s)", table, strings.Join(cols, ", "), placeholders)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapErr("insert "+table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	return id, nil
}

// getForm reads one form row into fields, keeping NULLs as nil
func (s *SQLiteStore) getForm(ctx context.Context, table, ownerColumn string, columns []string,
	ownerID int64, id, urlID *int64, name *string, fields []**string, age **model.Age) error {

	query := fmt.Sprintf("SELECT id, url_id, name, age, %s FROM %s WHERE %s = ?",
		strings.Join(columns, ", "), table, ownerColumn)

	var nullableAge sql.NullInt64
	texts := make([]sql.NullString, len(fields))
	dest := []any{id, urlID, name, &nullableAge}
	for i := range texts {
		dest = append(dest, &texts[i])
	}

	err := s.db.QueryRowContext(ctx, query, ownerID).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s for %d: %w", table, ownerID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", table, err)
	}

	for i, t := range texts {
		if t.Valid {
			v := t.String
			*fields[i] = &v
		}
	}
	if nullableAge.Valid {
		a := model.Age(nullableAge.Int64)
		*age = &a
	}
	return nil
}

func (s *SQLiteStore) InsertSuspectForm(ctx context.Context, f *model.SuspectForm) (int64, error) {
	id, err := s.insertForm(ctx, "suspect_forms", "suspect_id", suspectFormColumns,
		f.URLID, f.SuspectID, f.Name, f.TextFields(), f.Age)
	if err != nil {
		return 0, err
	}
	f.ID = id
	return id, nil
}

func (s *SQLiteStore) GetSuspectForm(ctx context.Context, suspectID int64) (*model.SuspectForm, error) {
	f := &model.SuspectForm{SuspectID: suspectID}
	if err := s.getForm(ctx, "suspect_forms", "suspect_id", suspectFormColumns,
		suspectID, &f.ID, &f.URLID, &f.Name, f.TextFields(), &f.Age); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *SQLiteStore) InsertVictimForm(ctx context.Context, f *model.VictimForm) (int64, error) {
	id, err := s.insertForm(ctx, "victim_forms", "victim_id", victimFormColumns,
		f.URLID, f.VictimID, f.Name, f.TextFields(), f.Age)
	if err != nil {
		return 0, err
	}
	f.ID = id
	return id, nil
}

func (s *SQLiteStore) GetVictimForm(ctx context.Context, victimID int64) (*model.VictimForm, error) {
	f := &model.VictimForm{VictimID: victimID}
	if err := s.getForm(ctx, "victim_forms", "victim_id", victimFormColumns,
		victimID, &f.ID, &f.URLID, &f.Name, f.TextFields(), &f.Age); err != nil {
		return nil, err
	}
	return f, nil
}

func nullText(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullAge(a *model.Age) any {
	if a == nil {
		return nil
	}
	return int64(*a)
}
