// Package store persists URL records and the entities verified from them.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/casefile/internal/model"
)

var (
	// ErrDuplicate is wrapped by inserts that hit a uniqueness constraint
	ErrDuplicate = errors.New("duplicate record")

	// ErrNotFound is returned by lookups and updates of missing rows
	ErrNotFound = errors.New("record not found")
)

// Field names a mutable column of a URL record
type Field int

const (
	FieldContent        Field = iota // string
	FieldAccessible                  // model.Accessibility
	FieldActualIncident              // model.IncidentStatus
)

// String returns the column name
func (f Field) String() string {
	switch f {
	case FieldContent:
		return "content"
	case FieldAccessible:
		return "accessible"
	case FieldActualIncident:
		return "actual_incident"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// Store is the persistence contract of the pipeline. Every method that can
// hit a uniqueness constraint returns an error wrapping ErrDuplicate.
type Store interface {
	// GetOrCreateURLID returns the id of rec.URL, inserting rec if it is new
	GetOrCreateURLID(ctx context.Context, rec *model.URLRecord) (int64, error)
	InsertURL(ctx context.Context, rec *model.URLRecord) (int64, error)
	// UpdateField sets one column of an existing record; repeating it is harmless
	UpdateField(ctx context.Context, id int64, field Field, value any) error
	GetURL(ctx context.Context, rawURL string) (*model.URLRecord, error)
	// SearchURLs returns up to limit records, oldest first
	SearchURLs(ctx context.Context, limit int) ([]*model.URLRecord, error)

	InsertIncident(ctx context.Context, inc *model.Incident) (int64, error)
	ListIncidents(ctx context.Context, urlID int64) ([]*model.Incident, error)

	InsertSuspect(ctx context.Context, s *model.Suspect) (int64, error)
	ListSuspects(ctx context.Context, urlID int64) ([]*model.Suspect, error)
	InsertVictim(ctx context.Context, v *model.Victim) (int64, error)
	ListVictims(ctx context.Context, urlID int64) ([]*model.Victim, error)

	InsertSuspectForm(ctx context.Context, f *model.SuspectForm) (int64, error)
	GetSuspectForm(ctx context.Context, suspectID int64) (*model.SuspectForm, error)
	InsertVictimForm(ctx context.Context, f *model.VictimForm) (int64, error)
	GetVictimForm(ctx context.Context, victimID int64) (*model.VictimForm, error)

	Close() error
}

// checkFieldValue validates the dynamic type of an UpdateField value
func checkFieldValue(field Field, value any) error {
	var ok bool
	switch field {
	case FieldContent:
		_, ok = value.(string)
	case FieldAccessible:
		_, ok = value.(model.Accessibility)
	case FieldActualIncident:
		_, ok = value.(model.IncidentStatus)
	default:
		return fmt.Errorf("unknown field %s", field)
	}
	if !ok {
		return fmt.Errorf("field %s: unexpected value type %T", field, value)
	}
	return nil
}
