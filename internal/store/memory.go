package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ppiankov/casefile/internal/model"
)

// MemStore is an in-memory Store with the same constraints as SQLiteStore.
// It is used by tests and dry runs.
type MemStore struct {
	mu sync.Mutex

	urls      map[int64]*model.URLRecord
	urlIndex  map[string]int64
	incidents []*model.Incident
	suspects  map[int64]*model.Suspect
	victims   map[int64]*model.Victim

	suspectForms map[int64]*model.SuspectForm // by suspect id
	victimForms  map[int64]*model.VictimForm  // by victim id

	nextID int64
}

// NewMemStore returns an empty store
func NewMemStore() *MemStore {
	return &MemStore{
		urls:         make(map[int64]*model.URLRecord),
		urlIndex:     make(map[string]int64),
		suspects:     make(map[int64]*model.Suspect),
		victims:      make(map[int64]*model.Victim),
		suspectForms: make(map[int64]*model.SuspectForm),
		victimForms:  make(map[int64]*model.VictimForm),
	}
}

func (s *MemStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemStore) Close() error { return nil }

func (s *MemStore) InsertURL(_ context.Context, rec *model.URLRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertURL(rec)
}

func (s *MemStore) insertURL(rec *model.URLRecord) (int64, error) {
	if _, ok := s.urlIndex[rec.URL]; ok {
		return 0, fmt.Errorf("insert url %q: %w", rec.URL, ErrDuplicate)
	}
	stored := *rec
	stored.ID = s.id()
	s.urls[stored.ID] = &stored
	s.urlIndex[stored.URL] = stored.ID
	rec.ID = stored.ID
	return stored.ID, nil
}

func (s *MemStore) GetOrCreateURLID(_ context.Context, rec *model.URLRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.urlIndex[rec.URL]; ok {
		rec.ID = id
		return id, nil
	}
	return s.insertURL(rec)
}

func (s *MemStore) UpdateField(_ context.Context, id int64, field Field, value any) error {
	if err := checkFieldValue(field, value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.urls[id]
	if !ok {
		return fmt.Errorf("update %s of url %d: %w", field, id, ErrNotFound)
	}
	switch field {
	case FieldContent:
		rec.Content = value.(string)
	case FieldAccessible:
		rec.Accessible = value.(model.Accessibility)
	case FieldActualIncident:
		rec.ActualIncident = value.(model.IncidentStatus)
	}
	return nil
}

func (s *MemStore) GetURL(_ context.Context, rawURL string) (*model.URLRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.urlIndex[rawURL]
	if !ok {
		return nil, fmt.Errorf("url %q: %w", rawURL, ErrNotFound)
	}
	rec := *s.urls[id]
	return &rec, nil
}

func (s *MemStore) SearchURLs(_ context.Context, limit int) ([]*model.URLRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.urls))
	for id := range s.urls {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]*model.URLRecord, 0, len(ids))
	for _, id := range ids {
		rec := *s.urls[id]
		out = append(out, &rec)
	}
	return out, nil
}

func (s *MemStore) InsertIncident(_ context.Context, inc *model.Incident) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.urls[inc.URLID]; !ok {
		return 0, fmt.Errorf("insert incident: url %d does not exist", inc.URLID)
	}
	stored := *inc
	stored.ID = s.id()
	s.incidents = append(s.incidents, &stored)
	inc.ID = stored.ID
	return stored.ID, nil
}

func (s *MemStore) ListIncidents(_ context.Context, urlID int64) ([]*model.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Incident
	for _, inc := range s.incidents {
		if inc.URLID == urlID {
			c := *inc
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *MemStore) insertPerson(kind string, people map[int64]*model.Person, p *model.Person) (int64, error) {
	if _, ok := s.urls[p.URLID]; !ok {
		return 0, fmt.Errorf("insert %s: url %d does not exist", kind, p.URLID)
	}
	for _, existing := range people {
		if existing.URLID == p.URLID && existing.Name == p.Name {
			return 0, fmt.Errorf("insert %s %q: %w", kind, p.Name, ErrDuplicate)
		}
	}
	stored := *p
	stored.ID = s.id()
	people[stored.ID] = &stored
	p.ID = stored.ID
	return stored.ID, nil
}

func listPersons(people map[int64]*model.Person, urlID int64) []*model.Person {
	var out []*model.Person
	for _, p := range people {
		if p.URLID == urlID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemStore) InsertSuspect(_ context.Context, p *model.Suspect) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertPerson("suspect", s.suspects, p)
}

func (s *MemStore) ListSuspects(_ context.Context, urlID int64) ([]*model.Suspect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return listPersons(s.suspects, urlID), nil
}

func (s *MemStore) InsertVictim(_ context.Context, p *model.Victim) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertPerson("victim", s.victims, p)
}

func (s *MemStore) ListVictims(_ context.Context, urlID int64) ([]*model.Victim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return listPersons(s.victims, urlID), nil
}

func (s *MemStore) InsertSuspectForm(_ context.Context, f *model.SuspectForm) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suspects[f.SuspectID]; !ok {
		return 0, fmt.Errorf("insert suspect form: suspect %d does not exist", f.SuspectID)
	}
	if _, ok := s.suspectForms[f.SuspectID]; ok {
		return 0, fmt.Errorf("insert suspect form for %d: %w", f.SuspectID, ErrDuplicate)
	}
	stored := *f
	stored.ID = s.id()
	s.suspectForms[f.SuspectID] = &stored
	f.ID = stored.ID
	return stored.ID, nil
}

func (s *MemStore) GetSuspectForm(_ context.Context, suspectID int64) (*model.SuspectForm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.suspectForms[suspectID]
	if !ok {
		return nil, fmt.Errorf("suspect form for %d: %w", suspectID, ErrNotFound)
	}
	c := *f
	return &c, nil
}

func (s *MemStore) InsertVictimForm(_ context.Context, f *model.VictimForm) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.victims[f.VictimID]; !ok {
		return 0, fmt.Errorf("insert victim form: victim %d does not exist", f.VictimID)
	}
	if _, ok := s.victimForms[f.VictimID]; ok {
		return 0, fmt.Errorf("insert victim form for %d: %w", f.VictimID, ErrDuplicate)
	}
	stored := *f
	stored.ID = s.id()
	s.victimForms[f.VictimID] = &stored
	f.ID = stored.ID
	return stored.ID, nil
}

func (s *MemStore) GetVictimForm(_ context.Context, victimID int64) (*model.VictimForm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.victimForms[victimID]
	if !ok {
		return nil, fmt.Errorf("victim form for %d: %w", victimID, ErrNotFound)
	}
	c := *f
	return &c, nil
}

var (
	_ Store = (*MemStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
