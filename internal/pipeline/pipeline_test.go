package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/casefile/internal/llm"
	"github.com/ppiankov/casefile/internal/logging"
	"github.com/ppiankov/casefile/internal/metrics"
	"github.com/ppiankov/casefile/internal/model"
	"github.com/ppiankov/casefile/internal/store"
)

type fakeLoader struct {
	unreachable map[string]bool
	unloadable  map[string]bool
	probes      []string
	loads       []string
}

func (l *fakeLoader) EnsureReachable(ctx context.Context, url string) bool {
	l.probes = append(l.probes, url)
	return !l.unreachable[url]
}

func (l *fakeLoader) Load(ctx context.Context, url string) bool {
	l.loads = append(l.loads, url)
	return !l.unloadable[url]
}

type fakeExtractor struct {
	texts map[string]string
	calls []string
}

func (e *fakeExtractor) ExtractMainText(ctx context.Context, url string) string {
	e.calls = append(e.calls, url)
	return e.texts[url]
}

type nopSession struct{}

func (nopSession) Chat(ctx context.Context, prompt string) (string, error) { return "", nil }

// fakeVerifier answers from fixed data and logs every call in order
type fakeVerifier struct {
	status      model.IncidentStatus
	evidence    []string
	suspects    []string
	victims     []string
	natural     map[string]bool
	suspectForm map[string]*model.SuspectForm
	victimForm  map[string]*model.VictimForm
	sessionErr  error

	calls []string
}

func (v *fakeVerifier) OpenSession(ctx context.Context, text string) (llm.Session, error) {
	v.calls = append(v.calls, "session")
	if v.sessionErr != nil {
		return nil, v.sessionErr
	}
	return nopSession{}, nil
}

func (v *fakeVerifier) VerifyIncident(ctx context.Context, s llm.Session) (model.IncidentStatus, []string) {
	v.calls = append(v.calls, "incident")
	return v.status, v.evidence
}

func (v *fakeVerifier) ExtractSuspects(ctx context.Context, s llm.Session) []string {
	v.calls = append(v.calls, "suspects")
	return v.suspects
}

func (v *fakeVerifier) ExtractVictims(ctx context.Context, s llm.Session) []string {
	v.calls = append(v.calls, "victims")
	return v.victims
}

func (v *fakeVerifier) ConfirmNaturalPerson(ctx context.Context, name string) bool {
	v.calls = append(v.calls, "confirm:"+name)
	return v.natural[name]
}

func (v *fakeVerifier) ExtractSuspectForm(ctx context.Context, s llm.Session, name string) *model.SuspectForm {
	v.calls = append(v.calls, "suspect_form:"+name)
	if f, ok := v.suspectForm[name]; ok {
		return f
	}
	return &model.SuspectForm{Name: name}
}

func (v *fakeVerifier) ExtractVictimForm(ctx context.Context, s llm.Session, name string) *model.VictimForm {
	v.calls = append(v.calls, "victim_form:"+name)
	if f, ok := v.victimForm[name]; ok {
		return f
	}
	return &model.VictimForm{Name: name}
}

func (v *fakeVerifier) Pause(ctx context.Context) error {
	v.calls = append(v.calls, "pause")
	return nil
}

func newTestPipeline(loader Loader, extractor Extractor, verifier Verifier, st store.Store) *Pipeline {
	p := New(loader, extractor, verifier, st, model.DefaultConfig(), logging.Discard(), metrics.New())
	p.SetPause(func(context.Context) error { return nil })
	return p
}

var articleText = strings.Repeat("Police raided a warehouse and rescued twelve workers. ", 10)

func strPtr(s string) *string { return &s }

func TestProcessURL_ScenarioA(t *testing.T) {
	const urlA = "https://www.news24.com/a"
	st := store.NewMemStore()
	verifier := &fakeVerifier{
		status:   model.IncidentYes,
		evidence: []string{"raid on warehouse"},
		suspects: []string{"John Doe"},
		natural:  map[string]bool{"John Doe": true},
		suspectForm: map[string]*model.SuspectForm{
			"John Doe": {Name: "John Doe", Role: strPtr("manager")},
		},
	}
	p := newTestPipeline(&fakeLoader{}, &fakeExtractor{texts: map[string]string{urlA: articleText[:500]}}, verifier, st)
	ctx := context.Background()

	res, err := p.ProcessURL(ctx, Job{URL: urlA})
	require.NoError(t, err)
	assert.Equal(t, StatePersisted, res.State)
	assert.Equal(t, OutcomeIncidentYes, res.Outcome)

	rec, err := st.GetURL(ctx, urlA)
	require.NoError(t, err)
	assert.Equal(t, model.AccessYes, rec.Accessible)
	assert.Equal(t, model.IncidentYes, rec.ActualIncident)
	assert.Equal(t, "news24", rec.DomainName)
	assert.Equal(t, model.SourceGoogleSearch, rec.Source)
	assert.Len(t, rec.Content, 500)

	incidents, err := st.ListIncidents(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.Equal(t, "raid on warehouse", incidents[0].Text)

	suspects, err := st.ListSuspects(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, suspects, 1)
	assert.Equal(t, "John Doe", suspects[0].Name)

	form, err := st.GetSuspectForm(ctx, suspects[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "manager", *form.Role)
	assert.Nil(t, form.Gender)

	assert.Equal(t, []string{
		"session", "incident", "suspects", "confirm:John Doe", "suspect_form:John Doe", "pause", "victims",
	}, verifier.calls)
}

func TestProcessURL_NegativeShortCircuit(t *testing.T) {
	const url = "https://example.com/down"
	tests := []struct {
		name    string
		loader  *fakeLoader
		texts   map[string]string
		outcome string
	}{
		{"unreachable", &fakeLoader{unreachable: map[string]bool{url: true}}, map[string]string{url: articleText}, OutcomeInaccessible},
		{"load failure", &fakeLoader{unloadable: map[string]bool{url: true}}, map[string]string{url: articleText}, OutcomeLoadFailed},
		{"no text", &fakeLoader{}, map[string]string{}, OutcomeNoText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemStore()
			extractor := &fakeExtractor{texts: tt.texts}
			verifier := &fakeVerifier{status: model.IncidentYes, evidence: []string{"x"}}
			p := newTestPipeline(tt.loader, extractor, verifier, st)
			ctx := context.Background()

			res, err := p.ProcessURL(ctx, Job{URL: url})
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, StatePersisted, res.State)

			rec, err := st.GetURL(ctx, url)
			require.NoError(t, err)
			assert.Equal(t, model.AccessNo, rec.Accessible)
			assert.Equal(t, model.IncidentUnknown, rec.ActualIncident)
			assert.Empty(t, rec.Content)

			incidents, _ := st.ListIncidents(ctx, rec.ID)
			suspects, _ := st.ListSuspects(ctx, rec.ID)
			victims, _ := st.ListVictims(ctx, rec.ID)
			assert.Empty(t, incidents)
			assert.Empty(t, suspects)
			assert.Empty(t, victims)
			assert.Empty(t, verifier.calls, "no model call for unusable url")
		})
	}

	t.Run("probe failure skips load", func(t *testing.T) {
		loader := &fakeLoader{unreachable: map[string]bool{url: true}}
		extractor := &fakeExtractor{}
		p := newTestPipeline(loader, extractor, &fakeVerifier{}, store.NewMemStore())

		_, err := p.ProcessURL(context.Background(), Job{URL: url})
		require.NoError(t, err)
		assert.Empty(t, loader.loads)
		assert.Empty(t, extractor.calls)
	})
}

func TestProcessURL_EntityGating(t *testing.T) {
	const url = "https://example.com/raid"
	st := store.NewMemStore()
	verifier := &fakeVerifier{
		status:   model.IncidentYes,
		suspects: []string{"Acme Logistics", "Thabo Mokoena"},
		victims:  []string{"The Victims", "Lerato"},
		natural:  map[string]bool{"Thabo Mokoena": true, "Lerato": true},
	}
	p := newTestPipeline(&fakeLoader{}, &fakeExtractor{texts: map[string]string{url: articleText}}, verifier, st)
	ctx := context.Background()

	res, err := p.ProcessURL(ctx, Job{URL: url})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Suspects)
	assert.Equal(t, 1, res.Victims)

	suspects, err := st.ListSuspects(ctx, res.Record.ID)
	require.NoError(t, err)
	require.Len(t, suspects, 1)
	assert.Equal(t, "Thabo Mokoena", suspects[0].Name)

	victims, err := st.ListVictims(ctx, res.Record.ID)
	require.NoError(t, err)
	require.Len(t, victims, 1)
	assert.Equal(t, "Lerato", victims[0].Name)

	assert.NotContains(t, verifier.calls, "suspect_form:Acme Logistics")
	assert.NotContains(t, verifier.calls, "victim_form:The Victims")
	assert.Contains(t, verifier.calls, "victim_form:Lerato")
}

func TestProcessURL_FormFailureDoesNotAbortSiblings(t *testing.T) {
	const url = "https://example.com/two"
	st := store.NewMemStore()
	verifier := &fakeVerifier{
		status:      model.IncidentYes,
		suspects:    []string{"First Person", "Second Person"},
		natural:     map[string]bool{"First Person": true, "Second Person": true},
		suspectForm: map[string]*model.SuspectForm{"First Person": nil},
	}
	p := newTestPipeline(&fakeLoader{}, &fakeExtractor{texts: map[string]string{url: articleText}}, verifier, st)
	ctx := context.Background()

	res, err := p.ProcessURL(ctx, Job{URL: url})
	require.NoError(t, err)

	suspects, err := st.ListSuspects(ctx, res.Record.ID)
	require.NoError(t, err)
	require.Len(t, suspects, 2)

	_, err = st.GetSuspectForm(ctx, suspects[0].ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetSuspectForm(ctx, suspects[1].ID)
	assert.NoError(t, err)
}

func TestProcessURL_NoIncidentSkipsEntities(t *testing.T) {
	for _, status := range []model.IncidentStatus{model.IncidentNo, model.IncidentUnresolved} {
		t.Run(status.String(), func(t *testing.T) {
			const url = "https://example.com/opinion"
			st := store.NewMemStore()
			verifier := &fakeVerifier{status: status, suspects: []string{"John Doe"}, natural: map[string]bool{"John Doe": true}}
			p := newTestPipeline(&fakeLoader{}, &fakeExtractor{texts: map[string]string{url: articleText}}, verifier, st)
			ctx := context.Background()

			res, err := p.ProcessURL(ctx, Job{URL: url})
			require.NoError(t, err)
			assert.Equal(t, StatePersisted, res.State)
			assert.Equal(t, []string{"session", "incident"}, verifier.calls)

			rec, err := st.GetURL(ctx, url)
			require.NoError(t, err)
			assert.Equal(t, status, rec.ActualIncident)
			assert.Equal(t, model.AccessYes, rec.Accessible)
			assert.NotEmpty(t, rec.Content)
		})
	}
}

func TestProcessURL_SessionFailureIsUnresolved(t *testing.T) {
	const url = "https://example.com/a"
	st := store.NewMemStore()
	verifier := &fakeVerifier{sessionErr: errors.New("no api key")}
	p := newTestPipeline(&fakeLoader{}, &fakeExtractor{texts: map[string]string{url: articleText}}, verifier, st)

	res, err := p.ProcessURL(context.Background(), Job{URL: url})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnresolved, res.Outcome)
	assert.Equal(t, model.IncidentUnresolved, res.Record.ActualIncident)
}

func TestRun_Idempotent(t *testing.T) {
	st := store.NewMemStore()
	texts := map[string]string{
		"https://example.com/1": articleText,
		"https://example.com/2": articleText,
	}
	candidates := []string{"https://example.com/1", "https://example.com/2", " https://example.com/1 ", "https://example.com/3"}
	ctx := context.Background()

	first := newTestPipeline(&fakeLoader{}, &fakeExtractor{texts: texts}, &fakeVerifier{status: model.IncidentNo}, st)
	summary, err := first.Run(ctx, candidates)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 2, summary.Outcomes[OutcomeIncidentNo])
	assert.Equal(t, 1, summary.Outcomes[OutcomeNoText])

	loader := &fakeLoader{}
	second := newTestPipeline(loader, &fakeExtractor{texts: texts}, &fakeVerifier{status: model.IncidentNo}, st)
	summary, err = second.Run(ctx, candidates)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)
	assert.Empty(t, loader.probes)

	records, err := st.SearchURLs(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestRun_RequeuesUnresolved(t *testing.T) {
	const url = "https://example.com/flaky"
	st := store.NewMemStore()
	ctx := context.Background()

	first := newTestPipeline(&fakeLoader{}, &fakeExtractor{texts: map[string]string{url: articleText}},
		&fakeVerifier{status: model.IncidentUnresolved}, st)
	_, err := first.Run(ctx, []string{url})
	require.NoError(t, err)

	loader := &fakeLoader{}
	verifier := &fakeVerifier{status: model.IncidentYes, evidence: []string{"trafficking ring"}}
	second := newTestPipeline(loader, &fakeExtractor{}, verifier, st)
	summary, err := second.Run(ctx, []string{url})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Requeued)
	assert.Empty(t, loader.probes, "stored content is verified again without reloading")

	records, err := st.SearchURLs(ctx, 100)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.IncidentYes, records[0].ActualIncident)

	incidents, err := st.ListIncidents(ctx, records[0].ID)
	require.NoError(t, err)
	assert.Len(t, incidents, 1)
}

func TestRun_RequeueDisabled(t *testing.T) {
	const url = "https://example.com/flaky"
	st := store.NewMemStore()
	ctx := context.Background()

	rec := model.NewURLRecord(url, model.SourceGoogleSearch)
	rec.Content, rec.Accessible, rec.ActualIncident = articleText, model.AccessYes, model.IncidentUnresolved
	_, err := st.InsertURL(ctx, rec)
	require.NoError(t, err)

	cfg := model.DefaultConfig()
	cfg.Pipeline.RetryUnresolved = false
	p := New(&fakeLoader{}, &fakeExtractor{}, &fakeVerifier{}, st, cfg, logging.Discard(), nil)
	jobs, err := p.Plan(ctx, []string{url})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestRun_StopsWhenCanceled(t *testing.T) {
	st := store.NewMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	texts := map[string]string{"https://example.com/1": articleText, "https://example.com/2": articleText}

	p := newTestPipeline(&fakeLoader{}, &fakeExtractor{texts: texts}, &fakeVerifier{status: model.IncidentNo}, st)
	p.SetPause(func(context.Context) error {
		cancel()
		return nil
	})

	summary, err := p.Run(ctx, []string{"https://example.com/1", "https://example.com/2"})
	require.NoError(t, err)
	assert.True(t, summary.Interrupted)
	assert.Equal(t, 1, summary.Processed)
}

func TestRun_CancelDuringProbeWritesNothing(t *testing.T) {
	const url = "https://www.news24.com/raid"
	st := store.NewMemStore()
	ctx, cancel := context.WithCancel(context.Background())

	probe := func(ctx context.Context, url string) (string, error) {
		cancel()
		return "", ctx.Err()
	}
	driver, _ := newTestDriver(&scriptedNavigator{}, probe)
	verifier := &fakeVerifier{status: model.IncidentYes}
	p := newTestPipeline(driver, &fakeExtractor{texts: map[string]string{url: articleText}}, verifier, st)

	summary, err := p.Run(ctx, []string{url})
	require.NoError(t, err)
	assert.True(t, summary.Interrupted)
	assert.Equal(t, 0, summary.Processed)
	assert.Empty(t, verifier.calls)

	_, err = st.GetURL(context.Background(), url)
	assert.ErrorIs(t, err, store.ErrNotFound)

	jobs, err := p.Plan(context.Background(), []string{url})
	require.NoError(t, err)
	require.Len(t, jobs, 1, "abandoned url is planned again")
	assert.Equal(t, url, jobs[0].URL)
}

// cancelingLoader cancels the run during the given step and then fails it
type cancelingLoader struct {
	cancel context.CancelFunc
	onLoad bool
}

func (l *cancelingLoader) EnsureReachable(ctx context.Context, url string) bool {
	if !l.onLoad {
		l.cancel()
		return false
	}
	return true
}

func (l *cancelingLoader) Load(ctx context.Context, url string) bool {
	l.cancel()
	return false
}

type cancelingExtractor struct {
	cancel context.CancelFunc
}

func (e *cancelingExtractor) ExtractMainText(ctx context.Context, url string) string {
	e.cancel()
	return ""
}

func TestProcessURL_CancelBeforeVerificationIsNotPersisted(t *testing.T) {
	const url = "https://example.com/slow"
	tests := []struct {
		name  string
		build func(cancel context.CancelFunc) (Loader, Extractor)
		state State
	}{
		{"during probe", func(cancel context.CancelFunc) (Loader, Extractor) {
			return &cancelingLoader{cancel: cancel}, &fakeExtractor{}
		}, StateNew},
		{"during load", func(cancel context.CancelFunc) (Loader, Extractor) {
			return &cancelingLoader{cancel: cancel, onLoad: true}, &fakeExtractor{}
		}, StateProbed},
		{"during extraction", func(cancel context.CancelFunc) (Loader, Extractor) {
			return &fakeLoader{}, &cancelingExtractor{cancel: cancel}
		}, StateLoaded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemStore()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			loader, extractor := tt.build(cancel)
			p := newTestPipeline(loader, extractor, &fakeVerifier{}, st)

			res, err := p.ProcessURL(ctx, Job{URL: url})
			require.NoError(t, err)
			assert.Equal(t, OutcomeCanceled, res.Outcome)
			assert.Equal(t, tt.state, res.State)
			assert.Nil(t, res.Record)

			_, err = st.GetURL(context.Background(), url)
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	}

	t.Run("requeued record keeps its state", func(t *testing.T) {
		st := store.NewMemStore()
		ctx := context.Background()
		existing := model.NewURLRecord(url, model.SourceGoogleSearch)
		existing.ActualIncident = model.IncidentUnresolved
		id, err := st.InsertURL(ctx, existing)
		require.NoError(t, err)
		existing.ID = id

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		p := newTestPipeline(&cancelingLoader{cancel: cancel}, &fakeExtractor{}, &fakeVerifier{}, st)

		res, err := p.ProcessURL(runCtx, Job{URL: url, Existing: existing})
		require.NoError(t, err)
		assert.Equal(t, OutcomeCanceled, res.Outcome)

		stored, err := st.GetURL(ctx, url)
		require.NoError(t, err)
		assert.Equal(t, model.IncidentUnresolved, stored.ActualIncident)
		assert.True(t, stored.NeedsVerification())
	})
}

// failingStore fails every insert with a non-duplicate error
type failingStore struct {
	*store.MemStore
}

func (failingStore) InsertURL(ctx context.Context, rec *model.URLRecord) (int64, error) {
	return 0, errors.New("disk I/O error")
}

func TestRun_StoreFailureIsFatal(t *testing.T) {
	st := failingStore{store.NewMemStore()}
	p := newTestPipeline(&fakeLoader{unreachable: map[string]bool{"https://example.com/1": true}},
		&fakeExtractor{}, &fakeVerifier{}, st)

	summary, err := p.Run(context.Background(), []string{"https://example.com/1", "https://example.com/2"})
	require.Error(t, err)
	assert.Equal(t, 0, summary.Processed)
}
