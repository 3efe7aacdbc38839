package discover

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/option"

	"github.com/ppiankov/casefile/internal/logging"
	"github.com/ppiankov/casefile/internal/model"
)

func TestBuildQuery(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)

	q := BuildQuery(QueryOptions{ExcludedDomains: []string{"facebook.com", " "}, From: from, To: to})

	for _, want := range []string{
		`("human trafficking" OR "cyber trafficking"`,
		`(arrest OR suspect OR victim`,
		`("news" OR "article")`,
		`"South Africa"`,
		"-site:facebook.com",
		"after:2024-03-01",
		"before:2024-03-08",
	} {
		if !strings.Contains(q, want) {
			t.Errorf("Expected %q in query %q", want, q)
		}
	}
	if strings.Count(q, "-site:") != 1 {
		t.Errorf("Expected blank exclusions to be skipped: %q", q)
	}

	termsOnly := BuildQuery(QueryOptions{From: from, To: to, TermsOnly: true})
	if strings.Contains(termsOnly, "arrest") || strings.Contains(termsOnly, "South Africa") {
		t.Errorf("Expected trafficking terms only, got %q", termsOnly)
	}
}

func TestExcluded(t *testing.T) {
	excluded := []string{"facebook.com", "YouTube.com"}
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.news24.com/story", false},
		{"https://m.facebook.com/post/1", true},
		{"https://www.youtube.com/watch?v=x", true},
		{"not a url", true},
	}
	for _, tt := range tests {
		if got := Excluded(tt.url, excluded); got != tt.want {
			t.Errorf("Excluded(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

type pagedSearcher struct {
	pages  [][]string
	err    error
	starts []int
}

func (s *pagedSearcher) Search(ctx context.Context, query string, start, num int) ([]string, error) {
	s.starts = append(s.starts, start)
	if s.err != nil {
		return nil, s.err
	}
	page := (start - 1) / num
	if page >= len(s.pages) {
		return nil, nil
	}
	return s.pages[page], nil
}

func links(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + string(rune('a'+i))
	}
	return out
}

func newTestCollector(s Searcher) (*Collector, *int) {
	c := NewCollector(s, time.Second, logging.Discard())
	sleeps := 0
	c.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return nil
	}
	return c, &sleeps
}

func TestCollector_Paginates(t *testing.T) {
	s := &pagedSearcher{pages: [][]string{links("https://a.com/", 10), links("https://b.com/", 10), links("https://c.com/", 10)}}
	c, sleeps := newTestCollector(s)

	got := c.Collect(context.Background(), "q", 25)
	if len(got) != 25 {
		t.Fatalf("Expected 25 links, got %d", len(got))
	}
	if want := []int{1, 11, 21}; len(s.starts) != 3 || s.starts[1] != want[1] || s.starts[2] != want[2] {
		t.Errorf("Expected starts %v, got %v", want, s.starts)
	}
	if *sleeps != 3 {
		t.Errorf("Expected a pause after each page, got %d", *sleeps)
	}
}

func TestCollector_StopsOnEmptyPage(t *testing.T) {
	s := &pagedSearcher{pages: [][]string{links("https://a.com/", 10)}}
	c, _ := newTestCollector(s)

	got := c.Collect(context.Background(), "q", 200)
	if len(got) != 10 {
		t.Errorf("Expected 10 links, got %d", len(got))
	}
	if len(s.starts) != 2 {
		t.Errorf("Expected to stop after the first empty page, got %d requests", len(s.starts))
	}
}

func TestCollector_StopsOnError(t *testing.T) {
	s := &pagedSearcher{err: errors.New("quota exceeded")}
	c, _ := newTestCollector(s)

	if got := c.Collect(context.Background(), "q", 30); len(got) != 0 {
		t.Errorf("Expected no links, got %v", got)
	}
	if len(s.starts) != 1 {
		t.Errorf("Expected a single request, got %d", len(s.starts))
	}
}

func TestGoogleSearcher(t *testing.T) {
	var gotQuery, gotCx, gotStart, gotNum string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/customsearch/v1") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		v := r.URL.Query()
		gotQuery, gotCx, gotStart, gotNum = v.Get("q"), v.Get("cx"), v.Get("start"), v.Get("num")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{
				{"link": "https://www.news24.com/one", "title": "One"},
				{"link": "", "title": "No link"},
				{"link": "https://www.iol.co.za/two", "title": "Two"},
			},
		})
	}))
	defer server.Close()

	s, err := NewGoogleSearcher(context.Background(), "test-key", "engine-1",
		option.WithEndpoint(server.URL+"/"), option.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewGoogleSearcher failed: %v", err)
	}

	got, err := s.Search(context.Background(), `"human trafficking"`, 11, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 2 || got[0] != "https://www.news24.com/one" || got[1] != "https://www.iol.co.za/two" {
		t.Errorf("Unexpected links %v", got)
	}
	if gotQuery != `"human trafficking"` || gotCx != "engine-1" || gotStart != "11" || gotNum != "10" {
		t.Errorf("Unexpected request q=%q cx=%q start=%q num=%q", gotQuery, gotCx, gotStart, gotNum)
	}
}

func TestGoogleSearcher_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"code": 403, "message": "daily limit exceeded"}}`))
	}))
	defer server.Close()

	s, err := NewGoogleSearcher(context.Background(), "test-key", "engine-1",
		option.WithEndpoint(server.URL+"/"), option.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewGoogleSearcher failed: %v", err)
	}
	_, err = s.Search(context.Background(), "q", 1, 10)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("Expected 403 error, got %v", err)
	}
}

func TestNewGoogleSearcher_RequiresCredentials(t *testing.T) {
	if _, err := NewGoogleSearcher(context.Background(), "", "engine"); err == nil {
		t.Error("Expected error without api key")
	}
	if _, err := NewGoogleSearcher(context.Background(), "key", ""); err == nil {
		t.Error("Expected error without engine id")
	}
}

func TestWriteAndReadCandidates(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 8, 14, 30, 5, 0, time.UTC)

	oldPath, err := WriteCSV(dir, "old", []string{"https://a.com/1", "https://a.com/2"}, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	newPath, err := WriteCSV(dir, "new", []string{"https://a.com/2", "https://b.com/3"}, now)
	if err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if filepath.Base(newPath) != "saved_urls_new_20240308_143005.csv" {
		t.Errorf("Unexpected file name %s", filepath.Base(newPath))
	}

	// Make modification order explicit
	_ = os.Chtimes(oldPath, now.Add(-time.Hour), now.Add(-time.Hour))
	_ = os.Chtimes(newPath, now, now)

	data, err := os.ReadFile(newPath)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "url,domain_name,source\nhttps://a.com/2,a,"+model.SourceGoogleMiner+"\n") {
		t.Errorf("Unexpected csv content:\n%s", data)
	}

	all, err := ReadCandidates(dir, 4, 1000)
	if err != nil {
		t.Fatalf("ReadCandidates failed: %v", err)
	}
	if strings.Join(all, ",") != "https://a.com/2,https://b.com/3,https://a.com/1" {
		t.Errorf("Unexpected candidates %v", all)
	}

	newest, _ := ReadCandidates(dir, 1, 1000)
	if len(newest) != 2 {
		t.Errorf("Expected only the newest file, got %v", newest)
	}

	capped, _ := ReadCandidates(dir, 4, 1)
	if len(capped) != 1 {
		t.Errorf("Expected cap of 1, got %v", capped)
	}
}

func TestReadCandidates_MissingDir(t *testing.T) {
	got, err := ReadCandidates(filepath.Join(t.TempDir(), "nope"), 4, 10)
	if err != nil || len(got) != 0 {
		t.Errorf("Expected empty result for missing dir, got %v, %v", got, err)
	}
}

func TestRunner_Run(t *testing.T) {
	dir := t.TempDir()
	s := &pagedSearcher{pages: [][]string{{"https://www.news24.com/a", "https://m.facebook.com/b"}}}
	cfg := model.DefaultConfig().Search
	r := NewRunner(s, cfg, dir, logging.Discard())
	r.collector.sleep = func(context.Context, time.Duration) error { return nil }
	r.now = func() time.Time { return time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC) }

	report, err := r.Run(context.Background(), model.SearchRun{ID: "za", ExcludedDomains: []string{"facebook.com"}}, 3)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Found != 2 || report.Kept != 1 {
		t.Errorf("Expected 2 found and 1 kept, got %+v", report)
	}
	if !strings.Contains(report.Query, "after:2024-03-05") {
		t.Errorf("Expected 3 days back in query, got %q", report.Query)
	}
	if report.Path == "" {
		t.Fatal("Expected csv path")
	}

	got, err := ReadCandidates(dir, 4, 10)
	if err != nil || len(got) != 1 || got[0] != "https://www.news24.com/a" {
		t.Errorf("Unexpected exported candidates %v, %v", got, err)
	}
}
