package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_Counts(t *testing.T) {
	r := New()

	r.URL("incident_yes")
	r.URL("incident_yes")
	r.URL("inaccessible")
	r.Tier("article", "accepted")
	r.Query("incident_prompt", "ok")
	r.Retry("incident_prompt")
	r.Entity("suspect", "stored")
	r.LoadAttempt()

	if got := testutil.ToFloat64(r.urls.WithLabelValues("incident_yes")); got != 2 {
		t.Errorf("expected 2 incident_yes, got %v", got)
	}
	if got := testutil.ToFloat64(r.urls.WithLabelValues("inaccessible")); got != 1 {
		t.Errorf("expected 1 inaccessible, got %v", got)
	}
	if got := testutil.ToFloat64(r.loadTries); got != 1 {
		t.Errorf("expected 1 load attempt, got %v", got)
	}
}

func TestRecorder_NilSafe(t *testing.T) {
	var r *Recorder
	r.URL("x")
	r.Tier("a", "b")
	r.Query("a", "b")
	r.Retry("a")
	r.Entity("a", "b")
	r.LoadAttempt()
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New()
	r.URL("no_text")

	path := filepath.Join(t.TempDir(), "casefile.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(data), `casefile_urls_total{outcome="no_text"} 1`) {
		t.Errorf("unexpected textfile content:\n%s", data)
	}
}
