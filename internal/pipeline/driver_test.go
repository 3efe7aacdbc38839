package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ppiankov/casefile/internal/browser"
	"github.com/ppiankov/casefile/internal/logging"
	"github.com/ppiankov/casefile/internal/metrics"
	"github.com/ppiankov/casefile/internal/model"
)

// scriptedNavigator returns errs in order, then nil
type scriptedNavigator struct {
	errs  []error
	calls int
}

func (n *scriptedNavigator) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	n.calls++
	if len(n.errs) == 0 {
		return nil
	}
	err := n.errs[0]
	n.errs = n.errs[1:]
	return err
}

func newTestDriver(nav Navigator, probe ProbeFunc) (*Driver, *[]time.Duration) {
	d := NewDriver(nav, probe, model.DefaultConfig(), nil, logging.Discard(), metrics.New())
	var sleeps []time.Duration
	d.sleep = func(ctx context.Context, delay time.Duration) error {
		sleeps = append(sleeps, delay)
		return nil
	}
	return d, &sleeps
}

var errNavTimeout = fmt.Errorf("%w: context deadline exceeded", browser.ErrTimeout)

func TestDriver_Load(t *testing.T) {
	tests := []struct {
		name       string
		errs       []error
		want       bool
		wantCalls  int
		wantSleeps int
	}{
		{"first try", nil, true, 1, 0},
		{"timeout then success", []error{errNavTimeout}, true, 2, 1},
		{"two timeouts then success", []error{errNavTimeout, errNavTimeout}, true, 3, 2},
		{"timeouts exhausted", []error{errNavTimeout, errNavTimeout, errNavTimeout, nil}, false, 3, 2},
		{"driver fault aborts", []error{fmt.Errorf("%w: tab crashed", browser.ErrDriver)}, false, 1, 0},
		{"unknown error aborts", []error{errors.New("boom")}, false, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav := &scriptedNavigator{errs: tt.errs}
			d, sleeps := newTestDriver(nav, nil)

			if got := d.Load(context.Background(), "https://example.com/a"); got != tt.want {
				t.Errorf("Load() = %v, want %v", got, tt.want)
			}
			if nav.calls != tt.wantCalls {
				t.Errorf("Expected %d navigations, got %d", tt.wantCalls, nav.calls)
			}
			if len(*sleeps) != tt.wantSleeps {
				t.Errorf("Expected %d sleeps, got %d", tt.wantSleeps, len(*sleeps))
			}
			for _, s := range *sleeps {
				if s != 5*time.Second {
					t.Errorf("Expected 5s retry delay, got %v", s)
				}
			}
		})
	}
}

func TestDriver_LoadCanceledDuringDelay(t *testing.T) {
	nav := &scriptedNavigator{errs: []error{errNavTimeout, errNavTimeout}}
	d, _ := newTestDriver(nav, nil)
	d.sleep = func(ctx context.Context, delay time.Duration) error { return context.Canceled }

	if d.Load(context.Background(), "https://example.com/a") {
		t.Error("Expected Load to fail when the retry delay is interrupted")
	}
	if nav.calls != 1 {
		t.Errorf("Expected 1 navigation, got %d", nav.calls)
	}
}

func TestDriver_EnsureReachable(t *testing.T) {
	tests := []struct {
		name  string
		title string
		err   error
		want  bool
	}{
		{"titled page", "Two arrested - News24", nil, true},
		{"empty title", "   ", nil, false},
		{"probe error", "", browser.ErrTimeout, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			probe := func(ctx context.Context, url string) (string, error) {
				calls++
				if _, ok := ctx.Deadline(); !ok {
					t.Error("Expected probe context with deadline")
				}
				return tt.title, tt.err
			}
			d, _ := newTestDriver(&scriptedNavigator{}, probe)

			if got := d.EnsureReachable(context.Background(), "https://example.com/a"); got != tt.want {
				t.Errorf("EnsureReachable() = %v, want %v", got, tt.want)
			}
			if calls != 1 {
				t.Errorf("Expected a single probe, got %d", calls)
			}
		})
	}
}
