package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zen-systems/switchboard/pkg/backend"
	"github.com/zen-systems/switchboard/pkg/config"
)

// scriptedClient is a Client whose outcome is fixed up front. It records
// every prompt it receives.
type scriptedClient struct {
	name  string
	raw   any
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls []string
}

func (c *scriptedClient) Name() string { return c.name }

func (c *scriptedClient) Process(ctx context.Context, text string) (any, error) {
	c.mu.Lock()
	c.calls = append(c.calls, text)
	c.mu.Unlock()

	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.raw, nil
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *scriptedClient) call(i int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.calls) {
		return ""
	}
	return c.calls[i]
}

// panickyClient blows up on every call.
type panickyClient struct{}

func (panickyClient) Name() string { return "panicky" }

func (panickyClient) Process(context.Context, string) (any, error) {
	panic("wiring bug")
}

func scriptedRegistry(t *testing.T, clients ...*scriptedClient) *backend.Registry {
	t.Helper()
	reg := backend.NewRegistry()
	for _, c := range clients {
		if err := reg.Register(c.name, c); err != nil {
			t.Fatalf("Register(%s) = %v", c.name, err)
		}
	}
	return reg
}

func TestRouteRequestSuccess(t *testing.T) {
	general := &scriptedClient{name: "general", raw: "general answer"}
	code := &scriptedClient{name: "code", raw: "code answer"}
	creative := &scriptedClient{name: "creative", raw: "creative answer"}

	reg := backend.NewRegistry()
	if err := reg.Register("general", general, "explain", "summarize"); err != nil {
		t.Fatalf("Register() = %v", err)
	}
	if err := reg.Register("code", code, "code", "function", "debug"); err != nil {
		t.Fatalf("Register() = %v", err)
	}
	if err := reg.Register("creative", creative, "story", "poem"); err != nil {
		t.Fatalf("Register() = %v", err)
	}

	r := New(reg, poolRouting())
	resp, report := r.RouteRequestWithReport(context.Background(), Request{Text: "Can you debug this function for me?"})

	if resp.Content != "code answer" {
		t.Errorf("Content = %q, want %q", resp.Content, "code answer")
	}
	if resp.Model != "code" {
		t.Errorf("Model = %q, want %q", resp.Model, "code")
	}
	if resp.FallbackFrom != "" {
		t.Errorf("FallbackFrom = %q, want empty", resp.FallbackFrom)
	}
	if resp.Enhanced {
		t.Error("Enhanced = true, want false")
	}
	if resp.Error != "" {
		t.Errorf("Error = %q, want empty", resp.Error)
	}

	wantCandidates := []string{"code", "general", "creative"}
	if len(report.Decision.Candidates) != 3 {
		t.Fatalf("candidates = %v, want %v", report.Decision.Candidates, wantCandidates)
	}
	for i, name := range wantCandidates {
		if report.Decision.Candidates[i] != name {
			t.Errorf("candidates[%d] = %q, want %q", i, report.Decision.Candidates[i], name)
		}
	}
	if len(report.Attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(report.Attempts))
	}
	if report.Attempts[0].Backend != "code" || report.Attempts[0].Status != StatusSuccess {
		t.Errorf("attempt = %+v, want code success", report.Attempts[0])
	}
	if report.RequestID == "" {
		t.Error("RequestID is empty")
	}

	// First success short-circuits the cascade.
	if general.callCount() != 0 || creative.callCount() != 0 {
		t.Errorf("fallback calls = %d/%d, want 0/0", general.callCount(), creative.callCount())
	}
	if got := r.LastUsed(); got != "code" {
		t.Errorf("LastUsed() = %q, want %q", got, "code")
	}
}

func TestRouteRequestFallsBackOnTimeout(t *testing.T) {
	general := &scriptedClient{name: "general", raw: "slow answer", delay: 500 * time.Millisecond}
	code := &scriptedClient{name: "code", raw: "rescue answer"}
	creative := &scriptedClient{name: "creative", raw: "unused"}

	reg := scriptedRegistry(t, general, code, creative)
	r := New(reg, poolRouting(), WithTimeout(30*time.Millisecond))
	r.setLastUsed("general")

	resp, report := r.RouteRequestWithReport(context.Background(), Request{Text: "hello there"})

	if resp.Model != "code" {
		t.Errorf("Model = %q, want %q", resp.Model, "code")
	}
	if resp.Content != "rescue answer" {
		t.Errorf("Content = %q, want %q", resp.Content, "rescue answer")
	}
	if resp.FallbackFrom != "general" {
		t.Errorf("FallbackFrom = %q, want %q", resp.FallbackFrom, "general")
	}

	if len(report.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(report.Attempts))
	}
	if report.Attempts[0].Status != StatusTimeout {
		t.Errorf("attempt[0].Status = %v, want %v", report.Attempts[0].Status, StatusTimeout)
	}
	if !strings.Contains(report.Attempts[0].Error, "deadline") {
		t.Errorf("attempt[0].Error = %q, want deadline error", report.Attempts[0].Error)
	}
	if report.Attempts[1].Status != StatusSuccess {
		t.Errorf("attempt[1].Status = %v, want %v", report.Attempts[1].Status, StatusSuccess)
	}

	if got := r.failures.Count("general"); got != 1 {
		t.Errorf("failures(general) = %v, want 1", got)
	}
	if got := r.failures.Count("code"); got != 0 {
		t.Errorf("failures(code) = %v, want 0", got)
	}
	if creative.callCount() != 0 {
		t.Errorf("creative calls = %d, want 0", creative.callCount())
	}
	if got := r.LastUsed(); got != "code" {
		t.Errorf("LastUsed() = %q, want %q", got, "code")
	}
}

func TestRouteRequestClientReportedDeadline(t *testing.T) {
	// A client surfacing the context error itself still counts as a
	// timeout, not a generic failure.
	slow := &scriptedClient{name: "slow", err: fmt.Errorf("upstream: %w", context.DeadlineExceeded)}
	ok := &scriptedClient{name: "ok", raw: "fine"}

	r := New(scriptedRegistry(t, slow, ok), &config.Routing{Default: "slow"})
	_, report := r.RouteRequestWithReport(context.Background(), Request{Text: "hello"})

	if len(report.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(report.Attempts))
	}
	if report.Attempts[0].Status != StatusTimeout {
		t.Errorf("attempt[0].Status = %v, want %v", report.Attempts[0].Status, StatusTimeout)
	}
}

func TestRouteRequestNoBackends(t *testing.T) {
	r := New(backend.NewRegistry(), poolRouting())
	resp, report := r.RouteRequestWithReport(context.Background(), Request{Text: "hello"})

	if resp.Model != "system" {
		t.Errorf("Model = %q, want %q", resp.Model, "system")
	}
	if resp.Error != "no backends enabled" {
		t.Errorf("Error = %q, want %q", resp.Error, "no backends enabled")
	}
	if resp.Content == "" {
		t.Error("Content is empty, want explanatory text")
	}
	if len(report.Attempts) != 0 {
		t.Errorf("attempts = %d, want 0", len(report.Attempts))
	}
}

func TestRouteRequestAllDisabled(t *testing.T) {
	c := &scriptedClient{name: "general", raw: "never"}
	reg := scriptedRegistry(t, c)
	if err := reg.SetEnabled("general", false); err != nil {
		t.Fatalf("SetEnabled() = %v", err)
	}

	r := New(reg, poolRouting())
	resp := r.RouteRequest(context.Background(), Request{Text: "hello"})

	if resp.Error != "no backends enabled" {
		t.Errorf("Error = %q, want %q", resp.Error, "no backends enabled")
	}
	if c.callCount() != 0 {
		t.Errorf("calls = %d, want 0", c.callCount())
	}
}

func TestRouteRequestExhaustsAllBackends(t *testing.T) {
	general := &scriptedClient{name: "general", err: errors.New("quota exceeded")}
	code := &scriptedClient{name: "code", err: errors.New("connection refused")}
	creative := &scriptedClient{name: "creative", err: errors.New("internal error")}

	r := New(scriptedRegistry(t, general, code, creative), poolRouting())
	resp, report := r.RouteRequestWithReport(context.Background(), Request{Text: "hello"})

	if resp.Model != "system" {
		t.Errorf("Model = %q, want %q", resp.Model, "system")
	}
	if resp.Error != "all backends failed" {
		t.Errorf("Error = %q, want %q", resp.Error, "all backends failed")
	}
	if resp.Content == "" {
		t.Error("Content is empty, want explanatory text")
	}

	if len(report.Attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(report.Attempts))
	}
	for i, want := range []string{"general", "code", "creative"} {
		if report.Attempts[i].Backend != want {
			t.Errorf("attempt[%d].Backend = %q, want %q", i, report.Attempts[i].Backend, want)
		}
		if report.Attempts[i].Status != StatusFailure {
			t.Errorf("attempt[%d].Status = %v, want %v", i, report.Attempts[i].Status, StatusFailure)
		}
	}

	// Each backend is tried exactly once per request.
	for _, c := range []*scriptedClient{general, code, creative} {
		if c.callCount() != 1 {
			t.Errorf("%s calls = %d, want 1", c.name, c.callCount())
		}
		if got := r.failures.Count(c.name); got != 1 {
			t.Errorf("failures(%s) = %v, want 1", c.name, got)
		}
	}
	if got := r.LastUsed(); got != "" {
		t.Errorf("LastUsed() = %q, want empty after total failure", got)
	}
}

func TestRouteRequestBoundedByDeadlines(t *testing.T) {
	// Three backends that would each hang for a second; per-attempt
	// deadlines keep the whole request far below the sum of the hangs.
	slow := func(name string) *scriptedClient {
		return &scriptedClient{name: name, raw: "late", delay: time.Second}
	}

	reg := scriptedRegistry(t, slow("general"), slow("code"), slow("creative"))
	r := New(reg, poolRouting(), WithTimeout(30*time.Millisecond))

	start := time.Now()
	resp, report := r.RouteRequestWithReport(context.Background(), Request{Text: "hello"})
	elapsed := time.Since(start)

	if resp.Error != "all backends failed" {
		t.Errorf("Error = %q, want %q", resp.Error, "all backends failed")
	}
	if len(report.Attempts) != 3 {
		t.Errorf("attempts = %d, want 3", len(report.Attempts))
	}
	for i, a := range report.Attempts {
		if a.Status != StatusTimeout {
			t.Errorf("attempt[%d].Status = %v, want %v", i, a.Status, StatusTimeout)
		}
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("elapsed = %v, want well under the sum of backend hangs", elapsed)
	}
}

func TestRouteRequestContainsPanic(t *testing.T) {
	reg := backend.NewRegistry()
	if err := reg.Register("flaky", panickyClient{}); err != nil {
		t.Fatalf("Register() = %v", err)
	}
	rescue := &scriptedClient{name: "rescue", raw: "saved"}
	if err := reg.Register("rescue", rescue); err != nil {
		t.Fatalf("Register() = %v", err)
	}

	r := New(reg, &config.Routing{Default: "flaky"})
	resp, report := r.RouteRequestWithReport(context.Background(), Request{Text: "hello"})

	if resp.Model != "rescue" {
		t.Errorf("Model = %q, want %q", resp.Model, "rescue")
	}
	if resp.FallbackFrom != "flaky" {
		t.Errorf("FallbackFrom = %q, want %q", resp.FallbackFrom, "flaky")
	}
	if len(report.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(report.Attempts))
	}
	if report.Attempts[0].Status != StatusFailure {
		t.Errorf("attempt[0].Status = %v, want %v", report.Attempts[0].Status, StatusFailure)
	}
	if !strings.Contains(report.Attempts[0].Error, "backend panic") {
		t.Errorf("attempt[0].Error = %q, want panic report", report.Attempts[0].Error)
	}
}

func TestRouteRequestSuccessResetsFailures(t *testing.T) {
	general := &scriptedClient{name: "general", raw: "ok"}
	r := New(scriptedRegistry(t, general), poolRouting())

	r.failures.MarkFailure("general")
	r.failures.MarkFailure("general")

	resp := r.RouteRequest(context.Background(), Request{Text: "hello"})
	if resp.Model != "general" {
		t.Fatalf("Model = %q, want %q", resp.Model, "general")
	}
	if got := r.failures.Count("general"); got != 0 {
		t.Errorf("failures(general) = %v, want 0 after success", got)
	}
}

func TestRouteRequestConcurrent(t *testing.T) {
	general := &scriptedClient{name: "general", raw: "a"}
	code := &scriptedClient{name: "code", raw: "b"}

	r := New(scriptedRegistry(t, general, code), poolRouting())

	const requests = 16
	var wg sync.WaitGroup
	results := make([]Response, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.RouteRequest(context.Background(), Request{Text: fmt.Sprintf("hello %d", i)})
		}(i)
	}
	wg.Wait()

	for i, resp := range results {
		if resp.Model == "system" || resp.Error != "" {
			t.Errorf("request %d: response = %+v, want success", i, resp)
		}
	}
}

func TestNewAppliesRoutingTimeout(t *testing.T) {
	reg := backend.NewRegistry()

	r := New(reg, &config.Routing{AttemptTimeoutMs: 1200})
	if r.timeout != 1200*time.Millisecond {
		t.Errorf("timeout = %v, want %v", r.timeout, 1200*time.Millisecond)
	}
	if r.enhancer.timeout != 400*time.Millisecond {
		t.Errorf("enhancer timeout = %v, want %v", r.enhancer.timeout, 400*time.Millisecond)
	}

	r = New(reg, nil)
	if r.timeout != DefaultAttemptTimeout {
		t.Errorf("timeout = %v, want %v", r.timeout, DefaultAttemptTimeout)
	}

	r = New(reg, nil, WithTimeout(5*time.Second))
	if r.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want %v", r.timeout, 5*time.Second)
	}
}
