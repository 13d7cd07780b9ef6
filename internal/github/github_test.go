package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/neox5/ghexporter/internal/clock"
	"github.com/neox5/ghexporter/internal/metric"
	"github.com/neox5/ghexporter/internal/ratelimit"
	"github.com/neox5/ghexporter/internal/target"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func testLogger(t *testing.T) *slog.Logger {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	t.Cleanup(func() {
		if t.Failed() {
			t.Log(buf.String())
		}
	})
	return logger
}

// fakeGitHub serves canned responses per request URI and counts hits.
type fakeGitHub struct {
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	hits     map[string]int
}

func newFakeGitHub(t *testing.T) (*fakeGitHub, *httptest.Server) {
	t.Helper()
	f := &fakeGitHub{handlers: map[string]http.HandlerFunc{}, hits: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.URL.RequestURI()]++
		h, ok := f.handlers[r.URL.RequestURI()]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Not Found"}`)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeGitHub) handle(uri string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[uri] = h
}

func (f *fakeGitHub) json(uri, body string) {
	f.handle(uri, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	})
}

func (f *fakeGitHub) count(uri string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[uri]
}

func newTestClient(t *testing.T, srv *httptest.Server, clk clock.Clock, budget *ratelimit.Tracker) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL: srv.URL,
		Token:   "test-token",
		Timeout: time.Second,
		Retry:   RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		Budget:  budget,
		Clock:   clk,
		Logger:  testLogger(t),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

var helloWorld = target.Repository("octocat", "Hello-World")

const (
	repoURI      = "/repos/octocat/Hello-World"
	pullsURI     = "/repos/octocat/Hello-World/pulls?state=open&per_page=1"
	workflowsURI = "/repos/octocat/Hello-World/actions/workflows?per_page=100"
	runsURI      = "/repos/octocat/Hello-World/actions/workflows/7/runs?per_page=1"
	timingURI    = "/repos/octocat/Hello-World/actions/workflows/7/timing"
)

func serveHelloWorld(f *fakeGitHub) {
	f.json(repoURI, `{"stargazers_count":42,"forks_count":5,"subscribers_count":9,"open_issues_count":3,"size":108,"archived":false,"pushed_at":"2024-01-02T03:04:05Z"}`)
	f.handle(pullsURI, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Link", `<https://api.github.com/repositories/1/pulls?state=open&per_page=1&page=2>; rel="next", <https://api.github.com/repositories/1/pulls?state=open&per_page=1&page=4>; rel="last"`)
		fmt.Fprint(w, `[{"number":10}]`)
	})
	f.json(workflowsURI, `{"total_count":1,"workflows":[{"id":7,"name":"CI","state":"active"}]}`)
	f.json(runsURI, `{"total_count":12,"workflow_runs":[{"status":"completed","conclusion":"success","run_started_at":"2024-01-02T10:00:00Z","updated_at":"2024-01-02T10:01:30Z"}]}`)
	f.json(timingURI, `{"billable":{"UBUNTU":{"total_ms":60000},"WINDOWS":{"total_ms":1200}}}`)
}

// byKey indexes samples by name and label string.
func byKey(samples []metric.Sample) map[string]float64 {
	out := make(map[string]float64, len(samples))
	for _, s := range samples {
		out[s.Name+"{"+s.LabelString()+"}"] = s.Value
	}
	return out
}

func TestFetchRepository(t *testing.T) {
	f, srv := newFakeGitHub(t)
	serveHelloWorld(f)

	fetcher := NewFetcher(newTestClient(t, srv, clock.Real(), nil), time.Hour, testLogger(t))
	samples, err := fetcher.Fetch(context.Background(), helloWorld)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	repo := `owner="octocat",repository="Hello-World"`
	wf := `owner="octocat",repository="Hello-World",workflow="CI"`
	want := map[string]float64{
		"github_repo_stars{" + repo + "}":                                         42,
		"github_repo_forks{" + repo + "}":                                         5,
		"github_repo_watchers{" + repo + "}":                                      9,
		"github_repo_open_issues{" + repo + "}":                                   3,
		"github_repo_open_pull_requests{" + repo + "}":                            4,
		"github_repo_size_kilobytes{" + repo + "}":                                108,
		"github_repo_archived{" + repo + "}":                                      0,
		"github_repo_pushed_timestamp_seconds{" + repo + "}":                      float64(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Unix()),
		"github_actions_workflow_last_run_success{" + wf + "}":                    1,
		"github_actions_workflow_last_run_duration_seconds{" + wf + "}":           90,
		"github_actions_workflow_last_run_timestamp_seconds{" + wf + "}":          float64(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC).Unix()),
		`github_actions_billable_ms{os="ubuntu",` + wf + "}":                     60000,
		`github_actions_billable_ms{os="windows",` + wf + "}":                    1200,
	}
	if diff := cmp.Diff(want, byKey(samples)); diff != "" {
		t.Fatalf("unexpected samples (-want +got):\n%s", diff)
	}
}

func TestFetchRepositoryWithoutPullLinkCountsPage(t *testing.T) {
	f, srv := newFakeGitHub(t)
	serveHelloWorld(f)
	f.json(pullsURI, `[]`)
	f.json(workflowsURI, `{"total_count":0,"workflows":[]}`)

	fetcher := NewFetcher(newTestClient(t, srv, clock.Real(), nil), time.Hour, testLogger(t))
	samples, err := fetcher.Fetch(context.Background(), helloWorld)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got := byKey(samples)[`github_repo_open_pull_requests{owner="octocat",repository="Hello-World"}`]
	if got != 0 {
		t.Fatalf("open pulls = %v, want 0", got)
	}
}

func TestWorkflowListIsCached(t *testing.T) {
	f, srv := newFakeGitHub(t)
	serveHelloWorld(f)

	fetcher := NewFetcher(newTestClient(t, srv, clock.Real(), nil), time.Hour, testLogger(t))
	for range 2 {
		if _, err := fetcher.Fetch(context.Background(), helloWorld); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	}
	if got := f.count(workflowsURI); got != 1 {
		t.Fatalf("workflow list fetched %d times, want 1", got)
	}
	if got := f.count(repoURI); got != 2 {
		t.Fatalf("repository fetched %d times, want 2", got)
	}
}

func TestMissingWorkflowsEndpointYieldsNoWorkflowMetrics(t *testing.T) {
	f, srv := newFakeGitHub(t)
	serveHelloWorld(f)
	f.handle(workflowsURI, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	fetcher := NewFetcher(newTestClient(t, srv, clock.Real(), nil), time.Hour, testLogger(t))
	samples, err := fetcher.Fetch(context.Background(), helloWorld)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	for _, s := range samples {
		if _, ok := s.Labels[metric.LabelWorkflow]; ok {
			t.Fatalf("unexpected workflow sample %s", s.Name)
		}
	}
}

func TestNotFoundIsNotRetried(t *testing.T) {
	f, srv := newFakeGitHub(t)

	fetcher := NewFetcher(newTestClient(t, srv, clock.Real(), nil), time.Hour, testLogger(t))
	samples, err := fetcher.Fetch(context.Background(), helloWorld)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if samples != nil {
		t.Fatalf("got partial samples %v", samples)
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Target != "octocat/Hello-World" {
		t.Fatalf("FetchError target = %+v", fe)
	}
	if got := f.count(repoURI); got != 1 {
		t.Fatalf("repository requested %d times, want 1", got)
	}
}

func TestTransientIsRetriedThenSucceeds(t *testing.T) {
	f, srv := newFakeGitHub(t)
	serveHelloWorld(f)

	var mu sync.Mutex
	calls := 0
	f.handle(repoURI, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"stargazers_count":1,"forks_count":0,"open_issues_count":0}`)
	})

	fetcher := NewFetcher(newTestClient(t, srv, clock.Real(), nil), time.Hour, testLogger(t))
	if _, err := fetcher.Fetch(context.Background(), helloWorld); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := f.count(repoURI); got != 3 {
		t.Fatalf("repository requested %d times, want 3", got)
	}
}

func TestTransientSurfacesAfterBoundedRetries(t *testing.T) {
	f, srv := newFakeGitHub(t)
	f.handle(repoURI, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	fetcher := NewFetcher(newTestClient(t, srv, clock.Real(), nil), time.Hour, testLogger(t))
	_, err := fetcher.Fetch(context.Background(), helloWorld)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("got %v, want ErrTransient", err)
	}
	if got := f.count(repoURI); got != 3 {
		t.Fatalf("repository requested %d times, want 3", got)
	}
}

func TestPartialFailureReturnsNoSamples(t *testing.T) {
	f, srv := newFakeGitHub(t)
	serveHelloWorld(f)
	f.handle(runsURI, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	fetcher := NewFetcher(newTestClient(t, srv, clock.Real(), nil), time.Hour, testLogger(t))
	samples, err := fetcher.Fetch(context.Background(), helloWorld)
	if !errors.Is(err, ErrTransient) || samples != nil {
		t.Fatalf("got samples=%v err=%v, want nil and ErrTransient", samples, err)
	}
}

func TestAuthErrorIsNotRetried(t *testing.T) {
	f, srv := newFakeGitHub(t)
	f.handle(repoURI, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Bad credentials"}`)
	})

	fetcher := NewFetcher(newTestClient(t, srv, clock.Real(), nil), time.Hour, testLogger(t))
	_, err := fetcher.Fetch(context.Background(), helloWorld)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("got %v, want ErrAuth", err)
	}
	if got := f.count(repoURI); got != 1 {
		t.Fatalf("repository requested %d times, want 1", got)
	}
}

func TestForbiddenWithoutRateLimitIsAuth(t *testing.T) {
	f, srv := newFakeGitHub(t)
	f.handle(repoURI, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "4000")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"Resource not accessible by personal access token"}`)
	})

	fetcher := NewFetcher(newTestClient(t, srv, clock.Real(), nil), time.Hour, testLogger(t))
	if _, err := fetcher.Fetch(context.Background(), helloWorld); !errors.Is(err, ErrAuth) {
		t.Fatalf("got %v, want ErrAuth", err)
	}
}

func TestPrimaryRateLimitBlocksFurtherCalls(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clk := clock.NewFake(now)
	reset := now.Add(5 * time.Minute)

	f, srv := newFakeGitHub(t)
	f.handle(repoURI, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"API rate limit exceeded for user ID 1."}`)
	})

	budget := ratelimit.New(clk)
	fetcher := NewFetcher(newTestClient(t, srv, clk, budget), time.Hour, testLogger(t))

	_, err := fetcher.Fetch(context.Background(), helloWorld)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited", err)
	}
	if at, ok := ResetAt(err); !ok || !at.Equal(reset) {
		t.Fatalf("ResetAt = %v, %v; want %v", at, ok, reset)
	}

	_, err = fetcher.Fetch(context.Background(), helloWorld)
	if !errors.Is(err, ErrRateLimited) || !errors.Is(err, ratelimit.ErrWouldExceedBudget) {
		t.Fatalf("second fetch: got %v, want local budget exhaustion", err)
	}
	if got := f.count(repoURI); got != 1 {
		t.Fatalf("repository requested %d times, want 1", got)
	}
}

func TestSecondaryRateLimitUsesRetryAfter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clk := clock.NewFake(now)

	f, srv := newFakeGitHub(t)
	f.handle(repoURI, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	budget := ratelimit.New(clk)
	fetcher := NewFetcher(newTestClient(t, srv, clk, budget), time.Hour, testLogger(t))
	_, err := fetcher.Fetch(context.Background(), helloWorld)
	if at, ok := ResetAt(err); !errors.Is(err, ErrRateLimited) || !ok || !at.Equal(now.Add(time.Minute)) {
		t.Fatalf("got err=%v reset=%v", err, at)
	}
	if st := budget.Status(); !st.Known || st.Remaining != 0 {
		t.Fatalf("budget not exhausted after 429: %+v", st)
	}
}

func TestUnexpectedShapeIsTransient(t *testing.T) {
	f, srv := newFakeGitHub(t)
	f.json(repoURI, `{"full_name":"octocat/Hello-World"}`)

	fetcher := NewFetcher(newTestClient(t, srv, clock.Real(), nil), time.Hour, testLogger(t))
	if _, err := fetcher.Fetch(context.Background(), helloWorld); !errors.Is(err, ErrTransient) {
		t.Fatalf("got %v, want ErrTransient", err)
	}
}

func TestCallTimeoutIsTransient(t *testing.T) {
	f, srv := newFakeGitHub(t)
	f.handle(repoURI, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	c, err := NewClient(Config{
		BaseURL: srv.URL,
		Timeout: 20 * time.Millisecond,
		Retry:   RetryPolicy{Attempts: 1},
		Logger:  testLogger(t),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = NewFetcher(c, time.Hour, testLogger(t)).Fetch(context.Background(), helloWorld)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("got %v, want ErrTransient", err)
	}
}

func TestCancelledContextIsNotClassified(t *testing.T) {
	_, srv := newFakeGitHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := NewFetcher(newTestClient(t, srv, clock.Real(), nil), time.Hour, testLogger(t))
	_, err := fetcher.Fetch(ctx, helloWorld)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if Classify(err) != nil {
		t.Fatalf("cancellation classified as %v", Classify(err))
	}
}

func TestFetchOrganization(t *testing.T) {
	f, srv := newFakeGitHub(t)
	f.json("/orgs/acme", `{"login":"acme","public_repos":17}`)
	f.json("/orgs/acme/settings/billing/actions", `{"total_minutes_used":305,"total_paid_minutes_used":"12.5","included_minutes":3000,"minutes_used_breakdown":{"UBUNTU":205,"MACOS":100}}`)
	f.json("/orgs/acme/settings/billing/packages", `{"total_gigabytes_bandwidth_used":50,"total_paid_gigabytes_bandwidth_used":40,"included_gigabytes_bandwidth":10}`)
	f.json("/orgs/acme/settings/billing/shared-storage", `{"days_left_in_billing_cycle":20,"estimated_paid_storage_for_month":15,"estimated_storage_for_month":40}`)

	fetcher := NewFetcher(newTestClient(t, srv, clock.Real(), nil), time.Hour, testLogger(t))
	samples, err := fetcher.Fetch(context.Background(), target.Organization("acme"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	org := `organisation="acme"`
	want := map[string]float64{
		"github_org_public_repos{" + org + "}":                                              17,
		"github_org_billing_actions_total_minutes_used{" + org + "}":                        305,
		"github_org_billing_actions_total_paid_minutes_used{" + org + "}":                   12.5,
		"github_org_billing_actions_included_minutes{" + org + "}":                          3000,
		"github_org_billing_actions_minutes_used_breakdown{" + org + `,os="ubuntu"}`:         205,
		"github_org_billing_actions_minutes_used_breakdown{" + org + `,os="macos"}`:          100,
		"github_org_billing_packages_total_gigabytes_bandwidth_used{" + org + "}":           50,
		"github_org_billing_packages_total_paid_gigabytes_bandwidth_used{" + org + "}":      40,
		"github_org_billing_packages_included_gigabytes_bandwidth{" + org + "}":             10,
		"github_org_billing_shared_storage_days_left_in_billing_cycle{" + org + "}":         20,
		"github_org_billing_shared_storage_estimated_paid_storage_for_month{" + org + "}":   15,
		"github_org_billing_shared_storage_estimated_storage_for_month{" + org + "}":        40,
	}
	if diff := cmp.Diff(want, byKey(samples)); diff != "" {
		t.Fatalf("unexpected samples (-want +got):\n%s", diff)
	}
}

func TestFetchOrganizationBillingForbidden(t *testing.T) {
	f, srv := newFakeGitHub(t)
	f.json("/orgs/acme", `{"public_repos":17}`)
	f.handle("/orgs/acme/settings/billing/actions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"Must have admin rights to Repository."}`)
	})
	f.json("/orgs/acme/settings/billing/packages", `{"total_gigabytes_bandwidth_used":1,"total_paid_gigabytes_bandwidth_used":1,"included_gigabytes_bandwidth":1}`)
	f.json("/orgs/acme/settings/billing/shared-storage", `{"days_left_in_billing_cycle":1,"estimated_paid_storage_for_month":1,"estimated_storage_for_month":1}`)

	fetcher := NewFetcher(newTestClient(t, srv, clock.Real(), nil), time.Hour, testLogger(t))
	samples, err := fetcher.Fetch(context.Background(), target.Organization("acme"))
	if !errors.Is(err, ErrAuth) || samples != nil {
		t.Fatalf("got samples=%v err=%v", samples, err)
	}
}

func TestMetricsCountRequests(t *testing.T) {
	f, srv := newFakeGitHub(t)
	serveHelloWorld(f)

	reg := prometheus.NewRegistry()
	budget := ratelimit.New(clock.Real())
	m := NewMetrics(reg, budget)
	c, err := NewClient(Config{BaseURL: srv.URL, Budget: budget, Metrics: m, Logger: testLogger(t)})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := NewFetcher(c, time.Hour, testLogger(t)).Fetch(context.Background(), helloWorld); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	var out dto.Metric
	if err := m.requestsTotal.WithLabelValues("ok").Write(&out); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := out.GetCounter().GetValue(); got != 5 {
		t.Fatalf("ok requests = %v, want 5", got)
	}
}

func TestParseLinkLastPage(t *testing.T) {
	tests := []struct {
		header string
		want   int
		ok     bool
	}{
		{`<https://api.github.com/x?page=2>; rel="next", <https://api.github.com/x?per_page=1&page=31>; rel="last"`, 31, true},
		{`<https://api.github.com/x?page=1>; rel="prev"`, 0, false},
		{``, 0, false},
		{`<https://api.github.com/x?page=abc>; rel="last"`, 0, false},
	}
	for _, tt := range tests {
		got, ok := parseLinkLastPage(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseLinkLastPage(%q) = %d, %v; want %d, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestClassName(t *testing.T) {
	tests := map[error]string{
		&FetchError{Kind: ErrNotFound}:    "not_found",
		&FetchError{Kind: ErrRateLimited}: "rate_limited",
		&FetchError{Kind: ErrTransient}:   "transient",
		&FetchError{Kind: ErrAuth}:        "auth",
		errors.New("boom"):                "unknown",
	}
	for err, want := range tests {
		if got := ClassName(err); got != want {
			t.Errorf("ClassName(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestMissingRunsStillReportsBilling(t *testing.T) {
	f, srv := newFakeGitHub(t)
	serveHelloWorld(f)
	f.handle(runsURI, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	fetcher := NewFetcher(newTestClient(t, srv, clock.Real(), nil), time.Hour, testLogger(t))
	samples, err := fetcher.Fetch(context.Background(), helloWorld)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	got := byKey(samples)
	wf := `owner="octocat",repository="Hello-World",workflow="CI"`
	if v, ok := got[`github_actions_billable_ms{os="ubuntu",`+wf+"}"]; !ok || v != 60000 {
		t.Fatalf("billable ms = %v (present %v), want 60000", v, ok)
	}
	if _, ok := got["github_actions_workflow_last_run_timestamp_seconds{"+wf+"}"]; ok {
		t.Fatal("run sample reported although the runs endpoint is missing")
	}
	if n := f.count(timingURI); n != 1 {
		t.Fatalf("timing fetched %d times, want 1", n)
	}
}

func TestDuplicateWorkflowNamesGetDistinctLabels(t *testing.T) {
	f, srv := newFakeGitHub(t)
	serveHelloWorld(f)
	f.json(workflowsURI, `{"total_count":2,"workflows":[`+
		`{"id":7,"name":"CI","path":".github/workflows/ci.yml","state":"active"},`+
		`{"id":8,"name":"CI","path":".github/workflows/ci-nightly.yml","state":"active"}]}`)
	f.json("/repos/octocat/Hello-World/actions/workflows/8/timing", `{"billable":{"UBUNTU":{"total_ms":500}}}`)

	fetcher := NewFetcher(newTestClient(t, srv, clock.Real(), nil), time.Hour, testLogger(t))
	samples, err := fetcher.Fetch(context.Background(), helloWorld)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	got := byKey(samples)
	repo := `owner="octocat",repository="Hello-World"`
	want := map[string]float64{
		`github_actions_billable_ms{os="ubuntu",` + repo + `,workflow="CI (.github/workflows/ci.yml)"}`:         60000,
		`github_actions_billable_ms{os="ubuntu",` + repo + `,workflow="CI (.github/workflows/ci-nightly.yml)"}`: 500,
	}
	for key, v := range want {
		if got[key] != v {
			t.Errorf("%s = %v, want %v", key, got[key], v)
		}
	}
	if len(samples) != len(got) {
		t.Fatalf("%d samples but %d distinct series", len(samples), len(got))
	}
}

func TestWorkflowNames(t *testing.T) {
	got := workflowNames([]workflow{
		{ID: 1, Name: "CI", Path: ".github/workflows/ci.yml"},
		{ID: 2, Name: "CI"},
		{ID: 3, Name: "Release", Path: ".github/workflows/release.yml"},
	})
	want := map[int64]string{
		1: "CI (.github/workflows/ci.yml)",
		2: "CI (#2)",
		3: "Release",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
}

func TestJitterStaysInUpperHalf(t *testing.T) {
	const d = 100 * time.Millisecond
	for range 1000 {
		if got := jitter(d); got < d/2 || got > d {
			t.Fatalf("jitter(%v) = %v, want within [%v, %v]", d, got, d/2, d)
		}
	}
}
