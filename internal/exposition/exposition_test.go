package exposition

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/neox5/ghexporter/internal/cache"
	"github.com/neox5/ghexporter/internal/clock"
	"github.com/neox5/ghexporter/internal/github"
	"github.com/neox5/ghexporter/internal/metric"
	"github.com/neox5/ghexporter/internal/target"
)

var (
	t0    = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	hello = target.Repository("octocat", "Hello-World")
	acme  = target.Organization("acme")
)

func helloSamples(stars, issues float64) []metric.Sample {
	return []metric.Sample{
		metric.NewSample(metric.RepoStars, stars, t0, metric.LabelOwner, "octocat", metric.LabelRepository, "Hello-World"),
		metric.NewSample(metric.RepoOpenIssues, issues, t0, metric.LabelOwner, "octocat", metric.LabelRepository, "Hello-World"),
	}
}

func TestRenderExactOutput(t *testing.T) {
	c := cache.New([]target.Target{hello, acme}, clock.NewFake(t0))
	if err := c.Update(hello, helloSamples(42, 3)); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, warnings := Render(c.Snapshot())
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	want := `# HELP github_exporter_target_last_success_timestamp_seconds Unix time of the last successful fetch of the target
# TYPE github_exporter_target_last_success_timestamp_seconds gauge
github_exporter_target_last_success_timestamp_seconds{kind="repository",target="octocat/Hello-World"} 1.7145648e+09
# HELP github_exporter_target_stale Whether the most recent fetch of the target failed (1) or not (0)
# TYPE github_exporter_target_stale gauge
github_exporter_target_stale{kind="organization",target="acme"} 0
github_exporter_target_stale{kind="repository",target="octocat/Hello-World"} 0
# HELP github_repo_open_issues Number of open issues of the repository, pull requests included
# TYPE github_repo_open_issues gauge
github_repo_open_issues{owner="octocat",repository="Hello-World"} 3
# HELP github_repo_stars Number of stargazers of the repository
# TYPE github_repo_stars gauge
github_repo_stars{owner="octocat",repository="Hello-World"} 42
`
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Fatalf("output (-want +got):\n%s", diff)
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	c := cache.New([]target.Target{hello, acme}, clock.NewFake(t0))
	_ = c.Update(hello, helloSamples(42, 3))
	_ = c.UpdateFailure(acme, &github.FetchError{Kind: github.ErrAuth})

	snap := c.Snapshot()
	first, _ := Render(snap)
	second, _ := Render(snap)
	if !bytes.Equal(first, second) {
		t.Fatalf("renders differ:\n%s\n---\n%s", first, second)
	}
}

func TestStaleTargetKeepsLastGoodValues(t *testing.T) {
	clk := clock.NewFake(t0)
	c := cache.New([]target.Target{hello}, clk)

	_ = c.Update(hello, helloSamples(42, 3))
	clk.Advance(time.Second)
	out, _ := Render(c.Snapshot())
	for _, line := range []string{
		`github_repo_stars{owner="octocat",repository="Hello-World"} 42`,
		`github_repo_open_issues{owner="octocat",repository="Hello-World"} 3`,
		`github_exporter_target_stale{kind="repository",target="octocat/Hello-World"} 0`,
	} {
		if !strings.Contains(string(out), line+"\n") {
			t.Errorf("scrape at t=1 missing %q", line)
		}
	}

	clk.Set(t0.Add(60 * time.Second))
	_ = c.UpdateFailure(hello, &github.FetchError{Kind: github.ErrTransient})
	clk.Advance(time.Second)
	out, _ = Render(c.Snapshot())
	for _, line := range []string{
		`github_repo_stars{owner="octocat",repository="Hello-World"} 42`,
		`github_repo_open_issues{owner="octocat",repository="Hello-World"} 3`,
		`github_exporter_target_stale{kind="repository",target="octocat/Hello-World"} 1`,
		`github_exporter_target_last_error{error="transient",kind="repository",target="octocat/Hello-World"} 1`,
		`github_exporter_target_last_error_timestamp_seconds{kind="repository",target="octocat/Hello-World"} 1.71456486e+09`,
	} {
		if !strings.Contains(string(out), line+"\n") {
			t.Errorf("scrape at t=61 missing %q\n%s", line, out)
		}
	}
}

func TestSeriesOrderedByTargetThenLabels(t *testing.T) {
	spoon := target.Repository("octocat", "Spoon-Knife")
	c := cache.New([]target.Target{spoon, hello}, clock.NewFake(t0))

	wf := func(repo, workflow string, v float64) metric.Sample {
		return metric.NewSample(metric.WorkflowLastRunSuccess, v, t0,
			metric.LabelOwner, "octocat", metric.LabelRepository, repo, metric.LabelWorkflow, workflow)
	}
	_ = c.Update(spoon, []metric.Sample{wf("Spoon-Knife", "build", 1)})
	_ = c.Update(hello, []metric.Sample{wf("Hello-World", "test", 1), wf("Hello-World", "lint", 0)})

	families, _ := Families(c.Snapshot())
	var series []string
	for _, mf := range families {
		if mf.GetName() != metric.WorkflowLastRunSuccess {
			continue
		}
		for _, m := range mf.GetMetric() {
			var parts []string
			for _, lp := range m.GetLabel() {
				parts = append(parts, lp.GetValue())
			}
			series = append(series, strings.Join(parts, "/"))
		}
	}

	want := []string{
		"octocat/Hello-World/lint",
		"octocat/Hello-World/test",
		"octocat/Spoon-Knife/build",
	}
	if diff := cmp.Diff(want, series); diff != "" {
		t.Fatalf("series order (-want +got):\n%s", diff)
	}
}

func TestNonFiniteValuesAreOmitted(t *testing.T) {
	c := cache.New([]target.Target{hello}, clock.NewFake(t0))
	_ = c.Update(hello, helloSamples(math.NaN(), math.Inf(1)))

	out, warnings := Render(c.Snapshot())
	if len(warnings) != 2 {
		t.Fatalf("got %d warnings, want 2: %v", len(warnings), warnings)
	}
	if strings.Contains(string(out), "github_repo_stars") || strings.Contains(string(out), "github_repo_open_issues") {
		t.Fatalf("non-finite sample rendered:\n%s", out)
	}
	if !strings.Contains(string(out), "github_exporter_target_stale") {
		t.Fatalf("meta metrics missing:\n%s", out)
	}
}

func TestUnknownMetricRendersUntyped(t *testing.T) {
	c := cache.New([]target.Target{hello}, clock.NewFake(t0))
	_ = c.Update(hello, []metric.Sample{metric.NewSample("custom_metric", 7, t0, "x", "y")})

	out, _ := Render(c.Snapshot())
	want := "# TYPE custom_metric untyped\ncustom_metric{x=\"y\"} 7\n"
	if !strings.Contains(string(out), want) {
		t.Fatalf("output missing %q:\n%s", want, out)
	}
}

func TestPendingTargetHasNoTimestamps(t *testing.T) {
	c := cache.New([]target.Target{acme}, clock.NewFake(t0))
	out, _ := Render(c.Snapshot())
	if strings.Contains(string(out), "timestamp_seconds") || strings.Contains(string(out), "last_error") {
		t.Fatalf("pending target rendered history:\n%s", out)
	}
}
