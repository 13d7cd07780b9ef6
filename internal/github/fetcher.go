package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/neox5/ghexporter/internal/metric"
	"github.com/neox5/ghexporter/internal/target"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkflowsRefresh is how long a repository's workflow list is
// reused before it is listed again.
const DefaultWorkflowsRefresh = 30 * time.Minute

// Fetcher derives the metric set of one target. It returns either a
// complete sample set or a *FetchError, never a partial set.
type Fetcher struct {
	client           *Client
	logger           *slog.Logger
	workflowsRefresh time.Duration

	mu        sync.Mutex
	workflows map[string]workflowList
}

type workflowList struct {
	fetchedAt time.Time
	items     []workflow
}

// NewFetcher creates a fetcher using client for every API call.
func NewFetcher(client *Client, workflowsRefresh time.Duration, logger *slog.Logger) *Fetcher {
	if workflowsRefresh <= 0 {
		workflowsRefresh = DefaultWorkflowsRefresh
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:           client,
		logger:           logger,
		workflowsRefresh: workflowsRefresh,
		workflows:        make(map[string]workflowList),
	}
}

// Fetch retrieves the current metric set for t.
func (f *Fetcher) Fetch(ctx context.Context, t target.Target) ([]metric.Sample, error) {
	var samples []metric.Sample
	var err error

	switch t.Kind {
	case target.KindRepository:
		samples, err = f.fetchRepository(ctx, t)
	case target.KindOrganization:
		samples, err = f.fetchOrganization(ctx, t)
	default:
		err = fmt.Errorf("unsupported target kind %q", t.Kind)
	}
	if err != nil {
		return nil, annotate(err, t)
	}
	return samples, nil
}

// annotate attaches the target to a classified failure. Context errors
// stay unclassified so the scheduler can tell shutdown from failure.
func annotate(err error, t target.Target) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		fe.Target = t.ID()
		return fe
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("fetch %s: %w", t.ID(), err)
	}
	return &FetchError{Target: t.ID(), Kind: ErrTransient, Err: err}
}

func repoPath(t target.Target, suffix string) string {
	return "/repos/" + url.PathEscape(t.Owner) + "/" + url.PathEscape(t.Name) + suffix
}

func (f *Fetcher) fetchRepository(ctx context.Context, t target.Target) ([]metric.Sample, error) {
	now := f.client.clock.Now()
	repoLabels := []string{metric.LabelOwner, t.Owner, metric.LabelRepository, t.Name}
	sample := func(name string, v float64, extra ...string) metric.Sample {
		return metric.NewSample(name, v, now, append(repoLabels[:len(repoLabels):len(repoLabels)], extra...)...)
	}

	var repo repoResponse
	if _, err := f.client.get(ctx, repoPath(t, ""), &repo); err != nil {
		return nil, err
	}

	openPulls, err := f.countOpenPulls(ctx, t)
	if err != nil {
		return nil, err
	}

	samples := []metric.Sample{
		sample(metric.RepoStars, float64(*repo.StargazersCount)),
		sample(metric.RepoForks, float64(*repo.ForksCount)),
		sample(metric.RepoWatchers, float64(repo.SubscribersCount)),
		sample(metric.RepoOpenIssues, float64(*repo.OpenIssuesCount)),
		sample(metric.RepoOpenPullRequests, float64(openPulls)),
		sample(metric.RepoSizeKilobytes, float64(repo.Size)),
		sample(metric.RepoArchived, metric.Bool(repo.Archived)),
	}
	if repo.PushedAt != nil {
		samples = append(samples, sample(metric.RepoPushedTimestamp, float64(repo.PushedAt.Unix())))
	}

	workflows, err := f.listWorkflows(ctx, t)
	if err != nil {
		return nil, err
	}
	names := workflowNames(workflows)
	for _, w := range workflows {
		wf := []string{metric.LabelWorkflow, names[w.ID]}

		var runs runsResponse
		path := repoPath(t, fmt.Sprintf("/actions/workflows/%d/runs?per_page=1", w.ID))
		_, err := f.client.get(ctx, path, &runs)
		switch {
		case errors.Is(err, ErrNotFound):
			// No runs yet; billing may still be reported.
		case err != nil:
			return nil, err
		case len(runs.WorkflowRuns) > 0:
			samples = append(samples, runSamples(runs.WorkflowRuns[0], func(name string, v float64) metric.Sample {
				return sample(name, v, wf...)
			})...)
		}

		var timing timingResponse
		path = repoPath(t, fmt.Sprintf("/actions/workflows/%d/timing", w.ID))
		if _, err := f.client.get(ctx, path, &timing); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		for os, bt := range timing.Billable {
			samples = append(samples, sample(metric.ActionsBillableMs, bt.TotalMs,
				metric.LabelWorkflow, names[w.ID], metric.LabelOS, strings.ToLower(os)))
		}
	}

	return samples, nil
}

// workflowNames labels each workflow by its name. Names shared by several
// workflows of one repository get the workflow file path appended, or the
// workflow ID when the path is unknown.
func workflowNames(workflows []workflow) map[int64]string {
	seen := make(map[string]int, len(workflows))
	for _, w := range workflows {
		seen[w.Name]++
	}
	names := make(map[int64]string, len(workflows))
	for _, w := range workflows {
		switch {
		case seen[w.Name] == 1:
			names[w.ID] = w.Name
		case w.Path != "":
			names[w.ID] = fmt.Sprintf("%s (%s)", w.Name, w.Path)
		default:
			names[w.ID] = fmt.Sprintf("%s (#%d)", w.Name, w.ID)
		}
	}
	return names
}

func runSamples(run workflowRun, sample func(string, float64) metric.Sample) []metric.Sample {
	started, ok := run.startedAt()
	if !ok {
		return nil
	}
	out := []metric.Sample{sample(metric.WorkflowLastRunTime, float64(started.Unix()))}
	if run.Status != "completed" {
		return out
	}
	out = append(out, sample(metric.WorkflowLastRunSuccess, metric.Bool(run.Conclusion == "success")))
	if run.UpdatedAt != nil && !run.UpdatedAt.Before(started) {
		out = append(out, sample(metric.WorkflowLastRunSeconds, run.UpdatedAt.Sub(started).Seconds()))
	}
	return out
}

// countOpenPulls requests one pull per page; the page number of the
// rel="last" link is then the number of open pull requests.
func (f *Fetcher) countOpenPulls(ctx context.Context, t target.Target) (int, error) {
	var pulls pullList
	header, err := f.client.get(ctx, repoPath(t, "/pulls?state=open&per_page=1"), &pulls)
	if err != nil {
		return 0, err
	}
	if last, ok := parseLinkLastPage(header.Get("Link")); ok {
		return last, nil
	}
	return len(pulls), nil
}

// listWorkflows returns the cached workflow list of t, listing it again
// once it is older than the refresh interval. Repositories without
// Actions yield an empty list.
func (f *Fetcher) listWorkflows(ctx context.Context, t target.Target) ([]workflow, error) {
	key := t.ID()
	now := f.client.clock.Now()

	f.mu.Lock()
	cached, ok := f.workflows[key]
	f.mu.Unlock()
	if ok && now.Sub(cached.fetchedAt) < f.workflowsRefresh {
		return cached.items, nil
	}

	var resp workflowsResponse
	if _, err := f.client.get(ctx, repoPath(t, "/actions/workflows?per_page=100"), &resp); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		resp.Workflows = nil
	}

	f.mu.Lock()
	f.workflows[key] = workflowList{fetchedAt: now, items: resp.Workflows}
	f.mu.Unlock()

	f.logger.Debug("found workflows", "target", key, "count", len(resp.Workflows))
	return resp.Workflows, nil
}

func (f *Fetcher) fetchOrganization(ctx context.Context, t target.Target) ([]metric.Sample, error) {
	now := f.client.clock.Now()
	org := url.PathEscape(t.Owner)
	sample := func(name string, v float64, extra ...string) metric.Sample {
		return metric.NewSample(name, v, now, append([]string{metric.LabelOrganisation, t.Owner}, extra...)...)
	}

	var info orgResponse
	if _, err := f.client.get(ctx, "/orgs/"+org, &info); err != nil {
		return nil, err
	}

	var (
		actions  actionsBilling
		packages packagesBilling
		storage  sharedStorageBilling
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := f.client.get(gctx, "/orgs/"+org+"/settings/billing/actions", &actions)
		return err
	})
	g.Go(func() error {
		_, err := f.client.get(gctx, "/orgs/"+org+"/settings/billing/packages", &packages)
		return err
	})
	g.Go(func() error {
		_, err := f.client.get(gctx, "/orgs/"+org+"/settings/billing/shared-storage", &storage)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	samples := []metric.Sample{
		sample(metric.OrgPublicRepos, float64(*info.PublicRepos)),
		sample(metric.OrgActionsTotalMinutesUsed, float64(*actions.TotalMinutesUsed)),
		sample(metric.OrgActionsTotalPaidMinutesUsed, float64(*actions.TotalPaidMinutesUsed)),
		sample(metric.OrgActionsIncludedMinutes, float64(*actions.IncludedMinutes)),
		sample(metric.OrgPackagesBandwidthUsed, float64(*packages.TotalGigabytesBandwidthUsed)),
		sample(metric.OrgPackagesPaidBandwidthUsed, float64(*packages.TotalPaidGigabytesBandwidthUsed)),
		sample(metric.OrgPackagesIncludedBandwidth, float64(*packages.IncludedGigabytesBandwidth)),
		sample(metric.OrgStorageDaysLeftInBillingCycle, float64(*storage.DaysLeftInBillingCycle)),
		sample(metric.OrgStorageEstimatedPaidForMonth, float64(*storage.EstimatedPaidStorageForMonth)),
		sample(metric.OrgStorageEstimatedStorageForMonth, float64(*storage.EstimatedStorageForMonth)),
	}
	for os, minutes := range actions.MinutesUsedBreakdown {
		samples = append(samples, sample(metric.OrgActionsMinutesUsedBreakdown, float64(minutes), metric.LabelOS, strings.ToLower(os)))
	}
	return samples, nil
}
