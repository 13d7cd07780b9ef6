package metric

import "sort"

// Metric names exported for repository targets.
const (
	RepoStars              = "github_repo_stars"
	RepoForks              = "github_repo_forks"
	RepoWatchers           = "github_repo_watchers"
	RepoOpenIssues         = "github_repo_open_issues"
	RepoOpenPullRequests   = "github_repo_open_pull_requests"
	RepoSizeKilobytes      = "github_repo_size_kilobytes"
	RepoArchived           = "github_repo_archived"
	RepoPushedTimestamp    = "github_repo_pushed_timestamp_seconds"
	WorkflowLastRunSuccess = "github_actions_workflow_last_run_success"
	WorkflowLastRunSeconds = "github_actions_workflow_last_run_duration_seconds"
	WorkflowLastRunTime    = "github_actions_workflow_last_run_timestamp_seconds"
	ActionsBillableMs      = "github_actions_billable_ms"
)

// Metric names exported for organization targets.
const (
	OrgPublicRepos                     = "github_org_public_repos"
	OrgActionsTotalMinutesUsed         = "github_org_billing_actions_total_minutes_used"
	OrgActionsTotalPaidMinutesUsed     = "github_org_billing_actions_total_paid_minutes_used"
	OrgActionsIncludedMinutes          = "github_org_billing_actions_included_minutes"
	OrgActionsMinutesUsedBreakdown     = "github_org_billing_actions_minutes_used_breakdown"
	OrgPackagesBandwidthUsed           = "github_org_billing_packages_total_gigabytes_bandwidth_used"
	OrgPackagesPaidBandwidthUsed       = "github_org_billing_packages_total_paid_gigabytes_bandwidth_used"
	OrgPackagesIncludedBandwidth       = "github_org_billing_packages_included_gigabytes_bandwidth"
	OrgStorageDaysLeftInBillingCycle   = "github_org_billing_shared_storage_days_left_in_billing_cycle"
	OrgStorageEstimatedPaidForMonth    = "github_org_billing_shared_storage_estimated_paid_storage_for_month"
	OrgStorageEstimatedStorageForMonth = "github_org_billing_shared_storage_estimated_storage_for_month"
)

// Per-target collection state, synthesized at render time.
const (
	TargetStale         = "github_exporter_target_stale"
	TargetLastSuccess   = "github_exporter_target_last_success_timestamp_seconds"
	TargetLastErrorTime = "github_exporter_target_last_error_timestamp_seconds"
	TargetLastError     = "github_exporter_target_last_error"
)

// Label names.
const (
	LabelOwner        = "owner"
	LabelRepository   = "repository"
	LabelOrganisation = "organisation"
	LabelWorkflow     = "workflow"
	LabelOS           = "os"
	LabelTarget       = "target"
	LabelKind         = "kind"
	LabelError        = "error"
)

var repoLabels = []string{LabelOwner, LabelRepository}
var workflowLabels = []string{LabelOwner, LabelRepository, LabelWorkflow}
var orgLabels = []string{LabelOrganisation}
var metaLabels = []string{LabelKind, LabelTarget}

var catalog = map[string]Descriptor{}

func register(name string, typ MetricType, desc string, labels []string) {
	catalog[name] = Descriptor{Name: name, Type: typ, Description: desc, Labels: labels}
}

func init() {
	g := MetricTypeGauge
	register(RepoStars, g, "Number of stargazers of the repository", repoLabels)
	register(RepoForks, g, "Number of forks of the repository", repoLabels)
	register(RepoWatchers, g, "Number of watchers subscribed to the repository", repoLabels)
	register(RepoOpenIssues, g, "Number of open issues of the repository, pull requests included", repoLabels)
	register(RepoOpenPullRequests, g, "Number of open pull requests of the repository", repoLabels)
	register(RepoSizeKilobytes, g, "Size of the repository in kilobytes", repoLabels)
	register(RepoArchived, g, "Whether the repository is archived (1) or not (0)", repoLabels)
	register(RepoPushedTimestamp, g, "Unix time of the last push to the repository", repoLabels)
	register(WorkflowLastRunSuccess, g, "Whether the latest run of the workflow concluded successfully", workflowLabels)
	register(WorkflowLastRunSeconds, g, "Duration of the latest run of the workflow in seconds", workflowLabels)
	register(WorkflowLastRunTime, g, "Unix time the latest run of the workflow started", workflowLabels)
	register(ActionsBillableMs, g, "Github Actions billable milliseconds", []string{LabelOwner, LabelRepository, LabelWorkflow, LabelOS})

	register(OrgPublicRepos, g, "Number of public repositories of the organisation", orgLabels)
	register(OrgActionsTotalMinutesUsed, g, "Github Actions organisation billing total minutes used", orgLabels)
	register(OrgActionsTotalPaidMinutesUsed, g, "Github Actions organisation billing total paid minutes used", orgLabels)
	register(OrgActionsIncludedMinutes, g, "Github Actions organisation billing included minutes", orgLabels)
	register(OrgActionsMinutesUsedBreakdown, g, "Github Actions organisation billing minutes breakdown", []string{LabelOrganisation, LabelOS})
	register(OrgPackagesBandwidthUsed, g, "Github Packages organisation billing total gigabytes bandwidth used", orgLabels)
	register(OrgPackagesPaidBandwidthUsed, g, "Github Packages organisation billing total paid gigabytes bandwidth used", orgLabels)
	register(OrgPackagesIncludedBandwidth, g, "Github Packages organisation billing included gigabytes bandwidth", orgLabels)
	register(OrgStorageDaysLeftInBillingCycle, g, "Github Shared Storage organisation billing days left in billing cycle", orgLabels)
	register(OrgStorageEstimatedPaidForMonth, g, "Github Shared Storage organisation billing estimated paid storage for month", orgLabels)
	register(OrgStorageEstimatedStorageForMonth, g, "Github Shared Storage organisation billing estimated storage for month", orgLabels)

	register(TargetStale, g, "Whether the most recent fetch of the target failed (1) or not (0)", metaLabels)
	register(TargetLastSuccess, g, "Unix time of the last successful fetch of the target", metaLabels)
	register(TargetLastErrorTime, g, "Unix time of the last failed fetch of the target", metaLabels)
	register(TargetLastError, g, "Class of the most recent fetch error of the target, 1 while the target is stale", append(metaLabels[:len(metaLabels):len(metaLabels)], LabelError))
}

// Lookup returns the descriptor registered for name.
func Lookup(name string) (Descriptor, bool) {
	d, ok := catalog[name]
	return d, ok
}

// Descriptors returns every registered descriptor ordered by name.
func Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(catalog))
	for _, d := range catalog {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
