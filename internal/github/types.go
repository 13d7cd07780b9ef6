package github

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

func missing(shape, field string) error {
	return fmt.Errorf("%s response missing %q", shape, field)
}

// repoResponse is GET /repos/{owner}/{repo}.
type repoResponse struct {
	StargazersCount  *int64     `json:"stargazers_count"`
	ForksCount       *int64     `json:"forks_count"`
	SubscribersCount int64      `json:"subscribers_count"`
	OpenIssuesCount  *int64     `json:"open_issues_count"`
	Size             int64      `json:"size"`
	Archived         bool       `json:"archived"`
	PushedAt         *time.Time `json:"pushed_at"`
}

func (r *repoResponse) validate() error {
	switch {
	case r.StargazersCount == nil:
		return missing("repository", "stargazers_count")
	case r.ForksCount == nil:
		return missing("repository", "forks_count")
	case r.OpenIssuesCount == nil:
		return missing("repository", "open_issues_count")
	}
	return nil
}

// pullList is GET /repos/{owner}/{repo}/pulls. Only the length matters.
type pullList []struct {
	Number int64 `json:"number"`
}

type workflow struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Path  string `json:"path"`
	State string `json:"state"`
}

// workflowsResponse is GET /repos/{owner}/{repo}/actions/workflows.
type workflowsResponse struct {
	TotalCount *int       `json:"total_count"`
	Workflows  []workflow `json:"workflows"`
}

func (r *workflowsResponse) validate() error {
	if r.TotalCount == nil {
		return missing("workflows", "total_count")
	}
	for _, w := range r.Workflows {
		if w.ID == 0 || w.Name == "" {
			return errors.New("workflows response contains a workflow without id or name")
		}
	}
	return nil
}

type workflowRun struct {
	Status       string     `json:"status"`
	Conclusion   string     `json:"conclusion"`
	RunStartedAt *time.Time `json:"run_started_at"`
	CreatedAt    *time.Time `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at"`
}

// startedAt prefers run_started_at, which re-runs update, over created_at.
func (r workflowRun) startedAt() (time.Time, bool) {
	if r.RunStartedAt != nil {
		return *r.RunStartedAt, true
	}
	if r.CreatedAt != nil {
		return *r.CreatedAt, true
	}
	return time.Time{}, false
}

// runsResponse is GET /repos/{owner}/{repo}/actions/workflows/{id}/runs.
type runsResponse struct {
	TotalCount   *int          `json:"total_count"`
	WorkflowRuns []workflowRun `json:"workflow_runs"`
}

func (r *runsResponse) validate() error {
	if r.TotalCount == nil {
		return missing("workflow runs", "total_count")
	}
	return nil
}

type billableTime struct {
	TotalMs float64 `json:"total_ms"`
}

// timingResponse is GET /repos/{owner}/{repo}/actions/workflows/{id}/timing.
// Billable is keyed by runner OS (UBUNTU, MACOS, WINDOWS).
type timingResponse struct {
	Billable map[string]billableTime `json:"billable"`
}

func (r *timingResponse) validate() error {
	if r.Billable == nil {
		return missing("workflow timing", "billable")
	}
	return nil
}

// orgResponse is GET /orgs/{org}.
type orgResponse struct {
	PublicRepos *int64 `json:"public_repos"`
}

func (r *orgResponse) validate() error {
	if r.PublicRepos == nil {
		return missing("organization", "public_repos")
	}
	return nil
}

// flexFloat accepts a JSON number or a number encoded as a string; the
// billing API has returned both for paid minutes.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("invalid numeric string %q: %w", s, err)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// actionsBilling is GET /orgs/{org}/settings/billing/actions.
type actionsBilling struct {
	TotalMinutesUsed     *flexFloat           `json:"total_minutes_used"`
	TotalPaidMinutesUsed *flexFloat           `json:"total_paid_minutes_used"`
	IncludedMinutes      *flexFloat           `json:"included_minutes"`
	MinutesUsedBreakdown map[string]flexFloat `json:"minutes_used_breakdown"`
}

func (r *actionsBilling) validate() error {
	switch {
	case r.TotalMinutesUsed == nil:
		return missing("actions billing", "total_minutes_used")
	case r.TotalPaidMinutesUsed == nil:
		return missing("actions billing", "total_paid_minutes_used")
	case r.IncludedMinutes == nil:
		return missing("actions billing", "included_minutes")
	}
	return nil
}

// packagesBilling is GET /orgs/{org}/settings/billing/packages.
type packagesBilling struct {
	TotalGigabytesBandwidthUsed     *flexFloat `json:"total_gigabytes_bandwidth_used"`
	TotalPaidGigabytesBandwidthUsed *flexFloat `json:"total_paid_gigabytes_bandwidth_used"`
	IncludedGigabytesBandwidth      *flexFloat `json:"included_gigabytes_bandwidth"`
}

func (r *packagesBilling) validate() error {
	switch {
	case r.TotalGigabytesBandwidthUsed == nil:
		return missing("packages billing", "total_gigabytes_bandwidth_used")
	case r.TotalPaidGigabytesBandwidthUsed == nil:
		return missing("packages billing", "total_paid_gigabytes_bandwidth_used")
	case r.IncludedGigabytesBandwidth == nil:
		return missing("packages billing", "included_gigabytes_bandwidth")
	}
	return nil
}

// sharedStorageBilling is GET /orgs/{org}/settings/billing/shared-storage.
type sharedStorageBilling struct {
	DaysLeftInBillingCycle       *flexFloat `json:"days_left_in_billing_cycle"`
	EstimatedPaidStorageForMonth *flexFloat `json:"estimated_paid_storage_for_month"`
	EstimatedStorageForMonth     *flexFloat `json:"estimated_storage_for_month"`
}

func (r *sharedStorageBilling) validate() error {
	switch {
	case r.DaysLeftInBillingCycle == nil:
		return missing("shared storage billing", "days_left_in_billing_cycle")
	case r.EstimatedPaidStorageForMonth == nil:
		return missing("shared storage billing", "estimated_paid_storage_for_month")
	case r.EstimatedStorageForMonth == nil:
		return missing("shared storage billing", "estimated_storage_for_month")
	}
	return nil
}
