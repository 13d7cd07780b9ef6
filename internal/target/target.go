package target

import (
	"fmt"
	"sort"
	"strings"
)

// Kind distinguishes repository targets from organization targets.
type Kind string

const (
	KindRepository   Kind = "repository"
	KindOrganization Kind = "organization"
)

// Target is one configured repository or organization.
type Target struct {
	Owner string
	Name  string // empty for organizations
	Kind  Kind
}

// Repository returns a repository target.
func Repository(owner, name string) Target {
	return Target{Owner: owner, Name: name, Kind: KindRepository}
}

// Organization returns an organization target.
func Organization(login string) Target {
	return Target{Owner: login, Kind: KindOrganization}
}

// ID is the stable identifier used for ordering and labels:
// "owner/name" for repositories and "owner" for organizations.
func (t Target) ID() string {
	if t.Kind == KindOrganization {
		return t.Owner
	}
	return t.Owner + "/" + t.Name
}

func (t Target) String() string {
	return string(t.Kind) + ":" + t.ID()
}

// ParseRepository parses an "owner/name" identifier.
func ParseRepository(s string) (Target, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Target{}, fmt.Errorf("repository %q must be in format owner/name", s)
	}
	return Repository(owner, name), nil
}

// ParseOrganization parses an organization login.
func ParseOrganization(s string) (Target, error) {
	login := strings.TrimSpace(s)
	if login == "" || strings.Contains(login, "/") {
		return Target{}, fmt.Errorf("invalid organization %q", s)
	}
	return Organization(login), nil
}

// Sort orders targets by ID, then kind. Repositories and organizations
// may share an owner, so kind breaks the tie.
func Sort(targets []Target) {
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].ID() != targets[j].ID() {
			return targets[i].ID() < targets[j].ID()
		}
		return targets[i].Kind < targets[j].Kind
	})
}

