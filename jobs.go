package issuesheet

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v3"
)

// Job describes one repository exported to one spreadsheet tab.
type Job struct {
	Repository  string `yaml:"repository" json:"repository"`
	Types       string `yaml:"types" json:"types,omitempty"`
	SheetURL    string `yaml:"sheet_url" json:"sheet_url"`
	DeltaUpdate bool   `yaml:"delta_update" json:"delta_update"`
}

var repositoryRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

func (j *Job) Validate() error {
	if !repositoryRe.MatchString(j.Repository) {
		return fmt.Errorf("repository %q must be owner/name", j.Repository)
	}
	if _, err := ParseIssueTypes(j.Types); err != nil {
		return err
	}
	if _, _, err := ParseSheetURL(j.SheetURL); err != nil {
		return err
	}
	return nil
}

// Criteria returns the search criteria of a full export.
func (j *Job) Criteria() (IssueSearchCriteria, error) {
	types, err := ParseIssueTypes(j.Types)
	if err != nil {
		return IssueSearchCriteria{}, err
	}
	return IssueSearchCriteria{Repo: j.Repository, Types: types}, nil
}

func (j *Job) Props() SheetProps {
	return SheetProps{SheetURL: j.SheetURL, DeltaUpdate: j.DeltaUpdate}
}

// Wants reports whether the job exports issues of type t.
func (j *Job) Wants(t IssueType) bool {
	criteria, err := j.Criteria()
	return err == nil && criteria.has(t)
}

// Jobs is the export configuration of a long running service.
type Jobs struct {
	Exports []Job `yaml:"exports"`
}

// LoadJobs reads and validates a YAML jobs file.
func LoadJobs(path string) (*Jobs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs: %w", err)
	}
	var jobs Jobs
	if err := yaml.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("parse jobs %s: %w", path, err)
	}
	if err := jobs.Validate(); err != nil {
		return nil, fmt.Errorf("validate jobs %s: %w", path, err)
	}
	return &jobs, nil
}

func (j *Jobs) Validate() error {
	if len(j.Exports) == 0 {
		return errors.New("no exports configured")
	}
	var errs []error
	for i := range j.Exports {
		if err := j.Exports[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("export %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// ForRepository returns the jobs exporting repository, or every job when
// repository is empty. GitHub repository names are case insensitive.
func (j *Jobs) ForRepository(repository string) []Job {
	if repository == "" {
		return slices.Clone(j.Exports)
	}
	var jobs []Job
	for _, job := range j.Exports {
		if strings.EqualFold(job.Repository, repository) {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// Repositories lists the distinct configured repositories, sorted.
func (j *Jobs) Repositories() []string {
	set := make(map[string]struct{}, len(j.Exports))
	for _, job := range j.Exports {
		set[strings.ToLower(job.Repository)] = struct{}{}
	}
	repos := maps.Keys(set)
	slices.Sort(repos)
	return repos
}
