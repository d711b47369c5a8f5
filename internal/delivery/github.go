package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/crucidev/crucible/internal/config"
	"github.com/crucidev/crucible/internal/constants"
	crucerrors "github.com/crucidev/crucible/internal/errors"
	"github.com/crucidev/crucible/internal/git"
)

const (
	workflowRelPath   = ".github/workflows/ci.yml"
	gitignoreFileName = ".gitignore"
	deliveryCommitMsg = "Initial delivery of generated project"
)

const gitignoreContent = `__pycache__/
*.pyc
dist/
build/
*.spec
.venv/
`

// ciWorkflow models the generated GitHub Actions workflow file.
type ciWorkflow struct {
	Name string                   `yaml:"name"`
	On   map[string]any           `yaml:"on"`
	Jobs map[string]ciWorkflowJob `yaml:"jobs"`
}

type ciWorkflowJob struct {
	RunsOn string           `yaml:"runs-on"`
	Steps  []map[string]any `yaml:"steps"`
}

// repoPublisher is the slice of the git runner the packager needs.
type repoPublisher interface {
	Init(ctx context.Context) error
	Add(ctx context.Context, paths []string) error
	Commit(ctx context.Context, message string) (string, error)
	AddRemote(ctx context.Context, name, url string) error
	Push(ctx context.Context, remote, branch string) error
}

// GitHubPackager finishes an export as a GitHub-ready repository: CI
// workflow, .gitignore, an initial commit, and an optional push when a
// remote URL is configured.
type GitHubPackager struct {
	remote    string
	remoteURL string
	push      bool

	// newPublisher creates the git runner for a delivery directory.
	newPublisher func(workDir string) (repoPublisher, error)
}

// NewGitHubPackager creates a GitHubPackager from delivery configuration.
func NewGitHubPackager(cfg config.DeliveryConfig) *GitHubPackager {
	return &GitHubPackager{
		remote:    cfg.GitRemote,
		remoteURL: cfg.RemoteURL,
		push:      cfg.Push,
		newPublisher: func(workDir string) (repoPublisher, error) {
			return git.NewRunner(workDir)
		},
	}
}

// Method implements Packager.
func (p *GitHubPackager) Method() constants.DeliveryMethod { return constants.DeliveryGitHub }

// Package initializes a repository in the exported tree, commits it, and
// pushes when configured to.
func (p *GitHubPackager) Package(ctx context.Context, dest string) (*Result, error) {
	log := []string{"exported working tree to " + dest}

	if err := p.writeRepoFiles(dest); err != nil {
		return nil, err
	}
	log = append(log, "wrote "+workflowRelPath, "wrote "+gitignoreFileName)

	publisher, err := p.newPublisher(dest)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, crucerrors.ErrDeliveryFailed)
	}

	if err := publisher.Init(ctx); err != nil {
		return nil, fmt.Errorf("%v: %w", err, crucerrors.ErrDeliveryFailed)
	}
	if err := publisher.Add(ctx, nil); err != nil {
		return nil, fmt.Errorf("%v: %w", err, crucerrors.ErrDeliveryFailed)
	}
	hash, err := publisher.Commit(ctx, deliveryCommitMsg)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, crucerrors.ErrDeliveryFailed)
	}
	log = append(log, "committed "+hash)

	location := dest
	if p.push && p.remoteURL != "" {
		if err := publisher.AddRemote(ctx, p.remote, p.remoteURL); err != nil {
			return nil, fmt.Errorf("%v: %w", err, crucerrors.ErrDeliveryFailed)
		}
		if err := publisher.Push(ctx, p.remote, "main"); err != nil {
			return nil, fmt.Errorf("%v: %w", err, crucerrors.ErrDeliveryFailed)
		}
		log = append(log, "pushed main to "+p.remoteURL)
		location = p.remoteURL
	}

	return &Result{
		Method:   constants.DeliveryGitHub,
		Location: location,
		Log:      log,
	}, nil
}

// writeRepoFiles adds the CI workflow and .gitignore to the export.
func (p *GitHubPackager) writeRepoFiles(dest string) error {
	workflowPath := filepath.Join(dest, filepath.FromSlash(workflowRelPath))
	if err := os.MkdirAll(filepath.Dir(workflowPath), 0o750); err != nil {
		return fmt.Errorf("%v: %w", err, crucerrors.ErrDeliveryFailed)
	}

	data, err := yaml.Marshal(defaultWorkflow())
	if err != nil {
		return fmt.Errorf("%v: %w", err, crucerrors.ErrDeliveryFailed)
	}
	if err := os.WriteFile(workflowPath, data, 0o600); err != nil {
		return fmt.Errorf("%v: %w", err, crucerrors.ErrDeliveryFailed)
	}

	ignorePath := filepath.Join(dest, gitignoreFileName)
	if err := os.WriteFile(ignorePath, []byte(gitignoreContent), 0o600); err != nil {
		return fmt.Errorf("%v: %w", err, crucerrors.ErrDeliveryFailed)
	}
	return nil
}

func defaultWorkflow() ciWorkflow {
	return ciWorkflow{
		Name: "ci",
		On: map[string]any{
			"push":         map[string]any{"branches": []string{"main"}},
			"pull_request": map[string]any{"branches": []string{"main"}},
		},
		Jobs: map[string]ciWorkflowJob{
			"test": {
				RunsOn: "ubuntu-latest",
				Steps: []map[string]any{
					{"uses": "actions/checkout@v4"},
					{
						"uses": "actions/setup-python@v5",
						"with": map[string]any{"python-version": "3.12"},
					},
					{"run": "pip install -r requirements.txt || true"},
					{"run": "python -m pytest -q"},
				},
			},
		},
	}
}
