// Package deploy publishes the build output tree to a git branch, the
// gh-pages style of static hosting.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Options configures a deployment.
type Options struct {
	ProjectRoot string
	OutputDir   string
	// Branch is the target branch on the remote, e.g. gh-pages.
	Branch string
	// Remote is a remote name resolved against the project repository, or a
	// URL used directly.
	Remote  string
	Message string
	Logger  *slog.Logger
}

// Deploy commits the current output tree and force-pushes it to the target
// branch. The output directory carries its own repository so deploy history
// never touches the project repository's working tree. Returns the commit
// hash that was pushed.
func Deploy(ctx context.Context, opts Options) (string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Message == "" {
		opts.Message = fmt.Sprintf("deploy %s", time.Now().UTC().Format(time.RFC3339))
	}

	remoteURL, err := resolveRemoteURL(opts.ProjectRoot, opts.Remote)
	if err != nil {
		return "", err
	}

	repo, err := openOrInit(opts.OutputDir)
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open deploy worktree: %w", err)
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("stage output tree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("read worktree status: %w", err)
	}
	if status.IsClean() {
		head, err := repo.Head()
		if err != nil {
			return "", errors.New("nothing to deploy: output tree is empty")
		}
		logger.Info("Output unchanged since last deploy, pushing existing commit")
		return head.Hash().String(), pushHead(ctx, repo, remoteURL, opts.Branch, logger)
	}

	hash, err := wt.Commit(opts.Message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "nitro",
			Email: "nitro@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("commit output tree: %w", err)
	}
	logger.Info("Deploy commit created", "commit", hash.String()[:8], "message", opts.Message)

	return hash.String(), pushHead(ctx, repo, remoteURL, opts.Branch, logger)
}

func openOrInit(dir string) (*git.Repository, error) {
	repo, err := git.PlainOpen(dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open deploy repository: %w", err)
	}
	repo, err = git.PlainInit(dir, false)
	if err != nil {
		return nil, fmt.Errorf("init deploy repository: %w", err)
	}
	return repo, nil
}

// resolveRemoteURL accepts either a URL or a remote name defined in the
// project repository.
func resolveRemoteURL(projectRoot, remote string) (string, error) {
	if strings.Contains(remote, "://") || strings.Contains(remote, "@") || strings.HasPrefix(remote, "/") || strings.HasPrefix(remote, ".") {
		return remote, nil
	}
	repo, err := git.PlainOpen(projectRoot)
	if err != nil {
		return "", fmt.Errorf("open project repository to resolve remote %q: %w", remote, err)
	}
	r, err := repo.Remote(remote)
	if err != nil {
		return "", fmt.Errorf("resolve remote %q: %w", remote, err)
	}
	urls := r.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote %q has no URL", remote)
	}
	return urls[0], nil
}

// pushHead force-pushes the deploy repository's HEAD to the target branch.
// Force is intentional: deploy history is disposable and rebuilt output
// need not fast-forward.
func pushHead(ctx context.Context, repo *git.Repository, remoteURL, branch string, logger *slog.Logger) error {
	refSpec := gitcfg.RefSpec(fmt.Sprintf("+HEAD:refs/heads/%s", branch))
	err := repo.PushContext(ctx, &git.PushOptions{
		RemoteURL: remoteURL,
		RefSpecs:  []gitcfg.RefSpec{refSpec},
		Force:     true,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		logger.Info("Deploy branch already up to date", "branch", branch)
		return nil
	}
	if err != nil {
		return fmt.Errorf("push to %s: %w", branch, err)
	}
	logger.Info("Deployed", "branch", branch, "remote", remoteURL)
	return nil
}
