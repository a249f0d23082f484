// Package gitx wraps the system git binary. Every mutation on the hub goes
// through the Gateway so the run log is complete and failures surface the
// same way everywhere.
package gitx

import (
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Runner provides git commands. Interface for testing.
type Runner interface {
	Run(dir string, args ...string) (string, error)
}

// ExecGit implements Runner using exec.Command.
type ExecGit struct {
	Log *zap.Logger // optional; every invocation is logged when set
}

func (g *ExecGit) Run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if g.Log != nil {
		g.Log.Info("git",
			zap.String("dir", dir),
			zap.Strings("args", args),
			zap.Bool("ok", err == nil),
			zap.String("output", trimmed),
		)
	}
	if err != nil {
		return trimmed, fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), trimmed, err)
	}
	return trimmed, nil
}

// Repo binds a Runner to one working tree and exposes the operations the
// pipeline needs.
type Repo struct {
	git Runner
	dir string
}

// NewRepo creates a Repo rooted at dir.
func NewRepo(git Runner, dir string) *Repo {
	return &Repo{git: git, dir: dir}
}

// Dir returns the working-tree root.
func (r *Repo) Dir() string {
	return r.dir
}

// CurrentBranch returns the checked-out branch name.
func (r *Repo) CurrentBranch() (string, error) {
	return r.git.Run(r.dir, "rev-parse", "--abbrev-ref", "HEAD")
}

// Head returns the current HEAD commit hash.
func (r *Repo) Head() (string, error) {
	return r.git.Run(r.dir, "rev-parse", "HEAD")
}

// RemoteURL returns the fetch URL for a remote.
func (r *Repo) RemoteURL(remote string) (string, error) {
	return r.git.Run(r.dir, "remote", "get-url", remote)
}

// Fetch updates a remote's refs.
func (r *Repo) Fetch(remote string) error {
	_, err := r.git.Run(r.dir, "fetch", remote)
	return err
}

// FetchFrom fetches a single ref from an arbitrary repository path or URL.
// The result is available as FETCH_HEAD.
func (r *Repo) FetchFrom(source, ref string) error {
	_, err := r.git.Run(r.dir, "fetch", source, ref)
	return err
}

// ResetHard resets the current branch pointer and working tree to ref.
func (r *Repo) ResetHard(ref string) error {
	_, err := r.git.Run(r.dir, "reset", "--hard", ref)
	return err
}

// Checkout switches to an existing branch.
func (r *Repo) Checkout(branch string) error {
	_, err := r.git.Run(r.dir, "checkout", branch)
	return err
}

// CheckoutNew creates branch from startPoint and switches to it. startPoint
// may be empty to branch from HEAD.
func (r *Repo) CheckoutNew(branch, startPoint string) error {
	args := []string{"checkout", "-b", branch}
	if startPoint != "" {
		args = append(args, startPoint)
	}
	_, err := r.git.Run(r.dir, args...)
	return err
}

// BranchExists reports whether a local branch exists.
func (r *Repo) BranchExists(branch string) bool {
	_, err := r.git.Run(r.dir, "rev-parse", "--verify", "refs/heads/"+branch)
	return err == nil
}

// DeleteBranch force-deletes a local branch. Non-existence is not an error.
func (r *Repo) DeleteBranch(branch string) error {
	if !r.BranchExists(branch) {
		return nil
	}
	_, err := r.git.Run(r.dir, "branch", "-D", branch)
	return err
}

// Apply applies a patch file to the working tree.
func (r *Repo) Apply(patchPath string) (string, error) {
	return r.git.Run(r.dir, "apply", "--whitespace=nowarn", patchPath)
}

// Diff returns the patch between two refs.
func (r *Repo) Diff(fromRef, toRef string) (string, error) {
	return r.git.Run(r.dir, "diff", fromRef, toRef)
}

// DiffNameOnly returns the files changed between two refs, repo-relative.
func (r *Repo) DiffNameOnly(fromRef, toRef string) ([]string, error) {
	out, err := r.git.Run(r.dir, "diff", "--name-only", fromRef, toRef)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// DiffShortstat returns the "N files changed, A insertions, D deletions" line.
func (r *Repo) DiffShortstat(fromRef, toRef string) (string, error) {
	return r.git.Run(r.dir, "diff", "--shortstat", fromRef, toRef)
}

// StatusPorcelain returns the porcelain status lines, one per entry.
func (r *Repo) StatusPorcelain() ([]string, error) {
	out, err := r.git.Run(r.dir, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// CommitAll stages everything and commits with message. Returns the new HEAD.
func (r *Repo) CommitAll(message string) (string, error) {
	if _, err := r.git.Run(r.dir, "add", "-A"); err != nil {
		return "", err
	}
	if _, err := r.git.Run(r.dir, "commit", "--allow-empty", "-m", message); err != nil {
		return "", err
	}
	return r.Head()
}

// Push pushes src to remote as dst (refspec src:dst).
func (r *Repo) Push(remote, src, dst string) error {
	_, err := r.git.Run(r.dir, "push", remote, src+":"+dst)
	return err
}

// Merge fast-forwards the current branch to ref; refuses non-ff merges.
func (r *Repo) Merge(ref string) error {
	_, err := r.git.Run(r.dir, "merge", "--ff-only", ref)
	return err
}

// Log returns hash, subject, author, and ISO date for commits in revRange.
func (r *Repo) Log(revRange string) ([]string, error) {
	out, err := r.git.Run(r.dir, "log", "--format=%H%x1f%s%x1f%an%x1f%aI", revRange)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// CloneShallow clones url into target with depth 1.
func (r *Repo) CloneShallow(url, target string) error {
	_, err := r.git.Run("", "clone", "--depth", "1", url, target)
	return err
}

func splitLines(out string) []string {
	if out == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
