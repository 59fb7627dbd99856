package stager

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/agentforge/controlplane/internal/apperr"
)

// githubURLPattern matches /{owner}/{repo}(.git)?(/tree/{branch})? on a
// github.com or www.github.com host. Restricting to GitHub is the spec's
// stated scope for type=url entries; anything else is rejected.
var githubURLPattern = regexp.MustCompile(`^/([^/]+)/([^/]+?)(?:\.git)?(?:/tree/([^/]+))?/?$`)

type githubRef struct {
	owner  string
	repo   string
	branch string
}

func parseGithubURL(raw string) (githubRef, bool) {
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return githubRef{}, false
	}

	withoutScheme := raw[strings.Index(raw, "://")+3:]
	slash := strings.Index(withoutScheme, "/")
	if slash < 0 {
		return githubRef{}, false
	}
	host := strings.ToLower(withoutScheme[:slash])
	if host != "github.com" && host != "www.github.com" {
		return githubRef{}, false
	}

	path := withoutScheme[slash:]
	m := githubURLPattern.FindStringSubmatch(path)
	if m == nil {
		return githubRef{}, false
	}
	return githubRef{owner: m[1], repo: m[2], branch: m[3]}, true
}

func (s *Stager) stageURL(ctx context.Context, inputsDir string, entry Entry) (Staged, bool, error) {
	url := firstNonEmpty(entry.URL, entry.Source)
	ref, ok := parseGithubURL(url)
	if !ok {
		s.log.Warn("dropping input_files entry with unsupported repo host", zap.String("url", url))
		return Staged{}, false, nil
	}
	branch := entry.Branch
	if branch == "" {
		branch = ref.branch
	}

	relPath := firstNonEmpty(entry.TargetPath, entry.Name, ref.repo)
	dest, ok := safeJoin(inputsDir, relPath)
	if !ok {
		s.log.Warn("dropping input_files entry with unsafe target path",
			zap.String("url", url), zap.String("target_path", relPath))
		return Staged{}, false, nil
	}

	if _, err := os.Stat(dest); err == nil {
		if err := os.RemoveAll(dest); err != nil {
			return Staged{}, false, apperr.Wrap(err, "remove existing staged repo")
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Staged{}, false, apperr.Wrap(err, "create repo parent directory")
	}

	args := []string{"clone", "--depth", "1", "--single-branch"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, dest)

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	output, err := cmd.CombinedOutput()
	if err != nil {
		s.log.Error("git clone failed",
			zap.String("url", url), zap.String("output", string(output)))
		return Staged{}, false, apperr.ExternalService("git clone "+url, err)
	}

	name := firstNonEmpty(entry.Name, ref.repo)
	return Staged{
		Type:   entry.Type,
		Name:   name,
		URL:    url,
		Branch: branch,
		Path:   "/inputs/" + filepath.ToSlash(relPath),
	}, true, nil
}
