package services

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
)

const maxSlugLength = 60

type docPublisher struct {
	writer      ports.FileWriter
	executor    ports.CommandExecutor
	projectsDir string
	logger      *logger.Logger
}

// NewDocPublisher writes rendered documentation into a sandbox project.
// With a FileWriter the file goes over SFTP; otherwise a heredoc is run
// through the executor.
func NewDocPublisher(writer ports.FileWriter, executor ports.CommandExecutor, projectsDir string, log *logger.Logger) ports.DocumentationPublisher {
	return &docPublisher{
		writer:      writer,
		executor:    executor,
		projectsDir: projectsDir,
		logger:      log,
	}
}

// Publish returns the written path relative to the project directory.
func (p *docPublisher) Publish(ctx context.Context, input ports.PublishInput) (string, error) {
	if strings.TrimSpace(input.ProjectName) == "" {
		return "", fmt.Errorf("publish documentation: project name is required")
	}
	rel := path.Join("docs", Slug(input.Title)+".md")
	body := RenderMarkdown(input)

	if p.writer != nil {
		full := path.Join(domain.ResolveProjectDir(p.projectsDir, input.ProjectName), rel)
		if err := p.writer.WriteFile(ctx, full, []byte(body)); err != nil {
			p.logger.Errorw("doc_publish_failed", "path", full, "error", err)
			return "", fmt.Errorf("publish documentation: %w", err)
		}
		p.logger.Infow("doc_publish_ok", "path", full, "bytes", len(body))
		return rel, nil
	}

	if p.executor == nil {
		return "", ErrBackendUnavailable
	}
	res := p.executor.Execute(ctx, ports.ExecuteInput{
		Command:     heredoc(rel, body),
		ProjectName: input.ProjectName,
	})
	if !res.Success {
		p.logger.Errorw("doc_publish_failed", "path", rel, "project", input.ProjectName, "error", res.Error)
		return "", fmt.Errorf("publish documentation: %s", res.Error)
	}
	p.logger.Infow("doc_publish_ok", "path", rel, "project", input.ProjectName, "bytes", len(body))
	return rel, nil
}

// heredoc writes body to rel with a delimiter that cannot occur in body.
func heredoc(rel, body string) string {
	delim := "AGENTDOCK_DOC"
	for strings.Contains(body, delim) {
		delim = "AGENTDOCK_DOC_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return fmt.Sprintf("mkdir -p %s && cat > %s <<'%s'\n%s%s", path.Dir(rel), rel, delim, body, delim)
}

// RenderMarkdown lays out a title, summary and sections in key order.
func RenderMarkdown(input ports.PublishInput) string {
	var b strings.Builder
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "Documentation"
	}
	fmt.Fprintf(&b, "# %s\n", title)
	if s := strings.TrimSpace(input.Summary); s != "" {
		fmt.Fprintf(&b, "\n%s\n", s)
	}

	keys := make([]string, 0, len(input.Sections))
	for k := range input.Sections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", k, strings.TrimSpace(input.Sections[k]))
	}
	return b.String()
}

// Slug turns a title into a file name of lower-case letters, digits and dashes.
func Slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= maxSlugLength {
			break
		}
	}
	s := strings.TrimRight(b.String(), "-")
	if s == "" {
		return "documentation"
	}
	return s
}
