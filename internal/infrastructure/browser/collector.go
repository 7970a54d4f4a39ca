package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/agentdock/backend/internal/config"
	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/logger"
)

// testingMarker short-circuits collection so the UI can be exercised
// without spending browser time.
const testingMarker = "--testing"

const testingPoem = `In Gotham's night, a shadow flies,
A cape, a cowl, two watchful eyes.
Justice glides on silent wings,
The Bat, the hope that darkness brings.`

const systemPrompt = `You are a helpful agent that collects documentation for the user to complete a specific task.
You control a web browser one step at a time. Do NOT complete the task yourself, only collect the documentation.
Reply with a single JSON object and nothing else:
{"thought": "<short reasoning>", "action": "navigate" | "done", "url": "<absolute url when navigating>", "params": {}}
Choose "done" once the visited pages cover the task.`

var stepTemplate = template.Must(template.New("step").Parse(`TASK: {{.Task}}

CURRENT PAGE: {{.URL}}
TITLE: {{.Title}}

PAGE TEXT:
{{.Text}}
LINKS:
{{range .Links}}- {{.Text}}: {{.Href}}
{{end}}
Visited so far: {{.Visited}}. Steps left: {{.StepsLeft}}.`))

var summaryTemplate = template.Must(template.New("summary").Parse(`TASK: {{.Task}}

Write concise documentation in Markdown that gives the user what they need to complete the task.
Use only the sources below and cite their URLs.
{{range .Pages}}
SOURCE: {{.URL}}
{{.Text}}
{{end}}`))

type visitedPage struct {
	URL  string
	Text string
}

// Collector implements ports.DocumentationCollector.
type Collector struct {
	dial      Dialer
	model     ports.ChatModel
	modelName string
	cfg       config.BrowserConfig
	logger    *logger.Logger
	now       func() time.Time
}

func NewCollector(dial Dialer, model ports.ChatModel, modelName string, cfg config.BrowserConfig, log *logger.Logger) *Collector {
	if dial == nil {
		dial = DialCDP
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 3
	}
	if cfg.PageTextLimit <= 0 {
		cfg.PageTextLimit = 6000
	}
	return &Collector{
		dial:      dial,
		model:     model,
		modelName: modelName,
		cfg:       cfg,
		logger:    log,
		now:       time.Now,
	}
}

// Collect drives the browser for up to MaxSteps steps, publishing one step
// message per step, then asks the model to write up what it read.
func (c *Collector) Collect(ctx context.Context, req ports.CollectRequest, steps ports.StepPublisher) (*domain.Documentation, error) {
	if strings.Contains(req.Subtask, testingMarker) {
		return &domain.Documentation{Response: testingPoem, Timestamp: c.now()}, nil
	}

	doc, err := c.collect(ctx, req, steps)
	if err != nil {
		if steps != nil {
			steps.Publish(req.SessionID, "Error: "+err.Error())
		}
		c.logger.Errorw("documentation collection failed",
			"session_id", req.SessionID, "browser_index", req.BrowserIndex, "error", err)
		return nil, err
	}
	return doc, nil
}

func (c *Collector) collect(ctx context.Context, req ports.CollectRequest, steps ports.StepPublisher) (*domain.Documentation, error) {
	if req.CDPURL == "" {
		return nil, errors.New("browser: missing cdp url")
	}
	drv, err := c.dial(ctx, req.CDPURL)
	if err != nil {
		return nil, err
	}
	defer drv.Close()

	if err := c.navigate(ctx, drv, c.cfg.StartURL+url.QueryEscape(req.Subtask)); err != nil {
		return nil, err
	}

	var pages []visitedPage
	for step := 1; step <= c.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := c.snapshot(ctx, drv)
		if err != nil {
			return nil, err
		}
		content, err := Extract(page.HTML, page.URL, c.cfg.PageTextLimit)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", page.URL, err)
		}
		pages = append(pages, visitedPage{URL: page.URL, Text: content.Text})

		action, err := c.decide(ctx, req.Subtask, page, content, pages, c.cfg.MaxSteps-step)
		if err != nil {
			return nil, err
		}
		if steps != nil {
			steps.Publish(req.SessionID, FormatStep(c.now(), step, page.URL, action))
		}
		if action.Action == ActionDone {
			break
		}
		if err := c.navigate(ctx, drv, action.URL); err != nil {
			return nil, err
		}
	}

	response, err := c.summarize(ctx, req.Subtask, pages)
	if err != nil {
		return nil, err
	}
	sources := make([]string, 0, len(pages))
	for _, p := range pages {
		sources = append(sources, p.URL)
	}
	return &domain.Documentation{
		Response:  response,
		Sources:   sources,
		Timestamp: c.now(),
	}, nil
}

func (c *Collector) decide(ctx context.Context, task string, page *Page, content *PageContent, pages []visitedPage, stepsLeft int) (*Action, error) {
	visited := make([]string, 0, len(pages))
	for _, p := range pages {
		visited = append(visited, p.URL)
	}
	var prompt strings.Builder
	err := stepTemplate.Execute(&prompt, map[string]interface{}{
		"Task":      task,
		"URL":       page.URL,
		"Title":     page.Title,
		"Text":      content.Text,
		"Links":     content.Links,
		"Visited":   strings.Join(visited, ", "),
		"StepsLeft": stepsLeft,
	})
	if err != nil {
		return nil, fmt.Errorf("render step prompt: %w", err)
	}

	reply, err := c.model.Complete(ctx, ports.ChatRequest{
		Model:       c.modelName,
		System:      systemPrompt,
		User:        prompt.String(),
		Temperature: 0,
	})
	if err != nil {
		return nil, err
	}
	return ParseAction(reply)
}

func (c *Collector) summarize(ctx context.Context, task string, pages []visitedPage) (string, error) {
	var prompt strings.Builder
	if err := summaryTemplate.Execute(&prompt, map[string]interface{}{"Task": task, "Pages": pages}); err != nil {
		return "", fmt.Errorf("render summary prompt: %w", err)
	}
	return c.model.Complete(ctx, ports.ChatRequest{
		Model:  c.modelName,
		System: "You write documentation from web research notes.",
		User:   prompt.String(),
	})
}

func (c *Collector) navigate(ctx context.Context, drv Driver, target string) error {
	stepCtx, cancel := c.stepContext(ctx)
	defer cancel()
	if err := drv.Navigate(stepCtx, target); err != nil {
		return fmt.Errorf("navigate %s: %w", target, err)
	}
	return nil
}

func (c *Collector) snapshot(ctx context.Context, drv Driver) (*Page, error) {
	stepCtx, cancel := c.stepContext(ctx)
	defer cancel()
	return drv.Snapshot(stepCtx)
}

func (c *Collector) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.StepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.StepTimeout)
}
