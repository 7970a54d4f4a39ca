package browser

import (
	"fmt"
	"strings"
	"time"
)

var stepRule = strings.Repeat("-", 60)

// FormatStep renders the progress message published for each agent step.
func FormatStep(at time.Time, step int, currentURL string, a *Action) string {
	lines := []string{
		fmt.Sprintf("🔄 [%s] Step %d", at.Format("15:04:05"), step),
		fmt.Sprintf("🌐 URL: %s", currentURL),
	}
	if a != nil {
		if a.Thought != "" {
			lines = append(lines, fmt.Sprintf("💭 Thought: %s", a.Thought))
		}
		lines = append(lines, fmt.Sprintf("⚡ Action: %s", a.Action))
		if p := a.ParamsString(); p != "" {
			lines = append(lines, fmt.Sprintf("📝 Params: %s", p))
		}
	}
	lines = append(lines, stepRule)
	return strings.Join(lines, "\n")
}
