package services

import "fmt"

// Subtask assigns browser index of total a focus area for task.
func Subtask(task string, index, total int) string {
	prefix := fmt.Sprintf("Research and collect documentation for: %s. ", task)
	if total <= 1 {
		return prefix + "Focus on official documentation, tutorials, and best practices. Visit 1-2 high-quality sources."
	}
	if index == 0 {
		return prefix + "Focus on official documentation and API references. Visit 1-2 authoritative sources."
	}
	if total == 2 {
		return prefix + "Focus on tutorials, examples, and community resources. Visit 1-2 practical sources."
	}
	if index == 1 {
		return prefix + "Focus on tutorials and practical examples. Visit 1-2 tutorial sources."
	}
	return prefix + "Focus on community resources and best practices. Visit 1-2 community sources."
}
