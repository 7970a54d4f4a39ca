package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubtaskSingleBrowser(t *testing.T) {
	assert.Equal(t,
		"Research and collect documentation for: FastAPI auth. Focus on official documentation, tutorials, and best practices. Visit 1-2 high-quality sources.",
		Subtask("FastAPI auth", 0, 1))
}

func TestSubtaskTwoBrowsers(t *testing.T) {
	assert.Equal(t,
		"Research and collect documentation for: x. Focus on official documentation and API references. Visit 1-2 authoritative sources.",
		Subtask("x", 0, 2))
	assert.Equal(t,
		"Research and collect documentation for: x. Focus on tutorials, examples, and community resources. Visit 1-2 practical sources.",
		Subtask("x", 1, 2))
}

func TestSubtaskThreeOrMoreBrowsers(t *testing.T) {
	assert.Contains(t, Subtask("x", 0, 3), "official documentation and API references")
	assert.Equal(t,
		"Research and collect documentation for: x. Focus on tutorials and practical examples. Visit 1-2 tutorial sources.",
		Subtask("x", 1, 3))
	assert.Equal(t,
		"Research and collect documentation for: x. Focus on community resources and best practices. Visit 1-2 community sources.",
		Subtask("x", 2, 3))
	assert.Equal(t, Subtask("x", 2, 5), Subtask("x", 4, 5))
}

func TestSubtasksAreDistinctUpToThree(t *testing.T) {
	for total := 1; total <= 3; total++ {
		seen := map[string]bool{}
		for i := 0; i < total; i++ {
			s := Subtask("task", i, total)
			assert.False(t, seen[s], "duplicate subtask for %d/%d", i, total)
			seen[s] = true
		}
	}
}
