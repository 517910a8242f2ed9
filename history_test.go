package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionHistoryPromotion(t *testing.T) {
	history := NewQuestionHistory(t.TempDir())

	for i := 0; i < 2; i++ {
		promoted, err := history.Record("When is CS 220 offered?")
		require.NoError(t, err)
		assert.False(t, promoted)
	}

	// differences in case and spacing count as the same question
	promoted, err := history.Record("  when is CS 220   offered? ")
	require.NoError(t, err)
	assert.True(t, promoted)

	// a question is promoted only once
	promoted, err = history.Record("When is CS 220 offered?")
	require.NoError(t, err)
	assert.False(t, promoted)

	faq, err := history.FAQ()
	require.NoError(t, err)
	assert.Equal(t, []string{"when is CS 220   offered?"}, faq)
}

func TestQuestionHistoryIgnoresCommands(t *testing.T) {
	dir := t.TempDir()
	history := NewQuestionHistory(dir)

	for _, question := range []string{"", "  ", "exit", "RESET", "back", "faq"} {
		promoted, err := history.Record(question)
		require.NoError(t, err)
		assert.False(t, promoted)
	}

	assert.NoFileExists(t, filepath.Join(dir, chatHistoryFile))
}

func TestQuestionHistoryLoad(t *testing.T) {
	dir := t.TempDir()
	content := "What is my GPA?\nWhat is my GPA?\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, chatHistoryFile), []byte(content), 0644))

	history := NewQuestionHistory(dir)
	require.NoError(t, history.Load())

	promoted, err := history.Record("What is my GPA?")
	require.NoError(t, err)
	assert.True(t, promoted)

	lines, err := readLines(filepath.Join(dir, chatHistoryFile))
	require.NoError(t, err)
	assert.Len(t, lines, 3)
}

func TestQuestionHistoryEmptyFAQ(t *testing.T) {
	history := NewQuestionHistory(t.TempDir())
	require.NoError(t, history.Load())

	faq, err := history.FAQ()
	require.NoError(t, err)
	assert.Empty(t, faq)
}
