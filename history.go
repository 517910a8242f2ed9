package main

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

const (
	chatHistoryFile = "chat_history.txt"
	personalFAQFile = "personal_faq.txt"

	// a question asked this many times is promoted to the personal FAQ
	faqPromotionCount = 3
)

// commands typed into the chat loop are never recorded as questions
var ignoredQuestions = map[string]bool{
	"exit":  true,
	"reset": true,
	"back":  true,
	"faq":   true,
	"help":  true,
}

// QuestionHistory records every question asked in the chat and keeps a
// personal FAQ of the questions that keep coming back.
type QuestionHistory struct {
	Dir string

	mu     sync.Mutex
	counts map[string]int
}

func NewQuestionHistory(dir string) *QuestionHistory {
	return &QuestionHistory{
		Dir:    dir,
		counts: map[string]int{},
	}
}

func normalizeQuestion(question string) string {
	return strings.ToLower(strings.Join(strings.Fields(question), " "))
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	} else if err != nil {
		return nil, err
	}
	defer file.Close()

	lines := []string{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func appendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.WriteString(line + "\n")
	return err
}

// Load counts the questions already present in the history file so that
// promotion carries across chats.
func (h *QuestionHistory) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	lines, err := readLines(filepath.Join(h.Dir, chatHistoryFile))
	if err != nil {
		return err
	}
	h.counts = map[string]int{}
	for _, line := range lines {
		h.counts[normalizeQuestion(line)]++
	}
	log.Debug(fmt.Sprintf("loaded %d questions from chat history", len(lines)))
	return nil
}

// Record appends question to the history. It reports whether the question
// was promoted to the personal FAQ by this call.
func (h *QuestionHistory) Record(question string) (bool, error) {
	question = strings.TrimSpace(question)
	key := normalizeQuestion(question)
	if key == "" || ignoredQuestions[key] {
		return false, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := appendLine(filepath.Join(h.Dir, chatHistoryFile), question); err != nil {
		return false, err
	}
	h.counts[key]++
	if h.counts[key] != faqPromotionCount {
		return false, nil
	}

	if err := appendLine(filepath.Join(h.Dir, personalFAQFile), "- "+question); err != nil {
		return false, err
	}
	log.Debug(fmt.Sprintf("promoted question %q to personal faq", question))
	return true, nil
}

// FAQ returns the promoted questions in the order they were promoted.
func (h *QuestionHistory) FAQ() ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	lines, err := readLines(filepath.Join(h.Dir, personalFAQFile))
	if err != nil {
		return nil, err
	}
	questions := make([]string, 0, len(lines))
	for _, line := range lines {
		questions = append(questions, strings.TrimPrefix(line, "- "))
	}
	return questions, nil
}
