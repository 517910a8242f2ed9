package main

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseLogEvictsOldest(t *testing.T) {
	log := NewResponseLog(10)
	for i := 0; i < 15; i++ {
		log.Append("run", fmt.Sprintf("response %d", i))
	}

	responses := log.Responses("run")
	assert.Len(t, responses, 10)
	assert.Equal(t, "response 5", responses[0])

	latest, ok := log.Latest("run")
	assert.True(t, ok)
	assert.Equal(t, "response 14", latest)
}

func TestResponseLogDefaultMax(t *testing.T) {
	log := NewResponseLog(0)
	assert.Equal(t, DefaultMaxResponsesPerCategory, log.Max())

	for i := 0; i < DefaultMaxResponsesPerCategory+5; i++ {
		log.Append("messages", fmt.Sprint(i))
	}
	responses := log.Responses("messages")
	assert.Len(t, responses, DefaultMaxResponsesPerCategory)
	assert.Equal(t, "5", responses[0])
}

func TestResponseLogCategories(t *testing.T) {
	log := NewResponseLog(5)
	log.Append("thread", "{}")
	log.Append("assistant", "{}")
	log.Append("thread", "{}")

	assert.Equal(t, []string{"assistant", "thread"}, log.Categories())

	_, ok := log.Latest("run")
	assert.False(t, ok)
	assert.Empty(t, log.Responses("run"))
}

func TestResponseLogReturnsCopies(t *testing.T) {
	log := NewResponseLog(5)
	log.Append("run", "first")

	responses := log.Responses("run")
	responses[0] = "modified"

	assert.Equal(t, []string{"first"}, log.Responses("run"))
}

func TestResponseLogNilReceiver(t *testing.T) {
	var log *ResponseLog
	assert.NotPanics(t, func() {
		log.Append("run", "{}")
		assert.Empty(t, log.Responses("run"))
		assert.Empty(t, log.Categories())
		_, ok := log.Latest("run")
		assert.False(t, ok)
		assert.Equal(t, DefaultMaxResponsesPerCategory, log.Max())
	})
}

func TestResponseLogConcurrentAppend(t *testing.T) {
	log := NewResponseLog(1000)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				log.Append("file_upload", "{}")
			}
		}()
	}
	wg.Wait()

	assert.Len(t, log.Responses("file_upload"), 500)
}
