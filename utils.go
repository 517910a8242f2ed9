package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const maxConcurrentTransfers = 5

// configureLogging takes a log level in string format
// and configures the sirupsen/logrus package. the provided
// log level string is case insensitive.
func configureLogging(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		log.SetLevel(log.DebugLevel)
	case "INFO":
		log.SetLevel(log.InfoLevel)
	case "WARN":
		log.SetLevel(log.WarnLevel)
	case "ERROR":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// getDefaultStateDir returns the directory holding the config file and the
// persisted ids (usually ~/.goadvisor).
func getDefaultStateDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".goadvisor")
}

// getDefaultConfigPath retrieves the default config path
// based on the provided OS (usually this is ~/.goadvisor/config.json).
func getDefaultConfigPath() string {
	return filepath.Join(getDefaultStateDir(), "config.json")
}

// getCliInput retrieves a given value from std using the
// provided CLI. A follow on action can be optionally provided
func getCliInput(reader *bufio.Reader, prompt string, action func(value string) (string, error)) (string, error) {
	fmt.Print(prompt)
	// read value from stdin and remove \n characters. a closed input
	// with nothing left to read is reported to the caller
	value, err := reader.ReadString('\n')
	if err != nil && len(value) == 0 {
		return "", err
	}
	value = strings.TrimRight(value, "\r\n")

	// execute post action and return function
	value, err = action(value)
	if err != nil {
		return value, err
	} else {
		return value, nil
	}
}

// splitList splits a comma separated list and drops empty entries.
func splitList(value string) []string {
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func Ptr[T any](value T) *T {
	return &value
}

// uploadFiles uploads multiple files concurrently using the provided client.
// It limits the number of concurrent uploads using a semaphore.
//
// Parameters:
//   - ctx: The context bounding the uploads.
//   - client: The service used to upload the files.
//   - paths: The local paths of the files to upload.
//
// Returns:
//   - The file ids, index-aligned with paths. Failed uploads leave an empty id.
//   - The aggregated upload errors, or nil if every upload succeeded.
func uploadFiles(ctx context.Context, client AssistantService, paths []string) ([]string, error) {
	var result error
	var mu sync.Mutex
	fileIds := make([]string, len(paths))

	sem := semaphore.NewWeighted(maxConcurrentTransfers)

	var wg sync.WaitGroup
	for i, path := range paths {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result = multierror.Append(result, err)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(index int, path string) {
			defer wg.Done()
			defer sem.Release(1)

			fileId, err := client.UploadFile(ctx, path, PurposeAssistants)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Debug(fmt.Sprintf("error uploading file %s: %+v", path, err))
				result = multierror.Append(result, fmt.Errorf("uploading %s: %w", path, err))
				return
			}
			fileIds[index] = fileId
		}(i, path)
	}
	wg.Wait()

	return fileIds, result
}

// deleteFiles deletes the given uploaded files concurrently, skipping empty
// ids, and returns the aggregated errors.
func deleteFiles(ctx context.Context, client AssistantService, fileIds []string) error {
	var result error
	var mu sync.Mutex

	sem := semaphore.NewWeighted(maxConcurrentTransfers)

	var wg sync.WaitGroup
	for _, fid := range fileIds {
		if fid == "" {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result = multierror.Append(result, err)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer sem.Release(1)

			if err := client.DeleteResource(ctx, "files", id); err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
		}(fid)
	}
	wg.Wait()

	return result
}
