package main

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// fakeAssistantService records every call and answers from canned values.
type fakeAssistantService struct {
	mu sync.Mutex

	calls []string

	uploadErrs         map[string]error
	createAssistantErr error
	vectorStoreErr     error
	getVectorStoreErr  error
	modifyErr          error
	threadErr          error
	addMessageErr      error
	runErr             error
	listErr            error
	cancelErr          error

	// called once the assistant has been created
	afterCreateAssistant func()

	// statuses are returned by RetrieveRun in order, the last one repeating.
	// Cancelled runs report cancelStatuses instead.
	statuses       []RunStatus
	cancelStatuses []RunStatus
	messages       []string

	uploaded      []string
	vectorFileIds []string
	vectorOptions VectorStoreOptions
	vectorRenames []string
	assistantOpts []AssistantOptions
	threadOptions []ThreadOptions
	added         []string
	runOptions    []RunOptions
	cancelled     []string
	deleted       []string

	retrieved       int
	cancelRetrieved int
	lastRun         string
	nextId          int
}

func newFakeAssistantService() *fakeAssistantService {
	return &fakeAssistantService{
		uploadErrs:     map[string]error{},
		statuses:       []RunStatus{RunStatusCompleted},
		cancelStatuses: []RunStatus{RunStatusCancelling, RunStatusCancelled},
		messages:       []string{"reply"},
	}
}

func (f *fakeAssistantService) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeAssistantService) id(prefix string) string {
	f.nextId++
	return fmt.Sprintf("%s_%d", prefix, f.nextId)
}

func (f *fakeAssistantService) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAssistantService) UploadFile(ctx context.Context, path, purpose string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UploadFile")

	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := filepath.Base(path)
	if err := f.uploadErrs[name]; err != nil {
		return "", err
	}
	id := "file_" + name
	f.uploaded = append(f.uploaded, id)
	return id, nil
}

func (f *fakeAssistantService) CreateVectorStore(ctx context.Context, name string, fileIds []string, options VectorStoreOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateVectorStore")

	if f.vectorStoreErr != nil {
		return "", f.vectorStoreErr
	}
	f.vectorFileIds = fileIds
	f.vectorOptions = options
	return "vs_1", nil
}

func (f *fakeAssistantService) GetVectorStore(ctx context.Context, id string) (VectorStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetVectorStore")

	if f.getVectorStoreErr != nil {
		return VectorStore{}, f.getVectorStoreErr
	}
	return VectorStore{Id: id, Status: "completed", Metadata: f.vectorOptions.Metadata}, nil
}

func (f *fakeAssistantService) ModifyVectorStore(ctx context.Context, id, name string, options VectorStoreOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ModifyVectorStore")

	f.vectorRenames = append(f.vectorRenames, name)
	return nil
}

func (f *fakeAssistantService) CreateAssistant(ctx context.Context, model string, options AssistantOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateAssistant")

	if f.createAssistantErr != nil {
		return "", f.createAssistantErr
	}
	f.assistantOpts = append(f.assistantOpts, options)
	if f.afterCreateAssistant != nil {
		f.afterCreateAssistant()
	}
	return "asst_1", nil
}

func (f *fakeAssistantService) ModifyAssistant(ctx context.Context, assistantId string, options AssistantOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ModifyAssistant")

	if f.modifyErr != nil {
		return f.modifyErr
	}
	f.assistantOpts = append(f.assistantOpts, options)
	return nil
}

func (f *fakeAssistantService) CreateThread(ctx context.Context, options ThreadOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateThread")

	if f.threadErr != nil {
		return "", f.threadErr
	}
	f.threadOptions = append(f.threadOptions, options)
	return f.id("thread"), nil
}

func (f *fakeAssistantService) AddMessageToThread(ctx context.Context, threadId, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AddMessageToThread")

	if f.addMessageErr != nil {
		return "", f.addMessageErr
	}
	f.added = append(f.added, content)
	return f.id("msg"), nil
}

func (f *fakeAssistantService) ListMessages(ctx context.Context, threadId, runId string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListMessages")

	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.messages, nil
}

func (f *fakeAssistantService) CreateRun(ctx context.Context, threadId, assistantId string, options RunOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateRun")

	if f.runErr != nil {
		return "", f.runErr
	}
	f.runOptions = append(f.runOptions, options)
	f.retrieved = 0
	f.lastRun = f.id("run")
	return f.lastRun, nil
}

func (f *fakeAssistantService) status(runId string) RunStatus {
	if slices.Contains(f.cancelled, runId) {
		status := f.cancelStatuses[min(f.cancelRetrieved, len(f.cancelStatuses)-1)]
		f.cancelRetrieved++
		return status
	}
	status := f.statuses[min(f.retrieved, len(f.statuses)-1)]
	f.retrieved++
	return status
}

func (f *fakeAssistantService) RetrieveRun(ctx context.Context, threadId, runId string) (ThreadRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RetrieveRun")

	return ThreadRun{Id: runId, ThreadId: threadId, Status: f.status(runId)}, nil
}

func (f *fakeAssistantService) RetrieveLatestRun(ctx context.Context, threadId string) (ThreadRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RetrieveLatestRun")

	if f.lastRun == "" {
		return ThreadRun{}, nil
	}
	return ThreadRun{Id: f.lastRun, ThreadId: threadId, Status: f.status(f.lastRun)}, nil
}

func (f *fakeAssistantService) CancelRun(ctx context.Context, threadId, runId string) (ThreadRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CancelRun")

	if f.cancelErr != nil {
		return ThreadRun{}, f.cancelErr
	}
	f.cancelled = append(f.cancelled, runId)
	f.cancelRetrieved = 0
	return ThreadRun{Id: runId, ThreadId: threadId, Status: RunStatusCancelling}, nil
}

func (f *fakeAssistantService) DeleteResource(ctx context.Context, resourceType, resourceId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteResource")

	if err := ctx.Err(); err != nil {
		return err
	}
	f.deleted = append(f.deleted, resourceType+"/"+resourceId)
	return nil
}

// fakeClock drives the run poller without real sleeping.
type fakeClock struct {
	current time.Time
	start   time.Time
}

func newFakeClock() *fakeClock {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &fakeClock{current: start, start: start}
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.current = c.current.Add(d)
	return ctx.Err()
}

func (c *fakeClock) elapsed() time.Duration {
	return c.current.Sub(c.start)
}

func (c *fakeClock) install(p *RunPoller) {
	p.now = c.now
	p.sleep = c.sleep
}

// countingIndicator tracks Start and Stop calls of the progress indicator.
type countingIndicator struct {
	started int
	stopped int
}

func (i *countingIndicator) Start() { i.started++ }
func (i *countingIndicator) Stop()  { i.stopped++ }
