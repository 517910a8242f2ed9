package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

const (
	FileSearchTool = "file_search"

	fileMetadataPrefix = "This fileID is associated with "

	settleTimeout = 10 * time.Second
)

type AdvisorSettings struct {
	Model           string
	Name            string
	Instructions    string
	VectorStoreName string
	Temperature     float64
	TopP            float64
	ReferenceFiles  []string
	SkipRollback    bool
}

func SettingsFromConfig(config Config) AdvisorSettings {
	return AdvisorSettings{
		Model:           config.ModelVersion,
		Name:            config.AssistantName,
		Instructions:    config.Instructions,
		VectorStoreName: config.VectorStoreName,
		Temperature:     config.Temperature,
		TopP:            config.TopP,
		ReferenceFiles:  config.ReferenceFiles,
		SkipRollback:    config.SkipRollback,
	}
}

// Advisor owns the one-time provisioning of the remote assistant, its
// reference files and the vector store that backs retrieval.
type Advisor struct {
	client   AssistantService
	store    StateStore
	settings AdvisorSettings
}

func NewAdvisor(client AssistantService, store StateStore, settings AdvisorSettings) *Advisor {
	return &Advisor{
		client:   client,
		store:    store,
		settings: settings,
	}
}

// checkReferenceFiles makes sure every reference file can be uploaded
// before anything is created remotely.
func checkReferenceFiles(paths []string) error {
	if len(paths) == 0 {
		return ReferenceFileError{Err: errors.New("no reference files configured")}
	}
	for _, path := range paths {
		stat, err := os.Stat(path)
		if err != nil {
			return ReferenceFileError{Path: path, Err: err}
		}
		if !stat.Mode().IsRegular() {
			return ReferenceFileError{Path: path, Err: errors.New("not a regular file")}
		}
	}
	return nil
}

// EnsureProvisioned reuses persisted ids when both are present and
// provisions new resources otherwise.
func (a *Advisor) EnsureProvisioned(ctx context.Context) (Provisioned, error) {
	if a.store != nil {
		state, err := a.store.Load()
		if err != nil {
			log.Warn(fmt.Sprintf("error loading persisted assistant state: %+v", err))
		} else if state.Complete() {
			log.Debug(fmt.Sprintf("reusing assistant %s and vector store %s", state.AssistantId, state.VectorStoreId))
			return state, nil
		}
	}
	return a.Provision(ctx)
}

// Refresh pushes the configured name, instructions and sampling settings to
// persisted resources, keeping their ids. Without persisted ids it
// provisions new resources instead.
func (a *Advisor) Refresh(ctx context.Context) (Provisioned, error) {
	state, err := a.store.Load()
	if err != nil {
		return state, err
	}
	if !state.Complete() {
		return a.Provision(ctx)
	}

	err = a.client.ModifyAssistant(ctx, state.AssistantId, AssistantOptions{
		Name:         a.settings.Name,
		Instructions: a.settings.Instructions,
		Temperature:  Ptr(a.settings.Temperature),
		TopP:         Ptr(a.settings.TopP),
	})
	if err != nil {
		return state, SetupError{Step: "update assistant", Err: err}
	}
	if err := a.client.ModifyVectorStore(ctx, state.VectorStoreId, a.settings.VectorStoreName, VectorStoreOptions{}); err != nil {
		return state, SetupError{Step: "update vector store", Err: err}
	}
	log.Debug(fmt.Sprintf("refreshed assistant %s and vector store %s", state.AssistantId, state.VectorStoreId))
	return state, nil
}

// Provision creates the assistant, uploads the reference files, creates a
// vector store over them and binds it to the assistant. Any failing step
// aborts the sequence. Unless rollback is disabled, resources created by
// earlier steps are deleted again.
func (a *Advisor) Provision(ctx context.Context) (Provisioned, error) {
	var state Provisioned

	if err := checkReferenceFiles(a.settings.ReferenceFiles); err != nil {
		return state, err
	}

	assistantId, err := a.client.CreateAssistant(ctx, a.settings.Model, AssistantOptions{
		Name:         a.settings.Name,
		Instructions: a.settings.Instructions,
		Tools:        []Tool{{Type: FileSearchTool}},
		Temperature:  Ptr(a.settings.Temperature),
		TopP:         Ptr(a.settings.TopP),
	})
	if err != nil {
		return state, SetupError{Step: "create assistant", Err: err}
	}
	log.Debug(fmt.Sprintf("created assistant %s", assistantId))

	fileIds, err := uploadFiles(ctx, a.client, a.settings.ReferenceFiles)
	if err != nil {
		a.rollback(ctx, assistantId, "", fileIds)
		return state, SetupError{Step: "upload files", Err: err}
	}

	// the metadata keys double as the record of uploaded files for teardown
	metadata := map[string]string{}
	for i, id := range fileIds {
		metadata[id] = fileMetadataPrefix + filepath.Base(a.settings.ReferenceFiles[i])
	}

	vectorStoreId, err := a.client.CreateVectorStore(ctx, a.settings.VectorStoreName, fileIds, VectorStoreOptions{
		Metadata: metadata,
	})
	if err != nil {
		a.rollback(ctx, assistantId, "", fileIds)
		return state, SetupError{Step: "create vector store", Err: err}
	}
	log.Debug(fmt.Sprintf("created vector store %s over %d files", vectorStoreId, len(fileIds)))

	err = a.client.ModifyAssistant(ctx, assistantId, AssistantOptions{
		ToolResources: FileSearchToolResources(vectorStoreId),
	})
	if err != nil {
		a.rollback(ctx, assistantId, vectorStoreId, fileIds)
		return state, SetupError{Step: "bind vector store", Err: err}
	}

	state = Provisioned{
		AssistantId:   assistantId,
		VectorStoreId: vectorStoreId,
	}
	if a.store != nil {
		if err := a.store.Save(state); err != nil {
			log.Warn(fmt.Sprintf("error persisting assistant state: %+v", err))
		}
	}
	return state, nil
}

// rollback deletes what a failed Provision created. The deletes outlive a
// cancelled setup context.
func (a *Advisor) rollback(ctx context.Context, assistantId, vectorStoreId string, fileIds []string) {
	if a.settings.SkipRollback {
		log.Warn(fmt.Sprintf("setup failed, leaving assistant %s and %d uploaded files in place", assistantId, len(fileIds)))
		return
	}
	ctx = context.WithoutCancel(ctx)

	var result error
	if vectorStoreId != "" {
		if err := a.client.DeleteResource(ctx, "vector_stores", vectorStoreId); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := a.client.DeleteResource(ctx, "assistants", assistantId); err != nil {
		result = multierror.Append(result, err)
	}
	if err := deleteFiles(ctx, a.client, fileIds); err != nil {
		result = multierror.Append(result, err)
	}

	if result != nil {
		log.Warn(fmt.Sprintf("error rolling back partial setup: %+v", result))
	}
}

// Teardown deletes the persisted assistant, its vector store and the
// reference files recorded in the vector store metadata, then forgets the ids.
func (a *Advisor) Teardown(ctx context.Context) error {
	state, err := a.store.Load()
	if err != nil {
		return err
	}

	var result error
	var fileIds []string
	if state.VectorStoreId != "" {
		vectorStore, err := a.client.GetVectorStore(ctx, state.VectorStoreId)
		if err != nil {
			log.Warn(fmt.Sprintf("error reading vector store %s, uploaded files are kept: %+v", state.VectorStoreId, err))
		} else {
			fileIds = uploadedFileIds(vectorStore)
		}
	}

	if state.AssistantId != "" {
		if err := a.client.DeleteResource(ctx, "assistants", state.AssistantId); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if state.VectorStoreId != "" {
		if err := a.client.DeleteResource(ctx, "vector_stores", state.VectorStoreId); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := deleteFiles(ctx, a.client, fileIds); err != nil {
		result = multierror.Append(result, err)
	}
	if result != nil {
		return result
	}
	return a.store.Clear()
}

// uploadedFileIds returns the sorted ids of the reference files annotated in
// the vector store metadata during setup.
func uploadedFileIds(vectorStore VectorStore) []string {
	fileIds := []string{}
	for key, value := range vectorStore.Metadata {
		if strings.HasPrefix(value, fileMetadataPrefix) {
			fileIds = append(fileIds, key)
		}
	}
	slices.Sort(fileIds)
	return fileIds
}

// ProgressIndicator is shown while a run is being awaited.
// *spinner.Spinner satisfies it.
type ProgressIndicator interface {
	Start()
	Stop()
}

type SessionOptions struct {
	RunTimeout       time.Duration
	PollInterval     time.Duration
	KeepRunOnTimeout bool
	Indicator        ProgressIndicator
}

// Session is a single chat conversation against a provisioned assistant.
// Turns are serialized so that at most one run is in flight per session.
type Session struct {
	Id string

	client           AssistantService
	poller           *RunPoller
	state            Provisioned
	keepRunOnTimeout bool
	indicator        ProgressIndicator

	mu       sync.Mutex
	threadId string
	runId    string
	// unsettled is set when the last run was abandoned without reaching
	// a terminal state.
	unsettled bool
}

func NewSession(client AssistantService, state Provisioned, options SessionOptions) *Session {
	timeout := options.RunTimeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	interval := options.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Session{
		Id:               uuid.NewString(),
		client:           client,
		poller:           NewRunPoller(client, timeout, interval),
		state:            state,
		keepRunOnTimeout: options.KeepRunOnTimeout,
		indicator:        options.Indicator,
	}
}

func (s *Session) ThreadId() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadId
}

func (s *Session) RunId() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runId
}

func (s *Session) logger() *log.Entry {
	return log.WithFields(log.Fields{
		"session": s.Id,
		"thread":  s.threadId,
	})
}

// SendMessage submits text as the next user turn and waits for the
// assistant. It returns the text messages produced by the run, the first
// being the reply. Any failure yields no messages and the error.
func (s *Session) SendMessage(ctx context.Context, text string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.threadId == "" {
		threadId, err := s.client.CreateThread(ctx, ThreadOptions{
			Messages: []ThreadMessage{
				{
					Role:    "user",
					Content: text,
				},
			},
			Metadata: map[string]string{
				"session_id": s.Id,
			},
		})
		if err != nil {
			s.logger().Debug(fmt.Sprintf("error creating thread: %+v", err))
			return nil, err
		}
		s.threadId = threadId
	} else {
		s.settlePreviousRun(ctx)
		if _, err := s.client.AddMessageToThread(ctx, s.threadId, text); err != nil {
			s.logger().Debug(fmt.Sprintf("error adding message: %+v", err))
			return nil, err
		}
	}

	runOptions := RunOptions{}
	if s.state.VectorStoreId != "" {
		runOptions.ToolResources = FileSearchToolResources(s.state.VectorStoreId)
	}
	runId, err := s.client.CreateRun(ctx, s.threadId, s.state.AssistantId, runOptions)
	if err != nil {
		s.logger().Debug(fmt.Sprintf("error creating run: %+v", err))
		return nil, err
	}
	s.runId = runId

	if err := s.await(ctx, runId); err != nil {
		return nil, err
	}

	messages, err := s.client.ListMessages(ctx, s.threadId, runId)
	if err != nil {
		s.logger().Debug(fmt.Sprintf("error listing messages for run %s: %+v", runId, err))
		return nil, err
	}
	if len(messages) == 0 {
		return nil, ErrNoReply
	}
	return messages, nil
}

func (s *Session) await(ctx context.Context, runId string) error {
	if s.indicator != nil {
		s.indicator.Start()
	}
	_, err := s.poller.WaitForRunCompletion(ctx, s.threadId, runId)
	if s.indicator != nil {
		s.indicator.Stop()
	}
	if err == nil {
		s.unsettled = false
		return nil
	}

	var statusErr RunStatusError
	if errors.As(err, &statusErr) {
		s.unsettled = false
		return err
	}
	s.unsettled = true

	var timeoutErr RunTimeoutError
	if errors.As(err, &timeoutErr) && !s.keepRunOnTimeout {
		s.cancelRun(ctx, runId)
	}
	return err
}

func (s *Session) cancelRun(ctx context.Context, runId string) {
	run, err := s.client.CancelRun(ctx, s.threadId, runId)
	if err != nil {
		s.logger().Warn(fmt.Sprintf("error cancelling run %s: %+v", runId, err))
		return
	}
	s.logger().Debug(fmt.Sprintf("cancelling run %s (status %s)", runId, run.Status))
}

// settlePreviousRun waits for the latest run on the thread to reach a
// terminal state, cancelling it first if it was abandoned while still
// active, since a thread only accepts one active run. The run stays
// unsettled if it does not finish within settleTimeout.
func (s *Session) settlePreviousRun(ctx context.Context) {
	if !s.unsettled {
		return
	}
	run, err := s.client.RetrieveLatestRun(ctx, s.threadId)
	if err != nil {
		s.logger().Warn(fmt.Sprintf("error retrieving latest run: %+v", err))
		return
	}
	if run.Id == "" || run.Status.Terminal() {
		s.unsettled = false
		return
	}
	if run.Status != RunStatusCancelling {
		s.cancelRun(ctx, run.Id)
	}

	settler := *s.poller
	settler.Timeout = min(settleTimeout, s.poller.Timeout)
	_, err = settler.WaitForRunCompletion(ctx, s.threadId, run.Id)

	var statusErr RunStatusError
	if err == nil || errors.As(err, &statusErr) {
		s.unsettled = false
		return
	}
	s.logger().Warn(fmt.Sprintf("run %s has not settled: %+v", run.Id, err))
}

// End finishes the conversation by deleting its thread. The session can be
// reused afterwards and will lazily create a new thread.
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.threadId == "" {
		return nil
	}
	s.settlePreviousRun(ctx)

	err := s.client.DeleteResource(ctx, "threads", s.threadId)
	if err != nil {
		s.logger().Warn(fmt.Sprintf("error deleting thread: %+v", err))
	}
	s.threadId = ""
	s.runId = ""
	s.unsettled = false
	return err
}

// DeleteAssistant deletes the session's assistant, independently of End.
func (s *Session) DeleteAssistant(ctx context.Context) error {
	return s.client.DeleteResource(ctx, "assistants", s.state.AssistantId)
}
