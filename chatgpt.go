package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	log "github.com/sirupsen/logrus"
)

const (
	APIUrl = "https://api.openai.com/v1"

	AssistantsBetaVersion = "assistants=v2"
	PurposeAssistants     = "assistants"
)

// NewChatGPTError builds a ChatGPTError from a non-2xx response body. The
// raw body is kept verbatim so callers can log it.
func NewChatGPTError(statusCode int, body []byte) error {
	gptError := ChatGPTError{
		Code: statusCode,
		Raw:  string(body),
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err == nil {
		gptError.Body = payload
	}
	// add error type to error interface
	if statusCode == http.StatusUnauthorized {
		gptError.Type = ChatGPTErrorTypeAuth
	} else {
		gptError.Type = ChatGPTErrorTypeAPI
	}
	return gptError
}

// AssistantService is the set of gateway operations the session layer
// depends on.
type AssistantService interface {
	UploadFile(ctx context.Context, path, purpose string) (string, error)
	CreateVectorStore(ctx context.Context, name string, fileIds []string, options VectorStoreOptions) (string, error)
	GetVectorStore(ctx context.Context, id string) (VectorStore, error)
	ModifyVectorStore(ctx context.Context, id, name string, options VectorStoreOptions) error
	CreateAssistant(ctx context.Context, model string, options AssistantOptions) (string, error)
	ModifyAssistant(ctx context.Context, assistantId string, options AssistantOptions) error
	CreateThread(ctx context.Context, options ThreadOptions) (string, error)
	AddMessageToThread(ctx context.Context, threadId, content string) (string, error)
	ListMessages(ctx context.Context, threadId, runId string) ([]string, error)
	CreateRun(ctx context.Context, threadId, assistantId string, options RunOptions) (string, error)
	RetrieveRun(ctx context.Context, threadId, runId string) (ThreadRun, error)
	RetrieveLatestRun(ctx context.Context, threadId string) (ThreadRun, error)
	CancelRun(ctx context.Context, threadId, runId string) (ThreadRun, error)
	DeleteResource(ctx context.Context, resourceType, resourceId string) error
}

type ChatGPTAssistantClient struct {
	Credentials ChatGPTCredentials
	BaseURL     string
	Responses   *ResponseLog
	*http.Client
}

func NewChatGPTAssistantClient(baseURL string, credentials ChatGPTCredentials, responses *ResponseLog) *ChatGPTAssistantClient {
	if baseURL == "" {
		baseURL = APIUrl
	}
	if responses == nil {
		responses = NewResponseLog(DefaultMaxResponsesPerCategory)
	}
	return &ChatGPTAssistantClient{
		Credentials: credentials,
		BaseURL:     baseURL,
		Responses:   responses,
		Client:      &http.Client{},
	}
}

// ExecuteChatGPTRequest sends an HTTP request to the specified URL using the provided method and payload.
// It sets the necessary headers for authorization and content type.
//
// Parameters:
//   - ctx: The context bounding the request.
//   - method: The HTTP method to use for the request (e.g., "GET", "POST").
//   - url: The URL to which the request is sent.
//   - payload: The data to be sent in the request body. It can be of any type.
//   - headers: Additional headers added to the request.
//
// Returns:
//   - *http.Response: The HTTP response received from the server.
//   - error: An error if the request could not be created or executed.
func (client *ChatGPTAssistantClient) ExecuteChatGPTRequest(ctx context.Context, method, url string, payload any, headers map[string]string) (*http.Response, error) {
	var buffer io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		buffer = bytes.NewBuffer(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, buffer)
	if err != nil {
		return nil, err
	}
	// add required request headers
	request.Header.Add("Authorization", "Bearer "+client.Credentials.Secret)
	request.Header.Add("Content-Type", "application/json")

	for k, v := range headers {
		request.Header.Add(k, v)
	}

	r, err := client.Do(request)
	if err != nil {
		return nil, err
	}
	log.Debug(fmt.Sprintf("received http(s) response: %s %s - %d", method, url, r.StatusCode))

	return r, nil
}

func betaHeaders() map[string]string {
	return map[string]string{
		"OpenAI-Beta": AssistantsBetaVersion,
	}
}

// execute runs a JSON request against path, records the successful body
// under category and decodes it into out when out is non-nil.
func (client *ChatGPTAssistantClient) execute(ctx context.Context, method, path string, payload any, beta bool, category string, out any) error {
	var headers map[string]string
	if beta {
		headers = betaHeaders()
	}

	response, err := client.ExecuteChatGPTRequest(ctx, method, client.BaseURL+path, payload, headers)
	if err != nil {
		log.Warn(fmt.Sprintf("%s request failed: %s %s: %+v", category, method, path, err))
		return err
	}
	return client.handleResponse(response, category, out)
}

func (client *ChatGPTAssistantClient) handleResponse(response *http.Response, category string, out any) error {
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		log.Warn(fmt.Sprintf("error reading %s response body: %+v", category, err))
		return err
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		log.Warn(fmt.Sprintf("%s request returned status %d: %s", category, response.StatusCode, string(body)))
		return NewChatGPTError(response.StatusCode, body)
	}
	client.Responses.Append(category, string(body))

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		log.Warn(fmt.Sprintf("malformed %s response: %+v", category, err))
		return ChatGPTError{
			Code: response.StatusCode,
			Raw:  string(body),
			Type: ChatGPTErrorTypeMalformed,
		}
	}
	return nil
}

// create posts payload to path and returns the id of the created resource.
func (client *ChatGPTAssistantClient) create(ctx context.Context, path string, payload any, category string) (string, error) {
	var data idResponse
	if err := client.execute(ctx, http.MethodPost, path, payload, true, category, &data); err != nil {
		return "", err
	}
	if data.Id == "" {
		log.Warn(fmt.Sprintf("%s response did not contain an id", category))
		return "", ChatGPTError{Code: http.StatusOK, Type: ChatGPTErrorTypeMalformed}
	}
	return data.Id, nil
}

// VerifyCredentials checks the validity of the client's credentials by making a request
// to the /models endpoint of the ChatGPT API. If the credentials are valid, the function
// returns nil. Otherwise, it returns an error indicating the failure reason.
func (client *ChatGPTAssistantClient) VerifyCredentials(ctx context.Context) error {
	return client.execute(ctx, http.MethodGet, "/models", nil, false, "models", nil)
}

// GetModel retrieves the details of a specific model from the ChatGPT API.
func (client *ChatGPTAssistantClient) GetModel(ctx context.Context, model string) (Model, error) {
	var modelData Model
	err := client.execute(ctx, http.MethodGet, "/models/"+url.PathEscape(model), nil, false, "models", &modelData)
	return modelData, err
}

// UploadFile uploads the local file at path with the given purpose and
// returns the id of the uploaded file.
func (client *ChatGPTAssistantClient) UploadFile(ctx context.Context, path, purpose string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		log.Warn(fmt.Sprintf("error opening file %s for upload: %+v", path, err))
		return "", err
	}
	defer file.Close()

	return client.UploadReader(ctx, filepath.Base(path), file, purpose)
}

func (client *ChatGPTAssistantClient) UploadReader(ctx context.Context, filename string, content io.Reader, purpose string) (string, error) {
	var data bytes.Buffer
	writer := multipart.NewWriter(&data)

	// add purpose field to the form
	if err := writer.WriteField("purpose", purpose); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	// write file content to the form
	if _, err := io.Copy(part, content); err != nil {
		return "", err
	}
	// close the writer to finalize the form
	if err := writer.Close(); err != nil {
		return "", err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, client.BaseURL+"/files", &data)
	if err != nil {
		return "", err
	}
	// add required request headers
	request.Header.Add("Authorization", "Bearer "+client.Credentials.Secret)
	request.Header.Add("Content-Type", writer.FormDataContentType())

	response, err := client.Do(request)
	if err != nil {
		log.Warn(fmt.Sprintf("error uploading file %s: %+v", filename, err))
		return "", err
	}
	log.Debug(fmt.Sprintf("received http(s) response: POST %s - %d", client.BaseURL+"/files", response.StatusCode))

	var payload idResponse
	if err := client.handleResponse(response, "file_upload", &payload); err != nil {
		return "", err
	}
	if payload.Id == "" {
		return "", ChatGPTError{Code: response.StatusCode, Type: ChatGPTErrorTypeMalformed}
	}
	return payload.Id, nil
}

// RetrieveFile returns the metadata of an uploaded file.
func (client *ChatGPTAssistantClient) RetrieveFile(ctx context.Context, fileId string) (UploadedFile, error) {
	var file UploadedFile
	err := client.execute(ctx, http.MethodGet, "/files/"+url.PathEscape(fileId), nil, false, "file_info", &file)
	return file, err
}

// CreateVectorStore creates a new vector store over the given file ids.
// Optional settings are only sent when set in options.
func (client *ChatGPTAssistantClient) CreateVectorStore(ctx context.Context, name string, fileIds []string, options VectorStoreOptions) (string, error) {
	payload := struct {
		Name    string   `json:"name,omitempty"`
		FileIds []string `json:"file_ids,omitempty"`
		VectorStoreOptions
	}{
		Name:               name,
		FileIds:            fileIds,
		VectorStoreOptions: options,
	}
	return client.create(ctx, "/vector_stores", payload, "vector_store")
}

// GetVectorStore retrieves a VectorStore by its ID from the ChatGPT API.
func (client *ChatGPTAssistantClient) GetVectorStore(ctx context.Context, id string) (VectorStore, error) {
	var vectorStore VectorStore
	err := client.execute(ctx, http.MethodGet, "/vector_stores/"+url.PathEscape(id), nil, true, "vector_store_retrieve", &vectorStore)
	return vectorStore, err
}

// ModifyVectorStore renames a vector store or replaces its expiration
// policy and metadata. The file set cannot be changed through this call.
func (client *ChatGPTAssistantClient) ModifyVectorStore(ctx context.Context, id, name string, options VectorStoreOptions) error {
	payload := struct {
		Name         string            `json:"name,omitempty"`
		ExpiresAfter *ExpiresAfter     `json:"expires_after,omitempty"`
		Metadata     map[string]string `json:"metadata,omitempty"`
	}{
		Name:         name,
		ExpiresAfter: options.ExpiresAfter,
		Metadata:     options.Metadata,
	}
	return client.execute(ctx, http.MethodPost, "/vector_stores/"+url.PathEscape(id), payload, true, "vector_store_modify", nil)
}

// CreateAssistant creates a new assistant for model and returns its id.
func (client *ChatGPTAssistantClient) CreateAssistant(ctx context.Context, model string, options AssistantOptions) (string, error) {
	payload := struct {
		Model string `json:"model"`
		AssistantOptions
	}{
		Model:            model,
		AssistantOptions: options,
	}
	return client.create(ctx, "/assistants", payload, "assistant")
}

// GetAssistant retrieves an assistant by its ID from the ChatGPT API.
func (client *ChatGPTAssistantClient) GetAssistant(ctx context.Context, id string) (Assistant, error) {
	var assistant Assistant
	err := client.execute(ctx, http.MethodGet, "/assistants/"+url.PathEscape(id), nil, true, "assistant_retrieve", &assistant)
	return assistant, err
}

// ModifyAssistant applies a partial update. Only the fields set in options
// are sent, everything else is left untouched on the server.
func (client *ChatGPTAssistantClient) ModifyAssistant(ctx context.Context, assistantId string, options AssistantOptions) error {
	return client.execute(ctx, http.MethodPost, "/assistants/"+url.PathEscape(assistantId), options, true, "assistant_update", nil)
}

func (client *ChatGPTAssistantClient) ListAssistants(ctx context.Context, options ListOptions) ([]Assistant, error) {
	var payload listResponse[Assistant]
	path := "/assistants" + options.query()
	if err := client.execute(ctx, http.MethodGet, path, nil, true, "assistants_list", &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

func (options ListOptions) query() string {
	values := url.Values{}
	if options.After != "" {
		values.Set("after", options.After)
	}
	if options.Before != "" {
		values.Set("before", options.Before)
	}
	if options.Limit > 0 {
		values.Set("limit", strconv.Itoa(min(options.Limit, 100)))
	}
	if options.Order != "" {
		values.Set("order", options.Order)
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

// CreateThread creates a conversation thread, optionally seeded with messages.
func (client *ChatGPTAssistantClient) CreateThread(ctx context.Context, options ThreadOptions) (string, error) {
	return client.create(ctx, "/threads", options, "thread")
}

// AddMessageToThread appends a user message to threadId and returns the
// id of the new message.
func (client *ChatGPTAssistantClient) AddMessageToThread(ctx context.Context, threadId, content string) (string, error) {
	payload := ThreadMessage{
		Role:    "user",
		Content: content,
	}
	return client.create(ctx, "/threads/"+url.PathEscape(threadId)+"/messages", payload, "message_add")
}

// GetThreadMessages returns the raw messages of a thread, newest first. When
// runId is set only the messages produced by that run are returned.
func (client *ChatGPTAssistantClient) GetThreadMessages(ctx context.Context, threadId, runId string) ([]ThreadMessageResponse, error) {
	path := "/threads/" + url.PathEscape(threadId) + "/messages"
	if runId != "" {
		path += "?run_id=" + url.QueryEscape(runId)
	}

	var payload listResponse[ThreadMessageResponse]
	if err := client.execute(ctx, http.MethodGet, path, nil, true, "messages", &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// ListMessages returns the text parts of the thread's messages in the order
// the API lists them. Non-text content blocks are skipped.
func (client *ChatGPTAssistantClient) ListMessages(ctx context.Context, threadId, runId string) ([]string, error) {
	messages, err := client.GetThreadMessages(ctx, threadId, runId)
	if err != nil {
		return nil, err
	}

	texts := []string{}
	for _, message := range messages {
		for _, content := range message.Content {
			if content.Type == "text" {
				texts = append(texts, content.Text.Value)
			}
		}
	}
	return texts, nil
}

// CreateRun starts a run of assistantId against threadId.
func (client *ChatGPTAssistantClient) CreateRun(ctx context.Context, threadId, assistantId string, options RunOptions) (string, error) {
	payload := struct {
		AssistantId string `json:"assistant_id"`
		RunOptions
	}{
		AssistantId: assistantId,
		RunOptions:  options,
	}
	return client.create(ctx, "/threads/"+url.PathEscape(threadId)+"/runs", payload, "run")
}

func (client *ChatGPTAssistantClient) RetrieveRun(ctx context.Context, threadId, runId string) (ThreadRun, error) {
	var run ThreadRun
	path := fmt.Sprintf("/threads/%s/runs/%s", url.PathEscape(threadId), url.PathEscape(runId))
	err := client.execute(ctx, http.MethodGet, path, nil, true, "run_status", &run)
	return run, err
}

// RetrieveLatestRun returns the most recent run on threadId. The returned
// run has an empty Id when the thread has no runs yet.
func (client *ChatGPTAssistantClient) RetrieveLatestRun(ctx context.Context, threadId string) (ThreadRun, error) {
	var payload listResponse[ThreadRun]
	path := "/threads/" + url.PathEscape(threadId) + "/runs?limit=1"
	if err := client.execute(ctx, http.MethodGet, path, nil, true, "run_list", &payload); err != nil {
		return ThreadRun{}, err
	}
	if len(payload.Data) == 0 {
		return ThreadRun{}, nil
	}
	return payload.Data[0], nil
}

func (client *ChatGPTAssistantClient) CancelRun(ctx context.Context, threadId, runId string) (ThreadRun, error) {
	var run ThreadRun
	path := fmt.Sprintf("/threads/%s/runs/%s/cancel", url.PathEscape(threadId), url.PathEscape(runId))
	err := client.execute(ctx, http.MethodPost, path, nil, true, "run_cancel", &run)
	return run, err
}

// DeleteResource deletes a remote resource such as "threads", "assistants",
// "files" or "vector_stores". The files endpoint is not part of the
// assistants beta, so it is called without the beta header.
func (client *ChatGPTAssistantClient) DeleteResource(ctx context.Context, resourceType, resourceId string) error {
	path := "/" + resourceType + "/" + url.PathEscape(resourceId)
	return client.execute(ctx, http.MethodDelete, path, nil, resourceType != "files", "delete", nil)
}
