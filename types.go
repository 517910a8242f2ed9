package main

type Config struct {
	ModelVersion       string   `json:"modelVersion" validate:"required"`
	AssistantName      string   `json:"assistantName" validate:"required"`
	Instructions       string   `json:"instructions" validate:"required"`
	VectorStoreName    string   `json:"vectorStoreName" validate:"required"`
	Temperature        float64  `json:"temperature" validate:"gte=0,lte=2"`
	TopP               float64  `json:"topP" validate:"gte=0,lte=1"`
	ReferenceFiles     []string `json:"referenceFiles" validate:"required,min=1,dive,required"`
	RunTimeoutSeconds  int      `json:"runTimeoutSeconds" validate:"gt=0"`
	PollIntervalMillis int      `json:"pollIntervalMillis" validate:"gt=0"`
	MaxResponses       int      `json:"maxResponsesPerCategory" validate:"gte=0"`
	KeepRunOnTimeout   bool     `json:"keepRunOnTimeout"`
	SkipRollback       bool     `json:"skipRollback"`
}

type ChatGPTCredentials struct {
	Secret string `json:"secret"`
}

type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusExpired        RunStatus = "expired"
	RunStatusIncomplete     RunStatus = "incomplete"
)

// Terminal reports whether no further transition can happen for the status.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired:
		return true
	}
	return false
}

type Model struct {
	Id string `json:"id"`
}

type Tool struct {
	Type string `json:"type"`
}

type FileSearchResources struct {
	VectorStoreIds []string `json:"vector_store_ids,omitempty"`
}

type ToolResources struct {
	FileSearch *FileSearchResources `json:"file_search,omitempty"`
}

// FileSearchToolResources binds the given vector stores to the file_search tool.
func FileSearchToolResources(vectorStoreIds ...string) *ToolResources {
	return &ToolResources{
		FileSearch: &FileSearchResources{
			VectorStoreIds: vectorStoreIds,
		},
	}
}

type Assistant struct {
	Id            string            `json:"id"`
	Name          string            `json:"name"`
	Model         string            `json:"model"`
	Instructions  string            `json:"instructions"`
	Temperature   *float64          `json:"temperature"`
	TopP          *float64          `json:"top_p"`
	Tools         []Tool            `json:"tools"`
	ToolResources ToolResources     `json:"tool_resources"`
	Metadata      map[string]string `json:"metadata"`
}

type VectorStoreFileCounts struct {
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
	Total      int `json:"total"`
}

type VectorStore struct {
	Id         string                `json:"id"`
	Name       string                `json:"name"`
	Status     string                `json:"status"`
	FileCounts VectorStoreFileCounts `json:"file_counts"`
	Metadata   map[string]string     `json:"metadata"`
}

type UploadedFile struct {
	Id       string `json:"id"`
	Filename string `json:"filename"`
	Purpose  string `json:"purpose"`
	Bytes    int64  `json:"bytes"`
}

type FileAttachment struct {
	FileId string `json:"file_id"`
	Tools  []Tool `json:"tools"`
}

type ThreadMessage struct {
	Role        string           `json:"role"`
	Content     string           `json:"content"`
	Attachments []FileAttachment `json:"attachments,omitempty"`
}

type ThreadMessageContent struct {
	Type string `json:"type"`
	Text struct {
		Value string `json:"value"`
	} `json:"text"`
}

type ThreadMessageResponse struct {
	Id          string                 `json:"id"`
	Role        string                 `json:"role"`
	RunId       string                 `json:"run_id"`
	Content     []ThreadMessageContent `json:"content"`
	Attachments []FileAttachment       `json:"attachments"`
}

type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ThreadRun struct {
	Id          string    `json:"id"`
	ThreadId    string    `json:"thread_id"`
	AssistantId string    `json:"assistant_id"`
	Status      RunStatus `json:"status"`
	LastError   *RunError `json:"last_error"`
}

type ChunkingStrategy struct {
	Type   string `json:"type"`
	Static *struct {
		MaxChunkSizeTokens int `json:"max_chunk_size_tokens"`
		ChunkOverlapTokens int `json:"chunk_overlap_tokens"`
	} `json:"static,omitempty"`
}

type ExpiresAfter struct {
	Anchor string `json:"anchor"`
	Days   int    `json:"days"`
}

type TruncationStrategy struct {
	Type         string `json:"type"`
	LastMessages *int   `json:"last_messages,omitempty"`
}

// AssistantOptions holds the optional assistant fields. Unset fields are
// left out of the request body, which makes the same struct usable for
// both creation and partial modification.
type AssistantOptions struct {
	Name            string            `json:"name,omitempty"`
	Description     string            `json:"description,omitempty"`
	Instructions    string            `json:"instructions,omitempty"`
	ReasoningEffort string            `json:"reasoning_effort,omitempty"`
	Tools           []Tool            `json:"tools,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Temperature     *float64          `json:"temperature,omitempty"`
	TopP            *float64          `json:"top_p,omitempty"`
	ToolResources   *ToolResources    `json:"tool_resources,omitempty"`
	ResponseFormat  any               `json:"response_format,omitempty"`
}

type VectorStoreOptions struct {
	ChunkingStrategy *ChunkingStrategy `json:"chunking_strategy,omitempty"`
	ExpiresAfter     *ExpiresAfter     `json:"expires_after,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

type ThreadOptions struct {
	Messages      []ThreadMessage   `json:"messages,omitempty"`
	ToolResources *ToolResources    `json:"tool_resources,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// RunOptions are the per-run overrides accepted by the runs endpoint.
type RunOptions struct {
	Model                  string              `json:"model,omitempty"`
	ReasoningEffort        string              `json:"reasoning_effort,omitempty"`
	Instructions           string              `json:"instructions,omitempty"`
	AdditionalInstructions string              `json:"additional_instructions,omitempty"`
	AdditionalMessages     []ThreadMessage     `json:"additional_messages,omitempty"`
	Tools                  []Tool              `json:"tools,omitempty"`
	Metadata               map[string]string   `json:"metadata,omitempty"`
	Temperature            *float64            `json:"temperature,omitempty"`
	TopP                   *float64            `json:"top_p,omitempty"`
	Stream                 *bool               `json:"stream,omitempty"`
	MaxPromptTokens        *int                `json:"max_prompt_tokens,omitempty"`
	MaxCompletionTokens    *int                `json:"max_completion_tokens,omitempty"`
	TruncationStrategy     *TruncationStrategy `json:"truncation_strategy,omitempty"`
	ToolChoice             any                 `json:"tool_choice,omitempty"`
	ParallelToolCalls      *bool               `json:"parallel_tool_calls,omitempty"`
	ResponseFormat         any                 `json:"response_format,omitempty"`
	ToolResources          *ToolResources      `json:"tool_resources,omitempty"`
}

type ListOptions struct {
	After  string
	Before string
	Limit  int
	Order  string
}

type listResponse[T any] struct {
	Data    []T  `json:"data"`
	HasMore bool `json:"has_more"`
}

type idResponse struct {
	Id string `json:"id"`
}
