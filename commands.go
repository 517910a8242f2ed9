package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

const (
	exitCodeTransient     = 1
	exitCodeConfiguration = 2

	ChatHelp = `Ask any question about your courses, enrolment or university policies.
  faq    show the questions you ask most often
  reset  start a new conversation
  exit   end the chat`
)

// exitCode maps an error to the process exit code. Configuration problems
// the user has to fix before retrying exit with 2, everything else with 1.
func exitCode(err error) int {
	var missingCredential MissingCredentialError
	var referenceFile ReferenceFileError
	var notFound ConfigFileNotFoundError
	var invalidConfig InvalidConfigFileError

	switch {
	case errors.As(err, &missingCredential),
		errors.As(err, &referenceFile),
		errors.As(err, &notFound),
		errors.As(err, &invalidConfig):
		return exitCodeConfiguration
	default:
		return exitCodeTransient
	}
}

func exitWithError(message string, err error) error {
	log.Debug(fmt.Sprintf("%s: %+v", message, err))

	var chatGPTError ChatGPTError
	if errors.As(err, &chatGPTError) {
		log.Debug(fmt.Sprintf("error response: %s", chatGPTError.Raw))
	}

	code := exitCode(err)
	if code == exitCodeConfiguration {
		return cli.Exit(fmt.Sprintf("%s: %v", message, err), code)
	}
	return cli.Exit(message, code)
}

// application bundles everything the commands need once the environment
// and config file have been read.
type application struct {
	config    Config
	client    *ChatGPTAssistantClient
	responses *ResponseLog
	store     *FileStateStore
	stateDir  string
}

// loadApplication configures logging, reads the credential from the
// environment and loads the advisor config (falling back to the defaults
// when no config file has been written).
func loadApplication(cmd *cli.Command) (*application, error) {
	// configure logging for application
	configureLogging(cmd.String("log-level"))

	environment, err := loadEnvironment(cmd.String("env-file"))
	if err != nil {
		return nil, err
	}

	cfgPath := cmd.String("config-path")
	log.Debug(fmt.Sprintf("loading configuration from path %s", cfgPath))

	config, err := loadConfigOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}
	log.Debug(fmt.Sprintf("loaded configuration %+v", config))

	responses := NewResponseLog(config.MaxResponses)
	stateDir := cmd.String("state-dir")
	return &application{
		config:    config,
		client:    NewChatGPTAssistantClient(environment.BaseURL, environment.Credentials(), responses),
		responses: responses,
		store:     NewFileStateStore(stateDir),
		stateDir:  stateDir,
	}, nil
}

func (app *application) advisor() *Advisor {
	return NewAdvisor(app.client, app.store, SettingsFromConfig(app.config))
}

func newSpinner(prefix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Prefix = prefix
	return s
}

// ConfigureCLICommand prompts for the advisor settings, validates them and
// writes the config file.
//
// Parameters:
//   - ctx: The context in which the command is executed.
//   - cmd: The CLI command holding the global flags.
//
// Returns:
//   - error: A cli exit error if the credential, model or reference files
//     are invalid, or the config file cannot be written.
func ConfigureCLICommand(ctx context.Context, cmd *cli.Command) error {
	app, err := loadApplication(cmd)
	if err != nil {
		return exitWithError("error loading configuration", err)
	}
	reader := bufio.NewReader(os.Stdin)

	if err := app.client.VerifyCredentials(ctx); err != nil {
		return exitWithError("error validating chatgpt credentials", err)
	}

	config := app.config

	// get model version from CLI and validate by making request to ChatGPT
	// api to get model details using specified ID
	prompt := fmt.Sprintf("Enter ChatGPT model version (default %s): ", config.ModelVersion)
	model, err := getCliInput(reader, prompt, func(value string) (string, error) {
		if len(value) == 0 {
			value = config.ModelVersion
		}

		if _, err := app.client.GetModel(ctx, value); err != nil {
			log.Debug(fmt.Sprintf("error validating chatgpt model: %+v", err))
			return "", err
		} else {
			return value, nil
		}
	})

	if err != nil {
		return exitWithError("error validating chatgpt model", err)
	}
	config.ModelVersion = model

	prompt = fmt.Sprintf("Enter assistant name (default %s): ", config.AssistantName)
	name, _ := getCliInput(reader, prompt, func(value string) (string, error) {
		return strings.TrimSpace(value), nil
	})
	if len(name) > 0 {
		config.AssistantName = name
	}

	// reference files are checked on disk now so that setup never starts
	// with a file it cannot upload
	prompt = fmt.Sprintf("Enter reference files, comma separated (default %s): ", strings.Join(config.ReferenceFiles, ","))
	files, err := getCliInput(reader, prompt, func(value string) (string, error) {
		paths := splitList(value)
		if len(paths) == 0 {
			paths = config.ReferenceFiles
		}
		if err := checkReferenceFiles(paths); err != nil {
			return "", err
		}
		return strings.Join(paths, ","), nil
	})

	if err != nil {
		return exitWithError("error validating reference files", err)
	}
	config.ReferenceFiles = splitList(files)

	if err := validateConfig(config); err != nil {
		return exitWithError("invalid configuration", InvalidConfigFileError{Path: cmd.String("config-path")})
	}

	path := cmd.String("config-path")
	if err := writeConfig(config, path); err != nil {
		log.Debug(fmt.Sprintf("%+v", err))
		return cli.Exit(fmt.Sprintf("error writing config file to %s", path), exitCodeTransient)
	}

	fmt.Println(color.GreenString("configuration written to %s", path))
	return nil
}

// TestCLICommand verifies the credential and the configured model, then
// checks that the persisted assistant still exists and is bound to the
// persisted vector store.
func TestCLICommand(ctx context.Context, cmd *cli.Command) error {
	app, err := loadApplication(cmd)
	if err != nil {
		return exitWithError("error loading configuration", err)
	}

	if err := app.client.VerifyCredentials(ctx); err != nil {
		return exitWithError("error validating chatgpt credentials", err)
	}

	if _, err := app.client.GetModel(ctx, app.config.ModelVersion); err != nil {
		return exitWithError(fmt.Sprintf("error validating chatgpt model %s", app.config.ModelVersion), err)
	}

	state, err := app.store.Load()
	if err != nil {
		return exitWithError("error loading persisted assistant state", err)
	}
	if !state.Complete() {
		fmt.Println(color.YellowString("credentials and model are valid, no assistant has been set up yet"))
		return nil
	}

	assistant, err := app.client.GetAssistant(ctx, state.AssistantId)
	if err != nil {
		return exitWithError(fmt.Sprintf("error validating chatgpt assistant %s", state.AssistantId), err)
	}

	if assistant.ToolResources.FileSearch == nil ||
		!slices.Contains(assistant.ToolResources.FileSearch.VectorStoreIds, state.VectorStoreId) {
		log.Debug(fmt.Sprintf("vector store %s not found in assistant tool resources", state.VectorStoreId))
		return cli.Exit("assistant is not bound to the persisted vector store, run setup --force", exitCodeTransient)
	}

	store, err := app.client.GetVectorStore(ctx, state.VectorStoreId)
	if err != nil {
		return exitWithError(fmt.Sprintf("error validating chatgpt vector store %s", state.VectorStoreId), err)
	}

	fmt.Println(color.GreenString("assistant %s (%s) is ready", assistant.Name, assistant.Id))

	assistants, err := app.client.ListAssistants(ctx, ListOptions{Limit: 100, Order: "desc"})
	if err != nil {
		log.Warn(fmt.Sprintf("error listing assistants: %+v", err))
	} else if stale := staleAssistants(assistants, assistant); len(stale) > 0 {
		fmt.Println(color.YellowString("%d other assistants are named %s: %s", len(stale), assistant.Name, strings.Join(stale, ", ")))
	}
	fmt.Printf("vector store %s: %s, %d files\n", store.Id, store.Status, store.FileCounts.Total)

	for _, fileId := range uploadedFileIds(store) {
		file, err := app.client.RetrieveFile(ctx, fileId)
		if err != nil {
			return exitWithError(fmt.Sprintf("error validating reference file %s", fileId), err)
		}
		fmt.Printf("  %s (%d bytes)\n", file.Filename, file.Bytes)
	}
	return nil
}

// staleAssistants returns the ids of assistants sharing current's name,
// usually left over from earlier forced setups.
func staleAssistants(assistants []Assistant, current Assistant) []string {
	ids := []string{}
	for _, assistant := range assistants {
		if assistant.Name == current.Name && assistant.Id != current.Id {
			ids = append(ids, assistant.Id)
		}
	}
	return ids
}

// SetupCLICommand provisions the assistant and its vector store and
// persists their ids. Existing resources are kept and updated with the
// configured settings unless --force is given.
func SetupCLICommand(ctx context.Context, cmd *cli.Command) error {
	app, err := loadApplication(cmd)
	if err != nil {
		return exitWithError("error loading configuration", err)
	}
	advisor := app.advisor()

	s := newSpinner("Setting up assistant ")
	s.Start()

	var state Provisioned
	if cmd.Bool("force") {
		state, err = advisor.Provision(ctx)
	} else {
		state, err = advisor.Refresh(ctx)
	}
	s.Stop()

	if err != nil {
		return exitWithError("error setting up assistant", err)
	}

	fmt.Println(color.GreenString("assistant %s ready with vector store %s", state.AssistantId, state.VectorStoreId))
	return nil
}

// TeardownCLICommand deletes the persisted assistant and vector store.
func TeardownCLICommand(ctx context.Context, cmd *cli.Command) error {
	app, err := loadApplication(cmd)
	if err != nil {
		return exitWithError("error loading configuration", err)
	}

	if err := app.advisor().Teardown(ctx); err != nil {
		return exitWithError("error deleting assistant resources", err)
	}

	fmt.Println(color.GreenString("assistant resources deleted"))
	return nil
}

// ChatCLICommand runs the interactive advisor chat. The assistant is
// provisioned first if no ids have been persisted yet.
func ChatCLICommand(ctx context.Context, cmd *cli.Command) error {
	app, err := loadApplication(cmd)
	if err != nil {
		return exitWithError("error loading configuration", err)
	}

	s := newSpinner("Preparing your advisor ")
	s.Start()
	state, err := app.advisor().EnsureProvisioned(ctx)
	s.Stop()
	if err != nil {
		return exitWithError("error setting up assistant", err)
	}

	session := NewSession(app.client, state, SessionOptions{
		RunTimeout:       app.config.RunTimeout(),
		PollInterval:     app.config.PollInterval(),
		KeepRunOnTimeout: app.config.KeepRunOnTimeout,
		Indicator:        newSpinner("Thinking "),
	})
	log.WithField("session", session.Id).Debug("started chat session")

	history := NewQuestionHistory(app.stateDir)
	if err := history.Load(); err != nil {
		log.Warn(fmt.Sprintf("error loading chat history: %+v", err))
	}

	chat(ctx, bufio.NewReader(os.Stdin), os.Stdout, session, history)

	fmt.Println()
	printSessionStatistics(os.Stdout, app.responses)

	if err := session.End(ctx); err != nil {
		log.Debug(fmt.Sprintf("error ending chat session: %+v", err))
	}
	return nil
}

// chat reads questions until the user exits or the input is closed.
func chat(ctx context.Context, reader *bufio.Reader, out io.Writer, session *Session, history *QuestionHistory) {
	fmt.Fprintln(out, color.CyanString("Hi! I'm your academic advisor. Type 'help' for options."))

	for {
		question, err := getCliInput(reader, color.GreenString("You: "), func(value string) (string, error) {
			return strings.TrimSpace(value), nil
		})
		if err != nil {
			return
		}

		switch strings.ToLower(question) {
		case "":
			continue
		case "exit":
			return
		case "help":
			fmt.Fprintln(out, ChatHelp)
			continue
		case "reset":
			if err := session.End(ctx); err != nil {
				log.Debug(fmt.Sprintf("error resetting conversation: %+v", err))
			}
			fmt.Fprintln(out, color.CyanString("Started a new conversation."))
			continue
		case "faq":
			printFAQ(out, history)
			continue
		}

		replies, err := session.SendMessage(ctx, question)
		if err != nil {
			log.Debug(fmt.Sprintf("error answering question: %+v", err))
			fmt.Fprintln(out, color.YellowString("%s", retryMessage(err)))
		} else {
			fmt.Fprintf(out, "%s %s\n", color.CyanString("Advisor:"), replies[0])
		}

		promoted, err := history.Record(question)
		if err != nil {
			log.Warn(fmt.Sprintf("error recording question: %+v", err))
		} else if promoted {
			fmt.Fprintln(out, color.CyanString("You ask this a lot, so it has been added to your FAQ."))
		}
	}
}

func retryMessage(err error) string {
	var timeoutErr RunTimeoutError
	var statusErr RunStatusError
	switch {
	case errors.As(err, &timeoutErr):
		return "The advisor took too long to answer. Please try again."
	case errors.As(err, &statusErr):
		return "The advisor could not answer that question. Please try again."
	case errors.Is(err, ErrNoReply):
		return "The advisor did not reply. Please try asking differently."
	default:
		return "Something went wrong while contacting the advisor. Please try again."
	}
}

func printFAQ(out io.Writer, history *QuestionHistory) {
	questions, err := history.FAQ()
	if err != nil {
		log.Warn(fmt.Sprintf("error reading personal faq: %+v", err))
		return
	}
	if len(questions) == 0 {
		fmt.Fprintln(out, "Your FAQ is empty. Questions you ask three times show up here.")
		return
	}
	fmt.Fprintln(out, color.CyanString("Your frequently asked questions:"))
	for i, question := range questions {
		fmt.Fprintf(out, "%d. %s\n", i+1, question)
	}
}

// printSessionStatistics prints how many API responses were recorded per
// category during the session.
func printSessionStatistics(out io.Writer, responses *ResponseLog) {
	fmt.Fprintf(out, "Session statistics (last %d responses kept per category):\n", responses.Max())
	for _, category := range responses.Categories() {
		fmt.Fprintf(out, "%s: %d responses\n", category, len(responses.Responses(category)))
	}
	if raw, ok := responses.Latest("run_status"); ok {
		log.Debug(fmt.Sprintf("last run status response: %s", raw))
	}
}
