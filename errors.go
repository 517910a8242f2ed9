package main

import (
	"errors"
	"fmt"
	"time"
)

var ErrNoReply = errors.New("assistant produced no reply")

type InvalidConfigFileError struct {
	Path string
}

func (e InvalidConfigFileError) Error() string {
	return fmt.Sprintf("error loading config file at provided path %s", e.Path)
}

type ConfigFileNotFoundError struct {
	Path string
}

func (e ConfigFileNotFoundError) Error() string {
	return fmt.Sprintf("cannot find config file at provided path %s", e.Path)
}

type MissingCredentialError struct {
	Variable string
	Err      error
}

func (e MissingCredentialError) Error() string {
	return fmt.Sprintf("api credential %s is not set: %v", e.Variable, e.Err)
}

func (e MissingCredentialError) Unwrap() error {
	return e.Err
}

type ReferenceFileError struct {
	Path string
	Err  error
}

func (e ReferenceFileError) Error() string {
	return fmt.Sprintf("reference file %s is not usable: %v", e.Path, e.Err)
}

func (e ReferenceFileError) Unwrap() error {
	return e.Err
}

type ChatGPTErrorType string

const (
	ChatGPTErrorTypeAuth      ChatGPTErrorType = "authentication"
	ChatGPTErrorTypeAPI       ChatGPTErrorType = "api"
	ChatGPTErrorTypeMalformed ChatGPTErrorType = "malformed"
)

type ChatGPTError struct {
	Code int
	Body map[string]interface{}
	Raw  string
	Type ChatGPTErrorType
}

func (e ChatGPTError) Error() string {
	return fmt.Sprintf("received ChatGPT error type %s: status code %d", e.Type, e.Code)
}

type RunStatusError struct {
	RunId     string
	Status    RunStatus
	LastError *RunError
}

func (e RunStatusError) Error() string {
	if e.LastError != nil {
		return fmt.Sprintf("run %s ended with status %s: %s: %s", e.RunId, e.Status, e.LastError.Code, e.LastError.Message)
	}
	return fmt.Sprintf("run %s ended with status %s", e.RunId, e.Status)
}

type RunTimeoutError struct {
	RunId      string
	LastStatus RunStatus
	Timeout    time.Duration
}

func (e RunTimeoutError) Error() string {
	return fmt.Sprintf("run %s timed out after %s (last status %s)", e.RunId, e.Timeout, e.LastStatus)
}

type SetupError struct {
	Step string
	Err  error
}

func (e SetupError) Error() string {
	return fmt.Sprintf("assistant setup failed at step %q: %v", e.Step, e.Err)
}

func (e SetupError) Unwrap() error {
	return e.Err
}
