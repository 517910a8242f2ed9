package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const apiKeyVariable = "OPENAI_API_KEY"

// Environment carries the settings supplied out-of-band through
// environment variables.
type Environment struct {
	APIKey  string `env:"OPENAI_API_KEY,required,notEmpty"`
	BaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
}

// loadEnvironment reads the environment, optionally preloading variables
// from envFile. A missing env file is not an error, a missing credential is.
func loadEnvironment(envFile string) (Environment, error) {
	var environment Environment

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return environment, fmt.Errorf("loading env file %s: %w", envFile, err)
			}
			log.Debug(fmt.Sprintf("no env file found at %s", envFile))
		}
	}

	if err := env.Parse(&environment); err != nil {
		return environment, MissingCredentialError{
			Variable: apiKeyVariable,
			Err:      err,
		}
	}
	return environment, nil
}

func (e Environment) Credentials() ChatGPTCredentials {
	return ChatGPTCredentials{
		Secret: e.APIKey,
	}
}
