package main

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := cli.Command{
		Name:  "goadvisor",
		Usage: "Chat with an AI academic advisor grounded in your reference files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "log level for outputs",
			},
			&cli.StringFlag{
				Name:  "config-path",
				Value: getDefaultConfigPath(),
				Usage: "path to configuration file",
			},
			&cli.StringFlag{
				Name:  "state-dir",
				Value: getDefaultStateDir(),
				Usage: "directory holding persisted assistant ids and chat history",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "optional env file providing OPENAI_API_KEY",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "configure",
				Usage:  "Configure the advisor model and reference files",
				Action: ConfigureCLICommand,
			},
			{
				Name:   "test",
				Usage:  "Test chatgpt access and the provisioned assistant",
				Action: TestCLICommand,
			},
			{
				Name:  "setup",
				Usage: "Create the assistant and upload the reference files",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "provision new resources even if ids are already persisted",
					},
				},
				Action: SetupCLICommand,
			},
			{
				Name:   "chat",
				Usage:  "Start an interactive chat with the advisor",
				Action: ChatCLICommand,
			},
			{
				Name:   "teardown",
				Usage:  "Delete the assistant and vector store",
				Action: TeardownCLICommand,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
