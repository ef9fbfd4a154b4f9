/*
Copyright 2025 Trustline Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/hirewell/trustline"
	"github.com/hirewell/trustline/config"
	"github.com/hirewell/trustline/database"
	"github.com/hirewell/trustline/internal/notification"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Trustline represents the CLI application, encapsulating the root Cobra
// command.
type Trustline struct {
	cmd *cobra.Command
}

// trustlineInstance holds the pipeline instance and its configuration,
// shared by every subcommand after preRun.
type trustlineInstance struct {
	trustline *trustline.Trustline
	cnf       *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the
// error before exiting.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the pipeline instance
// before running any command.
func preRun(app *trustlineInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("trustline.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newTrustline, err := setupTrustline(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.trustline = newTrustline
		app.cnf = cnf

		return nil
	}
}

// setupTrustline creates a pipeline instance wired to the configured
// datasource.
func setupTrustline(cfg *config.Configuration) (*trustline.Trustline, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newTrustline, err := trustline.NewTrustline(db)
	if err != nil {
		return nil, fmt.Errorf("error creating trustline: %v", err)
	}
	return newTrustline, nil
}

// NewCLI creates the command-line interface for the verification pipeline.
func NewCLI() *Trustline {
	var configFile string
	b := &trustlineInstance{}

	var rootCmd = &cobra.Command{
		Use:   "trustline",
		Short: "Trust and verification pipeline",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./trustline.json", "Configuration file for the pipeline")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(migrateCommands(b))

	return &Trustline{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during
// execution.
func (w Trustline) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
