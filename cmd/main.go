/*
Copyright 2024 Blnk Finance Authors.

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

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/vault"
	"github.com/blnkfinance/vault/config"
	"github.com/blnkfinance/vault/database"
	"github.com/blnkfinance/vault/internal/archive"
	"github.com/blnkfinance/vault/internal/notification"
	redis_db "github.com/blnkfinance/vault/internal/redis-db"
)

// Vault represents the CLI application, encapsulating the root Cobra command.
type Vault struct {
	cmd *cobra.Command
}

// vaultInstance holds what every subcommand needs once the config is loaded.
type vaultInstance struct {
	vault *vault.Vault
	cnf   *config.Configuration
	redis *redis_db.Redis
	queue *asynq.Client
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and wires the ledger core before any command runs.
func preRun(app *vaultInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		if err := setupVault(app, cnf); err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}
		app.cnf = cnf

		return nil
	}
}

func redisClientOpt(cfg *config.Configuration) (asynq.RedisClientOpt, error) {
	opts, err := redis_db.ParseRedisURL(cfg.Redis.Dns, cfg.Redis.SkipTLSVerify)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("error parsing Redis URL: %v", err)
	}
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}, nil
}

// setupVault connects postgres and redis, then builds the core with the
// queue-backed notifier and, when enabled, the S3 statement archive.
func setupVault(app *vaultInstance, cfg *config.Configuration) error {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return fmt.Errorf("error getting datasource: %v", err)
	}

	rdb, err := redis_db.NewRedisClient([]string{cfg.Redis.Dns}, cfg.Redis.SkipTLSVerify)
	if err != nil {
		return fmt.Errorf("error connecting to redis: %v", err)
	}

	clientOpt, err := redisClientOpt(cfg)
	if err != nil {
		return err
	}
	queue := asynq.NewClient(clientOpt)

	opts := []vault.Option{
		vault.WithNotifier(notification.NewQueueSink(queue, cfg.Queue.NotificationQueue, cfg.Queue.MaxRetry)),
	}
	if cfg.Archive.Enabled {
		store, err := archive.NewS3Archive(cfg.Archive)
		if err != nil {
			return fmt.Errorf("error creating statement archive: %v", err)
		}
		opts = append(opts, vault.WithArchive(store))
	}

	newVault, err := vault.NewVault(db, rdb.Client(), opts...)
	if err != nil {
		return fmt.Errorf("error creating vault: %v", err)
	}

	app.vault = newVault
	app.redis = rdb
	app.queue = queue
	return nil
}

// NewCLI creates the command-line interface with the start, workers, migrate
// and bootstrap subcommands.
func NewCLI() *Vault {
	var configFile string
	v := &vaultInstance{}

	var rootCmd = &cobra.Command{
		Use:   "vault",
		Short: "Online banking ledger core",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./vault.json", "Configuration file for vault")
	rootCmd.PersistentPreRunE = preRun(v, &configFile)

	rootCmd.AddCommand(serverCommands(v))
	rootCmd.AddCommand(workerCommands(v))
	rootCmd.AddCommand(migrateCommands(v))
	rootCmd.AddCommand(bootstrapCommands(v))

	return &Vault{cmd: rootCmd}
}

func (w Vault) executeCLI() {
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
