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
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"

	"github.com/blnkfinance/vault/config"
	"github.com/blnkfinance/vault/internal/notification"
)

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

func initializeWorkerServer(conf *config.Configuration) (*asynq.Server, error) {
	clientOpt, err := redisClientOpt(conf)
	if err != nil {
		return nil, err
	}

	return asynq.NewServer(clientOpt, asynq.Config{
		Concurrency: conf.Queue.Concurrency,
		Queues:      map[string]int{conf.Queue.NotificationQueue: 1},
	}), nil
}

// startPurgeSchedule removes expired PIN reset tokens on the configured schedule.
func startPurgeSchedule(v *vaultInstance) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(v.cnf.Pin.PurgeSchedule, func() {
		n, err := v.vault.PurgeExpiredResetTokens(context.Background())
		if err != nil {
			logrus.WithError(err).Error("purging expired reset tokens")
			return
		}
		if n > 0 {
			logrus.WithField("purged", n).Info("expired reset tokens purged")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %v", v.cnf.Pin.PurgeSchedule, err)
	}
	c.Start()
	return c, nil
}

func startMonitoring(conf *config.Configuration) error {
	clientOpt, err := redisClientOpt(conf)
	if err != nil {
		return err
	}
	h := asynqmon.New(asynqmon.Options{
		RootPath:     "/monitoring",
		RedisConnOpt: clientOpt,
	})

	go func() {
		monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
		log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
		if err := http.ListenAndServe(monitoringAddr, h); err != nil {
			log.Fatalf("could not start asynqmon server: %v", err)
		}
	}()
	return nil
}

// workerCommands defines the "workers" command. Workers deliver queued
// notifications and run the reset token purge.
func workerCommands(v *vaultInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start vault workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			defer v.close()
			conf := v.cnf

			phClient, shutdown, err := initializeObservability(ctx, conf)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()
			if phClient != nil {
				defer phClient.Close()
			}

			srv, err := initializeWorkerServer(conf)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			mux.HandleFunc(conf.Queue.NotificationQueue, notification.NewRelay(conf).ProcessNotification)

			scheduler, err := startPurgeSchedule(v)
			if err != nil {
				log.Fatal(err)
			}
			defer scheduler.Stop()

			if err := startMonitoring(conf); err != nil {
				log.Fatal(err)
			}

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
