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
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hirewell/trustline"
	"github.com/hirewell/trustline/config"
	redis_db "github.com/hirewell/trustline/internal/redis-db"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
)

// webhookConcurrency sizes the webhook delivery server; deliveries are
// independent of each other so they run concurrently.
const webhookConcurrency = 3

// workerServer pairs an asynq server with the mux it serves.
type workerServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// partitionQueueNames lists the partitioned task queues,
// "{task_queue}_1".."{task_queue}_N".
func partitionQueueNames(cfg *config.Configuration) []string {
	names := make([]string, 0, cfg.Queue.NumberOfQueues)
	for i := 1; i <= cfg.Queue.NumberOfQueues; i++ {
		names = append(names, fmt.Sprintf("%s_%d", cfg.Queue.TaskQueue, i))
	}
	return names
}

// initializeWorkerServers builds one single-concurrency server per task
// partition plus a concurrent server for the webhook queue. A server per
// partition keeps each subject's tasks strictly ordered while different
// partitions execute fully in parallel.
func initializeWorkerServers(conf *config.Configuration, opt asynq.RedisClientOpt, task, webhook asynq.HandlerFunc) []workerServer {
	var servers []workerServer

	for _, queueName := range partitionQueueNames(conf) {
		srv := asynq.NewServer(opt, asynq.Config{
			Concurrency: 1,
			Queues:      map[string]int{queueName: 1},
		})
		mux := asynq.NewServeMux()
		mux.HandleFunc(queueName, task)
		servers = append(servers, workerServer{server: srv, mux: mux})
	}

	webhookSrv := asynq.NewServer(opt, asynq.Config{
		Concurrency: webhookConcurrency,
		Queues:      map[string]int{conf.Queue.WebhookQueue: 1},
	})
	webhookMux := asynq.NewServeMux()
	webhookMux.HandleFunc(conf.Queue.WebhookQueue, webhook)
	servers = append(servers, workerServer{server: webhookSrv, mux: webhookMux})

	return servers
}

// workerCommands defines the "workers" command to start the verification
// worker process: the partitioned task consumers, the webhook deliverer,
// the expiry sweeper, and the monitoring endpoints.
func workerCommands(b *trustlineInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start trustline workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
			if err != nil {
				log.Fatalf("Error parsing Redis URL: %v", err)
			}
			opt := asynq.RedisClientOpt{
				Addr:      redisOption.Addr,
				Password:  redisOption.Password,
				DB:        redisOption.DB,
				TLSConfig: redisOption.TLSConfig,
			}

			servers := initializeWorkerServers(conf, opt, b.trustline.Dispatcher().ProcessTask, trustline.ProcessWebhook)

			sweeper := trustline.NewExpirySweeper(b.trustline)
			sweeper.Start(ctx)
			defer sweeper.Stop()

			// asynqmon plus prometheus metrics on the monitoring port
			h := asynqmon.New(asynqmon.Options{
				RootPath:     "/monitoring",
				RedisConnOpt: opt,
			})

			monitoringMux := http.NewServeMux()
			monitoringMux.Handle("/monitoring/", h)
			monitoringMux.Handle("/metrics", promhttp.Handler())

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Monitoring server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, monitoringMux); err != nil {
					log.Fatalf("could not start monitoring server: %v", err)
				}
			}()

			for _, ws := range servers {
				if err := ws.server.Start(ws.mux); err != nil {
					log.Fatalf("could not start worker server: %v", err)
				}
			}

			// drain on shutdown: in-flight tasks finish, nothing new starts
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			log.Println("Shutting down workers, draining in-flight tasks")
			for _, ws := range servers {
				ws.server.Shutdown()
			}
		},
	}

	return cmd
}
