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
	"testing"

	"github.com/hibiken/asynq"
	"github.com/hirewell/trustline/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workerTestConfig(t *testing.T) *config.Configuration {
	t.Helper()
	config.MockConfig(&config.Configuration{
		DataSource: config.DataSourceConfig{Dns: "postgres://test"},
		Redis:      config.RedisConfig{Dns: "localhost:6379"},
	})
	cnf, err := config.Fetch()
	require.NoError(t, err)
	return cnf
}

func TestPartitionQueueNames(t *testing.T) {
	cnf := workerTestConfig(t)

	names := partitionQueueNames(cnf)
	require.Len(t, names, cnf.Queue.NumberOfQueues)
	assert.Equal(t, cnf.Queue.TaskQueue+"_1", names[0])
	assert.Equal(t, cnf.Queue.TaskQueue+"_4", names[len(names)-1])
}

func TestInitializeWorkerServersOneServerPerPartition(t *testing.T) {
	cnf := workerTestConfig(t)

	noop := func(context.Context, *asynq.Task) error { return nil }
	servers := initializeWorkerServers(cnf, asynq.RedisClientOpt{Addr: cnf.Redis.Dns}, noop, noop)

	// each partition gets its own ordered server so partitions run in
	// parallel; the webhook queue rides on one extra concurrent server
	require.Len(t, servers, cnf.Queue.NumberOfQueues+1)
	for _, ws := range servers {
		assert.NotNil(t, ws.server)
		assert.NotNil(t, ws.mux)
	}
}
