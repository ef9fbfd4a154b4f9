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

package trustline

import (
	"embed"
	"fmt"

	"github.com/hirewell/trustline/config"
	"github.com/hirewell/trustline/database"
	"github.com/hirewell/trustline/internal/cache"
	redis_db "github.com/hirewell/trustline/internal/redis-db"
	"github.com/hirewell/trustline/verification"
	"github.com/redis/go-redis/v9"
)

// Trustline wires the verification pipeline together: the task queue, the
// strategy registry, the datasource, and the dispatcher consuming tasks.
type Trustline struct {
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
	service    *verification.Service
	registry   *verification.Registry
	dispatcher *Dispatcher
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewTrustline initializes a new pipeline instance with the provided
// datasource. It fetches the configuration and builds the Redis client,
// cache, external adapters, strategy registry, queue, and dispatcher.
func NewTrustline(db database.IDataSource) (*Trustline, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}

	resultCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}

	oracle := verification.NewHTTPOracle(configuration.Oracle)
	market := verification.NewHTTPMarketData(configuration.MarketData)

	service := verification.NewService(configuration, db, oracle, market, resultCache, db, redisClient.Client())
	registry := verification.NewRegistry(service)
	queue := NewQueue(configuration)

	return &Trustline{
		queue:      queue,
		redis:      redisClient.Client(),
		datasource: db,
		service:    service,
		registry:   registry,
		dispatcher: NewDispatcher(registry, queue),
	}, nil
}

// Queue exposes the task queue for enqueueing verification work.
func (t *Trustline) Queue() *Queue {
	return t.queue
}

// Dispatcher exposes the task dispatcher consumed by the worker process.
func (t *Trustline) Dispatcher() *Dispatcher {
	return t.dispatcher
}

// Datasource exposes the persistence layer, used by migration and sweeper
// commands.
func (t *Trustline) Datasource() database.IDataSource {
	return t.datasource
}
