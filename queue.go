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
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"

	"github.com/hirewell/trustline/config"
	redis_db "github.com/hirewell/trustline/internal/redis-db"
	"github.com/hirewell/trustline/model"
	"github.com/hirewell/trustline/verification"
	"github.com/hibiken/asynq"
)

// Queue owns the durable task queues of the pipeline. Task queues are
// partitioned; every task for the same subject hashes to the same partition
// so a subject's verifications process in order.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// Enqueue places a verification task on its subject's partition. The task id
// is the request id, so a duplicate submission of the same request is
// rejected by the queue rather than verified twice.
func (q *Queue) Enqueue(ctx context.Context, message *model.TaskMessage) error {
	if err := message.Validate(); err != nil {
		return err
	}
	typ, err := model.ParseVerificationType(message.Type)
	if err != nil {
		return err
	}
	subjectKey, err := verification.SubjectKeyFor(typ, message.Payload)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	queueName, err := partitionFor(subjectKey)
	if err != nil {
		return err
	}

	// the dispatcher owns retries; asynq only redelivers on worker crash
	taskOptions := []asynq.Option{asynq.TaskID(message.RequestID), asynq.Queue(queueName), asynq.MaxRetry(0)}
	task := asynq.NewTask(queueName, payload, taskOptions...)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued verification task: %s (%s)", message.RequestID, queueName)
	return nil
}

// partitionFor maps a subject key to its partitioned queue name by hashing
// the key. All tasks for a subject land on the same partition.
func partitionFor(subjectKey string) (string, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return "", err
	}
	queueIndex := hashSubjectKey(subjectKey) % cnf.Queue.NumberOfQueues
	return fmt.Sprintf("%s_%d", cnf.Queue.TaskQueue, queueIndex+1), nil
}

// hashSubjectKey returns a consistent hash value for a subject key.
func hashSubjectKey(subjectKey string) int {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(subjectKey))
	return int(hasher.Sum32())
}

// PublishResult places a completed verification outcome on the result topic
// designated for its type. Each type has its own topic so downstream
// consumers subscribe per domain.
func (q *Queue) PublishResult(ctx context.Context, result model.ResultMessage) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}

	queueName := resultQueueFor(cfg, result.Type)
	task := asynq.NewTask(queueName, payload, asynq.Queue(queueName))
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	return nil
}

// resultQueueFor maps a verification type to its result topic,
// "{result_queue}_{type}".
func resultQueueFor(cfg *config.Configuration, typ model.VerificationType) string {
	return fmt.Sprintf("%s_%s", cfg.Queue.ResultQueue, typ)
}

// PublishWebhook enqueues an outbound webhook notification on the shared
// client. A missing webhook URL disables outbound notifications entirely.
func (q *Queue) PublishWebhook(ctx context.Context, webhook NewWebhook) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	if cfg.Notification.Webhook.Url == "" {
		return nil
	}

	payload, err := json.Marshal(webhook)
	if err != nil {
		return err
	}

	task := asynq.NewTask(cfg.Queue.WebhookQueue, payload, asynq.Queue(cfg.Queue.WebhookQueue))
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	return nil
}

// PublishDeadLetter parks an unprocessable task on the dead-letter queue for
// manual inspection.
func (q *Queue) PublishDeadLetter(ctx context.Context, deadLetter model.DeadLetterMessage) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(deadLetter)
	if err != nil {
		return err
	}

	task := asynq.NewTask(cfg.Queue.DeadLetterQueue, payload, asynq.Queue(cfg.Queue.DeadLetterQueue))
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	return nil
}

// GetTaskFromQueue retrieves an in-flight verification task by its request
// id, scanning every partition.
func (q *Queue) GetTaskFromQueue(requestID string) (*model.TaskMessage, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	for i := 1; i <= cfg.Queue.NumberOfQueues; i++ {
		queueName := fmt.Sprintf("%s_%d", cfg.Queue.TaskQueue, i)
		task, err := q.Inspector.GetTaskInfo(queueName, requestID)
		if err == nil && task != nil {
			var message model.TaskMessage
			if err := json.Unmarshal(task.Payload, &message); err != nil {
				return nil, err
			}
			return &message, nil
		}
	}
	return nil, nil // Return nil if the task is not found in any partition
}
