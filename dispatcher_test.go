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
	"sync"
	"testing"
	"time"

	"github.com/hirewell/trustline/config"
	"github.com/hirewell/trustline/internal/apierror"
	"github.com/hirewell/trustline/model"
	"github.com/hirewell/trustline/verification"
	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instantTimer fires immediately so dispatcher tests never sleep between
// retries.
type instantTimer struct {
	c chan time.Time
}

func newInstantTimer() *instantTimer {
	return &instantTimer{c: make(chan time.Time, 1)}
}

func (t *instantTimer) Start(time.Duration) { t.c <- time.Now() }
func (t *instantTimer) C() <-chan time.Time { return t.c }
func (t *instantTimer) Stop()               {}

type capturingPublisher struct {
	mu          sync.Mutex
	results     []model.ResultMessage
	deadLetters []model.DeadLetterMessage
	webhooks    []NewWebhook
	failPublish error
}

func (p *capturingPublisher) PublishResult(_ context.Context, result model.ResultMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failPublish != nil {
		return p.failPublish
	}
	p.results = append(p.results, result)
	return nil
}

func (p *capturingPublisher) PublishDeadLetter(_ context.Context, deadLetter model.DeadLetterMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deadLetters = append(p.deadLetters, deadLetter)
	return nil
}

func (p *capturingPublisher) PublishWebhook(_ context.Context, webhook NewWebhook) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.webhooks = append(p.webhooks, webhook)
	return nil
}

// scriptedStrategy fails its first failTimes executions with failErr, then
// succeeds with a fixed result.
type scriptedStrategy struct {
	typ        model.VerificationType
	failTimes  int
	failErr    error
	executions int
}

func (s *scriptedStrategy) Type() model.VerificationType { return s.typ }

func (s *scriptedStrategy) Execute(_ context.Context, _ json.RawMessage) (interface{}, error) {
	s.executions++
	if s.executions <= s.failTimes {
		return nil, s.failErr
	}
	return map[string]interface{}{"record_id": "vrf_test"}, nil
}

type staticRegistry struct {
	strategies map[model.VerificationType]verification.Strategy
}

func (r *staticRegistry) Resolve(typ model.VerificationType) (verification.Strategy, bool) {
	strategy, ok := r.strategies[typ]
	return strategy, ok
}

func newTestDispatcher(t *testing.T, strategies ...verification.Strategy) (*Dispatcher, *capturingPublisher) {
	t.Helper()

	config.MockConfig(&config.Configuration{
		DataSource: config.DataSourceConfig{Dns: "postgres://test"},
		Redis:      config.RedisConfig{Dns: "localhost:6379"},
	})

	registry := &staticRegistry{strategies: map[model.VerificationType]verification.Strategy{}}
	for _, strategy := range strategies {
		registry.strategies[strategy.Type()] = strategy
	}

	publisher := &capturingPublisher{}
	d := NewDispatcher(registry, publisher)
	d.policy.Timer = newInstantTimer()
	return d, publisher
}

func taskMessage(t *testing.T, typ string, payload interface{}) model.TaskMessage {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return model.TaskMessage{Type: typ, Payload: raw, RequestID: model.GenerateUUIDWithSuffix("req")}
}

func TestDispatchRetriesTransientThenSucceeds(t *testing.T) {
	strategy := &scriptedStrategy{
		typ:       model.TypeSpamCheck,
		failTimes: 2,
		failErr:   apierror.Transient("oracle timeout", nil),
	}
	d, publisher := newTestDispatcher(t, strategy)

	message := taskMessage(t, "spam_check", verification.SpamCheckPayload{JobID: "job_1"})
	require.NoError(t, d.Dispatch(context.Background(), message))

	assert.Equal(t, 3, strategy.executions)
	require.Len(t, publisher.results, 1)
	assert.Equal(t, model.TypeSpamCheck, publisher.results[0].Type)
	assert.Equal(t, message.RequestID, publisher.results[0].RequestID)
	assert.Empty(t, publisher.deadLetters)

	require.Len(t, publisher.webhooks, 1)
	assert.Equal(t, "verification.spam_check.completed", publisher.webhooks[0].Event)
}

func TestDispatchDeadLettersAfterExhaustedRetries(t *testing.T) {
	strategy := &scriptedStrategy{
		typ:       model.TypeSpamCheck,
		failTimes: 10,
		failErr:   apierror.Transient("still down", nil),
	}
	d, publisher := newTestDispatcher(t, strategy)

	message := taskMessage(t, "spam_check", verification.SpamCheckPayload{JobID: "job_1"})
	require.NoError(t, d.Dispatch(context.Background(), message))

	assert.Equal(t, 3, strategy.executions)
	assert.Empty(t, publisher.results)
	require.Len(t, publisher.deadLetters, 1)
	assert.Equal(t, "spam_check", publisher.deadLetters[0].Topic)
	assert.Contains(t, publisher.deadLetters[0].Error, "still down")

	// the original message rides along verbatim for replay
	var parked model.TaskMessage
	require.NoError(t, json.Unmarshal(publisher.deadLetters[0].Message, &parked))
	assert.Equal(t, message.RequestID, parked.RequestID)
}

func TestDispatchDoesNotRetryPermanentErrors(t *testing.T) {
	strategy := &scriptedStrategy{
		typ:       model.TypeDuplicateCheck,
		failTimes: 10,
		failErr:   apierror.NotFound("job not found", nil),
	}
	d, publisher := newTestDispatcher(t, strategy)

	message := taskMessage(t, "duplicate_check", verification.DuplicateCheckPayload{UserID: "usr_1", JobID: "job_1"})
	require.NoError(t, d.Dispatch(context.Background(), message))

	assert.Equal(t, 1, strategy.executions)
	require.Len(t, publisher.deadLetters, 1)
}

func TestDispatchUnknownTypeDeadLettersImmediately(t *testing.T) {
	strategy := &scriptedStrategy{typ: model.TypeSpamCheck}
	d, publisher := newTestDispatcher(t, strategy)

	message := taskMessage(t, "face_match", map[string]string{"user_id": "usr_1"})
	require.NoError(t, d.Dispatch(context.Background(), message))

	assert.Zero(t, strategy.executions)
	require.Len(t, publisher.deadLetters, 1)
	assert.Equal(t, "face_match", publisher.deadLetters[0].Topic)
	assert.Contains(t, publisher.deadLetters[0].Error, "unknown verification type")
}

func TestDispatchLegacyQualityTopicAlias(t *testing.T) {
	strategy := &scriptedStrategy{typ: model.TypeQualityAssessment}
	d, publisher := newTestDispatcher(t, strategy)

	message := taskMessage(t, "quality_tasks", verification.QualityAssessmentPayload{JobID: "job_1"})
	require.NoError(t, d.Dispatch(context.Background(), message))

	assert.Equal(t, 1, strategy.executions)
	require.Len(t, publisher.results, 1)
	assert.Equal(t, model.TypeQualityAssessment, publisher.results[0].Type)
}

func TestDispatchIncompleteMessageDeadLetters(t *testing.T) {
	strategy := &scriptedStrategy{typ: model.TypeSpamCheck}
	d, publisher := newTestDispatcher(t, strategy)

	message := model.TaskMessage{Type: "spam_check"} // no payload, no request id
	require.NoError(t, d.Dispatch(context.Background(), message))

	assert.Zero(t, strategy.executions)
	require.Len(t, publisher.deadLetters, 1)
}

func TestProcessTaskDropsUndecodablePayload(t *testing.T) {
	strategy := &scriptedStrategy{typ: model.TypeSpamCheck}
	d, publisher := newTestDispatcher(t, strategy)

	task := asynq.NewTask("verification_tasks_1", []byte("not json"))
	require.NoError(t, d.ProcessTask(context.Background(), task))

	assert.Zero(t, strategy.executions)
	require.Len(t, publisher.deadLetters, 1)
	assert.Equal(t, "unknown", publisher.deadLetters[0].Topic)
}

func TestDispatchDeadLettersWhenResultPublishFails(t *testing.T) {
	strategy := &scriptedStrategy{typ: model.TypeSpamCheck}
	d, publisher := newTestDispatcher(t, strategy)
	publisher.failPublish = errors.New("broker unavailable")

	message := taskMessage(t, "spam_check", verification.SpamCheckPayload{JobID: "job_1"})
	// the record is persisted; returning an error would archive the task, so
	// the lost result event is parked for replay instead
	require.NoError(t, d.Dispatch(context.Background(), message))

	require.Len(t, publisher.deadLetters, 1)
	assert.Contains(t, publisher.deadLetters[0].Error, "result publish failed")
	assert.Contains(t, publisher.deadLetters[0].Error, "broker unavailable")

	var parked model.TaskMessage
	require.NoError(t, json.Unmarshal(publisher.deadLetters[0].Message, &parked))
	assert.Equal(t, message.RequestID, parked.RequestID)
}
