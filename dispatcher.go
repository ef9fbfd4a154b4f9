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
	"time"

	"github.com/hirewell/trustline/config"
	"github.com/hirewell/trustline/internal/apierror"
	"github.com/hirewell/trustline/internal/metrics"
	"github.com/hirewell/trustline/internal/notification"
	"github.com/hirewell/trustline/internal/retry"
	"github.com/hirewell/trustline/model"
	"github.com/hirewell/trustline/verification"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

// Resolver maps a verification type to its strategy. Implemented by
// verification.Registry.
type Resolver interface {
	Resolve(typ model.VerificationType) (verification.Strategy, bool)
}

// Publisher carries verification outcomes downstream. Implemented by Queue.
type Publisher interface {
	PublishResult(ctx context.Context, result model.ResultMessage) error
	PublishDeadLetter(ctx context.Context, deadLetter model.DeadLetterMessage) error
	PublishWebhook(ctx context.Context, webhook NewWebhook) error
}

// Dispatcher consumes task messages, routes them to strategies, and owns the
// retry and dead-letter policy. Transient failures are retried with bounded
// exponential backoff; everything else dead-letters immediately.
type Dispatcher struct {
	registry  Resolver
	publisher Publisher
	policy    retry.Policy
}

func NewDispatcher(registry Resolver, publisher Publisher) *Dispatcher {
	policy := retry.Default(apierror.IsRetryable)
	if cnf, err := config.Fetch(); err == nil && cnf.Queue.MaxRetryAttempts > 0 {
		policy.MaxAttempts = cnf.Queue.MaxRetryAttempts
	}
	return &Dispatcher{
		registry:  registry,
		publisher: publisher,
		policy:    policy,
	}
}

// ProcessTask is the asynq handler for the partitioned task queues. It always
// consumes the delivery: retries happen inside Dispatch, and tasks that
// cannot succeed are dead-lettered rather than redelivered.
func (d *Dispatcher) ProcessTask(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("trustline.verification.worker").Start(ctx, "Process Verification Task From Queue")
	defer span.End()

	var message model.TaskMessage
	if err := json.Unmarshal(t.Payload(), &message); err != nil {
		logrus.Errorf("dropping undecodable task payload: %v", err)
		return d.deadLetter(ctx, "unknown", t.Payload(), apierror.Validation("task payload is not JSON", err))
	}
	return d.Dispatch(ctx, message)
}

// Dispatch runs one task message through its strategy.
func (d *Dispatcher) Dispatch(ctx context.Context, message model.TaskMessage) error {
	raw, _ := json.Marshal(message)

	if err := message.Validate(); err != nil {
		return d.deadLetter(ctx, message.Type, raw, apierror.Validation("task message is incomplete", err))
	}

	typ, err := model.ParseVerificationType(message.Type)
	if err != nil {
		// unknown types dead-letter immediately, no retries
		return d.deadLetter(ctx, message.Type, raw, apierror.Validation("unknown verification type", err))
	}

	strategy, ok := d.registry.Resolve(typ)
	if !ok {
		return d.deadLetter(ctx, message.Type, raw, apierror.Validation(fmt.Sprintf("no strategy registered for %s", typ), nil))
	}

	start := time.Now()
	var result interface{}
	attempts, err := retry.Do(ctx, d.policy, func(ctx context.Context) error {
		var execErr error
		result, execErr = strategy.Execute(ctx, message.Payload)
		return execErr
	})

	duration := time.Since(start)
	metrics.TaskAttemptsTotal.WithLabelValues(string(typ)).Add(float64(attempts))
	metrics.TaskDurationSeconds.WithLabelValues(string(typ)).Observe(duration.Seconds())

	fields := logrus.Fields{
		"request_id": message.RequestID,
		"type":       typ,
		"attempts":   attempts,
		"duration":   duration.String(),
	}

	if err != nil {
		metrics.TaskErrorsTotal.WithLabelValues(string(typ), string(apierror.CodeOf(err))).Inc()
		logrus.WithFields(fields).Errorf("verification task failed: %v", err)
		return d.deadLetter(ctx, message.Type, raw, err)
	}

	metrics.TaskSuccessTotal.WithLabelValues(string(typ)).Inc()
	logrus.WithFields(fields).Info("verification task completed")

	if err := d.publisher.PublishResult(ctx, model.ResultMessage{
		Type:      typ,
		Payload:   result,
		RequestID: message.RequestID,
	}); err != nil {
		// the record is persisted but the result event is lost; park the
		// message so an operator can replay it rather than archiving it
		logrus.WithFields(fields).Errorf("failed to publish result: %v", err)
		return d.deadLetter(ctx, message.Type, raw, fmt.Errorf("result publish failed: %w", err))
	}

	if err := d.publisher.PublishWebhook(ctx, NewWebhook{Event: fmt.Sprintf("verification.%s.completed", typ), Payload: result}); err != nil {
		logrus.WithFields(fields).Warnf("failed to enqueue result webhook: %v", err)
	}

	return nil
}

// deadLetter parks the message on the dead-letter queue and notifies. The
// original message rides along verbatim so operators can replay it.
func (d *Dispatcher) deadLetter(ctx context.Context, topic string, raw []byte, cause error) error {
	metrics.DeadLetterTotal.WithLabelValues(topic).Inc()

	deadLetter := model.DeadLetterMessage{
		Topic:   topic,
		Message: raw,
		Error:   cause.Error(),
	}
	if err := d.publisher.PublishDeadLetter(ctx, deadLetter); err != nil {
		logrus.Errorf("failed to publish dead letter for topic %s: %v", topic, err)
		return err
	}

	notification.NotifyError(fmt.Errorf("verification task dead-lettered on %s: %w", topic, cause))
	return nil
}
