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

// Package retry is the single retry helper for the verification pipeline.
// Strategy code never sleeps on its own; callers run external work through
// Do with a policy and an error classifier.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Policy describes a bounded exponential backoff. Timer is injectable so
// tests run deterministically without real sleeps.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	IsRetryable     func(error) bool
	Timer           backoff.Timer
}

// Default is the dispatcher policy: 3 attempts, backoff starting at 1s,
// factor 2, capped at 30s between attempts.
func Default(isRetryable func(error) bool) Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		Multiplier:      2,
		MaxInterval:     30 * time.Second,
		IsRetryable:     isRetryable,
	}
}

// Do runs op under the policy. It returns the number of attempts actually
// made alongside the final error. Non-retryable errors stop immediately;
// context cancellation abandons waiting between attempts.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error) (int, error) {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = policy.InitialInterval
	expo.Multiplier = policy.Multiplier
	expo.MaxInterval = policy.MaxInterval
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0
	expo.Reset()

	attempts := 0
	operation := func() error {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if policy.IsRetryable != nil && !policy.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		logrus.WithFields(logrus.Fields{
			"attempt":    attempts,
			"next_retry": wait.String(),
		}).Warnf("retrying after error: %v", err)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(policy.MaxAttempts-1)), ctx)
	err := backoff.RetryNotifyWithTimer(operation, bo, notify, policy.Timer)
	return attempts, err
}
