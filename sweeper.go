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
	"sync"
	"time"

	"github.com/hirewell/trustline/internal/metrics"
	"github.com/sirupsen/logrus"
)

// ExpirySweeper deletes verification records whose expires_at has passed.
// Reads already exclude expired rows; the sweeper only keeps the table from
// growing without bound, so it runs on a relaxed interval with a grace
// period before rows are physically removed.
type ExpirySweeper struct {
	trustline    *Trustline
	pollInterval time.Duration
	gracePeriod  time.Duration
	stopCh       chan struct{}
	wg           sync.WaitGroup
	running      bool
	mu           sync.Mutex
}

func NewExpirySweeper(trustline *Trustline) *ExpirySweeper {
	return &ExpirySweeper{
		trustline:    trustline,
		pollInterval: 10 * time.Minute,
		gracePeriod:  24 * time.Hour,
		stopCh:       make(chan struct{}),
	}
}

func (s *ExpirySweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()

	logrus.Info("Verification record expiry sweeper started")
}

func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	logrus.Info("Verification record expiry sweeper stopped")
}

func (s *ExpirySweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *ExpirySweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Expiry sweeper context cancelled")
			return
		case <-s.stopCh:
			logrus.Info("Expiry sweeper stop signal received")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.gracePeriod)
	deleted, err := s.trustline.datasource.DeleteExpiredVerificationRecords(ctx, cutoff)
	if err != nil {
		logrus.Errorf("failed to sweep expired verification records: %v", err)
		return
	}
	if deleted > 0 {
		metrics.RecordsSweptTotal.Add(float64(deleted))
		logrus.Infof("Swept %d expired verification records (expired before %s)", deleted, cutoff.Format(time.RFC3339))
	}
}

// SweepExpiredRecords triggers an immediate sweep with the provided grace
// period. Exposed for operational tooling.
func (t *Trustline) SweepExpiredRecords(ctx context.Context, gracePeriod time.Duration) (int64, error) {
	if gracePeriod < 0 {
		gracePeriod = 0
	}
	return t.datasource.DeleteExpiredVerificationRecords(ctx, time.Now().Add(-gracePeriod))
}
