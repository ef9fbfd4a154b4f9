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
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hirewell/trustline/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhookTestQueue(t *testing.T, url string) (*Queue, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cnf := &config.Configuration{
		DataSource: config.DataSourceConfig{Dns: "postgres://test"},
		Redis:      config.RedisConfig{Dns: mr.Addr()},
	}
	cnf.Notification.Webhook.Url = url
	config.MockConfig(cnf)
	return NewQueue(cnf), mr
}

func TestPublishWebhookEnqueuesNotification(t *testing.T) {
	q, mr := newWebhookTestQueue(t, "http://localhost:5001/webhook")

	err := q.PublishWebhook(context.Background(), NewWebhook{
		Event:   "verification.spam_check.completed",
		Payload: map[string]interface{}{"record_id": "vrf_1"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, mr.Keys())
}

func TestPublishWebhookSkipsWhenUnconfigured(t *testing.T) {
	q, mr := newWebhookTestQueue(t, "")

	err := q.PublishWebhook(context.Background(), NewWebhook{
		Event:   "verification.spam_check.completed",
		Payload: map[string]interface{}{"record_id": "vrf_1"},
	})
	require.NoError(t, err)

	// nothing is enqueued when no webhook URL is configured
	assert.Empty(t, mr.Keys())
}
