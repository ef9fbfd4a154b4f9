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
package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewCacheFromAddresses([]string{mr.Addr()}, false)
	require.NoError(t, err)
	return c
}

func TestKey(t *testing.T) {
	assert.Equal(t, "spam_check:job_123", Key("spam_check", "job_123"))
	assert.Equal(t, "salary_verification:engineer:berlin:senior", Key("salary_verification", "engineer:berlin:senior"))
}

func TestSetAndGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	setValue := map[string]string{"status": "verified"}
	err := c.Set(ctx, Key("company_verification", "cmp_1"), setValue, 10*time.Minute)
	assert.NoError(t, err)

	var getValue map[string]string
	err = c.Get(ctx, Key("company_verification", "cmp_1"), &getValue)
	assert.NoError(t, err)
	assert.Equal(t, setValue, getValue)
}

func TestGetMissIsNotAnError(t *testing.T) {
	c := newTestCache(t)

	var getValue map[string]string
	err := c.Get(context.Background(), "nonExistentKey", &getValue)
	assert.NoError(t, err)
	assert.Empty(t, getValue)
}

func TestGetPropagatesBackendFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := newRedisCache(client)

	key := Key("spam_check", "job_1")
	mock.ExpectGet(key).SetErr(assert.AnError)

	var getValue string
	err := c.Get(context.Background(), key, &getValue)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	key := Key("duplicate_check", "usr_1:job_1")
	err := c.Set(ctx, key, "blocked", 10*time.Minute)
	require.NoError(t, err)

	err = c.Delete(ctx, key)
	assert.NoError(t, err)

	var getValue string
	err = c.Get(ctx, key, &getValue)
	assert.NoError(t, err)
	assert.Empty(t, getValue)

	assert.NoError(t, c.Delete(ctx, "nonExistentKey"))
}
