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

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const DEFAULT_MONITORING_PORT = "5002"

var ConfigStore atomic.Value

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"TRUSTLINE_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"TRUSTLINE_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"TRUSTLINE_REDIS_SKIP_TLS_VERIFY"`
}

// QueueConfig holds the queue names and sizing for the verification task
// pipeline. Task queues are partitioned; all messages for the same subject
// land on the same partition and are processed in order.
type QueueConfig struct {
	TaskQueue        string `json:"task_queue" envconfig:"TRUSTLINE_QUEUE_TASK_QUEUE"`
	ResultQueue      string `json:"result_queue" envconfig:"TRUSTLINE_QUEUE_RESULT_QUEUE"`
	DeadLetterQueue  string `json:"dead_letter_queue" envconfig:"TRUSTLINE_QUEUE_DEAD_LETTER_QUEUE"`
	WebhookQueue     string `json:"webhook_queue" envconfig:"TRUSTLINE_QUEUE_WEBHOOK_QUEUE"`
	NumberOfQueues   int    `json:"number_of_queues" envconfig:"TRUSTLINE_QUEUE_NUMBER_OF_QUEUES"`
	MaxRetryAttempts int    `json:"max_retry_attempts" envconfig:"TRUSTLINE_QUEUE_MAX_RETRY_ATTEMPTS"`
	MonitoringPort   string `json:"monitoring_port" envconfig:"TRUSTLINE_QUEUE_MONITORING_PORT"`
}

type OracleConfig struct {
	Url     string `json:"url" envconfig:"TRUSTLINE_ORACLE_URL"`
	ApiKey  string `json:"api_key" envconfig:"TRUSTLINE_ORACLE_API_KEY"`
	Timeout int    `json:"timeout" envconfig:"TRUSTLINE_ORACLE_TIMEOUT"`
}

type MarketDataConfig struct {
	Url     string `json:"url" envconfig:"TRUSTLINE_MARKET_DATA_URL"`
	Timeout int    `json:"timeout" envconfig:"TRUSTLINE_MARKET_DATA_TIMEOUT"`
}

// VerificationConfig carries the product constants of the pipeline: cache and
// record TTLs per verification type, the weighted-check tables for spam and
// quality scoring, and the decision thresholds. Weights and thresholds are
// unexplained product constants; they are configurable here but must not be
// rebalanced without product confirmation.
type VerificationConfig struct {
	CompanyTTLSeconds   int `json:"company_ttl_seconds" envconfig:"TRUSTLINE_VERIFICATION_COMPANY_TTL"`
	SpamTTLSeconds      int `json:"spam_ttl_seconds" envconfig:"TRUSTLINE_VERIFICATION_SPAM_TTL"`
	SalaryTTLSeconds    int `json:"salary_ttl_seconds" envconfig:"TRUSTLINE_VERIFICATION_SALARY_TTL"`
	DuplicateTTLSeconds int `json:"duplicate_ttl_seconds" envconfig:"TRUSTLINE_VERIFICATION_DUPLICATE_TTL"`
	QualityTTLSeconds   int `json:"quality_ttl_seconds" envconfig:"TRUSTLINE_VERIFICATION_QUALITY_TTL"`

	SpamWeights    map[string]float64 `json:"spam_weights"`
	QualityWeights map[string]float64 `json:"quality_weights"`

	SpamThreshold    float64 `json:"spam_threshold" envconfig:"TRUSTLINE_VERIFICATION_SPAM_THRESHOLD"`
	CompanyPassRatio float64 `json:"company_pass_ratio" envconfig:"TRUSTLINE_VERIFICATION_COMPANY_PASS_RATIO"`

	AdvisoryLocks bool `json:"advisory_locks" envconfig:"TRUSTLINE_VERIFICATION_ADVISORY_LOCKS"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string             `json:"project_name" envconfig:"TRUSTLINE_PROJECT_NAME"`
	DataSource   DataSourceConfig   `json:"data_source"`
	Redis        RedisConfig        `json:"redis"`
	Queue        QueueConfig        `json:"queue"`
	Oracle       OracleConfig       `json:"oracle"`
	MarketData   MarketDataConfig   `json:"market_data"`
	Verification VerificationConfig `json:"verification"`
	Notification Notification       `json:"notification"`
}

// defaultSpamWeights mirrors the product spam-signal weighting. The map keys
// are the check names reported in VerificationRecord.Checks.
func defaultSpamWeights() map[string]float64 {
	return map[string]float64{
		"duplicate_content":   0.25,
		"suspicious_keywords": 0.15,
		"unrealistic_salary":  0.20,
		"description_quality": 0.15,
		"company_reputation":  0.15,
		"contact_info":        0.10,
	}
}

func defaultQualityWeights() map[string]float64 {
	return map[string]float64{
		"description":         0.25,
		"company_info":        0.20,
		"salary_transparency": 0.15,
		"requirements":        0.20,
		"contact_info":        0.10,
		"application_process": 0.10,
	}
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("trustline", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called trustline.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Trustline Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	cnf.Queue.applyDefaults()
	cnf.Verification.applyDefaults()

	if cnf.Oracle.Timeout <= 0 {
		cnf.Oracle.Timeout = 5
	}
	if cnf.MarketData.Timeout <= 0 {
		cnf.MarketData.Timeout = 5
	}

	// Weight tables must cover the full signal, otherwise scores silently
	// drift out of range. Checked once here, never at request time.
	if err := validateWeights("spam_weights", cnf.Verification.SpamWeights); err != nil {
		return err
	}
	if err := validateWeights("quality_weights", cnf.Verification.QualityWeights); err != nil {
		return err
	}

	return nil
}

func (q *QueueConfig) applyDefaults() {
	if q.TaskQueue == "" {
		q.TaskQueue = "verification_tasks"
	}
	if q.ResultQueue == "" {
		q.ResultQueue = "verification_results"
	}
	if q.DeadLetterQueue == "" {
		q.DeadLetterQueue = "verification_dlq"
	}
	if q.WebhookQueue == "" {
		q.WebhookQueue = "new:webhook"
	}
	if q.NumberOfQueues <= 0 {
		q.NumberOfQueues = 4
	}
	if q.MaxRetryAttempts <= 0 {
		q.MaxRetryAttempts = 3
	}
	if q.MonitoringPort == "" {
		q.MonitoringPort = DEFAULT_MONITORING_PORT
	}
}

func (v *VerificationConfig) applyDefaults() {
	if v.CompanyTTLSeconds <= 0 {
		v.CompanyTTLSeconds = int((7 * 24 * time.Hour).Seconds())
	}
	if v.SpamTTLSeconds <= 0 {
		v.SpamTTLSeconds = int((24 * time.Hour).Seconds())
	}
	if v.SalaryTTLSeconds <= 0 {
		v.SalaryTTLSeconds = int((24 * time.Hour).Seconds())
	}
	if v.DuplicateTTLSeconds <= 0 {
		v.DuplicateTTLSeconds = int(time.Hour.Seconds())
	}
	if v.QualityTTLSeconds <= 0 {
		v.QualityTTLSeconds = int((24 * time.Hour).Seconds())
	}
	if v.SpamThreshold <= 0 {
		v.SpamThreshold = 0.7
	}
	if v.CompanyPassRatio <= 0 {
		v.CompanyPassRatio = 0.6
	}
	if len(v.SpamWeights) == 0 {
		v.SpamWeights = defaultSpamWeights()
	}
	if len(v.QualityWeights) == 0 {
		v.QualityWeights = defaultQualityWeights()
	}
}

func validateWeights(name string, weights map[string]float64) error {
	var sum float64
	for check, w := range weights {
		if w < 0 {
			return fmt.Errorf("%s: weight for %q is negative", name, check)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("%s: weights sum to %.4f, expected 1.0", name, sum)
	}
	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	mockConfig.Queue.applyDefaults()
	mockConfig.Verification.applyDefaults()
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
