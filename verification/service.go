// Package verification implements the trust and verification pipeline: five
// pluggable strategies that evaluate job postings, companies, salaries, and
// applications, score them with weighted rules, and persist versioned,
// auto-expiring verification records.
package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hirewell/trustline/config"
	"github.com/hirewell/trustline/internal/apierror"
	"github.com/hirewell/trustline/internal/cache"
	redlock "github.com/hirewell/trustline/internal/lock"
	"github.com/hirewell/trustline/internal/metrics"
	"github.com/hirewell/trustline/model"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Strategy is one verification type's handler. Execute owns all side
// effects: cache writes, record persistence, and subject flag updates.
type Strategy interface {
	Type() model.VerificationType
	Execute(ctx context.Context, payload json.RawMessage) (interface{}, error)
}

// Service carries the collaborators shared by every strategy.
type Service struct {
	cnf      *config.Configuration
	subjects SubjectStore
	oracle   Oracle
	market   MarketData
	cache    cache.Cache
	recorder Recorder
	redis    redis.UniversalClient // nil disables advisory locks
}

func NewService(cnf *config.Configuration, subjects SubjectStore, oracle Oracle, market MarketData, c cache.Cache, recorder Recorder, redisClient redis.UniversalClient) *Service {
	return &Service{
		cnf:      cnf,
		subjects: subjects,
		oracle:   oracle,
		market:   market,
		cache:    c,
		recorder: recorder,
		redis:    redisClient,
	}
}

// TTL returns the configured record/cache TTL for a verification type.
func (s *Service) TTL(typ model.VerificationType) time.Duration {
	v := s.cnf.Verification
	switch typ {
	case model.TypeCompanyVerification:
		return time.Duration(v.CompanyTTLSeconds) * time.Second
	case model.TypeSpamCheck:
		return time.Duration(v.SpamTTLSeconds) * time.Second
	case model.TypeSalaryVerification:
		return time.Duration(v.SalaryTTLSeconds) * time.Second
	case model.TypeDuplicateCheck:
		return time.Duration(v.DuplicateTTLSeconds) * time.Second
	case model.TypeQualityAssessment:
		return time.Duration(v.QualityTTLSeconds) * time.Second
	default:
		return 24 * time.Hour
	}
}

// fromCache loads a cached strategy result. Failures are downgraded to
// misses; the cache is never allowed to fail a request.
func (s *Service) fromCache(ctx context.Context, key string, out interface{}) bool {
	if s.cache == nil {
		return false
	}
	if err := s.cache.Get(ctx, key, out); err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("get").Inc()
		logrus.Warnf("cache read failed for %s, treating as miss: %v", key, err)
		return false
	}
	return true
}

// toCache stores a strategy result best effort.
func (s *Service) toCache(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("set").Inc()
		logrus.Warnf("cache write failed for %s: %v", key, err)
	}
}

// marketStats resolves the salary benchmark for a posting, read-through
// cached per title/location/experience so every strategy evaluating the same
// role hits the market service once.
func (s *Service) marketStats(ctx context.Context, job *model.Job) *model.SalaryStats {
	key := cache.Key("market_data", fmt.Sprintf("%s:%s:%s", job.Title, job.Location, job.ExperienceLevel))

	var cached model.SalaryStats
	if s.fromCache(ctx, key, &cached) && cached.MaxSalary > 0 {
		return &cached
	}

	stats, err := s.market.GetSalaryStats(ctx, job.Title, job.Location, job.ExperienceLevel)
	if err != nil || stats == nil {
		stats = FallbackSalaryStats()
	}

	s.toCache(ctx, key, stats, s.TTL(model.TypeSalaryVerification))
	return stats
}

// persist writes the record, retrying a failed write once inline before
// escalating as a persistence error.
func (s *Service) persist(ctx context.Context, record *model.VerificationRecord) error {
	err := s.recorder.CreateVerificationRecord(ctx, record)
	if err == nil {
		return nil
	}
	logrus.Warnf("verification record write failed, retrying once: %v", err)
	if err = s.recorder.CreateVerificationRecord(ctx, record); err != nil {
		return apierror.Persistence("failed to persist verification record", err)
	}
	return nil
}

// subjectLockTimeout bounds how long an advisory lock is held; subjectLockWait
// bounds how long a worker queues behind another holder before proceeding
// without the lock.
const (
	subjectLockTimeout = 30 * time.Second
	subjectLockWait    = 10 * time.Second
)

// withSubjectLock serializes the expensive strategies per subject when
// advisory locks are enabled. The lock is advisory: failing to acquire it
// degrades to a redundant recompute, never to a failed task.
func (s *Service) withSubjectLock(ctx context.Context, typ model.VerificationType, subjectKey string, fn func() error) error {
	if !s.cnf.Verification.AdvisoryLocks || s.redis == nil {
		return fn()
	}

	locker := redlock.NewLocker(s.redis, redlock.SubjectKey(string(typ), subjectKey), model.GenerateUUIDWithSuffix("lck"))
	if err := locker.WaitLock(ctx, subjectLockTimeout, subjectLockWait); err != nil {
		logrus.Warnf("advisory lock unavailable for %s:%s, proceeding without it: %v", typ, subjectKey, err)
		return fn()
	}
	defer func() {
		if err := locker.Unlock(context.WithoutCancel(ctx)); err != nil {
			logrus.Warnf("advisory unlock failed for %s:%s: %v", typ, subjectKey, err)
		}
	}()

	return fn()
}

// Registry maps the closed set of verification types to their strategies.
type Registry struct {
	strategies map[model.VerificationType]Strategy
}

// NewRegistry wires the five production strategies.
func NewRegistry(s *Service) *Registry {
	r := &Registry{strategies: make(map[model.VerificationType]Strategy)}
	r.Register(&CompanyVerificationStrategy{service: s})
	r.Register(&SpamCheckStrategy{service: s})
	r.Register(&SalaryVerificationStrategy{service: s})
	r.Register(&DuplicateCheckStrategy{service: s})
	r.Register(&QualityAssessmentStrategy{service: s})
	return r
}

func (r *Registry) Register(strategy Strategy) {
	r.strategies[strategy.Type()] = strategy
}

// Resolve returns the strategy for a type; unknown types are permanent
// errors handled by the dispatcher's dead-letter path.
func (r *Registry) Resolve(typ model.VerificationType) (Strategy, bool) {
	strategy, ok := r.strategies[typ]
	return strategy, ok
}

// SubjectKeyFor decodes the payload for a type far enough to produce the
// partition key, so enqueueing can route all tasks for a subject to the same
// ordered partition.
func SubjectKeyFor(typ model.VerificationType, payload json.RawMessage) (string, error) {
	switch typ {
	case model.TypeCompanyVerification:
		var p CompanyVerificationPayload
		if err := decodePayload(payload, &p); err != nil {
			return "", err
		}
		return p.SubjectKey(), nil
	case model.TypeSpamCheck:
		var p SpamCheckPayload
		if err := decodePayload(payload, &p); err != nil {
			return "", err
		}
		return p.SubjectKey(), nil
	case model.TypeSalaryVerification:
		var p SalaryVerificationPayload
		if err := decodePayload(payload, &p); err != nil {
			return "", err
		}
		return p.SubjectKey(), nil
	case model.TypeDuplicateCheck:
		var p DuplicateCheckPayload
		if err := decodePayload(payload, &p); err != nil {
			return "", err
		}
		return p.SubjectKey(), nil
	case model.TypeQualityAssessment:
		var p QualityAssessmentPayload
		if err := decodePayload(payload, &p); err != nil {
			return "", err
		}
		return p.SubjectKey(), nil
	default:
		return "", apierror.Validation("unknown verification type", string(typ))
	}
}

type validatable interface {
	Validate() error
}

func decodePayload(raw json.RawMessage, into validatable) error {
	if err := json.Unmarshal(raw, into); err != nil {
		return apierror.Validation("task payload is malformed", err)
	}
	if err := into.Validate(); err != nil {
		return apierror.Validation("task payload is incomplete", err)
	}
	return nil
}
