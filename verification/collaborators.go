package verification

import (
	"context"
	"time"

	"github.com/hirewell/trustline/model"
)

// SubjectStore is the narrow read/flag interface to the entities under
// verification. Lookups return nil (or an empty slice) for missing subjects;
// "not found" is never an error at this layer.
type SubjectStore interface {
	FindCompany(ctx context.Context, id string) (*model.Company, error)
	FindJob(ctx context.Context, id string) (*model.Job, error)
	FindApplicationsByUserAndJob(ctx context.Context, userID, jobID string) ([]model.Application, error)
	FindSimilarRecentApplications(ctx context.Context, userID, companyID string, since time.Time) ([]model.Application, error)
	FindRecentJobsByCompany(ctx context.Context, companyID string, limit int) ([]model.Job, error)

	MarkCompanyVerified(ctx context.Context, companyID string, verified bool) error
	FlagJobAsSpam(ctx context.Context, jobID string) error
	MarkJobSalaryVerified(ctx context.Context, jobID string, verified bool) error
}

// Oracle is the text-reasoning collaborator. It returns raw text that the
// typed helpers in oracle.go parse and bounds-check; callers never trust the
// output directly.
type Oracle interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// MarketData supplies salary benchmarks. Implementations must degrade to the
// deterministic fallback in FallbackSalaryStats when unreachable.
type MarketData interface {
	GetSalaryStats(ctx context.Context, title, location, experience string) (*model.SalaryStats, error)
}

// Recorder persists verification records. Implemented by the database layer.
type Recorder interface {
	CreateVerificationRecord(ctx context.Context, record *model.VerificationRecord) error
}
