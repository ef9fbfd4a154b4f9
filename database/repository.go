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

package database

import (
	"context"
	"time"

	"github.com/hirewell/trustline/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	verification // Interface for verification-record operations
	subject      // Interface for subject (company/job/application) operations
}

// verification defines methods for handling verification records.
type verification interface {
	CreateVerificationRecord(ctx context.Context, record *model.VerificationRecord) error                                  // Persists a new verification record
	GetVerificationByID(ctx context.Context, id string) (*model.VerificationRecord, error)                                 // Retrieves a record by ID
	GetCurrentVerification(ctx context.Context, typ model.VerificationType, subjectKey string) (*model.VerificationRecord, error) // Retrieves the latest unexpired record for a subject
	BulkInsertVerificationRecords(ctx context.Context, records []*model.VerificationRecord) (int, []BulkInsertFailure)     // Inserts records without ordering guarantees, reporting per-row failures
	MigrateSchema(ctx context.Context) (int64, error)                                                                      // Backfills rows written under older schema versions
	DeleteExpiredVerificationRecords(ctx context.Context, olderThan time.Time) (int64, error)                              // Removes records past their TTL
}

// subject defines methods for reading and flagging the entities under verification.
type subject interface {
	FindCompany(ctx context.Context, id string) (*model.Company, error)
	FindJob(ctx context.Context, id string) (*model.Job, error)
	FindApplicationsByUserAndJob(ctx context.Context, userID, jobID string) ([]model.Application, error)
	FindSimilarRecentApplications(ctx context.Context, userID, companyID string, since time.Time) ([]model.Application, error)
	FindRecentJobsByCompany(ctx context.Context, companyID string, limit int) ([]model.Job, error)
	MarkCompanyVerified(ctx context.Context, companyID string, verified bool) error
	FlagJobAsSpam(ctx context.Context, jobID string) error
	MarkJobSalaryVerified(ctx context.Context, jobID string, verified bool) error
}
