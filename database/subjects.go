package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/hirewell/trustline/internal/apierror"
	"github.com/hirewell/trustline/model"
)

// FindCompany retrieves a company by its ID. Missing or soft-deleted
// companies come back as nil, not as an error.
func (d *Datasource) FindCompany(ctx context.Context, id string) (*model.Company, error) {
	var company model.Company
	var profilesJSON, metaDataJSON []byte

	query := `
		SELECT company_id, name, website, registration_number, address, social_profiles, employee_count, verified, verified_at, meta_data, created_at
		FROM trustline.companies
		WHERE company_id = $1 AND deleted_at IS NULL
	`
	err := d.Conn.QueryRowContext(ctx, query, id).Scan(
		&company.CompanyID,
		&company.Name,
		&company.Website,
		&company.RegistrationNumber,
		&company.Address,
		&profilesJSON,
		&company.EmployeeCount,
		&company.Verified,
		&company.VerifiedAt,
		&metaDataJSON,
		&company.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apierror.Persistence("failed to read company", err)
	}

	if len(profilesJSON) > 0 {
		if err := json.Unmarshal(profilesJSON, &company.SocialProfiles); err != nil {
			return nil, apierror.Persistence("stored social profiles are corrupt", err)
		}
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &company.MetaData); err != nil {
			return nil, apierror.Persistence("stored company metadata is corrupt", err)
		}
	}
	return &company, nil
}

// FindJob retrieves a job posting by its ID, nil when missing or deleted.
func (d *Datasource) FindJob(ctx context.Context, id string) (*model.Job, error) {
	query := `
		SELECT job_id, company_id, title, description, location, experience_level, requirements, salary_min, salary_max, salary_currency, contact_email, how_to_apply, salary_verified, flagged_as_spam, meta_data, created_at
		FROM trustline.jobs
		WHERE job_id = $1 AND deleted_at IS NULL
	`
	return d.scanJob(d.Conn.QueryRowContext(ctx, query, id))
}

func (d *Datasource) scanJob(row rowScanner) (*model.Job, error) {
	var job model.Job
	var requirementsJSON, metaDataJSON []byte

	err := row.Scan(
		&job.JobID,
		&job.CompanyID,
		&job.Title,
		&job.Description,
		&job.Location,
		&job.ExperienceLevel,
		&requirementsJSON,
		&job.SalaryMin,
		&job.SalaryMax,
		&job.SalaryCurrency,
		&job.ContactEmail,
		&job.HowToApply,
		&job.SalaryVerified,
		&job.FlaggedAsSpam,
		&metaDataJSON,
		&job.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apierror.Persistence("failed to read job", err)
	}

	if len(requirementsJSON) > 0 {
		if err := json.Unmarshal(requirementsJSON, &job.Requirements); err != nil {
			return nil, apierror.Persistence("stored job requirements are corrupt", err)
		}
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &job.MetaData); err != nil {
			return nil, apierror.Persistence("stored job metadata is corrupt", err)
		}
	}
	return &job, nil
}

// FindApplicationsByUserAndJob returns every application, active or
// withdrawn, a user has filed for a job.
func (d *Datasource) FindApplicationsByUserAndJob(ctx context.Context, userID, jobID string) ([]model.Application, error) {
	query := `
		SELECT application_id, user_id, job_id, company_id, status, created_at
		FROM trustline.applications
		WHERE user_id = $1 AND job_id = $2
		ORDER BY created_at ASC
	`
	return d.queryApplications(ctx, query, userID, jobID)
}

// FindSimilarRecentApplications returns the user's applications to any job at
// a company since the given instant.
func (d *Datasource) FindSimilarRecentApplications(ctx context.Context, userID, companyID string, since time.Time) ([]model.Application, error) {
	query := `
		SELECT application_id, user_id, job_id, company_id, status, created_at
		FROM trustline.applications
		WHERE user_id = $1 AND company_id = $2 AND created_at > $3
		ORDER BY created_at ASC
	`
	return d.queryApplications(ctx, query, userID, companyID, since)
}

func (d *Datasource) queryApplications(ctx context.Context, query string, args ...interface{}) ([]model.Application, error) {
	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.Persistence("failed to read applications", err)
	}
	defer rows.Close()

	var applications []model.Application
	for rows.Next() {
		var application model.Application
		if err := rows.Scan(
			&application.ApplicationID,
			&application.UserID,
			&application.JobID,
			&application.CompanyID,
			&application.Status,
			&application.CreatedAt,
		); err != nil {
			return nil, apierror.Persistence("failed to read applications", err)
		}
		applications = append(applications, application)
	}
	return applications, rows.Err()
}

// FindRecentJobsByCompany returns a company's newest postings, used for
// duplicate-content comparison.
func (d *Datasource) FindRecentJobsByCompany(ctx context.Context, companyID string, limit int) ([]model.Job, error) {
	query := `
		SELECT job_id, company_id, title, description, location, experience_level, requirements, salary_min, salary_max, salary_currency, contact_email, how_to_apply, salary_verified, flagged_as_spam, meta_data, created_at
		FROM trustline.jobs
		WHERE company_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := d.Conn.QueryContext(ctx, query, companyID, limit)
	if err != nil {
		return nil, apierror.Persistence("failed to read jobs", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := d.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// MarkCompanyVerified sets or clears the company's verified badge.
func (d *Datasource) MarkCompanyVerified(ctx context.Context, companyID string, verified bool) error {
	var verifiedAt interface{}
	if verified {
		verifiedAt = time.Now()
	}
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE trustline.companies
		SET verified = $2, verified_at = $3
		WHERE company_id = $1
	`, companyID, verified, verifiedAt)
	if err != nil {
		return apierror.Persistence("failed to update company verified badge", err)
	}
	return nil
}

// FlagJobAsSpam marks a posting as spam. The flag is sticky; clearing it is a
// manual moderation action outside this pipeline.
func (d *Datasource) FlagJobAsSpam(ctx context.Context, jobID string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE trustline.jobs
		SET flagged_as_spam = TRUE
		WHERE job_id = $1
	`, jobID)
	if err != nil {
		return apierror.Persistence("failed to flag job as spam", err)
	}
	return nil
}

// MarkJobSalaryVerified sets or clears the posting's salary_verified flag.
func (d *Datasource) MarkJobSalaryVerified(ctx context.Context, jobID string, verified bool) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE trustline.jobs
		SET salary_verified = $2
		WHERE job_id = $1
	`, jobID, verified)
	if err != nil {
		return apierror.Persistence("failed to update job salary_verified flag", err)
	}
	return nil
}
