package model

import (
	"time"
)

// Company is a read-mostly view of the employer entity the pipeline
// verifies. Only the verification badge fields are written back.
type Company struct {
	CompanyID          string                 `json:"company_id"`
	Name               string                 `json:"name"`
	Website            string                 `json:"website"`
	RegistrationNumber string                 `json:"registration_number"`
	Address            string                 `json:"address"`
	SocialProfiles     []string               `json:"social_profiles"`
	EmployeeCount      int                    `json:"employee_count"`
	Verified           bool                   `json:"verified"`
	VerifiedAt         *time.Time             `json:"verified_at,omitempty"`
	DeletedAt          *time.Time             `json:"deleted_at,omitempty"`
	MetaData           map[string]interface{} `json:"meta_data"`
	CreatedAt          time.Time              `json:"created_at"`
}

// Job is the posting under evaluation. Salary bounds are whole currency
// units; zero means the posting did not disclose them.
type Job struct {
	JobID            string                 `json:"job_id"`
	CompanyID        string                 `json:"company_id"`
	Title            string                 `json:"title"`
	Description      string                 `json:"description"`
	Location         string                 `json:"location"`
	ExperienceLevel  string                 `json:"experience_level"`
	Requirements     []string               `json:"requirements"`
	SalaryMin        int64                  `json:"salary_min"`
	SalaryMax        int64                  `json:"salary_max"`
	SalaryCurrency   string                 `json:"salary_currency"`
	ContactEmail     string                 `json:"contact_email"`
	HowToApply       string                 `json:"how_to_apply"`
	SalaryVerified   bool                   `json:"salary_verified"`
	FlaggedAsSpam    bool                   `json:"flagged_as_spam"`
	DeletedAt        *time.Time             `json:"deleted_at,omitempty"`
	MetaData         map[string]interface{} `json:"meta_data"`
	CreatedAt        time.Time              `json:"created_at"`
}

func (j *Job) HasSalaryRange() bool {
	return j.SalaryMin > 0 || j.SalaryMax > 0
}

func (j *Job) HasContactInfo() bool {
	return j.ContactEmail != "" || j.HowToApply != ""
}

type ApplicationStatus string

const (
	ApplicationActive    ApplicationStatus = "active"
	ApplicationWithdrawn ApplicationStatus = "withdrawn"
)

// Application records a user applying to a job. Withdrawn applications do
// not count toward duplicate detection.
type Application struct {
	ApplicationID string            `json:"application_id"`
	UserID        string            `json:"user_id"`
	JobID         string            `json:"job_id"`
	CompanyID     string            `json:"company_id"`
	Status        ApplicationStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (a *Application) Active() bool {
	return a.Status != ApplicationWithdrawn
}

// SalaryStats is the market benchmark for a title/location/experience tuple.
// Confidence distinguishes live market data (0.9) from the deterministic
// fallback used when the market-data service is unreachable (0.5).
type SalaryStats struct {
	MinSalary    int64   `json:"min_salary"`
	MaxSalary    int64   `json:"max_salary"`
	MedianSalary int64   `json:"median_salary"`
	Currency     string  `json:"currency"`
	Confidence   float64 `json:"confidence"`
}
