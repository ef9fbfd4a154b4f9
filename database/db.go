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
	"database/sql"
	"log"
	"sync"

	_ "github.com/lib/pq"

	"github.com/hirewell/trustline/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	if _, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS trustline`); err != nil {
		return nil, err
	}
	err = createVerificationRecordTable(db)
	if err != nil {
		return nil, err
	}
	err = createCompanyTable(db)
	if err != nil {
		return nil, err
	}
	err = createJobTable(db)
	if err != nil {
		return nil, err
	}
	err = createApplicationTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createVerificationRecordTable creates a PostgreSQL table for the VerificationRecord struct
func createVerificationRecordTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trustline.verification_records (
			id SERIAL PRIMARY KEY,
			record_id TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			company_id TEXT,
			job_id TEXT,
			user_id TEXT,
			checks JSONB,
			status TEXT NOT NULL,
			overall_score DOUBLE PRECISION,
			spam_score DOUBLE PRECISION,
			is_spam BOOLEAN,
			verified_at TIMESTAMP,
			checked_at TIMESTAMP,
			assessed_at TIMESTAMP,
			expires_at TIMESTAMP NOT NULL,
			schema_version INT NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_verification_records_type_company ON trustline.verification_records (type, company_id);
		CREATE INDEX IF NOT EXISTS idx_verification_records_type_job ON trustline.verification_records (type, job_id);
		CREATE INDEX IF NOT EXISTS idx_verification_records_expires_at ON trustline.verification_records (expires_at)
	`)
	if err != nil {
		log.Printf("Error creating verification_records table: %v", err)
	}
	return err
}

// createCompanyTable creates a PostgreSQL table for the Company struct
func createCompanyTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trustline.companies (
			id SERIAL PRIMARY KEY,
			company_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			website TEXT,
			registration_number TEXT,
			address TEXT,
			social_profiles JSONB,
			employee_count INT NOT NULL DEFAULT 0,
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			verified_at TIMESTAMP,
			deleted_at TIMESTAMP,
			meta_data JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating companies table: %v", err)
	}
	return err
}

// createJobTable creates a PostgreSQL table for the Job struct
func createJobTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trustline.jobs (
			id SERIAL PRIMARY KEY,
			job_id TEXT NOT NULL UNIQUE,
			company_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			location TEXT,
			experience_level TEXT,
			requirements JSONB,
			salary_min BIGINT NOT NULL DEFAULT 0,
			salary_max BIGINT NOT NULL DEFAULT 0,
			salary_currency TEXT,
			contact_email TEXT,
			how_to_apply TEXT,
			salary_verified BOOLEAN NOT NULL DEFAULT FALSE,
			flagged_as_spam BOOLEAN NOT NULL DEFAULT FALSE,
			deleted_at TIMESTAMP,
			meta_data JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_company_id ON trustline.jobs (company_id)
	`)
	if err != nil {
		log.Printf("Error creating jobs table: %v", err)
	}
	return err
}

// createApplicationTable creates a PostgreSQL table for the Application struct
func createApplicationTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trustline.applications (
			id SERIAL PRIMARY KEY,
			application_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			job_id TEXT NOT NULL,
			company_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_applications_user_job ON trustline.applications (user_id, job_id);
		CREATE INDEX IF NOT EXISTS idx_applications_user_company ON trustline.applications (user_id, company_id)
	`)
	if err != nil {
		log.Printf("Error creating applications table: %v", err)
	}
	return err
}
