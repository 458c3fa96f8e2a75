package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Case workflow statuses. Role statuses only ever move forward:
// draft -> in_progress -> assigned -> completed.
const (
	RoleStatusDraft      = "draft"
	RoleStatusInProgress = "in_progress"
	RoleStatusAssigned   = "assigned"
	RoleStatusCompleted  = "completed"
)

const (
	CaseStatusDraft      = "draft"
	CaseStatusInProgress = "in_progress"
	CaseStatusCompleted  = "completed"
	CaseStatusCancelled  = "cancelled"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// UserRole covers every account role in the platform. The workflow state
// machine only drives the technician, scientist and doctor columns; the
// masking service keys its rule table on the full set.
type UserRole string

const (
	RoleSuper         UserRole = "super"
	RoleAdministrator UserRole = "administrator"
	RoleDoctor        UserRole = "doctor"
	RoleNurse         UserRole = "nurse"
	RoleTechnician    UserRole = "technician"
	RoleScientist     UserRole = "scientist"
	RolePatient       UserRole = "patient"
)

const (
	ProcedureStatusPending   = "pending"
	ProcedureStatusCompleted = "completed"
)

const (
	UsageStatusPending   = "pending"
	UsageStatusSuccess   = "success"
	UsageStatusFailed    = "failed"
	UsageStatusTimeout   = "timeout"
	UsageStatusCancelled = "cancelled"
)

type User struct {
	ID         int64     `json:"id"`
	HospitalID int64     `json:"hospital_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       UserRole  `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

type Patient struct {
	ID             int64      `json:"id"`
	HospitalID     int64      `json:"hospital_id"`
	UserID         int64      `json:"user_id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	MRN            string     `json:"mrn"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	Gender         string     `json:"gender,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Email          string     `json:"email,omitempty"`
	Address        string     `json:"address,omitempty"`
	MedicalHistory string     `json:"medical_history,omitempty"`
	Medications    string     `json:"medications,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type Case struct {
	ID               int64      `json:"id"`
	HospitalID       int64      `json:"hospital_id"`
	PatientID        int64      `json:"patient_id"`
	UserID           int64      `json:"user_id"`
	CurrentUserID    int64      `json:"current_user_id"`
	Date             *time.Time `json:"date,omitempty"`
	DepartmentID     *int64     `json:"department_id,omitempty"`
	SedationID       *int64     `json:"sedation_id,omitempty"`
	Priority         string     `json:"priority"`
	Status           string     `json:"status"`
	TechnicianStatus string     `json:"technician_status"`
	ScientistStatus  string     `json:"scientist_status"`
	DoctorStatus     string     `json:"doctor_status"`
	Symptoms         string     `json:"symptoms,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	CurrentVersionID *int64     `json:"current_version_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type CaseVersion struct {
	ID            int64     `json:"id"`
	CaseID        int64     `json:"case_id"`
	VersionNumber int       `json:"version_number"`
	UserID        int64     `json:"user_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type CaseAudit struct {
	ID        int64     `json:"id"`
	CaseID    int64     `json:"case_id"`
	VersionID *int64    `json:"version_id,omitempty"`
	FieldName string    `json:"field_name"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	ChangedBy int64     `json:"changed_by"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CaseAssignment struct {
	ID            int64     `json:"id"`
	CaseID        int64     `json:"case_id"`
	CaseVersionID int64     `json:"case_version_id"`
	UserID        int64     `json:"user_id"`
	AssignedToID  int64     `json:"assigned_to_id"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Department struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Sedation struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ExamsProcedure is a catalog entry; cases link to it through
// CasesExamsProcedure rows.
type ExamsProcedure struct {
	ID          int64  `json:"id"`
	Exam        string `json:"exam"`
	Modality    string `json:"modality,omitempty"`
	Procedure   string `json:"procedure"`
	Description string `json:"description,omitempty"`
}

func (e ExamsProcedure) DisplayName() string {
	parts := []string{e.Exam}
	if e.Modality != "" {
		parts = append(parts, e.Modality)
	}
	parts = append(parts, e.Procedure)
	return strings.Join(parts, " / ")
}

type CasesExamsProcedure struct {
	ID               int64           `json:"id"`
	CaseID           int64           `json:"case_id"`
	ExamsProcedureID int64           `json:"exams_procedure_id"`
	Status           string          `json:"status"`
	ScheduledAt      *time.Time      `json:"scheduled_at,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	Procedure        *ExamsProcedure `json:"procedure,omitempty"`
}

// AgeCategory buckets an age in years into the coarse display category
// used wherever an exact age must not appear.
func AgeCategory(years int) string {
	switch {
	case years < 1:
		return "infant"
	case years < 13:
		return "child"
	case years < 18:
		return "adolescent"
	case years < 65:
		return "adult"
	default:
		return "senior"
	}
}

type Document struct {
	ID                    int64     `json:"id"`
	CaseID                int64     `json:"case_id"`
	UserID                int64     `json:"user_id"`
	CasesExamsProcedureID *int64    `json:"cases_exams_procedure_id,omitempty"`
	DocumentType          string    `json:"document_type"`
	FilePath              string    `json:"file_path"`
	FileType              string    `json:"file_type"`
	FileSize              int64     `json:"file_size"`
	OriginalFilename      string    `json:"original_filename"`
	Description           string    `json:"description,omitempty"`
	UploadedAt            time.Time `json:"uploaded_at"`
}

type Report struct {
	ID              uuid.UUID       `json:"id"`
	CaseID          int64           `json:"case_id"`
	HospitalID      int64           `json:"hospital_id"`
	UserID          int64           `json:"user_id"`
	Status          string          `json:"status"`
	Type            string          `json:"type"`
	ReportData      json.RawMessage `json:"report_data,omitempty"`
	ConfidenceScore float64         `json:"confidence_score"`
	AIGenerated     bool            `json:"ai_generated"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type ServiceUsageLog struct {
	ID             int64                  `json:"id"`
	HospitalID     int64                  `json:"hospital_id"`
	Type           string                 `json:"type"`
	Provider       string                 `json:"provider"`
	Action         string                 `json:"action"`
	UserID         int64                  `json:"user_id"`
	RelatedID      int64                  `json:"related_id,omitempty"`
	Request        map[string]interface{} `json:"request,omitempty"`
	Response       map[string]interface{} `json:"response,omitempty"`
	Status         string                 `json:"status"`
	ResponseTimeMs int64                  `json:"response_time_ms"`
	ErrorCode      string                 `json:"error_code,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	UnitsConsumed  int64                  `json:"units_consumed"`
	UnitCost       float64                `json:"unit_cost"`
	TotalCostUSD   float64                `json:"total_cost_usd"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Recommendation is the intake suggestion produced by the recommendation
// engine. Every id in it has been validated against the caller's candidate
// maps before it is returned.
type Recommendation struct {
	ExamProcedureIDs []int64 `json:"recommended_exam_procedure_ids"`
	DepartmentID     *int64  `json:"department_id,omitempty"`
	SedationID       *int64  `json:"sedation_id,omitempty"`
	Priority         string  `json:"priority"`
	Notes            string  `json:"notes,omitempty"`
	AIGenerated      bool    `json:"ai_generated"`
}

// DocumentAnalysis is the output of the document analysis pipeline for one
// uploaded artifact.
type DocumentAnalysis struct {
	DocumentType         string   `json:"document_type"`
	ReportType           string   `json:"report_type,omitempty"`
	Confidence           float64  `json:"confidence"`
	Summary              string   `json:"summary,omitempty"`
	Findings             []string `json:"findings,omitempty"`
	SuggestedProcedureID *int64   `json:"suggested_procedure_id,omitempty"`
	Description          string   `json:"description,omitempty"`
}

// DocumentContent pairs the extracted text of a document with its analysis;
// it is the unit the report assembly engine consumes.
type DocumentContent struct {
	Text     string           `json:"text"`
	Analysis DocumentAnalysis `json:"analysis"`
}

// CaseEvent is the envelope published to the case-events topic.
type CaseEvent struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // case_created, case_assigned, case_completed, report_generated
	Source    string                 `json:"source"`
	CaseID    int64                  `json:"case_id"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type CreateCaseRequest struct {
	HospitalID       int64      `json:"hospital_id"`
	PatientID        int64      `json:"patient_id"`
	UserID           int64      `json:"user_id"`
	Date             *time.Time `json:"date,omitempty"`
	DepartmentID     *int64     `json:"department_id,omitempty"`
	SedationID       *int64     `json:"sedation_id,omitempty"`
	Priority         string     `json:"priority,omitempty"`
	Symptoms         string     `json:"symptoms,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	ExamProcedureIDs []int64    `json:"exam_procedure_ids,omitempty"`
}

type CreatePatientRequest struct {
	HospitalID     int64      `json:"hospital_id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	MRN            string     `json:"mrn"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	Gender         string     `json:"gender,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Email          string     `json:"email"`
	Address        string     `json:"address,omitempty"`
	MedicalHistory string     `json:"medical_history,omitempty"`
	Medications    string     `json:"medications,omitempty"`
	Password       string     `json:"password"`
}
