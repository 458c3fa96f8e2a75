package cases

import (
	"context"
	"errors"
	"time"

	"github.com/megcare/platform/pkg/common/models"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrMRNTaken      = errors.New("mrn already registered")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type userModel struct {
	ID           int64     `gorm:"primaryKey;column:id"`
	HospitalID   int64     `gorm:"column:hospital_id;index"`
	Email        string    `gorm:"column:email;uniqueIndex"`
	Name         string    `gorm:"column:name"`
	Role         string    `gorm:"column:role"`
	PasswordHash string    `gorm:"column:password_hash"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (userModel) TableName() string { return "users" }

type patientModel struct {
	ID             int64      `gorm:"primaryKey;column:id"`
	HospitalID     int64      `gorm:"column:hospital_id;index"`
	UserID         int64      `gorm:"column:user_id"`
	FirstName      string     `gorm:"column:first_name"`
	LastName       string     `gorm:"column:last_name"`
	MRN            string     `gorm:"column:mrn;index"`
	DateOfBirth    *time.Time `gorm:"column:date_of_birth"`
	Gender         string     `gorm:"column:gender"`
	Phone          string     `gorm:"column:phone"`
	Email          string     `gorm:"column:email"`
	Address        string     `gorm:"column:address"`
	MedicalHistory string     `gorm:"column:medical_history"`
	Medications    string     `gorm:"column:medications"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
}

func (patientModel) TableName() string { return "patients" }

type departmentModel struct {
	ID   int64  `gorm:"primaryKey;column:id"`
	Name string `gorm:"column:name"`
}

func (departmentModel) TableName() string { return "departments" }

type sedationModel struct {
	ID   int64  `gorm:"primaryKey;column:id"`
	Name string `gorm:"column:name"`
}

func (sedationModel) TableName() string { return "sedations" }

type examsProcedureModel struct {
	ID          int64  `gorm:"primaryKey;column:id"`
	Exam        string `gorm:"column:exam"`
	Modality    string `gorm:"column:modality"`
	Procedure   string `gorm:"column:procedure"`
	Description string `gorm:"column:description"`
}

func (examsProcedureModel) TableName() string { return "exams_procedures" }

type casesExamsProcedureModel struct {
	ID               int64      `gorm:"primaryKey;column:id"`
	CaseID           int64      `gorm:"column:case_id;index"`
	ExamsProcedureID int64      `gorm:"column:exams_procedure_id"`
	Status           string     `gorm:"column:status"`
	ScheduledAt      *time.Time `gorm:"column:scheduled_at"`
	Notes            string     `gorm:"column:notes"`
}

func (casesExamsProcedureModel) TableName() string { return "cases_exams_procedures" }

type documentModel struct {
	ID                    int64     `gorm:"primaryKey;column:id"`
	CaseID                int64     `gorm:"column:case_id;index"`
	UserID                int64     `gorm:"column:user_id"`
	CasesExamsProcedureID *int64    `gorm:"column:cases_exams_procedure_id"`
	DocumentType          string    `gorm:"column:document_type"`
	FilePath              string    `gorm:"column:file_path"`
	FileType              string    `gorm:"column:file_type"`
	FileSize              int64     `gorm:"column:file_size"`
	OriginalFilename      string    `gorm:"column:original_filename"`
	Description           string    `gorm:"column:description"`
	UploadedAt            time.Time `gorm:"column:uploaded_at"`
}

func (documentModel) TableName() string { return "documents" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&userModel{},
		&patientModel{},
		&departmentModel{},
		&sedationModel{},
		&examsProcedureModel{},
		&casesExamsProcedureModel{},
		&documentModel{},
	)
}

func (r *Repository) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) CreateUser(ctx context.Context, user *models.User, passwordHash string) error {
	row := &userModel{
		HospitalID:   user.HospitalID,
		Email:        user.Email,
		Name:         user.Name,
		Role:         string(user.Role),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	user.ID = row.ID
	user.CreatedAt = row.CreatedAt
	return nil
}

func (r *Repository) GetUser(ctx context.Context, userID int64) (models.User, error) {
	var row userModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return models.User{
		ID:         row.ID,
		HospitalID: row.HospitalID,
		Email:      row.Email,
		Name:       row.Name,
		Role:       models.UserRole(row.Role),
		CreatedAt:  row.CreatedAt,
	}, nil
}

func (r *Repository) CountUsersByEmail(ctx context.Context, email string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userModel{}).Where("email = ?", email).Count(&count).Error
	return count, err
}

func (r *Repository) CountPatientsByMRN(ctx context.Context, hospitalID int64, mrn string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&patientModel{}).Where("hospital_id = ? AND mrn = ?", hospitalID, mrn).Count(&count).Error
	return count, err
}

func (r *Repository) CreatePatient(ctx context.Context, patient *models.Patient) error {
	row := &patientModel{
		HospitalID:     patient.HospitalID,
		UserID:         patient.UserID,
		FirstName:      patient.FirstName,
		LastName:       patient.LastName,
		MRN:            patient.MRN,
		DateOfBirth:    patient.DateOfBirth,
		Gender:         patient.Gender,
		Phone:          patient.Phone,
		Email:          patient.Email,
		Address:        patient.Address,
		MedicalHistory: patient.MedicalHistory,
		Medications:    patient.Medications,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	patient.ID = row.ID
	patient.CreatedAt = row.CreatedAt
	return nil
}

func (r *Repository) GetPatient(ctx context.Context, patientID int64) (models.Patient, error) {
	var row patientModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", patientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Patient{}, ErrNotFound
		}
		return models.Patient{}, err
	}
	return models.Patient{
		ID:             row.ID,
		HospitalID:     row.HospitalID,
		UserID:         row.UserID,
		FirstName:      row.FirstName,
		LastName:       row.LastName,
		MRN:            row.MRN,
		DateOfBirth:    row.DateOfBirth,
		Gender:         row.Gender,
		Phone:          row.Phone,
		Email:          row.Email,
		Address:        row.Address,
		MedicalHistory: row.MedicalHistory,
		Medications:    row.Medications,
		CreatedAt:      row.CreatedAt,
	}, nil
}

func (r *Repository) ListCaseProcedures(ctx context.Context, caseID int64) ([]models.CasesExamsProcedure, error) {
	var rows []casesExamsProcedureModel
	if err := r.db.WithContext(ctx).Where("case_id = ?", caseID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	procedures := make([]models.CasesExamsProcedure, 0, len(rows))
	for _, row := range rows {
		link := models.CasesExamsProcedure{
			ID:               row.ID,
			CaseID:           row.CaseID,
			ExamsProcedureID: row.ExamsProcedureID,
			Status:           row.Status,
			ScheduledAt:      row.ScheduledAt,
			Notes:            row.Notes,
		}
		var catalog examsProcedureModel
		if err := r.db.WithContext(ctx).First(&catalog, "id = ?", row.ExamsProcedureID).Error; err == nil {
			link.Procedure = &models.ExamsProcedure{
				ID:          catalog.ID,
				Exam:        catalog.Exam,
				Modality:    catalog.Modality,
				Procedure:   catalog.Procedure,
				Description: catalog.Description,
			}
		}
		procedures = append(procedures, link)
	}
	return procedures, nil
}

func (r *Repository) CreateCaseProcedure(ctx context.Context, link models.CasesExamsProcedure) error {
	row := &casesExamsProcedureModel{
		CaseID:           link.CaseID,
		ExamsProcedureID: link.ExamsProcedureID,
		Status:           link.Status,
		ScheduledAt:      link.ScheduledAt,
		Notes:            link.Notes,
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *Repository) DeleteCaseProcedure(ctx context.Context, linkID int64) error {
	return r.db.WithContext(ctx).Delete(&casesExamsProcedureModel{}, "id = ?", linkID).Error
}

func (r *Repository) UpdateCaseProcedureStatus(ctx context.Context, linkID int64, status string) error {
	return r.db.WithContext(ctx).Model(&casesExamsProcedureModel{}).Where("id = ?", linkID).Update("status", status).Error
}

func (r *Repository) CreateDocument(ctx context.Context, doc *models.Document) error {
	row := &documentModel{
		CaseID:                doc.CaseID,
		UserID:                doc.UserID,
		CasesExamsProcedureID: doc.CasesExamsProcedureID,
		DocumentType:          doc.DocumentType,
		FilePath:              doc.FilePath,
		FileType:              doc.FileType,
		FileSize:              doc.FileSize,
		OriginalFilename:      doc.OriginalFilename,
		Description:           doc.Description,
		UploadedAt:            time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	doc.ID = row.ID
	doc.UploadedAt = row.UploadedAt
	return nil
}

func (r *Repository) ListDocuments(ctx context.Context, caseID int64) ([]models.Document, error) {
	var rows []documentModel
	if err := r.db.WithContext(ctx).Where("case_id = ?", caseID).Order("uploaded_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]models.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, models.Document{
			ID:                    row.ID,
			CaseID:                row.CaseID,
			UserID:                row.UserID,
			CasesExamsProcedureID: row.CasesExamsProcedureID,
			DocumentType:          row.DocumentType,
			FilePath:              row.FilePath,
			FileType:              row.FileType,
			FileSize:              row.FileSize,
			OriginalFilename:      row.OriginalFilename,
			Description:           row.Description,
			UploadedAt:            row.UploadedAt,
		})
	}
	return docs, nil
}

func (r *Repository) GetDepartment(ctx context.Context, id int64) (models.Department, error) {
	var row departmentModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Department{}, ErrNotFound
		}
		return models.Department{}, err
	}
	return models.Department{ID: row.ID, Name: row.Name}, nil
}

func (r *Repository) GetSedation(ctx context.Context, id int64) (models.Sedation, error) {
	var row sedationModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Sedation{}, ErrNotFound
		}
		return models.Sedation{}, err
	}
	return models.Sedation{ID: row.ID, Name: row.Name}, nil
}
