package masking

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/megcare/platform/pkg/common/logger"
	"github.com/megcare/platform/pkg/common/models"
)

// PatientView is a patient record as one viewer is allowed to see it.
// All fields are strings because most rules reduce values to display
// forms (year of birth, age group, surrogate MRN).
type PatientView struct {
	ID             int64  `json:"id"`
	Name           string `json:"name,omitempty"`
	MRN            string `json:"mrn,omitempty"`
	DateOfBirth    string `json:"date_of_birth,omitempty"`
	Gender         string `json:"gender,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Email          string `json:"email,omitempty"`
	Address        string `json:"address,omitempty"`
	MedicalHistory string `json:"medical_history,omitempty"`
	Medications    string `json:"medications,omitempty"`
}

const maskedValue = "***"

type Service struct {
	policy  Policy
	enabled bool
	now     func() time.Time
}

// NewService builds the masking service. enabled=false is the break-glass
// configuration: every view returns raw data, access logging continues.
func NewService(policy Policy, enabled bool) *Service {
	if len(policy.Roles) == 0 {
		policy = DefaultPolicy()
	}
	return &Service{policy: policy, enabled: enabled, now: time.Now}
}

// MaskForUser renders the subject for the viewer per the rule table. It
// is a pure function of (subject, viewer role, flag state); masking the
// same pair twice yields identical output.
func (s *Service) MaskForUser(ctx context.Context, subject models.Patient, viewer models.User) PatientView {
	masked := s.enabled
	logger.Log.WithFields(map[string]interface{}{
		"viewer_id":   viewer.ID,
		"viewer_role": viewer.Role,
		"subject_id":  subject.ID,
		"masked":      masked,
		"at":          s.now().UTC().Format(time.RFC3339),
	}).Info("patient record access")

	if !masked {
		return rawView(subject)
	}

	role := viewer.Role
	return PatientView{
		ID:             subject.ID,
		Name:           maskName(subject, s.policy.RuleFor(role, FieldName)),
		MRN:            maskIdentifier(subject, subject.MRN, s.policy.RuleFor(role, FieldMRN)),
		DateOfBirth:    maskDateOfBirth(subject, s.policy.RuleFor(role, FieldDateOfBirth), s.now()),
		Gender:         maskText(subject.Gender, s.policy.RuleFor(role, FieldGender)),
		Phone:          maskContact(subject.Phone, s.policy.RuleFor(role, FieldPhone)),
		Email:          maskContact(subject.Email, s.policy.RuleFor(role, FieldEmail)),
		Address:        maskText(subject.Address, s.policy.RuleFor(role, FieldAddress)),
		MedicalHistory: maskText(subject.MedicalHistory, s.policy.RuleFor(role, FieldMedicalHistory)),
		Medications:    maskText(subject.Medications, s.policy.RuleFor(role, FieldMedications)),
	}
}

func rawView(subject models.Patient) PatientView {
	view := PatientView{
		ID:             subject.ID,
		Name:           subject.FullName(),
		MRN:            subject.MRN,
		Gender:         subject.Gender,
		Phone:          subject.Phone,
		Email:          subject.Email,
		Address:        subject.Address,
		MedicalHistory: subject.MedicalHistory,
		Medications:    subject.Medications,
	}
	if subject.DateOfBirth != nil {
		view.DateOfBirth = subject.DateOfBirth.Format("2006-01-02")
	}
	return view
}

func maskName(subject models.Patient, rule string) string {
	first, last := subject.FirstName, subject.LastName
	switch rule {
	case RuleNone:
		return subject.FullName()
	case RuleFirstAndInitial:
		if last == "" {
			return first
		}
		return strings.TrimSpace(first + " " + initial(last))
	case RuleInitialOnly:
		var b strings.Builder
		if first != "" {
			b.WriteString(initial(first))
		}
		if last != "" {
			b.WriteString(initial(last))
		}
		return b.String()
	case RuleHidden:
		return ""
	default:
		return maskedValue
	}
}

// maskIdentifier handles MRN-style values. The sequential surrogate is
// derived from the subject's internal id, never from the real value, so
// it is stable and cannot be reversed into the MRN.
func maskIdentifier(subject models.Patient, value, rule string) string {
	switch rule {
	case RuleNone:
		return value
	case RuleLast4:
		return last4(value)
	case RuleSequential:
		return fmt.Sprintf("MRN-%03d", subject.ID)
	case RulePatientID:
		return "PT-" + strconv.FormatInt(subject.ID, 10)
	case RuleHidden:
		return ""
	default:
		return maskedValue
	}
}

func maskDateOfBirth(subject models.Patient, rule string, now time.Time) string {
	if subject.DateOfBirth == nil {
		return ""
	}
	dob := *subject.DateOfBirth
	switch rule {
	case RuleNone:
		return dob.Format("2006-01-02")
	case RuleYearOnly:
		return dob.Format("2006")
	case RuleAgeOnly:
		return strconv.Itoa(yearsBetween(dob, now))
	case RuleAgeGroup:
		return models.AgeCategory(yearsBetween(dob, now))
	case RuleHidden:
		return ""
	default:
		return maskedValue
	}
}

func maskContact(value, rule string) string {
	if value == "" {
		return ""
	}
	switch rule {
	case RuleNone:
		return value
	case RulePartial:
		runes := []rune(value)
		if len(runes) <= 2 {
			return maskedValue
		}
		return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
	case RuleLast4:
		return last4(value)
	case RuleDomainOnly:
		if at := strings.LastIndex(value, "@"); at >= 0 {
			return maskedValue + value[at:]
		}
		return maskedValue
	case RuleHidden:
		return ""
	default:
		return maskedValue
	}
}

func maskText(value, rule string) string {
	if value == "" {
		return ""
	}
	switch rule {
	case RuleNone:
		return value
	case RuleHidden:
		return ""
	default:
		return maskedValue
	}
}

// initial reduces a name to its first rune. Byte slicing would split
// multibyte letters.
func initial(s string) string {
	r, _ := utf8.DecodeRuneInString(s)
	return string(r) + "."
}

func last4(value string) string {
	runes := []rune(value)
	if len(runes) <= 4 {
		return value
	}
	return strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-4:])
}

func yearsBetween(from, to time.Time) int {
	years := to.Year() - from.Year()
	if to.YearDay() < from.YearDay() {
		years--
	}
	if years < 0 {
		years = 0
	}
	return years
}
