package masking

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/megcare/platform/pkg/common/logger"
	"github.com/megcare/platform/pkg/common/models"
)

func init() {
	logger.Init()
}

func subjectPatient() models.Patient {
	dob := time.Date(1984, 3, 14, 0, 0, 0, 0, time.UTC)
	return models.Patient{
		ID:             42,
		HospitalID:     1,
		FirstName:      "Maria",
		LastName:       "Kovacs",
		MRN:            "88217734",
		DateOfBirth:    &dob,
		Gender:         "female",
		Phone:          "555-0188",
		Email:          "maria.kovacs@example.org",
		Address:        "12 Elm Street",
		MedicalHistory: "Focal epilepsy since 2019.",
		Medications:    "Levetiracetam 500mg",
	}
}

func newTestService(enabled bool) *Service {
	svc := NewService(DefaultPolicy(), enabled)
	svc.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	return svc
}

func viewer(role models.UserRole) models.User {
	return models.User{ID: 7, HospitalID: 1, Name: "Viewer", Role: role}
}

func TestMaskForUserDoctorSeesEverything(t *testing.T) {
	view := newTestService(true).MaskForUser(context.Background(), subjectPatient(), viewer(models.RoleDoctor))
	if view.Name != "Maria Kovacs" || view.MRN != "88217734" || view.DateOfBirth != "1984-03-14" {
		t.Fatalf("doctor view reduced: %+v", view)
	}
	if view.MedicalHistory != "Focal epilepsy since 2019." {
		t.Fatalf("history = %q", view.MedicalHistory)
	}
}

func TestMaskForUserNurse(t *testing.T) {
	view := newTestService(true).MaskForUser(context.Background(), subjectPatient(), viewer(models.RoleNurse))
	if view.Name != "Maria K." {
		t.Fatalf("name = %q, want first name plus initial", view.Name)
	}
	if view.MRN != "****7734" {
		t.Fatalf("mrn = %q, want last four", view.MRN)
	}
	if view.DateOfBirth != "42" {
		t.Fatalf("dob = %q, want age in years", view.DateOfBirth)
	}
	if view.Email != "***@example.org" {
		t.Fatalf("email = %q, want domain only", view.Email)
	}
	if view.Phone != "5******8" {
		t.Fatalf("phone = %q, want partial", view.Phone)
	}
	if view.Address != "" {
		t.Fatalf("address = %q, want hidden", view.Address)
	}
}

func TestMaskForUserMultibyteNames(t *testing.T) {
	subject := subjectPatient()
	subject.FirstName = "Åsa"
	subject.LastName = "Øster"
	subject.Phone = "555-0199"

	svc := newTestService(true)

	nurse := svc.MaskForUser(context.Background(), subject, viewer(models.RoleNurse))
	if nurse.Name != "Åsa Ø." {
		t.Fatalf("nurse name = %q, want first name plus one-letter initial", nurse.Name)
	}

	scientist := svc.MaskForUser(context.Background(), subject, viewer(models.RoleScientist))
	if scientist.Name != "Å.Ø." {
		t.Fatalf("scientist name = %q, want initials", scientist.Name)
	}

	for role, view := range map[models.UserRole]PatientView{
		models.RoleNurse:     nurse,
		models.RoleScientist: scientist,
	} {
		for field, value := range map[string]string{
			"name":  view.Name,
			"mrn":   view.MRN,
			"phone": view.Phone,
			"email": view.Email,
		} {
			if !utf8.ValidString(value) {
				t.Errorf("%s view %s = %q is not valid UTF-8", role, field, value)
			}
		}
	}
}

func TestMaskForUserTechnicianSequentialMRN(t *testing.T) {
	view := newTestService(true).MaskForUser(context.Background(), subjectPatient(), viewer(models.RoleTechnician))
	if view.MRN != "MRN-042" {
		t.Fatalf("mrn = %q, want zero-padded surrogate from internal id", view.MRN)
	}
	if view.DateOfBirth != "adult" {
		t.Fatalf("dob = %q, want age group", view.DateOfBirth)
	}
	if view.MedicalHistory != maskedValue {
		t.Fatalf("history = %q, want fully masked", view.MedicalHistory)
	}
	if view.Medications != "Levetiracetam 500mg" {
		t.Fatalf("medications = %q", view.Medications)
	}
}

func TestMaskForUserScientistInitials(t *testing.T) {
	view := newTestService(true).MaskForUser(context.Background(), subjectPatient(), viewer(models.RoleScientist))
	if view.Name != "M.K." {
		t.Fatalf("name = %q, want initials", view.Name)
	}
}

func TestMaskForUserUnknownRoleDefaultsClosed(t *testing.T) {
	view := newTestService(true).MaskForUser(context.Background(), subjectPatient(), viewer(models.UserRole("intern")))
	if view.Name != maskedValue || view.MRN != maskedValue {
		t.Fatalf("unknown role must mask fully: %+v", view)
	}
}

func TestMaskForUserIdempotent(t *testing.T) {
	svc := newTestService(true)
	subject := subjectPatient()
	for _, role := range []models.UserRole{models.RoleDoctor, models.RoleNurse, models.RoleTechnician, models.RoleScientist} {
		first := svc.MaskForUser(context.Background(), subject, viewer(role))
		second := svc.MaskForUser(context.Background(), subject, viewer(role))
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("masking not idempotent for %s:\n%+v\n%+v", role, first, second)
		}
	}
}

func TestMaskForUserDisabledBypassesAllRules(t *testing.T) {
	svc := newTestService(false)
	subject := subjectPatient()
	want := rawView(subject)
	for _, role := range []models.UserRole{models.RoleDoctor, models.RoleNurse, models.RoleTechnician, models.RoleScientist, models.RolePatient, models.UserRole("intern")} {
		if got := svc.MaskForUser(context.Background(), subject, viewer(role)); !reflect.DeepEqual(got, want) {
			t.Fatalf("disabled flag must return raw data for %s: %+v", role, got)
		}
	}
}

func TestPolicyRuleForDefaultsClosed(t *testing.T) {
	p := DefaultPolicy()
	if rule := p.RuleFor(models.UserRole("ghost"), FieldName); rule != RuleFull {
		t.Fatalf("rule = %q, want full", rule)
	}
	if rule := p.RuleFor(models.RoleNurse, "unknown_field"); rule != RuleFull {
		t.Fatalf("rule = %q, want full", rule)
	}
}

func TestLoadPolicyEmptyPathUsesDefault(t *testing.T) {
	policy, err := LoadPolicy("")
	if err != nil {
		t.Fatalf("empty path must yield default policy: %v", err)
	}
	if len(policy.Roles) == 0 {
		t.Fatal("default policy empty")
	}
}

func TestLoadPolicyRejectsUnknownRule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	yaml := "roles:\n  nurse:\n    name: scramble\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPolicy(path); err == nil {
		t.Fatal("unknown rule must be rejected")
	}
}
