package masking

import (
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"

	"github.com/megcare/platform/pkg/common/models"
	"gopkg.in/yaml.v3"
)

// Masking rules. "none" passes the raw value through, "full" replaces it
// entirely, "hidden" blanks the field out of the view.
const (
	RuleNone            = "none"
	RuleFull            = "full"
	RuleHidden          = "hidden"
	RuleYearOnly        = "year_only"
	RuleAgeOnly         = "age_only"
	RuleAgeGroup        = "age_group"
	RulePartial         = "partial"
	RuleLast4           = "last_4"
	RuleSequential      = "sequential"
	RulePatientID       = "patient_id"
	RuleDomainOnly      = "domain_only"
	RuleFirstAndInitial = "first_and_initial"
	RuleInitialOnly     = "initial_only"
)

// Maskable patient fields.
const (
	FieldName           = "name"
	FieldMRN            = "mrn"
	FieldDateOfBirth    = "date_of_birth"
	FieldGender         = "gender"
	FieldPhone          = "phone"
	FieldEmail          = "email"
	FieldAddress        = "address"
	FieldMedicalHistory = "medical_history"
	FieldMedications    = "medications"
)

var validRules = map[string]bool{
	RuleNone: true, RuleFull: true, RuleHidden: true, RuleYearOnly: true,
	RuleAgeOnly: true, RuleAgeGroup: true, RulePartial: true, RuleLast4: true,
	RuleSequential: true, RulePatientID: true, RuleDomainOnly: true,
	RuleFirstAndInitial: true, RuleInitialOnly: true,
}

// Policy is the immutable role-by-field rule table, loaded once at
// startup. A role absent from the table falls back to full masking of
// every field.
type Policy struct {
	Roles map[string]map[string]string `yaml:"roles" json:"roles"`
}

// RuleFor resolves the rule for (role, field). Unknown roles and fields
// default closed, to RuleFull.
func (p Policy) RuleFor(role models.UserRole, field string) string {
	fields, ok := p.Roles[string(role)]
	if !ok {
		return RuleFull
	}
	rule, ok := fields[field]
	if !ok {
		return RuleFull
	}
	return rule
}

func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	content, err := ioutil.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultPolicy(), err
	}

	var policy Policy
	if err := yaml.Unmarshal(content, &policy); err != nil {
		return Policy{}, err
	}
	if len(policy.Roles) == 0 {
		return Policy{}, errors.New("no masking roles configured")
	}
	for role, fields := range policy.Roles {
		for field, rule := range fields {
			if !validRules[rule] {
				return Policy{}, fmt.Errorf("unknown masking rule %q for %s.%s", rule, role, field)
			}
		}
	}
	return policy, nil
}

// DefaultPolicy is the compiled rule table. Clinical roles see what their
// duties require; everything else is reduced or blanked.
func DefaultPolicy() Policy {
	open := map[string]string{
		FieldName: RuleNone, FieldMRN: RuleNone, FieldDateOfBirth: RuleNone,
		FieldGender: RuleNone, FieldPhone: RuleNone, FieldEmail: RuleNone,
		FieldAddress: RuleNone, FieldMedicalHistory: RuleNone, FieldMedications: RuleNone,
	}
	return Policy{Roles: map[string]map[string]string{
		string(models.RoleSuper):         open,
		string(models.RoleAdministrator): open,
		string(models.RoleDoctor):        open,
		string(models.RolePatient):       open,
		string(models.RoleNurse): {
			FieldName:           RuleFirstAndInitial,
			FieldMRN:            RuleLast4,
			FieldDateOfBirth:    RuleAgeOnly,
			FieldGender:         RuleNone,
			FieldPhone:          RulePartial,
			FieldEmail:          RuleDomainOnly,
			FieldAddress:        RuleHidden,
			FieldMedicalHistory: RuleNone,
			FieldMedications:    RuleNone,
		},
		string(models.RoleTechnician): {
			FieldName:           RuleFirstAndInitial,
			FieldMRN:            RuleSequential,
			FieldDateOfBirth:    RuleAgeGroup,
			FieldGender:         RuleNone,
			FieldPhone:          RuleHidden,
			FieldEmail:          RuleHidden,
			FieldAddress:        RuleHidden,
			FieldMedicalHistory: RuleFull,
			FieldMedications:    RuleNone,
		},
		string(models.RoleScientist): {
			FieldName:           RuleInitialOnly,
			FieldMRN:            RuleSequential,
			FieldDateOfBirth:    RuleAgeGroup,
			FieldGender:         RuleNone,
			FieldPhone:          RuleHidden,
			FieldEmail:          RuleHidden,
			FieldAddress:        RuleHidden,
			FieldMedicalHistory: RuleNone,
			FieldMedications:    RuleNone,
		},
	}}
}
