package report

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrPolicyViolation aborts the AI call path. Callers catch it and route
// to local template generation; the payload is never silently stripped.
var ErrPolicyViolation = fmt.Errorf("phi policy violation")

// phiDenylist are field names that must never appear in a payload sent to
// an external AI provider. Matching is on the normalized key name.
var phiDenylist = map[string]bool{
	"name":            true,
	"first_name":      true,
	"last_name":       true,
	"full_name":       true,
	"patient_name":    true,
	"mrn":             true,
	"ssn":             true,
	"dob":             true,
	"date_of_birth":   true,
	"birth_date":      true,
	"address":         true,
	"phone":           true,
	"phone_number":    true,
	"email":           true,
	"physician":       true,
	"physician_name":  true,
	"referring_physician": true,
	"facility":        true,
	"facility_name":   true,
	"hospital_name":   true,
}

// GuardAIPayload checks an outbound payload for PHI field names and for a
// specific numeric age; age-category strings are the only allowed form.
// Nested maps and slices are checked recursively.
func GuardAIPayload(payload map[string]interface{}) error {
	return guardValue("", payload)
}

func guardValue(key string, value interface{}) error {
	switch v := value.(type) {
	case map[string]interface{}:
		for k, nested := range v {
			normalized := normalizeKey(k)
			if phiDenylist[normalized] {
				return fmt.Errorf("%w: field %q is not permitted in AI payloads", ErrPolicyViolation, k)
			}
			if normalized == "age" && isNumericValue(nested) {
				return fmt.Errorf("%w: numeric age %v must be an age category", ErrPolicyViolation, nested)
			}
			if err := guardValue(normalized, nested); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, item := range v {
			if err := guardValue(key, item); err != nil {
				return err
			}
		}
	}
	return nil
}

func normalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_")
}

func isNumericValue(v interface{}) bool {
	switch n := v.(type) {
	case int, int32, int64, float32, float64:
		return true
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return err == nil
	}
	return false
}
