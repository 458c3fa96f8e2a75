package report

import (
	"errors"
	"testing"
)

func TestGuardAIPayloadCleanPasses(t *testing.T) {
	payload := map[string]interface{}{
		"symptoms":  "headaches",
		"age_group": "adult",
		"gender":    "male",
		"procedures": []interface{}{
			map[string]interface{}{"procedure": "MEG / Resting", "status": "completed"},
		},
	}
	if err := GuardAIPayload(payload); err != nil {
		t.Fatalf("clean payload rejected: %v", err)
	}
}

func TestGuardAIPayloadDenylistedField(t *testing.T) {
	payload := map[string]interface{}{
		"symptoms": "headaches",
		"mrn":      "554",
	}
	err := GuardAIPayload(payload)
	if !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("err = %v, want policy violation", err)
	}
}

func TestGuardAIPayloadNestedField(t *testing.T) {
	payload := map[string]interface{}{
		"context": map[string]interface{}{
			"patient": map[string]interface{}{"first_name": "Ada"},
		},
	}
	if err := GuardAIPayload(payload); !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("nested denylisted field not caught: %v", err)
	}
}

func TestGuardAIPayloadNumericAge(t *testing.T) {
	for _, age := range []interface{}{34, 34.0, "34"} {
		if err := GuardAIPayload(map[string]interface{}{"age": age}); !errors.Is(err, ErrPolicyViolation) {
			t.Fatalf("numeric age %v not rejected", age)
		}
	}
	if err := GuardAIPayload(map[string]interface{}{"age": "adult"}); err != nil {
		t.Fatalf("age category rejected: %v", err)
	}
}

func TestGuardAIPayloadKeyNormalization(t *testing.T) {
	if err := GuardAIPayload(map[string]interface{}{"Date-Of-Birth": "1990-01-01"}); !errors.Is(err, ErrPolicyViolation) {
		t.Fatal("case/hyphen variant of denylisted key not caught")
	}
}

func TestGuardAIPayloadSliceOfMaps(t *testing.T) {
	payload := map[string]interface{}{
		"documents": []interface{}{
			map[string]interface{}{"summary": "ok"},
			map[string]interface{}{"physician_name": "Dr. X"},
		},
	}
	if err := GuardAIPayload(payload); !errors.Is(err, ErrPolicyViolation) {
		t.Fatal("denylisted field inside slice not caught")
	}
}
