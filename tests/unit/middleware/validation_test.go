package middleware_test

import (
	"strings"
	"testing"

	"github.com/zainhoda/sij-manager-sub003/pkg/api/middleware"
)

func TestValidator_ValidateStrategy_AcceptsKnown(t *testing.T) {
	v := middleware.NewValidator(middleware.DefaultValidatorConfig())

	for _, s := range []string{"meet_deadlines", "minimize_cost", "balanced"} {
		if err := v.ValidateStrategy(s); err != nil {
			t.Errorf("strategy %q should be accepted: %v", s, err)
		}
	}
}

func TestValidator_ValidateStrategy_RejectsUnknown(t *testing.T) {
	v := middleware.NewValidator(middleware.DefaultValidatorConfig())

	for _, s := range []string{"", "optimal", "custom", "MEET_DEADLINES"} {
		if err := v.ValidateStrategy(s); err == nil {
			t.Errorf("strategy %q should be rejected", s)
		}
	}
}

func TestValidator_ValidateEmployeeID_AcceptsNormal(t *testing.T) {
	v := middleware.NewValidator(middleware.DefaultValidatorConfig())

	for _, id := range []string{"EMP-001", "worker_42", "a"} {
		if err := v.ValidateEmployeeID(id); err != nil {
			t.Errorf("employee id %q should be accepted: %v", id, err)
		}
	}
}

func TestValidator_ValidateEmployeeID_RejectsEmpty(t *testing.T) {
	v := middleware.NewValidator(middleware.DefaultValidatorConfig())

	if err := v.ValidateEmployeeID(""); err == nil {
		t.Error("empty employee id should be rejected")
	}
}

func TestValidator_ValidateEmployeeID_RejectsBadCharset(t *testing.T) {
	v := middleware.NewValidator(middleware.DefaultValidatorConfig())

	for _, id := range []string{"emp 1", "emp;1", "emp/1"} {
		if err := v.ValidateEmployeeID(id); err == nil {
			t.Errorf("employee id %q should be rejected", id)
		}
	}
}

func TestValidator_ValidateEmployeeID_RejectsTooLong(t *testing.T) {
	v := middleware.NewValidator(middleware.DefaultValidatorConfig())

	if err := v.ValidateEmployeeID(strings.Repeat("a", 65)); err == nil {
		t.Error("over-long employee id should be rejected")
	}
}

func TestValidator_ValidateQuantity(t *testing.T) {
	v := middleware.NewValidator(middleware.DefaultValidatorConfig())

	if err := v.ValidateQuantity(1); err != nil {
		t.Errorf("quantity 1 should be accepted: %v", err)
	}
	for _, q := range []int{0, -5} {
		if err := v.ValidateQuantity(q); err == nil {
			t.Errorf("quantity %d should be rejected", q)
		}
	}
}

func TestValidator_ValidateNote_RejectsTooLong(t *testing.T) {
	v := middleware.NewValidator(middleware.DefaultValidatorConfig())

	if err := v.ValidateNote(strings.Repeat("x", 2049)); err == nil {
		t.Error("over-long note should be rejected")
	}
	if err := v.ValidateNote("looks fine"); err != nil {
		t.Errorf("short note should be accepted: %v", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &middleware.ValidationError{Field: "quantity", Message: "must be positive"}
	if err.Error() != "quantity: must be positive" {
		t.Errorf("unexpected error string: %q", err.Error())
	}
}
