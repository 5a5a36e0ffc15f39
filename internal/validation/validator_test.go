// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

package validation

import (
	"strings"
	"testing"
)

type sampleRequest struct {
	ProductID  int   `validate:"required,gt=0"`
	IsRelevant *bool `validate:"required"`
}

func TestValidateStructPasses(t *testing.T) {
	yes := true
	if verr := ValidateStruct(&sampleRequest{ProductID: 1, IsRelevant: &yes}); verr != nil {
		t.Errorf("unexpected validation error: %v", verr)
	}
}

func TestValidateStructRequired(t *testing.T) {
	verr := ValidateStruct(&sampleRequest{})
	if verr == nil {
		t.Fatal("expected validation errors")
	}
	if len(verr.Errors()) != 2 {
		t.Fatalf("errors = %d, want 2", len(verr.Errors()))
	}
	if !strings.Contains(verr.Error(), "ProductID is required") {
		t.Errorf("message = %q", verr.Error())
	}
}

func TestValidateStructParamMessage(t *testing.T) {
	yes := true
	verr := ValidateStruct(&sampleRequest{ProductID: -4, IsRelevant: &yes})
	if verr == nil {
		t.Fatal("expected validation error")
	}
	errs := verr.Errors()
	if len(errs) != 1 {
		t.Fatalf("errors = %d, want 1", len(errs))
	}
	if errs[0].Tag() != "gt" {
		t.Errorf("tag = %q, want gt", errs[0].Tag())
	}
	if !strings.Contains(errs[0].Error(), "must be greater than 0") {
		t.Errorf("message = %q", errs[0].Error())
	}
}

func TestToAPIErrorShapes(t *testing.T) {
	// Single failure carries field details directly.
	yes := true
	single := ValidateStruct(&sampleRequest{ProductID: -1, IsRelevant: &yes}).ToAPIError()
	if single.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q", single.Code)
	}
	if single.Details["field"] != "ProductID" {
		t.Errorf("details = %v", single.Details)
	}

	// Multiple failures nest under a fields list.
	multi := ValidateStruct(&sampleRequest{}).ToAPIError()
	fields, ok := multi.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 2 {
		t.Errorf("multi details = %v", multi.Details)
	}
}
