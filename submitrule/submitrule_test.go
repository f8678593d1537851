/*
Copyright 2017 The Kubernetes Authors.

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

package submitrule

import (
	"errors"
	"testing"

	"github.com/clarketm/codeowners/ownererrors"
)

func TestEvaluateDisabledOmitsEverythingElse(t *testing.T) {
	rec, err := Evaluate(true, false, errors.New("should be ignored"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rec.Status != Disabled {
		t.Errorf("expected DISABLED, got %s", rec.Status)
	}
}

func TestEvaluateOK(t *testing.T) {
	rec, err := Evaluate(false, true, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rec.Status != OK {
		t.Errorf("expected OK, got %s", rec.Status)
	}
}

func TestEvaluateNotReady(t *testing.T) {
	rec, err := Evaluate(false, false, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rec.Status != NotReady || len(rec.Requirements) != 1 {
		t.Errorf("expected NOT_READY with one requirement, got %+v", rec)
	}
}

func TestEvaluateUserCausedErrorBecomesRuleError(t *testing.T) {
	cfgErr := ownererrors.New(ownererrors.ConfigInvalid, "bad OWNERS file")
	rec, err := Evaluate(false, false, cfgErr)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rec.Status != RuleError || rec.ErrorMessage == "" {
		t.Errorf("expected RULE_ERROR with a message, got %+v", rec)
	}
}

func TestEvaluateInternalErrorPropagates(t *testing.T) {
	internalErr := ownererrors.New(ownererrors.Repository, "repo unreachable")
	_, err := Evaluate(false, false, internalErr)
	if err == nil {
		t.Errorf("expected an internal error to propagate unconverted")
	}
}
