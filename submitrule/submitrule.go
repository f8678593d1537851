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

// Package submitrule is the Submit Rule Adapter (C10): it converts the
// Approval-Status Engine's (C9) verdict into the submit-record contract
// the host's change-update transaction consumes (spec §4.6 state
// machine, §6 "Submit record contract").
package submitrule

import (
	"github.com/clarketm/codeowners/ownererrors"
)

// Status is one of the four submit-rule states (spec §4.6). Disabled
// omits a record entirely rather than being rendered to the caller.
type Status string

const (
	OK         Status = "OK"
	NotReady   Status = "NOT_READY"
	RuleError  Status = "RULE_ERROR"
	Disabled   Status = "DISABLED"
)

// Requirement is one entry of a submit record's requirements list.
type Requirement struct {
	Type         string
	FallbackText string
}

// Record is the submit-rule adapter's output (spec §6).
type Record struct {
	Status       Status
	Requirements []Requirement
	ErrorMessage string
}

// codeOwnersRequirement is the single requirement this adapter ever
// emits; the host renders FallbackText when it cannot resolve the
// structured requirement type on its own.
var codeOwnersRequirement = Requirement{
	Type:         "code-owners",
	FallbackText: "Code owner review required",
}

// Evaluate builds the submit record for one request (spec §4.6).
// branchDisabled reflects the resolved policy's disabled/disabledBranch
// setting. submittable and checkErr are C9's outputs: checkErr, when
// non-nil, is classified by whether it is user-caused (spec §7) —
// user-caused errors become RULE_ERROR with an attributed message;
// anything else is returned unconverted so the caller can propagate it
// as an internal failure instead of faking a rule verdict.
func Evaluate(branchDisabled bool, submittable bool, checkErr error) (Record, error) {
	if branchDisabled {
		return Record{Status: Disabled}, nil
	}

	if checkErr != nil {
		if !ownererrors.KindOf(checkErr).UserCaused() {
			return Record{}, checkErr
		}
		return Record{
			Status:       RuleError,
			Requirements: []Requirement{codeOwnersRequirement},
			ErrorMessage: checkErr.Error(),
		}, nil
	}

	if submittable {
		return Record{Status: OK}, nil
	}
	return Record{
		Status:       NotReady,
		Requirements: []Requirement{codeOwnersRequirement},
	}, nil
}
