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

// Package approvalstatus is the Approval-Status Engine (C9): it combines
// owner sets, reviewers, approvers, implicit approvals, overrides and
// fallback rules into a per-path status, and aggregates per-path results
// into an overall submittability decision (spec §4.6).
package approvalstatus

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/clarketm/codeowners/accountresolve"
	"github.com/clarketm/codeowners/ownersconfig"
	"github.com/clarketm/codeowners/ownersload"
	"github.com/clarketm/codeowners/ownersresolve"
	"github.com/clarketm/codeowners/ownerswalk"
	"github.com/clarketm/codeowners/pathmatch"
	"github.com/clarketm/codeowners/provider"
)

// FallbackMode selects what owns a path when no config claims it
// (spec §4.8 "fallbackCodeOwners").
type FallbackMode string

const (
	FallbackNone          FallbackMode = "NONE"
	FallbackAllUsers      FallbackMode = "ALL_USERS"
	FallbackProjectOwners FallbackMode = "PROJECT_OWNERS"
)

// CheckInput carries the request-scoped inputs the spec's decision tree
// consumes; every field is expected to already reflect the caller's
// self-approval filtering (spec §4.6, invariant 6).
type CheckInput struct {
	Reviewers       sets.String
	Approvers       sets.String
	StickyApprovers sets.String
	ImplicitApprover provider.AccountId // empty means absent
	Overrides        sets.String        // voter account ids
	GlobalCodeOwners *accountresolve.Result
	ProjectOwners    sets.String
	FallbackCodeOwners FallbackMode
	CheckAllOwners     bool
}

// Engine evaluates per-path approval status by walking the config
// hierarchy (C6) and resolving identities (C7) along the way.
type Engine struct {
	loader    *ownersload.Loader
	resolver  *accountresolve.Resolver
	dialect   pathmatch.Dialect
	fileName  string
	resolveOpts accountresolve.Options
	log       *logrus.Entry
}

// New creates an Engine scoped to one resolution.
func New(loader *ownersload.Loader, resolver *accountresolve.Resolver, dialect pathmatch.Dialect, fileName string, resolveOpts accountresolve.Options, log *logrus.Entry) *Engine {
	return &Engine{loader: loader, resolver: resolver, dialect: dialect, fileName: fileName, resolveOpts: resolveOpts, log: log}
}

// OwnersResult is the accumulated owner set for one path, tracking the
// all-users sentinel separately from concrete accounts (spec §4.6). It
// is also what backs the Engine surface's OwnedPaths query.
type OwnersResult struct {
	Accounts sets.String
	AllUsers bool
}

func (o *OwnersResult) merge(r *accountresolve.Result) {
	if r == nil {
		return
	}
	o.Accounts.Insert(r.Owners.List()...)
	if r.OwnedByAllUsers {
		o.AllUsers = true
	}
}

// Empty reports whether no concrete account and not the all-users
// sentinel owns the path.
func (o *OwnersResult) Empty() bool {
	return !o.AllUsers && o.Accounts.Len() == 0
}

// OwnersOf computes ownersOfP for path by walking the config hierarchy
// (C6), resolving each visited config's code-owner references (C7),
// applying the bootstrapping and fallback rules (spec §4.6).
func (e *Engine) OwnersOf(ctx context.Context, project, branch, path string, globalCodeOwners *accountresolve.Result, projectOwners sets.String, fallback FallbackMode) (*OwnersResult, error) {
	owners := &OwnersResult{Accounts: sets.NewString()}
	owners.merge(globalCodeOwners)

	var walkErr error
	err := ownerswalk.Walk(ctx, e.loader, e.dialect, e.fileName, project, branch, path,
		func(res *ownersresolve.Result, key ownersconfig.Key) bool {
			refs := sets.NewString()
			for _, set := range res.Config.CodeOwnerSets {
				refs.Insert(set.CodeOwners.List()...)
			}
			resolved, resolveErr := e.resolver.ResolveSet(ctx, refs, e.resolveOpts)
			if resolveErr != nil {
				walkErr = resolveErr
				return false
			}
			owners.merge(resolved)
			return true
		})
	if err == nil {
		err = walkErr
	}
	if err != nil {
		return nil, err
	}

	anyConfig, err := e.loader.AnyConfigExists(ctx, project, branch, e.fileName)
	if err != nil {
		return nil, err
	}

	if !anyConfig {
		// Bootstrapping: the branch has no OWNERS config anywhere, not just
		// along this path's own ancestry.
		owners.Accounts.Insert(projectOwners.List()...)
	} else if owners.Empty() {
		switch fallback {
		case FallbackAllUsers:
			owners.AllUsers = true
		case FallbackProjectOwners:
			owners.Accounts.Insert(projectOwners.List()...)
		}
	}

	return owners, nil
}

// CheckPath evaluates the status of one absolute path (spec §4.6). The
// revision is whatever the Loader has pinned sticky for (project, branch).
func (e *Engine) CheckPath(ctx context.Context, project, branch, path string, in CheckInput) (*ownersconfig.PathCodeOwnerStatus, error) {
	status := &ownersconfig.PathCodeOwnerStatus{AbsolutePath: path}

	if in.Overrides.Len() > 0 {
		voter := in.Overrides.List()[0]
		status.Status = ownersconfig.Approved
		status.Reasons = append(status.Reasons, fmt.Sprintf("override by %s", voter))
		return status, nil
	}

	owners, err := e.OwnersOf(ctx, project, branch, path, in.GlobalCodeOwners, in.ProjectOwners, in.FallbackCodeOwners)
	if err != nil {
		return nil, err
	}

	classify(status, owners, in)
	if in.CheckAllOwners {
		status.Owners = sets.NewString(owners.Accounts.List()...)
		if owners.AllUsers {
			status.Owners.Insert(string(ownersconfig.AllUsers))
		}
	}
	return status, nil
}

func classify(status *ownersconfig.PathCodeOwnerStatus, owners *OwnersResult, in CheckInput) {
	switch {
	case in.ImplicitApprover != "" && owners.Accounts.Has(string(in.ImplicitApprover)):
		status.Status = ownersconfig.Approved
		status.Reasons = append(status.Reasons, "implicit approval by change owner")
	case in.Approvers.Intersection(owners.Accounts).Len() > 0:
		status.Status = ownersconfig.Approved
		status.Reasons = append(status.Reasons, "explicit approval")
	case owners.AllUsers && in.Approvers.Len() > 0:
		status.Status = ownersconfig.Approved
		status.Reasons = append(status.Reasons, "approval under all-users ownership")
	case in.StickyApprovers.Intersection(owners.Accounts).Len() > 0:
		status.Status = ownersconfig.Approved
		status.Reasons = append(status.Reasons, "sticky approval from a previous patch set")
	case owners.AllUsers || in.Reviewers.Intersection(owners.Accounts).Len() > 0:
		status.Status = ownersconfig.Pending
		status.Reasons = append(status.Reasons, "awaiting owner approval")
	case owners.Empty():
		status.Status = ownersconfig.NoOwnersDefined
	default:
		status.Status = ownersconfig.InsufficientReviewers
	}
}

// CheckChange evaluates every changed file and reports overall
// submittability: submittable iff every present path status is
// APPROVED (spec §4.6).
func CheckChange(ctx context.Context, e *Engine, project, branch string, changed []ownersconfig.ChangedFile, in CheckInput) ([]ownersconfig.FileCodeOwnerStatus, bool, error) {
	out := make([]ownersconfig.FileCodeOwnerStatus, 0, len(changed))
	submittable := true

	for _, cf := range changed {
		fcs := ownersconfig.FileCodeOwnerStatus{ChangedFile: cf}

		if cf.NewPath != nil {
			st, err := e.CheckPath(ctx, project, branch, *cf.NewPath, in)
			if err != nil {
				return nil, false, err
			}
			fcs.NewPathStatus = st
			if st.Status != ownersconfig.Approved {
				submittable = false
			}
		}
		if cf.OldPath != nil && (cf.Kind == ownersconfig.Delete || cf.Kind == ownersconfig.Rename) {
			st, err := e.CheckPath(ctx, project, branch, *cf.OldPath, in)
			if err != nil {
				return nil, false, err
			}
			fcs.OldPathStatus = st
			if st.Status != ownersconfig.Approved {
				submittable = false
			}
		}

		out = append(out, fcs)
	}

	return out, submittable, nil
}
