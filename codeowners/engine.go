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

// Package codeowners is the engine surface (spec §6): it wires the
// eleven components behind IsSubmittable, FileStatuses, OwnedPaths,
// ResolveOwnerReference and ValidateConfigFile, with explicit
// constructor wiring in place of the source's injected singletons
// (spec §9 design notes).
package codeowners

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/clarketm/codeowners/accountresolve"
	"github.com/clarketm/codeowners/approvalstatus"
	"github.com/clarketm/codeowners/changedfiles"
	"github.com/clarketm/codeowners/ownererrors"
	"github.com/clarketm/codeowners/ownersbackend"
	"github.com/clarketm/codeowners/ownersconfig"
	"github.com/clarketm/codeowners/ownersload"
	"github.com/clarketm/codeowners/ownerspolicy"
	"github.com/clarketm/codeowners/provider"
	"github.com/clarketm/codeowners/submitrule"
)

// Telemetry abstracts logging and metrics behind one interface so the
// host can supply its own backend (spec §9 design notes).
type Telemetry interface {
	Logger() *logrus.Entry
	ObserveDuration(operation string, d time.Duration)
	IncCounter(name string, labels map[string]string)
}

// noopTelemetry is used when the host supplies none.
type noopTelemetry struct{ log *logrus.Entry }

func (n noopTelemetry) Logger() *logrus.Entry                                  { return n.log }
func (n noopTelemetry) ObserveDuration(operation string, d time.Duration)       {}
func (n noopTelemetry) IncCounter(name string, labels map[string]string)        {}

// Services is the engine's explicit dependency set (spec §9 design
// notes): no module-level mutable state is introduced by the engine
// itself, everything it needs is passed in here.
type Services struct {
	Repos     provider.RepositoryProvider
	Accounts  provider.AccountProvider
	Clock     func() time.Time
	Telemetry Telemetry
}

// Engine is the process-wide facade; it holds no per-request state of
// its own — every call opens its own Loader scoped to that call.
type Engine struct {
	services Services
}

// New builds an Engine from explicit services, filling in defaults for
// any zero-valued optional field.
func New(services Services) *Engine {
	if services.Clock == nil {
		services.Clock = time.Now
	}
	if services.Telemetry == nil {
		services.Telemetry = noopTelemetry{log: logrus.NewEntry(logrus.New())}
	}
	return &Engine{services: services}
}

// Change is one submittability request: the revision under test plus
// the review-platform votes and policy the host has already resolved
// for (project, branch). Self-approval filtering (spec testable
// property 6) is the caller's responsibility — every account set here
// is expected to already exclude the uploader when the required label
// forbids self-approval.
type Change struct {
	Project  string
	Branch   string
	Revision provider.ObjectId

	Reviewers        sets.String
	Approvers        sets.String
	StickyApprovers  sets.String
	ImplicitApprover provider.AccountId
	Overrides        sets.String
	ProjectOwners    sets.String

	// DiffCache, when non-nil, switches changed-file extraction to
	// DiffCache mode (spec §4.5); otherwise Recompute mode is used.
	DiffCache     changedfiles.DiffCache
	ParentNumber  *int
	CheckAllOwners bool
}

// IsSubmittableResult is the Engine surface's IsSubmittable output
// (spec §6).
type IsSubmittableResult struct {
	OK        bool
	ErrorKind ownererrors.Kind
	Message   string
}

func (e *Engine) backendFor(policy *ownerspolicy.Config) ownersload.BackendFor {
	return func(key ownersconfig.Key) (ownersbackend.Backend, error) {
		return ownersbackend.Get(policy.Backend)
	}
}

func (e *Engine) resolveOptions(policy *ownerspolicy.Config) accountresolve.Options {
	return accountresolve.Options{
		EnforceVisibility:   true,
		AllowedEmailDomains: policy.AllowedEmailDomains,
	}
}

// fileStatuses runs C8 then C9 for change, returning every
// FileCodeOwnerStatus and overall submittability.
func (e *Engine) fileStatuses(ctx context.Context, change Change, policy *ownerspolicy.Config) ([]ownersconfig.FileCodeOwnerStatus, bool, error) {
	loader := ownersload.New(e.services.Repos, e.backendFor(policy), e.services.Telemetry.Logger())
	defer loader.Close()

	resolver := accountresolve.New(e.services.Accounts, e.services.Telemetry.Logger())
	opts := e.resolveOptions(policy)

	globalOwners, err := resolver.ResolveSet(ctx, policy.GlobalCodeOwners, opts)
	if err != nil {
		return nil, false, err
	}

	changed, err := e.changedFiles(ctx, change, policy)
	if err != nil {
		return nil, false, err
	}

	apEngine := approvalstatus.New(loader, resolver, policy.PathExpressions, "OWNERS", opts, e.services.Telemetry.Logger())
	in := approvalstatus.CheckInput{
		Reviewers:          change.Reviewers,
		Approvers:          change.Approvers,
		StickyApprovers:    change.StickyApprovers,
		ImplicitApprover:   change.ImplicitApprover,
		Overrides:          change.Overrides,
		GlobalCodeOwners:   globalOwners,
		ProjectOwners:      change.ProjectOwners,
		FallbackCodeOwners: policy.FallbackCodeOwners,
		CheckAllOwners:     change.CheckAllOwners,
	}
	return approvalstatus.CheckChange(ctx, apEngine, change.Project, change.Branch, changed, in)
}

func (e *Engine) changedFiles(ctx context.Context, change Change, policy *ownerspolicy.Config) ([]ownersconfig.ChangedFile, error) {
	if change.DiffCache != nil {
		return changedfiles.FromCache(ctx, change.DiffCache, change.Project, change.Revision, change.ParentNumber)
	}
	repo, err := e.services.Repos.OpenRepo(ctx, change.Project)
	if err != nil {
		return nil, ownererrors.Wrap(ownererrors.Repository, err, "open repo").WithLocation(change.Project, change.Branch, "")
	}
	defer repo.Close()
	return changedfiles.Recompute(ctx, e.services.Repos, change.Project, repo, change.Revision, policy.MergeCommitStrategy)
}

// SubmitRecord runs the full submittability check and returns the raw
// submit-rule record (spec §4.6 state machine), for callers that need
// to post it on to a review platform (e.g. gerritprovider.SubmitRecordPoster)
// rather than just its OK/NOT-OK summary.
func (e *Engine) SubmitRecord(ctx context.Context, change Change, policy *ownerspolicy.Config) (submitrule.Record, error) {
	record, _, err := e.evaluate(ctx, change, policy)
	return record, err
}

// IsSubmittable runs the full submittability check and converts it to a
// submit-rule verdict (spec §4.6 state machine).
func (e *Engine) IsSubmittable(ctx context.Context, change Change, policy *ownerspolicy.Config) (IsSubmittableResult, error) {
	record, kind, err := e.evaluate(ctx, change, policy)
	if err != nil {
		return IsSubmittableResult{}, err
	}
	return IsSubmittableResult{
		OK:        record.Status == submitrule.OK || record.Status == submitrule.Disabled,
		ErrorKind: kind,
		Message:   record.ErrorMessage,
	}, nil
}

// evaluate is the shared body behind SubmitRecord and IsSubmittable: it
// runs C8/C9 once and reports both the submit-rule record and the
// classified error kind of whatever check error produced it.
func (e *Engine) evaluate(ctx context.Context, change Change, policy *ownerspolicy.Config) (submitrule.Record, ownererrors.Kind, error) {
	start := e.services.Clock()
	defer func() {
		e.services.Telemetry.ObserveDuration("is_submittable", e.services.Clock().Sub(start))
	}()

	disabled := policy.Disabled || policy.DisabledBranch.Has(change.Branch)
	var submittable bool
	var checkErr error
	if !disabled {
		_, submittable, checkErr = e.fileStatuses(ctx, change, policy)
	}

	record, err := submitrule.Evaluate(disabled, submittable, checkErr)
	if err != nil {
		return submitrule.Record{}, ownererrors.Internal, err
	}
	return record, ownererrors.KindOf(checkErr), nil
}

// FileStatuses returns the per-path status of every file the change
// touches (spec §6).
func (e *Engine) FileStatuses(ctx context.Context, change Change, policy *ownerspolicy.Config) ([]ownersconfig.FileCodeOwnerStatus, error) {
	statuses, _, err := e.fileStatuses(ctx, change, policy)
	return statuses, err
}

// ResolveOwnerReference resolves one CodeOwnerReference using the
// identity resolver (C7) directly, for host-side display purposes
// (spec §6).
func (e *Engine) ResolveOwnerReference(ctx context.Context, ref ownersconfig.CodeOwnerReference, opts accountresolve.Options) (*accountresolve.Result, error) {
	resolver := accountresolve.New(e.services.Accounts, e.services.Telemetry.Logger())
	return resolver.ResolveSet(ctx, sets.NewString(string(ref)), opts)
}

// ValidateConfigFile parses blob with policy's configured
// backend and reports any problems, without mutating anything (spec
// §6, §8 "ValidateConfigFile returns no errors for any file produced by
// Format").
func (e *Engine) ValidateConfigFile(policy *ownerspolicy.Config, blob []byte) []string {
	backend, err := ownersbackend.Get(policy.Backend)
	if err != nil {
		return []string{err.Error()}
	}
	cfg, err := backend.Parse(blob)
	if err != nil {
		return []string{err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return []string{err.Error()}
	}
	return nil
}

// Page selects a window of OwnedPaths results.
type Page struct {
	Offset int
	Limit  int
}

// OwnedPaths enumerates every path at change.Revision owned by account,
// applying policy's fallback rules, in a single pass over the tree
// (spec §6 "OwnedPaths(change, account, page)").
func (e *Engine) OwnedPaths(ctx context.Context, change Change, policy *ownerspolicy.Config, account provider.AccountId, page Page) ([]string, error) {
	loader := ownersload.New(e.services.Repos, e.backendFor(policy), e.services.Telemetry.Logger())
	defer loader.Close()

	resolver := accountresolve.New(e.services.Accounts, e.services.Telemetry.Logger())
	apEngine := approvalstatus.New(loader, resolver, policy.PathExpressions, "OWNERS", e.resolveOptions(policy), e.services.Telemetry.Logger())

	globalOwners, err := resolver.ResolveSet(ctx, policy.GlobalCodeOwners, e.resolveOptions(policy))
	if err != nil {
		return nil, err
	}

	repo, err := e.services.Repos.OpenRepo(ctx, change.Project)
	if err != nil {
		return nil, ownererrors.Wrap(ownererrors.Repository, err, "open repo").WithLocation(change.Project, change.Branch, "")
	}
	defer repo.Close()

	rev := change.Revision
	iter, err := e.services.Repos.WalkTree(ctx, repo, rev, "")
	if err != nil {
		return nil, ownererrors.Wrap(ownererrors.Repository, err, "walk tree").WithLocation(change.Project, change.Branch, "")
	}

	var owned []string
	for {
		p, _, ok := iter()
		if !ok {
			break
		}
		owners, err := apEngine.OwnersOf(ctx, change.Project, change.Branch, p, globalOwners, change.ProjectOwners, policy.FallbackCodeOwners)
		if err != nil {
			return nil, err
		}
		if owners.AllUsers || owners.Accounts.Has(string(account)) {
			owned = append(owned, p)
		}
	}
	sort.Strings(owned)

	lo := page.Offset
	if lo > len(owned) {
		lo = len(owned)
	}
	hi := len(owned)
	if page.Limit > 0 && lo+page.Limit < hi {
		hi = lo + page.Limit
	}
	return owned[lo:hi], nil
}
