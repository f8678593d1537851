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

// Package accountresolve is the Identity Resolver (C7): it maps textual
// code-owner references (emails, or the "*" wildcard) to concrete
// account identifiers, applying domain allow-list and visibility policy
// (spec §4.7).
package accountresolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/clarketm/codeowners/ownererrors"
	"github.com/clarketm/codeowners/ownersconfig"
	"github.com/clarketm/codeowners/provider"
)

// Options carries the resolver flags from spec §4.7: whether visibility
// is enforced for this request, and, when it is, which account is doing
// the viewing.
type Options struct {
	EnforceVisibility bool
	AsUser            provider.AccountId
	// AllowedEmailDomains is empty to allow any domain, else an allow-list
	// of domains (the substring after the last "@").
	AllowedEmailDomains sets.String
}

// Result is the outcome of resolving one CodeOwnerSet's worth of
// CodeOwnerReference entries (spec §4.7).
type Result struct {
	Owners               sets.String // of provider.AccountId, as plain strings
	OwnedByAllUsers      bool
	HasUnresolved        bool
	HasUnresolvedImports bool
	Messages             []string
}

func newResult() *Result {
	return &Result{Owners: sets.NewString()}
}

func (r *Result) note(format string, args ...interface{}) {
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

// Resolver resolves CodeOwnerReference values against an AccountProvider.
type Resolver struct {
	accounts provider.AccountProvider
	log      *logrus.Entry
}

// New creates a Resolver backed by accounts.
func New(accounts provider.AccountProvider, log *logrus.Entry) *Resolver {
	return &Resolver{accounts: accounts, log: log}
}

// ResolveSet resolves every CodeOwnerReference in refs, folding the
// individual outcomes into one Result (spec §4.7). A reference that
// cannot be resolved never fails the call; it only sets HasUnresolved
// and records a diagnostic message.
func (r *Resolver) ResolveSet(ctx context.Context, refs sets.String, opts Options) (*Result, error) {
	result := newResult()
	for _, ref := range refs.List() {
		if err := r.resolveOne(ctx, ownersconfig.CodeOwnerReference(ref), opts, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *Resolver) resolveOne(ctx context.Context, ref ownersconfig.CodeOwnerReference, opts Options, result *Result) error {
	if err := ctx.Err(); err != nil {
		return ownererrors.Wrap(ownererrors.Canceled, err, "resolve code owner canceled")
	}

	// Step 1: wildcard.
	if ref == ownersconfig.AllUsers {
		result.OwnedByAllUsers = true
		return nil
	}

	email := string(ref)

	// Step 2: domain allow-list.
	domain, ok := domainOf(email)
	if !ok {
		result.HasUnresolved = true
		result.note("code owner %q is not a valid email address", email)
		return nil
	}
	if opts.AllowedEmailDomains.Len() > 0 && !opts.AllowedEmailDomains.Has(domain) {
		result.HasUnresolved = true
		result.note("code owner %q has a domain outside the allowed list", email)
		return nil
	}

	// Step 3: account lookup.
	ids, err := r.accounts.LookupByEmail(ctx, email)
	if err != nil {
		return ownererrors.Wrap(ownererrors.Account, err, "lookup account by email").WithLocation("", "", email)
	}
	active := make([]provider.AccountId, 0, len(ids))
	for _, id := range ids {
		acct, found, err := r.accounts.Get(ctx, id)
		if err != nil {
			return ownererrors.Wrap(ownererrors.Account, err, "get account").WithLocation("", "", email)
		}
		if found && acct.Active {
			active = append(active, id)
		}
	}
	if len(active) == 0 {
		result.HasUnresolved = true
		result.note("code owner %q does not resolve to any active account", email)
		return nil
	}
	if len(active) > 1 {
		result.HasUnresolved = true
		result.note("code owner %q is ambiguous across %d active accounts", email, len(active))
		return nil
	}
	id := active[0]

	// Step 4: visibility.
	if opts.EnforceVisibility {
		visible, allowed, err := r.checkVisibility(ctx, id, email, opts.AsUser)
		if err != nil {
			return err
		}
		if !visible {
			result.HasUnresolved = true
			result.note("code owner %q is not visible to the viewing user", email)
			return nil
		}
		if !allowed {
			result.HasUnresolved = true
			result.note("code owner %q is a secondary email not owned by the viewing user", email)
			return nil
		}
	}

	result.Owners.Insert(string(id))
	r.log.WithFields(logrus.Fields{"email": email, "account": id}).Debug("resolved code owner")
	return nil
}

// checkVisibility applies spec §4.7 step 4: the viewing user must be
// able to see the account, and, when the email is a secondary email,
// must either own it or hold the global modify-account capability.
func (r *Resolver) checkVisibility(ctx context.Context, id provider.AccountId, email string, viewer provider.AccountId) (visible, allowed bool, err error) {
	ok, err := r.accounts.CanSee(ctx, viewer, id)
	if err != nil {
		return false, false, ownererrors.Wrap(ownererrors.Account, err, "check account visibility").WithLocation("", "", email)
	}
	if !ok {
		return false, false, nil
	}

	acct, found, err := r.accounts.Get(ctx, id)
	if err != nil {
		return false, false, ownererrors.Wrap(ownererrors.Account, err, "get account").WithLocation("", "", email)
	}
	if !found {
		return false, false, nil
	}
	if acct.PrimaryEmail == email {
		return true, true, nil
	}

	isSecondary, err := r.accounts.HasSecondaryEmail(ctx, viewer, email)
	if err != nil {
		return false, false, ownererrors.Wrap(ownererrors.Account, err, "check secondary email ownership").WithLocation("", "", email)
	}
	if isSecondary {
		return true, true, nil
	}
	canModify, err := r.accounts.HasGlobalCapability(ctx, viewer, provider.ModifyAccountCapability)
	if err != nil {
		return false, false, ownererrors.Wrap(ownererrors.Account, err, "check modify-account capability").WithLocation("", "", email)
	}
	return true, canModify, nil
}

func domainOf(email string) (string, bool) {
	i := strings.LastIndexByte(email, '@')
	if i < 0 || i == len(email)-1 {
		return "", false
	}
	return email[i+1:], true
}
