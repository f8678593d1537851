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

package gerritprovider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	gerrit "github.com/andygrunwald/go-gerrit"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/clarketm/codeowners/ownererrors"
	"github.com/clarketm/codeowners/provider"
	"github.com/clarketm/codeowners/submitrule"
)

// AccountProvider resolves identities and visibility against a Gerrit
// host's REST API. The underlying *gerrit.Client already pools
// connections, so one AccountProvider is safe to share across requests.
type AccountProvider struct {
	client *gerrit.Client
	log    *logrus.Entry
}

// Client exposes the underlying *gerrit.Client so callers can build
// other collaborators (e.g. NewSubmitRecordPoster) that share its
// connection and authentication instead of dialing a second client.
func (a *AccountProvider) Client() *gerrit.Client {
	return a.client
}

// NewAccountProvider builds an AccountProvider talking to gerritURL,
// authenticating with httpClient (e.g. one wrapping DigestAuth or basic
// auth the way andygrunwald/go-gerrit's own examples do).
func NewAccountProvider(gerritURL string, httpClient *http.Client, log *logrus.Entry) (*AccountProvider, error) {
	client, err := gerrit.NewClient(gerritURL, httpClient)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "create gerrit client")
	}
	return &AccountProvider{client: client, log: log}, nil
}

// LookupByEmail queries Gerrit's account-query endpoint for every
// account registered under email (spec §4.7 "one-to-many": an email can
// match more than one account).
func (a *AccountProvider) LookupByEmail(ctx context.Context, email string) ([]provider.AccountId, error) {
	opt := &gerrit.QueryAccountOptions{
		QueryOptions: gerrit.QueryOptions{Query: []string{fmt.Sprintf("email:%s", email)}},
	}
	accounts, _, err := a.client.Accounts.QueryAccounts(opt)
	if err != nil {
		return nil, accountErr(err, "query accounts by email")
	}
	if accounts == nil {
		return nil, nil
	}

	out := make([]provider.AccountId, 0, len(*accounts))
	for _, acct := range *accounts {
		out = append(out, provider.AccountId(strconv.Itoa(acct.AccountID)))
	}
	return out, nil
}

// Get fetches the account detail for id, reporting inactive accounts
// through Account.Active rather than as an error (spec §4.7 step 3
// filters these out without failing the whole resolution).
func (a *AccountProvider) Get(ctx context.Context, id provider.AccountId) (*provider.Account, bool, error) {
	info, resp, err := a.client.Accounts.GetAccount(string(id))
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, accountErr(err, "get account")
	}

	secondary := make([]string, 0, len(info.SecondaryEmails))
	secondary = append(secondary, info.SecondaryEmails...)

	return &provider.Account{
		ID:              id,
		PrimaryEmail:    info.Email,
		SecondaryEmails: secondary,
		Active:          !info.Inactive,
	}, true, nil
}

// CanSee reports whether viewer is permitted to see id's account detail
// (spec §4.7 step 4): true when viewer is id itself, otherwise whether
// Gerrit answers the account-detail request for id, made with this
// provider's own credentials (a 404 means not visible). Secondary-email
// ownership and the modify-account capability are checked by the
// resolver, not here.
func (a *AccountProvider) CanSee(ctx context.Context, viewer, id provider.AccountId) (bool, error) {
	if viewer == id {
		return true, nil
	}
	_, resp, err := a.client.Accounts.GetAccount(string(id))
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, accountErr(err, "check account visibility")
	}
	return true, nil
}

// HasSecondaryEmail reports whether email is registered as a secondary
// email of viewer (spec §4.7 step 4's ownership branch).
func (a *AccountProvider) HasSecondaryEmail(ctx context.Context, viewer provider.AccountId, email string) (bool, error) {
	info, resp, err := a.client.Accounts.GetAccount(string(viewer))
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, accountErr(err, "get account for secondary email check")
	}
	for _, e := range info.SecondaryEmails {
		if e == email {
			return true, nil
		}
	}
	return false, nil
}

// HasGlobalCapability checks one of viewer's global capabilities
// (spec §4.7 step 4's capability branch, e.g. provider.ModifyAccountCapability).
func (a *AccountProvider) HasGlobalCapability(ctx context.Context, viewer provider.AccountId, capability string) (bool, error) {
	caps, _, err := a.client.Accounts.ListAccountCapabilities(string(viewer), nil)
	if err != nil {
		return false, accountErr(err, "list account capabilities")
	}
	if caps == nil {
		return false, nil
	}
	switch capability {
	case provider.ModifyAccountCapability:
		return caps.ModifyAccount, nil
	default:
		return false, nil
	}
}

// IsProjectOwner reports whether viewer holds Gerrit's "Owner" access
// right on project (spec §4.8's fallbackCodeOwners=PROJECT_OWNERS and
// the bootstrapping rule both key off this).
func (a *AccountProvider) IsProjectOwner(ctx context.Context, viewer provider.AccountId, project string) (bool, error) {
	access, _, err := a.client.Projects.GetAccessRights(project)
	if err != nil {
		return false, accountErr(err, "get project access rights")
	}
	if access == nil {
		return false, nil
	}
	rule, ok := access.Local["refs/*"]
	if !ok {
		return false, nil
	}
	for _, perm := range rule.Permissions {
		for groupID := range perm.Rules {
			if groupID == string(viewer) {
				return true, nil
			}
		}
	}
	return false, nil
}

func accountErr(err error, message string) error {
	return ownererrors.Wrap(ownererrors.Account, err, message)
}

// SubmitRecordPoster posts the C10 submit-rule verdict back to Gerrit as
// a change message (a review with no label votes), the way a real submit-rule
// plugin publishes its result through the REST API rather than an
// in-process return value.
type SubmitRecordPoster struct {
	client *gerrit.Client
	log    *logrus.Entry
}

// NewSubmitRecordPoster builds a poster sharing client with AccountProvider's.
func NewSubmitRecordPoster(client *gerrit.Client, log *logrus.Entry) *SubmitRecordPoster {
	return &SubmitRecordPoster{client: client, log: log}
}

// Post publishes rec as a review comment on changeID's current revision.
// RULE_ERROR and NOT_READY both post an informational message; OK and
// DISABLED post nothing, mirroring Gerrit's own convention of staying
// silent when a submit rule is satisfied or does not apply.
func (s *SubmitRecordPoster) Post(ctx context.Context, changeID, revisionID string, rec submitrule.Record) error {
	var message string
	switch rec.Status {
	case submitrule.RuleError:
		message = fmt.Sprintf("code-owners: %s", rec.ErrorMessage)
	case submitrule.NotReady:
		message = "code-owners: awaiting owner approval"
	default:
		return nil
	}

	_, _, err := s.client.Changes.SetReview(changeID, revisionID, &gerrit.ReviewInput{
		Message: message,
	})
	if err != nil {
		return pkgerrors.Wrap(err, "post submit record")
	}
	return nil
}
