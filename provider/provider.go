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

// Package provider declares the two external collaborators the engine
// consumes but never implements itself (spec §6): the Repository
// Provider (Git object storage and diffing) and the Account Provider
// (identity store). Concrete implementations live outside this module's
// core in package gerritprovider.
package provider

import (
	"context"

	"github.com/clarketm/codeowners/ownersconfig"
)

// Repo is an opaque, reference-counted handle to an open repository.
type Repo interface {
	// Close releases the handle. Safe to call more than once.
	Close() error
}

// ObjectId is a Git object id (the revision a config or diff was read at).
type ObjectId string

// AccountId identifies one account in the host's identity store.
type AccountId string

// Account is the minimal account shape the engine needs to reason about
// visibility and secondary emails.
type Account struct {
	ID              AccountId
	PrimaryEmail    string
	SecondaryEmails []string
	Active          bool
}

// RepositoryProvider is the Git-object-storage collaborator (spec §6).
// Implementations must be safe for concurrent use across requests.
type RepositoryProvider interface {
	OpenRepo(ctx context.Context, project string) (Repo, error)
	ResolveRef(ctx context.Context, repo Repo, refName string) (ObjectId, bool, error)
	ReadBlob(ctx context.Context, repo Repo, revision ObjectId, path string) ([]byte, bool, error)
	WalkTree(ctx context.Context, repo Repo, revision ObjectId, glob string) (iterator func() (path string, blob ObjectId, ok bool), err error)
	Diff(ctx context.Context, repo Repo, revision, base ObjectId, detectRenames bool) ([]ownersconfig.ChangedFile, error)
	AutoMerge(ctx context.Context, repo Repo, mergeCommit ObjectId) (ObjectId, error)
}

// AccountProvider is the identity-store collaborator (spec §6).
type AccountProvider interface {
	LookupByEmail(ctx context.Context, email string) ([]AccountId, error)
	Get(ctx context.Context, id AccountId) (*Account, bool, error)
	CanSee(ctx context.Context, viewer, id AccountId) (bool, error)
	HasSecondaryEmail(ctx context.Context, viewer AccountId, email string) (bool, error)
	HasGlobalCapability(ctx context.Context, viewer AccountId, capability string) (bool, error)
	IsProjectOwner(ctx context.Context, viewer AccountId, project string) (bool, error)
}

// ModifyAccountCapability is the well-known capability name checked by
// the identity resolver's secondary-email visibility rule (spec §4.7).
const ModifyAccountCapability = "modifyAccount"
