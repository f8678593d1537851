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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/clarketm/codeowners/codeowners"
	"github.com/clarketm/codeowners/ownersconfig"
	"github.com/clarketm/codeowners/provider"
)

const flagCheckAllOwners = "all-owners"

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Print the per-file code-owner status of a change",
	Long: `files evaluates FileStatuses for one change and prints each
changed path alongside its resolved status (APPROVED, PENDING,
INSUFFICIENT_REVIEWERS, or NO_OWNERS_DEFINED).`,
	RunE: runFiles,
}

func init() {
	filesCmd.Flags().String(flagProject, "", "Gerrit project (repository) name")
	filesCmd.Flags().String(flagBranch, "", "destination branch")
	filesCmd.Flags().String(flagRevision, "", "revision (commit or ref) under test")
	filesCmd.Flags().StringSlice(flagApprovers, nil, "accounts that have voted the required approval (repeatable)")
	filesCmd.Flags().StringSlice(flagReviewers, nil, "accounts that have reviewed the change (repeatable)")
	filesCmd.Flags().Bool(flagCheckAllOwners, false, "report every owner of each path instead of stopping at the first satisfied one")
	_ = filesCmd.MarkFlagRequired(flagProject)
	_ = filesCmd.MarkFlagRequired(flagBranch)
	_ = filesCmd.MarkFlagRequired(flagRevision)

	rootCmd.AddCommand(filesCmd)
}

func runFiles(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadCLIConfig(cmd)
	if err != nil {
		return err
	}

	project, _ := cmd.Flags().GetString(flagProject)
	branch, _ := cmd.Flags().GetString(flagBranch)
	revision, _ := cmd.Flags().GetString(flagRevision)
	approvers, _ := cmd.Flags().GetStringSlice(flagApprovers)
	reviewers, _ := cmd.Flags().GetStringSlice(flagReviewers)
	allOwners, _ := cmd.Flags().GetBool(flagCheckAllOwners)
	localPolicy, _ := cmd.Flags().GetString(flagLocalPolicy)

	engine, repos, _, err := newEngine(cfg)
	if err != nil {
		return err
	}

	policy, err := resolvePolicy(ctx, repos, project, localPolicy)
	if err != nil {
		return err
	}

	change := codeowners.Change{
		Project:        project,
		Branch:         branch,
		Revision:       provider.ObjectId(revision),
		Approvers:      sets.NewString(approvers...),
		Reviewers:      sets.NewString(reviewers...),
		CheckAllOwners: allOwners,
	}

	statuses, err := engine.FileStatuses(ctx, change, policy)
	if err != nil {
		return fmt.Errorf("evaluate file statuses: %w", err)
	}

	for _, fs := range statuses {
		printFileStatus(fs)
	}
	return nil
}

func printFileStatus(fs ownersconfig.FileCodeOwnerStatus) {
	if fs.NewPathStatus != nil {
		fmt.Fprintf(os.Stdout, "%s\t%s\n", fs.NewPathStatus.AbsolutePath, fs.NewPathStatus.Status)
		for _, reason := range fs.NewPathStatus.Reasons {
			fmt.Fprintf(os.Stdout, "\t%s\n", reason)
		}
	}
	if fs.OldPathStatus != nil {
		fmt.Fprintf(os.Stdout, "%s\t%s (old path)\n", fs.OldPathStatus.AbsolutePath, fs.OldPathStatus.Status)
	}
}
