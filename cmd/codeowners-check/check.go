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
	"github.com/clarketm/codeowners/gerritprovider"
	"github.com/clarketm/codeowners/provider"
	"github.com/clarketm/codeowners/submitrule"
)

const (
	flagProject   = "project"
	flagBranch    = "branch"
	flagRevision  = "revision"
	flagApprovers = "approver"
	flagReviewers = "reviewer"
	flagPostTo    = "post-to"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether a change is submittable under code-owners policy",
	Long: `check evaluates IsSubmittable for one change the way the
code-owners submit rule would, and prints OK/NOT_READY/RULE_ERROR
along with the rule's message.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String(flagProject, "", "Gerrit project (repository) name")
	checkCmd.Flags().String(flagBranch, "", "destination branch")
	checkCmd.Flags().String(flagRevision, "", "revision (commit or ref) under test")
	checkCmd.Flags().StringSlice(flagApprovers, nil, "accounts that have voted the required approval (repeatable)")
	checkCmd.Flags().StringSlice(flagReviewers, nil, "accounts that have reviewed the change (repeatable)")
	checkCmd.Flags().String(flagPostTo, "", "post the verdict as a review comment to this change ID (e.g. myProject~master~I1234...)")
	_ = checkCmd.MarkFlagRequired(flagProject)
	_ = checkCmd.MarkFlagRequired(flagBranch)
	_ = checkCmd.MarkFlagRequired(flagRevision)

	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
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
	postTo, _ := cmd.Flags().GetString(flagPostTo)
	localPolicy, _ := cmd.Flags().GetString(flagLocalPolicy)

	engine, repos, accounts, err := newEngine(cfg)
	if err != nil {
		return err
	}

	policy, err := resolvePolicy(ctx, repos, project, localPolicy)
	if err != nil {
		return err
	}

	change := codeowners.Change{
		Project:   project,
		Branch:    branch,
		Revision:  provider.ObjectId(revision),
		Approvers: sets.NewString(approvers...),
		Reviewers: sets.NewString(reviewers...),
	}

	record, err := engine.SubmitRecord(ctx, change, policy)
	if err != nil {
		return fmt.Errorf("evaluate submittability: %w", err)
	}

	if postTo != "" {
		poster := gerritprovider.NewSubmitRecordPoster(accounts.Client(), logrusEntry())
		if err := poster.Post(ctx, postTo, "current", record); err != nil {
			return fmt.Errorf("post submit record: %w", err)
		}
	}

	if record.Status == submitrule.OK || record.Status == submitrule.Disabled {
		fmt.Fprintf(os.Stdout, "%s\n", record.Status)
		return nil
	}

	fmt.Fprintf(os.Stdout, "%s: %s\n", record.Status, record.ErrorMessage)
	os.Exit(1)
	return nil
}
