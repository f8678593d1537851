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
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Print a project's resolved code-owners policy as YAML",
	Long: `policy resolves a project's code-owners.config the same way
check and files do, then prints the typed Config snapshot as YAML
instead of evaluating a change against it — useful for diffing what a
project's effective policy actually is after parent-chain merging.`,
	RunE: runPolicy,
}

func init() {
	policyCmd.Flags().String(flagProject, "", "Gerrit project (repository) name")
	_ = policyCmd.MarkFlagRequired(flagProject)

	rootCmd.AddCommand(policyCmd)
}

func runPolicy(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadCLIConfig(cmd)
	if err != nil {
		return err
	}

	project, _ := cmd.Flags().GetString(flagProject)
	localPolicy, _ := cmd.Flags().GetString(flagLocalPolicy)

	_, repos, _, err := newEngine(cfg)
	if err != nil {
		return err
	}

	policy, err := resolvePolicy(ctx, repos, project, localPolicy)
	if err != nil {
		return err
	}

	out, err := policy.AsYAML()
	if err != nil {
		return fmt.Errorf("render policy as YAML: %w", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}
