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

	"github.com/clarketm/codeowners/codeowners"
	"github.com/clarketm/codeowners/ownerspolicy"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a local OWNERS file against the configured backend",
	Long: `validate parses a single OWNERS file the way
Engine.ValidateConfigFile does, without requiring any Gerrit
connection, and prints one line per problem found.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().String("backend", "find-owners", "code-owners backend name (find-owners)")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	backendName, _ := cmd.Flags().GetString("backend")

	blob, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	policy, err := ownerspolicy.ResolveTexts([]string{fmt.Sprintf("[codeOwners]\nbackend = %s\n", backendName)})
	if err != nil {
		return err
	}

	// ValidateConfigFile only consults the configured backend, so the
	// engine needs no live Repository/Account provider for this command.
	engine := codeowners.New(codeowners.Services{})
	msgs := engine.ValidateConfigFile(policy, blob)
	if len(msgs) == 0 {
		fmt.Fprintf(os.Stdout, "%s: OK\n", args[0])
		return nil
	}

	for _, msg := range msgs {
		fmt.Fprintf(os.Stdout, "%s: %s\n", args[0], msg)
	}
	os.Exit(1)
	return nil
}
