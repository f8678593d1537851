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

// Command codeowners-check is a standalone client for the code-owners
// engine (spec §4's CLI companion to the submit-rule plugin): it clones
// a project with go-git, talks to a Gerrit host with go-gerrit, and
// evaluates IsSubmittable/FileStatuses for one change,
// printing a human-readable report instead of voting a label.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clarketm/codeowners/codeowners"
	"github.com/clarketm/codeowners/gerritprovider"
)

const (
	envGerritURL      = "GERRIT_URL"
	envGerritUser     = "GERRIT_USER"
	envGerritPassword = "GERRIT_PASSWORD" //nolint:gosec // environment variable name, not a credential
	envCloneDir       = "CODEOWNERS_CLONE_DIR"

	flagGerritURL    = "gerrit-url"
	flagGerritUser   = "gerrit-user"
	flagCloneDir     = "clone-dir"
	flagVerbose      = "verbose"
	flagLocalPolicy  = "local-policy-file"

	defaultCloneDir = "/tmp/codeowners-check"
)

// ErrMissingGerritURL is returned when no Gerrit host was configured.
var ErrMissingGerritURL = fmt.Errorf("gerrit URL not specified (use --%s or %s)", flagGerritURL, envGerritURL)

var log = logrus.New()

func logrusEntry() *logrus.Entry {
	return logrus.NewEntry(log)
}

var rootCmd = &cobra.Command{
	Use:   "codeowners-check",
	Short: "Evaluate Gerrit code-owners policy for a change",
	Long: `codeowners-check loads a project's OWNERS hierarchy and
code-owners.config, then evaluates the submittability or per-file
ownership status of a change the way the code-owners submit rule would,
without requiring a running Gerrit submit-rule plugin deployment.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		verbose, _ := cmd.Flags().GetBool(flagVerbose)
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String(flagGerritURL, "", "Gerrit host base URL (or "+envGerritURL+")")
	rootCmd.PersistentFlags().String(flagGerritUser, "", "Gerrit HTTP username (or "+envGerritUser+")")
	rootCmd.PersistentFlags().String(flagCloneDir, "", "directory used to cache project clones (or "+envCloneDir+")")
	rootCmd.PersistentFlags().Bool(flagVerbose, false, "enable debug logging")
	rootCmd.PersistentFlags().String(flagLocalPolicy, "", "read code-owners.config from this local file instead of Gerrit (dry-run mode)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cliConfig is the resolved set of connection parameters shared by every
// subcommand, loaded from flags falling back to environment variables.
type cliConfig struct {
	gerritURL string
	user      string
	password  string
	cloneDir  string
}

func loadCLIConfig(cmd *cobra.Command) (cliConfig, error) {
	cfg := cliConfig{}

	cfg.gerritURL, _ = cmd.Flags().GetString(flagGerritURL)
	if cfg.gerritURL == "" {
		cfg.gerritURL = os.Getenv(envGerritURL)
	}
	if cfg.gerritURL == "" {
		return cliConfig{}, ErrMissingGerritURL
	}

	cfg.user, _ = cmd.Flags().GetString(flagGerritUser)
	if cfg.user == "" {
		cfg.user = os.Getenv(envGerritUser)
	}
	cfg.password = os.Getenv(envGerritPassword)

	cfg.cloneDir, _ = cmd.Flags().GetString(flagCloneDir)
	if cfg.cloneDir == "" {
		cfg.cloneDir = os.Getenv(envCloneDir)
	}
	if cfg.cloneDir == "" {
		cfg.cloneDir = defaultCloneDir
	}

	return cfg, nil
}

// newEngine wires a codeowners.Engine from cfg, the way a real deployment
// wires gerritprovider's concrete RepositoryProvider/AccountProvider
// behind the engine facade (spec §6, §9 design notes).
func newEngine(cfg cliConfig) (*codeowners.Engine, *gerritprovider.RepositoryProvider, *gerritprovider.AccountProvider, error) {
	entry := logrus.NewEntry(log)

	auth := gerritprovider.BasicAuth(cfg.user, cfg.password)
	repos := gerritprovider.NewRepositoryProvider(cfg.gerritURL, cfg.cloneDir, auth, entry)

	httpClient := &http.Client{}
	if cfg.user != "" {
		httpClient.Transport = &basicAuthTransport{username: cfg.user, password: cfg.password}
	}
	accounts, err := gerritprovider.NewAccountProvider(cfg.gerritURL, httpClient, entry)
	if err != nil {
		return nil, nil, nil, err
	}

	engine := codeowners.New(codeowners.Services{Repos: repos, Accounts: accounts})
	return engine, repos, accounts, nil
}

// basicAuthTransport adds HTTP basic auth to every request, the simplest
// credential scheme go-gerrit's own documentation recommends for
// password/HTTP-token authentication.
type basicAuthTransport struct {
	username, password string
	base                http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
