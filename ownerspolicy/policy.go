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

// Package ownerspolicy is the Policy Configuration Snapshot (C11): a
// read-only, per-(project, branch) view built once per request from the
// INI-like "code-owners.config" file stored on a project's
// refs/meta/config branch, with parent-project inheritance (spec §4.8).
package ownerspolicy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-git/gcfg"
	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/yaml"

	"github.com/clarketm/codeowners/approvalstatus"
	"github.com/clarketm/codeowners/changedfiles"
	"github.com/clarketm/codeowners/ownererrors"
	"github.com/clarketm/codeowners/pathmatch"
)

// ImplicitApprovalMode is the three-way "implicitApprovals" setting.
type ImplicitApprovalMode string

const (
	ImplicitApprovalsDisabled ImplicitApprovalMode = "false"
	ImplicitApprovalsEnabled  ImplicitApprovalMode = "true"
	ImplicitApprovalsForced   ImplicitApprovalMode = "forced"
)

// rawSection mirrors the "[codeOwners]" section of code-owners.config.
// Every field is a string (or slice of strings for multi-value keys) so
// "unset" is always representable as the Go zero value, independent of
// what a legal configured value might be.
type rawSection struct {
	Backend                          string
	PathExpressions                  string
	RequiredApproval                 string
	OverrideApproval                 []string
	MergeCommitStrategy              string
	ImplicitApprovals                string
	StickyApprovals                  string
	FallbackCodeOwners               string
	AllowedEmailDomains              []string
	GlobalCodeOwners                 []string
	ExemptedUsers                    []string
	Disabled                         string
	DisabledBranch                   []string
	EnableValidationOnCommitReceived string
	EnableValidationOnSubmit         string
}

type rawConfig struct {
	CodeOwners rawSection
}

// Config is the resolved, typed policy snapshot for one (project, branch).
type Config struct {
	Backend                          string
	PathExpressions                  pathmatch.Dialect
	RequiredApprovalLabel            string
	RequiredApprovalValue            int
	OverrideApprovals                sets.String
	MergeCommitStrategy              changedfiles.MergeCommitStrategy
	ImplicitApprovals                ImplicitApprovalMode
	StickyApprovals                  bool
	FallbackCodeOwners               approvalstatus.FallbackMode
	AllowedEmailDomains              sets.String
	GlobalCodeOwners                 sets.String
	ExemptedUsers                    sets.String
	Disabled                         bool
	DisabledBranch                   sets.String
	EnableValidationOnCommitReceived bool
	EnableValidationOnSubmit         bool
}

func defaultRaw() rawSection {
	return rawSection{
		Backend:              "find-owners",
		PathExpressions:      "glob",
		MergeCommitStrategy:  "ALL_CHANGED_FILES",
		ImplicitApprovals:    "false",
		FallbackCodeOwners:   "NONE",
		EnableValidationOnCommitReceived: "true",
		EnableValidationOnSubmit:         "true",
	}
}

// Parse reads one project's code-owners.config text.
func Parse(text string) (rawSection, error) {
	var cfg rawConfig
	if err := gcfg.ReadStringInto(&cfg, text); err != nil {
		return rawSection{}, ownererrors.Wrap(ownererrors.ConfigInvalid, err, "parse code-owners.config")
	}
	return cfg.CodeOwners, nil
}

// Resolve merges a parent-to-child chain of raw per-project sections
// (chain[0] is the most distant ancestor, chain[len-1] the project the
// snapshot is being built for) and produces the typed Config (spec
// §4.8): single-value keys in a child override the parent; multi-value
// keys extend the parent.
func Resolve(chain []rawSection) (*Config, error) {
	merged := defaultRaw()
	for _, next := range chain {
		merged = mergeOne(merged, next)
	}
	return toConfig(merged)
}

// ResolveTexts parses each of texts (parent-to-child order) and resolves
// the chain in one step, for callers outside this package that only
// have the raw file contents and no reason to touch rawSection directly
// (e.g. a CLI reading code-owners.config straight off a Git blob).
func ResolveTexts(texts []string) (*Config, error) {
	chain := make([]rawSection, 0, len(texts))
	for _, text := range texts {
		raw, err := Parse(text)
		if err != nil {
			return nil, err
		}
		chain = append(chain, raw)
	}
	return Resolve(chain)
}

func mergeOne(parent, child rawSection) rawSection {
	out := parent
	if child.Backend != "" {
		out.Backend = child.Backend
	}
	if child.PathExpressions != "" {
		out.PathExpressions = child.PathExpressions
	}
	if child.RequiredApproval != "" {
		out.RequiredApproval = child.RequiredApproval
	}
	if child.MergeCommitStrategy != "" {
		out.MergeCommitStrategy = child.MergeCommitStrategy
	}
	if child.ImplicitApprovals != "" {
		out.ImplicitApprovals = child.ImplicitApprovals
	}
	if child.StickyApprovals != "" {
		out.StickyApprovals = child.StickyApprovals
	}
	if child.FallbackCodeOwners != "" {
		out.FallbackCodeOwners = child.FallbackCodeOwners
	}
	if child.Disabled != "" {
		out.Disabled = child.Disabled
	}
	if child.EnableValidationOnCommitReceived != "" {
		out.EnableValidationOnCommitReceived = child.EnableValidationOnCommitReceived
	}
	if child.EnableValidationOnSubmit != "" {
		out.EnableValidationOnSubmit = child.EnableValidationOnSubmit
	}

	out.OverrideApproval = append(append([]string{}, parent.OverrideApproval...), child.OverrideApproval...)
	out.AllowedEmailDomains = append(append([]string{}, parent.AllowedEmailDomains...), child.AllowedEmailDomains...)
	out.GlobalCodeOwners = append(append([]string{}, parent.GlobalCodeOwners...), child.GlobalCodeOwners...)
	out.ExemptedUsers = append(append([]string{}, parent.ExemptedUsers...), child.ExemptedUsers...)
	out.DisabledBranch = append(append([]string{}, parent.DisabledBranch...), child.DisabledBranch...)

	return out
}

func toConfig(r rawSection) (*Config, error) {
	cfg := &Config{
		Backend:                           r.Backend,
		OverrideApprovals:                 sets.NewString(r.OverrideApproval...),
		MergeCommitStrategy:               changedfiles.MergeCommitStrategy(r.MergeCommitStrategy),
		ImplicitApprovals:                 ImplicitApprovalMode(r.ImplicitApprovals),
		FallbackCodeOwners:                approvalstatus.FallbackMode(r.FallbackCodeOwners),
		AllowedEmailDomains:               sets.NewString(r.AllowedEmailDomains...),
		GlobalCodeOwners:                  sets.NewString(r.GlobalCodeOwners...),
		ExemptedUsers:                     sets.NewString(r.ExemptedUsers...),
		DisabledBranch:                    sets.NewString(r.DisabledBranch...),
		EnableValidationOnCommitReceived: r.EnableValidationOnCommitReceived != "false",
		EnableValidationOnSubmit:         r.EnableValidationOnSubmit != "false",
	}

	switch r.PathExpressions {
	case "", "glob":
		cfg.PathExpressions = pathmatch.Glob
	case "simple":
		cfg.PathExpressions = pathmatch.SimpleExtension
	case "rule":
		cfg.PathExpressions = pathmatch.RuleStyle
	default:
		return nil, ownererrors.Newf(ownererrors.PolicyInvalid, "unknown pathExpressions dialect %q", r.PathExpressions)
	}

	if r.RequiredApproval != "" {
		label, value, err := ParseLabelSpec(r.RequiredApproval)
		if err != nil {
			return nil, err
		}
		cfg.RequiredApprovalLabel = label
		cfg.RequiredApprovalValue = value
	}

	cfg.StickyApprovals = r.StickyApprovals == "true"
	cfg.Disabled = r.Disabled == "true"

	switch cfg.MergeCommitStrategy {
	case "", changedfiles.AllChangedFiles:
		cfg.MergeCommitStrategy = changedfiles.AllChangedFiles
	case changedfiles.FilesWithConflictResolution:
	default:
		return nil, ownererrors.Newf(ownererrors.PolicyInvalid, "unknown mergeCommitStrategy %q", r.MergeCommitStrategy)
	}

	switch cfg.ImplicitApprovals {
	case "", ImplicitApprovalsDisabled, ImplicitApprovalsEnabled, ImplicitApprovalsForced:
		if cfg.ImplicitApprovals == "" {
			cfg.ImplicitApprovals = ImplicitApprovalsDisabled
		}
	default:
		return nil, ownererrors.Newf(ownererrors.PolicyInvalid, "unknown implicitApprovals value %q", r.ImplicitApprovals)
	}

	switch cfg.FallbackCodeOwners {
	case "", approvalstatus.FallbackNone, approvalstatus.FallbackAllUsers, approvalstatus.FallbackProjectOwners:
		if cfg.FallbackCodeOwners == "" {
			cfg.FallbackCodeOwners = approvalstatus.FallbackNone
		}
	default:
		return nil, ownererrors.Newf(ownererrors.PolicyInvalid, "unknown fallbackCodeOwners value %q", r.FallbackCodeOwners)
	}

	return cfg, nil
}

// snapshot is the plain-field mirror of Config used for marshaling: sets.String
// has no stable field-visible representation, so AsYAML flattens every set to
// a sorted []string before handing the result to sigs.k8s.io/yaml.
type snapshot struct {
	Backend                          string   `json:"backend"`
	PathExpressions                  string   `json:"pathExpressions"`
	RequiredApprovalLabel            string   `json:"requiredApprovalLabel,omitempty"`
	RequiredApprovalValue            int      `json:"requiredApprovalValue,omitempty"`
	OverrideApprovals                []string `json:"overrideApprovals,omitempty"`
	MergeCommitStrategy              string   `json:"mergeCommitStrategy"`
	ImplicitApprovals                string   `json:"implicitApprovals"`
	StickyApprovals                  bool     `json:"stickyApprovals"`
	FallbackCodeOwners               string   `json:"fallbackCodeOwners"`
	AllowedEmailDomains              []string `json:"allowedEmailDomains,omitempty"`
	GlobalCodeOwners                 []string `json:"globalCodeOwners,omitempty"`
	ExemptedUsers                    []string `json:"exemptedUsers,omitempty"`
	Disabled                         bool     `json:"disabled"`
	DisabledBranch                   []string `json:"disabledBranch,omitempty"`
	EnableValidationOnCommitReceived bool     `json:"enableValidationOnCommitReceived"`
	EnableValidationOnSubmit         bool     `json:"enableValidationOnSubmit"`
}

// AsYAML renders the resolved snapshot as YAML, for operators diffing a
// project's effective policy across the parent-chain merge (spec §4.8) —
// e.g. `codeowners-check policy` printing what a change will actually be
// evaluated against, independent of which section of the chain set what.
func (c *Config) AsYAML() ([]byte, error) {
	s := snapshot{
		Backend:                           c.Backend,
		PathExpressions:                   string(c.PathExpressions),
		RequiredApprovalLabel:             c.RequiredApprovalLabel,
		RequiredApprovalValue:             c.RequiredApprovalValue,
		OverrideApprovals:                 c.OverrideApprovals.List(),
		MergeCommitStrategy:               string(c.MergeCommitStrategy),
		ImplicitApprovals:                 string(c.ImplicitApprovals),
		StickyApprovals:                   c.StickyApprovals,
		FallbackCodeOwners:                string(c.FallbackCodeOwners),
		AllowedEmailDomains:               c.AllowedEmailDomains.List(),
		GlobalCodeOwners:                  c.GlobalCodeOwners.List(),
		ExemptedUsers:                     c.ExemptedUsers.List(),
		Disabled:                          c.Disabled,
		DisabledBranch:                    c.DisabledBranch.List(),
		EnableValidationOnCommitReceived: c.EnableValidationOnCommitReceived,
		EnableValidationOnSubmit:         c.EnableValidationOnSubmit,
	}
	return yaml.Marshal(s)
}

// ParseLabelSpec parses the "<Label>+<Value>" grammar used by
// requiredApproval and similar settings (spec §9 design notes).
func ParseLabelSpec(spec string) (label string, value int, err error) {
	i := strings.LastIndexByte(spec, '+')
	if i < 0 {
		return "", 0, ownererrors.Newf(ownererrors.PolicyInvalid, "label spec %q must be of the form <Label>+<Value>", spec)
	}
	label = spec[:i]
	if label == "" {
		return "", 0, ownererrors.Newf(ownererrors.PolicyInvalid, "label spec %q is missing a label name", spec)
	}
	value, err = strconv.Atoi(spec[i+1:])
	if err != nil {
		return "", 0, ownererrors.Wrap(ownererrors.PolicyInvalid, err, fmt.Sprintf("label spec %q has a non-numeric value", spec))
	}
	return label, value, nil
}
