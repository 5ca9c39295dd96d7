/*
Copyright The Modrepo Authors.

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

package validate

import "fmt"

// Reason classifies why a repository or release was rejected. The set is
// closed; every reason has a notification template.
type Reason string

const (
	ReasonInvalidName       Reason = "INVALID_NAME"
	ReasonNoDescription     Reason = "NO_DESCRIPTION"
	ReasonNoValidReleases   Reason = "NO_VALID_RELEASES"
	ReasonReservedName      Reason = "RESERVED_NAME"
	ReasonNoZipAsset        Reason = "NO_ZIP_ASSET"
	ReasonModuleIDMismatch  Reason = "MODULE_ID_MISMATCH"
	ReasonMissingVersion    Reason = "MISSING_VERSION"
	ReasonMissingModuleProp Reason = "MISSING_MODULE_PROP"
)

// SkipInfo records a validation failure. It implements error so that
// incremental runs can return it up the command path, where the reason
// and tag drive the notification decision.
type SkipInfo struct {
	Repo         string
	Reason       Reason
	Message      string
	Details      map[string]string
	ShouldNotify bool
	TagName      string
}

func (s *SkipInfo) Error() string {
	msg := fmt.Sprintf("%s rejected: %s", s.Repo, s.Reason)
	if s.TagName != "" {
		msg = fmt.Sprintf("%s (release %s)", msg, s.TagName)
	}
	return msg
}

func newSkip(repo string, reason Reason, details map[string]string) *SkipInfo {
	s := &SkipInfo{
		Repo:         repo,
		Reason:       reason,
		Details:      details,
		ShouldNotify: true,
	}
	if tpl, ok := templates[reason]; ok {
		s.Message = tpl.title
	}
	return s
}

func newReleaseSkip(repo, tag string, reason Reason, details map[string]string) *SkipInfo {
	s := newSkip(repo, reason, details)
	s.TagName = tag
	return s
}

type template struct {
	title string
	body  string
}

// templates is the user-visible vocabulary for every reason. Bodies carry
// {key} placeholders filled from SkipInfo.Details by the notifier; keys
// without a value render as N/A.
var templates = map[Reason]template{
	ReasonInvalidName: {
		title: "Invalid module id",
		body: "The repository name `{repoName}` cannot be used as a module id. " +
			"A module id must start with a letter, be at least two characters long " +
			"and contain only letters, digits, dots, underscores and dashes.",
	},
	ReasonNoDescription: {
		title: "Missing repository description",
		body: "The repository has no description. The description is used as the " +
			"module name in the catalog, so the module was skipped.",
	},
	ReasonNoValidReleases: {
		title: "No valid releases",
		body: "None of the repository's releases could be included in the catalog. " +
			"A release must be published (not a draft), immutable, and carry a zip asset.",
	},
	ReasonReservedName: {
		title: "Reserved repository name",
		body:  "The repository name `{repoName}` is reserved and cannot be listed as a module.",
	},
	ReasonNoZipAsset: {
		title: "No zip asset",
		body:  "The release has no asset with content type `application/zip`, so it cannot be validated.",
	},
	ReasonModuleIDMismatch: {
		title: "Module id mismatch",
		body: "The `id` in module.prop does not match the repository name. " +
			"Expected `{repoName}` but module.prop declares `{moduleId}`.",
	},
	ReasonMissingVersion: {
		title: "Missing version metadata",
		body: "module.prop must declare both `version` and `versionCode`. " +
			"Found version=`{version}` and versionCode=`{versionCode}`.",
	},
	ReasonMissingModuleProp: {
		title: "Missing module.prop",
		body: "module.prop could not be read from the release's zip asset. " +
			"Make sure the file exists at the archive root and is smaller than 64 KiB.",
	},
}

// Template returns the notification title and body for a reason.
func Template(r Reason) (title, body string, ok bool) {
	tpl, ok := templates[r]
	return tpl.title, tpl.body, ok
}
