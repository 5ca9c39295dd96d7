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

// Package validate decides whether a repository becomes a catalog module.
//
// Validation runs in two stages. Repository-level predicates (reserved
// name, identifier shape, description) reject the whole repository.
// Release-level validation probes each eligible release's zip asset for a
// module.prop and accepts or skips the release. A repository with at least
// one accepted release becomes a module; otherwise the collected skip
// records decide whether the author is notified.
package validate

import (
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kernelsu-modules-repo/catalog/internal/parallel"
	"github.com/kernelsu-modules-repo/catalog/pkg/catalog"
	"github.com/kernelsu-modules-repo/catalog/pkg/github"
	"github.com/kernelsu-modules-repo/catalog/pkg/modprop"
)

const defaultReleaseConcurrency = 100

// reservedNames can never become module ids. They name organization
// plumbing repositories (issue templates, the submission tracker, the
// example module) rather than shippable modules.
var reservedNames = map[string]bool{
	".github":              true,
	"submission":           true,
	"developers":           true,
	"modules":              true,
	"org.kernelsu.example": true,
	"module_release":       true,
}

// moduleIDPattern is the shape of a valid module id: a leading letter
// followed by at least one more letter, digit, dot, underscore or dash.
var moduleIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9._-]+$`)

// nopLogger swallows log output when no logger is injected.
var nopLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// ModuleValidator validates one repository at a time. The zero value is
// not usable; Prober must be set.
type ModuleValidator struct {
	// Prober extracts module.prop from a release's zip asset.
	Prober modprop.Prober
	// ReleaseConcurrency caps simultaneous probes within one repository.
	// Non-positive values fall back to the default of 100.
	ReleaseConcurrency int
	// RequireTagPattern additionally demands release tags match ^\d+-.+$
	// before a release is considered.
	RequireTagPattern bool
	// Log receives per-release skip diagnostics. Optional.
	Log *logrus.Logger
}

func (v *ModuleValidator) log() *logrus.Logger {
	if v.Log != nil {
		return v.Log
	}
	return nopLogger
}

type releaseResult struct {
	accepted *catalog.Release
	skip     *SkipInfo
}

// Validate applies the repository-level predicates and then validates the
// repository's releases under the inner concurrency cap. On success it
// returns the accepted releases in the data source's order (newest first).
// On rejection it returns the SkipInfo that decides notification. The
// error return is reserved for fatal conditions such as a cancelled
// context; validation failures are never errors here.
func (v *ModuleValidator) Validate(ctx context.Context, repo *github.RawRepository) ([]catalog.Release, *SkipInfo, error) {
	if skip := v.checkRepository(repo); skip != nil {
		return nil, skip, nil
	}

	releases := releaseList(repo)
	eligible := make([]*github.RawRelease, 0, len(releases))
	for i := range releases {
		if Eligible(&releases[i], v.RequireTagPattern) {
			eligible = append(eligible, &releases[i])
		}
	}
	if len(eligible) == 0 {
		return nil, newSkip(repo.Name, ReasonNoValidReleases, nil), nil
	}

	limit := v.ReleaseConcurrency
	if limit < 1 {
		limit = defaultReleaseConcurrency
	}
	results, err := parallel.Map(ctx, limit, eligible, func(ctx context.Context, _ int, rel *github.RawRelease) (releaseResult, error) {
		if err := ctx.Err(); err != nil {
			return releaseResult{}, err
		}
		accepted, skip := v.validateRelease(ctx, repo, rel)
		return releaseResult{accepted: accepted, skip: skip}, nil
	})
	if err != nil {
		return nil, nil, err
	}

	accepted := make([]catalog.Release, 0, len(results))
	var skips []*SkipInfo
	for _, r := range results {
		if r.accepted != nil {
			accepted = append(accepted, *r.accepted)
			continue
		}
		skips = append(skips, r.skip)
		v.log().WithFields(logrus.Fields{
			"repo":   repo.Name,
			"tag":    r.skip.TagName,
			"reason": r.skip.Reason,
		}).Debug("release skipped")
	}
	if len(accepted) > 0 {
		return accepted, nil, nil
	}

	// Every eligible release failed. Notify only when the repository's
	// current latest release is among the failures; a broken history
	// behind a shipped replacement is not the author's problem anymore.
	if latest := repo.LatestReleaseTag(); latest != "" {
		for _, skip := range skips {
			if skip.TagName == latest {
				return nil, skip, nil
			}
		}
	}
	skip := newSkip(repo.Name, ReasonNoValidReleases, nil)
	skip.ShouldNotify = false
	return nil, skip, nil
}

// checkRepository applies the repository-level predicates in order:
// reserved name, identifier shape, description presence.
func (v *ModuleValidator) checkRepository(repo *github.RawRepository) *SkipInfo {
	details := map[string]string{"repoName": repo.Name}
	if reservedNames[repo.Name] {
		return newSkip(repo.Name, ReasonReservedName, details)
	}
	if !moduleIDPattern.MatchString(repo.Name) {
		return newSkip(repo.Name, ReasonInvalidName, details)
	}
	if strings.TrimSpace(repo.DescriptionText()) == "" {
		return newSkip(repo.Name, ReasonNoDescription, nil)
	}
	return nil
}

// releaseList returns the repository's releases, appending the declared
// latest release when the paged list omits it. The first listing page
// sometimes lags behind a release published moments ago.
func releaseList(repo *github.RawRepository) []github.RawRelease {
	releases := repo.Releases.Nodes
	latest := repo.LatestRelease
	if latest == nil {
		return releases
	}
	for i := range releases {
		if releases[i].TagName == latest.TagName {
			return releases
		}
	}
	out := make([]github.RawRelease, 0, len(releases)+1)
	out = append(out, releases...)
	return append(out, *latest)
}
