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

import (
	"context"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/kernelsu-modules-repo/catalog/pkg/catalog"
	"github.com/kernelsu-modules-repo/catalog/pkg/github"
	"github.com/kernelsu-modules-repo/catalog/pkg/markdown"
)

const zipContentType = "application/zip"

// tagPattern is the optional numeric-prefix tag rule, applied only when
// the validator runs with RequireTagPattern.
var tagPattern = regexp.MustCompile(`^\d+-.+$`)

// Eligible reports whether a release qualifies for deep validation. Draft
// and mutable releases never do; they are dropped without a skip record.
func Eligible(rel *github.RawRelease, requireTagPattern bool) bool {
	if rel.IsDraft || !rel.IsImmutable {
		return false
	}
	if requireTagPattern && !tagPattern.MatchString(rel.TagName) {
		return false
	}
	return firstZipAsset(rel) != nil
}

func firstZipAsset(rel *github.RawRelease) *github.RawAsset {
	assets := rel.Assets()
	for i := range assets {
		if assets[i].ContentType == zipContentType {
			return &assets[i]
		}
	}
	return nil
}

// validateRelease applies the ordered deep checks to one release and
// returns either the accepted record or the skip that ended it.
func (v *ModuleValidator) validateRelease(ctx context.Context, repo *github.RawRepository, rel *github.RawRelease) (*catalog.Release, *SkipInfo) {
	asset := firstZipAsset(rel)
	if asset == nil {
		return nil, newReleaseSkip(repo.Name, rel.TagName, ReasonNoZipAsset, nil)
	}

	props, err := v.Prober.Probe(ctx, asset.DownloadURL)
	if err != nil {
		v.log().WithFields(logrus.Fields{
			"repo": repo.Name,
			"tag":  rel.TagName,
		}).WithError(err).Debug("module.prop probe failed")
	}
	if len(props) == 0 {
		return nil, newReleaseSkip(repo.Name, rel.TagName, ReasonMissingModuleProp, nil)
	}

	if props["id"] != repo.Name {
		return nil, newReleaseSkip(repo.Name, rel.TagName, ReasonModuleIDMismatch, map[string]string{
			"repoName": repo.Name,
			"moduleId": props["id"],
		})
	}

	version, versionCode := props["version"], props["versionCode"]
	if version == "" || versionCode == "" {
		return nil, newReleaseSkip(repo.Name, rel.TagName, ReasonMissingVersion, map[string]string{
			"version":     version,
			"versionCode": versionCode,
		})
	}

	return acceptedRelease(rel, version, versionCode), nil
}

func acceptedRelease(rel *github.RawRelease, version, versionCode string) *catalog.Release {
	name := rel.DisplayName()
	if name == "" {
		name = rel.TagName
	}

	var descHTML *string
	if rel.DescriptionHTML != nil {
		var source string
		if rel.Description != nil {
			source = *rel.Description
		}
		html := markdown.RewritePrivateImages(source, *rel.DescriptionHTML)
		descHTML = &html
	}

	published := catalog.Epoch
	if rel.PublishedAt != nil {
		published = *rel.PublishedAt
	}

	assets := make([]catalog.Asset, 0, len(rel.Assets()))
	for _, a := range rel.Assets() {
		assets = append(assets, catalog.Asset{
			Name:          a.Name,
			ContentType:   a.ContentType,
			DownloadURL:   a.DownloadURL,
			DownloadCount: a.DownloadCount,
			Size:          a.Size,
		})
	}

	return &catalog.Release{
		TagName:         rel.TagName,
		Name:            name,
		URL:             rel.URL,
		DescriptionHTML: descHTML,
		CreatedAt:       rel.CreatedAt,
		PublishedAt:     published,
		UpdatedAt:       rel.UpdatedAt,
		IsPrerelease:    rel.IsPrerelease,
		Assets:          assets,
		Version:         version,
		VersionCode:     versionCode,
	}
}
