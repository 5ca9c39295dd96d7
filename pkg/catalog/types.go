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

// Package catalog defines the module records written to modules.json and
// assembles them from validated repository data.
package catalog

import "time"

// Epoch is the timestamp recorded when a release kind has never shipped.
var Epoch = time.Unix(0, 0).UTC()

// Module is one catalog entry. Field order fixes the JSON key order, which
// keeps rewrites of an unchanged catalog byte-identical.
type Module struct {
	ID                        string    `json:"moduleId"`
	Name                      string    `json:"moduleName"`
	URL                       string    `json:"url"`
	HomepageURL               *string   `json:"homepageUrl"`
	Authors                   []Author  `json:"authors"`
	LatestRelease             *string   `json:"latestRelease"`
	LatestReleaseTime         time.Time `json:"latestReleaseTime"`
	LatestBetaReleaseTime     time.Time `json:"latestBetaReleaseTime"`
	LatestSnapshotReleaseTime time.Time `json:"latestSnapshotReleaseTime"`
	Releases                  []Release `json:"releases"`
	Readme                    *string   `json:"readme"`
	ReadmeHTML                *string   `json:"readmeHTML"`
	Summary                   *string   `json:"summary"`
	SourceURL                 *string   `json:"sourceUrl"`
	CreatedAt                 time.Time `json:"createdAt"`
	UpdatedAt                 time.Time `json:"updatedAt"`
	StargazerCount            int       `json:"stargazerCount"`
	Metamodule                bool      `json:"metamodule"`
}

// LastUpdated is the sort key of the catalog: the most recent of the three
// per-kind release times. Epoch defaults keep it total.
func (m *Module) LastUpdated() time.Time {
	t := m.LatestReleaseTime
	if m.LatestBetaReleaseTime.After(t) {
		t = m.LatestBetaReleaseTime
	}
	if m.LatestSnapshotReleaseTime.After(t) {
		t = m.LatestSnapshotReleaseTime
	}
	return t
}

// Author is a rendered module author.
type Author struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

// Release is an accepted release carrying the version metadata probed from
// its module.prop.
type Release struct {
	TagName         string    `json:"tagName"`
	Name            string    `json:"name"`
	URL             string    `json:"url"`
	DescriptionHTML *string   `json:"descriptionHTML"`
	CreatedAt       time.Time `json:"createdAt"`
	PublishedAt     time.Time `json:"publishedAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	IsPrerelease    bool      `json:"isPrerelease"`
	Assets          []Asset   `json:"assets"`
	Version         string    `json:"version"`
	VersionCode     string    `json:"versionCode"`
}

// Asset is a release artifact, carried verbatim from the data source.
type Asset struct {
	Name          string `json:"name"`
	ContentType   string `json:"contentType"`
	DownloadURL   string `json:"downloadUrl"`
	DownloadCount int    `json:"downloadCount"`
	Size          int    `json:"size"`
}
