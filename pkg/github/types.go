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

package github

import (
	"encoding/json"
	"time"
)

// RawRepository is one repository node as returned by the GraphQL listing.
// Optional fields stay pointers so that absent data degrades to null in the
// pagination snapshot instead of fabricating values.
type RawRepository struct {
	Name           string     `json:"name"`
	Description    *string    `json:"description"`
	URL            string     `json:"url"`
	HomepageURL    *string    `json:"homepageUrl"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	StargazerCount int        `json:"stargazerCount"`
	Collaborators  struct {
		Nodes []Collaborator `json:"nodes"`
	} `graphql:"collaborators(affiliation: DIRECT, first: 100)" json:"collaborators"`
	Readme        *RawBlob    `graphql:"readme: object(expression: \"HEAD:README.md\")" json:"readme"`
	Manifest      *RawBlob    `graphql:"manifest: object(expression: \"HEAD:repo.json\")" json:"manifest"`
	LatestRelease *RawRelease `json:"latestRelease"`
	Releases      struct {
		Nodes []RawRelease `json:"nodes"`
	} `graphql:"releases(first: 100, orderBy: {field: CREATED_AT, direction: DESC})" json:"releases"`
}

// DescriptionText returns the description or "" when absent.
func (r *RawRepository) DescriptionText() string {
	if r.Description == nil {
		return ""
	}
	return *r.Description
}

// ReadmeText returns the README.md blob text or "" when the file is absent.
func (r *RawRepository) ReadmeText() string {
	return r.Readme.text()
}

// ManifestText returns the repo.json blob text or "" when the file is absent.
func (r *RawRepository) ManifestText() string {
	return r.Manifest.text()
}

// LatestReleaseTag returns the tag the platform marks latest, or "".
// The full release node rides along because the paged release list
// sometimes omits the current latest.
func (r *RawRepository) LatestReleaseTag() string {
	if r.LatestRelease == nil {
		return ""
	}
	return r.LatestRelease.TagName
}

// Collaborator is a repository collaborator with direct access.
type Collaborator struct {
	Login string  `json:"login"`
	Name  *string `json:"name"`
}

// RawRelease is one release node, newest first in the repository's list.
type RawRelease struct {
	TagName         string     `json:"tagName"`
	Name            *string    `json:"name"`
	URL             string     `json:"url"`
	Description     *string    `json:"description"`
	DescriptionHTML *string    `graphql:"descriptionHTML" json:"descriptionHTML"`
	CreatedAt       time.Time  `json:"createdAt"`
	PublishedAt     *time.Time `json:"publishedAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	IsDraft         bool       `json:"isDraft"`
	IsPrerelease    bool       `json:"isPrerelease"`
	IsImmutable     bool       `json:"isImmutable"`
	IsLatest        bool       `json:"isLatest"`
	ReleaseAssets   struct {
		Nodes []RawAsset `json:"nodes"`
	} `graphql:"releaseAssets(first: 50)" json:"releaseAssets"`
}

// DisplayName returns the release name or "" when absent.
func (r *RawRelease) DisplayName() string {
	if r.Name == nil {
		return ""
	}
	return *r.Name
}

// Assets returns the release's asset nodes.
func (r *RawRelease) Assets() []RawAsset {
	return r.ReleaseAssets.Nodes
}

// RawAsset is one binary artifact attached to a release.
type RawAsset struct {
	Name          string `json:"name"`
	ContentType   string `json:"contentType"`
	DownloadURL   string `json:"downloadUrl"`
	DownloadCount int    `json:"downloadCount"`
	Size          int    `json:"size"`
}

// RawBlob is a repository file fetched by path expression. The inline
// fragment narrows the git object to a blob so its text is selectable.
type RawBlob struct {
	Fragment struct {
		Text *string `json:"text"`
	} `graphql:"... on Blob" json:"-"`
}

func (b *RawBlob) text() string {
	if b == nil || b.Fragment.Text == nil {
		return ""
	}
	return *b.Fragment.Text
}

// MarshalJSON flattens the fragment nesting so the snapshot file carries
// the same {"text": ...} shape the API responds with.
func (b RawBlob) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Text *string `json:"text"`
	}{b.Fragment.Text})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (b *RawBlob) UnmarshalJSON(data []byte) error {
	var v struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	b.Fragment.Text = v.Text
	return nil
}

// OrganizationPage is one page of the organization listing, preserved
// verbatim for the pagination snapshot.
type OrganizationPage struct {
	Repositories []RawRepository `json:"repositories"`
	EndCursor    string          `json:"endCursor,omitempty"`
	HasNextPage  bool            `json:"hasNextPage"`
}

// Repositories flattens paged listing results in page order, which is the
// platform's update-time-descending order.
func Repositories(pages []OrganizationPage) []RawRepository {
	var repos []RawRepository
	for _, p := range pages {
		repos = append(repos, p.Repositories...)
	}
	return repos
}
