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

package catalog

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/kernelsu-modules-repo/catalog/pkg/github"
)

// maxSummaryRunes bounds the catalog summary, ellipsis included.
const maxSummaryRunes = 512

// snapshotName marks prerelease display names that belong to the snapshot
// channel rather than the beta channel.
var snapshotName = regexp.MustCompile(`(?i)^(snapshot|nightly)`)

// Renderer converts markdown to HTML.
type Renderer interface {
	Render(source string) (string, error)
}

// Assemble builds the catalog entry for a validated repository from its
// accepted releases, which arrive in the data source's order (newest
// first). The only error source is the README renderer.
func Assemble(repo *github.RawRepository, releases []Release, renderer Renderer) (*Module, error) {
	manifest := extractManifest(repo.ManifestText())

	if releases == nil {
		releases = []Release{}
	}
	m := &Module{
		ID:             repo.Name,
		Name:           repo.DescriptionText(),
		URL:            repo.URL,
		HomepageURL:    repo.HomepageURL,
		Authors:        resolveAuthors(repo.Collaborators.Nodes, manifest.authors),
		LatestRelease:  latestReleaseName(repo),
		Releases:       releases,
		Summary:        manifest.summary,
		SourceURL:      manifest.sourceURL,
		CreatedAt:      repo.CreatedAt,
		UpdatedAt:      repo.UpdatedAt,
		StargazerCount: repo.StargazerCount,
		Metamodule:     manifest.metamodule,
	}
	m.LatestReleaseTime, m.LatestBetaReleaseTime, m.LatestSnapshotReleaseTime = latestByKind(releases)

	if readme := repo.ReadmeText(); strings.TrimSpace(readme) != "" {
		html, err := renderer.Render(readme)
		if err != nil {
			return nil, errors.Wrapf(err, "rendering README of %s", repo.Name)
		}
		m.Readme = &readme
		m.ReadmeHTML = &html
	}
	return m, nil
}

// latestReleaseName is the display name of the release the platform marks
// latest, falling back to its tag, or nil when the repository has never
// marked one.
func latestReleaseName(repo *github.RawRepository) *string {
	if repo.LatestRelease == nil {
		return nil
	}
	name := repo.LatestRelease.DisplayName()
	if name == "" {
		name = repo.LatestRelease.TagName
	}
	return &name
}

// latestByKind picks the publication times of the newest stable, beta and
// snapshot releases. Prereleases split into snapshot and beta channels by
// display name. A missing beta falls back to the stable release and a
// missing snapshot to the beta, so the three times are monotone; a kind
// that never shipped reports the epoch.
func latestByKind(releases []Release) (latest, beta, snapshot time.Time) {
	var latestRel, betaRel, snapshotRel *Release
	for i := range releases {
		r := &releases[i]
		switch {
		case !r.IsPrerelease:
			if latestRel == nil {
				latestRel = r
			}
		case snapshotName.MatchString(r.Name):
			if snapshotRel == nil {
				snapshotRel = r
			}
		default:
			if betaRel == nil {
				betaRel = r
			}
		}
	}
	if betaRel == nil {
		betaRel = latestRel
	}
	if snapshotRel == nil {
		snapshotRel = betaRel
	}
	return publishedOrEpoch(latestRel), publishedOrEpoch(betaRel), publishedOrEpoch(snapshotRel)
}

func publishedOrEpoch(r *Release) time.Time {
	if r == nil {
		return Epoch
	}
	return r.PublishedAt
}

// authorDirective is one additionalAuthors entry from the repository
// manifest.
type authorDirective struct {
	remove bool
	name   string
	link   string
}

// resolveAuthors renders the collaborator list and applies the manifest's
// add/remove directives in order. Names stay unique throughout (first
// wins) and the relative order of survivors is preserved. Removal matches
// either the rendered display name or the collaborator's login.
func resolveAuthors(collaborators []github.Collaborator, directives []authorDirective) []Author {
	type record struct {
		author Author
		login  string
	}
	var list []record
	hasName := func(name string) bool {
		for _, r := range list {
			if r.author.Name == name {
				return true
			}
		}
		return false
	}

	for _, c := range collaborators {
		if c.Login == "" {
			continue
		}
		name := c.Login
		if c.Name != nil && *c.Name != "" {
			name = *c.Name
		}
		if hasName(name) {
			continue
		}
		list = append(list, record{
			author: Author{Name: name, Link: "https://github.com/" + c.Login},
			login:  c.Login,
		})
	}

	for _, d := range directives {
		if d.remove {
			kept := list[:0]
			for _, r := range list {
				if r.author.Name != d.name && r.login != d.name {
					kept = append(kept, r)
				}
			}
			list = kept
			continue
		}
		if d.name == "" || hasName(d.name) {
			continue
		}
		list = append(list, record{author: Author{Name: d.name, Link: d.link}})
	}

	authors := make([]Author, 0, len(list))
	for _, r := range list {
		authors = append(authors, r.author)
	}
	return authors
}

// manifestExtract is everything the optional repository manifest
// contributes to a catalog entry.
type manifestExtract struct {
	authors    []authorDirective
	summary    *string
	sourceURL  *string
	metamodule bool
}

// extractManifest parses the auxiliary repo.json manifest. Every field is
// optional and decoded leniently: a leaf of the wrong type degrades to
// absent, and a manifest that is not a JSON object at all contributes
// nothing. Assembly never fails on manifest content.
func extractManifest(text string) manifestExtract {
	var ext manifestExtract
	if strings.TrimSpace(text) == "" {
		return ext
	}

	var m struct {
		AdditionalAuthors []json.RawMessage `json:"additionalAuthors"`
		Summary           json.RawMessage   `json:"summary"`
		SourceURL         json.RawMessage   `json:"sourceUrl"`
		Metamodule        json.RawMessage   `json:"metamodule"`
	}
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return manifestExtract{}
	}

	for _, raw := range m.AdditionalAuthors {
		var e struct {
			Type *string `json:"type"`
			Name *string `json:"name"`
			Link *string `json:"link"`
		}
		if err := json.Unmarshal(raw, &e); err != nil || e.Name == nil {
			continue
		}
		d := authorDirective{name: *e.Name}
		switch {
		case e.Type == nil || *e.Type == "add":
			if e.Link != nil {
				d.link = *e.Link
			}
		case *e.Type == "remove":
			d.remove = true
		default:
			continue
		}
		ext.authors = append(ext.authors, d)
	}

	if s := decodeString(m.Summary); s != nil {
		v := strings.TrimSpace(ellipsize(strings.TrimSpace(*s), maxSummaryRunes))
		ext.summary = &v
	}
	if s := decodeString(m.SourceURL); s != nil {
		v := strings.TrimSpace(stripNewlines(*s))
		ext.sourceURL = &v
	}
	var b bool
	if m.Metamodule != nil && json.Unmarshal(m.Metamodule, &b) == nil {
		ext.metamodule = b
	}
	return ext
}

func decodeString(raw json.RawMessage) *string {
	if raw == nil {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

// ellipsize shortens s to at most max runes, replacing the overflow with a
// single ellipsis rune.
func ellipsize(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func stripNewlines(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}
