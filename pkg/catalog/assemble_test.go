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
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelsu-modules-repo/catalog/pkg/github"
)

var (
	created   = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	updated   = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	published = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
)

// fakeRenderer marks its output so tests can tell rendered HTML from the
// raw source without depending on a real markdown engine.
type fakeRenderer struct {
	err error
}

func (f fakeRenderer) Render(source string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "<html>" + source + "</html>", nil
}

func strptr(s string) *string { return &s }

func rawRepo(name string) *github.RawRepository {
	repo := &github.RawRepository{
		Name:           name,
		Description:    strptr("The " + name + " module"),
		URL:            "https://github.com/modorg/" + name,
		CreatedAt:      created,
		UpdatedAt:      updated,
		StargazerCount: 7,
	}
	return repo
}

func collaborator(login, name string) github.Collaborator {
	c := github.Collaborator{Login: login}
	if name != "" {
		c.Name = &name
	}
	return c
}

func stable(tag string, publishedAt time.Time) Release {
	return Release{TagName: tag, Name: tag, PublishedAt: publishedAt}
}

func pre(tag, name string, publishedAt time.Time) Release {
	return Release{TagName: tag, Name: name, PublishedAt: publishedAt, IsPrerelease: true}
}

func TestAssembleModuleFields(t *testing.T) {
	repo := rawRepo("foo.bar")
	repo.HomepageURL = strptr("https://foo.example")
	repo.LatestRelease = &github.RawRelease{TagName: "1-v1", Name: strptr("First")}
	repo.Collaborators.Nodes = []github.Collaborator{collaborator("alice", "Alice A")}

	releases := []Release{stable("1-v1", published)}
	m, err := Assemble(repo, releases, fakeRenderer{})
	require.NoError(t, err)

	assert.Equal(t, "foo.bar", m.ID)
	assert.Equal(t, "The foo.bar module", m.Name)
	assert.Equal(t, "https://github.com/modorg/foo.bar", m.URL)
	require.NotNil(t, m.HomepageURL)
	assert.Equal(t, "https://foo.example", *m.HomepageURL)
	require.NotNil(t, m.LatestRelease)
	assert.Equal(t, "First", *m.LatestRelease)
	assert.Equal(t, releases, m.Releases)
	assert.Equal(t, []Author{{Name: "Alice A", Link: "https://github.com/alice"}}, m.Authors)
	assert.True(t, m.CreatedAt.Equal(created))
	assert.True(t, m.UpdatedAt.Equal(updated))
	assert.Equal(t, 7, m.StargazerCount)
	assert.False(t, m.Metamodule)
	assert.Nil(t, m.Summary)
	assert.Nil(t, m.SourceURL)
	assert.Nil(t, m.Readme)
	assert.Nil(t, m.ReadmeHTML)
}

func TestAssembleLatestReleaseNameFallsBackToTag(t *testing.T) {
	repo := rawRepo("foo.bar")
	repo.LatestRelease = &github.RawRelease{TagName: "1-v1"}

	m, err := Assemble(repo, nil, fakeRenderer{})
	require.NoError(t, err)
	require.NotNil(t, m.LatestRelease)
	assert.Equal(t, "1-v1", *m.LatestRelease)
	assert.NotNil(t, m.Releases)
	assert.Empty(t, m.Releases)
}

func TestAssembleReadme(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		m, err := Assemble(rawRepo("foo.bar"), nil, fakeRenderer{})
		require.NoError(t, err)
		assert.Nil(t, m.Readme)
		assert.Nil(t, m.ReadmeHTML)
	})

	t.Run("blank", func(t *testing.T) {
		repo := rawRepo("foo.bar")
		readme := &github.RawBlob{}
		readme.Fragment.Text = strptr("  \n\t ")
		repo.Readme = readme

		m, err := Assemble(repo, nil, fakeRenderer{})
		require.NoError(t, err)
		assert.Nil(t, m.Readme)
		assert.Nil(t, m.ReadmeHTML)
	})

	t.Run("present", func(t *testing.T) {
		repo := rawRepo("foo.bar")
		readme := &github.RawBlob{}
		readme.Fragment.Text = strptr("# Foo Bar\n")
		repo.Readme = readme

		m, err := Assemble(repo, nil, fakeRenderer{})
		require.NoError(t, err)
		require.NotNil(t, m.Readme)
		assert.Equal(t, "# Foo Bar\n", *m.Readme)
		require.NotNil(t, m.ReadmeHTML)
		assert.Equal(t, "<html># Foo Bar\n</html>", *m.ReadmeHTML)
	})

	t.Run("render failure", func(t *testing.T) {
		repo := rawRepo("foo.bar")
		readme := &github.RawBlob{}
		readme.Fragment.Text = strptr("# Foo Bar")
		repo.Readme = readme

		_, err := Assemble(repo, nil, fakeRenderer{err: errors.New("engine broke")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "foo.bar")
	})
}

func withManifest(repo *github.RawRepository, text string) *github.RawRepository {
	manifest := &github.RawBlob{}
	manifest.Fragment.Text = &text
	repo.Manifest = manifest
	return repo
}

func TestAssembleManifestAuthors(t *testing.T) {
	repo := rawRepo("foo.bar")
	repo.Collaborators.Nodes = []github.Collaborator{
		collaborator("alice", "Alice A"),
		collaborator("bob", ""),
		collaborator("carol", "Carol C"),
	}
	withManifest(repo, `{
		"additionalAuthors": [
			{"type": "remove", "name": "bob"},
			{"type": "remove", "name": "Carol C"},
			{"name": "Upstream Project", "link": "https://upstream.example"},
			{"type": "add", "name": "Alice A", "link": "https://dup.example"},
			{"type": "add", "name": "Anonymous Helper"},
			{"type": "rename", "name": "Alice A"}
		]
	}`)

	m, err := Assemble(repo, nil, fakeRenderer{})
	require.NoError(t, err)
	assert.Equal(t, []Author{
		{Name: "Alice A", Link: "https://github.com/alice"},
		{Name: "Upstream Project", Link: "https://upstream.example"},
		{Name: "Anonymous Helper", Link: ""},
	}, m.Authors)
}

func TestResolveAuthors(t *testing.T) {
	collaborators := []github.Collaborator{
		collaborator("alice", "Alice A"),
		collaborator("bob", ""),
		collaborator("eve", "Alice A"), // duplicate display name, first wins
	}

	t.Run("collaborators only", func(t *testing.T) {
		got := resolveAuthors(collaborators, nil)
		assert.Equal(t, []Author{
			{Name: "Alice A", Link: "https://github.com/alice"},
			{Name: "bob", Link: "https://github.com/bob"},
		}, got)
	})

	t.Run("remove by login", func(t *testing.T) {
		got := resolveAuthors(collaborators, []authorDirective{{remove: true, name: "alice"}})
		assert.Equal(t, []Author{{Name: "bob", Link: "https://github.com/bob"}}, got)
	})

	t.Run("remove by display name", func(t *testing.T) {
		got := resolveAuthors(collaborators, []authorDirective{{remove: true, name: "Alice A"}})
		assert.Equal(t, []Author{{Name: "bob", Link: "https://github.com/bob"}}, got)
	})

	t.Run("re-add after remove", func(t *testing.T) {
		got := resolveAuthors(collaborators, []authorDirective{
			{remove: true, name: "Alice A"},
			{name: "Alice A", link: "https://alice.example"},
		})
		assert.Equal(t, []Author{
			{Name: "bob", Link: "https://github.com/bob"},
			{Name: "Alice A", Link: "https://alice.example"},
		}, got)
	})

	t.Run("empty name never added", func(t *testing.T) {
		got := resolveAuthors(nil, []authorDirective{{name: ""}})
		assert.Empty(t, got)
	})

	t.Run("no authors yields empty list", func(t *testing.T) {
		got := resolveAuthors(nil, nil)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestExtractManifestSummary(t *testing.T) {
	t.Run("trimmed", func(t *testing.T) {
		ext := extractManifest(`{"summary": "  a tidy module \n"}`)
		require.NotNil(t, ext.summary)
		assert.Equal(t, "a tidy module", *ext.summary)
	})

	t.Run("ellipsized to the bound", func(t *testing.T) {
		long := strings.Repeat("x", 600)
		ext := extractManifest(`{"summary": "` + long + `"}`)
		require.NotNil(t, ext.summary)
		runes := []rune(*ext.summary)
		assert.Len(t, runes, 512)
		assert.Equal(t, '…', runes[511])
	})

	t.Run("exactly at the bound untouched", func(t *testing.T) {
		exact := strings.Repeat("y", 512)
		ext := extractManifest(`{"summary": "` + exact + `"}`)
		require.NotNil(t, ext.summary)
		assert.Equal(t, exact, *ext.summary)
	})

	t.Run("non-string ignored", func(t *testing.T) {
		ext := extractManifest(`{"summary": 42}`)
		assert.Nil(t, ext.summary)
	})
}

func TestExtractManifestSourceURL(t *testing.T) {
	ext := extractManifest(`{"sourceUrl": " https://src.example/\r\nrepo "}`)
	require.NotNil(t, ext.sourceURL)
	assert.Equal(t, "https://src.example/repo", *ext.sourceURL)

	ext = extractManifest(`{"sourceUrl": ["nope"]}`)
	assert.Nil(t, ext.sourceURL)
}

func TestExtractManifestMetamodule(t *testing.T) {
	assert.True(t, extractManifest(`{"metamodule": true}`).metamodule)
	assert.False(t, extractManifest(`{"metamodule": false}`).metamodule)
	assert.False(t, extractManifest(`{"metamodule": "true"}`).metamodule)
	assert.False(t, extractManifest(`{"metamodule": 1}`).metamodule)
	assert.False(t, extractManifest(`{}`).metamodule)
}

func TestExtractManifestMalformed(t *testing.T) {
	for _, text := range []string{"", "   ", "{not json", `"just a string"`, "[1,2,3]"} {
		ext := extractManifest(text)
		assert.Empty(t, ext.authors, "input %q", text)
		assert.Nil(t, ext.summary, "input %q", text)
		assert.Nil(t, ext.sourceURL, "input %q", text)
		assert.False(t, ext.metamodule, "input %q", text)
	}
}

func TestExtractManifestSkipsBrokenAuthorEntries(t *testing.T) {
	ext := extractManifest(`{"additionalAuthors": [
		"not an object",
		{"type": "add"},
		{"type": "remove", "name": "gone"},
		{"name": "Kept"}
	]}`)
	require.Len(t, ext.authors, 2)
	assert.True(t, ext.authors[0].remove)
	assert.Equal(t, "gone", ext.authors[0].name)
	assert.False(t, ext.authors[1].remove)
	assert.Equal(t, "Kept", ext.authors[1].name)
}

func TestLatestByKind(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
	}

	t.Run("all kinds present", func(t *testing.T) {
		releases := []Release{
			pre("5-s", "Snapshot 2024-06-05", day(5)),
			pre("4-b", "Beta 4", day(4)),
			stable("3-v3", day(3)),
			pre("2-s", "nightly old", day(2)),
			stable("1-v1", day(1)),
		}
		latest, beta, snapshot := latestByKind(releases)
		assert.True(t, latest.Equal(day(3)))
		assert.True(t, beta.Equal(day(4)))
		assert.True(t, snapshot.Equal(day(5)))
	})

	t.Run("beta falls back to stable", func(t *testing.T) {
		releases := []Release{stable("1-v1", day(1))}
		latest, beta, snapshot := latestByKind(releases)
		assert.True(t, latest.Equal(day(1)))
		assert.True(t, beta.Equal(day(1)))
		assert.True(t, snapshot.Equal(day(1)))
	})

	t.Run("snapshot falls back to beta", func(t *testing.T) {
		releases := []Release{
			pre("2-b", "Beta 2", day(2)),
			stable("1-v1", day(1)),
		}
		latest, beta, snapshot := latestByKind(releases)
		assert.True(t, latest.Equal(day(1)))
		assert.True(t, beta.Equal(day(2)))
		assert.True(t, snapshot.Equal(day(2)))
	})

	t.Run("snapshot name match is case-insensitive", func(t *testing.T) {
		releases := []Release{
			pre("2-s", "SNAPSHOT build", day(2)),
			pre("1-b", "beta build", day(1)),
		}
		_, beta, snapshot := latestByKind(releases)
		assert.True(t, beta.Equal(day(1)))
		assert.True(t, snapshot.Equal(day(2)))
	})

	t.Run("prerelease only keeps stable at epoch", func(t *testing.T) {
		releases := []Release{pre("1-b", "Beta 1", day(1))}
		latest, beta, snapshot := latestByKind(releases)
		assert.True(t, latest.Equal(Epoch))
		assert.True(t, beta.Equal(day(1)))
		assert.True(t, snapshot.Equal(day(1)))
	})

	t.Run("no releases", func(t *testing.T) {
		latest, beta, snapshot := latestByKind(nil)
		assert.True(t, latest.Equal(Epoch))
		assert.True(t, beta.Equal(Epoch))
		assert.True(t, snapshot.Equal(Epoch))
	})
}
