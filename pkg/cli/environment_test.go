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

package cli

import (
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvSettings(t *testing.T) {
	tests := []struct {
		name string

		// input
		args    []string
		envvars map[string]string

		// expected values
		target      string
		org         string
		cache       string
		repoCap     int
		releaseCap  int
		tagPattern  bool
		debug       bool
	}{
		{
			name:       "defaults",
			org:        DefaultOrganization,
			cache:      "cache",
			repoCap:    20,
			releaseCap: 100,
		},
		{
			name:       "with flags set",
			args:       []string{"--repo", "owner/widget", "--org", "acme", "--cache-dir", "/tmp/c", "--repo-concurrency", "3", "--release-concurrency", "9", "--require-tag-pattern", "--debug"},
			target:     "owner/widget",
			org:        "acme",
			cache:      "/tmp/c",
			repoCap:    3,
			releaseCap: 9,
			tagPattern: true,
			debug:      true,
		},
		{
			name: "with envvars set",
			envvars: map[string]string{
				"REPO":                        "widget",
				"MODREPO_ORG":                 "acme",
				"MODREPO_CACHE":               "/tmp/e",
				"MODREPO_REPO_CONCURRENCY":    "4",
				"MODREPO_RELEASE_CONCURRENCY": "8",
				"MODREPO_REQUIRE_TAG_PATTERN": "1",
				"MODREPO_DEBUG":               "1",
			},
			target:     "widget",
			org:        "acme",
			cache:      "/tmp/e",
			repoCap:    4,
			releaseCap: 8,
			tagPattern: true,
			debug:      true,
		},
		{
			name:       "with flags and envvars set",
			args:       []string{"--org", "flagorg", "--repo-concurrency", "6"},
			envvars:    map[string]string{"MODREPO_ORG": "envorg", "MODREPO_REPO_CONCURRENCY": "2", "MODREPO_CACHE": "/tmp/x"},
			org:        "flagorg",
			cache:      "/tmp/x",
			repoCap:    6,
			releaseCap: 100,
		},
		{
			name:       "invalid int envvar falls back to default",
			envvars:    map[string]string{"MODREPO_RELEASE_CONCURRENCY": "lots"},
			org:        DefaultOrganization,
			cache:      "cache",
			repoCap:    20,
			releaseCap: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envvars {
				t.Setenv(k, v)
			}

			settings := New()

			flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
			settings.AddFlags(flags)
			require.NoError(t, flags.Parse(tt.args))

			assert.Equal(t, tt.target, settings.TargetRepo)
			assert.Equal(t, tt.org, settings.Org)
			assert.Equal(t, tt.cache, settings.CacheDir)
			assert.Equal(t, tt.repoCap, settings.RepoConcurrency)
			assert.Equal(t, tt.releaseCap, settings.ReleaseConcurrency)
			assert.Equal(t, tt.tagPattern, settings.RequireTagPattern)
			assert.Equal(t, tt.debug, settings.Debug)
		})
	}
}

func TestTargetRepoName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"widget", "widget"},
		{"owner/widget", "widget"},
		{"  owner/widget ", "widget"},
		{"a/b/widget", "widget"},
	}
	for _, tt := range tests {
		s := &EnvSettings{TargetRepo: tt.in}
		assert.Equal(t, tt.want, s.TargetRepoName(), "TargetRepo=%q", tt.in)
	}
}

func TestCachePaths(t *testing.T) {
	s := &EnvSettings{CacheDir: "/var/cache/modrepo"}
	assert.Equal(t, filepath.Join("/var/cache/modrepo", "modules.json"), s.CatalogFile())
	assert.Equal(t, filepath.Join("/var/cache/modrepo", "graphql.json"), s.SnapshotFile())
}

func TestEnvVarsOmitToken(t *testing.T) {
	t.Setenv("GRAPHQL_TOKEN", "secret")
	s := New()
	for k, v := range s.EnvVars() {
		assert.NotEqual(t, "GRAPHQL_TOKEN", k)
		assert.NotEqual(t, "secret", v)
	}
}
