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

/*Package cli describes the operating environment for the modrepo CLI.

Settings are read from the process environment first and may be overridden
by command line flags. GRAPHQL_TOKEN and REPO keep their historical names;
everything else uses the MODREPO_ prefix.
*/
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// DefaultOrganization is the organization whose repositories are ingested
// when MODREPO_ORG is unset.
const DefaultOrganization = "kernelsu-modules-repo"

const (
	defaultCacheDir           = "cache"
	defaultRepoConcurrency    = 20
	defaultReleaseConcurrency = 100
)

// EnvSettings describes all of the environment settings.
type EnvSettings struct {
	// Token authenticates both the GraphQL listing and the REST
	// notification calls. The process must not reach the network when it
	// is unset.
	Token string
	// TargetRepo selects single-repository mode when a prior catalog
	// exists. It accepts either "owner/name" or a bare "name".
	TargetRepo string
	// Org is the organization whose repositories form the catalog.
	Org string
	// CacheDir holds the raw pagination snapshot and the catalog file.
	CacheDir string
	// RepoConcurrency caps simultaneous repository validations.
	RepoConcurrency int
	// ReleaseConcurrency caps simultaneous release probes per repository.
	ReleaseConcurrency int
	// RequireTagPattern additionally requires release tags to match
	// ^\d+-.+$ before a release is considered for validation.
	RequireTagPattern bool
	// Debug indicates whether or not modrepo is running in Debug mode.
	Debug bool
}

func New() *EnvSettings {
	env := &EnvSettings{
		Token:              os.Getenv("GRAPHQL_TOKEN"),
		TargetRepo:         os.Getenv("REPO"),
		Org:                envOr("MODREPO_ORG", DefaultOrganization),
		CacheDir:           envOr("MODREPO_CACHE", defaultCacheDir),
		RepoConcurrency:    envIntOr("MODREPO_REPO_CONCURRENCY", defaultRepoConcurrency),
		ReleaseConcurrency: envIntOr("MODREPO_RELEASE_CONCURRENCY", defaultReleaseConcurrency),
	}
	env.RequireTagPattern, _ = strconv.ParseBool(os.Getenv("MODREPO_REQUIRE_TAG_PATTERN"))
	env.Debug, _ = strconv.ParseBool(os.Getenv("MODREPO_DEBUG"))
	return env
}

// AddFlags binds flags to the given flagset.
func (s *EnvSettings) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&s.TargetRepo, "repo", s.TargetRepo, "update a single repository instead of rebuilding the whole catalog")
	fs.StringVar(&s.Org, "org", s.Org, "organization whose repositories are ingested")
	fs.StringVar(&s.CacheDir, "cache-dir", s.CacheDir, "directory holding the pagination snapshot and the catalog")
	fs.IntVar(&s.RepoConcurrency, "repo-concurrency", s.RepoConcurrency, "maximum number of repositories validated at once")
	fs.IntVar(&s.ReleaseConcurrency, "release-concurrency", s.ReleaseConcurrency, "maximum number of releases probed at once per repository")
	fs.BoolVar(&s.RequireTagPattern, "require-tag-pattern", s.RequireTagPattern, "only consider releases whose tag matches ^[0-9]+-.+$")
	fs.BoolVar(&s.Debug, "debug", s.Debug, "enable verbose output")
}

// EnvVars exposes the effective settings environment for `modrepo env`.
// The token is deliberately omitted.
func (s *EnvSettings) EnvVars() map[string]string {
	return map[string]string{
		"REPO":                        s.TargetRepo,
		"MODREPO_ORG":                 s.Org,
		"MODREPO_CACHE":               s.CacheDir,
		"MODREPO_REPO_CONCURRENCY":    fmt.Sprint(s.RepoConcurrency),
		"MODREPO_RELEASE_CONCURRENCY": fmt.Sprint(s.ReleaseConcurrency),
		"MODREPO_REQUIRE_TAG_PATTERN": fmt.Sprint(s.RequireTagPattern),
		"MODREPO_DEBUG":               fmt.Sprint(s.Debug),
	}
}

// TargetRepoName reduces TargetRepo to the bare repository name. The data
// source occasionally hands out "owner/name"; only the name selects the
// repository inside the configured organization.
func (s *EnvSettings) TargetRepoName() string {
	name := strings.TrimSpace(s.TargetRepo)
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// CatalogFile is the path of the assembled catalog.
func (s *EnvSettings) CatalogFile() string {
	return filepath.Join(s.CacheDir, "modules.json")
}

// SnapshotFile is the path of the pretty-printed raw pagination snapshot.
func (s *EnvSettings) SnapshotFile() string {
	return filepath.Join(s.CacheDir, "graphql.json")
}

func envOr(name, def string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return def
}

func envIntOr(name string, def int) int {
	if name == "" {
		return def
	}
	envVal := envOr(name, strconv.Itoa(def))
	ret, err := strconv.Atoi(envVal)
	if err != nil {
		return def
	}
	return ret
}
