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

package action

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kernelsu-modules-repo/catalog/internal/fileutil"
	"github.com/kernelsu-modules-repo/catalog/internal/parallel"
	"github.com/kernelsu-modules-repo/catalog/pkg/catalog"
	"github.com/kernelsu-modules-repo/catalog/pkg/github"
	"github.com/kernelsu-modules-repo/catalog/pkg/validate"
)

// Sync is the action behind `modrepo sync`. It rebuilds the whole catalog
// from the organization's repositories, or merges a single repository into
// the existing catalog when one is targeted.
type Sync struct {
	cfg *Configuration
}

// NewSync creates a new Sync object with the given configuration.
func NewSync(cfg *Configuration) *Sync {
	return &Sync{cfg: cfg}
}

// moduleResult carries one repository's outcome through the outer mapper.
// Exactly one field is set: the catalog entry, the rejection, or a fault
// that is fatal for this repository but never for its peers.
type moduleResult struct {
	module *catalog.Module
	skip   *validate.SkipInfo
	err    error
}

// Run executes one catalog build. A repository target plus a catalog on
// disk selects the incremental path; everything else is a full rebuild.
func (s *Sync) Run(ctx context.Context) error {
	settings := s.cfg.Settings
	s.cfg.log().WithFields(logrus.Fields{
		"org":                settings.Org,
		"repoConcurrency":    settings.RepoConcurrency,
		"releaseConcurrency": settings.ReleaseConcurrency,
	}).Debug("starting catalog sync")
	if target := settings.TargetRepoName(); target != "" {
		if _, err := os.Stat(settings.CatalogFile()); err == nil {
			return s.runIncremental(ctx, target)
		}
		s.cfg.log().WithField("repo", target).Debug("no catalog on disk, running a full build instead")
	}
	return s.runFull(ctx)
}

// runFull pages the whole organization, snapshots the raw response,
// validates every repository under the outer concurrency cap and writes
// the catalog. Rejected repositories are dropped without notification;
// the next incremental run for that repository tells the author.
func (s *Sync) runFull(ctx context.Context) error {
	settings := s.cfg.Settings
	log := s.cfg.log()

	pages, err := s.cfg.Fetcher.FetchOrganization(ctx, settings.Org)
	if err != nil {
		return errors.Wrapf(err, "listing repositories of %s", settings.Org)
	}
	repos := github.Repositories(pages)
	log.WithFields(logrus.Fields{"org": settings.Org, "repositories": len(repos)}).Info("fetched organization")

	if err := os.MkdirAll(settings.CacheDir, 0755); err != nil {
		return errors.Wrapf(err, "creating cache directory %s", settings.CacheDir)
	}
	unlock, err := lockCatalog(ctx, settings.CacheDir)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.writeSnapshot(pages); err != nil {
		return err
	}

	results, err := parallel.Map(ctx, settings.RepoConcurrency, repos,
		func(ctx context.Context, _ int, repo github.RawRepository) (moduleResult, error) {
			m, skip, err := s.buildModule(ctx, &repo)
			return moduleResult{module: m, skip: skip, err: err}, nil
		})
	if err != nil {
		return err
	}

	c := make(catalog.Catalog, 0, len(results))
	var dropped *multierror.Error
	for i, r := range results {
		switch {
		case r.err != nil:
			dropped = multierror.Append(dropped, errors.Wrap(r.err, repos[i].Name))
			log.WithField("repo", repos[i].Name).Errorf("module dropped: %v", r.err)
		case r.skip != nil:
			dropped = multierror.Append(dropped, r.skip)
			log.WithFields(logrus.Fields{
				"repo":   r.skip.Repo,
				"reason": r.skip.Reason,
			}).Info("module skipped")
		default:
			c = append(c, r.module)
		}
	}
	if dropped != nil {
		log.Debugf("repositories left out of this build: %v", dropped)
	}
	c.Sort()

	if err := c.Write(settings.CatalogFile()); err != nil {
		return errors.Wrapf(err, "writing catalog %s", settings.CatalogFile())
	}
	log.WithField("modules", len(c)).Info("catalog rebuilt")
	return nil
}

// runIncremental refreshes a single catalog entry. A validation failure
// is the build's outcome here: it is reported to the author when the
// failing release is the repository's current latest, and returned so the
// process exits non-zero.
func (s *Sync) runIncremental(ctx context.Context, name string) error {
	settings := s.cfg.Settings
	log := s.cfg.log()
	log.WithField("repo", name).Info("updating single repository")

	repo, err := s.cfg.Fetcher.FetchRepository(ctx, settings.Org, name)
	if err != nil {
		return errors.Wrapf(err, "fetching repository %s", name)
	}

	m, skip, err := s.buildModule(ctx, repo)
	if err != nil {
		return err
	}
	if skip != nil {
		s.notify(ctx, skip)
		return skip
	}

	unlock, err := lockCatalog(ctx, settings.CacheDir)
	if err != nil {
		return err
	}
	defer unlock()

	c, err := catalog.Load(settings.CatalogFile())
	if err != nil {
		return err
	}
	c = c.Upsert(m)
	c.Sort()
	if err := c.Write(settings.CatalogFile()); err != nil {
		return errors.Wrapf(err, "writing catalog %s", settings.CatalogFile())
	}
	log.WithFields(logrus.Fields{"repo": name, "modules": len(c)}).Info("catalog updated")
	return nil
}

// buildModule validates one repository and assembles its catalog entry.
func (s *Sync) buildModule(ctx context.Context, repo *github.RawRepository) (*catalog.Module, *validate.SkipInfo, error) {
	v := &validate.ModuleValidator{
		Prober:             s.cfg.Prober,
		ReleaseConcurrency: s.cfg.Settings.ReleaseConcurrency,
		RequireTagPattern:  s.cfg.Settings.RequireTagPattern,
		Log:                s.cfg.Log,
	}
	releases, skip, err := v.Validate(ctx, repo)
	if err != nil || skip != nil {
		return nil, skip, err
	}
	m, err := catalog.Assemble(repo, releases, s.cfg.Renderer)
	if err != nil {
		return nil, nil, err
	}
	return m, nil, nil
}

// notify reports a skip to the release author. Only release-level skips
// name a tag to comment on; notification failures are logged and
// swallowed because the skip itself is the build's outcome.
func (s *Sync) notify(ctx context.Context, skip *validate.SkipInfo) {
	if s.cfg.Notifier == nil || !skip.ShouldNotify || skip.TagName == "" {
		return
	}
	if err := s.cfg.Notifier.Dispatch(ctx, skip); err != nil {
		s.cfg.log().WithFields(logrus.Fields{
			"repo": skip.Repo,
			"tag":  skip.TagName,
		}).Errorf("notification failed: %v", err)
	}
}

// writeSnapshot persists the raw paginated response pretty-printed next to
// the catalog, so the exact platform answer behind a build can be
// inspected afterwards.
func (s *Sync) writeSnapshot(pages []github.OrganizationPage) error {
	path := s.cfg.Settings.SnapshotFile()
	b, err := json.MarshalIndent(pages, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}
	if err := fileutil.AtomicWriteFile(path, bytes.NewReader(b), 0644); err != nil {
		return errors.Wrapf(err, "writing snapshot %s", path)
	}
	return nil
}

// lockCatalog serializes catalog writers across processes. The lock file
// sits next to the cache directory, not inside it, so the directory holds
// nothing but the snapshot and the catalog.
func lockCatalog(ctx context.Context, cacheDir string) (func(), error) {
	lockPath := filepath.Clean(cacheDir) + ".lock"
	fileLock := flock.New(lockPath)

	lockCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	locked, err := fileLock.TryLockContext(lockCtx, time.Second)
	if err != nil {
		return nil, errors.Wrapf(err, "locking %s", lockPath)
	}
	if !locked {
		return nil, errors.Errorf("unable to lock %s", lockPath)
	}
	return func() { _ = fileLock.Unlock() }, nil
}
