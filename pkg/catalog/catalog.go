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
	"bytes"
	"encoding/json"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/kernelsu-modules-repo/catalog/internal/fileutil"
)

// Catalog is the ordered module list serialized to modules.json.
type Catalog []*Module

// Load reads a catalog file. The error is the caller's cue to fall back
// to an empty catalog or to a full rebuild.
func Load(path string) (Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, errors.Wrapf(err, "parsing catalog %s", path)
	}
	return c, nil
}

// Write serializes the catalog (minified, fixed key order) and atomically
// replaces path, so a concurrent reader sees either the old file or the
// new one but never a torn write.
func (c Catalog) Write(path string) error {
	if c == nil {
		c = Catalog{}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encoding catalog")
	}
	return fileutil.AtomicWriteFile(path, bytes.NewReader(b), 0644)
}

// Sort orders modules by their most recent release time, newest first.
// The sort is stable: modules that have never released (all epoch times)
// keep their incoming order.
func (c Catalog) Sort() {
	sort.SliceStable(c, func(i, j int) bool {
		return c[i].LastUpdated().After(c[j].LastUpdated())
	})
}

// Has reports whether a module with the given id is cataloged.
func (c Catalog) Has(id string) bool {
	for _, m := range c {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Upsert replaces the entry with m's id, or prepends m when the id is
// new. Callers resort afterwards; Upsert itself keeps positions stable.
func (c Catalog) Upsert(m *Module) Catalog {
	for i := range c {
		if c[i].ID == m.ID {
			c[i] = m
			return c
		}
	}
	return append(Catalog{m}, c...)
}
