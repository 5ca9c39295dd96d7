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

// Package action holds the logic behind the modrepo commands. A command
// parses flags and builds a Configuration; the action here does the work.
package action

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/kernelsu-modules-repo/catalog/pkg/catalog"
	"github.com/kernelsu-modules-repo/catalog/pkg/cli"
	"github.com/kernelsu-modules-repo/catalog/pkg/github"
	"github.com/kernelsu-modules-repo/catalog/pkg/modprop"
	"github.com/kernelsu-modules-repo/catalog/pkg/validate"
)

// Fetcher retrieves raw repository records from the hosting platform.
type Fetcher interface {
	// FetchOrganization pages through every public repository of org,
	// newest-updated first.
	FetchOrganization(ctx context.Context, org string) ([]github.OrganizationPage, error)
	// FetchRepository retrieves a single repository by name.
	FetchRepository(ctx context.Context, org, name string) (*github.RawRepository, error)
}

// Notifier reports a validation failure to whoever can fix it.
type Notifier interface {
	Dispatch(ctx context.Context, skip *validate.SkipInfo) error
}

// Configuration injects the collaborators every action needs. Commands
// assemble one from the environment settings; tests substitute fakes.
type Configuration struct {
	// Settings carries the environment-derived knobs.
	Settings *cli.EnvSettings

	// Fetcher lists repositories and releases.
	Fetcher Fetcher

	// Prober extracts module.prop from release archives.
	Prober modprop.Prober

	// Renderer turns README markdown into HTML.
	Renderer catalog.Renderer

	// Notifier reports failed incremental builds. Nil disables
	// notifications.
	Notifier Notifier

	// Log receives progress messages. Nil discards them.
	Log *logrus.Logger
}

var nopLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

func (c *Configuration) log() *logrus.Logger {
	if c.Log != nil {
		return c.Log
	}
	return nopLogger
}
