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

package main

import (
	"fmt"
	"io"
	"os"

	shellwords "github.com/mattn/go-shellwords"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kernelsu-modules-repo/catalog/pkg/action"
	"github.com/kernelsu-modules-repo/catalog/pkg/cli/require"
	"github.com/kernelsu-modules-repo/catalog/pkg/github"
	"github.com/kernelsu-modules-repo/catalog/pkg/markdown"
	"github.com/kernelsu-modules-repo/catalog/pkg/modprop"
	"github.com/kernelsu-modules-repo/catalog/pkg/notify"
)

const syncDesc = `
This command builds the module catalog.

Without a target repository the whole organization is paged and the catalog
is rebuilt from scratch; the raw listing is snapshotted next to the catalog
for inspection. When REPO (or --repo) names a repository and a catalog
already exists, only that repository is fetched, validated and merged into
the catalog.

A failed single-repository update posts a commit comment on the offending
release and exits non-zero. Full rebuilds drop failing repositories
silently.
`

type syncOptions struct {
	extractor string
}

func newSyncCmd(out io.Writer) *cobra.Command {
	o := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "build the module catalog",
		Long:  syncDesc,
		Args:  require.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, out)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.extractor, "extractor", "runzip", "command used to stream one entry out of a remote zip archive, split like a shell word list")

	return cmd
}

func (o *syncOptions) run(cmd *cobra.Command, out io.Writer) error {
	if settings.Token == "" {
		return errors.New("GRAPHQL_TOKEN must be set")
	}

	extractor, err := shellwords.Parse(o.extractor)
	if err != nil {
		return errors.Wrapf(err, "parsing extractor command %q", o.extractor)
	}
	if len(extractor) == 0 {
		return errors.New("extractor command must not be empty")
	}

	logger := newLogger()
	notifier := notify.New(settings.Token, settings.Org)
	notifier.Log = logger

	cfg := &action.Configuration{
		Settings: settings,
		Fetcher:  github.NewClient(settings.Token),
		Prober:   modprop.NewZipProber(modprop.WithCommand(extractor[0], extractor[1:]...)),
		Renderer: markdown.NewRenderer(),
		Notifier: notifier,
		Log:      logger,
	}

	if err := action.NewSync(cfg).Run(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(out, "Catalog written to %s\n", settings.CatalogFile())
	return nil
}

// newLogger builds the process logger: human-readable lines on stderr,
// debug level when --debug is set.
func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if settings.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}
