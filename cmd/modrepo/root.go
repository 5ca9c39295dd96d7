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
	"io"

	"github.com/spf13/cobra"

	"github.com/kernelsu-modules-repo/catalog/pkg/cli/require"
)

var globalUsage = `The module catalog builder.

modrepo ingests the public repositories of a GitHub organization, validates
the module releases they publish, and assembles the module catalog consumed
by the website.

Common actions for modrepo:

- modrepo sync:     rebuild the catalog, or refresh a single repository
- modrepo list:     print the cataloged modules
- modrepo env:      print the effective environment settings

Environment variables:

| Name                        | Description                                                        |
|-----------------------------|--------------------------------------------------------------------|
| $GRAPHQL_TOKEN              | access token used for both the listing and notification calls.    |
| $REPO                       | update a single repository ("owner/name" or "name") when set.     |
| $MODREPO_ORG                | organization whose repositories are ingested.                     |
| $MODREPO_CACHE              | directory holding the pagination snapshot and the catalog.        |
| $MODREPO_REPO_CONCURRENCY   | maximum number of repositories validated at once.                 |
| $MODREPO_RELEASE_CONCURRENCY| maximum number of releases probed at once per repository.         |
| $MODREPO_REQUIRE_TAG_PATTERN| only consider releases whose tag matches ^[0-9]+-.+$.             |
| $MODREPO_DEBUG              | enable verbose output.                                            |
`

func newRootCmd(out io.Writer, args []string) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "modrepo",
		Short:        "The module catalog builder.",
		Long:         globalUsage,
		SilenceUsage: true,
		Args:         require.NoArgs,
	}
	flags := cmd.PersistentFlags()

	settings.AddFlags(flags)

	// We can safely ignore any errors that flags.Parse encounters since
	// those errors will be caught later during the call to cmd.Execution.
	// This call is required to gather configuration information prior to
	// execution.
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.Parse(args)

	cmd.AddCommand(
		newSyncCmd(out),
		newListCmd(out),
		newEnvCmd(out),
		newVersionCmd(out),
	)

	return cmd
}
