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

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/kernelsu-modules-repo/catalog/pkg/catalog"
	"github.com/kernelsu-modules-repo/catalog/pkg/cli/require"
)

const listDesc = `
This command lists the modules in the catalog, newest release first.

It reads the catalog file produced by 'modrepo sync'; it never touches the
network.
`

type listOptions struct {
	max int
}

func newListCmd(out io.Writer) *cobra.Command {
	o := &listOptions{}

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "list cataloged modules",
		Long:    listDesc,
		Aliases: []string{"ls"},
		Args:    require.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(out)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&o.max, "max", "m", 256, "maximum number of modules to list")

	return cmd
}

func (o *listOptions) run(out io.Writer) error {
	c, err := catalog.Load(settings.CatalogFile())
	if err != nil {
		return err
	}

	table := uitable.New()
	table.MaxColWidth = 50
	table.AddRow("ID", "NAME", "LATEST", "UPDATED", "STARS")
	for i := range c {
		if i >= o.max {
			break
		}
		m := c[i]
		var latest string
		if m.LatestRelease != nil {
			latest = *m.LatestRelease
		}
		var updated string
		if t := m.LastUpdated(); !t.Equal(catalog.Epoch) {
			updated = t.Format("2006-01-02")
		}
		table.AddRow(m.ID, m.Name, latest, updated, m.StargazerCount)
	}
	_, err = fmt.Fprintln(out, table)
	return err
}
