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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelsu-modules-repo/catalog/internal/version"
)

func TestVersionCommand(t *testing.T) {
	resetSettings(t)
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version.BuildInfo")
	assert.Contains(t, out, `Version:"`+version.GetVersion()+`"`)
}

func TestVersionCommandShort(t *testing.T) {
	resetSettings(t)
	out, err := executeCommand(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.GetVersion()+"\n", out)
}

func TestVersionCommandRejectsArgs(t *testing.T) {
	resetSettings(t)
	_, err := executeCommand(t, "version", "extra")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"modrepo version" accepts no arguments`)
}
