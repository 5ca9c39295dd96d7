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

// Package modprop extracts and parses the module.prop manifest carried
// inside a release's zip asset.
//
// Extraction is delegated to an external helper that range-reads the
// archive without downloading it whole. Every failure mode (helper not
// found, non-zero exit, absent entry, oversized entry, undecodable bytes)
// collapses to an empty property map; the validator turns that into a
// MISSING_MODULE_PROP skip.
package modprop

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// EntryName is the archive member holding the module metadata.
const EntryName = "module.prop"

// maxPropBytes caps how many bytes are read from the extractor. An entry
// larger than this aborts the probe entirely rather than being truncated.
const maxPropBytes = 64 * 1024

const defaultCommand = "runzip"

// Properties is a parsed module.prop: property name to string value.
// Duplicate keys take the last occurrence.
type Properties map[string]string

// Parse reads key=value lines. Leading and trailing whitespace is
// insignificant, blank lines and #-comments are skipped, and a line
// without at least one character before its first '=' is ignored.
func Parse(r io.Reader) (Properties, error) {
	props := Properties{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxPropBytes+2)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 1 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		props[key] = value
	}
	if err := scanner.Err(); err != nil {
		return Properties{}, errors.Wrap(err, "reading properties")
	}
	return props, nil
}

// Encode renders the map back to key=value lines with keys sorted, so
// that serialization is deterministic.
func (p Properties) Encode() []byte {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b bytes.Buffer
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, p[k])
	}
	return b.Bytes()
}

// Prober obtains the Properties for the archive at the given download URL.
type Prober interface {
	Probe(ctx context.Context, url string) (Properties, error)
}

// ZipProber shells out to the archive extractor helper
// (`runzip -p <url> module.prop`) and parses its standard output.
type ZipProber struct {
	command string
	args    []string
}

// Option configures a ZipProber.
type Option func(*ZipProber)

// WithCommand overrides the extractor executable. Extra args are inserted
// before the probe arguments.
func WithCommand(command string, args ...string) Option {
	return func(p *ZipProber) {
		p.command = command
		p.args = args
	}
}

// NewZipProber constructs a prober around the external extractor.
func NewZipProber(options ...Option) *ZipProber {
	p := &ZipProber{command: defaultCommand}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Probe extracts and parses module.prop from the archive at url. The
// returned map is empty whenever extraction fails; the error carries the
// cause for logging only.
func (p *ZipProber) Probe(ctx context.Context, url string) (Properties, error) {
	argv := append(append([]string{}, p.args...), "-p", url, EntryName)
	cmd := exec.CommandContext(ctx, p.command, argv...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Properties{}, errors.Wrap(err, "connecting to extractor output")
	}
	if err := cmd.Start(); err != nil {
		return Properties{}, errors.Wrapf(err, "starting %s", p.command)
	}

	var out bytes.Buffer
	_, readErr := io.Copy(&out, io.LimitReader(stdout, maxPropBytes+1))
	if out.Len() > maxPropBytes {
		cmd.Process.Kill()
		cmd.Wait()
		return Properties{}, errors.Errorf("%s in %s exceeds %d bytes", EntryName, url, maxPropBytes)
	}

	waitErr := cmd.Wait()
	if readErr != nil {
		return Properties{}, errors.Wrap(readErr, "reading extractor output")
	}
	if waitErr != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = waitErr.Error()
		}
		return Properties{}, errors.Errorf("extracting %s from %s: %s", EntryName, url, msg)
	}
	if len(bytes.TrimSpace(out.Bytes())) == 0 {
		return Properties{}, errors.Errorf("empty %s in %s", EntryName, url)
	}
	if !utf8.Valid(out.Bytes()) {
		return Properties{}, errors.Errorf("%s in %s is not valid UTF-8", EntryName, url)
	}

	return Parse(&out)
}
