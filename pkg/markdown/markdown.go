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

// Package markdown renders repository READMEs the way the hosting platform
// does: raw HTML passthrough, autolinks, typographic substitution, task
// lists, footnotes, emoji shortcodes and alert blockquotes.
//
// It also rewrites time-limited private-user-images URLs in pre-rendered
// release HTML back to their stable public form.
package markdown

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts markdown to HTML. It is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer constructs the README renderer.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Footnote,
				extension.Typographer,
				emoji.Emoji,
				Alerts,
			),
			goldmark.WithRendererOptions(
				html.WithUnsafe(),
			),
		),
	}
}

// Render converts source to HTML.
func (r *Renderer) Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", errors.Wrap(err, "rendering markdown")
	}
	return buf.String(), nil
}

const uuidPattern = `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`

var (
	publicImageRe  = regexp.MustCompile(`https://github\.com/[^/\s"')]+/[^/\s"')]+/assets/\d+/` + uuidPattern)
	privateImageRe = regexp.MustCompile(`https://private-user-images\.githubusercontent\.com/\d+/\d+-(` + uuidPattern + `)[^"]*`)
)

// RewritePrivateImages replaces every private-user-images URL in html
// whose uuid also appears as a public attachment URL in source markdown
// with that public URL. The platform renders attached images as signed,
// time-limited private URLs; the public form is stable. Applying the
// rewrite twice equals applying it once.
func RewritePrivateImages(markdown, html string) string {
	pairs := publicImageRe.FindAllString(markdown, -1)
	if len(pairs) == 0 {
		return html
	}

	byUUID := make(map[string]string, len(pairs))
	for _, pub := range pairs {
		uuid := pub[strings.LastIndex(pub, "/")+1:]
		byUUID[uuid] = pub
	}

	return privateImageRe.ReplaceAllStringFunc(html, func(m string) string {
		uuid := privateImageRe.FindStringSubmatch(m)[1]
		if pub, ok := byUUID[uuid]; ok {
			return pub
		}
		return m
	})
}
