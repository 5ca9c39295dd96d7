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

package markdown

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Alerts rewrites blockquotes whose first line is an alert marker such as
// "[!NOTE]" into classed admonition blocks. The marker line is dropped and
// replaced with a title paragraph, matching the markup the platform emits:
//
//	<blockquote class="markdown-alert markdown-alert-note">
//	<p class="markdown-alert-title">Note</p>
//	...
//	</blockquote>
var Alerts goldmark.Extender = &alerts{}

type alerts struct{}

func (a *alerts) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(
		util.Prioritized(&alertTransformer{}, 500),
	))
}

var alertMarker = regexp.MustCompile(`^\[!(NOTE|TIP|IMPORTANT|WARNING|CAUTION)\]$`)

type alertTransformer struct{}

func (t *alertTransformer) Transform(doc *gast.Document, reader text.Reader, _ parser.Context) {
	var quotes []*gast.Blockquote
	_ = gast.Walk(doc, func(n gast.Node, entering bool) (gast.WalkStatus, error) {
		if entering && n.Kind() == gast.KindBlockquote {
			quotes = append(quotes, n.(*gast.Blockquote))
		}
		return gast.WalkContinue, nil
	})
	for _, bq := range quotes {
		rewriteAlert(bq, reader.Source())
	}
}

func rewriteAlert(bq *gast.Blockquote, source []byte) {
	para, ok := bq.FirstChild().(*gast.Paragraph)
	if !ok {
		return
	}
	lines := para.Lines()
	if lines.Len() == 0 {
		return
	}
	first := lines.At(0)
	m := alertMarker.FindSubmatch(bytes.TrimSpace(first.Value(source)))
	if m == nil {
		return
	}

	// The marker must sit alone on its line, so every inline node it
	// produced is a Text whose segment starts before the line's end.
	var markerNodes []gast.Node
	for c := para.FirstChild(); c != nil; c = c.NextSibling() {
		txt, ok := c.(*gast.Text)
		if !ok || txt.Segment.Start >= first.Stop {
			break
		}
		markerNodes = append(markerNodes, c)
	}
	if len(markerNodes) == 0 {
		return
	}
	for _, n := range markerNodes {
		para.RemoveChild(para, n)
	}
	if para.ChildCount() == 0 {
		bq.RemoveChild(bq, para)
	}

	kind := strings.ToLower(string(m[1]))

	title := gast.NewParagraph()
	title.SetAttributeString("class", []byte("markdown-alert-title"))
	title.AppendChild(title, gast.NewString([]byte(strings.ToUpper(kind[:1])+kind[1:])))
	if ref := bq.FirstChild(); ref != nil {
		bq.InsertBefore(bq, ref, title)
	} else {
		bq.AppendChild(bq, title)
	}

	bq.SetAttributeString("class", []byte("markdown-alert markdown-alert-"+kind))
}
