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

// Package notify turns validation failures into commit comments on the
// offending release tag, so module authors hear about a broken release
// where they can act on it.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/go-github/v39/github"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/kernelsu-modules-repo/catalog/internal/version"
	"github.com/kernelsu-modules-repo/catalog/pkg/validate"
)

// knownBots are release publishers that should never be mentioned;
// telling a bot about its own release helps nobody.
var knownBots = map[string]bool{
	"github-actions[bot]": true,
	"dependabot[bot]":     true,
	"renovate[bot]":       true,
}

// placeholderRe matches {key} placeholders in notification templates.
var placeholderRe = regexp.MustCompile(`\{([A-Za-z][A-Za-z0-9]*)\}`)

// footer closes every notification so readers can tell it apart from a
// human review.
const footer = "\n\n---\n*This comment was generated automatically because " +
	"the release could not be added to the module catalog.*"

var nopLogger = func() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}()

// Dispatcher posts validation failures as commit comments, addressed to
// whoever published the offending release.
type Dispatcher struct {
	client *github.Client
	org    string

	// Log receives progress messages. Nil discards them.
	Log *logrus.Logger
}

// New returns a Dispatcher authenticated with token against the public
// REST endpoint, posting into repositories of org.
func New(token, org string) *Dispatcher {
	c := github.NewClient(oauthClient(token))
	c.UserAgent = version.GetUserAgent()
	return &Dispatcher{client: c, org: org}
}

// NewEnterprise returns a Dispatcher against a custom REST endpoint
// (GitHub Enterprise, or a test server).
func NewEnterprise(url, token, org string) (*Dispatcher, error) {
	c, err := github.NewEnterpriseClient(url, url, oauthClient(token))
	if err != nil {
		return nil, errors.Wrapf(err, "constructing REST client for %s", url)
	}
	c.UserAgent = version.GetUserAgent()
	return &Dispatcher{client: c, org: org}, nil
}

func oauthClient(token string) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return oauth2.NewClient(context.Background(), src)
}

func (d *Dispatcher) log() *logrus.Logger {
	if d.Log != nil {
		return d.Log
	}
	return nopLogger
}

// Dispatch publishes a comment for skip on the commit its release tag
// points at. The skip must name a tag; module-level failures have no
// commit to attach to. Each immutable release receives at most one
// comment per build because a rejected tag cannot be republished.
func (d *Dispatcher) Dispatch(ctx context.Context, skip *validate.SkipInfo) error {
	if skip.TagName == "" {
		return errors.Errorf("skip %s for %s names no release tag", skip.Reason, skip.Repo)
	}
	title, body, ok := validate.Template(skip.Reason)
	if !ok {
		return errors.Errorf("no notification template for reason %s", skip.Reason)
	}

	sha, err := d.resolveCommit(ctx, skip.Repo, skip.TagName)
	if err != nil {
		return errors.Wrapf(err, "resolving tag %s of %s", skip.TagName, skip.Repo)
	}

	mentions, err := d.resolveMentions(ctx, skip.Repo, skip.TagName)
	if err != nil {
		d.log().WithFields(logrus.Fields{
			"repo": skip.Repo,
			"tag":  skip.TagName,
		}).Warnf("addressee lookup incomplete: %v", err)
	}

	comment := composeBody(title, body, skip.Details, mentions)
	_, _, err = d.client.Repositories.CreateComment(ctx, d.org, skip.Repo, sha, &github.RepositoryComment{
		Body: github.String(comment),
	})
	if err != nil {
		return errors.Wrapf(err, "commenting on %s@%s", skip.Repo, sha)
	}

	d.log().WithFields(logrus.Fields{
		"repo":   skip.Repo,
		"tag":    skip.TagName,
		"reason": skip.Reason,
	}).Info("posted release notification")
	return nil
}

// resolveCommit maps a tag name to the commit it points at, dereferencing
// an annotated tag once.
func (d *Dispatcher) resolveCommit(ctx context.Context, repo, tag string) (string, error) {
	ref, _, err := d.client.Git.GetRef(ctx, d.org, repo, "tags/"+tag)
	if err != nil {
		return "", err
	}
	obj := ref.GetObject()
	if obj.GetType() != "tag" {
		return obj.GetSHA(), nil
	}
	tagObj, _, err := d.client.Git.GetTag(ctx, d.org, repo, obj.GetSHA())
	if err != nil {
		return "", err
	}
	return tagObj.GetObject().GetSHA(), nil
}

// resolveMentions picks the addressees: the release publisher when it is
// a human, otherwise every direct collaborator. Lookup failures degrade
// to fewer mentions and are reported together rather than aborting the
// notification.
func (d *Dispatcher) resolveMentions(ctx context.Context, repo, tag string) ([]string, error) {
	var lookupErr *multierror.Error

	rel, _, err := d.client.Repositories.GetReleaseByTag(ctx, d.org, repo, tag)
	if err != nil {
		lookupErr = multierror.Append(lookupErr, errors.Wrap(err, "release lookup"))
	} else if login := rel.GetAuthor().GetLogin(); login != "" && !knownBots[login] {
		return []string{login}, nil
	}

	collaborators, _, err := d.client.Repositories.ListCollaborators(ctx, d.org, repo, &github.ListCollaboratorsOptions{
		Affiliation: "direct",
	})
	if err != nil {
		lookupErr = multierror.Append(lookupErr, errors.Wrap(err, "collaborator lookup"))
		return nil, lookupErr.ErrorOrNil()
	}

	var mentions []string
	for _, c := range collaborators {
		if login := c.GetLogin(); login != "" && !knownBots[login] {
			mentions = append(mentions, login)
		}
	}
	return mentions, lookupErr.ErrorOrNil()
}

// composeBody renders the final comment: mentions, the titled template
// with {key} placeholders filled from details, and the footer. Missing
// or empty detail values render as N/A.
func composeBody(title, body string, details map[string]string, mentions []string) string {
	filled := placeholderRe.ReplaceAllStringFunc(body, func(m string) string {
		if v := details[m[1:len(m)-1]]; v != "" {
			return v
		}
		return "N/A"
	})

	var b strings.Builder
	if len(mentions) > 0 {
		for i, m := range mentions {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteByte('@')
			b.WriteString(m)
		}
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "### %s\n\n%s%s", title, filled, footer)
	return b.String()
}
