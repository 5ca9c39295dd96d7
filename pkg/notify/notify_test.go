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

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelsu-modules-repo/catalog/pkg/validate"
)

const testOrg = "modorg"

// newTestDispatcher wires a Dispatcher against a local fake of the REST
// API. The enterprise constructor roots every route under /api/v3/.
func newTestDispatcher(t *testing.T) (*Dispatcher, *http.ServeMux) {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	d, err := NewEnterprise(srv.URL, "secret", testOrg)
	require.NoError(t, err)
	return d, mux
}

func route(repo, rest string) string {
	return "/api/v3/repos/" + testOrg + "/" + repo + "/" + rest
}

func serveRef(mux *http.ServeMux, repo, tag, objType, sha string) {
	mux.HandleFunc(route(repo, "git/ref/tags/"+tag), func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"ref": "refs/tags/%s", "object": {"type": %q, "sha": %q}}`, tag, objType, sha)
	})
}

func serveTagObject(mux *http.ServeMux, repo, tagSHA, commitSHA string) {
	mux.HandleFunc(route(repo, "git/tags/"+tagSHA), func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"sha": %q, "object": {"type": "commit", "sha": %q}}`, tagSHA, commitSHA)
	})
}

func serveRelease(mux *http.ServeMux, repo, tag, author string) {
	mux.HandleFunc(route(repo, "releases/tags/"+tag), func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"tag_name": %q, "author": {"login": %q}}`, tag, author)
	})
}

func serveCollaborators(t *testing.T, mux *http.ServeMux, repo string, logins ...string) {
	mux.HandleFunc(route(repo, "collaborators"), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "direct", r.URL.Query().Get("affiliation"))
		quoted := make([]string, len(logins))
		for i, l := range logins {
			quoted[i] = fmt.Sprintf(`{"login": %q}`, l)
		}
		fmt.Fprint(w, "["+strings.Join(quoted, ",")+"]")
	})
}

// captureComment records the body of the comment posted on the given
// commit. Dispatching to any other commit stays a 404.
func captureComment(t *testing.T, mux *http.ServeMux, repo, sha string) *string {
	var body string
	mux.HandleFunc(route(repo, "commits/"+sha+"/comments"), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var payload struct {
			Body string `json:"body"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		body = payload.Body
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 1}`)
	})
	return &body
}

func mismatchSkip() *validate.SkipInfo {
	return &validate.SkipInfo{
		Repo:         "foo.bar",
		Reason:       validate.ReasonModuleIDMismatch,
		Message:      "Module id mismatch",
		Details:      map[string]string{"repoName": "foo.bar", "moduleId": "foo.baz"},
		ShouldNotify: true,
		TagName:      "3-v3",
	}
}

func TestDispatchMentionsReleaseAuthor(t *testing.T) {
	d, mux := newTestDispatcher(t)
	serveRef(mux, "foo.bar", "3-v3", "commit", "c0ffee")
	serveRelease(mux, "foo.bar", "3-v3", "alice")
	body := captureComment(t, mux, "foo.bar", "c0ffee")

	require.NoError(t, d.Dispatch(context.Background(), mismatchSkip()))

	assert.True(t, strings.HasPrefix(*body, "@alice\n\n### Module id mismatch\n\n"), "got %q", *body)
	assert.Contains(t, *body, "Expected `foo.bar` but module.prop declares `foo.baz`.")
	assert.True(t, strings.HasSuffix(*body, footer))
}

func TestDispatchDereferencesAnnotatedTag(t *testing.T) {
	d, mux := newTestDispatcher(t)
	serveRef(mux, "foo.bar", "3-v3", "tag", "7a9001")
	serveTagObject(mux, "foo.bar", "7a9001", "c0ffee")
	serveRelease(mux, "foo.bar", "3-v3", "alice")
	body := captureComment(t, mux, "foo.bar", "c0ffee")

	require.NoError(t, d.Dispatch(context.Background(), mismatchSkip()))
	assert.NotEmpty(t, *body)
}

func TestDispatchBotAuthorFallsBackToCollaborators(t *testing.T) {
	d, mux := newTestDispatcher(t)
	serveRef(mux, "foo.bar", "3-v3", "commit", "c0ffee")
	serveRelease(mux, "foo.bar", "3-v3", "github-actions[bot]")
	serveCollaborators(t, mux, "foo.bar", "renovate[bot]", "alice", "bob")
	body := captureComment(t, mux, "foo.bar", "c0ffee")

	require.NoError(t, d.Dispatch(context.Background(), mismatchSkip()))
	assert.True(t, strings.HasPrefix(*body, "@alice @bob\n\n"), "got %q", *body)
}

func TestDispatchWithoutAddressees(t *testing.T) {
	d, mux := newTestDispatcher(t)
	serveRef(mux, "foo.bar", "3-v3", "commit", "c0ffee")
	// Release lookup 404s and the repository has no direct collaborators.
	serveCollaborators(t, mux, "foo.bar")
	body := captureComment(t, mux, "foo.bar", "c0ffee")

	require.NoError(t, d.Dispatch(context.Background(), mismatchSkip()))
	assert.True(t, strings.HasPrefix(*body, "### Module id mismatch\n\n"), "got %q", *body)
	assert.NotContains(t, *body, "@")
}

func TestDispatchRendersMissingDetailsAsNA(t *testing.T) {
	d, mux := newTestDispatcher(t)
	serveRef(mux, "foo.bar", "3-v3", "commit", "c0ffee")
	serveRelease(mux, "foo.bar", "3-v3", "alice")
	body := captureComment(t, mux, "foo.bar", "c0ffee")

	skip := &validate.SkipInfo{
		Repo:         "foo.bar",
		Reason:       validate.ReasonMissingVersion,
		Details:      map[string]string{"version": "v1"},
		ShouldNotify: true,
		TagName:      "3-v3",
	}
	require.NoError(t, d.Dispatch(context.Background(), skip))
	assert.Contains(t, *body, "version=`v1`")
	assert.Contains(t, *body, "versionCode=`N/A`")
}

func TestDispatchRequiresTag(t *testing.T) {
	d, _ := newTestDispatcher(t)
	skip := mismatchSkip()
	skip.TagName = ""

	err := d.Dispatch(context.Background(), skip)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "names no release tag")
}

func TestDispatchTagLookupFailure(t *testing.T) {
	d, _ := newTestDispatcher(t)

	err := d.Dispatch(context.Background(), mismatchSkip())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolving tag 3-v3 of foo.bar")
}

func TestComposeBodyRepeatedPlaceholder(t *testing.T) {
	got := composeBody("Title", "{x} and {x} and {y}", map[string]string{"x": "one"}, nil)
	assert.Contains(t, got, "one and one and N/A")
}
