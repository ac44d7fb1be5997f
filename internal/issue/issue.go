// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"slices"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	CredentialMissingId
	CachePrepareFailedId
	FetchFailedId
	ExtractFailedId
	NormalizeFailedId
	OverlayFailedId
	SpawnFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render renders the issue's markdown for a terminal. stylePath is a glamour
// style name ("dark", "light", "notty") or a path to a JSON style file.
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

bootlace reads ` + "`bootlace.cue`" + ` from its base directory, then applies
` + "`BOOTLACE_*`" + ` environment overrides.

## Things you can try:
- Print the effective configuration:
~~~
$ bootlace config show
~~~
- Validate the CUE syntax of your file:
~~~
$ cue vet bootlace.cue
~~~
- Remove the file to fall back to the defaults`,
	}

	credentialMissingIssue = &Issue{
		id: CredentialMissingId,
		mdMsg: `
# Access token required!

The source repository is marked private (` + "`source.private: true`" + `), but the
token environment variable is empty. No network request was made.

## Things you can try:
- Export a token with read access to the repository:
~~~
$ export GITHUB_TOKEN=ghp_...
~~~
- Or put it in a ` + "`.env`" + ` file next to the launcher:
~~~
GITHUB_TOKEN=ghp_...
~~~
- Or point ` + "`source.token_env`" + ` at the variable you already use`,
	}

	cachePrepareFailedIssue = &Issue{
		id: CachePrepareFailedId,
		mdMsg: `
# Could not prepare the scratch directory!

Every run deletes and recreates its scratch directory. This failed, usually
because of permissions or because another bootlace process holds the lock.

## Things you can try:
- Check the permissions of the base directory
- Make sure no other bootlace instance uses the same base directory
- Remove the scratch directory by hand:
~~~
$ bootlace clean
~~~`,
	}

	fetchFailedIssue = &Issue{
		id: FetchFailedId,
		mdMsg: `
# Source download failed!

The archive could not be downloaded. bootlace makes exactly one attempt.

## Common causes:
- The owner, repository, or branch name is wrong (HTTP 404)
- The repository is private and no token was provided (HTTP 404 or 401)
- The network is unreachable or the request timed out

## Things you can try:
- Open the archive URL in a browser
- Increase ` + "`source.timeout`" + ` for slow links
- Re-run the launcher once the remote is reachable`,
	}

	extractFailedIssue = &Issue{
		id: ExtractFailedId,
		mdMsg: `
# Archive extraction failed!

The downloaded payload is not a readable zip or tar.gz archive. The partially
extracted tree was left on disk for inspection.

## Things you can try:
- Check that ` + "`source.url`" + ` points to an archive and not an HTML page
- Re-run the launcher to download a fresh copy`,
	}

	normalizeFailedIssue = &Issue{
		id: NormalizeFailedId,
		mdMsg: `
# Module normalization failed!

The working tree could not be converted to CommonJS. The tree may be in an
inconsistent state and was not launched.

## Things you can try:
- Check free disk space and permissions in the scratch directory
- Run the normalizer alone on a copy of the tree:
~~~
$ bootlace normalize ./path/to/tree
~~~`,
	}

	overlayFailedIssue = &Issue{
		id: OverlayFailedId,
		mdMsg: `
# Configuration overlay was not applied!

The local configuration file could not be copied into the working tree. The
application starts with its default configuration.

## Things you can try:
- Check that ` + "`overlay.source`" + ` is readable
- Check that ` + "`overlay.target`" + ` is a file path inside the tree`,
	}

	spawnFailedIssue = &Issue{
		id: SpawnFailedId,
		mdMsg: `
# Could not start the application!

The interpreter could not be launched.

## Things you can try:
- Make sure ` + "`node`" + ` is installed and on PATH:
~~~
$ node --version
~~~
- Or set the interpreter explicitly:
~~~cue
runtime: command: "/usr/local/bin/node --max-old-space-size=384"
~~~`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		credentialMissingIssue.Id():  credentialMissingIssue,
		cachePrepareFailedIssue.Id(): cachePrepareFailedIssue,
		fetchFailedIssue.Id():        fetchFailedIssue,
		extractFailedIssue.Id():      extractFailedIssue,
		normalizeFailedIssue.Id():    normalizeFailedIssue,
		overlayFailedIssue.Id():      overlayFailedIssue,
		spawnFailedIssue.Id():        spawnFailedIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	ids := maps.Keys(issues)
	slices.Sort(ids)
	out := make([]*Issue, 0, len(ids))
	for _, id := range ids {
		out = append(out, issues[id])
	}
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
