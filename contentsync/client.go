// Package contentsync mirrors local content into a GitHub repository through
// the contents API. Writes are create-or-update: the current blob SHA is
// looked up first and sent along with the write, and a stale SHA is retried
// by looking it up again.
package contentsync

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang/glog"

	"github.com/HughODwyer90/hugh.casa/data"
	"github.com/HughODwyer90/hugh.casa/retry"
)

const (
	DefaultAPIURL = "https://api.github.com"
	DefaultBranch = "main"

	maxErrorBody = 4 << 10
)

// Mode selects how content is validated before it is base64 encoded.
type Mode int

const (
	ModeText Mode = iota
	ModeBinary
)

func (m Mode) String() string {
	if m == ModeBinary {
		return "binary"
	}
	return "text"
}

// Object is a single piece of content addressed by its repository path.
// Revision is the blob SHA last observed for Path, empty if the object is
// known not to exist.
type Object struct {
	Path          string
	Content       []byte
	Revision      string
	CommitMessage string
}

type Config struct {
	APIURL string
	Repo   string // "owner/name"
	Branch string
	Token  string

	Attempts   int
	RetryDelay time.Duration
	HTTPClient *http.Client
	// Sleep replaces the wait between attempts, for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

type Client struct {
	apiURL string
	repo   string
	branch string
	token  string
	http   *http.Client
	policy retry.Policy
}

func New(cfg Config) (*Client, error) {
	if cfg.Repo == "" || !strings.Contains(cfg.Repo, "/") {
		return nil, fmt.Errorf("repository must be of the form owner/name, got %q", cfg.Repo)
	}
	if cfg.Token == "" {
		return nil, errors.New("token must be set")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Branch == "" {
		cfg.Branch = DefaultBranch
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = retry.DefaultAttempts
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = retry.DefaultDelay
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		apiURL: strings.TrimSuffix(cfg.APIURL, "/"),
		repo:   cfg.Repo,
		branch: cfg.Branch,
		token:  cfg.Token,
		http:   cfg.HTTPClient,
		policy: retry.Policy{
			Attempts: cfg.Attempts,
			Delay:    cfg.RetryDelay,
			Sleep:    cfg.Sleep,
		},
	}, nil
}

func (c *Client) contentsURL(p string) string {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/repos/%s/contents/%s", c.apiURL, c.repo, strings.Join(segs, "/"))
}

func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("unable to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", fmt.Sprintf("token %s", c.token))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// ResolveRevision returns the current blob SHA at p, or ErrNotFound.
func (c *Client) ResolveRevision(ctx context.Context, p string) (string, error) {
	u := c.contentsURL(p) + "?ref=" + url.QueryEscape(c.branch)
	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", &Error{Kind: KindPermanent, Op: "resolve", Path: p, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &Error{Kind: KindTransient, Op: "resolve", Path: p, Err: err}
	}
	defer resp.Body.Close()
	glog.V(1).Infof("resolve %s: HTTP %d", p, resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return "", &Error{Kind: kindForStatus(resp.StatusCode), Op: "resolve", Path: p, StatusCode: resp.StatusCode, Err: apiMessage(resp.Body)}
	}

	var content data.GitHubContent
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		return "", &Error{Kind: KindMalformed, Op: "resolve", Path: p, StatusCode: resp.StatusCode, Err: err}
	}
	if content.SHA == "" {
		return "", &Error{Kind: KindMalformed, Op: "resolve", Path: p, StatusCode: resp.StatusCode, Err: errors.New("response has no sha")}
	}
	return content.SHA, nil
}

// Put writes obj in a single request and returns the new revision. An empty
// obj.Revision asks the store to create the object.
func (c *Client) Put(ctx context.Context, obj Object, mode Mode) (string, error) {
	if mode == ModeText && !utf8.Valid(obj.Content) {
		return "", &Error{Kind: KindMalformed, Op: "put", Path: obj.Path, Err: errors.New("text content is not valid UTF-8")}
	}
	msg := obj.CommitMessage
	if msg == "" {
		msg = DefaultCommitMessage(obj.Path)
	}
	body, err := json.Marshal(&data.GitHubPutRequest{
		Message: msg,
		Content: base64.StdEncoding.EncodeToString(obj.Content),
		Branch:  c.branch,
		SHA:     obj.Revision,
	})
	if err != nil {
		return "", &Error{Kind: KindMalformed, Op: "put", Path: obj.Path, Err: err}
	}

	req, err := c.newRequest(ctx, http.MethodPut, c.contentsURL(obj.Path), bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindPermanent, Op: "put", Path: obj.Path, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &Error{Kind: KindTransient, Op: "put", Path: obj.Path, Err: err}
	}
	defer resp.Body.Close()
	glog.V(1).Infof("put %s (sha %q): HTTP %d", obj.Path, obj.Revision, resp.StatusCode)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		kind := kindForStatus(resp.StatusCode)
		// Without a sha the store answers 422 when the object appeared after
		// the lookup; that is the same race as a stale sha.
		if resp.StatusCode == http.StatusUnprocessableEntity && obj.Revision == "" {
			kind = KindConflict
		}
		return "", &Error{Kind: kind, Op: "put", Path: obj.Path, StatusCode: resp.StatusCode, Err: apiMessage(resp.Body)}
	}

	var out data.GitHubPutResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &Error{Kind: KindMalformed, Op: "put", Path: obj.Path, StatusCode: resp.StatusCode, Err: err}
	}
	if out.Content == nil || out.Content.SHA == "" {
		return "", &Error{Kind: KindMalformed, Op: "put", Path: obj.Path, StatusCode: resp.StatusCode, Err: errors.New("response has no content sha")}
	}
	return out.Content.SHA, nil
}

// DefaultCommitMessage is used when an upload carries no message.
func DefaultCommitMessage(p string) string {
	return fmt.Sprintf("Update %s", path.Base(p))
}

func apiMessage(r io.Reader) error {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(b) == 0 {
		return nil
	}
	var e data.GitHubError
	if json.Unmarshal(b, &e) == nil && e.Message != "" {
		return errors.New(e.Message)
	}
	return errors.New(strings.TrimSpace(string(b)))
}
