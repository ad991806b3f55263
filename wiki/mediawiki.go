// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/bureau-foundation/wikirc/lib/netutil"
	"github.com/bureau-foundation/wikirc/lib/secret"
)

const (
	recentChangesLimit = 25
	contributionsLimit = 500

	// maxContributionPages bounds usercontribs continuation at 5000
	// edits.
	maxContributionPages = 10

	// maxBoundaryPages bounds recentchanges continuation within the
	// last second of a batch.
	maxBoundaryPages = 10
)

// MediaWikiConfig holds the parameters for NewMediaWiki.
type MediaWikiConfig struct {
	// APIURL is the api.php endpoint.
	APIURL string

	Username string

	// Password is borrowed, not closed. It is read on every login.
	Password *secret.Buffer

	// HTTPClient must carry a cookie jar. If nil, a client with a
	// public-suffix-aware jar and Timeout is built.
	HTTPClient *http.Client

	// Timeout bounds each HTTP request when HTTPClient is nil.
	// Defaults to 60 seconds.
	Timeout time.Duration

	// UserAgent identifies the bot to the wiki's operators.
	UserAgent string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// MediaWiki is a Gateway over the MediaWiki action API. It logs in
// lazily and again whenever the server reports a lost session. It is
// not safe for concurrent use; wrap it in a Session.
type MediaWiki struct {
	apiURL     string
	username   string
	password   *secret.Buffer
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger

	loggedIn      bool
	csrfToken     string
	rollbackToken string
}

// NewMediaWiki validates cfg and returns an unauthenticated client.
func NewMediaWiki(cfg MediaWikiConfig) (*MediaWiki, error) {
	if cfg.APIURL == "" {
		return nil, errors.New("wiki: APIURL is required")
	}
	parsed, err := url.Parse(cfg.APIURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("wiki: invalid APIURL %q", cfg.APIURL)
	}
	if cfg.Username == "" || cfg.Password == nil {
		return nil, errors.New("wiki: Username and Password are required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("wiki: creating cookie jar: %w", err)
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Jar: jar, Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &MediaWiki{
		apiURL:     cfg.APIURL,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
		userAgent:  cfg.UserAgent,
		logger:     logger,
	}, nil
}

// Login authenticates with a bot password. Other methods call it on
// demand; calling it up front surfaces bad credentials at startup.
func (m *MediaWiki) Login(ctx context.Context) error {
	m.loggedIn = false
	m.csrfToken = ""
	m.rollbackToken = ""

	var tokens tokensResponse
	if err := m.get(ctx, "login", url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
		"type":   {"login"},
	}, &tokens); err != nil {
		return err
	}

	var result struct {
		Login struct {
			Result   string `json:"result"`
			Reason   string `json:"reason"`
			Username string `json:"lgusername"`
		} `json:"login"`
	}
	if err := m.post(ctx, "login", url.Values{
		"action":     {"login"},
		"lgname":     {m.username},
		"lgpassword": {m.password.String()},
		"lgtoken":    {tokens.Query.Tokens.LoginToken},
	}, &result); err != nil {
		return err
	}
	if result.Login.Result != "Success" {
		return &RemoteError{Action: "login", Code: strings.ToLower(result.Login.Result), Info: result.Login.Reason}
	}

	m.loggedIn = true
	m.logger.Info("logged in to content site", "api_url", m.apiURL, "username", result.Login.Username)
	return nil
}

// FetchChanges implements Gateway. A batch holds up to
// recentChangesLimit changes plus any further changes sharing the last
// one's timestamp, fetched by continuation: the poller resumes one
// second past the batch, so that second must be complete.
func (m *MediaWiki) FetchChanges(ctx context.Context, since time.Time) ([]Change, error) {
	if err := m.ensureLogin(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"action":  {"query"},
		"list":    {"recentchanges"},
		"rcstart": {since.UTC().Format(TimestampFormat)},
		"rcdir":   {"newer"},
		"rclimit": {fmt.Sprint(recentChangesLimit)},
		"rcprop":  {"user|timestamp|title|comment|loginfo"},
		"rctype":  {"new|edit|log"},
	}
	var changes []Change
	for page := range maxBoundaryPages {
		var response struct {
			Continue map[string]string `json:"continue"`
			Query    struct {
				RecentChanges []struct {
					Type      string `json:"type"`
					LogType   string `json:"logtype"`
					User      string `json:"user"`
					Title     string `json:"title"`
					Comment   string `json:"comment"`
					Timestamp string `json:"timestamp"`
				} `json:"recentchanges"`
			} `json:"query"`
		}
		if err := m.get(ctx, "recentchanges", params, &response); err != nil {
			return nil, err
		}

		for _, raw := range response.Query.RecentChanges {
			timestamp, err := parseTimestamp("recentchanges", raw.Timestamp)
			if err != nil {
				return nil, err
			}
			if page > 0 && !timestamp.Equal(changes[len(changes)-1].Timestamp) {
				return changes, nil
			}
			changes = append(changes, Change{
				Kind:      ChangeKind(raw.Type),
				LogType:   raw.LogType,
				Actor:     raw.User,
				Title:     raw.Title,
				Comment:   raw.Comment,
				Timestamp: timestamp,
			})
		}
		if len(response.Continue) == 0 || len(changes) == 0 {
			return changes, nil
		}
		params = maps.Clone(params)
		for key, value := range response.Continue {
			params.Set(key, value)
		}
	}
	m.logger.Warn("recent changes sharing one timestamp exceed the continuation bound; some will not be announced",
		"timestamp", changes[len(changes)-1].Timestamp.Format(TimestampFormat),
		"changes", len(changes),
	)
	return changes, nil
}

func parseTimestamp(action, value string) (time.Time, error) {
	timestamp, err := time.Parse(TimestampFormat, value)
	if err != nil {
		return time.Time{}, &RemoteError{Action: action, Err: fmt.Errorf("parsing timestamp %q: %w", value, err)}
	}
	return timestamp, nil
}

// FetchContributions implements Gateway, following continuation up to
// maxContributionPages requests.
func (m *MediaWiki) FetchContributions(ctx context.Context, user string) ([]Contribution, error) {
	if err := m.ensureLogin(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"action":  {"query"},
		"list":    {"usercontribs"},
		"ucuser":  {user},
		"ucdir":   {"newer"},
		"uclimit": {fmt.Sprint(contributionsLimit)},
		"ucprop":  {"title|timestamp|flags"},
	}
	var contributions []Contribution
	for range maxContributionPages {
		var response struct {
			Continue map[string]string `json:"continue"`
			Query    struct {
				UserContribs []struct {
					Title     string `json:"title"`
					New       bool   `json:"new"`
					Timestamp string `json:"timestamp"`
				} `json:"usercontribs"`
			} `json:"query"`
		}
		if err := m.get(ctx, "usercontribs", params, &response); err != nil {
			return nil, err
		}
		for _, raw := range response.Query.UserContribs {
			timestamp, err := parseTimestamp("usercontribs", raw.Timestamp)
			if err != nil {
				return nil, err
			}
			contributions = append(contributions, Contribution{Title: raw.Title, New: raw.New, Timestamp: timestamp})
		}
		if len(response.Continue) == 0 {
			return contributions, nil
		}
		params = maps.Clone(params)
		for key, value := range response.Continue {
			params.Set(key, value)
		}
	}
	m.logger.Warn("contribution history truncated", "user", user, "contributions", len(contributions))
	return contributions, nil
}

// BlockUser implements Gateway.
func (m *MediaWiki) BlockUser(ctx context.Context, user, reason string) error {
	if reason == "" {
		reason = DefaultBlockReason
	}
	return m.write(ctx, "block", url.Values{
		"user":      {user},
		"reason":    {reason},
		"expiry":    {"never"},
		"autoblock": {"1"},
		"nocreate":  {"1"},
	})
}

// DeletePage implements Gateway.
func (m *MediaWiki) DeletePage(ctx context.Context, title, reason string) error {
	if reason == "" {
		reason = DefaultDeleteReason
	}
	return m.write(ctx, "delete", url.Values{
		"title":  {title},
		"reason": {reason},
	})
}

// RollbackPage implements Gateway.
func (m *MediaWiki) RollbackPage(ctx context.Context, title, actor string) error {
	return m.write(ctx, "rollback", url.Values{
		"title":   {title},
		"user":    {actor},
		"markbot": {"1"},
	})
}

// write performs a token-protected action. A stale token or a lost
// login is repaired once and the action retried.
func (m *MediaWiki) write(ctx context.Context, action string, params url.Values) error {
	err := m.writeOnce(ctx, action, params)
	if IsCode(err, CodeBadToken) || IsCode(err, CodeAssertUserFailed) {
		m.logger.Info("content-site session expired, logging in again", "action", action)
		m.loggedIn = false
		err = m.writeOnce(ctx, action, params)
	}
	return err
}

func (m *MediaWiki) writeOnce(ctx context.Context, action string, params url.Values) error {
	if err := m.ensureLogin(ctx); err != nil {
		return err
	}
	if err := m.ensureTokens(ctx); err != nil {
		return err
	}

	form := maps.Clone(params)
	form.Set("action", action)
	form.Set("assert", "user")
	if action == "rollback" {
		form.Set("token", m.rollbackToken)
	} else {
		form.Set("token", m.csrfToken)
	}

	var response map[string]json.RawMessage
	if err := m.post(ctx, action, form, &response); err != nil {
		return err
	}
	if _, ok := response[action]; !ok {
		return &RemoteError{Action: action, Err: errors.New("response has no result object")}
	}
	return nil
}

func (m *MediaWiki) ensureLogin(ctx context.Context) error {
	if m.loggedIn {
		return nil
	}
	return m.Login(ctx)
}

func (m *MediaWiki) ensureTokens(ctx context.Context) error {
	if m.csrfToken != "" && m.rollbackToken != "" {
		return nil
	}
	var tokens tokensResponse
	if err := m.get(ctx, "tokens", url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
		"type":   {"csrf|rollback"},
	}, &tokens); err != nil {
		return err
	}
	if tokens.Query.Tokens.CSRFToken == "" || tokens.Query.Tokens.RollbackToken == "" {
		return &RemoteError{Action: "tokens", Err: errors.New("server returned empty tokens")}
	}
	m.csrfToken = tokens.Query.Tokens.CSRFToken
	m.rollbackToken = tokens.Query.Tokens.RollbackToken
	return nil
}

type tokensResponse struct {
	Query struct {
		Tokens struct {
			LoginToken    string `json:"logintoken"`
			CSRFToken     string `json:"csrftoken"`
			RollbackToken string `json:"rollbacktoken"`
		} `json:"tokens"`
	} `json:"query"`
}

func (m *MediaWiki) get(ctx context.Context, step string, params url.Values, out any) error {
	query := maps.Clone(params)
	query.Set("format", "json")
	query.Set("formatversion", "2")
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, m.apiURL+"?"+query.Encode(), nil)
	if err != nil {
		return &RemoteError{Action: step, Err: err}
	}
	return m.do(request, step, out)
}

func (m *MediaWiki) post(ctx context.Context, step string, form url.Values, out any) error {
	body := maps.Clone(form)
	body.Set("format", "json")
	body.Set("formatversion", "2")
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, strings.NewReader(body.Encode()))
	if err != nil {
		return &RemoteError{Action: step, Err: err}
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return m.do(request, step, out)
}

// do sends request and decodes a successful body into out. Non-2xx
// statuses and API error objects become *RemoteError.
func (m *MediaWiki) do(request *http.Request, step string, out any) error {
	if m.userAgent != "" {
		request.Header.Set("User-Agent", m.userAgent)
	}
	response, err := m.httpClient.Do(request)
	if err != nil {
		return &RemoteError{Action: step, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return &RemoteError{Action: step, StatusCode: response.StatusCode, Info: netutil.ErrorBody(response.Body)}
	}

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return &RemoteError{Action: step, StatusCode: response.StatusCode, Err: err}
	}

	var envelope struct {
		Error *struct {
			Code string `json:"code"`
			Info string `json:"info"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &RemoteError{Action: step, StatusCode: response.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if envelope.Error != nil {
		return &RemoteError{Action: step, StatusCode: response.StatusCode, Code: envelope.Error.Code, Info: envelope.Error.Info}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &RemoteError{Action: step, StatusCode: response.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

var _ Gateway = (*MediaWiki)(nil)
