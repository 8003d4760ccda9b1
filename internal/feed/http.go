package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"Canada28Bot/internal/model"
)

// HTTPFeed polls the public draw endpoint with a single GET per attempt.
type HTTPFeed struct {
	url    string
	client *resty.Client
}

// NewHTTPFeed creates a feed client with a fixed per-request timeout and optional proxy.
func NewHTTPFeed(url string, timeout time.Duration, proxyURL string) *HTTPFeed {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "Mozilla/5.0")
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	return &HTTPFeed{url: url, client: client}
}

func (f *HTTPFeed) Name() string { return "http" }

// Latest performs one request. Retrying is the caller's business.
func (f *HTTPFeed) Latest(ctx context.Context) (model.DrawResult, error) {
	resp, err := f.client.R().SetContext(ctx).Get(f.url)
	if err != nil {
		return model.DrawResult{}, errors.Wrap(err, "feed request")
	}
	if resp.IsError() {
		return model.DrawResult{}, errors.Errorf("feed: status %d", resp.StatusCode())
	}
	return ParseDraw(resp.Body())
}

// ParseDraw decodes a feed payload. issue and sum may be JSON numbers or strings.
func ParseDraw(body []byte) (model.DrawResult, error) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return model.DrawResult{}, errors.Wrapf(err, "feed: decode %q", truncate(body, 200))
	}

	issue, err := scalarString(raw, "issue")
	if err != nil {
		return model.DrawResult{}, err
	}
	sumText, err := scalarString(raw, "sum")
	if err != nil {
		return model.DrawResult{}, err
	}
	sum, err := strconv.Atoi(sumText)
	if err != nil {
		return model.DrawResult{}, errors.Errorf("feed: sum %q is not an integer", sumText)
	}
	ts, err := scalarString(raw, "time")
	if err != nil {
		return model.DrawResult{}, err
	}
	return model.DrawResult{Issue: issue, Sum: sum, Time: ts}, nil
}

// scalarString reads a string or number field as trimmed text.
func scalarString(raw map[string]json.RawMessage, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", errors.Errorf("feed: missing field %q", key)
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return "", errors.Errorf("feed: empty field %q", key)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String(), nil
	}
	return "", errors.Errorf("feed: field %q has unsupported value %s", key, string(v))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
