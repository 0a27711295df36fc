package backend

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/records"
	"github.com/spigell/hirewire/internal/utils"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"

	preferRepresentation = "return=representation"
	preferMerge          = "resolution=merge-duplicates,return=representation"
	preferMinimal        = "return=minimal"
)

// StatusError is a non-2xx answer from the record store.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status: %d %s", e.Status, e.Message)
}

// buildParams turns a tagged query struct into PostgREST filters.
func buildParams(query any) (url.Values, bool) {
	q := url.Values{}
	for _, f := range records.Filters(query) {
		if f.Empty() {
			return nil, false
		}
		if f.Many {
			quoted := make([]string, 0, len(f.Values))
			for _, v := range f.Values {
				quoted = append(quoted, `"`+strings.ReplaceAll(v, `"`, `\"`)+`"`)
			}
			q.Set(f.Column, "in.("+strings.Join(quoted, ",")+")")
			continue
		}
		q.Set(f.Column, "eq."+f.Values[0])
	}

	return q, true
}

// getRows reads rows of table matching q.
func (c *Client) getRows(ctx context.Context, table string, q url.Values) ([]records.Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tableURL(table), nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = q.Encode()

	var rows []records.Row
	if err := c.do(req, &rows); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}

	c.logger.Debug("got rows", zap.String("table", table), zap.Int("count", len(rows)))
	return rows, nil
}

// send issues a write with a JSON body. Representation rows are decoded into
// target when it is not nil.
func (c *Client) send(ctx context.Context, method, table string, q url.Values, prefer string, payload any, target any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.tableURL(table), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}
	req.Header.Set("Prefer", prefer)

	if err := c.do(req, target); err != nil {
		return fmt.Errorf("%s %s: %w", strings.ToLower(method), table, err)
	}
	return nil
}

func (c *Client) do(req *http.Request, target any) error {
	c.setHeaders(req)

	c.logger.Debug("make request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gz.Close()
		reader = gz
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, Message: errorMessage(data)}
	}

	if target == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	return json.Unmarshal(data, target)
}

func (c *Client) setHeaders(req *http.Request) {
	bearer := c.anonKey
	if c.tokens != nil {
		if token, err := c.tokens.AccessToken(); err == nil && token != "" {
			bearer = token
		}
	}

	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", bearer))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)
	req.Header.Set("User-Agent", c.UserAgent)
}

func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Details string `json:"details"`
		Hint    string `json:"hint"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return utils.FirstNonEmpty(strings.TrimSpace(payload.Message+" "+payload.Details), payload.Hint)
	}
	return utils.TruncateForLog(strings.TrimSpace(string(body)), 200)
}

// payload marshals a row and drops the columns the store fills in itself
// when they are empty.
func payload(row any, generated ...string) (map[string]any, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}

	for _, column := range generated {
		switch v := out[column].(type) {
		case nil:
			delete(out, column)
		case string:
			if v == "" || v == zeroTime {
				delete(out, column)
			}
		}
	}

	return out, nil
}

const zeroTime = "0001-01-01T00:00:00Z"
