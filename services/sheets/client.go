package sheetsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/iba-dss/hxd-api/core"
	"github.com/iba-dss/hxd-api/core/registration"
)

// ErrNotConfigured means the upstream URL or the shared secret is missing;
// nothing is forwarded in that case.
var ErrNotConfigured = errors.New("sheets: destination URL or API secret not configured")

// Client talks to the spreadsheet web app that stores registrations. The
// shared secret is injected server-side into every payload so it never
// reaches a browser.
type Client struct {
	conf *core.Config
	http *http.Client
}

var _ registration.SheetClient = (*Client)(nil)

func NewClient(conf *core.Config) *Client {
	return &Client{
		conf: conf,
		http: &http.Client{Timeout: conf.Sheets.Timeout},
	}
}

func (c *Client) Configured() bool {
	return c.conf.Sheets.URL != "" && c.conf.Sheets.APISecret != ""
}

// Forward injects the secret into the payload, POSTs it upstream and returns
// the upstream JSON response verbatim. No retries; retry policy belongs to
// the caller.
func (c *Client) Forward(ctx context.Context, payload map[string]interface{}) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	payload["apiSecret"] = c.conf.Sheets.APISecret
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encoding payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.conf.Sheets.URL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "forwarding request")
	}
	defer func() { _ = res.Body.Close() }()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading upstream response")
	}
	if !json.Valid(data) {
		return nil, errors.New("upstream returned a non-JSON response")
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, payload interface{}) (registration.Result, error) {
	m, err := toMap(payload)
	if err != nil {
		return registration.Result{}, err
	}

	data, err := c.Forward(ctx, m)
	if err != nil {
		return registration.Result{}, err
	}

	var res registration.Result
	if err = json.Unmarshal(data, &res); err != nil {
		return registration.Result{}, errors.Wrap(err, "decoding upstream response")
	}
	return res, nil
}

func (c *Client) SubmitRecord(ctx context.Context, rec registration.Record) (registration.Result, error) {
	return c.do(ctx, rec)
}

func (c *Client) EditLogin(ctx context.Context, cnic, key string) (registration.Result, error) {
	return c.do(ctx, map[string]interface{}{
		"action": "login",
		"cnic":   cnic,
		"key":    key,
	})
}

func (c *Client) EditUpdate(ctx context.Context, upd registration.EditUpdate) (registration.Result, error) {
	m, err := toMap(upd)
	if err != nil {
		return registration.Result{}, err
	}
	m["action"] = "update"

	data, err := c.Forward(ctx, m)
	if err != nil {
		return registration.Result{}, err
	}

	var res registration.Result
	if err = json.Unmarshal(data, &res); err != nil {
		return registration.Result{}, errors.Wrap(err, "decoding upstream response")
	}
	return res, nil
}

func toMap(v interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding payload")
	}
	var m map[string]interface{}
	if err = json.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrap(err, "encoding payload")
	}
	return m, nil
}
