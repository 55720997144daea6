package ao

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	DryRunPath      = "dry-run"
	paramProcessID  = "process-id"
	clientUserAgent = "Scorekeeper AO Client/0.1"

	userAgent       = "User-Agent"
	contentType     = "Content-Type"
	applicationJson = "application/json"
)

// ErrProcessFailed is returned when the compute unit reports evaluation error.
var ErrProcessFailed = errors.New("process evaluation failed")

/*
Client talks to single compute/messenger unit endpoint.
*/
type Client struct {
	BaseUrl    *url.URL
	HttpClient http.Client

	dryRunURL *url.URL
}

/*
New returns client bound to the "baseUrl". Missing scheme defaults to https.
*/
func New(baseUrl string) (*Client, error) {
	if !strings.HasPrefix(baseUrl, "http://") && !strings.HasPrefix(baseUrl, "https://") {
		baseUrl = "https://" + baseUrl
	}
	u, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("error parsing AO client base URL (%s): %w", baseUrl, err)
	}
	// no client timeout, requests are bounded by the context of the attempt
	return &Client{
		BaseUrl:   u,
		dryRunURL: u.JoinPath(DryRunPath),
	}, nil
}

/*
DryRun evaluates the query against the current state of the process without
changing it.
*/
func (c *Client) DryRun(ctx context.Context, query *Query) (*Result, error) {
	if query == nil || query.Target == "" {
		return nil, errors.New("query target process must be assigned")
	}
	addr := *c.dryRunURL
	addr.RawQuery = url.Values{paramProcessID: []string{query.Target}}.Encode()

	var res *Result
	if err := c.post(ctx, &addr, query, &res); err != nil {
		return nil, fmt.Errorf("dry-run request failed: %w", err)
	}
	if res == nil {
		return nil, errors.New("dry-run request failed: empty response")
	}
	if res.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrProcessFailed, res.Error)
	}
	return res, nil
}

// Send delivers signed message to the process.
func (c *Client) Send(ctx context.Context, item *DataItem) (*Receipt, error) {
	if item == nil || len(item.Signature) == 0 {
		return nil, errors.New("message must be signed")
	}
	var res *Receipt
	if err := c.post(ctx, c.BaseUrl, item, &res); err != nil {
		return nil, fmt.Errorf("send message request failed: %w", err)
	}
	if res == nil || res.ID == "" {
		// some units answer with empty body, the id is known anyway
		return &Receipt{ID: item.ID}, nil
	}
	return res, nil
}

/*
post sends "body" as JSON to "addr" and decodes response body into "data"
(which has to be a pointer of the data type expected in the response).
Empty response body is not an error, "data" is left unchanged then.
*/
func (c *Client) post(ctx context.Context, addr *url.URL, body, data any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr.String(), bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("failed to build http request: %w", err)
	}
	req.Header.Set(userAgent, clientUserAgent)
	req.Header.Set(contentType, applicationJson)

	rsp, err := c.HttpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", c.BaseUrl.Host, err)
	}
	return decodeResponse(rsp, data)
}

/*
decodeResponse checks the status code of the response and decodes JSON body
into "data". Non 2xx responses are returned as *StatusError.
*/
func decodeResponse(rsp *http.Response, data any) error {
	defer rsp.Body.Close()

	if rsp.StatusCode < 200 || rsp.StatusCode > 299 {
		errInfo := &StatusError{Code: rsp.StatusCode}
		b, _ := io.ReadAll(io.LimitReader(rsp.Body, 4096))
		var er struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(b, &er) == nil {
			errInfo.Message = er.Error
			if errInfo.Message == "" {
				errInfo.Message = er.Message
			}
		}
		if errInfo.Message == "" {
			errInfo.Message = strings.TrimSpace(string(b))
		}
		return errInfo
	}

	err := json.NewDecoder(rsp.Body).Decode(data)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// StatusError is non-success HTTP response from the endpoint.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("unexpected status %d %s: %s", e.Code, http.StatusText(e.Code), e.Message)
}
