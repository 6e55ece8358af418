package delivery

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const (
	UserAgent      = "MCCE-Producer-Service"
	RequestTimeout = 30 * time.Second
)

// Response is what a Poster reports back for a completed request
type Response struct {
	StatusCode int
	Body       []byte
}

// Poster can POST a JSON body and return the response status and body.
// A non-nil error means no response was received.
type Poster interface {
	PostJSON(ctx context.Context, url string, body []byte) (Response, error)
}

type HTTPPoster struct {
	Client *http.Client
}

func NewHTTPPoster(timeout time.Duration) *HTTPPoster {
	return &HTTPPoster{
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *HTTPPoster) PostJSON(ctx context.Context, url string, body []byte) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := p.Client.Do(req)
	if err != nil {
		return Response{}, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, errors.Wrap(err, "failed to read response body")
	}

	return Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}
