// Package transport delivers encoded payloads to a results destination: a local file or an http(s) results server.
//
// Payloads are sent one at a time. A payload posted over http(s) is retried with exponential backoff
// until it's accepted or the retry budget is exhausted, at which point the rest of the batch is abandoned.
// Payloads accepted before the failing one are not rolled back.
package transport

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/talos-perf/talos/internal/common/taloserrors"
	"github.com/talos-perf/talos/internal/talos/metrics"
)

// Payload is one encoded result, e.g., the graphserver text of a single test or counter.
type Payload struct {
	// Test or counter name. Only used for logging.
	Name string
	Data []byte
}

type Config struct {
	// Number of times a payload is posted before giving up.
	RetryAttempts uint `validate:"gte=1"`
	// Wait after the first failed attempt. Doubles after every further failure.
	RetryBackoff time.Duration `validate:"gte=0"`
	// Timeout of a single http request. Zero means no timeout.
	Timeout time.Duration `validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		RetryAttempts: 5,
		RetryBackoff:  5 * time.Second,
		Timeout:       time.Minute,
	}
}

// RetryObserver is called after a failed attempt, right before sleeping for wait.
// attempt is 1-based.
type RetryObserver func(attempt uint, err error, wait time.Duration)

type Client struct {
	config     Config
	httpClient *http.Client
	metrics    *metrics.Metrics
	// OnRetry, if set, is called before every backoff sleep.
	OnRetry RetryObserver
}

// NewClient returns a client that records to m, or to a new set of metrics if m is nil.
// A RetryAttempts of zero means a single attempt.
func NewClient(config Config, m *metrics.Metrics) *Client {
	if m == nil {
		m = metrics.New()
	}
	if config.RetryAttempts == 0 {
		config.RetryAttempts = 1
	}
	httpClient := cleanhttp.DefaultClient()
	httpClient.Timeout = config.Timeout
	return &Client{
		config:     config,
		httpClient: httpClient,
		metrics:    m,
	}
}

// Send delivers the payloads to destination and returns the concatenated server responses.
//
// file:// destinations are overwritten with the payloads, written back to back; nothing is retried
// and the returned response is empty. http:// and https:// destinations receive one multipart POST per payload.
// Any other scheme results in an ErrUnsupportedDestination.
func (c *Client) Send(ctx context.Context, payloads []Payload, destination string) (string, error) {
	u, err := url.Parse(destination)
	if err != nil {
		return "", errors.WithStack(&taloserrors.ErrInvalidArgument{
			Subsystem: "transport",
			Name:      "destination",
			Value:     destination,
			Message:   err.Error(),
		})
	}
	switch u.Scheme {
	case "file":
		return "", c.writeFile(FilePath(u), payloads)
	case "http", "https":
		var response strings.Builder
		for i, payload := range payloads {
			body, err := c.post(ctx, payload, destination, i, len(payloads))
			if err != nil {
				return response.String(), err
			}
			response.WriteString(body)
		}
		return response.String(), nil
	default:
		return "", errors.WithStack(&taloserrors.ErrUnsupportedDestination{Subsystem: "transport", Url: destination})
	}
}

// FilePath returns the local path of a file:// url.
// Both file:///abs/path and the relative form file://results.out are accepted.
func FilePath(u *url.URL) string {
	return u.Host + u.Path
}

func (c *Client) writeFile(path string, payloads []Payload) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "transport")
	}
	defer f.Close()
	for _, payload := range payloads {
		if _, err := f.Write(payload.Data); err != nil {
			return errors.Wrapf(err, "transport: writing %s to %s", payload.Name, path)
		}
		c.metrics.BytesSent.Add(float64(len(payload.Data)))
	}
	log.WithField("path", path).Debugf("wrote %d payloads", len(payloads))
	return errors.Wrap(f.Close(), "transport")
}

func (c *Client) post(ctx context.Context, payload Payload, destination string, index, total int) (string, error) {
	var response string
	var attempts uint
	err := retry.Do(
		func() error {
			attempts++
			log.WithFields(log.Fields{
				"test":    payload.Name,
				"url":     destination,
				"attempt": attempts,
				"size":    humanize.Bytes(uint64(len(payload.Data))),
			}).Debugf("Posting result %d of %d", index+1, total)
			body, err := c.PostMultipart(ctx, destination, "filename", "data_string", payload.Data)
			if err != nil {
				c.metrics.PostAttempts.WithLabelValues("failure").Inc()
				return err
			}
			c.metrics.PostAttempts.WithLabelValues("success").Inc()
			c.metrics.BytesSent.Add(float64(len(payload.Data)))
			response = body
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.config.RetryAttempts),
		retry.Delay(c.config.RetryBackoff),
		retry.DelayType(c.backoff),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(error) bool {
			return ctx.Err() == nil
		}),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).WithField("url", destination).Warnf("attempt %d of %d failed", n+1, c.config.RetryAttempts)
		}),
	)
	if err != nil {
		return "", errors.WithStack(&taloserrors.ErrRetriesExhausted{Attempts: attempts, Err: err})
	}
	return response, nil
}

// backoff returns the wait before the attempt following failed attempt n (0-based).
func (c *Client) backoff(n uint, err error, _ *retry.Config) time.Duration {
	wait := BackoffDelay(c.config.RetryBackoff, n+1)
	log.Infof("waiting %s before retrying", wait)
	if c.OnRetry != nil {
		c.OnRetry(n+1, err, wait)
	}
	return wait
}

// BackoffDelay returns the wait after the n-th (1-based) failed attempt, given the initial backoff.
func BackoffDelay(base time.Duration, n uint) time.Duration {
	if n == 0 {
		return 0
	}
	return base << (n - 1)
}

// PostMultipart posts data as a file field of a multipart form and returns the response body.
// Responses with a non-2xx status are returned as errors.
func (c *Client) PostMultipart(ctx context.Context, destination, field, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if _, err := part.Write(data); err != nil {
		return "", errors.WithStack(err)
	}
	if err := w.Close(); err != nil {
		return "", errors.WithStack(err)
	}
	return c.do(ctx, destination, w.FormDataContentType(), &body)
}

// PostForm posts value as a single urlencoded form field and returns the response body.
func (c *Client) PostForm(ctx context.Context, destination, field string, value []byte) (string, error) {
	form := url.Values{field: []string{string(value)}}
	return c.do(ctx, destination, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

func (c *Client) do(ctx context.Context, destination, contentType string, body io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, body)
	if err != nil {
		return "", errors.WithStack(err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.Errorf("%s returned %s: %s", destination, resp.Status, respBody)
	}
	return string(respBody), nil
}
