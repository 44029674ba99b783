package storage

import (
	"errors"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
)

const (
	// Every connect/read against a storage endpoint is bounded by this timeout.
	requestTimeout = 1 * time.Second

	// The storage client keeps at most this many concurrent connections to one
	// endpoint. Callers issuing more storage operations at once queue behind it.
	maxConnections = 10
)

// RetryPolicy describes how the storage client retries transient failures.
// Only responses in RetryableStatus are retried; 4xx responses are client
// errors, not transient, and surface immediately. Delays scale as
// BackoffFactor * 2^attempt.
type RetryPolicy struct {
	MaxAttempts     int
	BackoffFactor   time.Duration
	RetryableStatus []int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		BackoffFactor:   200 * time.Millisecond,
		RetryableStatus: []int{500, 502, 503, 504},
	}
}

// Retryable reports whether the error carries an HTTP status the policy
// considers transient. Errors without a status (e.g. request build failures)
// are never retried.
func (p RetryPolicy) Retryable(err error) bool {
	var resp interface{ HTTPStatusCode() int }
	if errors.As(err, &resp) {
		return slices.Contains(p.RetryableStatus, resp.HTTPStatusCode())
	}
	return false
}

// Delay returns the backoff before the given retry attempt, counted from 0.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.BackoffFactor * (1 << attempt)
}

// Build compiles the policy into a retryer the AWS SDK client runs internally,
// so every network call retries locally up to the budget before surfacing the
// transport error unmodified.
func (p RetryPolicy) Build() aws.Retryer {
	return retry.NewStandard(func(o *retry.StandardOptions) {
		o.MaxAttempts = p.MaxAttempts
		o.Backoff = policyBackoff{policy: p}
		o.Retryables = []retry.IsErrorRetryable{
			retry.IsErrorRetryableFunc(func(err error) aws.Ternary {
				if p.Retryable(err) {
					return aws.TrueTernary
				}
				return aws.FalseTernary
			}),
		}
	})
}

type policyBackoff struct {
	policy RetryPolicy
}

func (b policyBackoff) BackoffDelay(attempt int, err error) (time.Duration, error) {
	return b.policy.Delay(attempt), nil
}

func newHTTPClient() *awshttp.BuildableClient {
	return awshttp.NewBuildableClient().
		WithTimeout(requestTimeout).
		WithDialerOptions(func(d *net.Dialer) {
			d.Timeout = requestTimeout
		}).
		WithTransportOptions(func(tr *http.Transport) {
			tr.MaxConnsPerHost = maxConnections
			tr.MaxIdleConnsPerHost = maxConnections
			tr.ResponseHeaderTimeout = requestTimeout
		})
}
