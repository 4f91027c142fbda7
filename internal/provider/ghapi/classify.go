package ghapi

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/google/go-github/v69/github"

	"github.com/dwsmith1983/cancel-workflow/pkg/types"
)

// ClassifyFailure categorizes a failed API call. Client errors other than
// rate limiting are permanent; server errors, rate limits and network
// errors are transient.
func ClassifyFailure(err error) types.FailureCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return types.FailureTimeout
	}

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return types.FailureTransient
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		code := respErr.Response.StatusCode
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return types.FailurePermanent
		}
	}

	return types.FailureTransient
}
