package judge

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/sashabaranov/go-openai"

	"post-judge/model"
)

var (
	// ErrMalformedResponse means the provider reply could not be decoded at all.
	ErrMalformedResponse = errors.New("malformed provider response")
	// ErrInvalidShape means the reply decoded but broke the scoring contract.
	ErrInvalidShape = errors.New("invalid verdict shape")
	// ErrMissingAPIKey means no credential is configured for a provider.
	ErrMissingAPIKey = errors.New("api key not set")
)

// StatusError is a non-2xx HTTP reply from a provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.StatusCode)
}

// Classify maps an error from a provider call to an ErrorCode.
func Classify(err error) model.ErrorCode {
	if err == nil {
		return ""
	}

	var (
		syntaxErr  *json.SyntaxError
		typeErr    *json.UnmarshalTypeError
		statusErr  *StatusError
		apiErr     *openai.APIError
		reqErr     *openai.RequestError
		netErr     net.Error
		dnsErr     *net.DNSError
		opErr      *net.OpError
		certErr    *tls.CertificateVerificationError
		recordErr  tls.RecordHeaderError
		authErr    x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
	)

	switch {
	case errors.Is(err, ErrInvalidShape), errors.Is(err, ErrMalformedResponse),
		errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return model.ErrorInvalidResponse
	case errors.Is(err, context.DeadlineExceeded):
		return model.ErrorTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return model.ErrorTimeout
	case errors.As(err, &statusErr), errors.As(err, &apiErr):
		return model.ErrorProviderError
	case errors.As(err, &reqErr) && reqErr.HTTPStatusCode >= 400:
		return model.ErrorProviderError
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.As(err, &dnsErr), errors.As(err, &opErr),
		errors.As(err, &certErr), errors.As(err, &recordErr),
		errors.As(err, &authErr), errors.As(err, &hostErr), errors.As(err, &invalidErr):
		return model.ErrorConnectionFailed
	}
	return model.ErrorUnknown
}

// retryable reports whether another attempt could plausibly succeed.
// Shape errors and missing keys are final.
func retryable(err error) bool {
	if errors.Is(err, ErrInvalidShape) || errors.Is(err, ErrMissingAPIKey) {
		return false
	}
	switch Classify(err) {
	case model.ErrorTimeout, model.ErrorConnectionFailed, model.ErrorProviderError, model.ErrorInvalidResponse:
		return true
	}
	return false
}
