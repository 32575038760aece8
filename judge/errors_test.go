package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"

	"post-judge/model"
)

func TestClassify(t *testing.T) {
	var syntaxErr error
	var v map[string]any
	syntaxErr = json.Unmarshal([]byte("{"), &v)

	tests := []struct {
		name string
		err  error
		want model.ErrorCode
	}{
		{"deadline", context.DeadlineExceeded, model.ErrorTimeout},
		{"wrapped deadline", fmt.Errorf("send request: %w", context.DeadlineExceeded), model.ErrorTimeout},
		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, model.ErrorConnectionFailed},
		{"dns", &net.DNSError{Err: "no such host", Name: "example.invalid", IsNotFound: true}, model.ErrorConnectionFailed},
		{"dns timeout", &net.DNSError{Err: "timeout", Name: "example.invalid", IsTimeout: true}, model.ErrorTimeout},
		{"status", &StatusError{StatusCode: 429}, model.ErrorProviderError},
		{"openai api", &openai.APIError{HTTPStatusCode: 500, Message: "oops"}, model.ErrorProviderError},
		{"openai request", &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}, model.ErrorProviderError},
		{"json syntax", syntaxErr, model.ErrorInvalidResponse},
		{"shape", fmt.Errorf("%w: missing key", ErrInvalidShape), model.ErrorInvalidResponse},
		{"other", errors.New("boom"), model.ErrorUnknown},
		{"missing key", ErrMissingAPIKey, model.ErrorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}

	assert.Equal(t, model.ErrorCode(""), Classify(nil))
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(context.DeadlineExceeded))
	assert.True(t, retryable(&StatusError{StatusCode: 400}))
	assert.True(t, retryable(fmt.Errorf("%w: eof", ErrMalformedResponse)))
	assert.False(t, retryable(fmt.Errorf("%w: out of range", ErrInvalidShape)))
	assert.False(t, retryable(errors.New("boom")))
}
