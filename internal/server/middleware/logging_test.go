package middleware

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientAddr(t *testing.T) {
	assert.Equal(t, "10.0.0.1", clientAddr("10.0.0.1", "192.168.1.5:4321"))
	assert.Equal(t, "10.0.0.1", clientAddr("10.0.0.1, 172.16.0.1", "192.168.1.5:4321"))
	assert.Equal(t, "192.168.1.5", clientAddr("", "192.168.1.5:4321"))
	assert.Equal(t, "localhost", clientAddr("", "localhost"))
}

func TestRequestLogging_PropagatesResultAndError(t *testing.T) {
	mw := RequestLogging(log.NewStdLogger(os.Stdout))

	handler := mw(func(ctx context.Context, req interface{}) (interface{}, error) {
		// The request ID is available to downstream handlers.
		assert.NotEmpty(t, RequestID(ctx))
		return "ok", nil
	})
	out, err := handler(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	failing := mw(func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, errors.New("boom")
	})
	_, err = failing(context.Background(), nil)
	assert.EqualError(t, err, "boom")
}

func TestRequestID_MissingFromContext(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
}
