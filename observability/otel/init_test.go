package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := parseHeaders(" api-key = secret ,broken,=novalue, tenant=syn ")
	require.Equal(t, map[string]string{"api-key": "secret", "tenant": "syn"}, headers)
	require.Empty(t, parseHeaders(""))
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{Traces: true})
	require.Error(t, err)
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "syndicated"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitInstallsRequestedSignals(t *testing.T) {
	ctx := context.Background()
	shutdown, err := Init(ctx, Config{
		ServiceName: "syndicated",
		Environment: "test",
		Endpoint:    "127.0.0.1:1",
		Insecure:    true,
		Headers:     "tenant=syn",
		Traces:      true,
		SampleRatio: 0.5,
	})
	require.NoError(t, err)
	_, span := Tracer("syndicated").Start(ctx, "deposit")
	require.True(t, span.SpanContext().IsValid())
	span.End()

	stopCtx, cancel := context.WithCancel(ctx)
	cancel()
	_ = shutdown(stopCtx)
}
