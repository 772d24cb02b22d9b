package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMeterProvider_ExposesDAOInstruments(t *testing.T) {
	mp, err := InitMeterProvider(Config{ServiceName: "pruebarest", Environment: "test"})
	require.NoError(t, err)
	require.NotNil(t, mp.Exporter())
	t.Cleanup(func() { _ = mp.Shutdown(context.Background(), discardLogger()) })

	m, err := InitMetrics(discardLogger())
	require.NoError(t, err)
	assert.NotNil(t, m.statementDuration)
	assert.NotNil(t, m.activeSessions)
}

func TestNewResource(t *testing.T) {
	res, err := newResource(Config{ServiceName: "pruebarest", ServiceVersion: "1.2.3", Environment: "staging"})
	require.NoError(t, err)

	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "pruebarest", attrs["service.name"])
	assert.Equal(t, "1.2.3", attrs["service.version"])
	assert.Equal(t, "staging", attrs["deployment.environment"])
}

func TestOTLPExporterConfigSwitches(t *testing.T) {
	tests := []struct {
		name      string
		cfg       OTLPExporterConfig
		wantGzip  bool
		wantRetry bool
	}{
		{name: "defaults off", cfg: OTLPExporterConfig{}},
		{name: "gzip", cfg: OTLPExporterConfig{Compression: "gzip"}, wantGzip: true},
		{name: "no compression", cfg: OTLPExporterConfig{Compression: "none"}},
		{name: "retry", cfg: OTLPExporterConfig{RetryEnabled: true, RetryMaxAttempts: 3}, wantRetry: true},
		{name: "retry without attempts", cfg: OTLPExporterConfig{RetryEnabled: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantGzip, tt.cfg.gzip())
			assert.Equal(t, tt.wantRetry, tt.cfg.retry())
		})
	}
}

func TestParseOTLPProtocol(t *testing.T) {
	tests := []struct {
		in      string
		want    otlpProtocol
		wantErr bool
	}{
		{in: "", want: otlpProtocolGRPC},
		{in: "grpc", want: otlpProtocolGRPC},
		{in: " HTTP ", want: otlpProtocolHTTP},
		{in: "thrift", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseOTLPProtocol(tt.in)
		if tt.wantErr {
			assert.ErrorContains(t, err, "unsupported OTLP protocol", tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestBuildTLSConfigErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not-a-cert"), 0o600))

	tests := []struct {
		name    string
		cfg     OTLPExporterConfig
		wantErr string
	}{
		{
			name:    "missing CA file",
			cfg:     OTLPExporterConfig{TLSCertFile: filepath.Join(dir, "missing.pem")},
			wantErr: "failed to read OTLP TLS CA file",
		},
		{
			name:    "CA not PEM",
			cfg:     OTLPExporterConfig{TLSCertFile: garbage},
			wantErr: "failed to parse OTLP TLS CA file",
		},
		{
			name:    "client cert without key",
			cfg:     OTLPExporterConfig{TLSClientCertFile: garbage},
			wantErr: "OTLP TLS client cert and key must both be set",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildTLSConfig(tt.cfg)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func sampleDecision(s sdktrace.Sampler, parent context.Context, id byte) sdktrace.SamplingDecision {
	return s.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: parent,
		TraceID:       trace.TraceID{id},
		Name:          "dao.select",
	}).Decision
}

func remoteParent(id byte, sampled bool) context.Context {
	cfg := trace.SpanContextConfig{TraceID: trace.TraceID{id}, SpanID: trace.SpanID{id}, Remote: true}
	if sampled {
		cfg.TraceFlags = trace.FlagsSampled
	}
	return trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(cfg))
}

func TestTraceSamplerForRatio(t *testing.T) {
	assert.Equal(t, sdktrace.Drop, sampleDecision(traceSamplerForRatio(0), context.Background(), 1))
	assert.Equal(t, sdktrace.RecordAndSample, sampleDecision(traceSamplerForRatio(1), context.Background(), 2))

	half := traceSamplerForRatio(0.5)
	assert.Equal(t, sdktrace.RecordAndSample, sampleDecision(half, remoteParent(3, true), 4))
	assert.Equal(t, sdktrace.Drop, sampleDecision(half, remoteParent(5, false), 6))
}
