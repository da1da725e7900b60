package instrumentation

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.ServiceName != "inboxsweeper" {
		t.Errorf("ServiceName = %q, want inboxsweeper", config.ServiceName)
	}
	if !config.Enabled {
		t.Error("instrumentation should be enabled by default")
	}
	if config.MetricsExporter != ExporterPrometheus {
		t.Errorf("MetricsExporter = %q, want prometheus", config.MetricsExporter)
	}
	if config.TracingExporter != ExporterNone {
		t.Errorf("TracingExporter = %q, want none", config.TracingExporter)
	}
	if config.TraceSamplingRate != 0.1 {
		t.Errorf("TraceSamplingRate = %f, want 0.1", config.TraceSamplingRate)
	}
	if config.DetailedLabels {
		t.Error("DetailedLabels should be disabled by default")
	}
}

func TestDefaultConfig_EnvOverrides(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "custom-service")
	t.Setenv("INSTRUMENTATION_ENABLED", "false")
	t.Setenv("METRICS_EXPORTER", "stdout")
	t.Setenv("METRICS_DETAILED_LABELS", "true")

	config := DefaultConfig()

	if config.ServiceName != "custom-service" {
		t.Errorf("ServiceName = %q, want custom-service", config.ServiceName)
	}
	if config.Enabled {
		t.Error("INSTRUMENTATION_ENABLED=false not honored")
	}
	if config.MetricsExporter != ExporterStdout {
		t.Errorf("MetricsExporter = %q, want stdout", config.MetricsExporter)
	}
	if !config.DetailedLabels {
		t.Error("METRICS_DETAILED_LABELS=true not honored")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "valid defaults",
			config: Config{MetricsExporter: ExporterPrometheus, TracingExporter: ExporterNone, TraceSamplingRate: 0.1},
		},
		{
			name:    "sampling rate too high",
			config:  Config{MetricsExporter: ExporterPrometheus, TracingExporter: ExporterNone, TraceSamplingRate: 1.5},
			wantErr: true,
		},
		{
			name:    "sampling rate negative",
			config:  Config{MetricsExporter: ExporterPrometheus, TracingExporter: ExporterNone, TraceSamplingRate: -0.1},
			wantErr: true,
		},
		{
			name:    "invalid metrics exporter",
			config:  Config{MetricsExporter: "statsd", TracingExporter: ExporterNone},
			wantErr: true,
		},
		{
			name:    "invalid tracing exporter",
			config:  Config{MetricsExporter: ExporterPrometheus, TracingExporter: "jaeger"},
			wantErr: true,
		},
		{
			name:    "otlp metrics without endpoint",
			config:  Config{MetricsExporter: ExporterOTLP, TracingExporter: ExporterNone},
			wantErr: true,
		},
		{
			name:    "otlp tracing without endpoint",
			config:  Config{MetricsExporter: ExporterPrometheus, TracingExporter: ExporterOTLP},
			wantErr: true,
		},
		{
			name:   "otlp with endpoint",
			config: Config{MetricsExporter: ExporterOTLP, TracingExporter: ExporterOTLP, OTLPEndpoint: "localhost:4318"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
