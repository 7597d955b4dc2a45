package obs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitTracerNoneExporter(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracingConfig{Exporter: "none"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracerRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracer(context.Background(), TracingConfig{Exporter: "zipkin"})
	require.EqualError(t, err, "unsupported tracing exporter: zipkin")
}

func TestSQLOperation(t *testing.T) {
	require.Equal(t, "INSERT", operation("\n\t\tinsert into orders (id) values ($1)"))
	require.Equal(t, "query", operation("   "))
	long := make([]byte, 400)
	for i := range long {
		long[i] = 'x'
	}
	require.Len(t, truncateSQL(string(long)), 303)
}

func TestTruncateSQLCollapsesWhitespace(t *testing.T) {
	require.Equal(t, "SELECT id FROM orders WHERE id = $1", truncateSQL("SELECT id\n\t  FROM orders\n WHERE id = $1"))
}

func TestSamplingRatioClamp(t *testing.T) {
	require.Equal(t, 1.0, samplingRatio(0))
	require.Equal(t, 1.0, samplingRatio(3))
	require.Equal(t, 0.25, samplingRatio(0.25))
}
