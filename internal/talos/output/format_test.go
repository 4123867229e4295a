package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSizeFormat(t *testing.T) {
	assert.Equal(t, "0.0B", FileSizeFormat(0))
	assert.Equal(t, "1.0B", FileSizeFormat(1))
	assert.Equal(t, "1023.0B", FileSizeFormat(1023))
	assert.Equal(t, "13.0KB", FileSizeFormat(13312))
	assert.Equal(t, "4.1MB", FileSizeFormat(4.1*1024*1024))
	assert.Equal(t, "3.0GB", FileSizeFormat(3*1024*1024*1024))
}

func TestShortName(t *testing.T) {
	assert.Equal(t, "memset", ShortName("Working Set"))
	assert.Equal(t, "%cpu", ShortName("% Processor Time"))
	assert.Equal(t, "main_rss", ShortName("Main_RSS"))
	assert.Equal(t, "shutdown", ShortName("shutdown"))
}

func TestIsMemoryMetric(t *testing.T) {
	for _, name := range []string{"ts_rss", "tp5_memset_nochrome", "tp5_content_rss", "ts_pbytes"} {
		assert.True(t, IsMemoryMetric(name), name)
	}
	for _, name := range []string{"ts", "tp5_%cpu", "ts_shutdown"} {
		assert.False(t, IsMemoryMetric(name), name)
	}
}

func TestResponsivenessMetric(t *testing.T) {
	assert.Equal(t, int64(5), ResponsivenessMetric([]float64{1000, 2000}))
	assert.Equal(t, int64(5), ResponsivenessMetric([]float64{2000, 1000}))
	assert.Equal(t, int64(0), ResponsivenessMetric(nil))
	// 0.25 + 0.36 = 0.61
	assert.Equal(t, int64(1), ResponsivenessMetric([]float64{500, 600}))
}

func TestResponsivenessMetric_OrderIndependent(t *testing.T) {
	values := []float64{17, 1500, 250, 3000, 42, 999}
	expected := ResponsivenessMetric(values)
	permutation := make([]float64, len(values))
	for shift := range values {
		for i := range values {
			permutation[i] = values[(i+shift)%len(values)]
		}
		assert.Equal(t, expected, ResponsivenessMetric(permutation))
		for i, j := 0, len(permutation)-1; i < j; i, j = i+1, j-1 {
			permutation[i], permutation[j] = permutation[j], permutation[i]
		}
		assert.Equal(t, expected, ResponsivenessMetric(permutation))
	}
}

func TestIsResponsivenessTest(t *testing.T) {
	assert.True(t, IsResponsivenessTest("tresponsiveness"))
	assert.True(t, IsResponsivenessTest("responsiveness_rss"))
	assert.False(t, IsResponsivenessTest("ts_paint"))
}

func TestEnvelope_RoundTrip(t *testing.T) {
	tests := map[string]Envelope{
		"values": {
			Kind:     Values,
			Metadata: []string{"qm-pxp01", "tp5_nochrome", "mozilla-central", "abc123", "20120101", "1325376000"},
			Lines:    []string{"0,100.00,www.example.com", "1,200.50,www.mozilla.org"},
		},
		"average": {
			Kind:     Average,
			Metadata: []string{"qm-pxp01", "tresponsiveness", "mozilla-central", "abc123", "20120101", "1325376000"},
			Lines:    []string{"5"},
		},
		"amo without data": {
			Kind:     AMO,
			Metadata: []string{"Firefox", "14.0", "addon@example.com"},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			data := tc.Encode()
			assert.Equal(t, "START\n", string(data[:6]))
			assert.Equal(t, "END\n", string(data[len(data)-4:]))

			actual, err := ParseEnvelope(data)
			require.NoError(t, err)
			assert.Equal(t, tc, actual)
		})
	}
}

func TestEnvelope_Encode(t *testing.T) {
	e := Envelope{Kind: Values, Metadata: []string{"a", "b"}, Lines: []string{"0,1.00,NULL"}}
	assert.Equal(t, "START\nVALUES\na,b\n0,1.00,NULL\nEND\n", string(e.Encode()))
}

func TestParseEnvelope_Malformed(t *testing.T) {
	_, err := ParseEnvelope([]byte("START\nVALUES\n"))
	assert.Error(t, err)
	_, err = ParseEnvelope([]byte("BEGIN\nVALUES\na\nEND\n"))
	assert.Error(t, err)
}
