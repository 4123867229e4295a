package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/pointer"
)

func TestParseAcknowledgement(t *testing.T) {
	response := "<html>\n" +
		"RETURN\tts: 563.52\tgraph.html#tests=[[83,1,1]]\n" +
		"RETURN\tts\t563.52\tgraph.html#tests=[[83,1,1]]\n" +
		"RETURN\tts_rss\t13312\tgraph.html#tests=[[84,1,1]]\r\n" +
		"some text with RETURN\tin the middle\n" +
		"</html>\n"
	ack, err := ParseAcknowledgement(response)
	require.NoError(t, err)
	assert.Equal(t, []Link{
		{Label: "ts: 563.52", Detail: "graph.html#tests=[[83,1,1]]"},
		{Label: "ts", Value: pointer.Float64(563.52), Detail: "graph.html#tests=[[83,1,1]]"},
		{Label: "ts_rss", Value: pointer.Float64(13312), Detail: "graph.html#tests=[[84,1,1]]"},
	}, ack.Links)
	assert.False(t, ack.Success())
}

func TestParseAcknowledgement_Empty(t *testing.T) {
	ack, err := ParseAcknowledgement("<html>nothing to see</html>")
	require.NoError(t, err)
	assert.True(t, ack.Empty())
}

func TestParseAcknowledgement_MalformedValue(t *testing.T) {
	_, err := ParseAcknowledgement("RETURN\tts\tfast\tgraph.html\n")
	assert.Error(t, err)
}

func TestParseAcknowledgement_Success(t *testing.T) {
	for _, response := range []string{"RETURN\tsuccess\n", "RETURN\tSUCCESS"} {
		ack, err := ParseAcknowledgement(response)
		require.NoError(t, err)
		assert.False(t, ack.Empty())
		assert.True(t, ack.Success(), response)
	}
}

func TestRenderLinks(t *testing.T) {
	ack := &Acknowledgement{Links: []Link{
		{Label: "details", Detail: "details.html"},
		{Label: "ts", Value: pointer.Float64(1), Detail: "graph.html#ts"},
		{Label: "ts_rss", Value: pointer.Float64(13312), Detail: "graph.html#ts_rss"},
	}}
	var out bytes.Buffer
	require.NoError(t, RenderLinks(&out, ack, "graphs.example.com"))

	expected := "RETURN:<br>" +
		"\nRETURN:<a href='http://graphs.example.com/graph.html#ts'>ts: 1</a><br>" +
		"\nRETURN:<a href='http://graphs.example.com/graph.html#ts_rss'>ts_rss: 13.0KB</a><br>" +
		"\nRETURN:<p style=\"font-size:smaller;\">Details:<br>" +
		"| <a href='http://graphs.example.com/details.html'>details</a> " +
		"|</p>\n"
	assert.Equal(t, expected, out.String())
}

func TestRenderLinks_NegativeValueIsDetail(t *testing.T) {
	ack := &Acknowledgement{Links: []Link{{Label: "ts", Value: pointer.Float64(-1), Detail: "graph.html"}}}
	var out bytes.Buffer
	require.NoError(t, RenderLinks(&out, ack, "graphs.example.com"))
	assert.Equal(t, "RETURN:<br>\nRETURN:<p style=\"font-size:smaller;\">Details:<br>| <a href='http://graphs.example.com/graph.html'>ts</a> |</p>\n", out.String())
}

func TestRenderAddon(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RenderAddon(&out, &Acknowledgement{Links: []Link{{Label: "Success"}}}, ""))
	assert.Equal(t, "RETURN:addon results inserted successfully\n", out.String())

	out.Reset()
	require.NoError(t, RenderAddon(&out, &Acknowledgement{Links: []Link{{Label: "failed"}}}, ""))
	assert.Empty(t, out.String())
}
