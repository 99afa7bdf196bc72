package syntax

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	src := []byte("{\"a\": 1}")
	tree, err := NewRegistry().Parse("json", src)
	require.NoError(t, err)
	defer tree.Close()

	var out strings.Builder
	require.NoError(t, Dump(&out, tree.RootNode(), src))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Equal(t, "document [0:0]", lines[0])
	assert.Equal(t, "  object [0:0]", lines[1])
	assert.Equal(t, "    pair [0:1]", lines[2])
	assert.Equal(t, "      string [0:1]", lines[3])
	assert.Equal(t, "      number [0:6] \"1\"", lines[len(lines)-1])
}
