package testing

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// CompareResults marshals results and compares them with testdata/<name>.json.
// The actual output is written next to it as testdata/<name>.output.json.
func CompareResults(t *testing.T, results any, name string) {
	t.Helper()
	bs, err := json.MarshalIndent(results, "", "  ")
	require.NoError(t, err)
	outputName := filepath.Join("testdata", fmt.Sprintf("%v.output.json", name))
	require.NoError(t, os.WriteFile(outputName, bs, 0644))
	expected, err := os.ReadFile(filepath.Join("testdata", fmt.Sprintf("%v.json", name)))
	require.NoError(t, err)
	require.JSONEq(t, string(expected), string(bs))
}
