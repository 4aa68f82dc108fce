package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fourPointsJSONL = `{"id":"a","vector":[0,0],"metadata":{"side":"left"}}
{"id":"b","vector":[0,1],"metadata":{"side":"left"}}
{"id":"c","vector":[10,10],"metadata":{"side":"right"}}
{"id":"d","vector":[10,11],"metadata":{"side":"right"}}
`

// run executes ivfctl with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_Workflow(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "points.jsonl", fourPointsJSONL)

	for _, backend := range []string{"local", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(dir, backend+"-store")
			if backend == "sqlite" {
				path = filepath.Join(dir, "blobs.db")
			}
			common := []string{"--store", backend, "--path", path}

			out, err := run(t, append([]string{"train", "docs", "--file", data, "--nlist", "2"}, common...)...)
			require.NoError(t, err)
			assert.Contains(t, out, "trained docs: nlist=2 dimension=2 metric=l2 vectors=4 added=0")

			out, err = run(t, append([]string{"add", "docs", "--file", data}, common...)...)
			require.NoError(t, err)
			assert.Contains(t, out, "added 4 records to docs")

			out, err = run(t, append([]string{"search", "docs", "--vector", "0,0", "-k", "2"}, common...)...)
			require.NoError(t, err)
			lines := strings.Split(strings.TrimSpace(out), "\n")
			require.Len(t, lines, 2)
			assert.Equal(t, "1\ta\t0.000000", lines[0])
			assert.Equal(t, "2\tb\t1.000000", lines[1])

			out, err = run(t, append([]string{"search", "docs", "--vector", "0,0", "-k", "4", "--nprobe", "2", "--filter", "side=right"}, common...)...)
			require.NoError(t, err)
			assert.Contains(t, out, "\tc\t")
			assert.NotContains(t, out, "\ta\t")

			out, err = run(t, append([]string{"stats", "docs"}, common...)...)
			require.NoError(t, err)
			var st statsView
			require.NoError(t, json.Unmarshal([]byte(out), &st))
			assert.Equal(t, "trained", st.State)
			assert.Equal(t, 4, st.TotalVectors)
			assert.Equal(t, 2, st.NList)

			out, err = run(t, append([]string{"list"}, common...)...)
			require.NoError(t, err)
			assert.Equal(t, "docs\n", out)
		})
	}
}

func TestCLI_TrainWithAdd(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "points.jsonl", fourPointsJSONL)
	common := []string{"--path", filepath.Join(dir, "store")}

	out, err := run(t, append([]string{"train", "docs", "-f", data, "--nlist", "2", "--metric", "dot", "--add"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "metric=dot vectors=4 added=4")

	out, err = run(t, append([]string{"search", "docs", "-v", "1,1", "-k", "1", "--nprobe", "2", "--json"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `"DocID": "d"`)
}

func TestCLI_Errors(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "points.jsonl", fourPointsJSONL)
	common := []string{"--path", filepath.Join(dir, "store")}

	_, err := run(t, "train", "docs")
	assert.ErrorContains(t, err, `required flag(s) "file" not set`)

	_, err = run(t, append([]string{"train", "docs", "-f", data, "--nlist", "8"}, common...)...)
	assert.ErrorContains(t, err, "insufficient training data")

	_, err = run(t, append([]string{"search", "docs", "-v", "0,0"}, common...)...)
	assert.ErrorContains(t, err, "not trained")

	_, err = run(t, append([]string{"search", "docs", "-v", "0,zero"}, common...)...)
	assert.ErrorContains(t, err, "invalid --vector")

	out, err := run(t, append([]string{"add", "docs", "-f", data}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "not trained; 4 records ignored")

	_, err = run(t, "list", "--config", filepath.Join(dir, "missing.toml"))
	assert.ErrorContains(t, err, "reading config")
}
