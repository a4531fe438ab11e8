package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/internal/config"
	"github.com/aretw0/loom/internal/logging"
	"github.com/aretw0/loom/internal/presentation/tui"
	"github.com/aretw0/loom/pkg/adapters/memory"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipelineYAML = `id: doc-1
blueprints:
  - name: main
    in: "{text: string, n: number}"
    out: "{result: string}"
    operators:
      - id: upper
        definition: uppercase
    connections:
      - from: in.text
        to: upper.in.value
`

var uppercase = domain.Definition{
	Name:     "uppercase",
	Category: "text",
	In:       schema.ExprOf(schema.MustParse("{value: string}")),
	Out:      schema.ExprOf(schema.MustParse("{value: string}")),
}

func TestMain(m *testing.M) {
	logger = logging.NewNop()
	os.Exit(m.Run())
}

func workspace(t *testing.T) *loom.Workspace {
	t.Helper()
	ws, err := loom.New("", loom.WithDefinitions(uppercase))
	require.NoError(t, err)
	t.Cleanup(ws.Close)
	return ws
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunValidate(t *testing.T) {
	ws := workspace(t)
	ctx := context.Background()
	good := writeFile(t, "good.yaml", pipelineYAML)
	bad := writeFile(t, "bad.json", `{"id":"x","blueprints":[{"name":"main","operators":[{"id":"up","definition":"upercase"}]}]}`)

	var buf bytes.Buffer
	ok, err := runValidate(ctx, &buf, ws, []string{good}, false, false)
	require.NoError(t, err)
	assert.True(t, ok, "warnings do not fail validation")
	assert.Contains(t, buf.String(), "output is never written")

	buf.Reset()
	ok, err = runValidate(ctx, &buf, ws, []string{good, bad}, true, false)
	require.NoError(t, err)
	assert.False(t, ok)

	var report map[string][]domain.Issue
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	require.NotEmpty(t, report[bad])
	assert.Equal(t, domain.SeverityError, report[bad][0].Severity)
	assert.Equal(t, "uppercase", report[bad][0].Hint)

	_, err = runValidate(ctx, &buf, ws, []string{filepath.Join(t.TempDir(), "missing.yaml")}, false, false)
	assert.Error(t, err)
}

func TestRunCheck(t *testing.T) {
	ws := workspace(t)
	path := writeFile(t, "doc.yaml", pipelineYAML)

	var buf bytes.Buffer
	out := tui.NewOutput(&buf, false)

	res, err := runCheck(out, ws, path, domain.ConnectionRequest{From: "in.n", To: "out.result"}, true)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Contains(t, buf.String(), "✘ rejected (type)")

	buf.Reset()
	res, err = runCheck(out, ws, path, domain.ConnectionRequest{Blueprint: "main", From: "upper.out.value", To: "out.result"}, true)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Contains(t, buf.String(), "✔ allowed")
	assert.Contains(t, buf.String(), "connected")

	doc, err := readDocument(path)
	require.NoError(t, err)
	assert.Contains(t, doc.Blueprints[0].Connections, domain.Connection{From: "upper.out.value", To: "out.result"})

	_, err = runCheck(out, ws, path, domain.ConnectionRequest{From: "in.txt", To: "out.result"}, false)
	assert.ErrorContains(t, err, "in.text")
}

func TestRunInspect(t *testing.T) {
	ws := workspace(t)
	path := writeFile(t, "doc.yaml", pipelineYAML)

	var buf bytes.Buffer
	require.NoError(t, runInspect(&buf, ws, path, "", "upper.in.value", false))
	assert.Contains(t, buf.String(), "# Port `upper.in.value`")
	assert.Contains(t, buf.String(), "↔ `in.text`")

	buf.Reset()
	require.NoError(t, runInspect(&buf, ws, path, "main", "", false))
	assert.Contains(t, buf.String(), "# Port `in`")
	assert.Contains(t, buf.String(), "# Port `out`")

	assert.Error(t, runInspect(&buf, ws, path, "other", "", false))
}

func TestRunGraph(t *testing.T) {
	ws := workspace(t)
	path := writeFile(t, "doc.yaml", pipelineYAML)

	var buf bytes.Buffer
	require.NoError(t, runGraph(context.Background(), &buf, ws, path, ""))
	assert.Contains(t, buf.String(), "graph LR")
	assert.Contains(t, buf.String(), `main_in -->|"text → value"| main_op_upper`)

	assert.Error(t, runGraph(context.Background(), &buf, ws, path, "nope"))
}

func TestRunWatch(t *testing.T) {
	lib := memory.NewLibrary(uppercase)
	ws, err := loom.New("", loom.WithLibrary(lib))
	require.NoError(t, err)
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, stop := ws.Subscribe()
	defer stop()
	require.NoError(t, ws.Watch(ctx))

	path := writeFile(t, "doc.yaml", pipelineYAML)
	var buf syncBuffer
	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, &buf, ws, changes, []string{path}) }()

	lib.Set()
	require.Eventually(t, func() bool {
		return bytes.Contains(buf.Bytes(), []byte("unknown definition"))
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, buf.String(), "Library reloaded: removed uppercase")

	cancel()
	require.NoError(t, <-done)
}

func TestOpenStore(t *testing.T) {
	store, locker, closeStore, err := openStore(config.StoreConfig{Kind: config.StoreFile, Dir: t.TempDir()})
	require.NoError(t, err)
	defer closeStore()
	assert.NotNil(t, store)
	assert.Nil(t, locker)

	_, _, _, err = openStore(config.StoreConfig{Kind: "postgres"})
	assert.Error(t, err)
}

func TestOpenStore_Middleware(t *testing.T) {
	dir := t.TempDir()
	store, _, closeStore, err := openStore(config.StoreConfig{
		Kind:       config.StoreFile,
		Dir:        dir,
		Redact:     []string{"(?i)token"},
		Encryption: config.EncryptionConfig{Key: "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="},
	})
	require.NoError(t, err)
	defer closeStore()

	ctx := context.Background()
	doc := &domain.Document{ID: "doc-1", Blueprints: []domain.Blueprint{{
		Name:      "main",
		Operators: []domain.Operator{{ID: "call", Properties: map[string]any{"token": "abc", "url": "x"}}},
	}}}
	require.NoError(t, store.Save(ctx, doc))

	loaded, err := store.Load(ctx, "doc-1")
	require.NoError(t, err)
	props := loaded.Blueprints[0].Operators[0].Properties
	assert.Equal(t, "***", props["token"])
	assert.Equal(t, "x", props["url"])

	_, _, _, err = openStore(config.StoreConfig{Kind: config.StoreMemory, Encryption: config.EncryptionConfig{Key: "c2hvcnQ="}})
	assert.Error(t, err)
}

func TestDescribeLibraryDiff(t *testing.T) {
	assert.Equal(t, "Library reloaded", describeLibraryDiff(domain.LibraryDiff{}))
	assert.Equal(t, "Library reloaded: added a, b; changed c",
		describeLibraryDiff(domain.LibraryDiff{Added: []string{"a", "b"}, Changed: []string{"c"}}))
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func (b *syncBuffer) String() string {
	return string(b.Bytes())
}
