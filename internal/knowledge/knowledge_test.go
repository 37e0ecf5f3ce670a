package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/search-agent/internal/llm"
	"github.com/pdiddy/search-agent/pkg/types"
)

// --- test helpers ---

const airText = `Air quality in Istanbul is usually moderate. Traffic and heating in winter raise particulate levels across the city.

Ozone forms on hot, sunny afternoons when sunlight reacts with exhaust gases. Ozone levels peak in July.

The average summer temperature in Istanbul is 28 degrees Celsius, while winter days are around 9 degrees.`

func testStore(t *testing.T, embedder Embedder) (*Store, string) {
	t.Helper()
	tmpDir := t.TempDir()
	cfg := types.KnowledgeBaseConfig{
		KnowledgeDir: filepath.Join(tmpDir, "knowledge"),
		MaxResults:   5,
		ChunkSize:    160,
	}
	store, err := NewStore(cfg, embedder)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store, tmpDir
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadHelper(t *testing.T, store *Store, path string) LoadSummary {
	t.Helper()
	summary, err := store.Load(context.Background(), path, false, io.Discard)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return summary
}

// keywordEmbedder maps text to a small vector of topic indicators so
// similarity is predictable.
type keywordEmbedder struct {
	calls int
	err   error
}

var embedTopics = [][]string{
	{"temperature", "sıcaklı", "degrees", "derece"},
	{"ozone"},
	{"particulate", "traffic"},
}

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		v := make([]float32, len(embedTopics)+1)
		for d, words := range embedTopics {
			for _, w := range words {
				if strings.Contains(lower, w) {
					v[d]++
				}
			}
		}
		v[len(embedTopics)] = 0.01
		out[i] = v
	}
	return out, nil
}

// --- store ---

func TestNewStoreCreatesSchema(t *testing.T) {
	store, _ := testStore(t, nil)

	for _, table := range []string{"sources", "chunks", "chunks_fts"} {
		var name string
		err := store.db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestNewStoreCreatesDBFile(t *testing.T) {
	_, tmpDir := testStore(t, nil)

	dbPath := filepath.Join(tmpDir, "knowledge", indexDir, dbFile)
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestNewStoreReopen(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := types.KnowledgeBaseConfig{KnowledgeDir: tmpDir}
	for i := 0; i < 2; i++ {
		store, err := NewStore(cfg, nil)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		store.Close()
	}
}

// --- load ---

func TestLoad(t *testing.T) {
	store, tmpDir := testStore(t, nil)
	path := writeSource(t, tmpDir, "air.txt", airText)

	var out bytes.Buffer
	summary, err := store.Load(context.Background(), path, false, &out)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Chunks != 3 {
		t.Errorf("chunks = %d, want 3", summary.Chunks)
	}
	if summary.Skipped || summary.Updated {
		t.Errorf("unexpected summary flags: %+v", summary)
	}
	if !strings.Contains(out.String(), "indexed "+path+" (3 chunks)") {
		t.Errorf("output = %q", out.String())
	}

	sources, err := store.Sources(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 1 || sources[0].Path != path || sources[0].ChunkCount != 3 {
		t.Errorf("sources = %+v", sources)
	}

	chunks, err := store.Chunks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range chunks {
		if c.Seq != i {
			t.Errorf("chunk %d has seq %d", i, c.Seq)
		}
		if c.Embedded {
			t.Errorf("chunk %d marked embedded without an embedder", i)
		}
	}
}

func TestLoadMissingSource(t *testing.T) {
	store, tmpDir := testStore(t, nil)

	_, err := store.Load(context.Background(), filepath.Join(tmpDir, "nope.txt"), false, nil)
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("err = %v, want ErrSourceNotFound", err)
	}
}

func TestLoadDirectory(t *testing.T) {
	store, tmpDir := testStore(t, nil)

	if _, err := store.Load(context.Background(), tmpDir, false, nil); err == nil {
		t.Fatal("expected error for directory source")
	}
}

func TestLoadSkipsUnchanged(t *testing.T) {
	emb := &keywordEmbedder{}
	store, tmpDir := testStore(t, emb)
	path := writeSource(t, tmpDir, "air.txt", airText)

	loadHelper(t, store, path)
	summary := loadHelper(t, store, path)

	if !summary.Skipped {
		t.Error("second load was not skipped")
	}
	if emb.calls != 1 {
		t.Errorf("embedder called %d times, want 1", emb.calls)
	}
}

func TestLoadUpdatesChanged(t *testing.T) {
	store, tmpDir := testStore(t, nil)
	path := writeSource(t, tmpDir, "air.txt", airText)
	loadHelper(t, store, path)

	writeSource(t, tmpDir, "air.txt", "Only one paragraph now.")
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	summary := loadHelper(t, store, path)
	if !summary.Updated || summary.Chunks != 1 {
		t.Errorf("summary = %+v, want updated with 1 chunk", summary)
	}

	chunks, err := store.Chunks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || chunks[0].Content != "Only one paragraph now." {
		t.Errorf("chunks = %+v", chunks)
	}

	// FTS mirror follows the delete.
	matches, err := store.Retrieve(context.Background(), "ozone", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("stale FTS rows: %+v", matches)
	}
}

func TestLoadRecreate(t *testing.T) {
	store, tmpDir := testStore(t, nil)
	path := writeSource(t, tmpDir, "air.txt", airText)
	other := writeSource(t, tmpDir, "other.txt", "Unrelated notes.")
	loadHelper(t, store, path)
	loadHelper(t, store, other)

	var out bytes.Buffer
	summary, err := store.Load(context.Background(), path, true, &out)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped || summary.Updated {
		t.Errorf("summary = %+v, want fresh index", summary)
	}
	if !strings.Contains(out.String(), "cleared index") {
		t.Errorf("output = %q", out.String())
	}

	sources, err := store.Sources(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 1 || sources[0].Path != path {
		t.Errorf("sources after recreate = %+v", sources)
	}
}

func TestLoadWithEmbedder(t *testing.T) {
	emb := &keywordEmbedder{}
	store, tmpDir := testStore(t, emb)
	path := writeSource(t, tmpDir, "air.txt", airText)

	summary := loadHelper(t, store, path)
	if summary.Embedded != summary.Chunks {
		t.Errorf("embedded %d of %d chunks", summary.Embedded, summary.Chunks)
	}
	chunks, err := store.Chunks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range chunks {
		if !c.Embedded {
			t.Errorf("chunk %d not embedded", c.Seq)
		}
	}
}

func TestLoadEmbedderError(t *testing.T) {
	store, tmpDir := testStore(t, &keywordEmbedder{err: errors.New("model not pulled")})
	path := writeSource(t, tmpDir, "air.txt", airText)

	if _, err := store.Load(context.Background(), path, false, nil); err == nil {
		t.Fatal("expected embedding error")
	}
	sources, _ := store.Sources(context.Background())
	if len(sources) != 0 {
		t.Errorf("source recorded despite failure: %+v", sources)
	}
}

func TestLoadRecreateFailureKeepsIndex(t *testing.T) {
	emb := &keywordEmbedder{}
	store, tmpDir := testStore(t, emb)
	path := writeSource(t, tmpDir, "air.txt", airText)
	other := writeSource(t, tmpDir, "other.txt", "Unrelated notes.")
	loadHelper(t, store, path)
	loadHelper(t, store, other)

	before, err := store.Chunks(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	emb.err = errors.New("model not pulled")
	var out bytes.Buffer
	if _, err := store.Load(context.Background(), path, true, &out); err == nil {
		t.Fatal("expected embedding error")
	}
	if strings.Contains(out.String(), "cleared index") {
		t.Errorf("output = %q, want no clear on failure", out.String())
	}

	after, err := store.Chunks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Errorf("chunks after failed recreate = %d, want %d", len(after), len(before))
	}
	sources, _ := store.Sources(context.Background())
	if len(sources) != 2 {
		t.Errorf("sources after failed recreate = %+v", sources)
	}
}

func TestLoadEmbedsUnchangedSourceWithoutEmbeddings(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := types.KnowledgeBaseConfig{
		KnowledgeDir: filepath.Join(tmpDir, "knowledge"),
		ChunkSize:    160,
	}
	path := writeSource(t, tmpDir, "air.txt", airText)

	plain, err := NewStore(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	loadHelper(t, plain, path)
	plain.Close()

	emb := &keywordEmbedder{}
	store, err := NewStore(cfg, emb)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	summary := loadHelper(t, store, path)
	if summary.Skipped || !summary.Updated {
		t.Errorf("summary = %+v, want re-indexed", summary)
	}
	if emb.calls != 1 || summary.Embedded != summary.Chunks {
		t.Errorf("embedder calls = %d, embedded %d of %d", emb.calls, summary.Embedded, summary.Chunks)
	}

	// Now fully embedded, so the next load is skipped.
	if summary := loadHelper(t, store, path); !summary.Skipped {
		t.Errorf("third load = %+v, want skipped", summary)
	}
}

func TestFTSError(t *testing.T) {
	missing := errors.New("no such module: fts5")
	if err := ftsError(missing); !errors.Is(err, ErrFTS5Unavailable) {
		t.Errorf("ftsError(%v) = %v, want ErrFTS5Unavailable", missing, err)
	}
	other := errors.New("disk I/O error")
	if err := ftsError(other); err != other {
		t.Errorf("ftsError(%v) = %v, want unchanged", other, err)
	}
	if ftsError(nil) != nil {
		t.Error("ftsError(nil) != nil")
	}
}

func TestChunkIDStable(t *testing.T) {
	a := chunkID("air.txt", 0, "text")
	if a != chunkID("air.txt", 0, "text") {
		t.Error("chunk ID not stable")
	}
	if a == chunkID("air.txt", 1, "text") {
		t.Error("chunk ID ignores position")
	}
}

// --- retrieve ---

func TestRetrieveFullText(t *testing.T) {
	store, tmpDir := testStore(t, nil)
	loadHelper(t, store, writeSource(t, tmpDir, "air.txt", airText))

	matches, err := store.Retrieve(context.Background(), "When do ozone levels peak?", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) == 0 {
		t.Fatal("no matches")
	}
	if !strings.Contains(matches[0].Content, "Ozone levels peak in July") {
		t.Errorf("top match = %q", matches[0].Content)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("matches not sorted by score at %d", i)
		}
	}
}

func TestRetrieveRespectsLimit(t *testing.T) {
	store, tmpDir := testStore(t, nil)
	loadHelper(t, store, writeSource(t, tmpDir, "air.txt", airText))

	matches, err := store.Retrieve(context.Background(), "Istanbul", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Errorf("got %d matches, want 1", len(matches))
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	store, _ := testStore(t, nil)

	if _, err := store.Retrieve(context.Background(), "   ", 5); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("err = %v, want ErrEmptyQuery", err)
	}
}

func TestRetrieveSanitizesOperators(t *testing.T) {
	store, tmpDir := testStore(t, nil)
	loadHelper(t, store, writeSource(t, tmpDir, "air.txt", airText))

	for _, q := range []string{`ozone" OR (`, "NEAR(ozone", "ozone*", "-ozone AND", "?!"} {
		if _, err := store.Retrieve(context.Background(), q, 5); err != nil {
			t.Errorf("Retrieve(%q): %v", q, err)
		}
	}
}

func TestRetrieveNoResults(t *testing.T) {
	store, tmpDir := testStore(t, nil)
	loadHelper(t, store, writeSource(t, tmpDir, "air.txt", airText))

	matches, err := store.Retrieve(context.Background(), "xylophone", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestRetrieveHybrid(t *testing.T) {
	store, tmpDir := testStore(t, &keywordEmbedder{})
	loadHelper(t, store, writeSource(t, tmpDir, "air.txt", airText))

	// No shared terms with the text, so full-text search alone finds nothing.
	matches, err := store.Retrieve(context.Background(), "hava sıcaklığı kaç derece?", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if !strings.Contains(matches[0].Content, "28 degrees") {
		t.Errorf("top match = %q", matches[0].Content)
	}
}

func TestRetrieveHybridWithoutEmbeddings(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := types.KnowledgeBaseConfig{KnowledgeDir: tmpDir, ChunkSize: 160}

	plain, err := NewStore(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	loadHelper(t, plain, writeSource(t, tmpDir, "air.txt", airText))
	plain.Close()

	emb := &keywordEmbedder{}
	store, err := NewStore(cfg, emb)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	matches, err := store.Retrieve(context.Background(), "ozone", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) == 0 {
		t.Fatal("expected full-text matches")
	}
	if emb.calls != 0 {
		t.Errorf("query embedded %d times with no stored embeddings", emb.calls)
	}
}

func TestFTSQuery(t *testing.T) {
	tests := map[string]string{
		"When do ozone levels peak?": `"when" OR "do" OR "ozone" OR "levels" OR "peak"`,
		`ozone "OR" ozone`:           `"ozone" OR "or"`,
		"Hava, HAVA; hava":           `"hava"`,
		"?!":                         "",
	}
	for in, want := range tests {
		if got := ftsQuery(in); got != want {
			t.Errorf("ftsQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

// --- chunking ---

func TestSplitPacksParagraphs(t *testing.T) {
	got := Split("First paragraph.\n\nSecond paragraph.\n\n\n  Third\nline wrapped.", 800, 100)
	want := "First paragraph.\n\nSecond paragraph.\n\nThird line wrapped."
	if len(got) != 1 || got[0] != want {
		t.Errorf("Split = %q", got)
	}
}

func TestSplitEmpty(t *testing.T) {
	if got := Split(" \n\n \t", 100, 10); len(got) != 0 {
		t.Errorf("Split = %q, want none", got)
	}
}

func TestSplitLongParagraph(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("abcd ", 100))
	chunks := Split(text, 50, 0)
	if len(chunks) < 10 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	words := 0
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 50 {
			t.Errorf("chunk %d has %d runes", i, n)
		}
		words += len(strings.Fields(c))
	}
	if words != 100 {
		t.Errorf("words = %d, want 100", words)
	}
}

func TestSplitLongWord(t *testing.T) {
	chunks := Split(strings.Repeat("x", 25), 10, 0)
	want := []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}
	if fmt.Sprint(chunks) != fmt.Sprint(want) {
		t.Errorf("Split = %q", chunks)
	}
}

func TestSplitOverlap(t *testing.T) {
	p1 := strings.TrimSpace(strings.Repeat("alpha beta ", 6))
	p2 := strings.TrimSpace(strings.Repeat("gamma delta ", 5))
	chunks := Split(p1+"\n\n"+p2, 80, 20)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks: %q", len(chunks), chunks)
	}
	tail := tailWords(chunks[0], 20)
	if tail == "" || !strings.HasSuffix(chunks[0], tail) {
		t.Fatalf("tail %q not a suffix of %q", tail, chunks[0])
	}
	if !strings.HasPrefix(chunks[1], tail+"\n\n") || !strings.HasSuffix(chunks[1], p2) {
		t.Errorf("second chunk = %q", chunks[1])
	}
}

func TestTailWords(t *testing.T) {
	if got := tailWords("one two three four", 9); got != "four" {
		t.Errorf("tailWords = %q", got)
	}
	if got := tailWords("short", 20); got != "short" {
		t.Errorf("tailWords = %q", got)
	}
	if got := tailWords("anything", 0); got != "" {
		t.Errorf("tailWords = %q", got)
	}
}

// --- vectors ---

func TestVectorEncoding(t *testing.T) {
	v := []float32{0.5, -1.25, 3}
	got := decodeVector(encodeVector(v))
	if fmt.Sprint(got) != fmt.Sprint(v) {
		t.Errorf("decode(encode(v)) = %v", got)
	}
}

func TestCosine(t *testing.T) {
	if got := cosine([]float32{1, 0}, []float32{2, 0}); got < 0.999 {
		t.Errorf("parallel cosine = %f", got)
	}
	if got := cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal cosine = %f", got)
	}
	if got := cosine([]float32{1}, []float32{1, 2}); got != 0 {
		t.Errorf("mismatched cosine = %f", got)
	}
	if got := cosine([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Errorf("zero cosine = %f", got)
	}
}

func TestOllamaEmbedder(t *testing.T) {
	var got embedRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		fmt.Fprint(w, `{"embeddings":[[0.1,0.2],[0.3,0.4]]}`)
	}))
	defer ts.Close()

	e := NewOllamaEmbedder(ts.URL+"/", "", time.Second)
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Model != DefaultEmbedModel || len(got.Input) != 2 {
		t.Errorf("request = %+v", got)
	}
	if len(vecs) != 2 || vecs[1][1] != 0.4 {
		t.Errorf("vectors = %v", vecs)
	}
}

func TestOllamaEmbedderErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusNotFound, `{"error":"model not found"}`},
		{"count mismatch", http.StatusOK, `{"embeddings":[[0.1]]}`},
		{"bad json", http.StatusOK, `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()

			_, err := NewOllamaEmbedder(ts.URL, "m", time.Second).Embed(context.Background(), []string{"a", "b"})
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

// --- export ---

func TestExportYAML(t *testing.T) {
	store, tmpDir := testStore(t, nil)
	loadHelper(t, store, writeSource(t, tmpDir, "air.txt", airText))

	var buf bytes.Buffer
	if err := store.Export(context.Background(), &buf, FormatYAML); err != nil {
		t.Fatal(err)
	}
	var exp Export
	if err := yaml.Unmarshal(buf.Bytes(), &exp); err != nil {
		t.Fatal(err)
	}
	if len(exp.Sources) != 1 || len(exp.Chunks) != 3 {
		t.Errorf("export = %d sources, %d chunks", len(exp.Sources), len(exp.Chunks))
	}
}

func TestExportJSONFile(t *testing.T) {
	store, tmpDir := testStore(t, nil)
	loadHelper(t, store, writeSource(t, tmpDir, "air.txt", airText))

	path, err := store.ExportFile(context.Background(), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "export.json" {
		t.Errorf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var exp Export
	if err := json.Unmarshal(data, &exp); err != nil {
		t.Fatal(err)
	}
	if exp.Chunks[0].Source != filepath.Join(tmpDir, "air.txt") {
		t.Errorf("chunk source = %s", exp.Chunks[0].Source)
	}
}

func TestExportEmptyAndUnknownFormat(t *testing.T) {
	store, _ := testStore(t, nil)

	var buf bytes.Buffer
	if err := store.Export(context.Background(), &buf, FormatJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"chunks": []`) {
		t.Errorf("empty export = %s", buf.String())
	}
	if err := store.Export(context.Background(), &buf, "csv"); err == nil {
		t.Error("expected error for csv")
	}
}

// --- agent ---

type fixedRetriever struct {
	matches []Match
	err     error
	limit   int
}

func (f *fixedRetriever) Retrieve(_ context.Context, _ string, limit int) ([]Match, error) {
	f.limit = limit
	return f.matches, f.err
}

type capturingLLM struct {
	reply string
	msgs  []types.Message
}

func (c *capturingLLM) Complete(_ context.Context, msgs []types.Message, _ llm.Options) (string, error) {
	c.msgs = msgs
	return c.reply, nil
}

func TestAgentAsk(t *testing.T) {
	r := &fixedRetriever{matches: []Match{
		{Chunk: types.Chunk{Source: "air.txt", Seq: 2, Content: "The average summer temperature in Istanbul is 28 degrees Celsius."}},
	}}
	model := &capturingLLM{reply: "Yaklaşık 28 derece."}
	a := NewAgent(r, model, types.KnowledgeBaseConfig{MaxResults: 3}, nil)
	a.Now = func() time.Time { return time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC) }

	var out bytes.Buffer
	ans, err := a.Ask(context.Background(), "Istanbul hava sıcaklığı kaç derece?", &out)
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != "Yaklaşık 28 derece." || out.String() != ans.Text {
		t.Errorf("answer = %q, output = %q", ans.Text, out.String())
	}
	if r.limit != 3 {
		t.Errorf("limit = %d", r.limit)
	}
	if len(ans.Matches) != 1 {
		t.Errorf("matches = %d", len(ans.Matches))
	}

	system, user := model.msgs[0].Content, model.msgs[1].Content
	if !strings.Contains(system, "If the information is not in the knowledge base, say so.") {
		t.Errorf("system prompt = %q", system)
	}
	if !strings.Contains(system, "Saturday, March 14, 2026") {
		t.Errorf("system prompt missing date: %q", system)
	}
	wantUser := "---BEGIN KNOWLEDGE---\n[0] air.txt #2\nThe average summer temperature in Istanbul is 28 degrees Celsius.\n---END KNOWLEDGE---\n\nQUESTION: Istanbul hava sıcaklığı kaç derece?"
	if user != wantUser {
		t.Errorf("user prompt = %q", user)
	}
}

func TestAgentAskNoMatches(t *testing.T) {
	model := &capturingLLM{reply: "The knowledge base does not say."}
	a := NewAgent(&fixedRetriever{}, model, types.KnowledgeBaseConfig{}, nil)

	if _, err := a.Ask(context.Background(), "What is the GDP of Peru?", nil); err != nil {
		t.Fatal(err)
	}
	want := "---BEGIN KNOWLEDGE---\n(no matching passages)\n---END KNOWLEDGE---"
	if !strings.HasPrefix(model.msgs[1].Content, want) {
		t.Errorf("user prompt = %q", model.msgs[1].Content)
	}
}

func TestAgentAskRetrieveError(t *testing.T) {
	a := NewAgent(&fixedRetriever{err: ErrEmptyQuery}, &capturingLLM{}, types.KnowledgeBaseConfig{}, nil)

	if _, err := a.Ask(context.Background(), "", nil); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("err = %v", err)
	}
}
