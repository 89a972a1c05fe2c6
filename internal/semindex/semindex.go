// Package semindex maintains a semantic vector index over live airspace
// snapshots and answers natural-language queries against it.
package semindex

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Entry kinds.
const (
	KindAircraft = "aircraft"
	KindWeather  = "weather"
	KindNotam    = "notam"
	KindVessel   = "vessel"
	KindEvent    = "event"
)

// Entry is one indexed document: the summary text plus its metadata.
type Entry struct {
	Kind string            `json:"kind"`
	Key  string            `json:"key"`
	Text string            `json:"text"`
	Meta map[string]string `json:"meta,omitempty"`
}

// Match is one search result.
type Match struct {
	Entry Entry   `json:"entry"`
	Score float64 `json:"score"`
}

// snapshot is an immutable index generation: entries plus their normalized
// vectors, flat row-major.
type snapshot struct {
	entries []Entry
	vectors []float32
	dim     int
	builtAt time.Time
}

// Index is a flat inner-product index rebuilt wholesale each cycle.
// Readers search the current snapshot lock-free via an atomic pointer.
type Index struct {
	embedder Embedder
	dir      string

	current atomic.Pointer[snapshot]

	mu       sync.Mutex
	rebuilds int64
	lastErr  error
}

const (
	indexFile    = "radar_index.bin"
	metadataFile = "radar_metadata.jsonl"
	indexMagic   = uint32(0x52414458)
)

// New creates an index. dir is where snapshots persist; empty disables
// persistence. A persisted snapshot is loaded if present.
func New(embedder Embedder, dir string) *Index {
	x := &Index{embedder: embedder, dir: dir}
	x.current.Store(&snapshot{dim: embedder.Dimension()})

	if dir != "" {
		if err := x.loadPersisted(); err != nil {
			log.Printf("semindex: no persisted index loaded: %v", err)
		}
	}
	return x
}

// Size returns the number of indexed entries.
func (x *Index) Size() int {
	return len(x.current.Load().entries)
}

// BuiltAt returns when the current snapshot was built.
func (x *Index) BuiltAt() time.Time {
	return x.current.Load().builtAt
}

// LastError returns the most recent rebuild failure, if any.
func (x *Index) LastError() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.lastErr
}

// Rebuilds returns how many successful rebuilds have completed.
func (x *Index) Rebuilds() int64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.rebuilds
}

// Rebuild embeds the given entries and swaps them in as the new snapshot.
// An empty entry set never replaces a populated index, so a momentary
// upstream outage does not wipe the searchable state. When the batch embed
// fails, entries are retried individually and the failures skipped.
func (x *Index) Rebuild(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		if x.Size() > 0 {
			return nil
		}
		x.current.Store(&snapshot{dim: x.embedder.Dimension(), builtAt: time.Now()})
		return nil
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}

	kept := entries
	vectors, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		// A batch failure retries one entry at a time so a single bad
		// document does not lose the whole cycle.
		kept, vectors = x.embedEach(ctx, entries)
		if len(kept) == 0 {
			x.mu.Lock()
			x.lastErr = err
			x.mu.Unlock()
			return fmt.Errorf("rebuild index: %w", err)
		}
		log.Printf("semindex: batch embed failed (%v), indexed %d of %d entries individually",
			err, len(kept), len(entries))
	}

	dim := x.embedder.Dimension()
	flat := make([]float32, 0, len(vectors)*dim)
	for _, v := range vectors {
		flat = append(flat, normalize(v)...)
	}

	snap := &snapshot{
		entries: kept,
		vectors: flat,
		dim:     dim,
		builtAt: time.Now(),
	}
	x.current.Store(snap)

	x.mu.Lock()
	x.rebuilds++
	x.lastErr = nil
	x.mu.Unlock()

	if x.dir != "" {
		if err := x.persist(snap); err != nil {
			log.Printf("semindex: persist failed: %v", err)
		}
	}
	return nil
}

// embedEach embeds entries one at a time, dropping the ones that fail.
func (x *Index) embedEach(ctx context.Context, entries []Entry) ([]Entry, [][]float32) {
	var kept []Entry
	var vectors [][]float32
	for _, e := range entries {
		v, err := x.embedder.Embed(ctx, []string{e.Text})
		if err != nil || len(v) != 1 {
			log.Printf("semindex: skipping entry %s/%s: %v", e.Kind, e.Key, err)
			continue
		}
		kept = append(kept, e)
		vectors = append(vectors, v[0])
	}
	return kept, vectors
}

// normalize returns the unit-length copy of v, so inner product equals
// cosine similarity.
func normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}

// Search returns the top k entries scoring at least threshold against the
// query, best first.
func (x *Index) Search(ctx context.Context, query string, k int, threshold float64) ([]Match, error) {
	snap := x.current.Load()
	if len(snap.entries) == 0 {
		return nil, nil
	}

	qv, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	q := normalize(qv[0])

	matches := make([]Match, 0, len(snap.entries))
	for i, e := range snap.entries {
		row := snap.vectors[i*snap.dim : (i+1)*snap.dim]
		var dot float64
		for j, f := range row {
			dot += float64(f) * float64(q[j])
		}
		if dot >= threshold {
			matches = append(matches, Match{Entry: e, Score: dot})
		}
	}
	sort.Slice(matches, func(a, b int) bool { return matches[a].Score > matches[b].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Answer is the response to a natural-language question.
type Answer struct {
	Query   string  `json:"query"`
	Intent  string  `json:"intent"`
	Summary string  `json:"summary"`
	Matches []Match `json:"matches"`
}

// Ask classifies the question's intent, searches a widened candidate set,
// partitions by intent, and renders a plain-text summary.
func (x *Index) Ask(ctx context.Context, query string, k int, threshold float64) (*Answer, error) {
	if k <= 0 {
		k = 5
	}
	intent := classifyIntent(query)

	// Over-fetch so intent filtering still has k candidates to pick from.
	wide := k * 3
	if n := x.Size(); wide > n {
		wide = n
	}
	matches, err := x.Search(ctx, query, wide, threshold)
	if err != nil {
		return nil, err
	}

	filtered := partitionByIntent(matches, intent)
	if len(filtered) > k {
		filtered = filtered[:k]
	}

	return &Answer{
		Query:   query,
		Intent:  intent,
		Summary: summarize(filtered, intent),
		Matches: filtered,
	}, nil
}

// classifyIntent picks the dominant subject of a question by keyword.
func classifyIntent(query string) string {
	q := strings.ToLower(query)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(q, w) {
				return true
			}
		}
		return false
	}
	switch {
	case has("weather", "metar", "wind", "visibility", "cloud", "rain", "temperature", "qnh"):
		return KindWeather
	case has("notam", "closure", "closed", "restriction", "danger area"):
		return KindNotam
	case has("ship", "vessel", "boat", "ferry", "tanker", "mmsi"):
		return KindVessel
	case has("emergency", "squawk", "event", "takeoff", "landing", "took off", "landed"):
		return KindEvent
	case has("aircraft", "flight", "plane", "airborne", "flying", "helicopter", "jet"):
		return KindAircraft
	default:
		return ""
	}
}

// partitionByIntent moves matches of the question's kind to the front,
// keeping the rest behind them in score order. The caller still gets k
// results when only a few entries match the intent.
func partitionByIntent(matches []Match, intent string) []Match {
	if intent == "" {
		return matches
	}
	keep := make([]Match, 0, len(matches))
	var rest []Match
	for _, m := range matches {
		if m.Entry.Kind == intent {
			keep = append(keep, m)
		} else {
			rest = append(rest, m)
		}
	}
	return append(keep, rest...)
}

func summarize(matches []Match, intent string) string {
	if len(matches) == 0 {
		return "No current information matches that question."
	}
	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.Entry.Text)
	}
	return b.String()
}

// persist writes the snapshot as a little-endian float32 matrix plus a
// JSONL metadata sidecar, atomically via rename.
func (x *Index) persist(snap *snapshot) error {
	if err := os.MkdirAll(x.dir, 0o755); err != nil {
		return err
	}

	binPath := filepath.Join(x.dir, indexFile)
	tmp := binPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	header := []uint32{indexMagic, uint32(snap.dim), uint32(len(snap.entries))}
	for _, h := range header {
		if err := binary.Write(w, binary.LittleEndian, h); err != nil {
			f.Close()
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, snap.vectors); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, binPath); err != nil {
		return err
	}

	metaPath := filepath.Join(x.dir, metadataFile)
	tmp = metaPath + ".tmp"
	mf, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(mf)
	for _, e := range snap.entries {
		if err := enc.Encode(e); err != nil {
			mf.Close()
			return err
		}
	}
	if err := mf.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, metaPath)
}

// loadPersisted restores the last persisted snapshot from disk.
func (x *Index) loadPersisted() error {
	binPath := filepath.Join(x.dir, indexFile)
	f, err := os.Open(binPath)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var magic, dim, count uint32
	for _, p := range []*uint32{&magic, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return fmt.Errorf("read index header: %w", err)
		}
	}
	if magic != indexMagic {
		return fmt.Errorf("bad index magic %08x", magic)
	}
	if int(dim) != x.embedder.Dimension() {
		return fmt.Errorf("persisted dimension %d does not match embedder %d", dim, x.embedder.Dimension())
	}

	vectors := make([]float32, int(dim)*int(count))
	if err := binary.Read(r, binary.LittleEndian, vectors); err != nil {
		return fmt.Errorf("read index vectors: %w", err)
	}

	mf, err := os.Open(filepath.Join(x.dir, metadataFile))
	if err != nil {
		return err
	}
	defer mf.Close()

	var entries []Entry
	sc := bufio.NewScanner(mf)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return fmt.Errorf("decode metadata line: %w", err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if len(entries) != int(count) {
		return fmt.Errorf("metadata has %d entries, index has %d", len(entries), count)
	}

	x.current.Store(&snapshot{
		entries: entries,
		vectors: vectors,
		dim:     int(dim),
		builtAt: time.Now(),
	})
	log.Printf("semindex: restored %d entries from %s", len(entries), x.dir)
	return nil
}

// RunRebuilder rebuilds on a fixed interval from a snapshot provider until
// the context ends.
func (x *Index) RunRebuilder(ctx context.Context, interval time.Duration, provider func(context.Context) []Entry) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := x.Rebuild(ctx, provider(ctx)); err != nil {
				log.Printf("semindex: rebuild: %v", err)
			}
		}
	}
}
