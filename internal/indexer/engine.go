// Package indexer owns the served index: an immutable Snapshot of documents
// and section token indices that is replaced wholesale on every rebuild.
package indexer

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

// Engine serves the current Snapshot to readers and installs new ones.
// Readers call Snapshot and keep using what they got; a concurrent Install
// never changes a snapshot already handed out.
type Engine struct {
	tok       *tokenizer.Tokenizer
	current   atomic.Pointer[Snapshot]
	installMu sync.Mutex
	version   uint64
	logger    *slog.Logger
}

func NewEngine(tok *tokenizer.Tokenizer) *Engine {
	if tok == nil {
		tok = tokenizer.Default()
	}
	return &Engine{
		tok:    tok,
		logger: slog.Default().With("component", "indexer"),
	}
}

// Tokenizer returns the tokenizer used for indexing. Query parsing must use
// the same instance.
func (e *Engine) Tokenizer() *tokenizer.Tokenizer {
	return e.tok
}

// Snapshot returns the snapshot being served, or nil before the first
// Install.
func (e *Engine) Snapshot() *Snapshot {
	return e.current.Load()
}

func (e *Engine) Ready() bool {
	return e.current.Load() != nil
}

// Install builds a snapshot from docs and makes it the served one. Sections
// whose stored index was built by another profile, or fails validation, are
// reindexed first. docs must not be modified by the caller afterwards.
func (e *Engine) Install(docs []corpus.Document) *Snapshot {
	e.installMu.Lock()
	defer e.installMu.Unlock()

	start := time.Now()
	reindexed := 0
	for i := range docs {
		for j := range docs[i].Sections {
			if docs[i].Sections[j].Reindex(e.tok) {
				reindexed++
			}
		}
	}
	e.version++
	snap := newSnapshot(e.version, docs)
	e.current.Store(snap)

	e.logger.Info("index snapshot installed",
		"version", snap.Version,
		"documents", len(snap.Documents),
		"sections", len(snap.entries),
		"reindexed", reindexed,
		"profile", e.tok.Profile().Name(),
		"duration", time.Since(start),
	)
	return snap
}

// Snapshot is an immutable view of one rebuild.
type Snapshot struct {
	Version   uint64
	BuiltAt   time.Time
	Documents []corpus.Document

	entries   []index.Entry
	sections  map[int64]sectionRef
	documents map[int64]int
}

type sectionRef struct {
	doc int
	sec int
}

func newSnapshot(version uint64, docs []corpus.Document) *Snapshot {
	s := &Snapshot{
		Version:   version,
		BuiltAt:   time.Now().UTC(),
		Documents: docs,
		entries:   make([]index.Entry, 0, corpus.SectionCount(docs)),
		sections:  make(map[int64]sectionRef),
		documents: make(map[int64]int, len(docs)),
	}
	for i, d := range docs {
		s.documents[d.ID] = i
		for j, sec := range d.Sections {
			s.sections[sec.ID] = sectionRef{doc: i, sec: j}
			s.entries = append(s.entries, sec.Entry())
		}
	}
	index.SortEntries(s.entries)
	return s
}

// Entries returns the section indices ordered by section id. The slice is
// shared and must not be modified.
func (s *Snapshot) Entries() []index.Entry {
	return s.entries
}

func (s *Snapshot) SectionCount() int {
	return len(s.entries)
}

// Section resolves a section id to the section and its owning document.
func (s *Snapshot) Section(id int64) (corpus.Section, corpus.Document, bool) {
	ref, ok := s.sections[id]
	if !ok {
		return corpus.Section{}, corpus.Document{}, false
	}
	doc := s.Documents[ref.doc]
	return doc.Sections[ref.sec], doc, true
}

func (s *Snapshot) Document(id int64) (corpus.Document, bool) {
	i, ok := s.documents[id]
	if !ok {
		return corpus.Document{}, false
	}
	return s.Documents[i], true
}

func (s *Snapshot) String() string {
	return fmt.Sprintf("snapshot v%d (%d documents, %d sections)", s.Version, len(s.Documents), len(s.entries))
}
