package cib

import (
	"context"
	"sync"

	"github.com/nrwahl2/crmjoind/cluster"
)

// MemClient is a process-local stand-in Client: the real CIB storage
// engine and its peer-to-peer sync wire protocol are out of scope (spec
// §1 Non-goals), but the join coordinator needs something genuinely
// implementing the interface to run end to end in cmd/crmjoind and in
// tests. SyncFrom here fetches nothing and changes nothing: it always
// succeeds and re-announces the current document (from the last Seed or
// Update) to diff subscribers, the same way a test double would.
type MemClient struct {
	mu   sync.Mutex
	doc  XmlDoc
	gen  Generation
	subs []func(XmlDoc)
}

func NewMemClient() *MemClient {
	return &MemClient{gen: Generation{ValidationSchema: "pacemaker-3.9"}}
}

// Seed installs the generation/document this client reports, e.g. to
// simulate a peer with a newer CIB in tests.
func (m *MemClient) Seed(gen Generation, doc XmlDoc) {
	m.mu.Lock()
	m.gen, m.doc = gen, doc
	m.mu.Unlock()
}

func (m *MemClient) Generation() Generation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

func (m *MemClient) Query(ctx context.Context, scopeLocal bool) (XmlDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc, nil
}

func (m *MemClient) SyncFrom(ctx context.Context, node cluster.NodeName, opts SyncOptions) error {
	// A real client would fetch node's CIB over the wire and diff it in;
	// the local-only stand-in has nothing to fetch from, so this always
	// succeeds against whatever's already Seed()-ed.
	m.mu.Lock()
	doc := m.doc
	subs := append([]func(XmlDoc){}, m.subs...)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(doc)
	}
	return nil
}

func (m *MemClient) Update(ctx context.Context, section Section, xml XmlDoc, opts SyncOptions) error {
	m.mu.Lock()
	m.doc = xml
	subs := append([]func(XmlDoc){}, m.subs...)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(xml)
	}
	return nil
}

func (m *MemClient) SubscribeDiff(cb func(XmlDoc)) {
	m.mu.Lock()
	m.subs = append(m.subs, cb)
	m.mu.Unlock()
}

func (m *MemClient) QueryXPath(ctx context.Context, xpath string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.doc), nil
}

func (m *MemClient) LocalGeneration(ctx context.Context) (Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen, nil
}
