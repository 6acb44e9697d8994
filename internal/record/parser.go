// Package record decodes and encodes catalog records.
//
// A Parser is not safe for concurrent use. Loader workers get one each from
// a ParserTable indexed by worker slot.
package record

import (
	"context"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/geocatalog/pkg/catalog"
	apperrors "github.com/geocatalog/pkg/errors"
	"github.com/geocatalog/pkg/parallel"
)

// Parser turns record bytes into catalog objects with unresolved references.
// It never decrypts store credentials: encrypted connection parameters are
// returned as stored.
type Parser struct {
	codec  Codec
	parsed int
}

// NewParser returns a parser for the given format.
func NewParser(f Format) *Parser {
	return &Parser{codec: NewCodec(f)}
}

// Parse decodes one record.
func (p *Parser) Parse(data []byte) (catalog.Info, error) {
	info, err := p.codec.Decode(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeParseError, "malformed record", err)
	}
	if info == nil || info.GetID() == "" {
		return nil, apperrors.New(apperrors.CodeParseError, "record has no id")
	}
	p.parsed++
	return info, nil
}

// Parsed returns the number of records this parser decoded.
func (p *Parser) Parsed() int { return p.parsed }

// Persist writes info as a record at name in fs, creating parent directories.
func (p *Parser) Persist(fs billy.Filesystem, info catalog.Info, name string) error {
	data, err := p.codec.Encode(info)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeParseError, "failed to encode "+catalog.Describe(info), err)
	}
	if err := fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CodeIOError, "failed to create "+path.Dir(name), err)
	}
	if err := util.WriteFile(fs, name, data, 0o644); err != nil {
		return apperrors.Wrap(apperrors.CodeIOError, "failed to write "+name, err)
	}
	return nil
}

// ParserTable holds one lazily created Parser per pool worker slot. A slot is
// owned by one goroutine at a time, so slots need no locking.
type ParserTable struct {
	format Format
	slots  []*Parser
}

// NewParserTable returns a table with the given number of slots.
func NewParserTable(f Format, slots int) *ParserTable {
	return &ParserTable{format: f, slots: make([]*Parser, slots)}
}

// Get returns the parser of slot, creating it on first use.
func (t *ParserTable) Get(slot int) *Parser {
	if t.slots[slot] == nil {
		t.slots[slot] = NewParser(t.format)
	}
	return t.slots[slot]
}

// For returns the parser of the pool worker running ctx, or a fresh parser
// when ctx does not belong to a worker.
func (t *ParserTable) For(ctx context.Context) *Parser {
	slot, ok := parallel.WorkerID(ctx)
	if !ok || slot >= len(t.slots) {
		return NewParser(t.format)
	}
	return t.Get(slot)
}

// Created returns the number of slots holding a parser. Call it once the
// workers are done.
func (t *ParserTable) Created() int {
	n := 0
	for _, p := range t.slots {
		if p != nil {
			n++
		}
	}
	return n
}
