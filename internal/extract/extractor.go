// Package extract reads SDK headers and returns the functions they declare.
//
// Headers are parsed with the tree-sitter C grammar; declarations come from
// the syntax tree, never from scraping text. A header group is extracted all
// or nothing: the first unreadable header, syntax error or unsupported
// declarator aborts the group.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"stubgen/internal/model"
	"stubgen/internal/stuberr"
)

// DefaultCacheSize bounds how many parsed headers an Extractor remembers.
const DefaultCacheSize = 128

// Extractor turns header files into function signatures.
// It is safe for concurrent use.
type Extractor struct {
	lang  *sitter.Language
	cache *lru.Cache[string, []model.FunctionSignature]
}

// New creates an Extractor with the C grammar loaded and a parse cache of
// cacheSize headers (DefaultCacheSize when cacheSize <= 0).
func New(cacheSize int) *Extractor {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []model.FunctionSignature](cacheSize)
	return &Extractor{
		lang:  c.GetLanguage(),
		cache: cache,
	}
}

// Extract returns the functions declared across the group's headers,
// header by header in list order and declaration order within a header.
// A function declared again with the same signature is reported once; a
// conflicting redeclaration is an extraction error.
func (e *Extractor) Extract(dir string, g model.HeaderGroup) ([]model.FunctionSignature, error) {
	var out []model.FunctionSignature
	index := make(map[string]int)
	for _, h := range g.Headers {
		sigs, err := e.ExtractHeader(filepath.Join(dir, h))
		if err != nil {
			return nil, stuberr.WithGroup(err, g.ID)
		}
		for _, s := range sigs {
			s.Header = h
			if i, ok := index[s.Name]; ok {
				if !out[i].SameABI(s) {
					return nil, &stuberr.Error{
						Kind:  stuberr.ErrExtraction,
						Group: g.ID,
						Path:  filepath.Join(dir, h),
						Err: fmt.Errorf("line %d: %s conflicts with declaration in %s line %d",
							s.Line, s.Name, out[i].Header, out[i].Line),
					}
				}
				continue
			}
			index[s.Name] = len(out)
			out = append(out, s)
		}
	}
	return out, nil
}

// ExtractHeader returns the functions declared in one header file.
func (e *Extractor) ExtractHeader(path string) ([]model.FunctionSignature, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, stuberr.New(stuberr.ErrExtraction, "", path, err)
	}

	sum := sha256.Sum256(src)
	key := path + "\x00" + hex.EncodeToString(sum[:])
	if sigs, ok := e.cache.Get(key); ok {
		return cloneSignatures(sigs), nil
	}

	root, closeTree, err := e.parse(path, src)
	if err != nil {
		return nil, err
	}
	defer closeTree()

	w := &walker{src: src, header: filepath.Base(path)}
	w.walk(root)
	if w.err != nil {
		return nil, stuberr.New(stuberr.ErrExtraction, "", path, w.err)
	}
	index := make(map[string]int)
	var sigs []model.FunctionSignature
	for _, s := range w.sigs {
		if i, ok := index[s.Name]; ok {
			if !sigs[i].SameABI(s) {
				return nil, stuberr.New(stuberr.ErrExtraction, "", path,
					fmt.Errorf("line %d: %s conflicts with declaration on line %d", s.Line, s.Name, sigs[i].Line))
			}
			continue
		}
		index[s.Name] = len(sigs)
		sigs = append(sigs, s)
	}

	e.cache.Add(key, sigs)
	return cloneSignatures(sigs), nil
}

// Enumerators returns, for every enum type declared in the headers, the
// names of its enumerators in declaration order. Typedef'd enums are keyed
// by the typedef name, tagged enums by "enum <tag>".
func (e *Extractor) Enumerators(dir string, headers []string) (map[string][]string, error) {
	enums := make(map[string][]string)
	for _, h := range headers {
		path := filepath.Join(dir, h)
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, stuberr.New(stuberr.ErrExtraction, "", path, err)
		}
		root, closeTree, err := e.parse(path, src)
		if err != nil {
			return nil, err
		}
		collectEnums(root, src, enums)
		closeTree()
	}
	return enums, nil
}

// parse runs the C grammar over src. A tree containing error or missing
// nodes is rejected with the position of the first one.
func (e *Extractor) parse(path string, src []byte) (*sitter.Node, func(), error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(e.lang)

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, nil, stuberr.New(stuberr.ErrExtraction, "", path, fmt.Errorf("parsing: %w", err))
	}
	root := tree.RootNode()
	if root.HasError() {
		defer tree.Close()
		bad := firstError(root)
		line := 0
		if bad != nil {
			line = int(bad.StartPoint().Row) + 1
		}
		return nil, nil, stuberr.New(stuberr.ErrExtraction, "", path, fmt.Errorf("line %d: syntax error", line))
	}
	return root, tree.Close, nil
}

func firstError(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if bad := firstError(n.Child(i)); bad != nil {
			return bad
		}
	}
	return nil
}

func cloneSignatures(in []model.FunctionSignature) []model.FunctionSignature {
	out := make([]model.FunctionSignature, len(in))
	for i, s := range in {
		s.Params = append([]model.Parameter(nil), s.Params...)
		out[i] = s
	}
	return out
}
