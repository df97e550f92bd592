package patterntree

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/streamminer/streamminer/internal/item"
	"github.com/streamminer/streamminer/internal/ttw"
)

const currentSerializationVersion = 2

type metadataLine struct {
	Version        int    `json:"v"`
	CurrentQuarter uint64 `json:"currentQuarter"`
	Definition     string `json:"tilted time window definition,omitempty"`
}

type patternLine struct {
	Pattern []string       `json:"pattern"`
	Window  ttw.VariantMap `json:"tilted time window"`
}

// Serialize writes every pattern in the tree to w, one node per line: a
// leading JSON metadata line, then one JSON object per pattern (leaf or
// internal) in depth-first order.
func (t *Tree) Serialize(w io.Writer, names func(item.ID) (string, bool)) error {
	bw := bufio.NewWriter(w)

	meta := metadataLine{
		Version:        currentSerializationVersion,
		CurrentQuarter: t.currentQuarter,
		Definition:     t.def.Serialize(),
	}
	if err := writeJSONLine(bw, meta); err != nil {
		return err
	}

	if err := t.serializeNode(bw, t.root, nil, names); err != nil {
		return err
	}
	return bw.Flush()
}

func (t *Tree) serializeNode(w *bufio.Writer, n *Node, prefix []item.ID, names func(item.ID) (string, bool)) error {
	itemset := prefix
	if n.ItemID != item.Root {
		itemset = append(append([]item.ID(nil), prefix...), n.ItemID)

		patternNames := make([]string, len(itemset))
		for i, id := range itemset {
			name, ok := names(id)
			if !ok {
				return fmt.Errorf("patterntree: no name registered for item %d", id)
			}
			patternNames[i] = name
		}

		line := patternLine{Pattern: patternNames, Window: n.Window.ToVariantMap()}
		if err := writeJSONLine(w, line); err != nil {
			return err
		}
	}
	for _, child := range n.Children() {
		if err := t.serializeNode(w, child, itemset, names); err != nil {
			return err
		}
	}
	return nil
}

func writeJSONLine(w io.Writer, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err = w.Write([]byte{'\n'})
	return err
}

// legacyV1Definition is the fixed definition string used when deserializing
// a version-1 stream, which predates the definition being carried in the
// metadata line.
func legacyV1Definition() *ttw.Definition {
	return ttw.LegacyV1Definition()
}

// Deserialize reads a stream produced by Serialize (or a legacy version-1
// stream lacking the definition field) and rebuilds a Tree. resolve maps a
// serialized item name to its interned ID, interning it if necessary.
// updateID is used for every AddPattern call; the per-node window is then
// overwritten from the serialized snapshot so replayed AddPattern calls
// never need to reconstruct exact historical bucket contents.
func Deserialize(r io.Reader, resolve func(name string) item.ID, updateID uint64) (*Tree, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !sc.Scan() {
		return nil, fmt.Errorf("patterntree: empty stream")
	}
	var meta metadataLine
	if err := json.Unmarshal(sc.Bytes(), &meta); err != nil {
		return nil, fmt.Errorf("patterntree: decoding metadata line: %w", err)
	}
	if meta.Version != 1 && meta.Version != 2 {
		return nil, fmt.Errorf("patterntree: unsupported version %d", meta.Version)
	}

	var def *ttw.Definition
	if meta.Definition != "" {
		parsed, err := ttw.ParseDefinition(meta.Definition)
		if err != nil {
			return nil, fmt.Errorf("patterntree: decoding definition: %w", err)
		}
		def = parsed
	} else {
		def = legacyV1Definition()
	}

	t := New(def)

	for sc.Scan() {
		var line patternLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			return nil, fmt.Errorf("patterntree: decoding pattern line: %w", err)
		}
		itemset := make([]item.ID, len(line.Pattern))
		for i, name := range line.Pattern {
			itemset[i] = resolve(name)
		}

		t.AddPattern(itemset, 0, updateID)

		n := t.findNode(itemset)
		if n == nil {
			return nil, fmt.Errorf("patterntree: pattern %v missing after AddPattern", line.Pattern)
		}
		n.Window = ttw.FromVariantMap(def, line.Window)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	t.currentQuarter = meta.CurrentQuarter
	return t, nil
}
