package record

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/geocatalog/pkg/catalog"
)

// Format is the record file format of a data directory.
type Format string

const (
	FormatXML  Format = "xml"
	FormatYAML Format = "yaml"
)

// Ext returns the file extension, including the dot.
func (f Format) Ext() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".xml"
}

// ParseFormat maps a configuration value to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatXML:
		return FormatXML, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported record format %q", s)
}

// Codec converts between record bytes and catalog objects. The root element
// (xml) or the single top level key (yaml) names the record type.
type Codec interface {
	Decode(data []byte) (catalog.Info, error)
	Encode(info catalog.Info) ([]byte, error)
}

// NewCodec returns the codec for a format.
func NewCodec(f Format) Codec {
	if f == FormatYAML {
		return yamlCodec{}
	}
	return xmlCodec{}
}

type xmlCodec struct{}

func (xmlCodec) Decode(data []byte) (catalog.Info, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("no root element")
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		dto, err := newDTO(start.Name.Local)
		if err != nil {
			return nil, err
		}
		if err := dec.DecodeElement(dto, &start); err != nil {
			return nil, err
		}
		return toInfo(start.Name.Local, dto)
	}
}

func (xmlCodec) Encode(info catalog.Info) ([]byte, error) {
	root, dto, err := fromInfo(info)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.EncodeElement(dto, xml.StartElement{Name: xml.Name{Local: root}}); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

type yamlCodec struct{}

func (yamlCodec) Decode(data []byte) (catalog.Info, error) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc) != 1 {
		return nil, fmt.Errorf("expected a single record type key, found %d", len(doc))
	}
	for root, node := range doc {
		dto, err := newDTO(root)
		if err != nil {
			return nil, err
		}
		if err := node.Decode(dto); err != nil {
			return nil, err
		}
		return toInfo(root, dto)
	}
	return nil, nil
}

func (yamlCodec) Encode(info catalog.Info) ([]byte, error) {
	root, dto, err := fromInfo(info)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(map[string]any{root: dto})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
