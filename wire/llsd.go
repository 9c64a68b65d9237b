package wire

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrMalformedLLSD is returned when an LLSD document cannot be decoded
var ErrMalformedLLSD = errors.New("malformed llsd document")

// ParseLLSDXML decodes an LLSD XML document into plain Go values:
// map[string]interface{}, []interface{}, string, bool, int, float64,
// uuid.UUID, time.Time, []byte or nil for undef.
func ParseLLSDXML(data []byte) (interface{}, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedLLSD, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			if se.Name.Local != "llsd" {
				return nil, fmt.Errorf("%w: unexpected root <%s>", ErrMalformedLLSD, se.Name.Local)
			}
			break
		}
	}

	se, end, err := nextStart(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLLSD, err)
	}
	if end {
		return nil, nil
	}
	v, err := decodeValue(dec, se)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLLSD, err)
	}
	return v, nil
}

// ParseLLSDMap decodes a document whose root value must be a map
func ParseLLSDMap(data []byte) (map[string]interface{}, error) {
	v, err := ParseLLSDXML(data)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: root is %T, not a map", ErrMalformedLLSD, v)
	}
	return m, nil
}

// nextStart returns the next start element, or end=true when the
// enclosing element closes first.
func nextStart(dec *xml.Decoder) (xml.StartElement, bool, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, false, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return t, false, nil
		case xml.EndElement:
			return xml.StartElement{}, true, nil
		}
	}
}

func decodeValue(dec *xml.Decoder, se xml.StartElement) (interface{}, error) {
	switch se.Name.Local {
	case "map":
		return decodeMap(dec)
	case "array":
		return decodeArray(dec)
	case "undef":
		return nil, dec.Skip()
	}

	var raw string
	if err := dec.DecodeElement(&raw, &se); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(raw)

	switch se.Name.Local {
	case "string", "uri":
		return raw, nil
	case "boolean":
		return text == "1" || strings.EqualFold(text, "true"), nil
	case "integer":
		if text == "" {
			return 0, nil
		}
		return strconv.Atoi(text)
	case "real":
		if text == "" {
			return 0.0, nil
		}
		return strconv.ParseFloat(text, 64)
	case "uuid":
		if text == "" {
			return uuid.Nil, nil
		}
		return uuid.Parse(text)
	case "date":
		if text == "" {
			return time.Time{}, nil
		}
		return time.Parse(time.RFC3339Nano, text)
	case "binary":
		for _, a := range se.Attr {
			if a.Name.Local == "encoding" && a.Value != "base64" {
				return nil, fmt.Errorf("unsupported binary encoding %q", a.Value)
			}
		}
		return base64.StdEncoding.DecodeString(text)
	}
	return nil, fmt.Errorf("unknown element <%s>", se.Name.Local)
}

func decodeMap(dec *xml.Decoder) (map[string]interface{}, error) {
	m := make(map[string]interface{})
	for {
		se, end, err := nextStart(dec)
		if err != nil {
			return nil, err
		}
		if end {
			return m, nil
		}
		if se.Name.Local != "key" {
			return nil, fmt.Errorf("expected <key> in map, got <%s>", se.Name.Local)
		}
		var key string
		if err := dec.DecodeElement(&key, &se); err != nil {
			return nil, err
		}
		vse, end, err := nextStart(dec)
		if err != nil {
			return nil, err
		}
		if end {
			return nil, fmt.Errorf("key %q has no value", key)
		}
		v, err := decodeValue(dec, vse)
		if err != nil {
			return nil, err
		}
		m[key] = v
	}
}

func decodeArray(dec *xml.Decoder) ([]interface{}, error) {
	a := []interface{}{}
	for {
		se, end, err := nextStart(dec)
		if err != nil {
			return nil, err
		}
		if end {
			return a, nil
		}
		v, err := decodeValue(dec, se)
		if err != nil {
			return nil, err
		}
		a = append(a, v)
	}
}

// EncodeLLSDXML renders v as an LLSD XML document. Unsigned 64-bit values
// are written as 8 byte big-endian binary, matching how region handles
// travel in LLSD.
func EncodeLLSDXML(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?><llsd>")
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	buf.WriteString("</llsd>")
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("<undef />")
	case bool:
		if t {
			buf.WriteString("<boolean>1</boolean>")
		} else {
			buf.WriteString("<boolean>0</boolean>")
		}
	case int:
		writeElem(buf, "integer", strconv.Itoa(t))
	case int32:
		writeElem(buf, "integer", strconv.FormatInt(int64(t), 10))
	case int64:
		writeElem(buf, "integer", strconv.FormatInt(t, 10))
	case uint32:
		writeElem(buf, "integer", strconv.FormatUint(uint64(t), 10))
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, t)
		writeElem(buf, "binary", base64.StdEncoding.EncodeToString(b))
	case float32:
		writeElem(buf, "real", strconv.FormatFloat(float64(t), 'g', -1, 32))
	case float64:
		writeElem(buf, "real", strconv.FormatFloat(t, 'g', -1, 64))
	case string:
		writeElem(buf, "string", t)
	case uuid.UUID:
		writeElem(buf, "uuid", t.String())
	case time.Time:
		writeElem(buf, "date", t.UTC().Format(time.RFC3339Nano))
	case []byte:
		writeElem(buf, "binary", base64.StdEncoding.EncodeToString(t))
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteString("<map>")
		for _, k := range keys {
			writeElem(buf, "key", k)
			if err := encodeValue(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteString("</map>")
	case []interface{}:
		buf.WriteString("<array>")
		for _, e := range t {
			if err := encodeValue(buf, e); err != nil {
				return err
			}
		}
		buf.WriteString("</array>")
	case []map[string]interface{}:
		buf.WriteString("<array>")
		for _, e := range t {
			if err := encodeValue(buf, e); err != nil {
				return err
			}
		}
		buf.WriteString("</array>")
	default:
		return fmt.Errorf("llsd: unsupported type %T", v)
	}
	return nil
}

func writeElem(buf *bytes.Buffer, name, text string) {
	buf.WriteString("<" + name + ">")
	xml.EscapeText(buf, []byte(text))
	buf.WriteString("</" + name + ">")
}
