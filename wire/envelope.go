// Package wire holds the document formats spoken between shards: the
// key/value request envelope (form or XML encoded) and LLSD XML documents.
package wire

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/linesmerrill/region-chat-api/models"
)

// ErrMalformedBody is returned when a request body cannot be decoded
var ErrMalformedBody = errors.New("malformed request body")

// Envelope field names used by the enqueue protocol
const (
	FieldAgentID      = "AGENTID"
	FieldRegionHandle = "REGIONHANDLE"
	FieldPass         = "PASS"
	FieldLLSD         = "LLSD"
	FieldResult       = "result"
)

const xmlDeclKey = "<?xml version"

type xmlField struct {
	XMLName xml.Name
	Inner   string `xml:",innerxml"`
	Text    string `xml:",chardata"`
}

type xmlEnvelope struct {
	Fields []xmlField `xml:",any"`
}

// ParseRequestBody decodes a key/value envelope. Form encoding is tried
// first; a body that parses to a single field, or whose only key is an XML
// declaration, is parsed again as an XML ServerResponse style document.
func ParseRequestBody(body string) (map[string]string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedBody)
	}

	values, err := url.ParseQuery(body)
	if err != nil || len(values) == 1 || values.Has(xmlDeclKey) {
		return parseXMLFields(body)
	}

	fields := make(map[string]string, len(values))
	for k := range values {
		fields[k] = values.Get(k)
	}
	return fields, nil
}

func parseXMLFields(body string) (map[string]string, error) {
	var env xmlEnvelope
	if err := xml.Unmarshal([]byte(body), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	fields := make(map[string]string, len(env.Fields))
	for _, f := range env.Fields {
		if text := strings.TrimSpace(f.Text); text != "" {
			fields[f.XMLName.Local] = text
		} else {
			fields[f.XMLName.Local] = strings.TrimSpace(f.Inner)
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrMalformedBody)
	}
	return fields, nil
}

// DecodeForwardAuthRequest validates and converts the enqueue fields
func DecodeForwardAuthRequest(fields map[string]string) (models.ForwardAuthRequest, error) {
	var req models.ForwardAuthRequest

	agentID, err := uuid.Parse(fields[FieldAgentID])
	if err != nil {
		return req, fmt.Errorf("%w: %s: %v", ErrMalformedBody, FieldAgentID, err)
	}
	handle, err := strconv.ParseUint(fields[FieldRegionHandle], 10, 64)
	if err != nil {
		return req, fmt.Errorf("%w: %s: %v", ErrMalformedBody, FieldRegionHandle, err)
	}
	pass, err := uuid.Parse(fields[FieldPass])
	if err != nil {
		return req, fmt.Errorf("%w: %s: %v", ErrMalformedBody, FieldPass, err)
	}
	payload, ok := fields[FieldLLSD]
	if !ok {
		return req, fmt.Errorf("%w: missing %s", ErrMalformedBody, FieldLLSD)
	}

	req.AgentID = agentID
	req.RegionHandle = handle
	req.Credential = pass
	req.Payload = payload
	return req, nil
}

// EncodeForwardAuthRequest renders req as a form encoded body
func EncodeForwardAuthRequest(req models.ForwardAuthRequest) string {
	v := url.Values{}
	v.Set(FieldAgentID, req.AgentID.String())
	v.Set(FieldRegionHandle, strconv.FormatUint(req.RegionHandle, 10))
	v.Set(FieldPass, req.Credential.String())
	v.Set(FieldLLSD, req.Payload)
	return v.Encode()
}

// BuildXMLResponse renders fields as a ServerResponse document
func BuildXMLResponse(fields map[string]string) []byte {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="utf-8"?><ServerResponse>`)
	for _, k := range keys {
		buf.WriteString("<" + k + ">")
		xml.EscapeText(&buf, []byte(fields[k]))
		buf.WriteString("</" + k + ">")
	}
	buf.WriteString("</ServerResponse>")
	return buf.Bytes()
}

// ResultResponse renders the single-field result envelope
func ResultResponse(result bool) []byte {
	return BuildXMLResponse(map[string]string{FieldResult: strconv.FormatBool(result)})
}
