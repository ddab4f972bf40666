package triggers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// triggersMember is the top-level key holding the rules.
const triggersMember = "triggers"

// Document is the decoded form of a trigger backend: the ordered rules, the
// settings, and every other top-level member kept verbatim so a save writes
// them back unchanged.
type Document struct {
	Rules    []Rule
	Settings Settings

	// members records the top-level layout in document order. The triggers
	// member is a placeholder whose value is regenerated from Rules.
	members []member

	// dropped counts rules discarded during decoding (empty keys).
	dropped int
}

type member struct {
	key string
	raw json.RawMessage
}

// ruleDoc is the on-disk shape of one rule.
type ruleDoc struct {
	Responses []string `json:"responses"`
	MatchType string   `json:"match_type"`
	Enabled   *bool    `json:"enabled,omitempty"`
}

// DefaultDocument returns the document installed when the backend is missing
// or unreadable: three enabled, contains-mode, single-response rules.
func DefaultDocument() *Document {
	settings := DefaultSettings()
	raw, _ := marshalJSON(settings)
	return &Document{
		Rules: []Rule{
			{Key: "ventus", Responses: []string{"Mejor hazle ping <@866749277966565426>"}, Mode: MatchContains, Enabled: true},
			{Key: "lau", Responses: []string{"Mejor hazle ping <@643114684177711123>"}, Mode: MatchContains, Enabled: true},
			{Key: "clara", Responses: []string{"Mejor hazle ping <@1333869783359160341>"}, Mode: MatchContains, Enabled: true},
		},
		Settings: settings,
		members: []member{
			{key: triggersMember},
			{key: "settings", raw: raw},
		},
	}
}

// DecodeDocument parses a JSON trigger document. Rule order follows the
// document. A missing triggers member yields an empty rule list; anything
// that is not a JSON object, or a triggers member that is not an object of
// rule objects, is reported as ErrMalformed.
func DecodeDocument(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	doc := &Document{}
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: member %q: %w", ErrMalformed, key, err)
		}

		if key == triggersMember {
			rules, dropped, err := decodeRules(raw)
			if err != nil {
				return nil, err
			}
			doc.Rules, doc.dropped = rules, dropped
			doc.setMember(key, nil)
			continue
		}

		if key == "settings" {
			// Settings are passthrough; an unexpected shape leaves defaults.
			var s Settings
			if json.Unmarshal(raw, &s) == nil {
				doc.Settings = s
			}
		}
		doc.setMember(key, raw)
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after document", ErrMalformed)
	}
	return doc, nil
}

// Encode renders the document as indented JSON. The triggers member keeps
// its original position; a document that never had one gets it first.
func (d *Document) Encode() ([]byte, error) {
	rules, err := encodeRules(d.Rules)
	if err != nil {
		return nil, err
	}

	members := d.members
	if !d.hasMember(triggersMember) {
		members = append([]member{{key: triggersMember}}, members...)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalJSON(m.key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		if m.key == triggersMember {
			buf.Write(rules)
		} else {
			buf.Write(m.raw)
		}
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("indent trigger document: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// WithRules returns a copy of d carrying rules in place of its own.
func (d *Document) WithRules(rules []Rule) *Document {
	next := &Document{
		Rules:    rules,
		Settings: d.Settings,
		members:  append([]member(nil), d.members...),
	}
	return next
}

// Siblings renders every top-level member except triggers as a JSON object.
// Backends that store rules natively use it to keep the rest verbatim.
func (d *Document) Siblings() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	n := 0
	for _, m := range d.members {
		if m.key == triggersMember {
			continue
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalJSON(m.key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(m.raw)
		n++
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Dropped returns how many rules were discarded during decoding.
func (d *Document) Dropped() int { return d.dropped }

func (d *Document) hasMember(key string) bool {
	for _, m := range d.members {
		if m.key == key {
			return true
		}
	}
	return false
}

// setMember replaces a repeated member in place (last value wins, first
// position kept) or appends a new one.
func (d *Document) setMember(key string, raw json.RawMessage) {
	for i := range d.members {
		if d.members[i].key == key {
			d.members[i].raw = raw
			return
		}
	}
	d.members = append(d.members, member{key: key, raw: raw})
}

func decodeRules(raw json.RawMessage) ([]Rule, int, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, 0, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, 0, fmt.Errorf("triggers member: %w", err)
	}

	set := NewTriggerSet(nil, Settings{})
	dropped := 0
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, 0, err
		}
		var rd ruleDoc
		if err := dec.Decode(&rd); err != nil {
			return nil, 0, fmt.Errorf("%w: trigger %q: %w", ErrMalformed, key, err)
		}

		enabled := true
		if rd.Enabled != nil {
			enabled = *rd.Enabled
		}
		mode := ParseMatchMode(rd.MatchType)
		r := Rule{
			Key:       NormalizeKey(key, mode),
			Responses: rd.Responses,
			Mode:      mode,
			Enabled:   enabled,
		}
		if r.Key == "" {
			dropped++
			continue
		}
		set.put(r)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, 0, err
	}
	return set.Rules(), dropped, nil
}

func encodeRules(rules []Rule) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range rules {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalJSON(r.Key)
		if err != nil {
			return nil, err
		}
		enabled := r.Enabled
		responses := r.Responses
		if responses == nil {
			responses = []string{}
		}
		v, err := marshalJSON(ruleDoc{
			Responses: responses,
			MatchType: string(ParseMatchMode(string(r.Mode))),
			Enabled:   &enabled,
		})
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalJSON encodes v without HTML escaping so mentions like <@123> stay
// readable on disk.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrMalformed, want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected member name, got %v", ErrMalformed, tok)
	}
	return key, nil
}
