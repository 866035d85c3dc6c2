// Package canon provides the canonical encoding and SHA-256 hashing used
// to bind every sealed proof to the exact bytes of its inputs.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// ErrFloatInHashInput is returned when a structured value destined for
// hashing contains a floating point number. Floats are forbidden in
// proof inputs because binary64 formatting is not stable across
// languages and toolchains.
var ErrFloatInHashInput = fmt.Errorf("canon: floating point value is not permitted in a hash input")

// DigestValue returns the SHA-256 digest of v's canonical encoding.
//
// v is first marshaled through encoding/json (so struct tags are
// respected), then decoded into a generic tree and re-emitted with keys
// sorted, no HTML escaping, and no whitespace, so the canonical bytes
// never depend on Go's map iteration order or float formatting quirks.
func DigestValue(v interface{}) ([32]byte, error) {
	b, err := Canonicalize(v)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(b), nil
}

// DigestValueHex is DigestValue with the result hex-encoded.
func DigestValueHex(v interface{}) (string, error) {
	sum, err := DigestValue(v)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum[:]), nil
}

// Canonicalize returns the canonical, whitespace-free JSON-subset
// encoding of v: object keys sorted lexicographically by UTF-8 bytes,
// no HTML escaping, integers preserved exactly. Floats fail the call —
// callers that need a float in a proof must quantize or reject it
// before reaching this package.
func Canonicalize(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: marshal failed: %w", err)
	}

	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(intermediate))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canon: decode failed: %w", err)
	}

	var buf bytes.Buffer
	if err := encodeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		if isFloatLiteral(t.String()) {
			return ErrFloatInHashInput
		}
		buf.WriteString(t.String())
		return nil
	case string:
		return encodeString(buf, t)
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encodeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("canon: unsupported value type %T", v)
	}
}

func encodeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	before := buf.Len()
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("canon: encode string: %w", err)
	}
	// json.Encoder always appends a trailing newline; trim it.
	data := buf.Bytes()
	buf.Truncate(before)
	buf.Write(bytes.TrimSuffix(data[before:], []byte{'\n'}))
	return nil
}

func isFloatLiteral(s string) bool {
	for _, r := range s {
		if r == '.' || r == 'e' || r == 'E' {
			return true
		}
	}
	return false
}

// DigestFile streams path's contents into SHA-256 and returns the
// lower-case hex digest. The read is buffered by io.Copy's internal
// chunking; the whole file is never held in memory at once.
func DigestFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled context source identifier
	if err != nil {
		return "", fmt.Errorf("canon: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // best-effort close after read

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("canon: read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// OrderedByIdentityAndHash sorts items whose declaration order carries
// no meaning (context sources) into the canonical order the proof is
// computed over: lexicographic on (identifier, contentHash). This is
// the rule that makes the proof invariant to the caller's declaration
// order.
func OrderedByIdentityAndHash(items []OrderableSource) []OrderableSource {
	out := make([]OrderableSource, len(items))
	copy(out, items)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Identifier() != out[j].Identifier() {
			return out[i].Identifier() < out[j].Identifier()
		}
		return out[i].ContentHash() < out[j].ContentHash()
	})
	return out
}

// OrderableSource is the minimal shape canon needs to impose a
// canonical order over an order-insignificant sequence. pkg/graph's
// ContextSource satisfies it.
type OrderableSource interface {
	Identifier() string
	ContentHash() string
}
