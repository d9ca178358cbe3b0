// Package seal computes tamper-evident digests of memo content. The digest
// covers the RFC 8785 canonical JSON form of the sealed fields so that
// semantically identical content always hashes the same, regardless of key
// order or whitespace in storage.
package seal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/gowebpki/jcs"

	dErrors "veritax/pkg/domain-errors"
)

// Content is the exact set of fields covered by a seal. Lifecycle and
// bookkeeping fields (status, timestamps, the hash itself) stay outside.
type Content struct {
	MemoID          string          `json:"memo_id"`
	ClientID        string          `json:"client_id"`
	MemoType        string          `json:"memo_type"`
	Title           string          `json:"title"`
	Sections        json.RawMessage `json:"sections"`
	Conclusion      string          `json:"conclusion"`
	Recommendations string          `json:"recommendations"`
}

// Digest returns the hex SHA-256 of the canonicalized content, with the PDF
// rendering mixed in when one accompanies the seal.
func Digest(content Content, pdf []byte) (string, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "encode memo content")
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "canonicalize memo content")
	}

	h := sha256.New()
	h.Write(canonical)
	if len(pdf) > 0 {
		h.Write(pdf)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
