package suspects

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Digest returns the sha256 of the RFC 8785 canonical form of a JSON payload,
// so reformatting or key reordering does not count as a change.
func Digest(data []byte) (string, error) {
	canonical, err := jcs.Transform(data)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// DigestList digests a suspect list as it would be written.
func DigestList(list []Suspect) (string, error) {
	data, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return Digest(data)
}
