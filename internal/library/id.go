package library

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CanonicalID is the content address of a chunk: the hex sha256 of the
// trimmed url and trimmed text joined by a newline.
func CanonicalID(url, text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(url) + "\n" + strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

func CanonicalIDForChunk(c *Chunk) string {
	return CanonicalID(c.Info.URL(), c.Text)
}
