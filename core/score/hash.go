package score

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// HashContent returns the BLAKE3 hash of raw source content as a hex
// string. Importers record it in Score.SourceHash so callers can detect
// whether a score was produced from the same input.
func HashContent(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
