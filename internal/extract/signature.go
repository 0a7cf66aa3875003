package extract

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/tabcoach/tabcoach/pkg/types"
)

// signaturePrefixLen bounds how much description feeds the signature. Long
// statements only churn in their tail (vote counts, comments), so a bounded
// prefix is enough to detect a genuinely different problem.
const signaturePrefixLen = 1500

// Signature returns a cheap composite fingerprint of a context, used to
// suppress redundant update propagation. Two contexts with the same URL,
// title, and description prefix share a signature.
func Signature(pctx *types.ProblemContext) string {
	if pctx == nil {
		return ""
	}

	desc := pctx.Description
	if len(desc) > signaturePrefixLen {
		desc = desc[:signaturePrefixLen]
	}

	h := sha256.New()
	h.Write([]byte(pctx.URL))
	h.Write([]byte{0})
	h.Write([]byte(pctx.Title))
	h.Write([]byte{0})
	h.Write([]byte(desc))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
