package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"sort"
	"strconv"

	"github.com/dharsanguruparan/IngestDrop/internal/model"
)

// Fingerprint returns the hex SHA-256 of the raw file bytes. It ignores the
// filename and whatever encoding or delimiter the content turns out to use.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// RowHash identifies a normalized row within a job.
func RowHash(jobID string, row Row) string {
	h := sha256.New()
	writePart(h, jobID)
	writePart(h, row.Email)
	writePart(h, row.FirstName)
	writePart(h, row.LastName)
	writePart(h, row.Company)
	return hex.EncodeToString(h.Sum(nil))
}

// IssueKey derives the idempotency key of an issue from its job, type and the
// sorted set of affected staging ids.
func IssueKey(jobID string, typ model.IssueType, stagingIDs []string) string {
	ids := append([]string(nil), stagingIDs...)
	sort.Strings(ids)
	h := sha256.New()
	writePart(h, jobID)
	writePart(h, string(typ))
	for _, id := range ids {
		writePart(h, id)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// writePart length-prefixes each value so ("ab","c") and ("a","bc") differ.
func writePart(h hash.Hash, v string) {
	h.Write([]byte(strconv.Itoa(len(v))))
	h.Write([]byte{':'})
	h.Write([]byte(v))
}
