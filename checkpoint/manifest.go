package checkpoint

import (
	"bytes"
	"encoding/json"
	"hash/crc32"

	"github.com/segmentio/ksuid"

	"github.com/nelknet/dbsp/dbsperr"
)

// ManifestEntry names one persisted artifact (a storage batch, a
// trace segment) produced as of a committed epoch.
type ManifestEntry struct {
	NodeName string `json:"node_name"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
}

// Manifest is the durable record of "as of epoch N, these are the
// artifacts a restore must load". Token is a ksuid minted at commit
// time: two manifests racing to commit the same epoch (a split-brain
// writer, or a retried commit after a network partition) are broken by
// comparing tokens, since ksuids are k-sortable by creation time and
// globally unique without coordination, which a plain epoch counter
// alone cannot provide.
type Manifest struct {
	Version int             `json:"version"`
	Epoch   uint64          `json:"epoch"`
	Token   string          `json:"token"`
	Entries []ManifestEntry `json:"entries"`
}

const manifestVersion = 1

// NewManifest builds a Manifest for epoch with a fresh tie-break token.
func NewManifest(epoch uint64, entries []ManifestEntry) Manifest {
	return Manifest{
		Version: manifestVersion,
		Epoch:   epoch,
		Token:   ksuid.New().String(),
		Entries: entries,
	}
}

// Encode serializes m followed by a trailing CRC32 of the JSON bytes,
// so a manifest file corrupted in place (as opposed to a WAL record,
// which is framed) is still detectable.
func Encode(m Manifest) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, dbsperr.New("checkpoint.manifest.encode", dbsperr.Serialization, err)
	}
	sum := crc32.ChecksumIEEE(body)
	out := make([]byte, len(body)+4)
	copy(out, body)
	out[len(body)] = byte(sum >> 24)
	out[len(body)+1] = byte(sum >> 16)
	out[len(body)+2] = byte(sum >> 8)
	out[len(body)+3] = byte(sum)
	return out, nil
}

// Decode verifies the trailing CRC32 and unmarshals the manifest.
func Decode(data []byte) (Manifest, error) {
	if len(data) < 4 {
		return Manifest{}, dbsperr.New("checkpoint.manifest.decode", dbsperr.Serialization, nil)
	}
	body, trailer := data[:len(data)-4], data[len(data)-4:]
	want := uint32(trailer[0])<<24 | uint32(trailer[1])<<16 | uint32(trailer[2])<<8 | uint32(trailer[3])
	if crc32.ChecksumIEEE(body) != want {
		return Manifest{}, dbsperr.New("checkpoint.manifest.decode", dbsperr.CrcMismatch, nil)
	}
	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return Manifest{}, dbsperr.New("checkpoint.manifest.decode", dbsperr.Serialization, err)
	}
	return m, nil
}

// Newest picks the manifest with the highest epoch, breaking ties by
// the lexicographically greatest ksuid token (chronological to the
// ksuid timestamp's one-second resolution).
func Newest(candidates []Manifest) (Manifest, bool) {
	if len(candidates) == 0 {
		return Manifest{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Epoch > best.Epoch || (c.Epoch == best.Epoch && bytes.Compare([]byte(c.Token), []byte(best.Token)) > 0) {
			best = c
		}
	}
	return best, true
}
