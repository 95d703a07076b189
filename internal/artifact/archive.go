package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Archive is the serialized payload of one recovery point: every
// component's bytes plus the order they were captured in. It is what
// the pipeline encodes and the checksum covers.
type Archive struct {
	Version    int               `json:"version"`
	Components []string          `json:"components"`
	Payloads   map[string][]byte `json:"payloads"`
}

const archiveVersion = 1

// NewArchive builds an archive with components in stable name order.
func NewArchive(payloads map[string][]byte) *Archive {
	names := make([]string, 0, len(payloads))
	for name := range payloads {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Archive{
		Version:    archiveVersion,
		Components: names,
		Payloads:   payloads,
	}
}

// Marshal encodes the archive for storage.
func (a *Archive) Marshal() ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal archive: %w", err)
	}
	return data, nil
}

// UnmarshalArchive decodes a stored archive.
func UnmarshalArchive(data []byte) (*Archive, error) {
	var a Archive
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("unmarshal archive: %w", err)
	}
	if a.Version != archiveVersion {
		return nil, fmt.Errorf("unsupported archive version: %d", a.Version)
	}
	return &a, nil
}

// Checksum returns the hex sha256 digest of the component payloads
// concatenated in stable name order. Serializing the same component
// set twice with unchanged state yields the same digest.
func (a *Archive) Checksum() string {
	h := sha256.New()
	for _, name := range a.Components {
		h.Write([]byte(name))
		h.Write(a.Payloads[name])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Size returns the total payload bytes across components.
func (a *Archive) Size() int64 {
	var total int64
	for _, data := range a.Payloads {
		total += int64(len(data))
	}
	return total
}

// Has reports whether the archive contains the named component.
func (a *Archive) Has(name string) bool {
	_, ok := a.Payloads[name]
	return ok
}
