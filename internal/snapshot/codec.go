// Package snapshot moves exported graph state in and out of the process:
// Codec reads and writes snapshot files, BadgerStore keeps one snapshot per
// graph plus a log of ingest manifests.
package snapshot

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/spatial-cortex/internal/models"
)

// Format is a snapshot file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnsupportedFormat is returned for encodings other than JSON and YAML.
var ErrUnsupportedFormat = errors.New("unsupported snapshot format")

// Codec encodes and decodes snapshots in one format.
type Codec struct {
	format Format
}

// NewCodec returns a codec for f.
func NewCodec(f Format) (Codec, error) {
	switch f {
	case FormatJSON, FormatYAML:
		return Codec{format: f}, nil
	}
	return Codec{}, errors.Wrapf(ErrUnsupportedFormat, "%q", f)
}

// CodecFor picks a codec from a file extension. Paths without an extension
// use JSON.
func CodecFor(path string) (Codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", "":
		return Codec{format: FormatJSON}, nil
	case ".yaml", ".yml":
		return Codec{format: FormatYAML}, nil
	}
	return Codec{}, errors.Wrapf(ErrUnsupportedFormat, "%s", path)
}

// Format reports the codec's encoding.
func (c Codec) Format() Format {
	return c.format
}

// Encode writes snap to w.
func (c Codec) Encode(w io.Writer, snap *models.Snapshot) error {
	switch c.format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return errors.Wrap(err, "encoding yaml snapshot")
		}
		return errors.Wrap(enc.Close(), "encoding yaml snapshot")
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(snap), "encoding json snapshot")
	}
}

// Decode reads one snapshot from r, rejecting unknown fields. The result is
// not validated; ImportSnapshot does that before applying anything.
func (c Codec) Decode(r io.Reader) (*models.Snapshot, error) {
	var snap models.Snapshot
	switch c.format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&snap); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decoding yaml snapshot"), models.ErrValidation)
		}
	default:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&snap); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decoding json snapshot"), models.ErrValidation)
		}
	}
	return &snap, nil
}
