// Package capture decodes observations produced by upstream extractors. It
// is the strict boundary of the engine: unknown fields are rejected, and a
// candidate that arrives without a type gets one from a Classifier.
package capture

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/spatial-cortex/internal/classifier"
	"github.com/ajitpratap0/spatial-cortex/internal/models"
)

// Format is an observation encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnsupportedFormat is returned for files that are neither JSON nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported observation format")

// FormatFor picks a format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", errors.Wrapf(ErrUnsupportedFormat, "%s", path)
}

// File is the decoded content of one observation file.
type File struct {
	Path         string               `json:"path"`
	Observations []models.Observation `json:"observations"`
}

// Decoder reads observations and fills in omitted entity types.
type Decoder struct {
	classifier classifier.Classifier
	logger     *slog.Logger
}

// NewDecoder creates a decoder. A nil classifier leaves omitted types empty,
// which ingest then rejects per candidate.
func NewDecoder(cls classifier.Classifier, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{classifier: cls, logger: logger}
}

// Decode reads every observation in r. JSON input may be a single object, an
// array of objects or a stream of objects. YAML input holds one observation
// per document.
func (d *Decoder) Decode(r io.Reader, f Format) ([]models.Observation, error) {
	var (
		obs []models.Observation
		err error
	)
	switch f {
	case FormatJSON:
		obs, err = decodeJSON(r)
	case FormatYAML:
		obs, err = decodeYAML(r)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", f)
	}
	if err != nil {
		return nil, errors.Mark(err, models.ErrValidation)
	}
	for i := range obs {
		d.inferTypes(&obs[i])
	}
	return obs, nil
}

// DecodeFile decodes the file at path, choosing the format by extension.
func (d *Decoder) DecodeFile(path string) (*File, error) {
	f, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer fh.Close()

	obs, err := d.Decode(fh, f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return &File{Path: path, Observations: obs}, nil
}

// LoadDir decodes every .json, .yaml and .yml file directly under dir in
// parallel. Files come back sorted by path. The first failure cancels the
// rest.
func (d *Decoder) LoadDir(ctx context.Context, dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", dir)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := FormatFor(e.Name()); err != nil {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	files := make([]File, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := d.DecodeFile(p)
			if err != nil {
				return err
			}
			files[i] = *f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := 0
	for _, f := range files {
		n += len(f.Observations)
	}
	d.logger.Info("observations loaded", "dir", dir, "files", len(files), "observations", n)
	return files, nil
}

// Chronological flattens files into one list ordered by provenance
// timestamp. Observations with equal timestamps keep file order.
func Chronological(files []File) []models.Observation {
	var out []models.Observation
	for _, f := range files {
		out = append(out, f.Observations...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Provenance.Timestamp.Before(out[j].Provenance.Timestamp)
	})
	return out
}

// inferTypes classifies candidates with no type. Explicit entity and
// relation types are only case-folded; one that does not parse is left for
// ingest to reject.
func (d *Decoder) inferTypes(obs *models.Observation) {
	for i := range obs.Relationships {
		if rt, err := models.ParseRelationType(string(obs.Relationships[i].Type)); err == nil {
			obs.Relationships[i].Type = rt
		}
	}
	for i := range obs.Entities {
		c := &obs.Entities[i]
		if c.Type != "" {
			if t, err := models.ParseEntityType(string(c.Type)); err == nil {
				c.Type = t
			}
			continue
		}
		if d.classifier == nil {
			continue
		}
		c.Type = d.classifier.Classify(c.Name, c.Description)
		d.logger.Debug("inferred entity type", "ref", obs.CandidateRef(i), "type", c.Type)
	}
}

func decodeJSON(r io.Reader) ([]models.Observation, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading json")
	}

	dec := json.NewDecoder(br)
	dec.DisallowUnknownFields()

	if first == '[' {
		var obs []models.Observation
		if err := dec.Decode(&obs); err != nil {
			return nil, errors.Wrap(err, "decoding json array")
		}
		if _, err := dec.Token(); err != io.EOF {
			return nil, errors.New("decoding json array: trailing data")
		}
		return obs, nil
	}

	var obs []models.Observation
	for {
		var o models.Observation
		err := dec.Decode(&o)
		if err == io.EOF {
			return obs, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "decoding json observation %d", len(obs))
		}
		obs = append(obs, o)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			_, _ = br.ReadByte()
		default:
			return b[0], nil
		}
	}
}

func decodeYAML(r io.Reader) ([]models.Observation, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var obs []models.Observation
	for {
		var o models.Observation
		err := dec.Decode(&o)
		if err == io.EOF {
			return obs, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "decoding yaml document %d", len(obs))
		}
		obs = append(obs, o)
	}
}
