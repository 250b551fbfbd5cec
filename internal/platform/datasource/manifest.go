package datasource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the field delimiter convention of a source file.
type Format string

const (
	FormatCSV Format = "csv"
	FormatTSV Format = "tsv"
)

// FileSpec locates one table. In YAML it is either a bare path or a mapping
// with path and format.
type FileSpec struct {
	Path   string `yaml:"path"`
	Format Format `yaml:"format,omitempty"`
}

func (f *FileSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		f.Path = node.Value
		return nil
	}
	type plain FileSpec
	return node.Decode((*plain)(f))
}

// Delimiter returns the field separator, inferred from the file extension
// when no format is given. .txt and .tsv files are tab separated.
func (f FileSpec) Delimiter() rune {
	switch f.Format {
	case FormatTSV:
		return '\t'
	case FormatCSV:
		return ','
	}
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".tsv", ".txt", ".tab":
		return '\t'
	}
	return ','
}

// SeriesSpec is one time-series table.
type SeriesSpec struct {
	Key    string `yaml:"key"`
	Label  string `yaml:"label,omitempty"`
	Unit   string `yaml:"unit,omitempty"`
	Path   string `yaml:"path"`
	Format Format `yaml:"format,omitempty"`
}

// File returns the location of the series table.
func (s SeriesSpec) File() FileSpec {
	return FileSpec{Path: s.Path, Format: s.Format}
}

// Manifest names the files that make up one dataset snapshot.
type Manifest struct {
	Donors     FileSpec     `yaml:"donors"`
	Biosamples FileSpec     `yaml:"biosamples"`
	Traits     FileSpec     `yaml:"traits"`
	TimeSeries []SeriesSpec `yaml:"timeseries"`
}

// KnownSeries carries the display label and unit of the standard perifusion
// series.
var KnownSeries = map[string]struct{ Label, Unit string }{
	"ins_ieq":     {"Insulin (IEQ normalized)", "ng/100 IEQ/min"},
	"ins_content": {"Insulin (Content normalized)", "% of total content"},
	"gcg_ieq":     {"Glucagon (IEQ normalized)", "pg/100 IEQ/min"},
	"gcg_content": {"Glucagon (Content normalized)", "% of total content"},
}

// DefaultManifest describes the standard data directory layout.
func DefaultManifest(dir string) *Manifest {
	m := &Manifest{
		Donors:     FileSpec{Path: "donor_metadata/pankbase_human_donor.txt"},
		Biosamples: FileSpec{Path: "biosample_metadata/biosamples.txt"},
		Traits:     FileSpec{Path: "functional_data/HIPP_all_traits.csv"},
	}
	for _, key := range []string{"ins_ieq", "ins_content", "gcg_ieq", "gcg_content"} {
		m.TimeSeries = append(m.TimeSeries, SeriesSpec{
			Key:  key,
			Path: "functional_data/HIPP_" + key + ".csv",
		})
	}
	m.resolve(dir)
	return m
}

// LoadManifest reads a YAML manifest. Relative paths resolve against
// baseDir, or the manifest's own directory when baseDir is empty.
func LoadManifest(path, baseDir string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if baseDir == "" {
		baseDir = filepath.Dir(path)
	}
	m.resolve(baseDir)
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) resolve(dir string) {
	abs := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	abs(&m.Donors.Path)
	abs(&m.Biosamples.Path)
	abs(&m.Traits.Path)
	for i := range m.TimeSeries {
		s := &m.TimeSeries[i]
		abs(&s.Path)
		if known, ok := KnownSeries[s.Key]; ok {
			if s.Label == "" {
				s.Label = known.Label
			}
			if s.Unit == "" {
				s.Unit = known.Unit
			}
		}
		if s.Label == "" {
			s.Label = s.Key
		}
	}
}

// Validate checks that the required tables are named and series keys are
// unique.
func (m *Manifest) Validate() error {
	var errs []error
	if m.Donors.Path == "" {
		errs = append(errs, errors.New("donors path is required"))
	}
	if m.Traits.Path == "" {
		errs = append(errs, errors.New("traits path is required"))
	}
	seen := make(map[string]bool)
	for i, s := range m.TimeSeries {
		switch {
		case s.Key == "":
			errs = append(errs, fmt.Errorf("timeseries[%d]: key is required", i))
		case seen[s.Key]:
			errs = append(errs, fmt.Errorf("timeseries[%d]: duplicate key %q", i, s.Key))
		}
		if s.Path == "" {
			errs = append(errs, fmt.Errorf("timeseries[%d]: path is required", i))
		}
		seen[s.Key] = true
	}
	for _, f := range append([]FileSpec{m.Donors, m.Biosamples, m.Traits}, seriesFiles(m.TimeSeries)...) {
		if f.Format != "" && f.Format != FormatCSV && f.Format != FormatTSV {
			errs = append(errs, fmt.Errorf("%s: unknown format %q", f.Path, f.Format))
		}
	}
	return errors.Join(errs...)
}

// Files lists every path the manifest names.
func (m *Manifest) Files() []string {
	var out []string
	for _, f := range append([]FileSpec{m.Donors, m.Biosamples, m.Traits}, seriesFiles(m.TimeSeries)...) {
		if f.Path != "" {
			out = append(out, f.Path)
		}
	}
	return out
}

func seriesFiles(series []SeriesSpec) []FileSpec {
	out := make([]FileSpec, len(series))
	for i, s := range series {
		out[i] = s.File()
	}
	return out
}
