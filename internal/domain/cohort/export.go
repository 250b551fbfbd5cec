package cohort

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// ExportRequest selects what a download contains. Include flags default to
// true when omitted.
type ExportRequest struct {
	Filter            Criteria `json:"filter"`
	IncludeMetadata   *bool    `json:"include_metadata"`
	IncludeTraits     *bool    `json:"include_traits"`
	IncludeTimeSeries *bool    `json:"include_timeseries"`
	TimeSeriesTypes   []string `json:"timeseries_types"`
	Format            string   `json:"format" validate:"omitempty,oneof=csv json"`
}

func (r ExportRequest) wants(flag *bool) bool { return flag == nil || *flag }

// Bundle is the JSON form of a download.
type Bundle struct {
	DonorIDs   []string                `json:"donor_ids"`
	Metadata   []Record                `json:"metadata,omitempty"`
	Traits     *TraitTable             `json:"traits,omitempty"`
	TimeSeries map[string]*SeriesSlice `json:"timeseries,omitempty"`
}

// Export resolves a download request against the published snapshot.
func (s *Service) Export(ctx context.Context, req ExportRequest) (*Bundle, error) {
	snap, err := s.store.View()
	if err != nil {
		return nil, err
	}
	return snap.Export(req)
}

// Export builds the download bundle for req.
func (s *Snapshot) Export(req ExportRequest) (*Bundle, error) {
	sel, err := Filter(req.Filter, s.frame)
	if err != nil {
		return nil, err
	}
	b := &Bundle{DonorIDs: nonNil(sel.IDs)}
	if req.wants(req.IncludeMetadata) {
		b.Metadata = s.Records(sel.Rows, SourceDonor)
	}
	if req.wants(req.IncludeTraits) {
		if b.Traits, err = s.Traits(sel.IDs, nil); err != nil {
			return nil, err
		}
	}
	if req.wants(req.IncludeTimeSeries) {
		keys := req.TimeSeriesTypes
		if len(keys) == 0 && s.DefaultSeries() != "" {
			keys = []string{s.DefaultSeries()}
		}
		b.TimeSeries = make(map[string]*SeriesSlice, len(keys))
		for _, k := range keys {
			ss, err := s.TimeSeries(sel.IDs, k)
			if err != nil {
				return nil, err
			}
			b.TimeSeries[k] = ss
		}
	}
	return b, nil
}

// WriteZip writes the bundle as a zip archive of CSV files. metaColumns
// fixes the metadata column order.
func (b *Bundle) WriteZip(w io.Writer, metaColumns []string, seriesOrder []string) error {
	zw := zip.NewWriter(w)

	if b.Metadata != nil {
		rows := make([][]string, 0, len(b.Metadata)+1)
		rows = append(rows, metaColumns)
		for _, rec := range b.Metadata {
			line := make([]string, len(metaColumns))
			for i, c := range metaColumns {
				line[i] = formatValue(rec[c])
			}
			rows = append(rows, line)
		}
		if err := writeCSV(zw, "donor_metadata.csv", rows); err != nil {
			return err
		}
	}

	if b.Traits != nil {
		rows := [][]string{append([]string{colRRID}, b.Traits.Names...)}
		for _, r := range b.Traits.Rows {
			line := []string{r.DonorID}
			for _, n := range b.Traits.Names {
				line = append(line, formatFloat(r.Values[n]))
			}
			rows = append(rows, line)
		}
		if err := writeCSV(zw, "traits.csv", rows); err != nil {
			return err
		}
	}

	for _, key := range seriesOrder {
		ss, ok := b.TimeSeries[key]
		if !ok {
			continue
		}
		rows := [][]string{append([]string{colSeriesTime}, ss.Donors...)}
		for i, t := range ss.Time {
			line := []string{strconv.FormatFloat(t, 'f', -1, 64)}
			for _, d := range ss.Donors {
				line = append(line, formatFloat(ss.Values[d][i]))
			}
			rows = append(rows, line)
		}
		if err := writeCSV(zw, "timeseries_"+key+".csv", rows); err != nil {
			return err
		}
	}
	return zw.Close()
}

// MetadataColumns returns the donor columns in view order.
func (s *Snapshot) MetadataColumns() []string {
	cols := s.frame.ColumnsFrom(SourceDonor)
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func writeCSV(zw *zip.Writer, name string, rows [][]string) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
