// Package gridio persists grids.  A grid dump is a recordio file with a
// zstd transformer: one header record carrying the orders, channels, bin
// limits, subgrid parameters, and metadata, followed by one record per
// non-empty subgrid cell.  The dump round-trips exactly: a deserialized
// grid stores bit-identical coefficients.
//
// The package also exports per-bin result tables as TSV, optionally
// gzip-compressed, for downstream tabulation.
package gridio

import (
	"bytes"
	"context"
	"encoding/gob"
	"io"
	"strconv"
	"strings"

	gerrors "github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/qcdgrid/grid"
	"github.com/grailbio/qcdgrid/lumi"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

const (
	// <fileVersionHeader, fileVersion> is stored in the recordio header.
	fileVersionHeader = "qcdgridversion"
	fileVersion       = "QCDGRID_V1"
)

// gridHeader is the first record of a dump.
type gridHeader struct {
	Orders    []grid.Order
	Channels  [][]lumi.Triple
	BinLimits []float64
	Params    grid.SubgridParams
	Meta      map[string]string
}

// cellRecord is one non-empty subgrid cell.  Exactly one of Lagrange and
// Import is set.
type cellRecord struct {
	I, J, K  int
	Lagrange *grid.LagrangeSubgrid
	Import   *grid.ImportSubgrid
}

func encodeRecord(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write dumps g to w.
func Write(w io.Writer, g *grid.Grid) (err error) {
	recordiozstd.Init()
	rw := recordio.NewWriter(w, recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	rw.AddHeader(fileVersionHeader, fileVersion)

	header := gridHeader{
		Orders:    g.Orders(),
		BinLimits: g.BinLimits().Limits(),
		Params:    g.SubgridParams(),
		Meta:      g.KeyValues(),
	}
	for _, entry := range g.Channels() {
		header.Channels = append(header.Channels, entry.Triples())
	}
	b, err := encodeRecord(&header)
	if err != nil {
		return errors.Wrap(err, "gridio: encoding header")
	}
	rw.Append(b)

	bins := g.BinLimits().Bins()
	for i := range g.Orders() {
		for j := 0; j < bins; j++ {
			for k := range g.Channels() {
				sg := g.Subgrid(i, j, k)
				if sg.IsEmpty() {
					continue
				}
				rec := cellRecord{I: i, J: j, K: k}
				switch v := sg.(type) {
				case *grid.LagrangeSubgrid:
					rec.Lagrange = v
				case *grid.ImportSubgrid:
					rec.Import = v
				default:
					return errors.Errorf("gridio: cell (%d, %d, %d) has unknown subgrid variant %T", i, j, k, sg)
				}
				if b, err = encodeRecord(&rec); err != nil {
					return errors.Wrapf(err, "gridio: encoding cell (%d, %d, %d)", i, j, k)
				}
				rw.Append(b)
			}
		}
	}
	return rw.Finish()
}

// Read reconstructs a grid from a dump written by Write.
func Read(r io.ReadSeeker) (*grid.Grid, error) {
	recordiozstd.Init()
	rs := recordio.NewScanner(r, recordio.ScannerOpts{})
	versionFound := false
	for _, kv := range rs.Header() {
		if kv.Key == fileVersionHeader {
			v, ok := kv.Value.(string)
			if !ok || v != fileVersion {
				return nil, gerrors.E("gridio: unsupported grid file version", kv.Value)
			}
			versionFound = true
			break
		}
	}
	if !versionFound {
		return nil, gerrors.E("gridio: not a grid file: missing " + fileVersionHeader + " header")
	}

	if !rs.Scan() {
		if err := rs.Err(); err != nil {
			return nil, errors.Wrap(err, "gridio: reading header record")
		}
		return nil, gerrors.E("gridio: truncated grid file: missing header record")
	}
	var header gridHeader
	if err := gob.NewDecoder(bytes.NewReader(rs.Get().([]byte))).Decode(&header); err != nil {
		return nil, errors.Wrap(err, "gridio: decoding header record")
	}
	channels := make([]*lumi.Entry, len(header.Channels))
	for i, triples := range header.Channels {
		channels[i] = lumi.NewEntry(triples)
	}
	g := grid.New(channels, header.Orders, header.BinLimits, header.Params)
	for k, v := range header.Meta {
		g.SetKeyValue(k, v)
	}

	for rs.Scan() {
		var rec cellRecord
		if err := gob.NewDecoder(bytes.NewReader(rs.Get().([]byte))).Decode(&rec); err != nil {
			return nil, errors.Wrap(err, "gridio: decoding cell record")
		}
		switch {
		case rec.Lagrange != nil:
			g.SetSubgrid(rec.I, rec.J, rec.K, rec.Lagrange)
		case rec.Import != nil:
			g.SetSubgrid(rec.I, rec.J, rec.K, rec.Import)
		default:
			return nil, gerrors.E("gridio: cell record carries no subgrid")
		}
	}
	if err := rs.Err(); err != nil {
		return nil, errors.Wrap(err, "gridio: scanning cells")
	}
	return g, nil
}

// WriteFile dumps g to path.
func WriteFile(ctx context.Context, path string, g *grid.Grid) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	return Write(out.Writer(ctx), g)
}

// ReadFile reconstructs a grid from path.
func ReadFile(ctx context.Context, path string) (g *grid.Grid, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	return Read(in.Reader(ctx))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteTSV writes one row per observable bin: bin index, lower and upper
// limit, and the corresponding entry of values (typically a Convolve
// result).  len(values) must equal the number of bins.
func WriteTSV(w io.Writer, g *grid.Grid, values []float64) error {
	limits := g.BinLimits().Limits()
	if len(values) != len(limits)-1 {
		return errors.Errorf("gridio: got %d values for %d bins", len(values), len(limits)-1)
	}
	tw := tsv.NewWriter(w)
	tw.WriteString("bin\tleft\tright\tvalue")
	if err := tw.EndLine(); err != nil {
		return err
	}
	for j, v := range values {
		tw.WriteInt64(int64(j))
		tw.WriteString(formatFloat(limits[j]))
		tw.WriteString(formatFloat(limits[j+1]))
		tw.WriteString(formatFloat(v))
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WriteTSVFile writes the bin table to path, gzip-compressing when the path
// ends in ".gz".
func WriteTSVFile(ctx context.Context, path string, g *grid.Grid, values []float64) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := out.Writer(ctx)
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(w)
		if err = WriteTSV(gz, g, values); err != nil {
			return err
		}
		return gz.Close()
	}
	return WriteTSV(w, g, values)
}
