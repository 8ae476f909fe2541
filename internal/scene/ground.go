package scene

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"sceneaoi/internal/geom"
)

// ErrOutsideGround is returned for samples beyond the elevation grid.
var ErrOutsideGround = errors.New("point outside ground extent")

// Ground is a regular elevation grid. Row 0 lies at OriginY, column 0 at
// OriginX, and cells are Cell units apart on both axes.
type Ground struct {
	OriginX float64
	OriginY float64
	Cell    float64

	z       *mat.Dense
	latency time.Duration
}

// NewGround wraps z, which must have at least two rows and columns.
func NewGround(originX, originY, cell float64, z *mat.Dense) (*Ground, error) {
	r, c := z.Dims()
	if r < 2 || c < 2 {
		return nil, fmt.Errorf("ground grid %dx%d: need at least 2x2", r, c)
	}
	if cell <= 0 {
		return nil, fmt.Errorf("ground cell size %g must be positive", cell)
	}
	return &Ground{OriginX: originX, OriginY: originY, Cell: cell, z: z}, nil
}

// LoadGround reads an elevation CSV:
//
//	# origin_x,origin_y,cell
//	z00,z01,...
//	z10,z11,...
func LoadGround(path string) (*Ground, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := ReadGround(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// ReadGround parses the elevation CSV format of LoadGround.
func ReadGround(rd io.Reader) (*Ground, error) {
	r := csv.NewReader(rd)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errors.New("empty csv")
	}
	header := recs[0]
	if len(header) != 3 || !strings.HasPrefix(strings.TrimSpace(header[0]), "#") {
		return nil, errors.New("csv: expected '# origin_x,origin_y,cell' header")
	}
	header[0] = strings.TrimPrefix(strings.TrimSpace(header[0]), "#")
	var hv [3]float64
	for i, s := range header {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("csv header: %w", err)
		}
		hv[i] = v
	}

	rows := recs[1:]
	if len(rows) == 0 {
		return nil, errors.New("csv: no elevation rows")
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("csv row %d: %d values, want %d", i+1, len(row), cols)
		}
		for _, s := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("csv row %d: %w", i+1, err)
			}
			data = append(data, v)
		}
	}
	return NewGround(hv[0], hv[1], hv[2], mat.NewDense(len(rows), cols, data))
}

// SetLatency delays every sampling request, simulating a remote service.
func (g *Ground) SetLatency(d time.Duration) { g.latency = d }

// Extent is the covered area.
func (g *Ground) Extent() geom.BBox {
	r, c := g.z.Dims()
	return geom.BBox{
		MinX: g.OriginX,
		MinY: g.OriginY,
		MaxX: g.OriginX + float64(c-1)*g.Cell,
		MaxY: g.OriginY + float64(r-1)*g.Cell,
	}
}

// ElevationAt interpolates bilinearly between the four surrounding posts.
func (g *Ground) ElevationAt(x, y float64) (float64, error) {
	rows, cols := g.z.Dims()
	fx := (x - g.OriginX) / g.Cell
	fy := (y - g.OriginY) / g.Cell
	if fx < 0 || fy < 0 || fx > float64(cols-1) || fy > float64(rows-1) || math.IsNaN(fx) || math.IsNaN(fy) {
		return 0, fmt.Errorf("%w: (%g, %g)", ErrOutsideGround, x, y)
	}
	c0 := min(int(fx), cols-2)
	r0 := min(int(fy), rows-2)
	tx, ty := fx-float64(c0), fy-float64(r0)

	z00 := g.z.At(r0, c0)
	z01 := g.z.At(r0, c0+1)
	z10 := g.z.At(r0+1, c0)
	z11 := g.z.At(r0+1, c0+1)
	return (1-ty)*((1-tx)*z00+tx*z01) + ty*((1-tx)*z10+tx*z11), nil
}

// SampleElevation drapes pts onto the ground. One point outside the grid
// fails the whole request.
func (g *Ground) SampleElevation(ctx context.Context, pts []geom.Point) ([]geom.Point, error) {
	if err := wait(ctx, g.latency); err != nil {
		return nil, err
	}
	out := make([]geom.Point, len(pts))
	for i, p := range pts {
		z, err := g.ElevationAt(p.X, p.Y)
		if err != nil {
			return nil, err
		}
		out[i] = p.WithZ(z)
	}
	return out, nil
}
