package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sceneaoi/internal/geom"
)

var rectMove string

var rectCmd = &cobra.Command{
	Use:   "rect <ox> <oy> <tx> <ty>",
	Short: "Print the AOI rectangle spanned by two corners",
	Long: `Print the closed ring spanned by an origin and a terminal corner as WKT.
With --move, one corner is dragged first and the ring realigned the way
the interactive reshape tool does it, e.g. --move 2:12,8.`,
	Args: cobra.ExactArgs(4),
	RunE: runRect,
}

func init() {
	rectCmd.Flags().StringVar(&rectMove, "move", "", "corner:x,y to drag before printing (corners 0-3 in ring order)")
	rootCmd.AddCommand(rectCmd)
}

func runRect(cmd *cobra.Command, args []string) error {
	var v [4]float64
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i+1, err)
		}
		v[i] = f
	}
	sr := geom.SpatialReference(cfg.SceneWKID)
	r := geom.MakeRectangle(geom.NewPoint(v[0], v[1], 0, sr), geom.NewPoint(v[2], v[3], 0, sr))

	if rectMove != "" {
		corner, p, err := parseMove(rectMove, sr)
		if err != nil {
			return err
		}
		r = geom.RealignAfterEdit(r.MoveCorner(corner, p), r)
	}

	fmt.Println(r.WKT())
	fmt.Printf("area: %.3f\n", r.Area())
	return nil
}

func parseMove(s string, sr geom.SpatialReference) (int, geom.Point, error) {
	idx, xy, ok := strings.Cut(s, ":")
	if !ok {
		return 0, geom.Point{}, fmt.Errorf("move %q: want corner:x,y", s)
	}
	corner, err := strconv.Atoi(idx)
	if err != nil || corner < 0 || corner > 3 {
		return 0, geom.Point{}, fmt.Errorf("move %q: corner must be 0-3", s)
	}
	xs, ys, ok := strings.Cut(xy, ",")
	if !ok {
		return 0, geom.Point{}, fmt.Errorf("move %q: want corner:x,y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return 0, geom.Point{}, fmt.Errorf("move %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return 0, geom.Point{}, fmt.Errorf("move %q: %w", s, err)
	}
	return corner, geom.NewPoint(x, y, 0, sr), nil
}
