package materials

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownShape    = errors.New("unknown shape")
	ErrInvalidGeometry = errors.New("invalid geometry")
)

var (
	pi    = decimal.RequireFromString("3.14159265358979323846")
	sqrt3 = decimal.RequireFromString("1.73205080756887729353")
	two   = decimal.NewFromInt(2)
	four  = decimal.NewFromInt(4)

	mm3PerDm3 = decimal.NewFromInt(1_000_000)
	mmPerM    = decimal.NewFromInt(1000)
)

// Dim is one named dimension in millimetres.
type Dim struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// Geometry is a shape with exactly the dimensions that shape needs.
type Geometry interface {
	Shape() Shape
	// Profile lists the cross-section dimensions the stock catalog is keyed on,
	// in a fixed per-shape order.
	Profile() []Dim
	Length() decimal.Decimal
	// Volume in mm³.
	Volume() decimal.Decimal
	// WithProfile returns the same geometry with its profile values replaced,
	// in Profile order. Used to price a larger stock item cut to the same length.
	WithProfile(values []decimal.Decimal) Geometry
	Dimensions() Dimensions
}

type RoundBar struct{ Diameter, L decimal.Decimal }

type SquareBar struct{ Side, L decimal.Decimal }

type FlatBar struct{ Width, Thickness, L decimal.Decimal }

type HexBar struct{ AcrossFlats, L decimal.Decimal }

type Tube struct{ OuterDiameter, Wall, L decimal.Decimal }

type Plate struct{ Thickness, Width, L decimal.Decimal }

type Casting struct{ Width, Height, L decimal.Decimal }

func (g RoundBar) Shape() Shape            { return ShapeRoundBar }
func (g RoundBar) Length() decimal.Decimal { return g.L }
func (g RoundBar) Profile() []Dim          { return []Dim{{"diameter", g.Diameter}} }
func (g RoundBar) Volume() decimal.Decimal {
	return pi.Mul(g.Diameter).Mul(g.Diameter).Div(four).Mul(g.L)
}
func (g RoundBar) WithProfile(v []decimal.Decimal) Geometry { g.Diameter = v[0]; return g }
func (g RoundBar) Dimensions() Dimensions {
	return Dimensions{Diameter: some(g.Diameter), Length: some(g.L)}
}

func (g SquareBar) Shape() Shape                             { return ShapeSquareBar }
func (g SquareBar) Length() decimal.Decimal                  { return g.L }
func (g SquareBar) Profile() []Dim                           { return []Dim{{"width", g.Side}} }
func (g SquareBar) Volume() decimal.Decimal                  { return g.Side.Mul(g.Side).Mul(g.L) }
func (g SquareBar) WithProfile(v []decimal.Decimal) Geometry { g.Side = v[0]; return g }
func (g SquareBar) Dimensions() Dimensions {
	return Dimensions{Width: some(g.Side), Length: some(g.L)}
}

func (g FlatBar) Shape() Shape            { return ShapeFlatBar }
func (g FlatBar) Length() decimal.Decimal { return g.L }
func (g FlatBar) Profile() []Dim {
	return []Dim{{"width", g.Width}, {"height", g.Thickness}}
}
func (g FlatBar) Volume() decimal.Decimal { return g.Width.Mul(g.Thickness).Mul(g.L) }
func (g FlatBar) WithProfile(v []decimal.Decimal) Geometry {
	g.Width, g.Thickness = v[0], v[1]
	return g
}
func (g FlatBar) Dimensions() Dimensions {
	return Dimensions{Width: some(g.Width), Height: some(g.Thickness), Length: some(g.L)}
}

func (g HexBar) Shape() Shape            { return ShapeHexBar }
func (g HexBar) Length() decimal.Decimal { return g.L }
func (g HexBar) Profile() []Dim          { return []Dim{{"width", g.AcrossFlats}} }

// Volume uses the hexagon area sqrt(3)/2 * s², s being the across-flats size.
func (g HexBar) Volume() decimal.Decimal {
	return sqrt3.Div(two).Mul(g.AcrossFlats).Mul(g.AcrossFlats).Mul(g.L)
}
func (g HexBar) WithProfile(v []decimal.Decimal) Geometry { g.AcrossFlats = v[0]; return g }
func (g HexBar) Dimensions() Dimensions {
	return Dimensions{Width: some(g.AcrossFlats), Length: some(g.L)}
}

func (g Tube) Shape() Shape            { return ShapeTube }
func (g Tube) Length() decimal.Decimal { return g.L }
func (g Tube) Profile() []Dim {
	return []Dim{{"diameter", g.OuterDiameter}, {"wall_thickness", g.Wall}}
}
func (g Tube) Volume() decimal.Decimal {
	inner := g.OuterDiameter.Sub(g.Wall.Mul(two))
	ring := g.OuterDiameter.Mul(g.OuterDiameter).Sub(inner.Mul(inner))
	return pi.Mul(ring).Div(four).Mul(g.L)
}
func (g Tube) WithProfile(v []decimal.Decimal) Geometry {
	g.OuterDiameter, g.Wall = v[0], v[1]
	return g
}
func (g Tube) Dimensions() Dimensions {
	return Dimensions{Diameter: some(g.OuterDiameter), WallThickness: some(g.Wall), Length: some(g.L)}
}

func (g Plate) Shape() Shape                             { return ShapePlate }
func (g Plate) Length() decimal.Decimal                  { return g.L }
func (g Plate) Profile() []Dim                           { return []Dim{{"height", g.Thickness}} }
func (g Plate) Volume() decimal.Decimal                  { return g.Thickness.Mul(g.Width).Mul(g.L) }
func (g Plate) WithProfile(v []decimal.Decimal) Geometry { g.Thickness = v[0]; return g }
func (g Plate) Dimensions() Dimensions {
	return Dimensions{Width: some(g.Width), Height: some(g.Thickness), Length: some(g.L)}
}

func (g Casting) Shape() Shape            { return ShapeCasting }
func (g Casting) Length() decimal.Decimal { return g.L }
func (g Casting) Profile() []Dim {
	return []Dim{{"width", g.Width}, {"height", g.Height}}
}
func (g Casting) Volume() decimal.Decimal { return g.Width.Mul(g.Height).Mul(g.L) }
func (g Casting) WithProfile(v []decimal.Decimal) Geometry {
	g.Width, g.Height = v[0], v[1]
	return g
}
func (g Casting) Dimensions() Dimensions {
	return Dimensions{Width: some(g.Width), Height: some(g.Height), Length: some(g.L)}
}

// DecodeGeometry builds the shape variant from flat columns. Fields the shape
// needs must be present and positive; the rest are ignored.
func DecodeGeometry(shape Shape, d Dimensions) (Geometry, error) {
	profile, err := DecodeProfile(shape, d)
	if err != nil {
		return nil, err
	}
	l, err := need(shape, "length", d.Length)
	if err != nil {
		return nil, err
	}
	v := values(profile)
	switch shape {
	case ShapeRoundBar:
		return RoundBar{Diameter: v[0], L: l}, nil
	case ShapeSquareBar:
		return SquareBar{Side: v[0], L: l}, nil
	case ShapeFlatBar:
		return FlatBar{Width: v[0], Thickness: v[1], L: l}, nil
	case ShapeHexBar:
		return HexBar{AcrossFlats: v[0], L: l}, nil
	case ShapeTube:
		return Tube{OuterDiameter: v[0], Wall: v[1], L: l}, nil
	case ShapePlate:
		w, err := need(shape, "width", d.Width)
		if err != nil {
			return nil, err
		}
		return Plate{Thickness: v[0], Width: w, L: l}, nil
	case ShapeCasting:
		return Casting{Width: v[0], Height: v[1], L: l}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownShape, shape)
}

// DecodeProfile extracts the catalog-keyed cross-section of a shape. Catalog
// items have no length, so only the profile is validated.
func DecodeProfile(shape Shape, d Dimensions) ([]Dim, error) {
	var names []string
	var fields []decimal.NullDecimal
	switch shape {
	case ShapeRoundBar:
		names, fields = []string{"diameter"}, []decimal.NullDecimal{d.Diameter}
	case ShapeSquareBar, ShapeHexBar:
		names, fields = []string{"width"}, []decimal.NullDecimal{d.Width}
	case ShapeFlatBar, ShapeCasting:
		names, fields = []string{"width", "height"}, []decimal.NullDecimal{d.Width, d.Height}
	case ShapeTube:
		names, fields = []string{"diameter", "wall_thickness"}, []decimal.NullDecimal{d.Diameter, d.WallThickness}
	case ShapePlate:
		names, fields = []string{"height"}, []decimal.NullDecimal{d.Height}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownShape, shape)
	}

	out := make([]Dim, len(names))
	for i, n := range names {
		v, err := need(shape, n, fields[i])
		if err != nil {
			return nil, err
		}
		out[i] = Dim{Name: n, Value: v}
	}
	if shape == ShapeTube && !out[1].Value.Mul(two).LessThan(out[0].Value) {
		return nil, fmt.Errorf("%w: tube wall %s too thick for diameter %s", ErrInvalidGeometry, out[1].Value, out[0].Value)
	}
	return out, nil
}

// WeightFromDensity returns kg for a geometry and a density in kg/dm³.
func WeightFromDensity(g Geometry, density decimal.Decimal) decimal.Decimal {
	return g.Volume().Mul(density).Div(mm3PerDm3)
}

// WeightFromCatalog returns kg for a cut length (mm) of stock sold by kg/m.
func WeightFromCatalog(weightPerMeter, lengthMM decimal.Decimal) decimal.Decimal {
	return weightPerMeter.Mul(lengthMM).Div(mmPerM)
}

func need(shape Shape, name string, v decimal.NullDecimal) (decimal.Decimal, error) {
	if !v.Valid {
		return decimal.Zero, fmt.Errorf("%w: %s requires %s", ErrInvalidGeometry, shape, name)
	}
	if !v.Decimal.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s %s must be positive, got %s", ErrInvalidGeometry, shape, name, v.Decimal)
	}
	return v.Decimal, nil
}

func values(ds []Dim) []decimal.Decimal {
	out := make([]decimal.Decimal, len(ds))
	for i, d := range ds {
		out[i] = d.Value
	}
	return out
}

func some(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
