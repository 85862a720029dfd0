package chart

// Kind names the rendered chart family. It doubles as a metric label.
type Kind string

const (
	KindLine Kind = "line"
	KindBar  Kind = "bar"
	KindPie  Kind = "pie"
)

// Chart is a rendered inline SVG visualization.
type Chart struct {
	Kind Kind   `json:"kind"`
	SVG  string `json:"svg"`
}

// Series is one named sequence of values plotted against the shared
// x-axis labels.
type Series struct {
	Name   string
	Values []float64
}

// LineOpts customises the line chart renderer.
type LineOpts struct {
	Title       string
	Description string
	FillColor   string
	AxisColor   string
	GridColor   string
	Padding     float64
	ShowDots    bool
	TickCount   int
}

// BarOpts customises the bar chart renderer.
type BarOpts struct {
	Title       string
	Description string
	AxisColor   string
	GridColor   string
	Padding     float64
	TickCount   int
}

// PieOpts customises the pie chart renderer.
type PieOpts struct {
	Title       string
	Description string
	AxisColor   string
	Padding     float64
}

// Defaults for the answer charts.
const (
	DefaultWidth   = 720
	DefaultHeight  = 240
	DefaultPadding = 24.0
	DefaultTicks   = 6
)

// palette colors series in declaration order and wraps around.
var palette = []string{"#2563eb", "#f97316", "#16a34a", "#9333ea", "#dc2626", "#0ea5e9"}

func paletteColor(i int) string {
	return palette[i%len(palette)]
}
