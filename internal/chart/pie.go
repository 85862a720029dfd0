package chart

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Pie renders a pie chart with one slice per label. Values must be
// non-negative and sum to more than zero.
func Pie(width, height int, values []float64, labels []string, opts PieOpts) (string, error) {
	if len(values) == 0 {
		return "", fmt.Errorf("svg: values required")
	}
	if len(values) != len(labels) {
		return "", fmt.Errorf("svg: labels length must match values")
	}
	total := 0.0
	for _, v := range values {
		if v < 0 {
			return "", fmt.Errorf("svg: pie values must not be negative")
		}
		total += v
	}
	if total <= 0 {
		return "", fmt.Errorf("svg: pie total must be positive")
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	padding := opts.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	axisColor := fallback(opts.AxisColor, "#475569")

	chartHeight := float64(height) - 2*padding
	if chartHeight <= 0 || float64(width)-2*padding <= 0 {
		return "", fmt.Errorf("svg: viewport too small")
	}

	radius := chartHeight / 2
	cx := padding + radius
	cy := float64(height) / 2

	titleID := makeID(opts.Title, "pie-title")
	descID := makeID(opts.Title, "pie-desc")

	var b strings.Builder
	b.WriteString(fmt.Sprintf("<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 %d %d\" role=\"img\" aria-labelledby=\"%s %s\">", width, height, titleID, descID))
	b.WriteString(fmt.Sprintf("<title id=\"%s\">%s</title>", titleID, template.HTMLEscapeString(fallback(opts.Title, "Pie chart"))))
	b.WriteString(fmt.Sprintf("<desc id=\"%s\">%s</desc>", descID, template.HTMLEscapeString(fallback(opts.Description, "Share comparison"))))

	start := -math.Pi / 2
	for i, value := range values {
		fraction := value / total
		end := start + fraction*2*math.Pi
		color := paletteColor(i)
		slice := fmt.Sprintf("%s %.1f%%", labels[i], fraction*100)

		if fraction >= 0.9999 {
			b.WriteString(fmt.Sprintf("<circle cx=\"%.2f\" cy=\"%.2f\" r=\"%.2f\" fill=\"%s\" aria-label=\"%s\"></circle>", cx, cy, radius, color, template.HTMLEscapeString(slice)))
		} else if fraction > 0 {
			x1 := cx + radius*math.Cos(start)
			y1 := cy + radius*math.Sin(start)
			x2 := cx + radius*math.Cos(end)
			y2 := cy + radius*math.Sin(end)
			largeArc := 0
			if fraction > 0.5 {
				largeArc = 1
			}
			b.WriteString(fmt.Sprintf("<path d=\"M%.2f %.2f L%.2f %.2f A%.2f %.2f 0 %d 1 %.2f %.2f Z\" fill=\"%s\" aria-label=\"%s\"></path>", cx, cy, x1, y1, radius, radius, largeArc, x2, y2, color, template.HTMLEscapeString(slice)))
		}

		if fraction > 0 {
			mid := (start + end) / 2
			tx := cx + radius*0.6*math.Cos(mid)
			ty := cy + radius*0.6*math.Sin(mid)
			b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"#ffffff\" font-size=\"10\" text-anchor=\"middle\">%s</text>", tx, ty+3, template.HTMLEscapeString(fmt.Sprintf("%.1f%%", fraction*100))))
		}
		start = end
	}

	// Legend
	legendX := cx + radius + 24
	legendY := padding + 10
	for i, label := range labels {
		b.WriteString(fmt.Sprintf("<rect x=\"%.2f\" y=\"%.2f\" width=\"10\" height=\"10\" fill=\"%s\"></rect>", legendX, legendY-8, paletteColor(i)))
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"start\">%s</text>", legendX+14, legendY, axisColor, template.HTMLEscapeString(label)))
		legendY += 14
	}

	b.WriteString("</svg>")
	return b.String(), nil
}
