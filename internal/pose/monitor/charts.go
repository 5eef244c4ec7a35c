package monitor

import (
	"bytes"
	"fmt"
	"image/color"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/pose.report/internal/httputil"
	"github.com/banshee-data/pose.report/internal/pose/sink"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// oldestFirst reverses a newest-first history page for plotting.
func oldestFirst(events []sink.Event) []sink.Event {
	out := make([]sink.Event, len(events))
	for i, e := range events {
		out[len(events)-1-i] = e
	}
	return out
}

// handleHistoryPlot renders the frame accuracy of recent events as a PNG.
// Query params:
//   - limit (optional; default history limit, max 1000)
func (s *Server) handleHistoryPlot(w http.ResponseWriter, r *http.Request) {
	events, ok := s.history(w, r)
	if !ok {
		return
	}
	png, err := renderAccuracyPlot(oldestFirst(events))
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(png)
}

func renderAccuracyPlot(events []sink.Event) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Frame accuracy of saved events"
	p.X.Label.Text = "Seconds since first event"
	p.Y.Label.Text = "Frame accuracy (%)"
	p.Y.Min = 0
	p.Y.Max = 100
	p.Add(plotter.NewGrid())

	if len(events) > 0 {
		first := events[0].Timestamp
		var correct, incorrect plotter.XYs
		all := make(plotter.XYs, 0, len(events))
		for _, e := range events {
			pt := plotter.XY{X: e.Timestamp.Sub(first).Seconds(), Y: e.AccuracyPercent()}
			all = append(all, pt)
			if e.Correct {
				correct = append(correct, pt)
			} else {
				incorrect = append(incorrect, pt)
			}
		}

		line, err := plotter.NewLine(all)
		if err != nil {
			return nil, err
		}
		line.Color = color.RGBA{R: 120, G: 120, B: 120, A: 255}
		line.Width = vg.Points(1)
		p.Add(line)

		for _, series := range []struct {
			name string
			pts  plotter.XYs
			c    color.Color
		}{
			{"correct", correct, color.RGBA{G: 170, A: 255}},
			{"incorrect", incorrect, color.RGBA{R: 210, A: 255}},
		} {
			if len(series.pts) == 0 {
				continue
			}
			sc, err := plotter.NewScatter(series.pts)
			if err != nil {
				return nil, err
			}
			sc.Color = series.c
			sc.Radius = vg.Points(3)
			p.Add(sc)
			p.Legend.Add(series.name, sc)
		}
	}

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// handleDashboard renders session rates and recent frame accuracy with
// go-echarts.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	events, ok := s.history(w, r)
	if !ok {
		return
	}

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsHost)
	page.PageTitle = "Pose dashboard"
	page.AddCharts(s.sessionChart(), accuracyChart(oldestFirst(events)))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) sessionChart() *charts.Bar {
	ids := s.mgr.SessionIDs()
	detection := make([]opts.BarData, 0, len(ids))
	accuracyRate := make([]opts.BarData, 0, len(ids))
	for _, id := range ids {
		agg, ok := s.mgr.LookupSession(id)
		if !ok {
			continue
		}
		st := agg.Stats()
		detection = append(detection, opts.BarData{Value: st.DetectionRate})
		accuracyRate = append(accuracyRate, opts.BarData{Value: st.AccuracyRate})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Sessions", Subtitle: time.Now().Format(time.RFC3339)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "%", Min: 0, Max: 100}),
	)
	bar.SetXAxis(ids).
		AddSeries("detection rate", detection).
		AddSeries("accuracy rate", accuracyRate,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func accuracyChart(events []sink.Event) *charts.Line {
	x := make([]string, 0, len(events))
	y := make([]opts.LineData, 0, len(events))
	for _, e := range events {
		x = append(x, e.Timestamp.Local().Format("15:04:05"))
		y = append(y, opts.LineData{Value: e.AccuracyPercent(), Name: e.Exercise})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Frame accuracy", Subtitle: fmt.Sprintf("%d saved events", len(events))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "%", Min: 0, Max: 100}),
	)
	line.SetXAxis(x).AddSeries("frame accuracy", y,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
	)
	return line
}
