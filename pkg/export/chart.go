package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/battopt/core/model"
)

// WriteChart renders the schedule as a standalone HTML page with the price,
// the signed energy per step and the state of charge.
func WriteChart(w io.Writer, steps []model.ScheduleStep) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Battery schedule"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Step"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Value"}),
	)

	xAxis := make([]string, 0, len(steps))
	price := make([]opts.LineData, 0, len(steps))
	energy := make([]opts.LineData, 0, len(steps))
	soc := make([]opts.LineData, 0, len(steps))
	for _, s := range steps {
		label := s.Date + " " + strconv.Itoa(s.Hour) + "h"
		if s.Date == "" {
			label = strconv.Itoa(s.Index)
		}
		xAxis = append(xAxis, label)
		price = append(price, opts.LineData{Value: s.Price})
		energy = append(energy, opts.LineData{Value: s.EnergyKWh})
		soc = append(soc, opts.LineData{Value: s.SOCEndPercent})
	}
	line.SetXAxis(xAxis).
		AddSeries("Price", price).
		AddSeries("Energy (kWh)", energy).
		AddSeries("SOC (%)", soc)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
