// Package export renders optimized schedules for files and terminals.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/kilianp07/battopt/core/model"
)

// Header is the CSV column order.
var Header = []string{
	"index", "hour", "date", "price", "action", "energy_kwh", "change_rate",
	"soc_end_percent", "soc_end_kwh", "hourly_saving", "cumulative_saving",
}

// WriteJSON writes the schedule to w in JSON format.
func WriteJSON(w io.Writer, steps []model.ScheduleStep) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(steps)
}

// WriteCSV writes the schedule to w in CSV format with a header row.
func WriteCSV(w io.Writer, steps []model.ScheduleStep) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, s := range steps {
		rec := []string{
			strconv.Itoa(s.Index),
			strconv.Itoa(s.Hour),
			s.Date,
			num(s.Price, 4),
			string(s.Action),
			num(s.EnergyKWh, 4),
			num(s.ChangeRate, 2),
			num(s.SOCEndPercent, 2),
			num(s.SOCEndKWh, 4),
			num(s.HourlySaving, 4),
			num(s.CumulativeSaving, 4),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write dispatches on format: "json", "csv" or "html".
func Write(w io.Writer, format string, steps []model.ScheduleStep) error {
	switch format {
	case "json":
		return WriteJSON(w, steps)
	case "csv":
		return WriteCSV(w, steps)
	case "html":
		return WriteChart(w, steps)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

func num(v float64, prec int) string { return strconv.FormatFloat(v, 'f', prec, 64) }
