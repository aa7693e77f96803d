package model

// Action is the operating mode of the battery for one step.
type Action string

const (
	ActionCharge    Action = "Charge"
	ActionDischarge Action = "Discharge"
	ActionHold      Action = "Hold"
)

// ScheduleStep is the planned operation of one horizon step.
type ScheduleStep struct {
	Index            int     `json:"index"`
	Hour             int     `json:"hour"`
	Date             string  `json:"date"`
	Price            float64 `json:"price"`
	Action           Action  `json:"action"`
	EnergyKWh        float64 `json:"energy_kwh"` // positive charges, negative discharges
	ChangeRate       float64 `json:"change_rate"`
	SOCEndPercent    float64 `json:"soc_end_percent"`
	SOCEndKWh        float64 `json:"soc_end_kwh"`
	HourlySaving     float64 `json:"hourly_saving"`
	CumulativeSaving float64 `json:"cumulative_saving"`
}
