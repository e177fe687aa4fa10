package core

// Table is a named, column-oriented view of a unit run, one row per month
// across both phases.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// Row is one timestep of a Table. Values align with Table.Columns.
type Row struct {
	Period   Phase
	Month    int
	Timestep int
	Values   []float64
}

// Table names used by the output sinks.
const (
	TableCarbon   = "carbon"
	TableNitrogen = "nitrogen"
	TableWater    = "water"
)

var carbonColumns = []string{
	"air_temp", "wat_soil", "r_mod", "pi", "cow",
	"dpm", "dpm_inpt", "dpm_loss",
	"rpm", "rpm_inpt", "rpm_loss",
	"bio", "bio_inpt", "bio_loss",
	"hum", "cow_to_hum", "hum_inpt", "hum_loss",
	"iom", "iom_inpt", "total", "co2_release",
}

var nitrogenColumns = []string{
	"cn_dpm", "cn_rpm", "cn_hum",
	"n_release", "n_adjust", "soil_n_sply",
	"prop_n_opt", "prop_yld_opt", "crop_demand",
	"no3_start", "no3_atmos", "no3_fert", "no3_nitrif", "no3_inputs",
	"no3_immob", "no3_leach", "no3_leach_adj", "no3_denit", "no3_denit_adj",
	"no3_crop", "no3_losses", "no3_losses_adj", "no3_adj_rate", "no3_end",
	"wat_drain", "n2o",
	"nh4_start", "nh4_fert", "nh4_manure", "nh4_miner", "nh4_atmos", "nh4_inputs",
	"nh4_immob", "nh4_nitrif", "nh4_volat", "nh4_volat_adj",
	"nh4_crop", "nh4_losses", "nh4_losses_adj", "nh4_adj_rate", "nh4_end",
}

var waterColumns = []string{
	"precip", "pet", "irrig", "wilt_pnt", "wat_hold_cap", "wat_soil", "aet", "wat_drain", "rat_mod_moist",
}

// SummaryColumns are the columns of the starting/ending conditions table.
var SummaryColumns = []string{"plant_inputs", "dpm", "rpm", "bio", "hum", "iom", "total"}

// CarbonTable tabulates the carbon pools, inputs, losses and CO2 release of a
// unit run.
func CarbonTable(res *UnitResult) Table {
	return buildTable(TableCarbon, carbonColumns, res, func(ts TimestepResult) []float64 {
		c := ts.Carbon
		return []float64{
			ts.Tair, ts.Water.WaterContent, ts.RateModifier, c.PlantInput, c.WasteCarbon,
			c.DPM, c.PlantToDPM + c.WasteToDPM, c.LossDPM,
			c.RPM, c.PlantToRPM, c.LossRPM,
			c.BIO, c.InputBIO, c.LossBIO,
			c.HUM, c.WasteToHUM, c.InputHUM, c.LossHUM,
			c.IOM, c.WasteToIOM, c.TotalSOC, c.CO2,
		}
	})
}

// NitrogenTable tabulates the mineral nitrogen balance of a unit run.
func NitrogenTable(res *UnitResult) Table {
	return buildTable(TableNitrogen, nitrogenColumns, res, func(ts TimestepResult) []float64 {
		n := ts.Nitrogen
		return []float64{
			n.CNDPM, n.CNRPM, n.CNHUM,
			n.NRelease, n.NAdjustment, n.SoilNSupply,
			n.PropNOpt, n.PropYldOpt, n.CropDemand,
			n.NO3Start, n.NO3Atmos, n.NO3Fert, n.NO3Nitrif, n.NO3Inputs,
			n.NO3Immob, n.NO3Leach, n.NO3LeachAdj, n.NO3Denit, n.NO3DenitAdj,
			n.NO3Crop, n.NO3Losses, n.NO3LossesAdj, n.NO3AdjustRate, n.NO3End,
			n.WaterDrained, n.N2O,
			n.NH4Start, n.NH4Fert, n.NH4Manure, n.NH4Miner, n.NH4Atmos, n.NH4Inputs,
			n.NH4Immob, n.NH4Nitrif, n.NH4Volat, n.NH4VolatAdj,
			n.NH4Crop, n.NH4Losses, n.NH4LossesAdj, n.NH4AdjustRate, n.NH4End,
		}
	})
}

// WaterTable tabulates the soil water balance of a unit run.
func WaterTable(res *UnitResult) Table {
	return buildTable(TableWater, waterColumns, res, func(ts TimestepResult) []float64 {
		w := ts.Water
		return []float64{
			ts.Precip, ts.PET, w.Irrigation, w.WiltingPoint, w.FieldCapacity,
			w.WaterContent, w.AET, w.Drainage, ts.Moisture,
		}
	})
}

// SummaryTable returns the starting and ending conditions of the steady
// state, or nil when it did not converge.
func SummaryTable(res *UnitResult) []SummaryRow {
	if res == nil || res.SteadyState == nil {
		return nil
	}
	return []SummaryRow{res.SteadyState.Start, res.SteadyState.End}
}

// Values returns the row in SummaryColumns order.
func (r SummaryRow) Values() []float64 {
	return []float64{r.PlantInputs, r.DPM, r.RPM, r.BIO, r.HUM, r.IOM, r.Total}
}

func buildTable(name string, columns []string, res *UnitResult, values func(TimestepResult) []float64) Table {
	t := Table{Name: name, Columns: columns}
	if res == nil {
		return t
	}
	var phases []*PhaseResult
	if res.SteadyState != nil {
		phases = append(phases, &res.SteadyState.PhaseResult)
	}
	if res.Forward != nil {
		phases = append(phases, res.Forward)
	}
	tstep := 0
	for _, p := range phases {
		for _, ts := range p.Steps {
			tstep++
			t.Rows = append(t.Rows, Row{
				Period:   ts.Phase,
				Month:    int(ts.Step.Month),
				Timestep: tstep,
				Values:   values(ts),
			})
		}
	}
	return t
}
