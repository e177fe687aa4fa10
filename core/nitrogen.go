package core

import (
	"math"

	"github.com/signalsfoundry/soilcn-simulator/model"
)

// NitrogenState is carried between nitrogen timesteps.
type NitrogenState struct {
	NO3 float64 // kg N ha-1
	NH4 float64 // kg N ha-1

	CNDPM float64
	CNRPM float64
	CNHUM float64

	// Carbon pools and water content of the previous step.
	PrevDPM      float64
	PrevRPM      float64
	PrevHUM      float64
	WaterContent float64

	Started bool
}

// NewNitrogenState seeds both mineral pools at the floor and the DPM/RPM
// C:N ratios at the plant-input ratio of the first crop.
func NewNitrogenState(cfg NitrogenConfig, plantCN float64) NitrogenState {
	return NitrogenState{
		NO3:   cfg.Params.MinNO3NH4,
		NH4:   cfg.Params.MinNO3NH4,
		CNDPM: plantCN,
		CNRPM: plantCN,
		CNHUM: cfg.hum(),
	}
}

// NitrogenInputs are the drivers of one nitrogen timestep.
type NitrogenInputs struct {
	Carbon      CarbonStep
	Water       model.WaterStep
	Precip      float64 // mm
	PET         float64 // mm
	DaysInMonth int
	Depth       float64 // cm

	Crop          model.CropParameters
	InSeason      bool
	GrowingMonths int

	WasteCN  float64
	WasteNH4 float64 // kg N ha-1 of ammonium in applied organic waste
	FertNO3  float64 // kg N ha-1
	FertNH4  float64 // kg N ha-1
}

// NitrogenStep records the mineral N balance of one timestep (kg N ha-1).
type NitrogenStep struct {
	CNDPM       float64
	CNRPM       float64
	CNHUM       float64
	NRelease    float64
	NAdjustment float64
	SoilNSupply float64

	PropNOpt   float64
	PropYldOpt float64
	CropDemand float64

	NO3Start      float64
	NO3Atmos      float64
	NO3Fert       float64
	NO3Nitrif     float64
	NO3Inputs     float64
	NO3Immob      float64
	NO3Leach      float64
	NO3LeachAdj   float64
	NO3Denit      float64
	NO3DenitAdj   float64
	NO3Crop       float64
	NO3Losses     float64
	NO3LossesAdj  float64
	NO3AdjustRate float64
	NO3End        float64
	WaterDrained  float64
	N2O           float64

	NH4Start      float64
	NH4Fert       float64
	NH4Manure     float64
	NH4Miner      float64
	NH4Atmos      float64
	NH4Inputs     float64
	NH4Immob      float64
	NH4Nitrif     float64
	NH4Volat      float64
	NH4VolatAdj   float64
	NH4Crop       float64
	NH4Losses     float64
	NH4LossesAdj  float64
	NH4AdjustRate float64
	NH4End        float64
}

// NitrogenEngine computes the nitrate and ammonium balance from the carbon
// and water state of each timestep.
type NitrogenEngine struct {
	Config    NitrogenConfig
	Partition Partition
}

// NewNitrogenEngine constructs an engine. The partition is replaced by
// cfg.Partition when set.
func NewNitrogenEngine(cfg NitrogenConfig, partition Partition) NitrogenEngine {
	if cfg.Partition != nil {
		partition = *cfg.Partition
	}
	return NitrogenEngine{Config: cfg, Partition: partition}
}

// LossAdjustmentRatio scales simultaneous losses so they cannot exceed the
// nitrogen available from the start pool plus inputs.
func LossAdjustmentRatio(start, inputs, losses float64) float64 {
	avail := start + inputs
	if losses <= avail {
		return 1
	}
	if avail <= 0 {
		return 0
	}
	return avail / losses
}

// Step advances the mineral nitrogen pools by one month.
func (e NitrogenEngine) Step(prev NitrogenState, in NitrogenInputs) (NitrogenState, NitrogenStep) {
	p := e.Config.Params
	part := e.Partition
	c := in.Carbon
	floor := p.MinNO3NH4

	if !prev.Started {
		prev.PrevDPM, prev.PrevRPM, prev.PrevHUM = c.DPM, c.RPM, c.HUM
		prev.WaterContent = in.Water.WaterContent
	}

	wasteCN := in.WasteCN
	if e.Config.WasteCNRatio > 0 {
		wasteCN = e.Config.WasteCNRatio
	}
	plantCN := in.Crop.CNRatio

	var st NitrogenStep
	st.CNDPM = weightedCN(prev.CNDPM,
		cnTerm{prev.PrevDPM, prev.CNDPM}, cnTerm{c.PlantToDPM, plantCN}, cnTerm{c.WasteToDPM, wasteCN})
	st.CNRPM = weightedCN(prev.CNRPM,
		cnTerm{prev.PrevRPM, prev.CNRPM}, cnTerm{c.PlantToRPM, plantCN})
	st.CNHUM = weightedCN(prev.CNHUM,
		cnTerm{prev.PrevHUM, prev.CNHUM}, cnTerm{c.WasteToHUM, wasteCN})
	cnSOM := p.CNRatioSOM

	// Soil N supply from decomposition, less N re-immobilised into BIO and HUM.
	st.NRelease = part.CO2 * 1000 * (safeDiv(c.LossDPM, st.CNDPM) + safeDiv(c.LossRPM, st.CNRPM) +
		safeDiv(c.LossBIO+c.LossHUM, cnSOM))
	invSOM, invHUM := safeDiv(1, cnSOM), safeDiv(1, st.CNHUM)
	invDPM, invRPM := safeDiv(1, st.CNDPM), safeDiv(1, st.CNRPM)
	st.NAdjustment = 1000 * (part.BIO*(c.LossDPM*(invSOM-invDPM)+c.LossRPM*(invSOM-invRPM)) +
		part.HUM*(c.LossDPM*(invHUM-invDPM)+c.LossRPM*(invHUM-invRPM)))
	st.SoilNSupply = st.NRelease - st.NAdjustment
	supply := st.SoilNSupply

	// Ammonium inputs and nitrification come first; nitrate depends on them.
	st.NH4Start = prev.NH4
	st.NH4Fert = in.FertNH4
	st.NH4Manure = in.WasteNH4
	st.NH4Atmos = (1 - p.PropAtmosDepNO3) * p.AtmosNDeposition / 12
	st.NH4Miner = math.Max(supply, 0)
	st.NH4Immob = math.Min(math.Max(-supply, 0), floor)
	st.NH4Inputs = st.NH4Fert + st.NH4Manure + st.NH4Miner + st.NH4Atmos
	nh4Avail := st.NH4Start + st.NH4Inputs
	nitrifiable := nh4Avail * (1 - math.Exp(-p.KNitrif*c.RateModifier*e.Config.NitrifInhibition))
	st.NH4Nitrif = math.Max(0, math.Min(nitrifiable, nh4Avail-floor))

	st.NO3Start = prev.NO3
	st.NO3Atmos = p.PropAtmosDepNO3 * p.AtmosNDeposition / 12
	st.NO3Fert = in.FertNO3
	st.NO3Nitrif = st.NH4Nitrif
	st.NO3Inputs = st.NO3Atmos + st.NO3Fert + st.NO3Nitrif
	no3Avail := st.NO3Start + st.NO3Inputs

	e.cropUptake(&st, in, supply, no3Avail, nh4Avail)

	// Immobilisation draws on ammonium first; the remainder comes from nitrate.
	st.NO3Immob = math.Min(math.Max(-(supply+st.NH4Immob), 0), floor)
	st.NO3Leach, st.WaterDrained = leaching(in, prev.WaterContent, st.NO3Start+st.NO3Inputs-floor)

	denit, propN2 := e.denitrification(in, no3Avail)
	st.NO3Denit = denit

	st.NO3Losses = st.NO3Immob + st.NO3Leach + st.NO3Denit + st.NO3Crop
	st.NO3AdjustRate = LossAdjustmentRatio(st.NO3Start, st.NO3Inputs, st.NO3Losses)
	st.NO3LossesAdj = st.NO3AdjustRate * st.NO3Losses
	st.NO3LeachAdj = st.NO3AdjustRate * st.NO3Leach
	st.NO3DenitAdj = st.NO3AdjustRate * st.NO3Denit
	st.NO3End = math.Max(0, st.NO3Start+st.NO3Inputs-st.NO3LossesAdj)
	st.N2O = (1 - propN2) * st.NO3DenitAdj

	if in.Precip < p.PrecipCritical {
		st.NH4Volat = p.PropVolat * (st.NH4Manure + st.NH4Fert)
	}
	st.NH4Losses = st.NH4Immob + st.NH4Nitrif + st.NH4Volat + st.NH4Crop
	st.NH4AdjustRate = LossAdjustmentRatio(st.NH4Start, st.NH4Inputs, st.NH4Losses)
	st.NH4LossesAdj = st.NH4AdjustRate * st.NH4Losses
	st.NH4VolatAdj = st.NH4AdjustRate * st.NH4Volat
	st.NH4End = math.Max(0, st.NH4Start+st.NH4Inputs-st.NH4LossesAdj)

	next := NitrogenState{
		NO3:          st.NO3End,
		NH4:          st.NH4End,
		CNDPM:        st.CNDPM,
		CNRPM:        st.CNRPM,
		CNHUM:        st.CNHUM,
		PrevDPM:      c.DPM,
		PrevRPM:      c.RPM,
		PrevHUM:      c.HUM,
		WaterContent: in.Water.WaterContent,
		Started:      true,
	}
	return next, st
}

// cropUptake sets the crop N demand for the month and splits it between the
// nitrate and ammonium pools by availability. Demand is zero outside the
// growing season.
func (e NitrogenEngine) cropUptake(st *NitrogenStep, in NitrogenInputs, supply, no3Avail, nh4Avail float64) {
	crop := in.Crop
	eff := crop.FertUseEff
	if eff <= 0 {
		eff = 1
	}
	fertN := (in.FertNO3 + in.FertNH4) * eff

	span := crop.NSupplyOpt - crop.NSupplyMin
	switch {
	case span > 0:
		st.PropNOpt = (supply + fertN - crop.NSupplyMin) / span
	case supply+fertN >= crop.NSupplyMin:
		st.PropNOpt = 1
	}
	st.PropNOpt = math.Max(0, math.Min(1, st.PropNOpt))

	cn := crop.NResponseCoef
	st.PropYldOpt = (1+cn)*math.Pow(st.PropNOpt, cn) - cn*math.Pow(st.PropNOpt, 1+cn)

	if !in.InSeason || in.GrowingMonths <= 0 {
		return
	}
	st.CropDemand = st.PropNOpt * crop.NSupplyOpt / float64(in.GrowingMonths)
	total := no3Avail + nh4Avail
	if total <= 0 {
		return
	}
	st.NO3Crop = st.CropDemand * no3Avail / total
	st.NH4Crop = st.CropDemand * nh4Avail / total
}

// leaching returns nitrate lost with drainage water and the water drained.
// excess is the nitrate above the floor available for leaching.
func leaching(in NitrogenInputs, wcStart, excess float64) (leach, drained float64) {
	surplus := in.Precip - in.PET
	drained = math.Max(surplus-(in.Water.FieldCapacity-wcStart), 0)
	volume := wcStart + surplus
	if drained == 0 || volume <= 0 || excess <= 0 {
		return 0, drained
	}
	return excess / volume * drained, drained
}

// denitrification returns the potential denitrification loss and the
// proportion of it released as N2.
func (e NitrogenEngine) denitrification(in NitrogenInputs, no3Avail float64) (denit, propN2 float64) {
	p := e.Config.Params
	depth := in.Depth

	maxRate := math.Min(no3Avail, p.NDenitMax*depth*float64(in.DaysInMonth))
	rateNO3 := safeDiv(no3Avail, p.ND50*depth+no3Avail)

	relWater := safeDiv(in.Water.WaterContent-in.Water.WiltingPoint, in.Water.FieldCapacity-in.Water.WiltingPoint)
	threshold := e.Config.DenitWFPSThreshold
	rateMoist := 0.0
	if relWater > threshold && threshold < 1 {
		rateMoist = math.Min(1, math.Pow((relWater-threshold)/(1-threshold), 1.74))
	}
	rateBio := math.Min(1, in.Carbon.CO2*e.Config.BioActivityScale)

	propN2Water := e.Config.N2WaterFactor * relWater
	propN2NO3 := 1 - safeDiv(no3Avail, e.Config.N2NitrateScale*depth+no3Avail)

	denit = math.Max(0, maxRate*rateNO3*rateMoist*rateBio)
	return denit, propN2Water * propN2NO3
}

type cnTerm struct {
	mass  float64
	ratio float64
}

// weightedCN is the C:N of a mixture: total carbon over total nitrogen.
// Terms with no carbon or a non-positive ratio carry no nitrogen; fallback is
// returned when the mixture has no nitrogen.
func weightedCN(fallback float64, terms ...cnTerm) float64 {
	carbon, nitrogen := 0.0, 0.0
	for _, t := range terms {
		if t.mass <= 0 || t.ratio <= 0 {
			continue
		}
		carbon += t.mass
		nitrogen += t.mass / t.ratio
	}
	if nitrogen <= 0 {
		return fallback
	}
	return carbon / nitrogen
}

func safeDiv(num, den float64) float64 {
	if den == 0 || math.IsNaN(den) {
		return 0
	}
	return num / den
}
