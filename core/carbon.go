package core

import "math"

// CarbonState is the carried state of the five carbon pools between
// timesteps (t C ha-1). Losses and BIO/HUM inputs computed in one step are
// held here and applied at the start of the next.
type CarbonState struct {
	DPM float64
	RPM float64
	BIO float64
	HUM float64
	IOM float64

	LossDPM  float64
	LossRPM  float64
	LossBIO  float64
	LossHUM  float64
	InputBIO float64
	InputHUM float64
}

// Total is the simulated soil organic carbon, the sum of the five pools.
func (s CarbonState) Total() float64 {
	return s.DPM + s.RPM + s.BIO + s.HUM + s.IOM
}

// InitialCarbonState seeds the active pools with 1 t C ha-1 each and the inert
// pool from measured SOC using the Falloon equation.
func InitialCarbonState(measuredSOC float64) CarbonState {
	return CarbonState{
		DPM: 1,
		RPM: 1,
		BIO: 1,
		HUM: 1,
		IOM: 0.049 * math.Pow(measuredSOC, 1.139),
	}
}

// CarbonInputs are the drivers of one carbon timestep.
type CarbonInputs struct {
	RateModifier float64
	PlantInput   float64 // t C ha-1
	DPMRPMRatio  float64
	WasteCarbon  float64 // t C ha-1
	DPMHUMRatio  float64
	PropIOM      float64
}

// CarbonStep records pools and fluxes of one timestep.
type CarbonStep struct {
	RateModifier float64
	PlantInput   float64
	WasteCarbon  float64

	DPM        float64
	PlantToDPM float64
	WasteToDPM float64
	LossDPM    float64

	RPM        float64
	PlantToRPM float64
	LossRPM    float64

	BIO      float64
	InputBIO float64 // passed to BIO next step
	LossBIO  float64

	HUM        float64
	WasteToHUM float64
	InputHUM   float64 // passed to HUM next step
	LossHUM    float64

	IOM        float64
	WasteToIOM float64

	TotalSOC float64
	CO2      float64
}

// CarbonEngine integrates the RothC pools one month at a time.
type CarbonEngine struct {
	Decay     DecayConstants
	Partition Partition
}

// NewCarbonEngine constructs an engine with the given decay rates and loss
// partition.
func NewCarbonEngine(decay DecayConstants, partition Partition) CarbonEngine {
	return CarbonEngine{Decay: decay, Partition: partition}
}

// Step applies the previous step's losses and this step's inputs, then
// computes this step's losses for application at the next step.
func (e CarbonEngine) Step(prev CarbonState, in CarbonInputs) (CarbonState, CarbonStep) {
	plantToDPM := in.PlantInput * in.DPMRPMRatio / (1 + in.DPMRPMRatio)
	plantToRPM := in.PlantInput / (1 + in.DPMRPMRatio)

	active := in.WasteCarbon * (1 - in.PropIOM) / (1 + in.DPMHUMRatio)
	wasteToDPM := active * in.DPMHUMRatio
	wasteToHUM := active
	wasteToIOM := in.PropIOM * in.WasteCarbon

	next := CarbonState{
		DPM: math.Max(0, prev.DPM+plantToDPM+wasteToDPM-prev.LossDPM),
		RPM: prev.RPM + plantToRPM - prev.LossRPM,
		BIO: prev.BIO + prev.InputBIO - prev.LossBIO,
		HUM: prev.HUM + wasteToHUM + prev.InputHUM - prev.LossHUM,
		IOM: prev.IOM + wasteToIOM,
	}

	next.LossDPM = poolLoss(next.DPM, e.Decay.DPM, in.RateModifier)
	next.LossRPM = poolLoss(next.RPM, e.Decay.RPM, in.RateModifier)
	next.LossBIO = poolLoss(next.BIO, e.Decay.BIO, in.RateModifier)
	next.LossHUM = poolLoss(next.HUM, e.Decay.HUM, in.RateModifier)

	lost := next.LossDPM + next.LossRPM + next.LossBIO + next.LossHUM
	next.InputBIO = e.Partition.BIO * lost
	next.InputHUM = e.Partition.HUM * lost

	step := CarbonStep{
		RateModifier: in.RateModifier,
		PlantInput:   in.PlantInput,
		WasteCarbon:  in.WasteCarbon,
		DPM:          next.DPM,
		PlantToDPM:   plantToDPM,
		WasteToDPM:   wasteToDPM,
		LossDPM:      next.LossDPM,
		RPM:          next.RPM,
		PlantToRPM:   plantToRPM,
		LossRPM:      next.LossRPM,
		BIO:          next.BIO,
		InputBIO:     next.InputBIO,
		LossBIO:      next.LossBIO,
		HUM:          next.HUM,
		WasteToHUM:   wasteToHUM,
		InputHUM:     next.InputHUM,
		LossHUM:      next.LossHUM,
		IOM:          next.IOM,
		WasteToIOM:   wasteToIOM,
		TotalSOC:     next.Total(),
		CO2:          e.Partition.CO2 * lost,
	}
	return next, step
}

func poolLoss(pool, k, rate float64) float64 {
	return pool * (1 - math.Exp(-k*rate))
}
