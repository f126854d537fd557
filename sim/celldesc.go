package sim

// LIFCell describes a leaky integrate-and-fire cell. Voltages are in mV,
// times in ms, capacitance in pF. The cell exposes one spike source labelled
// Source and one synapse target labelled Target.
type LIFCell struct {
	Source string // label of the spike detector
	Target string // label of the synapse

	TauM    TimeType // membrane time constant
	VThresh float64  // firing threshold
	CM      float64  // membrane capacitance
	EL      float64  // resting potential
	ER      float64  // reset potential
	V0      float64  // initial membrane potential
	TRef    TimeType // refractory period
}

// DefaultLIFCell returns a LIFCell with the conventional defaults: 10 ms
// membrane time constant, threshold at -34 mV, rest and reset at -65 mV,
// 2 ms refractory period.
func DefaultLIFCell() LIFCell {
	return LIFCell{
		Source:  "source",
		Target:  "target",
		TauM:    10,
		VThresh: -34,
		CM:      20,
		EL:      -65,
		ER:      -65,
		V0:      -65,
		TRef:    2,
	}
}

// SpikeSourceCell describes a passive cell that fires according to a fixed
// schedule and ignores incoming events. It exposes one spike source labelled
// Source and no targets.
type SpikeSourceCell struct {
	Source   string
	Schedule Schedule
}
