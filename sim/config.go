package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NetworkConfig describes a whole network, loadable from a YAML file. It is
// the declarative counterpart of the Recipe interface: BuildRecipe turns a
// validated config into a queryable recipe.
type NetworkConfig struct {
	Populations []PopulationConfig `yaml:"populations"`
	Connections []ConnectionConfig `yaml:"connections"`
	Generators  []GeneratorConfig  `yaml:"generators"`

	// MinExternalDelay bounds delivery latency of generator and injected
	// events. Required when the network has generators but no connections.
	MinExternalDelay TimeType `yaml:"min_external_delay"`
	// GroupSize caps cells per group. 0 = one group per cell kind run.
	GroupSize int `yaml:"group_size"`
	// Seed drives every stochastic element of the run.
	Seed int64 `yaml:"seed"`
}

// PopulationConfig describes a contiguous run of identical cells. GIDs are
// assigned in declaration order, starting from zero.
type PopulationConfig struct {
	Kind  string `yaml:"kind"` // "lif" or "spike_source"
	Count int    `yaml:"count"`

	// LIF parameters; nil fields keep the defaults.
	TauM    *TimeType `yaml:"tau_m"`
	VThresh *float64  `yaml:"v_thresh"`
	CM      *float64  `yaml:"c_m"`
	EL      *float64  `yaml:"e_l"`
	ER      *float64  `yaml:"e_r"`
	TRef    *TimeType `yaml:"t_ref"`

	// Spike source schedule: fire every Period starting at Start, or at the
	// explicit Times.
	Start  TimeType   `yaml:"start"`
	Period TimeType   `yaml:"period"`
	Times  []TimeType `yaml:"times"`
}

// ConnectionConfig describes one synaptic connection in YAML form.
type ConnectionConfig struct {
	Source      GID      `yaml:"source"`
	SourceLabel string   `yaml:"source_label"`
	Target      GID      `yaml:"target"`
	TargetLabel string   `yaml:"target_label"`
	Weight      float32  `yaml:"weight"`
	Delay       TimeType `yaml:"delay"`
}

// GeneratorConfig describes one external event source in YAML form.
type GeneratorConfig struct {
	Kind        string     `yaml:"kind"` // "regular", "poisson" or "explicit"
	Target      GID        `yaml:"target"`
	TargetLabel string     `yaml:"target_label"`
	Weight      float32    `yaml:"weight"`
	Start       TimeType   `yaml:"start"`
	Period      TimeType   `yaml:"period"`
	Rate        TimeType   `yaml:"rate"`
	Times       []TimeType `yaml:"times"`
}

// LoadNetworkConfig reads and parses a YAML network description.
func LoadNetworkConfig(path string) (*NetworkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading network config: %w", err)
	}
	var cfg NetworkConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing network config: %w", err)
	}
	return &cfg, nil
}

// ValidCellKinds is the set of recognized population kinds.
var ValidCellKinds = map[string]bool{"lif": true, "spike_source": true}

// ValidGeneratorKinds is the set of recognized generator kinds.
var ValidGeneratorKinds = map[string]bool{"regular": true, "poisson": true, "explicit": true}

// Validate checks population, connection and generator declarations for
// structural errors before any recipe is built.
func (c *NetworkConfig) Validate() error {
	numCells := 0
	for i, p := range c.Populations {
		if !ValidCellKinds[p.Kind] {
			return fmt.Errorf("population %d: unknown cell kind %q", i, p.Kind)
		}
		if p.Count <= 0 {
			return fmt.Errorf("population %d: count must be positive, got %d", i, p.Count)
		}
		numCells += p.Count
	}
	for i, conn := range c.Connections {
		if int(conn.Source) >= numCells {
			return fmt.Errorf("connection %d: source gid %d out of range", i, conn.Source)
		}
		if int(conn.Target) >= numCells {
			return fmt.Errorf("connection %d: target gid %d out of range", i, conn.Target)
		}
		if conn.Delay <= 0 {
			return fmt.Errorf("connection %d: delay must be positive, got %v", i, conn.Delay)
		}
	}
	for i, g := range c.Generators {
		if !ValidGeneratorKinds[g.Kind] {
			return fmt.Errorf("generator %d: unknown kind %q", i, g.Kind)
		}
		if int(g.Target) >= numCells {
			return fmt.Errorf("generator %d: target gid %d out of range", i, g.Target)
		}
		if g.Kind == "poisson" && g.Rate <= 0 {
			return fmt.Errorf("generator %d: poisson rate must be positive, got %v", i, g.Rate)
		}
		if g.Kind == "regular" && g.Period <= 0 {
			return fmt.Errorf("generator %d: regular period must be positive, got %v", i, g.Period)
		}
	}
	if len(c.Generators) > 0 && len(c.Connections) == 0 && c.MinExternalDelay <= 0 {
		return fmt.Errorf("min_external_delay must be positive when the network has generators but no connections")
	}
	return nil
}

// configRecipe is the Recipe built from a NetworkConfig. All lookups are
// precomputed maps, so concurrent reads during construction are safe.
type configRecipe struct {
	numCells         int
	kinds            []CellKind
	descriptions     []any
	connections      map[GID][]Connection
	generators       map[GID][]GeneratorConfig
	minExternalDelay TimeType
	rng              *PartitionedRNG
}

// BuildRecipe materializes the config into a Recipe. The config must have
// passed Validate.
func (c *NetworkConfig) BuildRecipe() Recipe {
	r := &configRecipe{
		connections:      make(map[GID][]Connection),
		generators:       make(map[GID][]GeneratorConfig),
		minExternalDelay: c.MinExternalDelay,
		rng:              NewPartitionedRNG(NewSimulationKey(c.Seed)),
	}
	for _, p := range c.Populations {
		desc := p.describe()
		kind := CellKind(p.Kind)
		for i := 0; i < p.Count; i++ {
			r.kinds = append(r.kinds, kind)
			r.descriptions = append(r.descriptions, desc)
		}
	}
	r.numCells = len(r.kinds)
	for _, conn := range c.Connections {
		r.connections[conn.Target] = append(r.connections[conn.Target], Connection{
			Source:      conn.Source,
			SourceLabel: conn.SourceLabel,
			TargetLabel: conn.TargetLabel,
			Weight:      conn.Weight,
			Delay:       conn.Delay,
		})
	}
	for _, g := range c.Generators {
		r.generators[g.Target] = append(r.generators[g.Target], g)
	}
	return r
}

func (p *PopulationConfig) describe() any {
	switch p.Kind {
	case "spike_source":
		desc := SpikeSourceCell{Source: "source"}
		if len(p.Times) > 0 {
			desc.Schedule = NewExplicitSchedule(p.Times)
		} else {
			desc.Schedule = NewRegularSchedule(p.Start, p.Period)
		}
		return desc
	default:
		desc := DefaultLIFCell()
		if p.TauM != nil {
			desc.TauM = *p.TauM
		}
		if p.VThresh != nil {
			desc.VThresh = *p.VThresh
		}
		if p.CM != nil {
			desc.CM = *p.CM
		}
		if p.EL != nil {
			desc.EL = *p.EL
			desc.V0 = *p.EL
		}
		if p.ER != nil {
			desc.ER = *p.ER
		}
		if p.TRef != nil {
			desc.TRef = *p.TRef
		}
		return desc
	}
}

func (r *configRecipe) NumCells() int { return r.numCells }

func (r *configRecipe) CellKind(gid GID) CellKind { return r.kinds[gid] }

func (r *configRecipe) CellDescription(gid GID) any { return r.descriptions[gid] }

func (r *configRecipe) ConnectionsOn(gid GID) []Connection { return r.connections[gid] }

func (r *configRecipe) EventGenerators(gid GID) []EventGenerator {
	cfgs := r.generators[gid]
	if len(cfgs) == 0 {
		return nil
	}
	gens := make([]EventGenerator, 0, len(cfgs))
	for i, g := range cfgs {
		var gen EventGenerator
		switch g.Kind {
		case "poisson":
			seed := r.rng.SeedFor(SubsystemGenerator(gid, i))
			if g.TargetLabel != "" {
				gen = newPoissonGeneratorOnLabel(g.TargetLabel, g.Weight, g.Rate, seed)
			} else {
				gen = NewPoissonGenerator(0, g.Weight, g.Rate, seed)
			}
		case "regular":
			if g.TargetLabel != "" {
				gen = newRegularGeneratorOnLabel(g.TargetLabel, g.Weight, g.Start, g.Period)
			} else {
				gen = NewRegularGenerator(0, g.Weight, g.Start, g.Period)
			}
		default:
			if g.TargetLabel != "" {
				gen = NewExplicitGeneratorOnLabel(g.TargetLabel, g.Weight, g.Times)
			} else {
				gen = NewExplicitGenerator(0, g.Weight, g.Times)
			}
		}
		gens = append(gens, gen)
	}
	return gens
}

func (r *configRecipe) MinExternalDelay() TimeType { return r.minExternalDelay }
