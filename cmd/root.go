package cmd

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/spikesim/spikesim/sim"
	_ "github.com/spikesim/spikesim/sim/cells"
	"github.com/spikesim/spikesim/sim/cluster"
	"github.com/spikesim/spikesim/sim/recorder"
	"github.com/spikesim/spikesim/sim/trace"
)

var (
	networkPath string  // YAML network description
	tfinal      float64 // Simulated time to run to (ms)
	dt          float64 // Integration time step (ms)
	seed        int64   // Seed overriding the network config's
	logLevel    string  // Log verbosity level
	concurrency int     // Worker task limit (0 = one per CPU)
	groupSize   int     // Max cells per group (0 = config value)

	recordPath string // SQLite database for spike recording
	tracePath  string // JSONL trace output file
	traceLevel string // Trace verbosity (none, spikes, full)

	rank     int    // This rank's index in a multi-rank run
	worldSz  int    // Total ranks in a multi-rank run
	rootAddr string // host:port of rank 0's collective socket
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "spikesim",
	Short: "Epoch-pipelined spiking neural network simulator",
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation from a network description",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if networkPath == "" {
			logrus.Fatal("No network description provided. Exiting simulation.")
		}
		cfg, err := sim.LoadNetworkConfig(networkPath)
		if err != nil {
			logrus.Fatalf("Unable to read network config: %v", err)
		}
		if cmd.Flags().Changed("seed") {
			cfg.Seed = seed
		}
		if groupSize > 0 {
			cfg.GroupSize = groupSize
		}
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid network config: %v", err)
		}

		rec := cfg.BuildRecipe()
		decomp := sim.PartitionLoadBalance(rec, cfg.GroupSize)

		ctx := sim.NewLocalContext(concurrency)
		var coll *cluster.Collective
		if worldSz > 1 {
			coll, err = cluster.Dial(rank, worldSz, rootAddr, 30*time.Second)
			if err != nil {
				logrus.Fatalf("Unable to join collective: %v", err)
			}
			defer coll.Close()
			ctx.Dist = coll
		}

		logrus.Infof("Starting simulation: %d cells, %d groups, tfinal=%.3fms, dt=%.4fms, seed=%d",
			rec.NumCells(), decomp.NumGroups(), tfinal, dt, cfg.Seed)

		s, err := sim.NewSimulation(rec, decomp, ctx)
		if err != nil {
			logrus.Fatalf("Unable to build simulation: %v", err)
		}

		if !trace.IsValidLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s", traceLevel)
		}
		st := trace.NewSimulationTrace(trace.Level(traceLevel))
		var spikeLog []sim.Spike
		s.SetGlobalSpikeCallback(func(spikes []sim.Spike) {
			spikeLog = append(spikeLog, spikes...)
			if st.Level == trace.LevelSpikes || st.Level == trace.LevelFull {
				records := make([]trace.SpikeRecord, len(spikes))
				for i, sp := range spikes {
					records[i] = trace.SpikeRecord{Source: uint64(sp.Source), Time: float64(sp.Time)}
				}
				st.RecordSpikes(records)
			}
		})

		var run *recorder.Run
		if recordPath != "" {
			store, err := recorder.Open(recordPath)
			if err != nil {
				logrus.Fatalf("Unable to open spike store: %v", err)
			}
			defer store.Close()
			run, err = store.NewRun(cfg.Seed)
			if err != nil {
				logrus.Fatalf("Unable to register run: %v", err)
			}
			logrus.Infof("Recording spikes to %s, run %s", recordPath, run.ID())
			s.SetLocalSpikeCallback(run.Callback())
		}

		startTime := time.Now()
		reached, err := s.Run(sim.TimeType(tfinal), sim.TimeType(dt))
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		elapsed := time.Since(startTime)

		if run != nil && run.Err() != nil {
			logrus.Fatalf("Spike recording failed: %v", run.Err())
		}
		if tracePath != "" {
			f, err := os.Create(tracePath)
			if err != nil {
				logrus.Fatalf("Unable to create trace file: %v", err)
			}
			defer f.Close()
			if err := st.WriteJSONL(f); err != nil {
				logrus.Fatalf("Unable to write trace: %v", err)
			}
		}

		m := sim.CollectMetrics(spikeLog, reached)
		m.Print()
		logrus.Infof("Simulation complete: %.3fms simulated in %v, %d spikes", float64(reached), elapsed, s.NumSpikes())
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&networkPath, "network", "", "Path to the YAML network description")
	runCmd.Flags().Float64Var(&tfinal, "tfinal", 100, "Simulated time to run to (ms)")
	runCmd.Flags().Float64Var(&dt, "dt", 0.025, "Integration time step (ms)")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed overriding the network config's seed")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Worker task limit (0 = one per CPU)")
	runCmd.Flags().IntVar(&groupSize, "group-size", 0, "Maximum cells per group (0 = config value)")

	runCmd.Flags().StringVar(&recordPath, "record", "", "SQLite database to record spikes into")
	runCmd.Flags().StringVar(&tracePath, "trace", "", "JSONL file to export the spike trace to")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Trace verbosity (none, spikes, full)")

	runCmd.Flags().IntVar(&rank, "rank", 0, "This rank's index in a multi-rank run")
	runCmd.Flags().IntVar(&worldSz, "size", 1, "Total number of ranks")
	runCmd.Flags().StringVar(&rootAddr, "root-addr", "127.0.0.1:5555", "host:port of rank 0's collective socket")

	rootCmd.AddCommand(runCmd)
}
