// Package main provides the convnet command line tool.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/born-ml/convnet/graph"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("convnet %s\n", version)
	case "check":
		runCheck(os.Args[2:])
	case "train":
		runTrain(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("convnet - layer graph trainer")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  check      Compare analytic and numeric gradients on a synthetic batch")
	fmt.Println("  train      Run SGD steps on a synthetic batch")
}

type commonFlags struct {
	def   *string
	cases *int
	seed  *int64
}

func addCommon(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		def:   fs.String("def", "", "JSON layer definition (default: built-in conv net)"),
		cases: fs.Int("cases", 8, "Cases per minibatch"),
		seed:  fs.Int64("seed", 1, "Seed for weights and synthetic data"),
	}
}

func (c commonFlags) build(cfg graph.Config) (*graph.Graph, *graph.Dataset) {
	var decls []graph.LayerDecl
	var err error
	if *c.def == "" {
		decls, err = graph.LoadDefinition(strings.NewReader(builtinNet))
	} else {
		decls, err = graph.LoadDefinitionFile(*c.def)
	}
	if err != nil {
		log.Fatalf("Failed to load definition: %v", err)
	}

	cfg.Seed = *c.seed
	g, err := graph.New(decls, cfg)
	if err != nil {
		log.Fatalf("Failed to build graph: %v", err)
	}
	batch, err := syntheticBatch(g, *c.cases, *c.seed)
	if err != nil {
		log.Fatalf("Failed to synthesize data: %v", err)
	}
	return g, batch
}

func runCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	common := addCommon(fs)
	verbose := fs.Bool("v", false, "Print diagnostics for passing checks too")
	_ = fs.Parse(args)

	cfg := graph.DefaultConfig()
	cfg.SuppressPasses = !*verbose
	g, batch := common.build(cfg)

	report, err := g.CheckGradients(batch)
	if err != nil {
		log.Fatalf("Gradient check failed to run: %v", err)
	}
	for _, r := range report.Results {
		status := "ok"
		if !r.Passed {
			status = "FAIL"
		}
		fmt.Printf("  %-4s %-16s relative error %.3g\n", status, r.Name, r.RelErr)
	}
	if !report.OK() {
		os.Exit(1)
	}
}

func runTrain(args []string) {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	common := addCommon(fs)
	steps := fs.Int("steps", 50, "Training steps")
	every := fs.Int("print", 10, "Print errors every N steps")
	save := fs.String("save", "", "Write weights to this SafeTensors file when done")
	load := fs.String("load", "", "Restore weights from this SafeTensors file first")
	_ = fs.Parse(args)

	g, batch := common.build(graph.DefaultConfig())
	if *load != "" {
		if _, err := graph.LoadCheckpoint(g, *load); err != nil {
			log.Fatalf("Failed to load checkpoint: %v", err)
		}
		fmt.Printf("Restored weights from %s\n", *load)
	}

	for step := 1; step <= *steps; step++ {
		res, err := g.TrainStep(batch)
		if err != nil {
			log.Fatalf("Step %d failed: %v", step, err)
		}
		if *every > 0 && (step%*every == 0 || step == 1) {
			res.Divide(float64(batch.NumCases))
			fmt.Printf("step %4d  cost %.5f  [%s]\n", step, res.Cost(), res)
		}
	}

	if *save != "" {
		meta := map[string]string{"steps": fmt.Sprint(*steps), "version": version}
		if err := graph.SaveCheckpoint(g, *save, meta); err != nil {
			log.Fatalf("Failed to save checkpoint: %v", err)
		}
		fmt.Printf("Saved weights to %s\n", *save)
	}
}
