package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"github.com/therealutkarshpriyadarshi/vector/internal/clustering"
	"github.com/therealutkarshpriyadarshi/vector/pkg/observability"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "train":
		runTrain(os.Args[2:])
	case "train-minibatch":
		runTrainMiniBatch(os.Args[2:])
	case "version":
		fmt.Printf("mlclusters-cli version %s\n", version)
	case "help", "-h", "--help":
		showUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		showUsage()
		os.Exit(1)
	}
}

// commonFlags bundles the flags shared between train and train-minibatch.
type commonFlags struct {
	csvPath          string
	hasHeader        bool
	hasTarget        bool
	k                int
	distance         string
	initMethod       string
	maxIterations    int
	epsilon          float64
	epsMaxIterations int
	nReplicates      int
	replicateChoice  string
	postOptimisation string
	vnsLevel         int
	supervised       bool
	seed             int64
	verbose          bool
}

func bindCommonFlags(fs *flag.FlagSet) *commonFlags {
	cf := &commonFlags{}
	fs.StringVar(&cf.csvPath, "csv", "", "path to a CSV of already-recoded numeric columns (required)")
	fs.BoolVar(&cf.hasHeader, "has-header", true, "first CSV row is a header")
	fs.BoolVar(&cf.hasTarget, "has-target", false, "last CSV column is a target symbol")
	fs.IntVar(&cf.k, "k", 2, "number of clusters")
	fs.StringVar(&cf.distance, "distance", "l2", "distance norm: l1, l2, cosine")
	fs.StringVar(&cf.initMethod, "init", "auto", "centroid seeding strategy")
	fs.IntVar(&cf.maxIterations, "max-iterations", 0, "Lloyd loop cap (0 = unbounded, -1 = skip loop)")
	fs.Float64Var(&cf.epsilon, "epsilon", 1e-4, "convergence threshold")
	fs.IntVar(&cf.epsMaxIterations, "epsilon-max-iterations", 3, "consecutive sub-epsilon iterations before stopping")
	fs.IntVar(&cf.nReplicates, "n-replicates", 1, "number of independent replicates")
	fs.StringVar(&cf.replicateChoice, "replicate-choice", "auto", "criterion selecting the best replicate")
	fs.StringVar(&cf.postOptimisation, "post-optimisation", "none", "post-optimisation: none, fast")
	fs.IntVar(&cf.vnsLevel, "vns-level", 0, "variable neighbourhood search level")
	fs.BoolVar(&cf.supervised, "supervised", false, "run in supervised mode (requires -has-target)")
	fs.Int64Var(&cf.seed, "seed", 42, "random seed")
	fs.BoolVar(&cf.verbose, "verbose", false, "verbose logging")
	return cf
}

func (cf *commonFlags) toParameters(dim int) (clustering.Parameters, error) {
	p := clustering.DefaultParameters()
	p.K = cf.k
	p.MaxIterations = cf.maxIterations
	p.Epsilon = cf.epsilon
	p.EpsilonMaxIterations = cf.epsMaxIterations
	p.NReplicates = cf.nReplicates
	p.VNSLevel = cf.vnsLevel
	p.Supervised = cf.supervised
	p.Seed = cf.seed
	p.Verbose = cf.verbose
	p.KMeansFeatureMask = identityMask(dim)

	dist, err := parseDistance(cf.distance)
	if err != nil {
		return p, err
	}
	p.Distance = dist

	init, err := parseInitMethod(cf.initMethod)
	if err != nil {
		return p, err
	}
	p.InitMethod = init

	choice, err := parseReplicateChoice(cf.replicateChoice)
	if err != nil {
		return p, err
	}
	p.ReplicateChoice = choice

	post, err := parsePostOptimisation(cf.postOptimisation)
	if err != nil {
		return p, err
	}
	p.PostOptimisation = post

	return p, nil
}

func runTrain(args []string) {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	cf := bindCommonFlags(fs)
	fs.Parse(args)

	if cf.csvPath == "" {
		fmt.Println("Error: -csv is required")
		fs.Usage()
		os.Exit(1)
	}

	instances, err := readCSV(cf.csvPath, cf.hasTarget, cf.hasHeader)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	params, err := cf.toParameters(len(instances[0].Values))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if err := params.Validate(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewDefaultLogger()
	engine := clustering.NewEngine(log, nil, nil)

	ctx, cancel := signalContext()
	defer cancel()

	bar := newTrainingBar(len(instances) * params.NReplicates)
	bar.SetLabel("training")
	start := time.Now()
	result, err := engine.Train(ctx, params, clustering.SliceSource(instances), distinctTargets(instances))
	bar.Finish()
	if err != nil {
		fmt.Printf("Training failed: %v\n", err)
		os.Exit(1)
	}

	printResult(result, time.Since(start))
}

func runTrainMiniBatch(args []string) {
	fs := flag.NewFlagSet("train-minibatch", flag.ExitOnError)
	cf := bindCommonFlags(fs)
	var (
		batchCount    = fs.Int("batch-count", 10, "number of mini-batches to draw")
		batchPercent  = fs.Float64("batch-percent", 0.1, "fraction of the stream sampled per batch")
		miniBatchSize = fs.Int("mini-batch-size", 1000, "target instances per mini-batch")
	)
	fs.Parse(args)

	if cf.csvPath == "" {
		fmt.Println("Error: -csv is required")
		fs.Usage()
		os.Exit(1)
	}

	instances, err := readCSV(cf.csvPath, cf.hasTarget, cf.hasHeader)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	params, err := cf.toParameters(len(instances[0].Values))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	params.MiniBatchMode = true
	params.MiniBatchSize = *miniBatchSize
	if err := params.Validate(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewDefaultLogger()
	engine := clustering.NewEngine(log, nil, nil)
	stream := newSliceStream(instances)

	ctx, cancel := signalContext()
	defer cancel()

	bar := newTrainingBar(*batchCount)
	progress := &barProgress{bar: bar}
	start := time.Now()
	result, err := engine.TrainMiniBatch(ctx, params, stream, distinctTargets(instances), *batchCount, *batchPercent, progress)
	bar.Finish()
	if err != nil {
		fmt.Printf("Training failed: %v\n", err)
		os.Exit(1)
	}

	printResult(result, time.Since(start))
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, the CLI's
// analogue of C13's /cancel route.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// progressBarMax is the fixed scale barProgress.SetProgress's 0..1
// fraction is mapped onto.
const progressBarMax = 100

func newTrainingBar(_ int) *progressbar.ProgressBar {
	return progressbar.NewOptions(progressBarMax,
		progressbar.OptionSetDescription("training"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// barProgress backs clustering.ProgressSink with a console progress bar,
// the way the CLI reports mini-batch progress since there is no job-status
// route to poll outside a server process.
type barProgress struct {
	bar *progressbar.ProgressBar
}

func (b *barProgress) SetLabel(label string) {
	b.bar.Describe(label)
}

func (b *barProgress) SetProgress(percent float64) {
	b.bar.Set(int(percent * progressBarMax))
}

func printResult(result *clustering.RunResult, elapsed time.Duration) {
	cl := result.Clustering
	fmt.Println("=== Training Result ===")
	fmt.Printf("Elapsed:          %s\n", elapsed)
	fmt.Printf("Iterations:       %d\n", cl.Iterations)
	fmt.Printf("Dropped clusters: %d\n", cl.DroppedClusters)
	fmt.Printf("Score:            %.6f\n", result.Score)
	fmt.Printf("Replicates:       %d\n", result.Replicates)
	fmt.Println()
	fmt.Printf("%-6s %-10s %-10s\n", "Index", "Frequency", "Majority")
	for _, c := range cl.Clusters {
		fmt.Printf("%-6d %-10d %-10s\n", c.Index, c.Frequency, c.MajorityTargetValue)
	}
}

func showUsage() {
	fmt.Println(`mlclusters-cli - K-Means clustering, trained locally against a CSV file

Usage:
  mlclusters-cli <command> [options]

Commands:
  train             Train a clustering from a local CSV, full in-memory mode
  train-minibatch   Train a clustering from a local CSV, streamed in mini-batches
  version           Show version
  help              Show this help message

Common Options:
  -csv PATH                  Path to a CSV of already-recoded numeric columns (required)
  -has-header                First CSV row is a header (default true)
  -has-target                Last CSV column is a target symbol
  -k N                        Number of clusters
  -distance NAME              Distance norm: l1, l2, cosine
  -init NAME                  Seeding strategy: auto, random, sample, kmeans++, kmeans++r,
                               rocchio_then_split, bisecting, minmax_random,
                               minmax_deterministic, variance_partitioning, class_decomposition
  -max-iterations N           Lloyd loop cap (0 = unbounded, -1 = skip loop)
  -epsilon F                  Convergence threshold
  -n-replicates N             Number of independent replicates
  -replicate-choice NAME      Criterion selecting the best replicate
  -post-optimisation NAME     none or fast
  -supervised                 Run in supervised mode (requires -has-target)
  -seed N                     Random seed

train-minibatch Options:
  -batch-count N              Number of mini-batches to draw
  -batch-percent F             Fraction of the stream sampled per batch
  -mini-batch-size N          Target instances per mini-batch

Examples:

  mlclusters-cli train -csv data.csv -k 3 -distance l2 -n-replicates 5

  mlclusters-cli train -csv iris.csv -has-target -supervised -k 3 \
    -init kmeans++r -replicate-choice eva -post-optimisation fast

  mlclusters-cli train-minibatch -csv large.csv -k 10 \
    -batch-count 10 -batch-percent 0.1

Loads a .env file from the working directory before parsing flags, if present.`)
}
