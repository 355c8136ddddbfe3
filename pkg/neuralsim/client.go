package neuralsim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"neuralsim/internal/config"
	"neuralsim/internal/model"
	"neuralsim/internal/network"
	"neuralsim/internal/stats"
	"neuralsim/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "neuralsim.db"

	// settleTolerance bounds the per-neuron drift allowed once a trace counts
	// as settled.
	settleTolerance = 1e-6
)

var (
	ErrNoRuns        = errors.New("no runs recorded")
	ErrRunNotFound   = errors.New("run not found")
	ErrNetworkAbsent = errors.New("network not found")
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	initMu      sync.Mutex
	initialized bool

	artifactsDir string
	exportsDir   string
}

type RunRequest struct {
	Blueprint config.Simulation
	// Ticks and Seed override the blueprint when non-zero.
	Ticks int
	Seed  int64
	// ExportDir receives linked-list and matrix exports of every synapse
	// group after the run. Empty falls back to the blueprint's export_dir;
	// both empty skips exporting.
	ExportDir string
	// OnTick, when set, is called after every tick.
	OnTick func(tick int, net *network.Network)
}

type RunSummary struct {
	RunID            string
	NetworkID        string
	Ticks            int
	FinalTime        float64
	ArtifactsDir     string
	FinalActivity    []float64
	ExcitatoryRatios map[string]float64
	Trace            stats.TraceSummary
	Exports          []string
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	NetworkID    string
	CreatedAtUTC string
	Ticks        int
	Seed         int64
	Neurons      int
	Synapses     int
	FinalTime    float64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type InspectRequest struct {
	// NetworkID names a stored snapshot; RunID or Latest resolve it through
	// a run record.
	NetworkID string
	RunID     string
	Latest    bool
}

type GroupInfo struct {
	ID       string
	Label    string
	Size     int
	Polarity string
}

type SynapseGroupInfo struct {
	ID              string
	Label           string
	Source          string
	Target          string
	Size            int
	Excitatory      int
	Inhibitory      int
	ExcitatoryRatio float64
}

type NetworkInfo struct {
	ID            string
	Time          float64
	Iterations    int
	UpdateMethod  string
	Neurons       int
	Synapses      int
	Groups        []GroupInfo
	SynapseGroups []SynapseGroupInfo
}

type WeightsRequest struct {
	NetworkID string
	OutDir    string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = "memory"
	}
	dbPath := opts.DBPath
	if dbPath == "" && storeKind == "sqlite" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStoreWithLogger(storeKind, dbPath, logger)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		logger:       logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Init prepares the store. It runs once; later calls are no-ops.
func (c *Client) Init(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Run builds the blueprint, ticks it, then stores the final snapshot and the
// run's results and writes its artifacts. The context is checked before
// every tick.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	sim := req.Blueprint
	if req.Ticks > 0 {
		sim.Run.Ticks = req.Ticks
	}
	if req.Seed != 0 {
		sim.Network.Seed = req.Seed
	}
	if sim.Network.Seed == 0 {
		sim.Network.Seed = time.Now().UnixNano()
	}
	precision, err := network.ParsePrecision(sim.Run.Precision)
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	built, err := Build(sim, c.logger)
	if err != nil {
		return RunSummary{}, err
	}
	net := built.Network

	var recorded *network.NeuronGroup
	if sim.Run.RecordGroup != "" {
		recorded = built.Groups[sim.Run.RecordGroup]
	}
	names := make([]string, 0, len(built.SynapseGroups))
	for name := range built.SynapseGroups {
		names = append(names, name)
	}
	sort.Strings(names)

	trace := make([][]float64, 0, sim.Run.Ticks)
	history := make(map[string][]float64, len(names))
	for tick := 1; tick <= sim.Run.Ticks; tick++ {
		if err := ctx.Err(); err != nil {
			return RunSummary{}, fmt.Errorf("run stopped at tick %d: %w", tick, err)
		}
		if err := built.Coupling.Step(ctx, net); err != nil {
			return RunSummary{}, fmt.Errorf("tick %d: %w", tick, err)
		}
		if recorded != nil {
			trace = append(trace, recorded.Activations())
		}
		for _, name := range names {
			history[name] = append(history[name], built.SynapseGroups[name].ExcitatoryRatioPrecise())
		}
		if req.OnTick != nil {
			req.OnTick(tick, net)
		}
	}

	snapshot, err := net.Snapshot(precision)
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveNetwork(ctx, snapshot); err != nil {
		return RunSummary{}, err
	}

	now := time.Now().UTC()
	runID := uuid.NewString()
	ratios := make(map[string]float64, len(names))
	for _, name := range names {
		ratios[name] = built.SynapseGroups[name].ExcitatoryRatioPrecise()
	}
	var finalActivity []float64
	if recorded != nil {
		finalActivity = recorded.Activations()
	}
	run := model.RunRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: model.CurrentSchemaVersion,
			CodecVersion:  model.CurrentCodecVersion,
		},
		ID:               runID,
		NetworkID:        net.ID(),
		Ticks:            net.Iterations(),
		Seed:             sim.Network.Seed,
		FinalTime:        net.Time(),
		RecordedGroup:    sim.Run.RecordGroup,
		FinalActivity:    finalActivity,
		ExcitatoryRatios: ratios,
		CreatedAtUTC:     now.Format(time.RFC3339Nano),
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveActivityTrace(ctx, runID, trace); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveRatioHistory(ctx, runID, history); err != nil {
		return RunSummary{}, err
	}

	summary, err := stats.SummarizeTrace(trace, settleTolerance)
	if err != nil {
		return RunSummary{}, err
	}
	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:        runID,
			NetworkID:    net.ID(),
			Seed:         sim.Network.Seed,
			Ticks:        sim.Run.Ticks,
			TimeStep:     net.TimeStep(),
			UpdateMethod: net.UpdateMethod().String(),
			Store:        sim.Run.Store,
			RecordGroup:  sim.Run.RecordGroup,
			Precision:    precision.String(),
		},
		Blueprint:    &sim,
		Activations:  trace,
		RatioHistory: history,
		Summary:      summary,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:        runID,
		NetworkID:    net.ID(),
		Ticks:        net.Iterations(),
		Seed:         sim.Network.Seed,
		Neurons:      len(net.FlatNeuronList()),
		Synapses:     len(net.FlatSynapseList()),
		FinalTime:    net.Time(),
		CreatedAtUTC: run.CreatedAtUTC,
	}); err != nil {
		return RunSummary{}, err
	}

	exportDir := req.ExportDir
	if exportDir == "" {
		exportDir = sim.Run.ExportDir
	}
	var exports []string
	if exportDir != "" {
		exports = c.exportWeights(net, exportDir)
	}

	c.logger.Info("run finished",
		slog.String("run", runID),
		slog.String("network", net.ID()),
		slog.Int("ticks", net.Iterations()),
		slog.String("artifacts", runDir),
	)
	return RunSummary{
		RunID:            runID,
		NetworkID:        net.ID(),
		Ticks:            net.Iterations(),
		FinalTime:        net.Time(),
		ArtifactsDir:     filepath.Clean(runDir),
		FinalActivity:    finalActivity,
		ExcitatoryRatios: ratios,
		Trace:            summary,
		Exports:          exports,
	}, nil
}

// exportWeights writes each synapse group as a linked list and a matrix.
// Failures are logged by the group and skipped.
func (c *Client) exportWeights(net *network.Network, dir string) []string {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.logger.Warn("export directory unavailable", slog.String("dir", dir), slog.Any("err", err))
		return nil
	}
	var paths []string
	for _, sg := range net.SynapseGroups() {
		if path, err := sg.SaveToFileAsLinkedList(dir); err == nil {
			paths = append(paths, path)
		}
		matrix := filepath.Join(dir, strings.TrimSuffix(sg.DefaultExportName(time.Now()), ".dat")+"_matrix.csv")
		if err := sg.SaveWeightMatrix(matrix); err == nil {
			paths = append(paths, matrix)
		}
	}
	return paths
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			NetworkID:    e.NetworkID,
			CreatedAtUTC: e.CreatedAtUTC,
			Ticks:        e.Ticks,
			Seed:         e.Seed,
			Neurons:      e.Neurons,
			Synapses:     e.Synapses,
			FinalTime:    e.FinalTime,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID := req.RunID
	if req.Latest {
		latest, err := c.latestRunID()
		if err != nil {
			return ExportSummary{}, err
		}
		runID = latest
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// RunRecord returns the stored record of a run together with its recorded
// activations.
func (c *Client) RunRecord(ctx context.Context, runID string) (model.RunRecord, [][]float64, error) {
	if err := c.Init(ctx); err != nil {
		return model.RunRecord{}, nil, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.RunRecord{}, nil, err
	}
	if !ok {
		return model.RunRecord{}, nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	trace, _, err := c.store.GetActivityTrace(ctx, runID)
	if err != nil {
		return model.RunRecord{}, nil, err
	}
	return run, trace, nil
}

// Networks lists the ids of stored snapshots.
func (c *Client) Networks(ctx context.Context) ([]string, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	return c.store.ListNetworks(ctx)
}

// Restore loads a stored snapshot into a fresh network.
func (c *Client) Restore(ctx context.Context, networkID string) (*network.Network, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	rec, ok, err := c.store.GetNetwork(ctx, networkID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNetworkAbsent, networkID)
	}
	return network.Restore(network.NewSimulationContext(network.WithLogger(c.logger)), rec)
}

func (c *Client) Inspect(ctx context.Context, req InspectRequest) (NetworkInfo, error) {
	networkID, err := c.resolveNetworkID(ctx, req)
	if err != nil {
		return NetworkInfo{}, err
	}
	net, err := c.Restore(ctx, networkID)
	if err != nil {
		return NetworkInfo{}, err
	}

	info := NetworkInfo{
		ID:           net.ID(),
		Time:         net.Time(),
		Iterations:   net.Iterations(),
		UpdateMethod: net.UpdateMethod().String(),
		Neurons:      len(net.FlatNeuronList()),
		Synapses:     len(net.FlatSynapseList()),
	}
	for _, g := range net.NeuronGroups() {
		polarity := network.Unpolarized.String()
		if g.Size() > 0 {
			polarity = g.NeuronAt(0).Polarity().String()
		}
		info.Groups = append(info.Groups, GroupInfo{ID: g.ID(), Label: g.Label(), Size: g.Size(), Polarity: polarity})
	}
	for _, sg := range net.SynapseGroups() {
		info.SynapseGroups = append(info.SynapseGroups, SynapseGroupInfo{
			ID:              sg.ID(),
			Label:           sg.Label(),
			Source:          sg.SourceGroup().Label(),
			Target:          sg.TargetGroup().Label(),
			Size:            sg.Size(),
			Excitatory:      sg.NumExcitatory(),
			Inhibitory:      sg.NumInhibitory(),
			ExcitatoryRatio: sg.ExcitatoryRatioPrecise(),
		})
	}
	return info, nil
}

// ExportWeights restores a snapshot and writes every synapse group's weights
// into OutDir, defaulting to the client's exports directory.
func (c *Client) ExportWeights(ctx context.Context, req WeightsRequest) ([]string, error) {
	net, err := c.Restore(ctx, req.NetworkID)
	if err != nil {
		return nil, err
	}
	dir := req.OutDir
	if dir == "" {
		dir = c.exportsDir
	}
	return c.exportWeights(net, dir), nil
}

func (c *Client) resolveNetworkID(ctx context.Context, req InspectRequest) (string, error) {
	switch {
	case req.NetworkID != "":
		return req.NetworkID, nil
	case req.RunID != "":
		run, _, err := c.RunRecord(ctx, req.RunID)
		if err != nil {
			return "", err
		}
		return run.NetworkID, nil
	case req.Latest:
		if err := c.Init(ctx); err != nil {
			return "", err
		}
		runs, err := c.store.ListRuns(ctx)
		if err != nil {
			return "", err
		}
		if len(runs) == 0 {
			return "", ErrNoRuns
		}
		return runs[len(runs)-1].NetworkID, nil
	default:
		return "", errors.New("inspect requires a network id, run id or latest")
	}
}

func (c *Client) latestRunID() (string, error) {
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", ErrNoRuns
	}
	return entries[0].RunID, nil
}
