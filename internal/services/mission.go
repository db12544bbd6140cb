package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"oceancli/internal/analysis"
	"oceancli/internal/dataprocessing"
	apperrors "oceancli/internal/errors"
	"oceancli/internal/infrastructure"
	"oceancli/internal/operations"
	"oceancli/pkg/contracts/domain"
)

// Artifact names.
const (
	ArtifactReadings   = "readings"
	ArtifactDescribe   = "describe"
	ArtifactNullUnique = "null_unique"
	ArtifactContinuity = "continuity"
	ArtifactSpikes     = "spikes"
	ArtifactClean      = "clean"

	// ArtifactSpikeReference is the spike file the interpolation reads.
	ArtifactSpikeReference = "spikes_reference"

	// CorrelationDir groups the correlation tables of a job.
	CorrelationDir = "correlation"
)

// MissionReport summarises one processed mission.
type MissionReport struct {
	Name      string         `json:"name"`
	Device    string         `json:"device"`
	Rows      int            `json:"rows"`
	Spikes    map[string]int `json:"spikes,omitempty"`
	Artifacts []string       `json:"artifacts"`
}

// Report summarises a job run.
type Report struct {
	Job          string               `json:"job"`
	RunID        string               `json:"run_id"`
	Missions     []MissionReport      `json:"missions"`
	Thresholds   map[string]Threshold `json:"thresholds,omitempty"`
	Correlations []string             `json:"correlations,omitempty"`
	Published    []string             `json:"published,omitempty"`
	Duration     time.Duration        `json:"duration"`
}

// Threshold is a group threshold in the report. A NaN threshold, from a pool
// holding missing readings, is written as null.
type Threshold float64

// MarshalJSON implements json.Marshaler.
func (t Threshold) MarshalJSON() ([]byte, error) {
	f := float64(t)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// MissionService runs jobs: every mission pipeline is extracted and loaded
// into typed readings, analyzed and stored. Missions run one after another
// and the first failure aborts the job.
type MissionService struct {
	builder  *operations.Builder
	runner   *operations.Runner
	analyzer *analysis.Analyzer
	writer   *ArtifactWriter
	metrics  *infrastructure.PipelineMetrics
	logger   *slog.Logger
}

// NewMissionService creates a mission service. metrics may be nil.
func NewMissionService(builder *operations.Builder, runner *operations.Runner, analyzer *analysis.Analyzer,
	writer *ArtifactWriter, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *MissionService {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = operations.NewRunner(logger, nil)
	}
	return &MissionService{
		builder:  builder,
		runner:   runner,
		analyzer: analyzer,
		writer:   writer,
		metrics:  metrics,
		logger:   infrastructure.WithComponent(logger, "mission_service"),
	}
}

// loaded is a mission whose readings are in memory.
type loaded struct {
	mission  Mission
	pipeline operations.Pipeline
	series   domain.ReadingSeries
}

// Run processes job and returns what was produced.
func (s *MissionService) Run(ctx context.Context, job *Job) (*Report, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	start := time.Now()
	report := &Report{Job: job.Name, RunID: infrastructure.GetTraceID(ctx)}

	s.logger.InfoContext(ctx, "job_started",
		slog.String("job", job.Name),
		slog.Int("missions", len(job.Missions)))

	missions := make(map[string]*loaded, len(job.Missions))
	for _, m := range job.Missions {
		l, err := s.load(ctx, m)
		if err != nil {
			s.metrics.RecordMission(ctx, m.Name, err)
			return report, err
		}
		missions[m.Name] = l
	}

	thresholds, err := s.pooledThresholds(ctx, job, missions)
	if err != nil {
		return report, err
	}
	report.Thresholds = make(map[string]Threshold, len(thresholds))
	for name, v := range thresholds {
		report.Thresholds[name] = Threshold(v)
	}

	for _, m := range job.Missions {
		mr, err := s.analyze(ctx, missions[m.Name], thresholds)
		s.metrics.RecordMission(ctx, m.Name, err)
		if err != nil {
			return report, err
		}
		report.Missions = append(report.Missions, *mr)
	}

	gliders, err := pairGliders(job, missions)
	if err != nil {
		return report, err
	}
	for _, c := range job.Correlations {
		paths, err := s.correlate(ctx, c, missions, gliders)
		if err != nil {
			return report, err
		}
		report.Correlations = append(report.Correlations, paths...)
	}

	published, err := s.writer.Publish(ctx)
	if err != nil {
		return report, err
	}
	report.Published = published
	report.Duration = time.Since(start)

	s.logger.InfoContext(ctx, "job_completed",
		slog.String("job", job.Name),
		slog.Int("missions", len(report.Missions)),
		slog.Int("published", len(published)),
		slog.Duration("duration", report.Duration))
	return report, nil
}

// load runs the mission pipeline and loads typed readings.
func (s *MissionService) load(ctx context.Context, m Mission) (*loaded, error) {
	p, err := s.builder.Build(m.Pipeline)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation,
			fmt.Sprintf("mission %s: invalid pipeline", m.Name), err)
	}
	series, err := loadSeries(ctx, m.Device, p)
	if err != nil {
		return nil, apperrors.NewPipelineError(fmt.Sprintf("mission %s: pipeline failed", m.Name), err).
			WithContext("error_type", string(operations.GetErrorType(err)))
	}
	s.logger.InfoContext(ctx, "mission_loaded",
		slog.String("mission", m.Name),
		slog.String("device", m.Device),
		slog.Int("rows", series.Len()))
	return &loaded{mission: m, pipeline: p, series: series}, nil
}

func loadSeries(ctx context.Context, device string, p operations.Pipeline) (domain.ReadingSeries, error) {
	switch device {
	case DeviceSeabed:
		r, err := operations.Load[*domain.SeabedReadings](ctx, p, dataprocessing.SeabedLoader{})
		if err != nil {
			return nil, err
		}
		return r, nil
	case DeviceGliderOcean:
		r, err := operations.Load[*domain.GliderOceanReadings](ctx, p, dataprocessing.GliderOceanLoader{})
		if err != nil {
			return nil, err
		}
		return r, nil
	case DeviceGliderWeather:
		r, err := operations.Load[*domain.GliderWeatherReadings](ctx, p, dataprocessing.GliderWeatherLoader{})
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, fmt.Errorf("unknown device %q", device)
}

// pooledThresholds computes the threshold of every group.
func (s *MissionService) pooledThresholds(ctx context.Context, job *Job, missions map[string]*loaded) (map[string]float64, error) {
	out := make(map[string]float64, len(job.Thresholds))
	for _, g := range job.Thresholds {
		series := make([]domain.ReadingSeries, len(g.Missions))
		for i, name := range g.Missions {
			series[i] = missions[name].series
		}
		threshold, err := analysis.PooledThreshold(domain.SpikeVariable(g.Variable), series...)
		if err != nil {
			return nil, apperrors.NewPipelineError(fmt.Sprintf("threshold group %s", g.Name), err)
		}
		out[g.Name] = threshold
		s.logger.InfoContext(ctx, "threshold_computed",
			slog.String("group", g.Name),
			slog.String("variable", g.Variable),
			infrastructure.FloatAttr("threshold", threshold))
	}
	return out, nil
}

// analyze runs the selected analyses of one mission and stores the results.
func (s *MissionService) analyze(ctx context.Context, l *loaded, thresholds map[string]float64) (*MissionReport, error) {
	m := l.mission
	mr := &MissionReport{Name: m.Name, Device: m.Device, Rows: l.series.Len()}
	table := l.series.Table()

	write := func(name string, t domain.Table, index bool) error {
		paths, err := s.writer.Write(ctx, Artifact{Mission: m.Name, Name: name, Table: t, Index: index, Translate: m.Translate})
		mr.Artifacts = append(mr.Artifacts, paths...)
		return err
	}
	fail := func(what string, err error) error {
		return apperrors.NewPipelineError(fmt.Sprintf("mission %s: %s failed", m.Name, what), err)
	}

	if err := write(ArtifactReadings, table, false); err != nil {
		return mr, err
	}

	a := m.Analyses
	if a.Describe {
		t, err := s.analyzer.Describe(ctx, table)
		if err != nil {
			return mr, fail("describe", err)
		}
		if err := write(ArtifactDescribe, t, true); err != nil {
			return mr, err
		}
	}
	if a.NullUnique {
		t, err := s.analyzer.NullAndUnique(ctx, table)
		if err != nil {
			return mr, fail("null and unique count", err)
		}
		if err := write(ArtifactNullUnique, t, true); err != nil {
			return mr, err
		}
	}
	if a.Continuity > 0 {
		t, err := s.analyzer.DataContinuity(ctx, table, a.Continuity)
		if err != nil {
			return mr, fail("data continuity", err)
		}
		if err := write(ArtifactContinuity, t, false); err != nil {
			return mr, err
		}
	}

	if len(a.Spikes.Variables) == 0 {
		return mr, nil
	}
	spikeTable, counts, err := s.spikes(ctx, l, thresholds)
	if err != nil {
		return mr, fail("spike test", err)
	}
	mr.Spikes = counts

	if err := write(ArtifactSpikes, spikeTable, true); err != nil {
		return mr, err
	}
	if !a.Spikes.Interpolate {
		return mr, nil
	}

	// the stored file, not the in-memory result, feeds the interpolation
	spikesPath, err := s.writer.WriteReference(ctx, Artifact{Mission: m.Name, Name: ArtifactSpikeReference, Table: spikeTable, Index: true})
	if err != nil {
		return mr, err
	}
	clean, err := s.interpolate(ctx, l, spikesPath)
	if err != nil {
		return mr, fail("interpolation", err)
	}
	if err := write(ArtifactClean, clean.Table(), false); err != nil {
		return mr, err
	}
	return mr, nil
}

// spikes tests every configured variable. Each variable keeps its own
// threshold in the returned table.
func (s *MissionService) spikes(ctx context.Context, l *loaded, thresholds map[string]float64) (domain.Table, map[string]int, error) {
	var table domain.Table
	counts := make(map[string]int)
	for i, target := range l.mission.Analyses.Spikes.Variables {
		variable := domain.SpikeVariable(target.Variable)
		threshold, err := thresholdFor(target, l.series, thresholds)
		if err != nil {
			return domain.Table{}, nil, err
		}
		found, err := s.analyzer.Spikes(ctx, l.series, variable, threshold)
		if err != nil {
			return domain.Table{}, nil, err
		}
		counts[target.Variable] += found.Len()
		s.metrics.RecordSpikes(ctx, l.mission.Name, target.Variable, found.Len())
		s.logger.InfoContext(ctx, "spikes_detected",
			slog.String("mission", l.mission.Name),
			slog.String("variable", target.Variable),
			infrastructure.FloatAttr("threshold", threshold),
			slog.Int("count", found.Len()))
		if i == 0 {
			table = found.ToTable()
			continue
		}
		table = table.ConcatEqual(found.ToTable())
	}
	return table, counts, nil
}

func thresholdFor(target SpikeTarget, series domain.ReadingSeries, groups map[string]float64) (float64, error) {
	switch {
	case target.Threshold != nil:
		return *target.Threshold, nil
	case target.Group != "":
		t, ok := groups[target.Group]
		if !ok {
			return math.NaN(), fmt.Errorf("unknown threshold group %q", target.Group)
		}
		return t, nil
	}
	return analysis.PooledThreshold(domain.SpikeVariable(target.Variable), series)
}

// interpolate reruns the mission pipeline with the spikes stored at
// spikesPath interpolated away.
func (s *MissionService) interpolate(ctx context.Context, l *loaded, spikesPath string) (domain.ReadingSeries, error) {
	source := operations.NewPipeline(SpikesExtractor(), s.runner).Extract(spikesPath)
	p := l.pipeline.InterpolateOutliersFrom(source, domain.ColumnTimeStamp)
	return loadSeries(ctx, l.mission.Device, p)
}

// SpikesExtractor reads stored spike tables.
func SpikesExtractor() dataprocessing.Extractor {
	index := 0
	return dataprocessing.NewDatedCSVExtractor(
		dataprocessing.CSVOptions{IndexColumn: &index},
		dataprocessing.DateParsing{Columns: []string{domain.SpikeColumnTimeStamp}},
		nil)
}

// pairGliders joins the ocean and weather readings of every glider.
func pairGliders(job *Job, missions map[string]*loaded) (map[string]domain.Glider, error) {
	out := make(map[string]domain.Glider, len(job.Gliders))
	for _, g := range job.Gliders {
		ocean, ok := missions[g.Ocean].series.(*domain.GliderOceanReadings)
		if !ok {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("glider %s: %s holds no ocean readings", g.Name, g.Ocean))
		}
		weather, ok := missions[g.Weather].series.(*domain.GliderWeatherReadings)
		if !ok {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("glider %s: %s holds no weather readings", g.Name, g.Weather))
		}
		out[g.Name] = domain.Glider{Ocean: ocean, Weather: weather}
	}
	return out, nil
}

// correlate builds and stores one correlation table.
func (s *MissionService) correlate(ctx context.Context, c CorrelationSpec, missions map[string]*loaded, gliders map[string]domain.Glider) ([]string, error) {
	inputs := make([]domain.CorrelationInput, 0, len(c.Inputs))
	for _, in := range c.Inputs {
		var xs, ys domain.ReadingSeries
		if in.Glider != "" {
			g := gliders[in.Glider]
			xs, ys = g.Ocean, g.Weather
		} else {
			xs, ys = missions[in.X.Mission].series, missions[in.Y.Mission].series
		}
		x, err := xs.Variable(in.X.Column)
		if err != nil {
			return nil, apperrors.NewPipelineError(fmt.Sprintf("correlation %s: %s", c.Name, in.Label), err)
		}
		y, err := ys.Variable(in.Y.Column)
		if err != nil {
			return nil, apperrors.NewPipelineError(fmt.Sprintf("correlation %s: %s", c.Name, in.Label), err)
		}
		inputs = append(inputs, domain.CorrelationInput{Label: in.Label, X: x, Y: y})
	}

	table, err := s.analyzer.Correlate(ctx, inputs)
	if err != nil {
		return nil, apperrors.NewPipelineError("correlation "+c.Name, err)
	}
	return s.writer.Write(ctx, Artifact{Mission: CorrelationDir, Name: c.Name, Table: table, Index: true, Translate: c.Translate})
}
