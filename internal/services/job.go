package services

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	apperrors "oceancli/internal/errors"
	"oceancli/internal/exporter"
	"oceancli/internal/operations"
)

// Mission devices.
const (
	DeviceSeabed        = "seabed"
	DeviceGliderOcean   = "glider_ocean"
	DeviceGliderWeather = "glider_weather"
)

// Job is a batch of missions processed together. Thresholds pool spike
// thresholds across missions, gliders pair the ocean and weather missions of
// one vehicle and correlations compare columns across missions.
type Job struct {
	Name         string            `yaml:"name" validate:"required"`
	Missions     []Mission         `yaml:"missions" validate:"required,min=1,dive"`
	Thresholds   []ThresholdGroup  `yaml:"thresholds" validate:"dive"`
	Gliders      []GliderPair      `yaml:"gliders" validate:"dive"`
	Correlations []CorrelationSpec `yaml:"correlations" validate:"dive"`
}

// Mission is one device deployment: how its data is extracted and which
// analyses run on it.
type Mission struct {
	Name      string                        `yaml:"name" validate:"required,excludesall=/\\"`
	Device    string                        `yaml:"device" validate:"required,oneof=seabed glider_ocean glider_weather"`
	Pipeline  operations.PipelineDescriptor `yaml:"pipeline"`
	Analyses  Analyses                      `yaml:"analyses"`
	Translate *exporter.Translation         `yaml:"translate"`
}

// Analyses selects the analyzers of a mission. Continuity is the gap count
// threshold of the data continuity analysis; zero disables it.
type Analyses struct {
	Describe   bool       `yaml:"describe"`
	NullUnique bool       `yaml:"null_unique"`
	Continuity int        `yaml:"continuity" validate:"min=0"`
	Spikes     SpikesSpec `yaml:"spikes"`
}

// SpikesSpec configures the spike test of a mission. With Interpolate set the
// stored spikes are fed back through the mission pipeline and the cleaned
// readings are stored as well.
type SpikesSpec struct {
	Variables   []SpikeTarget `yaml:"variables" validate:"dive"`
	Interpolate bool          `yaml:"interpolate"`
}

// SpikeTarget is one screened variable. A fixed Threshold wins over Group;
// with neither the threshold is computed from the mission alone.
type SpikeTarget struct {
	Variable  string   `yaml:"variable" validate:"required"`
	Threshold *float64 `yaml:"threshold"`
	Group     string   `yaml:"group"`
}

// ThresholdGroup computes one spike threshold of Variable from the readings
// of every listed mission.
type ThresholdGroup struct {
	Name     string   `yaml:"name" validate:"required"`
	Variable string   `yaml:"variable" validate:"required"`
	Missions []string `yaml:"missions" validate:"required,min=1"`
}

// GliderPair joins the ocean and weather missions of one wave glider.
type GliderPair struct {
	Name    string `yaml:"name" validate:"required"`
	Ocean   string `yaml:"ocean" validate:"required"`
	Weather string `yaml:"weather" validate:"required"`
}

// ColumnRef points at a numeric column of a mission.
type ColumnRef struct {
	Mission string `yaml:"mission"`
	Column  string `yaml:"column" validate:"required"`
}

// CorrelationSpec produces one correlation table with a row per input.
type CorrelationSpec struct {
	Name      string                `yaml:"name" validate:"required,excludesall=/\\"`
	Inputs    []CorrelationInputRef `yaml:"inputs" validate:"required,min=1,dive"`
	Translate *exporter.Translation `yaml:"translate"`
}

// CorrelationInputRef is a labelled pair of columns. When Glider is set, X is
// read from the glider's ocean mission and Y from its weather mission.
type CorrelationInputRef struct {
	Label  string    `yaml:"label" validate:"required"`
	Glider string    `yaml:"glider"`
	X      ColumnRef `yaml:"x"`
	Y      ColumnRef `yaml:"y"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadJob reads and validates a job file.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError("job file " + path)
		}
		return nil, apperrors.NewConfigError("failed to read job file", err)
	}
	return ParseJob(data)
}

// ParseJob decodes and validates a YAML job document.
func ParseJob(data []byte) (*Job, error) {
	var job Job
	if err := yaml.UnmarshalStrict(data, &job); err != nil {
		return nil, apperrors.NewParsingError("invalid job document", err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// Validate checks field constraints and every cross reference of the job.
func (j *Job) Validate() error {
	if err := validate.Struct(j); err != nil {
		return apperrors.NewAppValidationError(fieldErrors(err))
	}

	var problems []string
	missions := make(map[string]Mission, len(j.Missions))
	for _, m := range j.Missions {
		if _, dup := missions[m.Name]; dup {
			problems = append(problems, fmt.Sprintf("mission %q is defined twice", m.Name))
		}
		missions[m.Name] = m
	}

	groups := make(map[string]bool, len(j.Thresholds))
	for _, g := range j.Thresholds {
		if groups[g.Name] {
			problems = append(problems, fmt.Sprintf("threshold group %q is defined twice", g.Name))
		}
		groups[g.Name] = true
		for _, name := range g.Missions {
			if _, ok := missions[name]; !ok {
				problems = append(problems, fmt.Sprintf("threshold group %q: unknown mission %q", g.Name, name))
			}
		}
	}

	for _, m := range j.Missions {
		for _, target := range m.Analyses.Spikes.Variables {
			if target.Threshold == nil && target.Group != "" && !groups[target.Group] {
				problems = append(problems, fmt.Sprintf("mission %q: unknown threshold group %q", m.Name, target.Group))
			}
		}
	}

	gliders := make(map[string]bool, len(j.Gliders))
	for _, g := range j.Gliders {
		gliders[g.Name] = true
		if m, ok := missions[g.Ocean]; !ok || m.Device != DeviceGliderOcean {
			problems = append(problems, fmt.Sprintf("glider %q: %q is not a %s mission", g.Name, g.Ocean, DeviceGliderOcean))
		}
		if m, ok := missions[g.Weather]; !ok || m.Device != DeviceGliderWeather {
			problems = append(problems, fmt.Sprintf("glider %q: %q is not a %s mission", g.Name, g.Weather, DeviceGliderWeather))
		}
	}

	for _, c := range j.Correlations {
		for _, in := range c.Inputs {
			if in.Glider != "" {
				if !gliders[in.Glider] {
					problems = append(problems, fmt.Sprintf("correlation %q: unknown glider %q", c.Name, in.Glider))
				}
				continue
			}
			for _, ref := range []ColumnRef{in.X, in.Y} {
				if _, ok := missions[ref.Mission]; !ok {
					problems = append(problems, fmt.Sprintf("correlation %q: unknown mission %q", c.Name, ref.Mission))
				}
			}
		}
	}

	if len(problems) > 0 {
		return apperrors.NewAppValidationError(strings.Join(problems, "; "))
	}
	return nil
}

func fieldErrors(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Job.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
