package domain

import (
	"time"
)

// SpikeVariable names the sensor column a spike was detected on.
// Any column label is accepted; the constants cover the variables
// screened by the standard missions.
type SpikeVariable string

const (
	SpikeVariableSalinity SpikeVariable = "Salinity_PSU"
	SpikeVariableOxygen   SpikeVariable = "Oxygen_umol_L"
)

// Spike column labels used when spikes are persisted.
const (
	SpikeColumnVariable  = "Variable"
	SpikeColumnThreshold = "Threshold"
	SpikeColumnTimeStamp = "TimeStamp"
	SpikeColumnValues    = "Values"
)

// Spike is a single flagged reading.
type Spike struct {
	Variable  SpikeVariable `json:"variable" validate:"required"`
	TimeStamp time.Time     `json:"timestamp"`
	Value     float64       `json:"value"`
	// Index is the row position of the reading in the series it came from.
	Index int `json:"index"`
}

// Spikes is the result of one spike test. Threshold is the value the test
// values were compared against.
type Spikes struct {
	Threshold float64 `json:"threshold"`
	Items     []Spike `json:"items"`
}

// Len returns the number of flagged readings.
func (s Spikes) Len() int {
	return len(s.Items)
}

// Values returns the flagged readings' values in order.
func (s Spikes) Values() []float64 {
	out := make([]float64, len(s.Items))
	for i, it := range s.Items {
		out[i] = it.Value
	}
	return out
}

// Indexes returns the source row positions in order.
func (s Spikes) Indexes() []int {
	out := make([]int, len(s.Items))
	for i, it := range s.Items {
		out[i] = it.Index
	}
	return out
}

// Variables returns the distinct variables in first-seen order.
func (s Spikes) Variables() []SpikeVariable {
	seen := make(map[SpikeVariable]struct{})
	var out []SpikeVariable
	for _, it := range s.Items {
		if _, ok := seen[it.Variable]; ok {
			continue
		}
		seen[it.Variable] = struct{}{}
		out = append(out, it.Variable)
	}
	return out
}

// TimestampsFor returns the flagged timestamps of one variable.
func (s Spikes) TimestampsFor(v SpikeVariable) []time.Time {
	var out []time.Time
	for _, it := range s.Items {
		if it.Variable == v {
			out = append(out, it.TimeStamp)
		}
	}
	return out
}

// Merge returns the union of two spike sets. The receiver's threshold is kept.
func (s Spikes) Merge(other Spikes) Spikes {
	items := make([]Spike, 0, len(s.Items)+len(other.Items))
	items = append(items, s.Items...)
	items = append(items, other.Items...)
	return Spikes{Threshold: s.Threshold, Items: items}
}

// ToTable renders the spikes as Variable, Threshold, TimeStamp and Values
// columns indexed by the source row positions.
func (s Spikes) ToTable() Table {
	n := len(s.Items)
	variables := make([]any, n)
	thresholds := make([]any, n)
	stamps := make([]any, n)
	values := make([]any, n)
	indexes := make([]any, n)
	for i, it := range s.Items {
		variables[i] = string(it.Variable)
		thresholds[i] = s.Threshold
		stamps[i] = it.TimeStamp
		values[i] = it.Value
		indexes[i] = it.Index
	}
	return Table{
		Columns: []Column{
			{Label: SpikeColumnVariable, Values: variables},
			{Label: SpikeColumnThreshold, Values: thresholds},
			{Label: SpikeColumnTimeStamp, Values: stamps},
			{Label: SpikeColumnValues, Values: values},
		},
		Indexes: indexes,
	}
}
