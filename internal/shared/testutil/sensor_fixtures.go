package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/snappy"
)

// GliderOceanCSV holds five wave glider ocean samples with one 3h10m gap.
// Its oxygen series has two spikes (8.2 and 7.5) and its salinity none.
const GliderOceanCSV = `TimeStamp,Temperature_C,Conductivity_S_m,Salinity_PSU,Pressure_d,Oxygen_umol_L,Latitude_deg,Longitude_deg
2024-07-10 09:05:00,25.0,0.05,35.5,1010.0,7.8,40.7128,-74.006
2024-07-10 09:10:00,26.5,0.06,36.2,1010.5,8.2,51.5074,-0.1278
2024-07-10 09:15:00,27.8,0.055,35.8,1011.0,7.5,35.6895,139.6917
2024-07-10 09:20:00,24.3,0.07,34.9,1011.5,8.0,-33.8688,151.2093
2024-07-10 12:30:00,24.43,0.047,34.49,1011.45,8.04,-33.86884,151.24093
`

// SeabedCSV holds five seabed samples on the same clock as GliderOceanCSV.
const SeabedCSV = `TimeStamp,Temperature_C,Conductivity_S_m,Salinity_PSU
2024-07-10 09:05:00,25.0,0.05,35.5
2024-07-10 09:10:00,26.5,0.06,36.2
2024-07-10 09:15:00,27.8,0.055,35.8
2024-07-10 09:20:00,24.3,0.07,34.9
2024-07-10 12:30:00,24.33,0.072,34.934
`

// GliderWeatherCSV holds five weather samples on the same clock as GliderOceanCSV.
const GliderWeatherCSV = `TimeStamp,Temperature_C,Wind_speed_kt,Wind_gust_speed_kt,Wind_direction,Latitude_deg,Longitude_deg
2024-07-10 09:05:00,25.0,10.2,15.0,120.0,40.7128,-74.006
2024-07-10 09:10:00,26.5,12.5,18.3,145.0,51.5074,-0.1278
2024-07-10 09:15:00,27.8,8.7,14.2,105.0,35.6895,139.6917
2024-07-10 09:20:00,24.3,15.0,20.5,170.0,-33.8688,151.2093
2024-07-10 12:30:00,24.33,15.03,20.54,170.054,-33.868812,151.2093132
`

// RawGliderExportCSV mimics a vendor export: US timestamps, extra columns and
// vendor labels that a pipeline renames.
const RawGliderExportCSV = `TimeStamp,Vehicle,Latitude(deg),Longitude(deg),Pressure,Temperature,Conductivity,Oxygen_umol_L,Salinity (PSU)
11/24/2021 10:53 AM,PLOCAN (SO 4089),28.64769,-17.99594,0.21,22.5985,5.29215,203.36926964128037,36.8297
11/24/2021 10:52 AM,PLOCAN (SO 4089),28.64765,-17.99594,0.22,22.598,5.29212,203.57469485125114,36.8299
11/24/2021 10:43 AM,PLOCAN (SO 4089),28.647,-17.99583,0.25,22.5635,5.28799,204.3751515300799,36.8266
11/24/2021 10:42 AM,PLOCAN (SO 4089),28.64698,-17.99584,0.23,22.5637,5.288,204.29243077932102,36.8266
11/24/2021 10:33 AM,PLOCAN (SO 4089),28.64664,-17.99594,0.25,22.5751,5.28918,203.54426298109058,36.8262
`

// SpikesCSV is a persisted spike table with a leading unnamed index column.
const SpikesCSV = `,Variable,Threshold,TimeStamp,Values
1,Oxygen_umol_L,0.36,2024-07-10 09:10:00,8.2
2,Oxygen_umol_L,0.36,2024-07-10 09:15:00,7.5
`

// PointsGeoJSON is a two-feature FeatureCollection.
const PointsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "PLOCAN", "depth": 12.5}, "geometry": {"type": "Point", "coordinates": [-15.4, 28.1]}},
    {"type": "Feature", "properties": {"name": "ESTOC", "depth": 3600}, "geometry": {"type": "Point", "coordinates": [-15.5, 29.2]}}
  ]
}
`

// SensorFixtures writes sensor input files for tests.
type SensorFixtures struct {
	TestDataDir string
	t           *testing.T
}

// NewSensorFixtures writes into a fresh temporary directory owned by t.
func NewSensorFixtures(t *testing.T) *SensorFixtures {
	t.Helper()
	return &SensorFixtures{TestDataDir: t.TempDir(), t: t}
}

// WriteFile writes content under the fixture directory and returns its path.
func (f *SensorFixtures) WriteFile(name, content string) string {
	f.t.Helper()
	path := filepath.Join(f.TestDataDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		f.t.Fatalf("failed to create fixture dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		f.t.Fatalf("failed to write fixture %s: %v", name, err)
	}
	return path
}

// WriteSnappy writes content as a snappy framed stream.
func (f *SensorFixtures) WriteSnappy(name, content string) string {
	f.t.Helper()
	path := filepath.Join(f.TestDataDir, name)
	file, err := os.Create(path)
	if err != nil {
		f.t.Fatalf("failed to create fixture %s: %v", name, err)
	}
	defer file.Close()
	w := snappy.NewBufferedWriter(file)
	if _, err := w.Write([]byte(content)); err != nil {
		f.t.Fatalf("failed to compress fixture %s: %v", name, err)
	}
	if err := w.Close(); err != nil {
		f.t.Fatalf("failed to flush fixture %s: %v", name, err)
	}
	return path
}

// ReadSnappy returns the decompressed content of a snappy framed file.
func ReadSnappy(t *testing.T, path string) string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer file.Close()
	var out []byte
	buf := make([]byte, 4096)
	r := snappy.NewReader(file)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			break
		}
	}
	return string(out)
}
