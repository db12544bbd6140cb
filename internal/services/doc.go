// Package services runs processing jobs.
//
// A job file lists missions. Each mission names its device and a pipeline
// descriptor (see package operations); the pipeline result is loaded into the
// device's typed readings and the selected analyses run on them:
//
//	name: canary-2024
//	missions:
//	  - name: glider-ocean
//	    device: glider_ocean
//	    pipeline:
//	      extractor: {dates: {columns: [TimeStamp]}}
//	      stages:
//	        - {op: extract, path: glider/ocean*.csv}
//	        - {op: sort_values, column: TimeStamp}
//	    analyses:
//	      describe: true
//	      continuity: 2
//	      spikes:
//	        interpolate: true
//	        variables:
//	          - {variable: Oxygen_umol_L, group: oxygen}
//	thresholds:
//	  - {name: oxygen, variable: Oxygen_umol_L, missions: [glider-ocean]}
//
// Threshold groups pool the spike threshold of a variable over several
// missions. With interpolate set, the spike table is stored, read back and
// interpolated out of the mission pipeline, and the cleaned readings are
// stored as the "clean" artifact.
//
// Gliders pair an ocean mission with a weather mission of the same vehicle so
// correlations can compare the two payloads. Every result goes through the
// ArtifactWriter, which stores it in each configured format and publishes the
// stored files once the job is done.
package services
