// Package domain models geolocated hazard detections and the alerting
// vocabulary built on top of them.
//
// # Data Source
//
// Hazard and resource reports arrive from upstream sensor and satellite
// feeds as flat JSON messages on a Kafka topic. Every report carries a
// stable source id, a WGS-84 coordinate pair, an intensity or confidence
// signal, and a per-source monotonic sequence number used to tolerate
// out-of-order delivery.
//
// # Report Shapes
//
// Two feed conventions are recognized:
//
//	Ground-sensor (canonical):
//	  {"kind":"hazard","id":"fire-042","lat":34.0522,"lon":-118.2437,
//	   "intensity":75,"seq":3,"location":"Los Angeles"}
//	  Coordinates in WGS-84 degrees, intensity already on the 0-100 scale.
//	  Resource reports use kind "resource" with "type" and "label" fields.
//
//	Satellite:
//	  {"source":"satellite","detection_id":"goes-17-00042",
//	   "lat_e6":34052200,"lon_e6":-118243700,"confidence":0.75,"seq":3}
//	  Coordinates in microdegrees (degrees x 1e6), confidence on a 0-1
//	  scale. Normalization converts both to canonical units.
//
// Anything else fails normalization with [ErrUnknownSourceFormat].
//
// # Intensity Scale
//
// Canonical intensity is a float in [0, 100]. Satellite confidence values
// in [0, 1] are multiplied by 100. Values above 100 after conversion are
// clamped; a clamped value is still a valid report (sensor saturation is
// common near active fire fronts).
//
// # Impact Radius
//
// A hazard's implied impact radius grows linearly with intensity:
//
//	radiusMeters = base + intensity * metersPerPoint
//
// Both parameters are configurable. The mapping is monotonic, so a hazard
// that escalates can only widen, never shrink, its affected population.
package domain
