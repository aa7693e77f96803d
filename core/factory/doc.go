// Package factory provides a small generic registry used to instantiate modules
// from configuration. A module is described by a type string and a map of raw
// settings; its factory decodes the settings into a typed struct.
//
// Solver backends and metrics sinks are both selected this way:
//
//	optimizer:
//	  solver:
//	    type: cbc
//	    conf:
//	      path: /usr/bin/cbc
//	      time_limit_seconds: 20
package factory
