// Package sim provides randomized stand-ins for the external drone tools:
// sensor data analysis, performance estimation, route planning, command
// transmission, coverage assessment and intelligence validation. In a real
// deployment these would be replaced with actual drone interfaces and
// analysis services; here they model plausible value ranges and failure
// rates so the agent pipeline can be exercised end to end.
package sim
