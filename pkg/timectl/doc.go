// Package timectl computes how long a search may run.
//
// A Policy turns the clock state of a "go" command into TimeLimits: a soft
// limit the search aims to finish by and a hard limit it must never exceed.
// All arithmetic saturates, so pathological clocks (zero, or close to the
// largest uint64) never overflow and always yield soft <= hard.
package timectl
