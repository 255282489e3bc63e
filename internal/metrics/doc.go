// Package metrics turns the text printed by a fixed set of Linux shell
// commands into typed snapshots.
//
// Every parser is total: malformed or empty input yields the documented
// default value for each field instead of an error, and each field is
// located independently so one missing value never hides its neighbours.
// Parsers hold no state; calling one twice on the same text gives the same
// snapshot.
//
// Most parsers first Normalize their input (trim, lowercase, drop spaces)
// because top and df pad columns differently depending on value width, so
// spacing cannot be used as a delimiter. Values are then found by a
// number-plus-suffix pattern such as "12.5us" or "8000total".
package metrics
