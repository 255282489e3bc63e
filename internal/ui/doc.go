// Package ui holds the terminal styling shared by rackwatch's CLI output:
// the ANSI colour palette, status symbols, plain tables, and the
// ~/.ssh/config host picker used by "host add".
//
// Colours are ANSI codes rather than hex so output follows the user's
// terminal theme. The dashboard keeps its own palette.
package ui
