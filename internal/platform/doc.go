// Package platform knows how to find the language server with the tools each
// operating system ships: which commands to run, how to read their output, and
// which alternate tool to fall back to when the preferred one is missing or
// blocked. Parsers are pure functions over captured command output.
package platform
