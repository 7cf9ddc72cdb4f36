// Package main provides the linkguard CLI.
//
// Usage:
//
//	linkguard run https://example.com/
//	linkguard scan --static --feature hide https://example.com/
//	linkguard flags set hover on
//
// See --help for all available options.
package main

func main() {
	Execute()
}
