// Package main provides the entry point for the sitecrawl CLI.
//
// sitecrawl crawls a single website from a seed URL, staying inside the
// seed's registrable domain, and writes statistics about what it found.
//
// Usage:
//
//	sitecrawl crawl --seed https://www.example.com/
//	sitecrawl crawl docs blog   # sites named in .sitecrawl
//
// See --help for all available options.
package main

func main() {
	Execute()
}
