// Package mock provides a test double for extract.Extractor with
// injectable behavior and call counting.
package mock
