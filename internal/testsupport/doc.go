// Package testsupport holds helpers shared by package tests: temp-dir backed
// configs, stub binaries on PATH, and an opened history store.
package testsupport
