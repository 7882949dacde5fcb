//go:build !unix && !windows

package rules

func osRelease() string { return "" }
