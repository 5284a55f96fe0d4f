//go:build release

package xassert

// That is a no-op under the release build tag.
func That(info string, fn func() bool) {}
