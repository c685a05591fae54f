// Package util holds small generic helpers shared across packages.
package util

import "golang.org/x/exp/constraints"

func Abs[A constraints.Signed](v A) A {
	if v < 0 {
		return -v
	}
	return v
}

func Clamp[A constraints.Ordered](v, lo, hi A) A {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Min[A constraints.Ordered](a, b A) A {
	if a < b {
		return a
	}
	return b
}

func Max[A constraints.Ordered](a, b A) A {
	if a > b {
		return a
	}
	return b
}
