// Copyright © NGRSoftlab 2020-2025

package hbaseshell

import "math"

// javaLongMax mirrors Long.MAX_VALUE on the region server
const javaLongMax int64 = math.MaxInt64

// ReverseTimestamp converts an epoch-millisecond timestamp to the
// reversed form used in descending row keys, and back. The mapping is
// its own inverse
func ReverseTimestamp(ts int64) int64 {
	return javaLongMax - ts
}
