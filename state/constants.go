package state

import "time"

const (
	// TableSize is the fixed number of networks the routing table can hold, must be a power of two
	TableSize = 64
	TableMask = TableSize - 1

	// Infinity is the internal metric of an expired route
	Infinity = 17
	// AdvertisedInfinity is the metric at and above which a route is unreachable
	AdvertisedInfinity = 16

	// RouteTimeout is how long a route stays in one state before aging moves it on, in time units
	RouteTimeout = 360
	// AgingTimeout is the grace period given to a direct route that is being withdrawn, in time units
	AgingTimeout = 40

	// MaxPorts is the size of the local port table
	MaxPorts = 8
	// MaxRecords is the number of route records that fit in one advertisement
	MaxRecords = 90

	DefaultPort = 5250
)

var (
	// TimeUnit is the length of one routing time unit
	TimeUnit = time.Second

	AgingDelay     = time.Second * 10
	FullTableDelay = time.Second * 30
	RequestDelay   = time.Second * 2
	GcDelay        = time.Second * 1
	ReadBufferSize = 2048
)

// Units converts a number of time units into a duration
func Units(n int) time.Duration {
	return time.Duration(n) * TimeUnit
}
