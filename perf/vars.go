package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency      = metric.NewHistogram("1m1s")
	DirectHits           = metric.NewCounter("10s1s")
	NextHopLookups       = metric.NewCounter("10s1s")
	RouteUpdates         = metric.NewCounter("10s1s")
	RejectedUpdates      = metric.NewCounter("10s1s")
	SentAdvertisements   = metric.NewCounter("10s1s")
	RecvAdvertisements   = metric.NewCounter("10s1s")
	DroppedDatagrams     = metric.NewCounter("10s1s")
	NameRegistrations    = metric.NewCounter("10s1s")
	DroppedTraceEvents   = metric.NewCounter("10s1s")
	AdvertisementRecords = metric.NewHistogram("10s1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("ddsroute:DispatchLatency (µs)", DispatchLatency)
	expvar.Publish("ddsroute:DirectHits/s", DirectHits)
	expvar.Publish("ddsroute:NextHopLookups/s", NextHopLookups)
	expvar.Publish("ddsroute:RouteUpdates/s", RouteUpdates)
	expvar.Publish("ddsroute:RejectedUpdates/s", RejectedUpdates)
	expvar.Publish("ddsroute:SentAdvertisements/s", SentAdvertisements)
	expvar.Publish("ddsroute:RecvAdvertisements/s", RecvAdvertisements)
	expvar.Publish("ddsroute:DroppedDatagrams/s", DroppedDatagrams)
	expvar.Publish("ddsroute:NameRegistrations/s", NameRegistrations)
	expvar.Publish("ddsroute:DroppedTraceEvents/s", DroppedTraceEvents)
	expvar.Publish("ddsroute:AdvertisementRecords", AdvertisementRecords)
}
