package crawler

import "eci-results-crawler/internal/models"

type regionState int

const (
	scanning regionState = iota
	stopped
)

type outcome int

const (
	accepted outcome = iota
	rejected
	failed
)

type stopReason int

const (
	notStopped stopReason = iota
	stopInvalid
	stopNavigation
	stopCeiling
)

func (s stopReason) String() string {
	switch s {
	case stopInvalid:
		return "invalid"
	case stopNavigation:
		return "navigation"
	case stopCeiling:
		return "ceiling"
	}
	return "scanning"
}

// region tracks one sweep over a region's constituency numbers. Numbers are
// contiguous from 1; the first probe that is not accepted ends the region.
type region struct {
	kind     models.RegionKind
	code     int
	next     int
	ceiling  int
	accepted int
	state    regionState
	reason   stopReason
}

func newRegion(kind models.RegionKind, code, ceiling int) *region {
	r := &region{kind: kind, code: code, next: 1, ceiling: ceiling}
	if ceiling < 1 {
		r.state, r.reason = stopped, stopCeiling
	}
	return r
}

func (r *region) key() models.RegionKey {
	return models.RegionKey{Kind: r.kind, RegionCode: r.code, ConstituencyNumber: r.next}
}

func (r *region) observe(o outcome) {
	if r.state == stopped {
		return
	}
	switch o {
	case rejected:
		r.state, r.reason = stopped, stopInvalid
	case failed:
		r.state, r.reason = stopped, stopNavigation
	case accepted:
		r.accepted++
		if r.next >= r.ceiling {
			r.state, r.reason = stopped, stopCeiling
			return
		}
		r.next++
	}
}
