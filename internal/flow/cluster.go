package flow

import (
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/floats"
)

// Endpoint selects which end of a route is aggregated.
type Endpoint int

const (
	OriginEnd Endpoint = iota
	DestinationEnd
)

func (e Endpoint) String() string {
	if e == DestinationEnd {
		return "destination"
	}
	return "origin"
}

func (e Endpoint) point(r RouteRecord) orb.Point {
	if e == DestinationEnd {
		return r.DestPoint()
	}
	return r.OriginPoint()
}

func (e Endpoint) size(r RouteRecord) float64 {
	if e == DestinationEnd {
		return r.DestSize
	}
	return r.OriginSize
}

func (e Endpoint) role() Role {
	if e == DestinationEnd {
		return RoleDestination
	}
	return RoleOrigin
}

// RadiusScale maps cluster counts to bubble radii with a square-root scale,
// so bubble area grows linearly with the count.
type RadiusScale struct {
	Min float64
	Max float64
}

// Radius returns the radius for a cluster of count members when the largest
// cluster has maxCount members.
func (s RadiusScale) Radius(count, maxCount int) float64 {
	if maxCount < 1 {
		maxCount = 1
	}
	return s.Min + math.Sqrt(float64(count)/float64(maxCount))*(s.Max-s.Min)
}

// EndpointCluster groups the records sharing one exact endpoint coordinate.
type EndpointCluster struct {
	Point   orb.Point     `json:"point" doc:"Location as [lng, lat]"`
	Members []int         `json:"members" doc:"Indices into the composition's routes"`
	Count   int           `json:"count" doc:"Number of routes at this location"`
	Radius  float64       `json:"radius" doc:"Bubble radius"`
	Color   string        `json:"color" doc:"Representative bubble color"`
	Opacity float64       `json:"opacity" doc:"Bubble opacity"`
	Tooltip []TooltipItem `json:"tooltip,omitempty" doc:"Tooltip of the representative route"`
}

// Clusters is the result of one aggregation, in first-seen order.
type Clusters struct {
	Endpoint Endpoint
	MaxCount int
	List     []*EndpointCluster
	byPoint  map[orb.Point]*EndpointCluster
}

// At returns the cluster at p, or nil.
func (c *Clusters) At(p orb.Point) *EndpointCluster {
	if c == nil {
		return nil
	}
	return c.byPoint[p]
}

// Aggregate groups records by the exact coordinate of the chosen endpoint and
// sizes each group with scale. When records carry a size metric for that
// endpoint, a cluster's radius is further multiplied by 0.5 + 1.5*norm, where
// norm is the min-max normalized metric of the cluster's first member that
// carries one.
func Aggregate(records []RouteRecord, end Endpoint, scale RadiusScale) *Clusters {
	c := &Clusters{
		Endpoint: end,
		MaxCount: 1,
		byPoint:  make(map[orb.Point]*EndpointCluster),
	}

	var metrics []float64
	for i, r := range records {
		p := end.point(r)
		cl, ok := c.byPoint[p]
		if !ok {
			cl = &EndpointCluster{Point: p}
			c.byPoint[p] = cl
			c.List = append(c.List, cl)
		}
		cl.Members = append(cl.Members, i)
		cl.Count++
		if cl.Count > c.MaxCount {
			c.MaxCount = cl.Count
		}
		if m := end.size(r); isFinite(m) {
			metrics = append(metrics, m)
		}
	}

	var lo, span float64
	if len(metrics) > 0 {
		lo = floats.Min(metrics)
		span = math.Max(floats.Max(metrics)-lo, 1e-6)
	}

	for _, cl := range c.List {
		cl.Radius = scale.Radius(cl.Count, c.MaxCount)
		if len(metrics) == 0 {
			continue
		}
		for _, m := range cl.Members {
			if v := end.size(records[m]); isFinite(v) {
				norm := clamp01((v - lo) / span)
				cl.Radius *= 0.5 + norm*1.5
				break
			}
		}
	}
	return c
}

// EndpointMembers returns the indices of every record that starts or ends
// exactly at p.
func EndpointMembers(records []RouteRecord, p orb.Point) []int {
	var out []int
	for i, r := range records {
		if r.OriginPoint() == p || r.DestPoint() == p {
			out = append(out, i)
		}
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
