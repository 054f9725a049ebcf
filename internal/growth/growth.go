// Package growth decides how large the next cluster of a chain should be.
//
// Larger clusters mean shorter chains to walk; smaller clusters waste less
// trailing space on small blobs. Both strategies work on on-disk totals
// (payload plus the 12-byte header) so every cluster stays a multiple of the
// minimum cluster size, and both cap at format.MaxClusterSize.
package growth

import (
	"fmt"
	"strings"

	"github.com/hupe1980/clusterfs/internal/format"
)

// Strategy selects a growth curve.
type Strategy uint8

const (
	// Quadratic adds one minimum cluster per hop: next = min + previous.
	Quadratic Strategy = iota
	// Exponential repeats the previous total: next = previous, so the
	// capacity of a chain doubles every hop.
	Exponential
)

func (s Strategy) String() string {
	switch s {
	case Quadratic:
		return "quadratic"
	case Exponential:
		return "exponential"
	}
	return fmt.Sprintf("Strategy(%d)", uint8(s))
}

// ParseStrategy parses the output of Strategy.String.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(name) {
	case "quadratic", "":
		return Quadratic, nil
	case "exponential":
		return Exponential, nil
	}
	return Quadratic, fmt.Errorf("unknown growth strategy %q", name)
}

// Policy computes cluster sizes for one container.
type Policy struct {
	Strategy       Strategy
	MinClusterSize int
}

// New returns a policy for the given minimum cluster size.
func New(s Strategy, minClusterSize int) Policy {
	return Policy{Strategy: s, MinClusterSize: minClusterSize}
}

// Max is the largest total a cluster may reach.
func (p Policy) Max() int {
	return format.MaxClusterSize(p.MinClusterSize)
}

// Next returns the total on-disk size of the cluster that follows one whose
// total is prevTotal.
func (p Policy) Next(prevTotal int) int {
	var next int
	switch p.Strategy {
	case Exponential:
		next = prevTotal
	default:
		next = p.MinClusterSize + prevTotal
	}
	if next < p.MinClusterSize {
		next = p.MinClusterSize
	}
	return min(next, p.Max())
}

// Extension returns how many bytes a tail cluster of total prevTotal grows
// by when it is extended in place, or 0 when it is already at the cap.
// Extension keeps the total a multiple of the minimum cluster size.
func (p Policy) Extension(prevTotal int) int {
	grow := p.Next(prevTotal)
	if prevTotal+grow > p.Max() {
		grow = p.Max() - prevTotal
	}
	if grow < 0 {
		return 0
	}
	return grow - grow%p.MinClusterSize
}
