// Package signal provides the signal propagation model: beacons that broadcast
// a scalar over a reach predicate, ports that carry values between parts, and
// the sensors and effectors mounted on agent bodies.
package signal

import (
	"errors"
	"fmt"
)

var (
	// ErrKindMismatch is returned when wiring ports of different kinds.
	ErrKindMismatch = errors.New("port kinds differ")
	// ErrAlreadyConnected is returned when a destination already has a source.
	ErrAlreadyConnected = errors.New("destination port already has a source")
	// ErrSelfConnect is returned when a port is wired to itself.
	ErrSelfConnect = errors.New("port cannot connect to itself")
)

// PortKind types the scalar a port carries.
type PortKind string

const (
	KindIntensity PortKind = "intensity"
	KindDirection PortKind = "direction" // radians, 0 = east, counter-clockwise
	KindForce     PortKind = "force"
)

// Port is a named scalar slot. A port may feed any number of destinations,
// but each destination has at most one source.
type Port struct {
	Name string
	Kind PortKind

	value   float64
	source  *Port
	targets []*Port
}

// NewPort creates an unconnected port.
func NewPort(name string, kind PortKind) *Port {
	return &Port{Name: name, Kind: kind}
}

// Value returns the last value written to or received by the port.
func (p *Port) Value() float64 { return p.value }

// Set stores v and copies it to every connected destination.
func (p *Port) Set(v float64) {
	p.value = v
	for _, t := range p.targets {
		t.Set(v)
	}
}

// ConnectTo wires p to dst. Connecting the same pair twice is a no-op.
func (p *Port) ConnectTo(dst *Port) error {
	if p == dst {
		return fmt.Errorf("%w: %s", ErrSelfConnect, p.Name)
	}
	if p.Kind != dst.Kind {
		return fmt.Errorf("%w: %s(%s) -> %s(%s)", ErrKindMismatch, p.Name, p.Kind, dst.Name, dst.Kind)
	}
	if dst.source == p {
		return nil
	}
	if dst.source != nil {
		return fmt.Errorf("%w: %s fed by %s", ErrAlreadyConnected, dst.Name, dst.source.Name)
	}
	dst.source = p
	p.targets = append(p.targets, dst)
	dst.value = p.value
	return nil
}

// Disconnect removes the wire from p to dst, if any.
func (p *Port) Disconnect(dst *Port) {
	for i, t := range p.targets {
		if t == dst {
			p.targets = append(p.targets[:i], p.targets[i+1:]...)
			dst.source = nil
			return
		}
	}
}

// Source returns the port feeding p, or nil.
func (p *Port) Source() *Port { return p.source }

// Targets returns the ports p feeds.
func (p *Port) Targets() []*Port {
	out := make([]*Port, len(p.targets))
	copy(out, p.targets)
	return out
}

// ConnectByKind wires every output to the first input of the same kind that
// has no source yet. It returns an error if an output finds no free input.
func ConnectByKind(outputs, inputs []*Port) error {
	for _, out := range outputs {
		wired := false
		for _, in := range inputs {
			if in.Kind != out.Kind || (in.source != nil && in.source != out) {
				continue
			}
			if err := out.ConnectTo(in); err != nil {
				return err
			}
			wired = true
			break
		}
		if !wired {
			return fmt.Errorf("no free %s input for %s", out.Kind, out.Name)
		}
	}
	return nil
}
