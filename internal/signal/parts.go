package signal

// Environment is what a sensor can observe.
type Environment interface {
	Beacons() []Beacon
}

// Mount is where a part sits on a body sub-grid.
type Mount struct {
	Col, Row     int
	BodyW, BodyH int
}

// Side returns -1 for the left half of the body, +1 for the right half and 0
// on the center column.
func (m Mount) Side() float64 {
	center := float64(m.BodyW-1) / 2
	switch c := float64(m.Col); {
	case c < center:
		return -1
	case c > center:
		return 1
	default:
		return 0
	}
}

// Offset returns the mount position relative to the body center, with row 0
// at the front.
func (m Mount) Offset() Point {
	return Point{
		X: float64(m.Col) - float64(m.BodyW-1)/2,
		Y: float64(m.Row) - float64(m.BodyH-1)/2,
	}
}

// Sensor reads the environment at a point and writes its output ports.
type Sensor interface {
	Sense(env Environment, at Point)
	Outputs() []*Port
}

// Drive receives motive force from effectors.
type Drive interface {
	Push(side, force float64)
}

// Effector turns the values on its input ports into an effect on a drive.
type Effector interface {
	Inputs() []*Port
	Actuate(d Drive, m Mount)
}

// MaxSignalSensor reports the strongest reaching beacon on one layer.
type MaxSignalSensor struct {
	LayerName string

	intensity *Port
	direction *Port

	fixedDirection *float64
}

// NewMaxSignalSensor creates a sensor listening on layer.
func NewMaxSignalSensor(layer string) *MaxSignalSensor {
	return &MaxSignalSensor{
		LayerName: layer,
		intensity: NewPort(layer+".intensity", KindIntensity),
		direction: NewPort(layer+".direction", KindDirection),
	}
}

// WithFixedDirection makes the sensor always report dir on its direction port,
// for sensors whose bearing is defined by where they sit on the body.
func (s *MaxSignalSensor) WithFixedDirection(dir float64) *MaxSignalSensor {
	s.fixedDirection = &dir
	return s
}

// Intensity returns the intensity output port.
func (s *MaxSignalSensor) Intensity() *Port { return s.intensity }

// Direction returns the direction output port.
func (s *MaxSignalSensor) Direction() *Port { return s.direction }

// Outputs returns the intensity and direction ports.
func (s *MaxSignalSensor) Outputs() []*Port { return []*Port{s.intensity, s.direction} }

// Sense selects the strongest reaching beacon and writes its intensity and
// direction. With nothing in reach it writes intensity 0 and direction 0
// (or the fixed direction).
func (s *MaxSignalSensor) Sense(env Environment, at Point) {
	b, v, ok := Strongest(env.Beacons(), s.LayerName, at)
	dir := 0.0
	if ok {
		dir = at.DirectionTo(b.Position())
	} else {
		v = 0
	}
	if s.fixedDirection != nil {
		dir = *s.fixedDirection
	}
	s.intensity.Set(v)
	s.direction.Set(dir)
}

// ConnectTo wires the sensor outputs to the effector inputs of matching kind.
func (s *MaxSignalSensor) ConnectTo(e Effector) error {
	return ConnectByKind(s.Outputs(), e.Inputs())
}

// BasicEffector only holds what its inputs last received.
type BasicEffector struct {
	intensity *Port
	direction *Port
}

// NewEffector creates an effector with intensity and direction inputs.
func NewEffector(name string) *BasicEffector {
	return &BasicEffector{
		intensity: NewPort(name+".intensity", KindIntensity),
		direction: NewPort(name+".direction", KindDirection),
	}
}

func (e *BasicEffector) Intensity() *Port    { return e.intensity }
func (e *BasicEffector) Direction() *Port    { return e.direction }
func (e *BasicEffector) Inputs() []*Port     { return []*Port{e.intensity, e.direction} }
func (e *BasicEffector) Actuate(Drive, Mount) {}

// ForceEffector pushes Gain×intensity on the side of the body it is mounted on.
type ForceEffector struct {
	*BasicEffector
	Gain float64
}

// NewForceEffector creates a force effector with unit gain.
func NewForceEffector(name string) *ForceEffector {
	return &ForceEffector{BasicEffector: NewEffector(name), Gain: 1}
}

// Actuate pushes the force onto d.
func (e *ForceEffector) Actuate(d Drive, m Mount) {
	if f := e.intensity.Value() * e.Gain; f != 0 {
		d.Push(m.Side(), f)
	}
}
