package pendant

import "cncmotion/core"

// Position is one set of axis coordinates in steps
type Position struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

// StatusPayload is the JSON form of core.Status
type StatusPayload struct {
	Fault     uint8    `json:"fault"`
	FaultName string   `json:"fault_name"`
	Message   string   `json:"message"`
	Armed     bool     `json:"armed"`
	Homing    string   `json:"homing"`
	Homed     bool     `json:"homed"`
	Positions Position `json:"positions"`
	Active    []string `json:"active"`
	Rate      uint32   `json:"rate"`
	Pulses    uint32   `json:"pulses"`
	Error     string   `json:"error,omitempty"`
}

// NewStatusPayload converts a status snapshot
func NewStatusPayload(st core.Status) StatusPayload {
	p := StatusPayload{
		Fault:     uint8(st.Fault),
		FaultName: st.Fault.String(),
		Message:   st.Message,
		Armed:     st.Armed,
		Homing:    st.Homing.String(),
		Homed:     st.Homed,
		Positions: Position{X: st.Positions.X, Y: st.Positions.Y, Z: st.Positions.Z},
		Active:    []string{},
		Rate:      st.Rate,
		Pulses:    st.Pulses,
	}
	for a := core.AxisID(0); a < core.NumAxes; a++ {
		if st.Active[a] {
			p.Active = append(p.Active, a.String())
		}
	}
	return p
}
