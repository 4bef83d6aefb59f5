package core

// Fault/status reporting

var faultMessages = [numFaultCodes]string{
	FaultNone:         "OK",
	FaultNoInit:       "NO INITIALIZATION",
	FaultEstopTripped: "EMERGENCY STOP",
	FaultSpindle:      "SPINDLE ERROR",
	FaultLimitX:       "X out of LIMIT",
	FaultLimitY:       "Y out of LIMIT",
	FaultLimitZ:       "Z out of LIMIT",
	FaultSdError:      "SD card FAILED..",
	FaultFileError:    "file ERROR",
}

// Message returns the display text for a fault code
func Message(f FaultCode) string {
	if f.Valid() {
		return faultMessages[f]
	}
	return "UNKNOWN FAULT"
}

// Display is the character display collaborator
type Display interface {
	ShowFault(code FaultCode, msg string)
	ShowMenu(items []string, cursor int)
	ShowPosition(pos HomeCoordinates)
}

// Reporter forwards fault changes to a Display
type Reporter struct {
	display Display
	last    FaultCode
	shown   bool
}

// NewReporter creates a reporter. display may be nil.
func NewReporter(display Display) *Reporter {
	return &Reporter{display: display}
}

// Report shows f if it differs from the last reported fault and returns
// whether the display was updated
func (r *Reporter) Report(f FaultCode) bool {
	if r.shown && f == r.last {
		return false
	}
	r.last = f
	r.shown = true
	if r.display != nil {
		r.display.ShowFault(f, Message(f))
	}
	return true
}

// Last returns the last reported fault
func (r *Reporter) Last() FaultCode {
	return r.last
}

// Invalidate forces the next Report to reach the display
func (r *Reporter) Invalidate() {
	r.shown = false
}
