package ir

// Dispatch kinds recorded in the journal.
const (
	KindCall     = "call"
	KindNext     = "next"
	KindOverride = "override"
	KindSpecific = "specific"
)

// OutcomeOK marks a frame that returned normally. Failed frames record
// their error code instead.
const OutcomeOK = "ok"

// DispatchRecord is one journal entry: a single dispatch frame, written
// when the frame exits. Seq is taken when the frame is entered, so
// ordering by seq reproduces call order.
type DispatchRecord struct {
	ID       string  `json:"id"` // Content-addressed, see CallID
	Token    string  `json:"token"`
	ParentID string  `json:"parent_id,omitempty"`
	Kind     string  `json:"kind"`
	Generic  string  `json:"generic"`
	Args     IRArray `json:"args"`
	MethodID int     `json:"method_id"` // 0 when no method was selected
	Outcome  string  `json:"outcome"`
	Result   string  `json:"result,omitempty"` // Printed form of the return value
	Seq      int64   `json:"seq"`
	Depth    int     `json:"depth"`
}
