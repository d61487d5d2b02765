package consts

// Pipeline graph node names. Stage order is fixed: research feeds
// signal, signal feeds risk, execution only runs on approval.
const (
	Research  = "research"
	Signal    = "signal"
	Risk      = "risk"
	Execution = "execution"
	Finalize  = "finalize"
)
