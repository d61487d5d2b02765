package consts

// Display names for the pipeline stages, used by the CLI renderer.
var StageNames = map[string]string{
	Research:  "Research",
	Signal:    "Signal",
	Risk:      "Risk",
	Execution: "Execution",
	Finalize:  "Finalize",
}
