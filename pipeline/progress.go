package pipeline

// Stage identifies a coarse progress checkpoint of an analysis run
type Stage int

const (
	StageDownloading Stage = iota
	StageExtracting
	StageClassifying
	StageEstimating
	StageComplete
)

var stageNames = []string{"downloading", "extracting", "classifying", "estimating", "complete"}

// String returns the wire name of the stage
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Progress is the fraction of the run associated with reaching each stage
func (s Stage) Progress() float64 {
	switch s {
	case StageDownloading:
		return 0.1
	case StageExtracting:
		return 0.4
	case StageClassifying:
		return 0.7
	case StageEstimating:
		return 0.9
	case StageComplete:
		return 1.0
	}
	return 0
}

// ProgressFunc receives stage checkpoints as the run advances. Called
// synchronously from the analysis goroutine; implementations must not block.
type ProgressFunc func(stage Stage, message string)
