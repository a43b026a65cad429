package ai

// InsightTypes defines the valid categories for generated insights.
// These types are used by insight generators to classify findings.
var InsightTypes = []string{
	"action_item",
	"blocker",
	"decision",
	"milestone",
	"risk",
}

// Priorities defines the valid urgency buckets, most urgent first.
var Priorities = []string{
	"critical",
	"high",
	"medium",
	"low",
}

// ValidInsightType reports whether t is a known insight type.
func ValidInsightType(t string) bool {
	for _, known := range InsightTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p string) bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}
