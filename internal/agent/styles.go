package agent

// Cognitive styles. A style is a prompt-framing stance prepended to the
// agent's system prompt; the coordinator fans an agent out across a style
// set and merges the variants.
const (
	StyleBalanced   = "balanced"
	StyleIntuitive  = "intuitive"
	StyleTechnical  = "technical"
	StyleCreative   = "creative"
	StyleSystematic = "systematic"
)

// AllStyles is the dream-team quaternion.
var AllStyles = []string{StyleIntuitive, StyleTechnical, StyleCreative, StyleSystematic}

var stylePrefixes = map[string]string{
	StyleBalanced: "Take a balanced analytical stance: weigh likelihood and impact evenly, " +
		"cover the common cases thoroughly before the exotic ones.",
	StyleIntuitive: "Take an intuitive stance: reason from experience and pattern recognition, " +
		"surface what feels wrong about this system even before you can fully justify it.",
	StyleTechnical: "Take a technical stance: reason rigorously from the system's structure and " +
		"data flows, be precise about which element is affected and under what conditions.",
	StyleCreative: "Take a creative stance: consider unusual combinations of circumstances, " +
		"second-order effects, and scenarios the obvious analysis would miss.",
	StyleSystematic: "Take a systematic stance: enumerate exhaustively category by category, " +
		"making sure no class of concern is skipped, even the mundane ones.",
}

// StylePrefix returns the stance instruction for a style. Unknown styles get
// the balanced stance.
func StylePrefix(style string) string {
	if p, ok := stylePrefixes[style]; ok {
		return p
	}
	return stylePrefixes[StyleBalanced]
}
