package judge

import "post-judge/model"

type biasRule struct {
	item  string
	delta int
}

var personaBias = map[model.Persona][]biasRule{
	model.PersonaHiroyuki: {{"originality", 3}, {"empathy", -2}},
	model.PersonaDewi:     {{"expression", 3}, {"humor", 2}},
	model.PersonaNakao:    {{"humor", 3}, {"empathy", 2}},
}

// ApplyBias shifts scores by the persona's fixed deltas, clamped to [0,20].
// Unknown personas get the scores back unchanged.
func ApplyBias(scores model.Scores, persona model.Persona) model.Scores {
	out := scores
	for _, rule := range personaBias[persona] {
		switch rule.item {
		case "empathy":
			out.Empathy = clamp(out.Empathy + rule.delta)
		case "humor":
			out.Humor = clamp(out.Humor + rule.delta)
		case "brevity":
			out.Brevity = clamp(out.Brevity + rule.delta)
		case "originality":
			out.Originality = clamp(out.Originality + rule.delta)
		case "expression":
			out.Expression = clamp(out.Expression + rule.delta)
		}
	}
	return out
}

func clamp(v int) int {
	return max(model.MinItemScore, min(model.MaxItemScore, v))
}
