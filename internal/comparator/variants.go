package comparator

import (
	"github.com/melody-ding/go-fpscheck/internal/stats"
)

type nonParametric struct{}

func (nonParametric) method() Method { return NonParametric }

func (nonParametric) omnibus(s Series) (stats.Result, error) {
	return stats.Friedman(s.Values)
}

// vsBaseline runs a signed-rank test of the baseline column against every
// other rate and Holm-corrects across those pairs
func (nonParametric) vsBaseline(s Series, alpha float64) ([]PairResult, error) {
	base := len(s.Rates) - 1
	baseCol := s.Column(base)

	pairs := make([]PairResult, 0, base)
	raw := make([]float64, 0, base)
	for j := 0; j < base; j++ {
		p := 1.0
		res, err := stats.Wilcoxon(baseCol, s.Column(j))
		switch {
		case err == nil:
			p = res.P
		case !Undefined(err):
			return nil, err
		}
		raw = append(raw, p)
		pairs = append(pairs, PairResult{FPS: s.Rates[j], PRaw: p})
	}

	adj, reject := stats.Holm(raw, alpha)
	for i := range pairs {
		pairs[i].PAdj = adj[i]
		pairs[i].Reject = reject[i]
	}
	return pairs, nil
}

type parametric struct{}

func (parametric) method() Method { return Parametric }

func (parametric) omnibus(s Series) (stats.Result, error) {
	return stats.RMANOVA(s.Values)
}

// vsBaseline runs Tukey HSD over all rates and keeps the pairs that
// include the baseline
func (parametric) vsBaseline(s Series, alpha float64) ([]PairResult, error) {
	groups := make([][]float64, len(s.Rates))
	for j := range s.Rates {
		groups[j] = s.Column(j)
	}
	all, err := stats.TukeyHSD(groups)
	if err != nil {
		return nil, err
	}

	base := len(s.Rates) - 1
	var pairs []PairResult
	for _, p := range all {
		var other int
		switch base {
		case p.J:
			other = p.I
		case p.I:
			other = p.J
		default:
			continue
		}
		pairs = append(pairs, PairResult{
			FPS:    s.Rates[other],
			PRaw:   p.P,
			PAdj:   p.P,
			Reject: p.P <= alpha,
		})
	}
	return pairs, nil
}
