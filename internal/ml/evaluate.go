package ml

import (
	"math"
	"sort"
)

// Metrics is the evaluation snapshot persisted inside each bundle.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1_score"`
	ROCAUC    float64 `json:"roc_auc"`
}

// Evaluate computes accuracy, precision, recall, F1 and ROC-AUC on a
// held-out split. A classifier without probability output degrades
// ROC-AUC to 0 rather than failing.
func Evaluate(c Classifier, X [][]float64, y []int) (Metrics, error) {
	var m Metrics
	if len(X) == 0 {
		return m, nil
	}

	var tp, fp, tn, fn float64
	for i, row := range X {
		pred, err := c.Predict(row)
		if err != nil {
			return m, err
		}
		switch {
		case pred == 1 && y[i] == 1:
			tp++
		case pred == 1 && y[i] == 0:
			fp++
		case pred == 0 && y[i] == 0:
			tn++
		default:
			fn++
		}
	}

	total := tp + fp + tn + fn
	m.Accuracy = round4((tp + tn) / total)
	if tp+fp > 0 {
		m.Precision = round4(tp / (tp + fp))
	}
	if tp+fn > 0 {
		m.Recall = round4(tp / (tp + fn))
	}
	if m.Precision+m.Recall > 0 {
		m.F1Score = round4(2 * m.Precision * m.Recall / (m.Precision + m.Recall))
	}

	if pc, ok := c.(ProbabilityClassifier); ok {
		scores := make([]float64, len(X))
		failed := false
		for i, row := range X {
			p, err := pc.PredictProba(row)
			if err != nil {
				failed = true
				break
			}
			scores[i] = p
		}
		if !failed {
			m.ROCAUC = round4(rocAUC(scores, y))
		}
	}

	return m, nil
}

// rocAUC computes the area under the ROC curve via the rank-sum
// (Mann-Whitney U) formulation, averaging ranks across ties.
func rocAUC(scores []float64, y []int) float64 {
	n := len(scores)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && scores[idx[j]] == scores[idx[i]] {
			j++
		}
		avgRank := float64(i+j+1) / 2 // 1-based ranks i+1..j averaged
		for k := i; k < j; k++ {
			ranks[idx[k]] = avgRank
		}
		i = j
	}

	var nPos, nNeg, posRankSum float64
	for i, label := range y {
		if label == 1 {
			nPos++
			posRankSum += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0
	}
	return (posRankSum - nPos*(nPos+1)/2) / (nPos * nNeg)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
