package crnn

import "strings"

// DecodeCTC performs greedy CTC decoding over a [steps][classes] score
// matrix. Class 0 is the blank; repeated classes collapse unless separated
// by a blank. Classes beyond the alphabet are ignored.
func DecodeCTC(scores []float32, steps, classes int, alphabet []rune) string {
	if steps <= 0 || classes <= 1 || len(scores) < steps*classes {
		return ""
	}

	var b strings.Builder
	prev := 0
	for t := 0; t < steps; t++ {
		row := scores[t*classes : (t+1)*classes]
		best := 0
		for c := 1; c < classes; c++ {
			if row[c] > row[best] {
				best = c
			}
		}
		if best != 0 && best != prev && best-1 < len(alphabet) {
			b.WriteRune(alphabet[best-1])
		}
		prev = best
	}
	return b.String()
}
