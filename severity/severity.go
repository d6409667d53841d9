// Package severity maps vulnerability scores onto display buckets.
//
// Scores arrive either as a number in [0.0, 10.0] or as a CVSS v3.x vector
// string; vectors are reduced to a base score with the standard two-part
// formula before banding. The package is a collaborator of the query core,
// not part of it: results carry advisory filenames, and consumers enrich
// them with a severity label for display.
package severity

import (
	"math"
	"strconv"
	"strings"
)

// Label is a severity bucket.
type Label string

const (
	None     Label = "None"
	Low      Label = "Low"
	Medium   Label = "Medium"
	High     Label = "High"
	Critical Label = "Critical"
	// Unknown is used for scores outside [0.0, 10.0] and NaN.
	Unknown Label = "Unknown"
)

// Interpret bands a numeric score:
//
//	None = 0.0, Low (0.0, 3.9], Medium [4.0, 6.9], High [7.0, 8.9],
//	Critical [9.0, 10.0]
//
// Anything else, NaN included, is Unknown.
func Interpret(score float64) Label {
	switch {
	case math.IsNaN(score) || score < 0 || score > 10:
		return Unknown
	case score == 0:
		return None
	case score <= 3.9:
		return Low
	case score <= 6.9:
		return Medium
	case score <= 8.9:
		return High
	default:
		return Critical
	}
}

// InterpretString parses a decimal score and bands it. Unparseable input
// yields Unknown.
func InterpretString(score string) Label {
	f, err := strconv.ParseFloat(strings.TrimSpace(score), 64)
	if err != nil {
		return Unknown
	}
	return Interpret(f)
}

// Required CVSS v3.x base metrics. A vector missing any of these yields
// no score rather than a guessed value.
var requiredMetrics = []string{"AV", "AC", "PR", "UI", "S", "C", "I", "A"}

var (
	attackVector = map[string]float64{"N": 0.85, "A": 0.62, "L": 0.55, "P": 0.2}
	attackComplx = map[string]float64{"L": 0.77, "H": 0.44}
	// Privileges Required depends on scope.
	privilegesU = map[string]float64{"N": 0.85, "L": 0.62, "H": 0.27}
	privilegesC = map[string]float64{"N": 0.85, "L": 0.68, "H": 0.5}
	userInteract = map[string]float64{"N": 0.85, "R": 0.62}
	ciaImpact    = map[string]float64{"H": 0.56, "L": 0.22, "N": 0}
)

// VectorScore computes the CVSS v3.x base score for a vector string such as
//
//	CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H
//
// ok is false when the input is not a v3.x vector, a required metric is
// missing, or a metric carries an unknown value. That is a "no score"
// outcome, not an error.
func VectorScore(vector string) (score float64, ok bool) {
	metrics, ok := parseVector(vector)
	if !ok {
		return 0, false
	}

	scopeChanged := metrics["S"] == "C"

	av, ok := attackVector[metrics["AV"]]
	if !ok {
		return 0, false
	}
	ac, ok := attackComplx[metrics["AC"]]
	if !ok {
		return 0, false
	}
	prTable := privilegesU
	if scopeChanged {
		prTable = privilegesC
	}
	pr, ok := prTable[metrics["PR"]]
	if !ok {
		return 0, false
	}
	ui, ok := userInteract[metrics["UI"]]
	if !ok {
		return 0, false
	}
	c, ok := ciaImpact[metrics["C"]]
	if !ok {
		return 0, false
	}
	i, ok := ciaImpact[metrics["I"]]
	if !ok {
		return 0, false
	}
	a, ok := ciaImpact[metrics["A"]]
	if !ok {
		return 0, false
	}

	iss := 1 - (1-c)*(1-i)*(1-a)

	var impact float64
	if scopeChanged {
		impact = 7.52*(iss-0.029) - 3.25*math.Pow(iss-0.02, 15)
	} else {
		impact = 6.42 * iss
	}

	exploitability := 8.22 * av * ac * pr * ui

	if impact <= 0 {
		return 0, true
	}
	if scopeChanged {
		return roundUp(math.Min(1.08*(impact+exploitability), 10)), true
	}
	return roundUp(math.Min(impact+exploitability, 10)), true
}

// InterpretVector bands the base score of a CVSS v3.x vector.
// Vectors that yield no score band as Unknown.
func InterpretVector(vector string) Label {
	score, ok := VectorScore(vector)
	if !ok {
		return Unknown
	}
	return Interpret(score)
}

func parseVector(vector string) (map[string]string, bool) {
	parts := strings.Split(strings.TrimSpace(vector), "/")
	if len(parts) == 0 || !strings.HasPrefix(parts[0], "CVSS:3.") {
		return nil, false
	}

	metrics := make(map[string]string, len(parts)-1)
	for _, part := range parts[1:] {
		name, value, found := strings.Cut(part, ":")
		if !found || name == "" || value == "" {
			return nil, false
		}
		metrics[name] = value
	}

	for _, name := range requiredMetrics {
		if _, present := metrics[name]; !present {
			return nil, false
		}
	}
	return metrics, true
}

// roundUp implements the CVSS v3.1 Roundup: the smallest number with one
// decimal place that is equal to or greater than x, computed on a fixed
// point representation to dodge float artifacts.
func roundUp(x float64) float64 {
	i := int64(math.Round(x * 100000))
	if i%10000 == 0 {
		return float64(i) / 100000
	}
	return (math.Floor(float64(i)/10000) + 1) / 10
}
