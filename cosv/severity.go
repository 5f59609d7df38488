package cosv

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cosv-horizon/cosv-backend/model"
	"github.com/cosv-horizon/cosv-backend/util"
)

var scoreNumPattern = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

// AggregateSeverity reduces a record's severity entries to the maximum numeric
// score. Per entry the structured score_num wins; a CVSS vector score is
// computed from the vector; otherwise the first float-looking token of the
// free-text score is used. Entries yielding no number are ignored. Returns nil
// when no entry yields a number.
func AggregateSeverity(entries []model.SeverityItem) *float64 {
	var max *float64
	for _, entry := range entries {
		n := severityNum(entry)
		if n == nil {
			continue
		}
		if max == nil || *n > *max {
			max = n
		}
	}
	return max
}

func severityNum(entry model.SeverityItem) *float64 {
	if entry.ScoreNum != nil {
		v := *entry.ScoreNum
		return &v
	}
	score := strings.TrimSpace(entry.Score)
	if score == "" {
		return nil
	}
	if strings.HasPrefix(score, "CVSS:") {
		if base := util.CalculateCVSSScore(score); base > 0 {
			return &base
		}
		return nil
	}
	if token := scoreNumPattern.FindString(score); token != "" {
		if v, err := strconv.ParseFloat(token, 64); err == nil {
			return &v
		}
	}
	return nil
}
