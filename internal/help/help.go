// Package help answers help-box questions with canned responses.
package help

import "strings"

const DefaultQuery = "How can I detect a sales drop?"

type rule struct {
	keyword string
	answer  string
}

// Rules are checked in order; the first keyword found in the query wins.
var rules = []rule{
	{"drop", "You can detect a sales drop by analyzing trends in the revenue over time chart or using rolling averages to highlight sudden changes."},
	{"forecast", "Forecasts are generated using time series models like Prophet. Check the forecast section for insights."},
	{"download", "You can download the filtered sales data using the 'Download Filtered Data' button below the sales table."},
	{"risk", "Risk alerts indicate potential problems in sales performance. Check the heatmap and the warning section for details."},
}

const fallback = "This is a demo help box. In the future, this can be connected to an AI backend for real-time assistance."

var commonQuestions = []string{
	"How do I forecast sales?",
	"What does the risk alert mean?",
	"How do I export data?",
}

type Answer struct {
	Query   string `json:"query"`
	Answer  string `json:"answer"`
	Matched string `json:"matched,omitempty"`
}

// Ask returns the canned answer for query. An empty query has no answer.
func Ask(query string) (Answer, bool) {
	if strings.TrimSpace(query) == "" {
		return Answer{}, false
	}
	lower := strings.ToLower(query)
	for _, r := range rules {
		if strings.Contains(lower, r.keyword) {
			return Answer{Query: query, Answer: r.answer, Matched: r.keyword}, true
		}
	}
	return Answer{Query: query, Answer: fallback}, true
}

func CommonQuestions() []string {
	return append([]string(nil), commonQuestions...)
}
