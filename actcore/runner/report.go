package runner

import "gopkg.in/yaml.v3"

type episodeSummary struct {
	Scenario    string         `yaml:"scenario"`
	EpisodeID   string         `yaml:"episode_id"`
	Steps       int            `yaml:"steps"`
	Finished    bool           `yaml:"finished"`
	Answer      string         `yaml:"answer,omitempty"`
	Passed      bool           `yaml:"passed"`
	Mismatch    string         `yaml:"mismatch,omitempty"`
	FailedSteps []uint32       `yaml:"failed_steps,flow,omitempty"`
	Failures    map[string]int `yaml:"failures,omitempty"`
	TotalTokens int            `yaml:"total_tokens"`
}

type reportSummary struct {
	Passed       int              `yaml:"passed"`
	Failed       int              `yaml:"failed"`
	StepsFailing []uint32         `yaml:"steps_failing,flow,omitempty"`
	Latency      latencySummary   `yaml:"latency"`
	Episodes     []episodeSummary `yaml:"episodes"`
}

type latencySummary struct {
	Samples int    `yaml:"samples"`
	Mean    string `yaml:"mean"`
	StdDev  string `yaml:"stddev"`
	P95     string `yaml:"p95"`
}

// YAML renders the report for humans and diffing.
func (r *Report) YAML() ([]byte, error) {
	out := reportSummary{
		Passed:       r.Passed,
		Failed:       r.Failed,
		StepsFailing: r.StepsFailing.ToArray(),
		Latency: latencySummary{
			Samples: r.Latency.Samples,
			Mean:    r.Latency.Mean.String(),
			StdDev:  r.Latency.StdDev.String(),
			P95:     r.Latency.P95.String(),
		},
	}
	for _, e := range r.Episodes {
		s := episodeSummary{
			Scenario:    e.Scenario,
			EpisodeID:   e.EpisodeID,
			Steps:       e.Steps,
			Finished:    e.Finished,
			Answer:      e.Answer,
			Passed:      e.Passed,
			Mismatch:    e.Mismatch,
			FailedSteps: e.FailedSteps.ToArray(),
			TotalTokens: e.Usage.TotalTokens,
		}
		if len(e.FailureKind) > 0 {
			s.Failures = make(map[string]int, len(e.FailureKind))
			for k, n := range e.FailureKind {
				s.Failures[string(k)] = n
			}
		}
		out.Episodes = append(out.Episodes, s)
	}
	return yaml.Marshal(out)
}
