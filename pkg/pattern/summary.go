package pattern

// Subject tells renderers what a summary describes.
type Subject string

const (
	SubjectResults Subject = "test" // an executed plan
	SubjectPlan    Subject = "plan" // a discovered plan, not run
)

// Summary is the headline of a report.
type Summary struct {
	Label   string   `json:"label"`
	Subject Subject  `json:"subject"`
	Metrics []Metric `json:"metrics,omitempty"`
}

// Metric is one labelled figure of a Summary, such as "Failed: 1/3 tests".
type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Tone  Tone   `json:"tone"`
}

func (*Summary) Type() PatternType { return TypeSummary }
