package pattern

// Table lists results under a heading, one row per test or engine.
type Table struct {
	Title string `json:"title"`
	Rows  []Row  `json:"rows"`
}

// Row is one line of a Table. Count is set on engine rows only.
type Row struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Duration string `json:"duration,omitempty"`
	Count    int    `json:"count,omitempty"`
	Details  string `json:"details,omitempty"`
}

func (*Table) Type() PatternType { return TypeTable }
