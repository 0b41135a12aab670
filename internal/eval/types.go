package eval

// #region config
// Config holds bounds for post-ingest consistency checks.
type Config struct {
	WindowCapacity int // fail if any activity ring holds more entries than this
	MaxActivities  int // fail if the window tracks more activities than this
	Confirmations  int // a live candidate must sit strictly below this count
}

// DefaultConfig mirrors the tracker defaults.
func DefaultConfig() Config {
	return Config{
		WindowCapacity: 16,
		MaxActivities:  8,
		Confirmations:  2,
	}
}

// #endregion config

// #region check
// Check captures a single consistency check result.
type Check struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion check

// #region result
// Result is the output of a consistency run.
type Result struct {
	Passed bool
	Checks []Check
	Reason string
}

// #endregion result
