package scan

import (
	"regexp"
	"slices"
)

// Unlimited disables depth truncation.
const Unlimited = -1

// ScanOptions configures the crawl. It is a value type: the With* methods
// return modified copies, and a Crawler keeps its own copy.
type ScanOptions struct {
	// Workers is the number of concurrent classification goroutines.
	Workers int

	// MaxDepth is the depth at which directories are classified but not
	// listed. Unlimited (-1) never truncates.
	MaxDepth int

	// LogDepth is the deepest level reported to the progress reporter.
	LogDepth int

	// ExcludePatterns are regular expressions for paths to skip.
	ExcludePatterns []*regexp.Regexp
}

// DefaultOptions returns the defaults of the find command.
func DefaultOptions() ScanOptions {
	return ScanOptions{
		Workers:  1,
		MaxDepth: Unlimited,
		LogDepth: 2,
	}
}

// WithWorkers sets the pool size. Values below 1 mean 1.
func (o ScanOptions) WithWorkers(n int) ScanOptions {
	if n < 1 {
		n = 1
	}
	o.Workers = n
	return o
}

// WithMaxDepth sets the truncation depth.
func (o ScanOptions) WithMaxDepth(depth int) ScanOptions {
	if depth < 0 {
		depth = Unlimited
	}
	o.MaxDepth = depth
	return o
}

// WithLogDepth sets the deepest level reported as progress.
func (o ScanOptions) WithLogDepth(depth int) ScanOptions {
	o.LogDepth = depth
	return o
}

// WithExcludePattern returns a copy that also skips paths matching pattern.
func (o ScanOptions) WithExcludePattern(pattern string) (ScanOptions, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return o, err
	}
	o.ExcludePatterns = append(slices.Clip(o.ExcludePatterns), re)
	return o, nil
}

// ShouldExclude checks if a path matches any exclude pattern.
func (o ScanOptions) ShouldExclude(path string) bool {
	for _, re := range o.ExcludePatterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// truncates reports whether a directory at depth is left unlisted.
func (o ScanOptions) truncates(depth int) bool {
	return o.MaxDepth != Unlimited && depth == o.MaxDepth
}
