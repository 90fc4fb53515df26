package common

// Component names used to tag log output.
const (
	ComponentSigMap  = "sig-map"
	ComponentFetcher = "log-fetcher"
	ComponentMetrics = "metrics"
)
