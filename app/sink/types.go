package sink

// Event is one flattened feed entry tagged for the downstream indexer.
// Source carries the feed name; Host is omitted from the wire form when
// empty.
type Event struct {
	Index      string         `json:"index"`
	Source     string         `json:"source"`
	Sourcetype string         `json:"sourcetype"`
	Host       string         `json:"host,omitempty"`
	Fields     map[string]any `json:"event"`
}
