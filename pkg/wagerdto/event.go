package wagerdto

// Event is a committed state transition as streamed to observers.
type Event struct {
	Height     uint64            `json:"height"`
	Index      int               `json:"index"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
