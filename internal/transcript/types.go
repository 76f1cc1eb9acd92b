package transcript

// Segment is a single caption line as returned by the transcript service.
// Segments are ordered by start time; no gap or overlap guarantees.
type Segment struct {
	Text     string  `json:"text" bson:"text"`
	Start    float64 `json:"start" bson:"start"`
	Duration float64 `json:"duration" bson:"duration"`
}
