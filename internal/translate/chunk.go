package translate

// Chunk is a run of segments to translate plus surrounding context.
type Chunk struct {
	Index  int
	Target []Segment
	Before []Segment
	After  []Segment
}

// SplitIntoChunks groups the segments at positions targets (indexes into all,
// ascending) into chunks of chunkSize. Context comes from all, up to
// contextSize segments on each side of a chunk.
func SplitIntoChunks(all []Segment, targets []int, chunkSize, contextSize int) []Chunk {
	var chunks []Chunk
	for i := 0; i < len(targets); i += chunkSize {
		end := min(i+chunkSize, len(targets))
		pos := targets[i:end]

		target := make([]Segment, len(pos))
		for j, p := range pos {
			target[j] = all[p]
		}
		first, last := pos[0], pos[len(pos)-1]
		before := all[max(0, first-contextSize):first]
		after := all[last+1 : min(len(all), last+1+contextSize)]

		chunks = append(chunks, Chunk{
			Index:  len(chunks),
			Target: target,
			Before: before,
			After:  after,
		})
	}
	return chunks
}
