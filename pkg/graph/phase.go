package graph

// Phase tracks how far a container has progressed through its read
// lifecycle. Writes are stateless and carry no phase.
type Phase int

const (
	Unopened Phase = iota
	EnvelopeRead
	TableRead
	BodiesDecoding
	ReferencesPending
	Resolved
)

func (p Phase) String() string {
	switch p {
	case Unopened:
		return "unopened"
	case EnvelopeRead:
		return "envelope read"
	case TableRead:
		return "table read"
	case BodiesDecoding:
		return "bodies decoding"
	case ReferencesPending:
		return "references pending"
	case Resolved:
		return "resolved"
	}
	return "unknown"
}
