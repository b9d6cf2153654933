package query

// AggregateOp is one of the supported aggregate functions.
type AggregateOp uint8

const (
	AggCount AggregateOp = iota + 1
	AggCountDistinct
	AggSum
	AggAvg
	AggMin
	AggMax
	AggMedian
	AggVariance
	AggStddev
	AggDistinct
	AggRand
	AggSample
)

var aggregateNames = map[string]AggregateOp{
	"count":          AggCount,
	"count-distinct": AggCountDistinct,
	"sum":            AggSum,
	"avg":            AggAvg,
	"min":            AggMin,
	"max":            AggMax,
	"median":         AggMedian,
	"variance":       AggVariance,
	"stddev":         AggStddev,
	"distinct":       AggDistinct,
	"rand":           AggRand,
	"sample":         AggSample,
}

// ParseAggregateOp looks up an aggregate by name.
func ParseAggregateOp(name string) (AggregateOp, bool) {
	op, ok := aggregateNames[name]
	return op, ok
}

func (op AggregateOp) String() string {
	for name, o := range aggregateNames {
		if o == op {
			return name
		}
	}
	return "unknown"
}

// TakesCount reports whether the op takes a leading count argument,
// as in (sample 5 ?x).
func (op AggregateOp) TakesCount() bool {
	return op == AggRand || op == AggSample
}

// IsExtremum reports whether the op is min or max.
func (op AggregateOp) IsExtremum() bool {
	return op == AggMin || op == AggMax
}

// ProducesCollection reports whether the op yields a vector.
func (op AggregateOp) ProducesCollection() bool {
	return op == AggDistinct || op == AggRand || op == AggSample
}
