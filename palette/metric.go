package palette

import (
	"fmt"
	"sort"
	"strings"
)

// Metric returns the distance between two colors. It must be deterministic
// and defined for every pair of colors; zero means identical.
type Metric func(a, b Color) uint32

func sqDiff(x, y uint8) uint32 {
	d := int32(x) - int32(y)
	return uint32(d * d)
}

// SquaredEuclidean is the sum of squared per-channel differences.
func SquaredEuclidean(a, b Color) uint32 {
	return sqDiff(a.R, b.R) + sqDiff(a.G, b.G) + sqDiff(a.B, b.B)
}

// WeightedEuclidean weights the squared channel differences 2:4:3 to
// roughly follow the eye's sensitivity to green.
func WeightedEuclidean(a, b Color) uint32 {
	return 2*sqDiff(a.R, b.R) + 4*sqDiff(a.G, b.G) + 3*sqDiff(a.B, b.B)
}

var metrics = map[string]Metric{
	"euclidean": SquaredEuclidean,
	"weighted":  WeightedEuclidean,
}

// MetricByName looks up a metric, the empty string returns the default.
func MetricByName(name string) (Metric, error) {
	if name == "" {
		return SquaredEuclidean, nil
	}
	m, ok := metrics[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("palette: unknown metric %q", name)
	}
	return m, nil
}

// MetricNames returns the names accepted by MetricByName.
func MetricNames() []string {
	names := make([]string, 0, len(metrics))
	for k := range metrics {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
