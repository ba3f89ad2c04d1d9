package falkorpersist

import (
	"strconv"
	"strings"
	"time"
)

// Statistics summarizes the effects and timing of a query, as reported in the
// trailing metadata lines of a reply.
type Statistics struct {
	LabelsAdded          int64
	LabelsRemoved        int64
	NodesCreated         int64
	NodesDeleted         int64
	PropertiesSet        int64
	PropertiesRemoved    int64
	RelationshipsCreated int64
	RelationshipsDeleted int64
	IndicesCreated       int64
	IndicesDeleted       int64

	CachedExecution bool
	ExecutionTime   time.Duration
}

const executionTimePrefix = "Query internal execution time: "

var statisticCounters = []struct {
	prefix string
	field  func(*Statistics) *int64
}{
	{"Labels added: ", func(s *Statistics) *int64 { return &s.LabelsAdded }},
	{"Labels removed: ", func(s *Statistics) *int64 { return &s.LabelsRemoved }},
	{"Nodes created: ", func(s *Statistics) *int64 { return &s.NodesCreated }},
	{"Nodes deleted: ", func(s *Statistics) *int64 { return &s.NodesDeleted }},
	{"Properties set: ", func(s *Statistics) *int64 { return &s.PropertiesSet }},
	{"Properties removed: ", func(s *Statistics) *int64 { return &s.PropertiesRemoved }},
	{"Relationships created: ", func(s *Statistics) *int64 { return &s.RelationshipsCreated }},
	{"Relationships deleted: ", func(s *Statistics) *int64 { return &s.RelationshipsDeleted }},
	{"Indices created: ", func(s *Statistics) *int64 { return &s.IndicesCreated }},
	{"Indices deleted: ", func(s *Statistics) *int64 { return &s.IndicesDeleted }},
}

// ParseStatistics reads the metadata lines of a reply. Lines it does not
// recognize, or whose value does not parse, are skipped; missing counters stay
// zero.
func ParseStatistics(lines []string) Statistics {
	var s Statistics
	for _, line := range lines {
		s.parseLine(line)
	}
	return s
}

func (s *Statistics) parseLine(line string) {
	if rest, ok := strings.CutPrefix(line, "Cached execution: "); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
		if err == nil {
			s.CachedExecution = n != 0
		}
		return
	}
	if rest, ok := strings.CutPrefix(line, executionTimePrefix); ok {
		ms, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(rest), " milliseconds"), 64)
		if err == nil {
			s.ExecutionTime = time.Duration(ms * float64(time.Millisecond))
		}
		return
	}
	for _, c := range statisticCounters {
		if rest, ok := strings.CutPrefix(line, c.prefix); ok {
			if n, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64); err == nil {
				*c.field(s) = n
			}
			return
		}
	}
}

// Empty reports whether the query changed nothing.
func (s Statistics) Empty() bool {
	return s.LabelsAdded == 0 && s.LabelsRemoved == 0 &&
		s.NodesCreated == 0 && s.NodesDeleted == 0 &&
		s.PropertiesSet == 0 && s.PropertiesRemoved == 0 &&
		s.RelationshipsCreated == 0 && s.RelationshipsDeleted == 0 &&
		s.IndicesCreated == 0 && s.IndicesDeleted == 0
}

func parseStatisticsRaw(raw any) (Statistics, error) {
	items, err := asArray(TypeArray, raw)
	if err != nil {
		return Statistics{}, err
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		line, err := asString(TypeString, item)
		if err != nil {
			return Statistics{}, err
		}
		lines = append(lines, line)
	}
	return ParseStatistics(lines), nil
}
