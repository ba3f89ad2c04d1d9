// Package falkorpersist is a client-side engine for FalkorDB. It encodes query
// parameters into the CYPHER preamble, decodes the compact tagged result format
// into typed values and maps graph entities onto application records.
package falkorpersist

import (
	"fmt"
	"time"
)

// ValueType is the wire tag that precedes every value in a compact reply and
// declares how its payload must be interpreted.
type ValueType int

const (
	TypeUnknown ValueType = iota
	TypeNull
	TypeString
	TypeInteger
	TypeBoolean
	TypeDouble
	TypeArray
	TypeEdge
	TypeNode
	TypePath
	TypeMap
	TypePoint
	TypeVector32
	TypeDateTime
	TypeDate
	TypeTime
	TypeDuration
)

var valueTypeNames = [...]string{
	TypeUnknown:  "Unknown",
	TypeNull:     "Null",
	TypeString:   "String",
	TypeInteger:  "Integer",
	TypeBoolean:  "Boolean",
	TypeDouble:   "Double",
	TypeArray:    "Array",
	TypeEdge:     "Edge",
	TypeNode:     "Node",
	TypePath:     "Path",
	TypeMap:      "Map",
	TypePoint:    "Point",
	TypeVector32: "Vector32",
	TypeDateTime: "DateTime",
	TypeDate:     "Date",
	TypeTime:     "Time",
	TypeDuration: "Duration",
}

func (t ValueType) String() string {
	if t >= 0 && int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// valid reports whether t is one of the tags the server can send.
func (t ValueType) valid() bool {
	return t >= TypeUnknown && t <= TypeDuration
}

// Value is a decoded result value. The set of implementations is closed:
// Null, String, Integer, Boolean, Double, List, Map, Node, Relationship, Path,
// Point, Vector32, LocalDateTime, LocalDate, LocalTime and Duration.
type Value interface {
	// Type reports the wire tag the value was decoded from.
	Type() ValueType
	isValue()
}

type (
	// Null is the absent value.
	Null struct{}
	// String is a UTF-8 string value.
	String string
	// Integer is a signed 64-bit integer value.
	Integer int64
	// Boolean is a boolean value.
	Boolean bool
	// Double is a 64-bit floating point value.
	Double float64
	// List is an ordered sequence of values.
	List []Value
	// Map is a string-keyed mapping of values.
	Map map[string]Value
	// Vector32 is an ordered sequence of 32-bit floats.
	Vector32 []float32
)

// Node is a graph node. ID is assigned by the server and is only meaningful
// within the result it came from.
type Node struct {
	ID         int64
	Labels     []string
	Properties Map
}

// HasLabel reports whether label is among the node's labels.
func (n Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Relationship is a directed edge from SourceID to DestinationID.
// RelType is the relationship type name; Type reports the wire tag.
type Relationship struct {
	ID            int64
	RelType       string
	SourceID      int64
	DestinationID int64
	Properties    Map
}

// Path is a traversal: Relationships[i] connects Nodes[i] and Nodes[i+1].
// The decoder does not check that the two sequences line up.
type Path struct {
	Nodes         []Node
	Relationships []Relationship
}

// Point is a geographic coordinate.
type Point struct {
	Latitude  float64
	Longitude float64
}

// LocalDateTime is an instant without a zone, held in UTC.
type LocalDateTime struct {
	time.Time
}

// LocalDate is a calendar date.
type LocalDate struct {
	Year  int
	Month time.Month
	Day   int
}

// Time returns midnight UTC of the date.
func (d LocalDate) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d LocalDate) String() string {
	return d.Time().Format(time.DateOnly)
}

// LocalTime is a time of day.
type LocalTime struct {
	Hour   int
	Minute int
	Second int
}

func (t LocalTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Duration is an elapsed span.
type Duration struct {
	time.Duration
}

func (Null) Type() ValueType          { return TypeNull }
func (String) Type() ValueType        { return TypeString }
func (Integer) Type() ValueType       { return TypeInteger }
func (Boolean) Type() ValueType       { return TypeBoolean }
func (Double) Type() ValueType        { return TypeDouble }
func (List) Type() ValueType          { return TypeArray }
func (Map) Type() ValueType           { return TypeMap }
func (Node) Type() ValueType          { return TypeNode }
func (Relationship) Type() ValueType  { return TypeEdge }
func (Path) Type() ValueType          { return TypePath }
func (Point) Type() ValueType         { return TypePoint }
func (Vector32) Type() ValueType      { return TypeVector32 }
func (LocalDateTime) Type() ValueType { return TypeDateTime }
func (LocalDate) Type() ValueType     { return TypeDate }
func (LocalTime) Type() ValueType     { return TypeTime }
func (Duration) Type() ValueType      { return TypeDuration }

func (Null) isValue()          {}
func (String) isValue()        {}
func (Integer) isValue()       {}
func (Boolean) isValue()       {}
func (Double) isValue()        {}
func (List) isValue()          {}
func (Map) isValue()           {}
func (Node) isValue()          {}
func (Relationship) isValue()  {}
func (Path) isValue()          {}
func (Point) isValue()         {}
func (Vector32) isValue()      {}
func (LocalDateTime) isValue() {}
func (LocalDate) isValue()     {}
func (LocalTime) isValue()     {}
func (Duration) isValue()      {}

// Native converts v into plain Go values: nil, string, int64, bool, float64,
// []any, map[string]any, or the value itself for graph, spatial and temporal
// types.
func Native(v Value) any {
	switch x := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(x)
	case Integer:
		return int64(x)
	case Boolean:
		return bool(x)
	case Double:
		return float64(x)
	case List:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Native(e)
		}
		return out
	case Map:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Native(e)
		}
		return out
	default:
		return v
	}
}
