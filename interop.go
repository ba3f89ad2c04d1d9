package falkorpersist

import (
	"strconv"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// wgs84 is the spatial reference id of geographic 2D points.
const wgs84 = 4326

// ToNeo4j converts a decoded value into the value the Neo4j Go driver would
// return for it, so that code written against neo4j records can consume
// FalkorDB results. Scalars become their native Go form; lists and maps are
// converted element-wise. Element ids are the decimal form of the numeric id.
func ToNeo4j(v Value) any {
	switch x := v.(type) {
	case nil, Null:
		return nil
	case List:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = ToNeo4j(e)
		}
		return out
	case Map:
		return neo4jProps(x)
	case Node:
		return neo4jNode(x)
	case Relationship:
		return neo4jRelationship(x)
	case Path:
		p := dbtype.Path{
			Nodes:         make([]dbtype.Node, len(x.Nodes)),
			Relationships: make([]dbtype.Relationship, len(x.Relationships)),
		}
		for i, n := range x.Nodes {
			p.Nodes[i] = neo4jNode(n)
		}
		for i, r := range x.Relationships {
			p.Relationships[i] = neo4jRelationship(r)
		}
		return p
	case Point:
		return dbtype.Point2D{X: x.Longitude, Y: x.Latitude, SpatialRefId: wgs84}
	case Vector32:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = float64(f)
		}
		return out
	case LocalDateTime:
		return dbtype.LocalDateTime(x.Time)
	case LocalDate:
		return dbtype.Date(x.Time())
	case LocalTime:
		return dbtype.LocalTime(time.Date(0, time.January, 1, x.Hour, x.Minute, x.Second, 0, time.UTC))
	case Duration:
		d := x.Duration
		return dbtype.Duration{
			Seconds: int64(d / time.Second),
			Nanos:   int(d % time.Second),
		}
	default:
		return Native(v)
	}
}

func neo4jProps(m Map) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = ToNeo4j(v)
	}
	return out
}

func elementID(id int64) string { return strconv.FormatInt(id, 10) }

func neo4jNode(n Node) dbtype.Node {
	return dbtype.Node{
		Id:        n.ID,
		ElementId: elementID(n.ID),
		Labels:    n.Labels,
		Props:     neo4jProps(n.Properties),
	}
}

func neo4jRelationship(r Relationship) dbtype.Relationship {
	return dbtype.Relationship{
		Id:             r.ID,
		ElementId:      elementID(r.ID),
		StartId:        r.SourceID,
		StartElementId: elementID(r.SourceID),
		EndId:          r.DestinationID,
		EndElementId:   elementID(r.DestinationID),
		Type:           r.RelType,
		Props:          neo4jProps(r.Properties),
	}
}
