package falkorpersist

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Person struct {
	ID       string            `falkor:"pk,property:personId"`
	Name     string            `falkor:"property:name"`
	Nick     string            `falkor:"property:nick,optional"`
	Age      uint8             `falkor:"property:age"`
	Height   float32           `falkor:"property:height"`
	Active   bool              `falkor:"property:active"`
	Born     time.Time         `falkor:"property:born"`
	Shift    time.Duration     `falkor:"property:shift"`
	Email    *string           `falkor:"property:email"`
	Tags     []string          `falkor:"property:tags"`
	Embed    []float64         `falkor:"property:embedding,optional"`
	Attrs    map[string]int64  `falkor:"property:attrs,optional"`
	Home     Point             `falkor:"property:home,optional"`
	Extra    Value             `falkor:"property:extra,optional"`
	Nested   map[string]string `falkor:"-"`
	internal int
}

type labelled struct {
	Key string `falkor:"pk,property:key"`
}

func (labelled) GraphLabel() string { return "Custom" }

func personNode(props Map) Node {
	return Node{ID: 1, Labels: []string{"Person"}, Properties: props}
}

func TestParseTags(t *testing.T) {
	meta, err := parseTags[Person]()
	require.NoError(t, err)
	assert.Equal(t, "Person", meta.Label)
	assert.Equal(t, "ID", meta.PKField)
	assert.Equal(t, "personId", meta.PKProp)
	require.Len(t, meta.Mappings, 14)
	assert.Equal(t, fieldMapping{Field: "Nick", Index: []int{2}, Prop: "nick", Optional: true}, meta.Mappings[2])

	meta, err = parseTags[labelled]()
	require.NoError(t, err)
	assert.Equal(t, "Custom", meta.Label)
}

func TestParseTags_Errors(t *testing.T) {
	type noProperty struct {
		A string `falkor:"pk"`
	}
	type twoKeys struct {
		A string `falkor:"pk,property:a"`
		B string `falkor:"pk,property:b"`
	}
	type unexported struct {
		a string `falkor:"property:a"`
	}
	_, err := parseTags[noProperty]()
	assert.Error(t, err)
	_, err = parseTags[twoKeys]()
	assert.Error(t, err)
	_, err = parseTags[unexported]()
	assert.Error(t, err)
	_, err = parseTagsFromType(reflect.TypeOf(42))
	assert.Error(t, err)
}

func TestSchemaFromTags(t *testing.T) {
	rec, err := SchemaFromTags[Person]()
	require.NoError(t, err)
	assert.Equal(t, "Person", rec.Label())

	born := time.Date(1990, 5, 17, 8, 0, 0, 0, time.UTC)
	p, err := Materialize[Person](rec, personNode(Map{
		"personId":  String("p1"),
		"name":      String("Ann"),
		"age":       Integer(33),
		"height":    Double(1.7),
		"active":    Boolean(true),
		"born":      LocalDateTime{Time: born},
		"shift":     Duration{Duration: time.Hour},
		"email":     String("ann@example.com"),
		"tags":      List{String("a"), String("b")},
		"embedding": Vector32{0.5, 1},
		"attrs":     Map{"x": Integer(1)},
		"home":      Point{Latitude: 1, Longitude: 2},
		"extra":     List{Integer(1)},
	}))
	require.NoError(t, err)
	require.NotNil(t, p.Email)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "Ann", p.Name)
	assert.Empty(t, p.Nick)
	assert.Equal(t, uint8(33), p.Age)
	assert.InDelta(t, 1.7, p.Height, 1e-6)
	assert.True(t, p.Active)
	assert.True(t, born.Equal(p.Born))
	assert.Equal(t, time.Hour, p.Shift)
	assert.Equal(t, "ann@example.com", *p.Email)
	assert.Equal(t, []string{"a", "b"}, p.Tags)
	assert.Equal(t, []float64{0.5, 1}, p.Embed)
	assert.Equal(t, map[string]int64{"x": 1}, p.Attrs)
	assert.Equal(t, Point{Latitude: 1, Longitude: 2}, p.Home)
	assert.Equal(t, List{Integer(1)}, p.Extra)
}

func TestSchemaFromTags_OptionalAndNull(t *testing.T) {
	rec, err := SchemaFromTags[Person]()
	require.NoError(t, err)

	base := Map{
		"personId": String("p1"),
		"name":     String("Ann"),
		"age":      Integer(1),
		"height":   Integer(2),
		"active":   Boolean(false),
		"born":     LocalDate{Year: 2000, Month: time.January, Day: 2},
		"shift":    Duration{},
		"email":    Null{},
		"tags":     List{},
	}
	p, err := Materialize[Person](rec, personNode(base))
	require.NoError(t, err)
	assert.Nil(t, p.Email)
	assert.Equal(t, float32(2), p.Height)
	assert.Equal(t, time.Date(2000, time.January, 2, 0, 0, 0, 0, time.UTC), p.Born)
	assert.Nil(t, p.Attrs)
	assert.Nil(t, p.Extra)

	delete(base, "name")
	_, err = Materialize[Person](rec, personNode(base))
	assert.Error(t, err)

	base["name"] = String("Ann")
	base["tags"] = List{Integer(1)}
	_, err = Materialize[Person](rec, personNode(base))
	assert.Error(t, err)
}

func TestSchemaFromTags_Unsupported(t *testing.T) {
	type withChan struct {
		C chan int `falkor:"property:c"`
	}
	_, err := SchemaFromTags[withChan]()
	assert.Error(t, err)
}

func TestStructParamFields(t *testing.T) {
	fields := structParamFields(reflect.TypeOf(Person{}))
	props := make([]string, len(fields))
	for i, f := range fields {
		props[i] = f.prop
	}
	assert.Equal(t, []string{
		"personId", "name", "nick", "age", "height", "active", "born", "shift",
		"email", "tags", "embedding", "attrs", "home", "extra",
	}, props)
}

func TestSchemaFromTags_NumericRange(t *testing.T) {
	type sized struct {
		Small  uint8   `falkor:"property:small"`
		Mid    int32   `falkor:"property:mid"`
		Ratio  float32 `falkor:"property:ratio"`
		Counts []int8  `falkor:"property:counts,optional"`
	}
	rec, err := SchemaFromTags[sized]()
	require.NoError(t, err)
	node := func(props Map) Node { return Node{ID: 1, Labels: []string{"sized"}, Properties: props} }

	s, err := Materialize[sized](rec, node(Map{
		"small":  Integer(255),
		"mid":    Integer(-1 << 31),
		"ratio":  Double(0.25),
		"counts": List{Integer(-128), Integer(127)},
	}))
	require.NoError(t, err)
	assert.Equal(t, sized{Small: 255, Mid: -1 << 31, Ratio: 0.25, Counts: []int8{-128, 127}}, s)

	tests := []struct {
		name  string
		props Map
	}{
		{"negative unsigned", Map{"small": Integer(-1), "mid": Integer(0), "ratio": Double(0)}},
		{"unsigned too large", Map{"small": Integer(256), "mid": Integer(0), "ratio": Double(0)}},
		{"int32 too large", Map{"small": Integer(0), "mid": Integer(1 << 33), "ratio": Double(0)}},
		{"float32 too large", Map{"small": Integer(0), "mid": Integer(0), "ratio": Double(1e300)}},
		{"slice element", Map{"small": Integer(0), "mid": Integer(0), "ratio": Double(0), "counts": List{Integer(128)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Materialize[sized](rec, node(tt.props))
			var de *DecodeError
			assert.ErrorAs(t, err, &de)
		})
	}
}
