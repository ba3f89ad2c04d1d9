package falkorpersist

import (
	"context"
	"testing"

	"github.com/saulfrancisco-ruizacevedo/gocypher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repoUser struct {
	UserID string `falkor:"pk,property:userId"`
	Name   string `falkor:"property:name"`
	Email  string `falkor:"property:email,optional"`
}

func (repoUser) GraphLabel() string { return "User" }

type repoPost struct {
	PostID string `falkor:"pk,property:postId"`
	Title  string `falkor:"property:title"`
}

func (repoPost) GraphLabel() string { return "Post" }

func userRow(id int64, userID, name string) []any {
	return []any{pair(TypeNode, nodePayload(id, []int64{0},
		prop(0, TypeString, userID),
		prop(1, TypeString, name),
	))}
}

func newRepoConn() *fakeConn {
	return newFakeConn([]string{"User", "Post"}, []string{"WROTE"}, []string{"userId", "name", "email", "postId", "title"})
}

func newUserRepo(t *testing.T, conn *fakeConn) *Repository[repoUser] {
	t.Helper()
	repo, err := NewRepository[repoUser](newTestGraph(conn))
	require.NoError(t, err)
	return repo
}

func sentQuery(t *testing.T, conn *fakeConn) (command, query string) {
	t.Helper()
	cmds := conn.commands()
	require.NotEmpty(t, cmds)
	last := cmds[len(cmds)-1]
	require.GreaterOrEqual(t, len(last), 4)
	assert.Equal(t, "social", last[1])
	assert.Equal(t, "--compact", last[3])
	return last[0].(string), last[2].(string)
}

func TestNewRepository_RequiresPrimaryKey(t *testing.T) {
	type noKey struct {
		Name string `falkor:"property:name"`
	}
	_, err := NewRepository[noKey](newTestGraph(newRepoConn()))
	assert.Error(t, err)
}

func TestRepository_Save(t *testing.T) {
	conn := newRepoConn()
	repo := newUserRepo(t, conn)

	require.NoError(t, repo.Save(context.Background(), &repoUser{UserID: "u1", Name: "Ann", Email: "ann@example.com"}))

	command, query := sentQuery(t, conn)
	assert.Equal(t, "GRAPH.QUERY", command)
	assert.Contains(t, query, "MERGE")
	assert.Contains(t, query, "User")
	assert.Contains(t, query, "u1")
	assert.Contains(t, query, "ann@example.com")
}

func TestRepository_FindByID(t *testing.T) {
	conn := newRepoConn()
	conn.reply = func([]any) (any, error) {
		return resultSet(columns("n"), userRow(1, "u1", "Ann")), nil
	}
	repo := newUserRepo(t, conn)

	u, err := repo.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, &repoUser{UserID: "u1", Name: "Ann"}, u)

	command, query := sentQuery(t, conn)
	assert.Equal(t, "GRAPH.RO_QUERY", command)
	assert.Contains(t, query, "MATCH")
	assert.Contains(t, query, "u1")
}

func TestRepository_FindByIDNotFound(t *testing.T) {
	conn := newRepoConn()
	conn.reply = func([]any) (any, error) { return resultSet(columns("n")), nil }

	_, err := newUserRepo(t, conn).FindByID(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_FindOneRejectsDuplicates(t *testing.T) {
	conn := newRepoConn()
	conn.reply = func([]any) (any, error) {
		return resultSet(columns("n"), userRow(1, "u1", "Ann"), userRow(2, "u1", "Bob")), nil
	}
	_, err := newUserRepo(t, conn).FindByID(context.Background(), "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRepository_FindAllAndByProperty(t *testing.T) {
	conn := newRepoConn()
	conn.reply = func([]any) (any, error) {
		return resultSet(columns("n"), userRow(1, "u1", "Ann"), userRow(2, "u2", "Bob")), nil
	}
	repo := newUserRepo(t, conn)
	ctx := context.Background()

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Bob", all[1].Name)

	byName, err := repo.FindByProperty(ctx, "name", "Ann")
	require.NoError(t, err)
	assert.Len(t, byName, 2)
	_, query := sentQuery(t, conn)
	assert.Contains(t, query, "Ann")
}

func TestRepository_FindRejectsOtherLabels(t *testing.T) {
	conn := newRepoConn()
	conn.reply = func([]any) (any, error) {
		return resultSet(columns("n"), []any{pair(TypeNode, nodePayload(9, []int64{1}, prop(3, TypeString, "p1")))}), nil
	}
	qb := gocypher.NewQueryBuilder().Match(gocypher.N("n", "Post")).Return("n")
	_, err := newUserRepo(t, conn).Find(context.Background(), qb)
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestRepository_Count(t *testing.T) {
	conn := newRepoConn()
	conn.reply = func([]any) (any, error) {
		return resultSet(columns("count(n)"), []any{integer(3)}), nil
	}
	repo := newUserRepo(t, conn)
	ctx := context.Background()

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	_, query := sentQuery(t, conn)
	assert.Equal(t, "MATCH (n:User) RETURN count(n)", query)

	n, err = repo.CountByProperty(ctx, "first name", "Ann")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	_, query = sentQuery(t, conn)
	assert.Equal(t, "CYPHER value=\"Ann\" MATCH (n:User) WHERE n.`first name` = $value RETURN count(n)", query)
}

func TestRepository_Delete(t *testing.T) {
	conn := newRepoConn()
	require.NoError(t, newUserRepo(t, conn).Delete(context.Background(), "u1"))

	command, query := sentQuery(t, conn)
	assert.Equal(t, "GRAPH.QUERY", command)
	assert.Contains(t, query, "DETACH DELETE")
	assert.Contains(t, query, "u1")
}

func TestGraph_CreateRelation(t *testing.T) {
	ctx := context.Background()
	conn := newRepoConn()
	conn.reply = func([]any) (any, error) { return statsOnly("Relationships created: 1"), nil }
	g := newTestGraph(conn)

	author := &repoUser{UserID: "u1", Name: "Ann"}
	post := &repoPost{PostID: "p1", Title: "Hello"}
	require.NoError(t, g.CreateRelation(ctx, author, post, "WROTE", map[string]interface{}{"year": 2024}))

	command, query := sentQuery(t, conn)
	assert.Equal(t, "GRAPH.QUERY", command)
	assert.Contains(t, query, "CREATE")
	assert.Contains(t, query, "WROTE")
	assert.Contains(t, query, "u1")
	assert.Contains(t, query, "p1")

	// Nothing matched, so nothing was created.
	conn.reply = func([]any) (any, error) { return statsOnly("Query internal execution time: 0.1 milliseconds"), nil }
	err := g.CreateRelation(ctx, author, post, "WROTE", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	err = g.CreateRelation(ctx, *author, post, "WROTE", nil)
	assert.Error(t, err)
}

func TestGraph_FindGraph(t *testing.T) {
	ctx := context.Background()
	conn := newRepoConn()
	ann := pair(TypeNode, nodePayload(1, []int64{0}, prop(0, TypeString, "u1")))
	p1 := pair(TypeNode, nodePayload(2, []int64{1}, prop(3, TypeString, "p1")))
	p2 := pair(TypeNode, nodePayload(3, []int64{1}, prop(3, TypeString, "p2")))
	wrote1 := pair(TypeEdge, edgePayload(10, 0, 1, 2))
	wrote2 := pair(TypeEdge, edgePayload(11, 0, 1, 3))
	path := pair(TypePath, []any{
		pair(TypeArray, []any{ann, p2}),
		pair(TypeArray, []any{wrote2}),
	})
	conn.reply = func([]any) (any, error) {
		return resultSet(columns("u", "r", "p", "extra"),
			[]any{ann, wrote1, p1, pair(TypeNull, nil)},
			[]any{ann, wrote1, p1, pair(TypeArray, []any{path})},
		), nil
	}
	g := newTestGraph(conn)

	qb := gocypher.NewQueryBuilder().
		Match(gocypher.N("u", "User").WithProperties(map[string]interface{}{"userId": "u1"})).
		Match(gocypher.NRef("u"), gocypher.R("r", "WROTE").To(), gocypher.N("p", "Post")).
		Return("u", "r", "p")

	res, err := g.FindGraph(ctx, qb)
	require.NoError(t, err)

	nodeIDs := make([]int64, len(res.Nodes))
	for i, n := range res.Nodes {
		nodeIDs[i] = n.ID
	}
	relIDs := make([]int64, len(res.Relationships))
	for i, r := range res.Relationships {
		relIDs[i] = r.ID
	}
	assert.Equal(t, []int64{1, 2, 3}, nodeIDs)
	assert.Equal(t, []int64{10, 11}, relIDs)
	assert.Equal(t, "WROTE", res.Relationships[0].RelType)

	conn.reply = func([]any) (any, error) { return resultSet(columns("u")), nil }
	_, err = g.FindGraph(ctx, qb)
	assert.ErrorIs(t, err, ErrNotFound)
}
